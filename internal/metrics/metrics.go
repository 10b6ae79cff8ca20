// Package metrics exposes Prometheus counters for card registrations and pet
// evolutions.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// #region recorder
// Recorder holds the service counters. A nil *Recorder records nothing.
type Recorder struct {
	cardsRegistered prometheus.Counter
	lineageAssigned *prometheus.CounterVec
	evolutions      *prometheus.CounterVec
	growthFailures  prometheus.Counter
	rpcRequests     *prometheus.CounterVec
}

// New registers the counters on reg.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		cardsRegistered: f.NewCounter(prometheus.CounterOpts{
			Namespace: "cardpet",
			Name:      "cards_registered_total",
			Help:      "Business cards registered.",
		}),
		lineageAssigned: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cardpet",
			Name:      "lineage_assigned_total",
			Help:      "Pets that received a lineage, by lineage.",
		}, []string{"lineage"}),
		evolutions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cardpet",
			Name:      "evolutions_total",
			Help:      "Stage increases, by lineage and new stage.",
		}, []string{"lineage", "stage"}),
		growthFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: "cardpet",
			Name:      "growth_failures_total",
			Help:      "Growth trigger invocations that returned an error.",
		}),
		rpcRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cardpet",
			Name:      "rpc_requests_total",
			Help:      "PetService requests, by method and status code.",
		}, []string{"method", "code"}),
	}
}

// CardRegistered counts one registered card.
func (r *Recorder) CardRegistered() {
	if r == nil {
		return
	}
	r.cardsRegistered.Inc()
}

// LineageAssigned counts a first lineage assignment.
func (r *Recorder) LineageAssigned(lineage string) {
	if r == nil {
		return
	}
	r.lineageAssigned.WithLabelValues(lineage).Inc()
}

// Evolved counts a stage increase.
func (r *Recorder) Evolved(lineage string, stage int) {
	if r == nil {
		return
	}
	r.evolutions.WithLabelValues(lineage, strconv.Itoa(stage)).Inc()
}

// GrowthFailed counts a failed growth evaluation.
func (r *Recorder) GrowthFailed() {
	if r == nil {
		return
	}
	r.growthFailures.Inc()
}

// RPC counts one handled request.
func (r *Recorder) RPC(method, code string) {
	if r == nil {
		return
	}
	r.rpcRequests.WithLabelValues(method, code).Inc()
}

// #endregion recorder

// #region handler
// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// #endregion handler
