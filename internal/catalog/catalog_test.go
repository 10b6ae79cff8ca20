package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/cardpet/internal/evolution"
)

func TestDefaultCatalogCoversDefaultLineages(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	assert.Equal(t, evolution.DefaultLineages(), c.Lineages())
	for _, lin := range evolution.DefaultLineages() {
		for s := evolution.Stage(0); s <= evolution.DefaultLadder().MaxStage(); s++ {
			assert.NotEmpty(t, c.Candidates(lin, s), "lineage %s stage %d", lin, s)
		}
	}
}

func TestCandidatesUnknown(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	assert.Empty(t, c.Candidates("NOPE", 1))
	assert.Empty(t, c.Candidates(evolution.LineageAnimal, 9))
}

func TestCandidatesIsACopy(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	got := c.Candidates(evolution.LineageData, 1)
	require.NotEmpty(t, got)
	got[0].Value = "mutated"
	assert.NotEqual(t, "mutated", c.Candidates(evolution.LineageData, 1)[0].Value)
}

func TestParseRejectsInvalid(t *testing.T) {
	ladder := evolution.DefaultLadder()
	cases := map[string]string{
		"empty":          `lineages: []`,
		"no name":        "lineages:\n  - stages: []\n",
		"stage too high": "lineages:\n  - name: X\n    stages:\n      - stage: 4\n        forms: [{key: a}]\n",
		"negative stage": "lineages:\n  - name: X\n    stages:\n      - stage: -1\n        forms: [{key: a}]\n",
		"empty key":      "lineages:\n  - name: X\n    stages:\n      - stage: 1\n        forms: [{weight: 2}]\n",
		"dup key":        "lineages:\n  - name: X\n    stages:\n      - stage: 1\n        forms: [{key: a}, {key: a}]\n",
		"dup lineage":    "lineages:\n  - name: X\n  - name: X\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc), ladder)
			assert.ErrorIs(t, err, ErrInvalidCatalog)
		})
	}

	_, err := Parse([]byte("lineages: [:"), ladder)
	assert.Error(t, err)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "forms.yaml")
	doc := "lineages:\n  - name: GLASS\n    stages:\n      - stage: 2\n        forms:\n          - {key: glass_prism, weight: 0}\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	c, err := Load(path, evolution.DefaultLadder())
	require.NoError(t, err)
	assert.Equal(t, []evolution.Lineage{"GLASS"}, c.Lineages())

	got := c.Candidates("GLASS", 2)
	require.Len(t, got, 1)
	assert.Equal(t, "glass_prism", got[0].Value)
	assert.Equal(t, 1.0, got[0].EffectiveWeight())

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"), evolution.DefaultLadder())
	assert.Error(t, err)
}
