// Command cardpet is a client for the cardpet gRPC service.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd(os.Stdout, dialPetService).Execute(); err != nil {
		os.Exit(1)
	}
}
