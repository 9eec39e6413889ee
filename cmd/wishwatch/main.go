// wishwatch is the tracking server: it polls retailer listings for price and
// availability changes, records history, and raises alerts.
package main

import (
	"os"

	"github.com/tlundberg/wishwatch/cmd/wishwatch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
