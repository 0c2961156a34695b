// VigneLab - Vineyard Telemetry Toolkit
//
// VigneLab reads NDVI, weather and movement telemetry from a vineyard
// sensor rig, over its serial link or from CSV logs, and charts it.
package main

import (
	"os"

	"github.com/vignelab/vignelab/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
