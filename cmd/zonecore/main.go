package main

import (
	"os"

	"zonecore/cmd/zonecore/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
