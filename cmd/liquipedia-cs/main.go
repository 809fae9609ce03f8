package main

import (
	// Embedded zone database so the display timezone loads on hosts without one.
	_ "time/tzdata"

	"github.com/pfrederiksen/liquipedia-cs/internal/cli"
)

func main() {
	cli.Execute()
}
