// Package cli implements the command-line interface for liquipedia-cs.
//
// The cli package provides the Cobra-based CLI with three commands: check fetches
// every tracked team once and prints the results (text/JSON, sorted by config order,
// name or next match), watch polls on the configured interval and prints each round,
// and serve polls while exposing the results over HTTP. Under watch and serve,
// SIGUSR1 forces an immediate refresh of every team.
package cli
