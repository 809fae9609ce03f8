// Package storage provides JSON-based persistence for the latest sensor state.
//
// The watch and serve commands can write each round of results to state.json in a
// data directory, so other tools can read current next/last matches without calling
// the HTTP API. The file is replaced atomically on every round; no history is kept.
// The data directory path may start with ~/.
package storage
