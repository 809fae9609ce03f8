// Package match defines the normalized next/last match facts of a tracked team
// and their sensor-facing rendering.
//
// A TeamResult always carries both facts. Missing information is expressed field by
// field (empty strings, nil times, Unknown sentinels), never by omitting a fact.
package match
