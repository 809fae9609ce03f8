// Package extract pulls raw match fields out of Liquipedia pages.
//
// Two pages are read: a team's Matches page, whose results table yields the most
// recent completed match, and the shared Liquipedia:Matches page, whose match boxes
// yield each team's next fixture. Extraction is purely structural: it works on an
// already-parsed goquery document, does no network or time handling, and returns
// trimmed strings for the caller to normalize.
package extract
