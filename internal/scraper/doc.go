// Package scraper provides HTTP fetching for Liquipedia Counter-Strike pages.
//
// It fetches a team's match history page and the shared upcoming-matches page and
// hands back parsed goquery documents. Requests carry a descriptive User-Agent and
// time out after 10 seconds. Server errors and transport failures are retried with
// exponential backoff; client errors are not. Every failure is marked ErrNetwork.
package scraper
