package cli

import (
	"sort"
	"strings"

	"github.com/pfrederiksen/liquipedia-cs/internal/match"
)

// SortOrder represents the available sorting options
type SortOrder string

const (
	SortByConfig SortOrder = "config"
	SortByName   SortOrder = "name"
	SortByNext   SortOrder = "next"
)

// sortResults sorts results in place. SortByConfig keeps configuration order.
func sortResults(results []match.TeamResult, order SortOrder) {
	switch order {
	case SortByName:
		sort.SliceStable(results, func(i, j int) bool {
			return strings.ToLower(results[i].Team.Name) < strings.ToLower(results[j].Team.Name)
		})
	case SortByNext:
		sort.SliceStable(results, func(i, j int) bool {
			return compareByNext(results[i].Next, results[j].Next)
		})
	}
}

// compareByNext orders scheduled matches soonest first, then matches with no
// date, then teams with no upcoming match.
func compareByNext(i, j match.MatchFact) bool {
	ri, rj := nextRank(i), nextRank(j)
	if ri != rj {
		return ri < rj
	}
	if ri == 0 {
		return i.ScheduledAt.Before(*j.ScheduledAt)
	}
	return false
}

func nextRank(f match.MatchFact) int {
	switch {
	case f.ScheduledAt != nil && !f.NoUpcoming && !f.Unavailable:
		return 0
	case !f.NoUpcoming && !f.Unavailable:
		return 1
	default:
		return 2
	}
}

func validSortOrder(s SortOrder) bool {
	switch s {
	case SortByConfig, SortByName, SortByNext:
		return true
	}
	return false
}
