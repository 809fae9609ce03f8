package extract

import (
	"github.com/PuerkitoBio/goquery"
)

// Side is the column a team occupies in a fixtures match box.
type Side string

const (
	SideUnknown Side = ""
	SideLeft    Side = "left"
	SideRight   Side = "right"
)

const teamCellAnchors = "td.team-left a[href], td.team-right a[href]"

// Upcoming holds the raw fields of a team's next fixture. Found is false when the
// team does not appear on the fixtures page, which means it has no upcoming match.
type Upcoming struct {
	Found       bool   `json:"found"`
	Side        Side   `json:"side,omitempty"`
	Opponent    string `json:"opponent,omitempty"`
	FormatLabel string `json:"format_label,omitempty"`
	TimerText   string `json:"timer_text,omitempty"`
	Timestamp   int64  `json:"timestamp,omitempty"`
	Tournament  string `json:"tournament,omitempty"`
}

// ExtractUpcoming finds the first link to teamPath (e.g. "/counterstrike/Team_Vitality")
// on the fixtures page and reads the match box around it. Links inside team cells
// are preferred over links elsewhere on the page.
func ExtractUpcoming(doc *goquery.Document, teamPath string) Upcoming {
	return ExtractFixtures(doc).Lookup(teamPath)
}

// upcomingAt reads the match row holding anchor and the details row that follows it.
func upcomingAt(anchor *goquery.Selection) Upcoming {
	up := Upcoming{Found: true}

	row := anchor.Closest("tr")
	if row.Length() == 0 {
		return up
	}

	cell := anchor.Closest("td")
	var opponentCell *goquery.Selection
	switch {
	case cell.HasClass("team-left"):
		up.Side = SideLeft
		opponentCell = row.ChildrenFiltered("td.team-right").First()
	case cell.HasClass("team-right"):
		up.Side = SideRight
		opponentCell = row.ChildrenFiltered("td.team-left").First()
	}
	if opponentCell != nil && opponentCell.Length() > 0 {
		up.Opponent = linkText(opponentCell)
	}

	if versus := row.ChildrenFiltered("td.versus").First(); versus.Length() > 0 {
		if abbr := versus.Find("abbr").First(); abbr.Length() > 0 {
			up.FormatLabel = clean(abbr.Text())
		} else {
			up.FormatLabel = clean(versus.Text())
		}
	}

	details := row.NextAllFiltered("tr").First()
	if details.Length() == 0 {
		return up
	}
	if timer := details.Find("span.timer-object").First(); timer.Length() > 0 {
		up.TimerText = clean(timer.Text())
		up.Timestamp = timestampAttr(timer)
	}
	if event := details.Find("div.text-nowrap").First(); event.Length() > 0 {
		up.Tournament = linkText(event)
	}
	return up
}

// FixturesSnapshot is every team's next fixture on the shared fixtures page,
// keyed by the team's page path. It is read-only once built.
type FixturesSnapshot struct {
	byPath map[string]Upcoming
	// loose holds links found outside team cells, for paths no team cell names.
	loose map[string]Upcoming
}

// ExtractFixtures reads every team linked from a match box. The page lists
// matches soonest first, so the first box a team appears in is its next match.
// Other links on the page are indexed too and used only when no team cell
// links to the path.
func ExtractFixtures(doc *goquery.Document) FixturesSnapshot {
	snap := FixturesSnapshot{
		byPath: make(map[string]Upcoming),
		loose:  make(map[string]Upcoming),
	}
	indexFirst(doc.Find(teamCellAnchors), snap.byPath, nil)
	indexFirst(doc.Find("a[href]"), snap.loose, snap.byPath)
	return snap
}

// indexFirst stores the match box of the first anchor per href in dst,
// skipping hrefs already in skip.
func indexFirst(anchors *goquery.Selection, dst, skip map[string]Upcoming) {
	anchors.Each(func(_ int, a *goquery.Selection) {
		href := a.AttrOr("href", "")
		if href == "" {
			return
		}
		if _, seen := dst[href]; seen {
			return
		}
		if _, seen := skip[href]; seen {
			return
		}
		dst[href] = upcomingAt(a)
	})
}

// Lookup returns the fixture for teamPath, or an Upcoming with Found false.
func (s FixturesSnapshot) Lookup(teamPath string) Upcoming {
	if up, ok := s.byPath[teamPath]; ok {
		return up
	}
	return s.loose[teamPath]
}

// Len returns the number of teams with a fixture.
func (s FixturesSnapshot) Len() int {
	return len(s.byPath)
}
