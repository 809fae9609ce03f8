package extract

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/cockroachdb/errors"
)

// ErrMalformedMarkup is returned when an element the page always carries is missing.
var ErrMalformedMarkup = errors.New("malformed markup")

// minLastCells is the narrowest results row that still holds every field.
const minLastCells = 7

// LastMatch holds the raw fields of a team's most recent result.
// Complete is false when the row was too short to read; every field is then empty.
type LastMatch struct {
	Complete    bool   `json:"complete"`
	DateText    string `json:"date_text,omitempty"`
	TimeText    string `json:"time_text,omitempty"`
	Timestamp   int64  `json:"timestamp,omitempty"`
	Opponent    string `json:"opponent,omitempty"`
	Score       string `json:"score,omitempty"`
	Tournament  string `json:"tournament,omitempty"`
	FormatLabel string `json:"format_label,omitempty"`
}

// columns maps field roles to cell indices; -1 means the header has no such column.
type columns struct {
	date, clock, tournament, score, opponent, format int
}

// Column positions used when the header does not name a role.
var fallbackColumns = columns{date: 0, clock: -1, tournament: 5, score: 6, opponent: 7, format: -1}

// ExtractLast reads the first data row of the first table with a "Score" column.
func ExtractLast(doc *goquery.Document) (LastMatch, error) {
	table, header := findResultsTable(doc.Selection)
	if table == nil {
		return LastMatch{}, errors.Wrap(ErrMalformedMarkup, "no results table with a Score column")
	}

	rows := table.Find("tr")
	if rows.Length() < 2 {
		return LastMatch{}, nil
	}

	cells := rows.Eq(1).ChildrenFiltered("td")
	if cells.Length() < minLastCells {
		return LastMatch{}, nil
	}

	cols := columnsFromHeader(header)
	last := LastMatch{Complete: true}

	if date := cellAt(cells, cols.date); date != nil {
		timer := date.Find(".timer-object").First()
		if timer.Length() > 0 {
			last.Timestamp = timestampAttr(timer)
			last.DateText = clean(timer.Text())
		} else {
			last.DateText = clean(date.Text())
		}
	}
	if clock := cellAt(cells, cols.clock); clock != nil {
		last.TimeText = clean(clock.Text())
	}
	if cell := cellAt(cells, cols.tournament); cell != nil {
		last.Tournament = linkText(cell)
	}
	if cell := cellAt(cells, cols.score); cell != nil {
		last.Score = clean(cell.Text())
	}
	if cell := cellAt(cells, cols.opponent); cell != nil {
		last.Opponent = linkText(cell)
	}
	if cell := cellAt(cells, cols.format); cell != nil {
		last.FormatLabel = clean(cell.Text())
	}

	return last, nil
}

// findResultsTable returns the first table whose header row has a Score cell.
func findResultsTable(root *goquery.Selection) (table, header *goquery.Selection) {
	root.Find("table").EachWithBreak(func(_ int, t *goquery.Selection) bool {
		first := t.Find("tr").First()
		found := false
		first.Children().EachWithBreak(func(_ int, cell *goquery.Selection) bool {
			if strings.Contains(strings.ToLower(cell.Text()), "score") {
				found = true
				return false
			}
			return true
		})
		if found {
			table, header = t, first
			return false
		}
		return true
	})
	return table, header
}

// columnsFromHeader derives column roles from header text, honouring colspan.
// Roles the header does not name keep their fallback index.
func columnsFromHeader(header *goquery.Selection) columns {
	named := columns{date: -1, clock: -1, tournament: -1, score: -1, opponent: -1, format: -1}
	idx := 0
	header.Children().Each(func(_ int, cell *goquery.Selection) {
		text := strings.ToLower(clean(cell.Text()))
		set := func(p *int) {
			if *p < 0 {
				*p = idx
			}
		}
		switch {
		case strings.Contains(text, "score"), text == "result":
			set(&named.score)
		case strings.Contains(text, "date"):
			set(&named.date)
		case text == "time":
			set(&named.clock)
		case strings.Contains(text, "tournament"), text == "event":
			set(&named.tournament)
		case strings.Contains(text, "opponent"), text == "vs", text == "vs.":
			set(&named.opponent)
		case text == "format", text == "bo":
			set(&named.format)
		}
		idx += colspan(cell)
	})

	resolved := fallbackColumns
	for _, pair := range []struct{ got, dst *int }{
		{&named.date, &resolved.date},
		{&named.clock, &resolved.clock},
		{&named.tournament, &resolved.tournament},
		{&named.score, &resolved.score},
		{&named.opponent, &resolved.opponent},
		{&named.format, &resolved.format},
	} {
		if *pair.got >= 0 {
			*pair.dst = *pair.got
		}
	}
	return resolved
}

func colspan(cell *goquery.Selection) int {
	if v, ok := cell.Attr("colspan"); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			return n
		}
	}
	return 1
}

func cellAt(cells *goquery.Selection, i int) *goquery.Selection {
	if i < 0 || i >= cells.Length() {
		return nil
	}
	return cells.Eq(i)
}

// linkText prefers the first non-empty link text (the short team tag or event
// link) over the cell's full text.
func linkText(sel *goquery.Selection) string {
	text := ""
	sel.Find("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		text = clean(a.Text())
		return text == ""
	})
	if text != "" {
		return text
	}
	return clean(sel.Text())
}

func timestampAttr(sel *goquery.Selection) int64 {
	v, ok := sel.Attr("data-timestamp")
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil || n <= 0 {
		return 0
	}
	return n
}

// clean collapses runs of whitespace, including non-breaking spaces.
func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
