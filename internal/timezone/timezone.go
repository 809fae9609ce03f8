// Package timezone turns Liquipedia's abbreviation-labelled timestamps into instants.
//
// Liquipedia renders match times as text such as "June 14, 2025 - 15:45 CDT". The
// abbreviation is resolved against a fixed offset table rather than the IANA database,
// since abbreviations are ambiguous and the site only uses a small set of them.
package timezone

import (
	"regexp"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/pfrederiksen/liquipedia-cs/internal/logger"
)

// DisplayLayout is hour:minute day/month/year.
const DisplayLayout = "15:04 02/01/2006"

var (
	// ErrUnknownTimezone is logged when an abbreviation is not in the offset table.
	ErrUnknownTimezone = errors.New("unknown timezone abbreviation")
	// ErrDateParse is logged when no accepted layout matches the date text.
	ErrDateParse = errors.New("unparseable match date")
)

// offsets maps abbreviations to fixed UTC offsets in hours.
var offsets = map[string]int{
	"UTC": 0, "GMT": 0,
	"PST": -8, "PDT": -7,
	"MST": -7, "MDT": -6,
	"CST": -6, "CDT": -5,
	"EST": -5, "EDT": -4,
	"WET": 0, "WEST": 1,
	"CET": 1, "CEST": 2,
	"BST": 1,
	"EET": 2, "EEST": 3,
	"MSK": 3,
	"AST": 3, // Arabia
	"SGT": 8,
	"KST": 9, "JST": 9,
	"AEST": 10, "AEDT": 11,
}

// dateLayouts are tried in order; the first that parses wins.
var dateLayouts = []string{
	"Jan 2, 2006",
	"January 2, 2006",
	"Jan 2 2006",
	"January 2 2006",
	"2 January 2006",
	"2 Jan 2006",
	"2006-01-02",
}

const clockLayout = "15:04"

// Offset returns the offset in hours for abbr. Unknown abbreviations report ok=false.
func Offset(abbr string) (hours int, ok bool) {
	hours, ok = offsets[strings.ToUpper(strings.TrimSpace(abbr))]
	return hours, ok
}

// Instant is a resolved match time. Reliable is false when the date could not be
// parsed and Time holds the resolution time instead.
type Instant struct {
	Time     time.Time
	Reliable bool
}

// Resolver converts (date, time, abbreviation) triples into instants.
type Resolver struct {
	log *logger.Logger
	now func() time.Time
}

// NewResolver creates a Resolver. A nil log uses the package default logger.
func NewResolver(log *logger.Logger) *Resolver {
	if log == nil {
		log = logger.Default()
	}
	return &Resolver{log: log, now: time.Now}
}

// Resolve parses dateText and timeText in the zone named by abbr and returns the
// instant in target (UTC when nil). It never fails: an unknown abbreviation is
// treated as UTC and an unparseable date yields the current time marked unreliable.
func (r *Resolver) Resolve(dateText, timeText, abbr string, target *time.Location) Instant {
	if target == nil {
		target = time.UTC
	}
	dateText = strings.TrimSpace(dateText)
	timeText = strings.TrimSpace(timeText)
	abbr = strings.ToUpper(strings.TrimSpace(abbr))

	hours, ok := Offset(abbr)
	if !ok && abbr != "" {
		r.log.Warn("Unknown timezone abbreviation, assuming UTC", logger.Fields{
			"abbreviation": abbr,
			"date":         dateText,
		}, ErrUnknownTimezone)
	}
	zone := time.FixedZone(abbr, hours*3600)

	t, err := parseIn(dateText, timeText, zone)
	if err != nil {
		r.log.Warn("Could not parse match date, using current time", logger.Fields{
			"date": dateText,
			"time": timeText,
		}, err)
		return Instant{Time: r.now().In(target), Reliable: false}
	}
	return Instant{Time: t.In(target), Reliable: true}
}

// FromUnix converts an epoch timestamp taken from markup.
func FromUnix(sec int64, target *time.Location) Instant {
	if target == nil {
		target = time.UTC
	}
	return Instant{Time: time.Unix(sec, 0).In(target), Reliable: true}
}

func parseIn(dateText, timeText string, zone *time.Location) (time.Time, error) {
	for _, layout := range dateLayouts {
		value := dateText
		if timeText != "" {
			layout += " " + clockLayout
			value += " " + timeText
		}
		if t, err := time.ParseInLocation(layout, value, zone); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.Wrapf(ErrDateParse, "date %q time %q", dateText, timeText)
}

// "June 14, 2025 - 15:45 CDT", "2025-06-14 15:45", "Jun 14, 2025 - 15:45"
var (
	timerPattern = regexp.MustCompile(`^(.+?)\s+(?:-\s*)?(\d{1,2}:\d{2})\s*([A-Za-z]{2,5})?$`)
	clockPattern = regexp.MustCompile(`^(\d{1,2}:\d{2})\s*([A-Za-z]{2,5})?$`)
)

// SplitTimer splits Liquipedia timer text into its date, clock and abbreviation parts.
// Text without a clock is returned whole as the date.
func SplitTimer(text string) (date, clock, abbr string) {
	text = strings.Join(strings.Fields(text), " ")
	m := timerPattern.FindStringSubmatch(text)
	if m == nil {
		return text, "", ""
	}
	return strings.TrimSpace(m[1]), m[2], strings.ToUpper(m[3])
}

// SplitClock splits a time-only cell such as "15:45 CET". ok is false when the
// text does not start with a clock.
func SplitClock(text string) (clock, abbr string, ok bool) {
	m := clockPattern.FindStringSubmatch(strings.Join(strings.Fields(text), " "))
	if m == nil {
		return "", "", false
	}
	return m[1], strings.ToUpper(m[2]), true
}
