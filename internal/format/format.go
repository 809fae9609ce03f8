// Package format infers a best-of-N match format from scores, labels or event names.
package format

import (
	"regexp"
	"strconv"
	"strings"
)

// Format is a best-of-N label as Liquipedia writes it.
type Format string

const (
	Bo1     Format = "Bo1"
	Bo3     Format = "Bo3"
	Bo5     Format = "Bo5"
	Bo7     Format = "Bo7"
	Bo9     Format = "Bo9"
	Unknown Format = ""
)

// Source records how a Format was obtained.
type Source string

const (
	SourceScore      Source = "score"
	SourceLabel      Source = "label"
	SourceTournament Source = "tournament"
	SourceNone       Source = "none"
)

var (
	singleMapPattern = regexp.MustCompile(`^\d+-\d+$`)
	labelPattern     = regexp.MustCompile(`(?i)\bBo([0-9])\b`)
)

// byMaxWins maps the larger side's map wins to the format it implies.
var byMaxWins = map[int]Format{0: Bo1, 1: Bo1, 2: Bo3, 3: Bo5, 4: Bo7, 5: Bo9}

// InferFromScore derives the format from a series score such as "2:1".
// A round score such as "16-8" is a single map. Non-numeric sides count as 0,
// so "W:FF" reads as Bo1.
func InferFromScore(raw string) Format {
	s := strings.Map(func(r rune) rune {
		if r == ' ' || r == '\u00a0' || r == '\t' {
			return -1
		}
		return r
	}, raw)

	if singleMapPattern.MatchString(s) {
		return Bo1
	}

	left, right, ok := strings.Cut(s, ":")
	if !ok {
		return Unknown
	}
	a, errA := strconv.Atoi(left)
	b, errB := strconv.Atoi(right)
	if errA != nil || errB != nil {
		a, b = 0, 0
	}
	if f, ok := byMaxWins[max(a, b)]; ok {
		return f
	}
	return Unknown
}

// InferFromLabel extracts a "Bo<digit>" token, e.g. from "(Bo3)" or an abbr element.
func InferFromLabel(raw string) Format {
	m := labelPattern.FindStringSubmatch(raw)
	if m == nil {
		return Unknown
	}
	switch m[1] {
	case "1":
		return Bo1
	case "3":
		return Bo3
	case "5":
		return Bo5
	case "7":
		return Bo7
	case "9":
		return Bo9
	}
	return Unknown
}

// GuessFromTournament is a heuristic for when no score or label is available:
// group-stage events default to Bo1, everything else to Bo3.
func GuessFromTournament(name string) Format {
	if strings.Contains(name, "Group") || strings.Contains(name, "Stage 2") {
		return Bo1
	}
	return Bo3
}

// Resolve picks the best available evidence: score, then label, then the
// tournament heuristic when a tournament name is known.
func Resolve(score, label, tournament string) (Format, Source) {
	if f := InferFromScore(score); f != Unknown {
		return f, SourceScore
	}
	if f := InferFromLabel(label); f != Unknown {
		return f, SourceLabel
	}
	if strings.TrimSpace(tournament) != "" {
		return GuessFromTournament(tournament), SourceTournament
	}
	return Unknown, SourceNone
}

// String returns "Unknown" for the zero value.
func (f Format) String() string {
	if f == Unknown {
		return "Unknown"
	}
	return string(f)
}
