package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/pfrederiksen/liquipedia-cs/internal/match"
	"github.com/pfrederiksen/liquipedia-cs/internal/timezone"
)

// OutputFormat specifies the output format
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
)

// OutputResult contains data to be output
type OutputResult struct {
	CheckedAt time.Time            `json:"checked_at"`
	TeamCount int                  `json:"team_count"`
	Teams     []match.SensorOutput `json:"teams"`
	Forced    bool                 `json:"forced,omitempty"`

	results []match.TeamResult
}

// NewOutputResult builds the output for one round of results.
func NewOutputResult(results []match.TeamResult, checkedAt time.Time, forced bool) *OutputResult {
	out := &OutputResult{
		CheckedAt: checkedAt.UTC(),
		TeamCount: len(results),
		Teams:     make([]match.SensorOutput, 0, len(results)),
		Forced:    forced,
		results:   results,
	}
	for _, r := range results {
		out.Teams = append(out.Teams, r.Output())
	}
	return out
}

// WriteOutput writes the result in the specified format
func WriteOutput(w io.Writer, result *OutputResult, format OutputFormat, verbose bool) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, result)
	case FormatText:
		return writeText(w, result, verbose)
	default:
		return errors.Newf("unknown format: %s", format)
	}
}

// writeJSON outputs results as JSON
func writeJSON(w io.Writer, result *OutputResult) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

// writeText outputs results as human-readable text
func writeText(w io.Writer, result *OutputResult, verbose bool) error {
	if result.TeamCount == 0 {
		fmt.Fprintln(w, "No teams tracked.")
		return nil
	}

	for i, r := range result.results {
		out := result.Teams[i]
		fmt.Fprintf(w, "%s (%s)\n", out.Team, out.Page)
		writeRecord(w, "Next", out.Next, r.Next, verbose)
		writeRecord(w, "Last", out.Last, r.Last, verbose)
	}
	fmt.Fprintf(w, "\nChecked %d teams at %s\n", result.TeamCount, result.CheckedAt.Local().Format(timezone.DisplayLayout))
	return nil
}

func writeRecord(w io.Writer, label string, rec match.Record, fact match.MatchFact, verbose bool) {
	if rec.Match == nil {
		fmt.Fprintf(w, "  %s: unavailable\n", label)
		return
	}

	parts := []string{*rec.Match}
	for _, p := range []*string{rec.Format, rec.Date, rec.Event, rec.Score} {
		if p != nil {
			parts = append(parts, *p)
		}
	}
	fmt.Fprintf(w, "  %s: %s\n", label, strings.Join(parts, " | "))

	if verbose {
		fmt.Fprintf(w, "       ID: %s\n", rec.ID)
		if !fact.NoUpcoming {
			fmt.Fprintf(w, "       Format source: %s\n", fact.FormatSource)
		}
		if fact.ScheduledAt != nil && !fact.TimeReliable {
			fmt.Fprintln(w, "       Date: unreliable (could not be parsed)")
		}
	}
}
