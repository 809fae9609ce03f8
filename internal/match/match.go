package match

import (
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/pfrederiksen/liquipedia-cs/internal/format"
	"github.com/pfrederiksen/liquipedia-cs/internal/timezone"
)

// Role tells which side of a team's schedule a fact describes.
type Role string

const (
	RoleUpcoming  Role = "upcoming"
	RoleCompleted Role = "completed"
)

const (
	// UnknownOpponent stands in for an opponent the page did not name.
	UnknownOpponent = "Unknown"
	// UnknownScore stands in for a completed match whose score could not be read.
	UnknownScore = "unknown"
	// NoUpcomingMatch is the display value when a team has no fixture listed.
	NoUpcomingMatch = "No upcoming match"
)

// Team is one tracked team: its wiki page identifier and display name.
type Team struct {
	Page string `json:"page" yaml:"page" validate:"required"`
	Name string `json:"name" yaml:"name" validate:"required"`
}

// Key returns the sensor key, e.g. "vitality" for "Vitality" and "team_liquid" for "Team Liquid".
func (t Team) Key() string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(t.Name), " ", "_"))
}

// MatchFact is one side of a team's schedule.
type MatchFact struct {
	SubjectTeam string
	Opponent    string // "" when unknown; completed facts use UnknownOpponent instead
	Role        Role
	ScheduledAt *time.Time // nil when to be decided
	// TimeReliable is false when the date could not be parsed and ScheduledAt
	// holds the time of resolution instead.
	TimeReliable bool
	Tournament   string
	Format       format.Format
	FormatSource format.Source
	Score        string // completed only
	NoUpcoming   bool
	// Unavailable is set when nothing could be fetched and nothing was cached.
	Unavailable bool
}

// TeamResult is the next and last match of one team.
type TeamResult struct {
	Team Team
	Next MatchFact
	Last MatchFact
}

// NewNoUpcoming is the fact for a team absent from the fixtures page.
func NewNoUpcoming(team string) MatchFact {
	return MatchFact{
		SubjectTeam:  team,
		Role:         RoleUpcoming,
		NoUpcoming:   true,
		FormatSource: format.SourceNone,
	}
}

// NewUnavailableNext is the upcoming fact when the fixtures page could not be read at all.
func NewUnavailableNext(team string) MatchFact {
	return MatchFact{
		SubjectTeam:  team,
		Role:         RoleUpcoming,
		FormatSource: format.SourceNone,
		Unavailable:  true,
	}
}

// NewUnknownLast is the completed fact when no usable result row exists.
func NewUnknownLast(team string) MatchFact {
	return MatchFact{
		SubjectTeam:  team,
		Opponent:     UnknownOpponent,
		Role:         RoleCompleted,
		Score:        UnknownScore,
		FormatSource: format.SourceNone,
	}
}

// Title is the "Team vs Opponent" display string.
func (f MatchFact) Title() string {
	if f.NoUpcoming {
		return NoUpcomingMatch
	}
	opp := f.Opponent
	if opp == "" {
		opp = UnknownOpponent
	}
	return fmt.Sprintf("%s vs %s", f.SubjectTeam, opp)
}

// Validate reports a broken role invariant.
func (f MatchFact) Validate() error {
	switch f.Role {
	case RoleUpcoming:
		if f.Score != "" {
			return errors.Newf("upcoming match for %s carries a score", f.SubjectTeam)
		}
	case RoleCompleted:
		if f.Opponent == "" || f.Score == "" {
			return errors.Newf("completed match for %s is missing opponent or score", f.SubjectTeam)
		}
	default:
		return errors.Newf("match for %s has no role", f.SubjectTeam)
	}
	return nil
}

// Record is the sensor view of a MatchFact. Absent values encode as JSON null.
type Record struct {
	ID     string  `json:"id"`
	Match  *string `json:"match"`
	Format *string `json:"format"`
	Date   *string `json:"date"`
	Event  *string `json:"event"`
	Score  *string `json:"score,omitempty"`
}

// SensorOutput is everything the display layer receives for one team.
type SensorOutput struct {
	Team string `json:"team"`
	Page string `json:"page"`
	Next Record `json:"next"`
	Last Record `json:"last"`
}

// Record renders the fact for display. Dates use timezone.DisplayLayout in the
// location ScheduledAt already carries.
func (f MatchFact) Record(id string) Record {
	rec := Record{ID: id}
	if f.Unavailable {
		return rec
	}
	rec.Match = ptr(f.Title())
	if f.NoUpcoming {
		return rec
	}
	if f.Format != format.Unknown {
		rec.Format = ptr(string(f.Format))
	}
	if f.ScheduledAt != nil {
		rec.Date = ptr(f.ScheduledAt.Format(timezone.DisplayLayout))
	}
	if f.Tournament != "" {
		rec.Event = ptr(f.Tournament)
	}
	if f.Role == RoleCompleted {
		rec.Score = ptr(f.Score)
	}
	return rec
}

// Output renders both facts of a result with sensor IDs of the form
// liquipedia_cs_<team>_next and liquipedia_cs_<team>_last.
func (r TeamResult) Output() SensorOutput {
	key := r.Team.Key()
	return SensorOutput{
		Team: r.Team.Name,
		Page: r.Team.Page,
		Next: r.Next.Record(fmt.Sprintf("liquipedia_cs_%s_next", key)),
		Last: r.Last.Record(fmt.Sprintf("liquipedia_cs_%s_last", key)),
	}
}

func ptr(s string) *string {
	return &s
}
