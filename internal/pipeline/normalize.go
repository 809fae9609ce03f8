package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/pfrederiksen/liquipedia-cs/internal/extract"
	"github.com/pfrederiksen/liquipedia-cs/internal/format"
	"github.com/pfrederiksen/liquipedia-cs/internal/match"
	"github.com/pfrederiksen/liquipedia-cs/internal/timezone"
)

// normalizer turns raw extracted strings into match facts.
type normalizer struct {
	resolver *timezone.Resolver
	loc      *time.Location
}

func (n normalizer) last(team match.Team, raw extract.LastMatch) match.MatchFact {
	if !raw.Complete {
		return match.NewUnknownLast(team.Name)
	}

	fact := match.MatchFact{
		SubjectTeam: team.Name,
		Opponent:    orUnknown(raw.Opponent),
		Role:        match.RoleCompleted,
		Tournament:  absentIfTBD(raw.Tournament),
	}
	fact.Format, fact.FormatSource = format.Resolve(raw.Score, raw.FormatLabel, fact.Tournament)
	fact.Score = n.score(team.Name, fact.Opponent, raw.Score)

	if raw.Timestamp > 0 {
		n.setInstant(&fact, timezone.FromUnix(raw.Timestamp, n.loc))
		return fact
	}
	date, clock, abbr := timezone.SplitTimer(raw.DateText)
	if raw.TimeText != "" {
		if c, a, ok := timezone.SplitClock(raw.TimeText); ok {
			clock = c
			if a != "" {
				abbr = a
			}
		}
	}
	if date = absentIfTBD(date); date != "" {
		n.setInstant(&fact, n.resolver.Resolve(date, clock, abbr, n.loc))
	}
	return fact
}

func (n normalizer) next(team match.Team, up extract.Upcoming) match.MatchFact {
	if !up.Found {
		return match.NewNoUpcoming(team.Name)
	}

	fact := match.MatchFact{
		SubjectTeam: team.Name,
		Opponent:    absentIfTBD(up.Opponent),
		Role:        match.RoleUpcoming,
		Tournament:  absentIfTBD(up.Tournament),
	}
	fact.Format, fact.FormatSource = format.Resolve("", up.FormatLabel, fact.Tournament)

	if up.Timestamp > 0 {
		n.setInstant(&fact, timezone.FromUnix(up.Timestamp, n.loc))
		return fact
	}
	if timer := absentIfTBD(up.TimerText); timer != "" {
		date, clock, abbr := timezone.SplitTimer(timer)
		n.setInstant(&fact, n.resolver.Resolve(date, clock, abbr, n.loc))
	}
	return fact
}

func (n normalizer) setInstant(fact *match.MatchFact, in timezone.Instant) {
	t := in.Time
	fact.ScheduledAt = &t
	fact.TimeReliable = in.Reliable
}

// score formats "Vitality 2:1 NAVI" with the cell's spacing removed. Text that
// is not a numeric score, a walkover "W:FF" say, is kept as written.
func (n normalizer) score(team, opponent, raw string) string {
	raw = strings.Join(strings.Fields(raw), "")
	if raw == "" {
		return match.UnknownScore
	}
	return fmt.Sprintf("%s %s %s", team, raw, opponent)
}

func absentIfTBD(s string) string {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "TBD") || strings.EqualFold(s, "TBA") {
		return ""
	}
	return s
}

func orUnknown(s string) string {
	if s = absentIfTBD(s); s == "" {
		return match.UnknownOpponent
	}
	return s
}
