package pipeline

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pfrederiksen/liquipedia-cs/internal/format"
	"github.com/pfrederiksen/liquipedia-cs/internal/logger"
	"github.com/pfrederiksen/liquipedia-cs/internal/match"
	"github.com/pfrederiksen/liquipedia-cs/internal/scraper"
)

const vitalityMatches = `<html><body>
<table class="wikitable">
	<tr><th>Date</th><th>Tier</th><th>Type</th><th></th><th>Tournament</th><th>Participant</th><th>Score</th><th>vs. Opponent</th></tr>
	<tr>
		<td><span class="timer-object" data-timestamp="1749915900">June 14, 2025 - 15:45 UTC</span></td>
		<td>S-Tier</td><td>Offline</td><td></td>
		<td><a href="/counterstrike/IEM/Cologne/2025">IEM Cologne 2025</a></td>
		<td>Vitality</td><td>2&nbsp;:&nbsp;1</td>
		<td><a href="/counterstrike/Natus_Vincere">NAVI</a></td>
	</tr>
</table>
</body></html>`

const naviMatches = `<html><body>
<table class="wikitable">
	<tr><th>Date</th><th>Time</th><th>Tier</th><th>Type</th><th>Tournament</th><th>Score</th><th>Opponent</th></tr>
	<tr><td>Jun 14, 2025</td><td>15:45 CDT</td><td>S</td><td>LAN</td><td>BLAST Groups</td><td>0:1</td><td>FaZe</td></tr>
</table>
</body></html>`

const fixtures = `<html><body>
<table class="infobox_matches_content">
	<tr>
		<td class="team-left"><a href="/counterstrike/Team_Vitality">Vitality</a></td>
		<td class="versus"><abbr title="Best of 3">Bo3</abbr></td>
		<td class="team-right"><a href="/counterstrike/G2_Esports">G2</a></td>
	</tr>
	<tr>
		<td colspan="3">
			<span class="timer-object">June 20, 2025 - 18:00 CEST</span>
			<div class="text-nowrap"><a href="/counterstrike/IEM/Cologne/2025">IEM Cologne 2025</a></div>
		</td>
	</tr>
</table>
</body></html>`

type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) FetchTeamMatches(ctx context.Context, page string) (*goquery.Document, error) {
	args := m.Called(ctx, page)
	doc, _ := args.Get(0).(*goquery.Document)
	return doc, args.Error(1)
}

func (m *mockFetcher) FetchFixtures(ctx context.Context) (*goquery.Document, error) {
	args := m.Called(ctx)
	doc, _ := args.Get(0).(*goquery.Document)
	return doc, args.Error(1)
}

func (m *mockFetcher) TeamPath(page string) string {
	return "/counterstrike/" + page
}

func doc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	d, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return d
}

var teams = []match.Team{
	{Page: "Team_Vitality", Name: "Vitality"},
	{Page: "Natus_Vincere", Name: "NAVI"},
}

func newPipeline(f Fetcher) *Pipeline {
	return New(Options{
		Fetcher:  f,
		Teams:    teams,
		TTL:      time.Hour,
		Location: time.UTC,
		Logger:   logger.NewNop(),
	})
}

func TestGetTeamResult(t *testing.T) {
	f := &mockFetcher{}
	f.On("FetchTeamMatches", mock.Anything, "Team_Vitality").Return(doc(t, vitalityMatches), nil).Once()
	f.On("FetchFixtures", mock.Anything).Return(doc(t, fixtures), nil).Once()

	res := newPipeline(f).GetTeamResult(context.Background(), "Team_Vitality")

	require.Equal(t, "Vitality", res.Team.Name)

	last := res.Last
	require.Equal(t, match.RoleCompleted, last.Role)
	require.Equal(t, "NAVI", last.Opponent)
	require.Equal(t, "Vitality 2:1 NAVI", last.Score)
	require.Equal(t, format.Bo3, last.Format)
	require.Equal(t, format.SourceScore, last.FormatSource)
	require.Equal(t, "IEM Cologne 2025", last.Tournament)
	require.NotNil(t, last.ScheduledAt)
	require.True(t, last.ScheduledAt.Equal(time.Date(2025, 6, 14, 15, 45, 0, 0, time.UTC)))
	require.NoError(t, last.Validate())

	next := res.Next
	require.Equal(t, match.RoleUpcoming, next.Role)
	require.Equal(t, "G2", next.Opponent)
	require.Equal(t, format.Bo3, next.Format)
	require.Equal(t, format.SourceLabel, next.FormatSource)
	require.Equal(t, "IEM Cologne 2025", next.Tournament)
	require.NotNil(t, next.ScheduledAt)
	require.True(t, next.ScheduledAt.Equal(time.Date(2025, 6, 20, 16, 0, 0, 0, time.UTC)))
	require.Empty(t, next.Score)
	require.NoError(t, next.Validate())

	out := res.Output()
	require.Equal(t, "Vitality vs G2", *out.Next.Match)
	require.Equal(t, "16:00 20/06/2025", *out.Next.Date)
	require.Equal(t, "15:45 14/06/2025", *out.Last.Date)

	f.AssertExpectations(t)
}

func TestGetTeamResult_NoUpcoming(t *testing.T) {
	f := &mockFetcher{}
	f.On("FetchTeamMatches", mock.Anything, "Natus_Vincere").Return(doc(t, naviMatches), nil).Once()
	f.On("FetchFixtures", mock.Anything).Return(doc(t, fixtures), nil).Once()

	res := newPipeline(f).GetTeamResult(context.Background(), "Natus_Vincere")

	next := res.Next
	require.True(t, next.NoUpcoming)
	require.Empty(t, next.Opponent)
	require.Nil(t, next.ScheduledAt)
	require.Empty(t, next.Tournament)
	require.Equal(t, format.Unknown, next.Format)

	rec := res.Output().Next
	require.NotNil(t, rec.Match)
	require.Equal(t, match.NoUpcomingMatch, *rec.Match)
	require.Nil(t, rec.Format)
	require.Nil(t, rec.Date)
	require.Nil(t, rec.Event)
	require.Nil(t, rec.Score)

	last := res.Last
	require.Equal(t, "FaZe", last.Opponent)
	require.Equal(t, "NAVI 0:1 FaZe", last.Score)
	require.Equal(t, format.Bo1, last.Format)
	require.True(t, last.ScheduledAt.Equal(time.Date(2025, 6, 14, 20, 45, 0, 0, time.UTC)))
}

func TestGetTeamResult_SharesFixturesPage(t *testing.T) {
	f := &mockFetcher{}
	f.On("FetchTeamMatches", mock.Anything, "Team_Vitality").Return(doc(t, vitalityMatches), nil).Once()
	f.On("FetchTeamMatches", mock.Anything, "Natus_Vincere").Return(doc(t, naviMatches), nil).Once()
	f.On("FetchFixtures", mock.Anything).Return(doc(t, fixtures), nil).Once()

	p := newPipeline(f)
	ctx := context.Background()
	p.GetTeamResult(ctx, "Team_Vitality")
	p.GetTeamResult(ctx, "Natus_Vincere")
	p.GetTeamResult(ctx, "Team_Vitality")

	f.AssertNumberOfCalls(t, "FetchFixtures", 1)
	f.AssertNumberOfCalls(t, "FetchTeamMatches", 2)
}

func TestGetTeamResult_UpstreamDown(t *testing.T) {
	f := &mockFetcher{}
	down := errors.Mark(errors.New("connection refused"), scraper.ErrNetwork)
	f.On("FetchTeamMatches", mock.Anything, "Team_Vitality").Return(nil, down)
	f.On("FetchFixtures", mock.Anything).Return(nil, down)

	res := newPipeline(f).GetTeamResult(context.Background(), "Team_Vitality")

	require.True(t, res.Next.Unavailable)
	require.Equal(t, match.RoleUpcoming, res.Next.Role)
	require.Equal(t, match.UnknownOpponent, res.Last.Opponent)
	require.Equal(t, match.UnknownScore, res.Last.Score)
	require.NoError(t, res.Last.Validate())

	out := res.Output()
	require.Nil(t, out.Next.Match)
	require.Equal(t, "Vitality vs Unknown", *out.Last.Match)
}

func TestGetTeamResult_MalformedTeamPage(t *testing.T) {
	f := &mockFetcher{}
	f.On("FetchTeamMatches", mock.Anything, "Team_Vitality").Return(doc(t, `<html><body><p>maintenance</p></body></html>`), nil)
	f.On("FetchFixtures", mock.Anything).Return(doc(t, fixtures), nil)

	res := newPipeline(f).GetTeamResult(context.Background(), "Team_Vitality")

	require.Equal(t, match.UnknownScore, res.Last.Score)
	require.Equal(t, "G2", res.Next.Opponent)
}

func TestRefreshAll(t *testing.T) {
	f := &mockFetcher{}
	f.On("FetchTeamMatches", mock.Anything, "Team_Vitality").Return(doc(t, vitalityMatches), nil).Once()
	f.On("FetchTeamMatches", mock.Anything, "Natus_Vincere").Return(doc(t, naviMatches), nil).Once()
	f.On("FetchFixtures", mock.Anything).Return(doc(t, fixtures), nil).Once()

	p := newPipeline(f)
	ctx := context.Background()

	first := p.Results(ctx)
	require.Len(t, first, 2)
	require.Equal(t, "Vitality", first[0].Team.Name)
	require.Equal(t, "NAVI", first[1].Team.Name)

	// The second round fails upstream; RefreshAll must refetch and fall back
	// to the previous values.
	down := errors.Mark(errors.New("timeout"), scraper.ErrNetwork)
	f.On("FetchTeamMatches", mock.Anything, mock.Anything).Return(nil, down)
	f.On("FetchFixtures", mock.Anything).Return(nil, down)

	refreshed := p.RefreshAll(ctx)
	require.Len(t, refreshed, 2)
	require.Equal(t, first[0].Last, refreshed[0].Last)
	require.Equal(t, "G2", refreshed[0].Next.Opponent)
	require.True(t, refreshed[1].Next.NoUpcoming)

	f.AssertNumberOfCalls(t, "FetchFixtures", 2)
	f.AssertNumberOfCalls(t, "FetchTeamMatches", 4)
}

func TestResults_UpstreamDownFetchesEachPageOnce(t *testing.T) {
	f := &mockFetcher{}
	down := errors.Mark(errors.New("connection refused"), scraper.ErrNetwork)
	f.On("FetchTeamMatches", mock.Anything, mock.Anything).Return(nil, down)
	f.On("FetchFixtures", mock.Anything).Return(nil, down)

	p := newPipeline(f)
	ctx := context.Background()
	for _, res := range p.Results(ctx) {
		require.True(t, res.Next.Unavailable)
	}
	p.Results(ctx)

	f.AssertNumberOfCalls(t, "FetchFixtures", 1)
	f.AssertNumberOfCalls(t, "FetchTeamMatches", 2)
}

func TestGetTeamResult_LinkOutsideTeamCell(t *testing.T) {
	f := &mockFetcher{}
	f.On("FetchTeamMatches", mock.Anything, "Team_Vitality").Return(doc(t, vitalityMatches), nil)
	f.On("FetchFixtures", mock.Anything).Return(doc(t, `<table>
		<tr><td class="team-center"><a href="/counterstrike/Team_Vitality">Vitality</a></td>
			<td class="versus"><abbr>Bo5</abbr></td>
			<td><a href="/counterstrike/FaZe_Clan">FaZe</a></td></tr>
		<tr><td><span class="timer-object" data-timestamp="1750435200">June 20, 2025 - 16:00 UTC</span>
			<div class="text-nowrap">IEM Cologne 2025</div></td></tr>
	</table>`), nil)

	next := newPipeline(f).GetTeamResult(context.Background(), "Team_Vitality").Next

	require.False(t, next.NoUpcoming)
	require.Empty(t, next.Opponent)
	require.Equal(t, format.Bo5, next.Format)
	require.Equal(t, "IEM Cologne 2025", next.Tournament)
	require.NotNil(t, next.ScheduledAt)
	require.True(t, next.ScheduledAt.Equal(time.Unix(1750435200, 0)))
}

func TestTeam_Untracked(t *testing.T) {
	p := newPipeline(&mockFetcher{})
	team, ok := p.Team("Some_Team")
	require.False(t, ok)
	require.Equal(t, "Some_Team", team.Name)
}

func TestNormalizeNext_TBD(t *testing.T) {
	f := &mockFetcher{}
	f.On("FetchTeamMatches", mock.Anything, "Team_Vitality").Return(doc(t, vitalityMatches), nil)
	f.On("FetchFixtures", mock.Anything).Return(doc(t, `<table>
		<tr><td class="team-left"><a href="/counterstrike/Team_Vitality">Vitality</a></td>
			<td class="versus">vs</td>
			<td class="team-right">TBD</td></tr>
		<tr><td><span class="timer-object">TBD</span><div class="text-nowrap">Major Stage 2</div></td></tr>
	</table>`), nil)

	next := newPipeline(f).GetTeamResult(context.Background(), "Team_Vitality").Next

	require.False(t, next.NoUpcoming)
	require.Empty(t, next.Opponent)
	require.Nil(t, next.ScheduledAt)
	require.Equal(t, format.Bo1, next.Format)
	require.Equal(t, format.SourceTournament, next.FormatSource)
	require.Equal(t, "Vitality vs Unknown", next.Title())
}
