package httpapi

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pfrederiksen/liquipedia-cs/internal/logger"
	"github.com/pfrederiksen/liquipedia-cs/internal/match"
	"github.com/pfrederiksen/liquipedia-cs/internal/metrics"
	"github.com/pfrederiksen/liquipedia-cs/internal/poller"
)

type fakeService struct {
	teams     []match.Team
	refreshes int
}

func (f *fakeService) result(t match.Team) match.TeamResult {
	return match.TeamResult{
		Team: t,
		Next: match.NewNoUpcoming(t.Name),
		Last: match.NewUnknownLast(t.Name),
	}
}

func (f *fakeService) Results(context.Context) []match.TeamResult {
	out := make([]match.TeamResult, 0, len(f.teams))
	for _, t := range f.teams {
		out = append(out, f.result(t))
	}
	return out
}

func (f *fakeService) RefreshAll(ctx context.Context) []match.TeamResult {
	f.refreshes++
	return f.Results(ctx)
}

func (f *fakeService) GetTeamResult(_ context.Context, page string) match.TeamResult {
	t, _ := f.Team(page)
	return f.result(t)
}

func (f *fakeService) Team(page string) (match.Team, bool) {
	for _, t := range f.teams {
		if t.Page == page {
			return t, true
		}
	}
	return match.Team{Page: page, Name: page}, false
}

func newTestHandler() (*Handler, *fakeService) {
	svc := &fakeService{teams: []match.Team{
		{Page: "Team_Vitality", Name: "Vitality"},
		{Page: "Natus_Vincere", Name: "NAVI"},
	}}
	reg := prometheus.NewRegistry()
	metrics.NewRecorder(reg)
	status := func() poller.Status { return poller.Status{Cycles: 2, Teams: 2} }
	return NewHandler(svc, logger.NewNop(), reg, status), svc
}

func do(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestTeams(t *testing.T) {
	h, _ := newTestHandler()
	rec := do(t, h.Routes(), http.MethodGet, "/api/teams")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var got []match.SensorOutput
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if len(got) != 2 || got[0].Team != "Vitality" || got[1].Page != "Natus_Vincere" {
		t.Errorf("got %+v", got)
	}
	if got[0].Next.ID != "liquipedia_cs_vitality_next" {
		t.Errorf("next id = %q", got[0].Next.ID)
	}
}

func TestTeam(t *testing.T) {
	h, _ := newTestHandler()

	rec := do(t, h.Routes(), http.MethodGet, "/api/teams/Team_Vitality")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got match.SensorOutput
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if got.Next.Match == nil || *got.Next.Match != match.NoUpcomingMatch {
		t.Errorf("next.match = %v", got.Next.Match)
	}

	rec = do(t, h.Routes(), http.MethodGet, "/api/teams/Unknown_Team")
	if rec.Code != http.StatusNotFound {
		t.Errorf("untracked team status = %d, want 404", rec.Code)
	}
}

func TestRefresh(t *testing.T) {
	h, svc := newTestHandler()

	if rec := do(t, h.Routes(), http.MethodGet, "/api/refresh"); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /api/refresh status = %d, want 405", rec.Code)
	}
	if rec := do(t, h.Routes(), http.MethodPost, "/api/refresh"); rec.Code != http.StatusOK {
		t.Errorf("POST /api/refresh status = %d", rec.Code)
	}
	if svc.refreshes != 1 {
		t.Errorf("RefreshAll called %d times, want 1", svc.refreshes)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	h, _ := newTestHandler()

	rec := do(t, h.Routes(), http.MethodGet, "/healthz")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"cycles":2`) {
		t.Errorf("healthz = %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, h.Routes(), http.MethodGet, "/metrics")
	if rec.Code != http.StatusOK {
		t.Errorf("metrics status = %d", rec.Code)
	}
}

func TestServeListener_ShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	h, _ := newTestHandler()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- serveListener(ctx, ln, h.Routes(), logger.NewNop()) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("serveListener returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
