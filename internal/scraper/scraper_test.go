package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/pfrederiksen/liquipedia-cs/internal/logger"
)

const page = `<html><body><table><tr><th>Date</th><th>Score</th></tr></table></body></html>`

func newTestClient(srv *httptest.Server, retries int) *Client {
	return New(Config{
		BaseURL:    srv.URL,
		MaxRetries: retries,
		RetryWait:  time.Millisecond,
		Logger:     logger.NewNop(),
	})
}

func TestURLs(t *testing.T) {
	c := New(Config{})

	if got, want := c.TeamMatchesURL("Team_Vitality"), "https://liquipedia.net/counterstrike/Team_Vitality/Matches"; got != want {
		t.Errorf("TeamMatchesURL = %q, want %q", got, want)
	}
	if got, want := c.FixturesURL(), "https://liquipedia.net/counterstrike/Liquipedia:Matches"; got != want {
		t.Errorf("FixturesURL = %q, want %q", got, want)
	}
	if got, want := c.TeamPath("Team_Vitality"), "/counterstrike/Team_Vitality"; got != want {
		t.Errorf("TeamPath = %q, want %q", got, want)
	}
}

func TestURLs_CustomBase(t *testing.T) {
	c := New(Config{BaseURL: "http://example.test/", Wiki: "/valorant/"})
	if got, want := c.FixturesURL(), "http://example.test/valorant/Liquipedia:Matches"; got != want {
		t.Errorf("FixturesURL = %q, want %q", got, want)
	}
}

func TestFetchTeamMatches(t *testing.T) {
	var gotPath, gotUA, gotAccept, gotLang string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		gotLang = r.Header.Get("Accept-Language")
		_, _ = w.Write([]byte(page))
	}))
	defer srv.Close()

	doc, err := newTestClient(srv, 0).FetchTeamMatches(context.Background(), "Team_Vitality")
	if err != nil {
		t.Fatalf("FetchTeamMatches: %v", err)
	}
	if doc.Find("th").Length() != 2 {
		t.Errorf("parsed document has %d header cells, want 2", doc.Find("th").Length())
	}
	if gotPath != "/counterstrike/Team_Vitality/Matches" {
		t.Errorf("path = %q", gotPath)
	}
	if gotUA != UserAgent {
		t.Errorf("User-Agent = %q, want %q", gotUA, UserAgent)
	}
	if gotAccept != Accept || gotLang != AcceptLanguage {
		t.Errorf("Accept = %q, Accept-Language = %q", gotAccept, gotLang)
	}
}

func TestFetch_ClientErrorIsPermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := newTestClient(srv, 3).FetchFixtures(context.Background())
	if err == nil {
		t.Fatal("expected error for 404")
	}
	if !errors.Is(err, ErrNetwork) {
		t.Errorf("error %v is not ErrNetwork", err)
	}
	if calls.Load() != 1 {
		t.Errorf("server called %d times, want 1", calls.Load())
	}
}

func TestFetch_RetriesServerErrors(t *testing.T) {
	tests := []struct {
		name      string
		failures  int32
		retries   int
		wantErr   bool
		wantCalls int32
	}{
		{"recovers after one failure", 1, 1, false, 2},
		{"gives up after retries", 5, 1, true, 2},
		{"no retries", 1, 0, true, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if calls.Add(1) <= tt.failures {
					w.WriteHeader(http.StatusBadGateway)
					return
				}
				_, _ = w.Write([]byte(page))
			}))
			defer srv.Close()

			_, err := newTestClient(srv, tt.retries).FetchFixtures(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrNetwork) {
				t.Errorf("error %v is not ErrNetwork", err)
			}
			if calls.Load() != tt.wantCalls {
				t.Errorf("server called %d times, want %d", calls.Load(), tt.wantCalls)
			}
		})
	}
}

func TestFetch_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Timeout: 20 * time.Millisecond, Logger: logger.NewNop()})
	_, err := c.FetchFixtures(context.Background())
	if !errors.Is(err, ErrNetwork) {
		t.Errorf("err = %v, want ErrNetwork", err)
	}
}

func TestFetch_CancelledContext(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(page))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := newTestClient(srv, 3).FetchFixtures(ctx); err == nil {
		t.Fatal("expected error for cancelled context")
	}
	if calls.Load() != 0 {
		t.Errorf("server called %d times, want 0", calls.Load())
	}
}
