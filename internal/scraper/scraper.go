package scraper

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/cenkalti/backoff/v4"
	"github.com/cockroachdb/errors"

	"github.com/pfrederiksen/liquipedia-cs/internal/logger"
	"github.com/pfrederiksen/liquipedia-cs/internal/metrics"
)

const (
	BaseURL        = "https://liquipedia.net"
	Wiki           = "counterstrike"
	FixturesPage   = "Liquipedia:Matches"
	UserAgent      = "liquipedia-cs/1.0 (github.com/pfrederiksen/liquipedia-cs)"
	Accept         = "text/html,application/xhtml+xml,application/xml"
	AcceptLanguage = "fr,fr-FR;q=0.9,en;q=0.8,en-US;q=0.7"
	Timeout        = 10 * time.Second
	MaxRetries     = 1

	// maxBodyBytes caps how much of a page is read.
	maxBodyBytes = 8 << 20
)

// ErrNetwork marks every failure to obtain a page: transport errors, timeouts
// and non-2xx responses.
var ErrNetwork = errors.New("network error")

// Metric target labels.
const (
	targetTeam     = "team"
	targetFixtures = "fixtures"
)

// Config controls the client. Zero fields take the package defaults, except
// MaxRetries where zero disables retrying.
type Config struct {
	BaseURL    string
	Wiki       string
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int
	// RetryWait is the first backoff interval; it doubles on each retry.
	RetryWait time.Duration
	Logger    *logger.Logger
	Recorder  *metrics.Recorder
}

// Client fetches Liquipedia pages and parses them into documents.
type Client struct {
	client     *http.Client
	baseURL    string
	wiki       string
	userAgent  string
	maxRetries int
	retryWait  time.Duration
	log        *logger.Logger
	recorder   *metrics.Recorder
}

// New creates a Client.
func New(cfg Config) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		wiki:       strings.Trim(cfg.Wiki, "/"),
		userAgent:  cfg.UserAgent,
		maxRetries: cfg.MaxRetries,
		retryWait:  cfg.RetryWait,
		log:        cfg.Logger,
		recorder:   cfg.Recorder,
	}
	if c.baseURL == "" {
		c.baseURL = BaseURL
	}
	if c.wiki == "" {
		c.wiki = Wiki
	}
	if c.userAgent == "" {
		c.userAgent = UserAgent
	}
	if c.maxRetries < 0 {
		c.maxRetries = 0
	}
	if c.retryWait <= 0 {
		c.retryWait = 500 * time.Millisecond
	}
	if c.log == nil {
		c.log = logger.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = Timeout
	}
	c.client = &http.Client{Timeout: timeout}
	return c
}

// TeamPath is the href the fixtures page uses to link to a team, e.g.
// "/counterstrike/Team_Vitality".
func (c *Client) TeamPath(page string) string {
	return "/" + c.wiki + "/" + page
}

// TeamMatchesURL is the team's match history page.
func (c *Client) TeamMatchesURL(page string) string {
	return c.baseURL + "/" + c.wiki + "/" + url.PathEscape(page) + "/Matches"
}

// FixturesURL is the shared upcoming-matches page.
func (c *Client) FixturesURL() string {
	return c.baseURL + "/" + c.wiki + "/" + FixturesPage
}

// FetchTeamMatches fetches and parses a team's match history page.
func (c *Client) FetchTeamMatches(ctx context.Context, page string) (*goquery.Document, error) {
	return c.fetch(ctx, targetTeam, c.TeamMatchesURL(page))
}

// FetchFixtures fetches and parses the upcoming-matches page.
func (c *Client) FetchFixtures(ctx context.Context) (*goquery.Document, error) {
	return c.fetch(ctx, targetFixtures, c.FixturesURL())
}

func (c *Client) fetch(ctx context.Context, target, pageURL string) (*goquery.Document, error) {
	var doc *goquery.Document
	op := func() error {
		d, err := c.fetchOnce(ctx, target, pageURL)
		if err != nil {
			return err
		}
		doc = d
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retryWait
	policy.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.maxRetries)), ctx)

	notify := func(err error, wait time.Duration) {
		c.log.Warn("Fetch failed, retrying", logger.Fields{
			"url":  pageURL,
			"wait": wait.String(),
		}, err)
	}
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		return nil, err
	}
	return doc, nil
}

// fetchOnce makes one request. Errors that a retry cannot fix are wrapped in
// backoff.Permanent.
func (c *Client) fetchOnce(ctx context.Context, target, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, backoff.Permanent(errors.Wrap(err, "creating request"))
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", Accept)
	req.Header.Set("Accept-Language", AcceptLanguage)

	resp, err := c.client.Do(req)
	if err != nil {
		c.recorder.RecordHTTPRequest(target, 0)
		err = errors.Mark(errors.Wrapf(err, "fetching %s", pageURL), ErrNetwork)
		if ctx.Err() != nil {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}
	defer resp.Body.Close()
	c.recorder.RecordHTTPRequest(target, resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		err := errors.Mark(errors.Newf("unexpected status code %d from %s", resp.StatusCode, pageURL), ErrNetwork)
		if resp.StatusCode >= 500 {
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "reading %s", pageURL), ErrNetwork)
	}

	c.log.Debug("Fetched page", logger.Fields{
		"url":    pageURL,
		"status": resp.StatusCode,
	})
	return doc, nil
}
