package cli

import (
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/pfrederiksen/liquipedia-cs/internal/config"
	"github.com/pfrederiksen/liquipedia-cs/internal/logger"
	"github.com/pfrederiksen/liquipedia-cs/internal/metrics"
	"github.com/pfrederiksen/liquipedia-cs/internal/pipeline"
	"github.com/pfrederiksen/liquipedia-cs/internal/scraper"
)

// app holds the components every command shares.
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	registry *prometheus.Registry
	pipeline *pipeline.Pipeline
}

// newApp loads the config file and wires the pipeline. Logs go to logOut.
func newApp(path string, verbose bool, logOut io.Writer) (*app, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	level := logger.ParseLevel(cfg.LogLevel)
	if verbose {
		level = logger.LevelDebug
	}
	if logOut == nil {
		logOut = os.Stderr
	}
	log := logger.New(level, logOut)
	logger.SetDefault(log)

	loc, err := cfg.Location()
	if err != nil {
		return nil, errors.Wrap(err, "resolving display timezone")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.NewRecorder(reg)

	client := scraper.New(scraper.Config{
		BaseURL:    cfg.BaseURL,
		Wiki:       cfg.Wiki,
		UserAgent:  cfg.UserAgent,
		Timeout:    cfg.Timeout,
		MaxRetries: cfg.Retries(),
		Logger:     log,
		Recorder:   rec,
	})

	p := pipeline.New(pipeline.Options{
		Fetcher:  client,
		Teams:    cfg.Teams,
		TTL:      cfg.PollInterval,
		Location: loc,
		Workers:  cfg.RefreshWorkers,
		Logger:   log,
		Recorder: rec,
	})

	log.Debug("Configuration loaded", logger.Fields{
		"config":        path,
		"teams":         len(cfg.Teams),
		"poll_interval": cfg.PollInterval.String(),
		"timezone":      loc.String(),
	})

	return &app{cfg: cfg, log: log, registry: reg, pipeline: p}, nil
}
