package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/pfrederiksen/liquipedia-cs/internal/httpapi"
	"github.com/pfrederiksen/liquipedia-cs/internal/logger"
	"github.com/pfrederiksen/liquipedia-cs/internal/match"
	"github.com/pfrederiksen/liquipedia-cs/internal/pipeline"
	"github.com/pfrederiksen/liquipedia-cs/internal/poller"
	"github.com/pfrederiksen/liquipedia-cs/internal/storage"
)

const (
	ExitSuccess = 0
	ExitError   = 1
)

var (
	flagConfig  string
	flagTeam    string
	flagFormat  string
	flagSort    string
	flagAddr    string
	flagDataDir string
	flagVerbose bool
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "liquipedia-cs",
		Short: "Track next and last Counter-Strike matches from Liquipedia",
		Long: `A tool that scrapes Liquipedia for the next and last match of each tracked
Counter-Strike team. Pages are cached for the poll interval and served stale
when Liquipedia cannot be reached.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&flagConfig, "config", "teams.yaml", "Path to the YAML config file")
	cmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "Enable verbose logging")

	cmd.AddCommand(newCheckCmd(), newWatchCmd(), newServeCmd())
	return cmd
}

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Fetch and print every tracked team's next and last match once",
		RunE:  runCheck,
	}
	cmd.Flags().StringVar(&flagTeam, "team", "", "Only check this team page (e.g. Team_Vitality)")
	cmd.Flags().StringVar(&flagFormat, "format", "text", "Output format: text or json")
	cmd.Flags().StringVar(&flagSort, "sort", "config", "Sort order: config, name or next")
	return cmd
}

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll on the configured interval and print each round (SIGUSR1 forces a refresh)",
		RunE:  runWatch,
	}
	cmd.Flags().StringVar(&flagFormat, "format", "text", "Output format: text or json")
	cmd.Flags().StringVar(&flagDataDir, "data-dir", "", "Also write each round to <dir>/state.json")
	return cmd
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Poll on the configured interval and serve results over HTTP",
		RunE:  runServe,
	}
	cmd.Flags().StringVar(&flagAddr, "addr", "", "Listen address (default from config, :8080)")
	cmd.Flags().StringVar(&flagDataDir, "data-dir", "", "Also write each round to <dir>/state.json")
	return cmd
}

func parseFormat(s string) (OutputFormat, error) {
	format := OutputFormat(strings.ToLower(strings.TrimSpace(s)))
	if format != FormatText && format != FormatJSON {
		return "", errors.Newf("invalid format: %s (must be 'text' or 'json')", s)
	}
	return format, nil
}

// runCheck fetches once and prints the results
func runCheck(cmd *cobra.Command, args []string) error {
	format, err := parseFormat(flagFormat)
	if err != nil {
		return err
	}
	order := SortOrder(strings.ToLower(flagSort))
	if !validSortOrder(order) {
		return errors.Newf("invalid sort order: %s (must be 'config', 'name' or 'next')", flagSort)
	}

	a, err := newApp(flagConfig, flagVerbose, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.log.Sync()

	var results []match.TeamResult
	if flagTeam != "" {
		if _, ok := a.cfg.Team(flagTeam); !ok {
			return errors.Newf("team %q is not in %s", flagTeam, flagConfig)
		}
		results = []match.TeamResult{a.pipeline.GetTeamResult(cmd.Context(), flagTeam)}
	} else {
		results = a.pipeline.Results(cmd.Context())
	}
	sortResults(results, order)

	if err := WriteOutput(cmd.OutOrStdout(), NewOutputResult(results, time.Now(), false), format, flagVerbose); err != nil {
		return errors.Wrap(err, "writing output")
	}
	return nil
}

// runWatch polls until interrupted, printing every round
func runWatch(cmd *cobra.Command, args []string) error {
	format, err := parseFormat(flagFormat)
	if err != nil {
		return err
	}
	a, err := newApp(flagConfig, flagVerbose, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.log.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	save, err := stateSink(flagDataDir, a.log)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	sink := func(results []match.TeamResult, forced bool) {
		if err := WriteOutput(out, NewOutputResult(results, time.Now(), forced), format, flagVerbose); err != nil {
			a.log.Warn("Failed to write output", nil, err)
		}
		save(results, forced)
	}
	p := poller.New(a.pipeline, sink, a.log, a.cfg.PollInterval)
	return runPoller(ctx, p, a.log, nil)
}

// runServe polls and serves the HTTP API until interrupted
func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp(flagConfig, flagVerbose, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.log.Sync()

	addr := flagAddr
	if addr == "" {
		addr = a.cfg.ListenAddr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	save, err := stateSink(flagDataDir, a.log)
	if err != nil {
		return err
	}
	p := poller.New(a.pipeline, save, a.log, a.cfg.PollInterval)
	handler := httpapi.NewHandler(polledService{a.pipeline, p}, a.log, a.registry, p.Status)

	return runPoller(ctx, p, a.log, func(ctx context.Context) error {
		return httpapi.Serve(ctx, addr, handler.Routes(), a.log)
	})
}

// polledService sends forced refreshes through the poller so its status and
// sink record them.
type polledService struct {
	*pipeline.Pipeline
	poller *poller.Poller
}

func (s polledService) RefreshAll(ctx context.Context) []match.TeamResult {
	return s.poller.Refresh(ctx)
}

// stateSink saves every round to dataDir. An empty dataDir saves nothing.
func stateSink(dataDir string, log *logger.Logger) (poller.Sink, error) {
	if dataDir == "" {
		return func([]match.TeamResult, bool) {}, nil
	}
	store, err := storage.New(dataDir)
	if err != nil {
		return nil, err
	}
	if prev, err := store.LoadState(); err != nil {
		log.Warn("Previous state file is unreadable and will be replaced", logger.Fields{"path": store.Path()}, err)
	} else if !prev.UpdatedAt.IsZero() {
		log.Info("Replacing previous state", logger.Fields{
			"path":       store.Path(),
			"updated_at": prev.UpdatedAt.Format(time.RFC3339),
			"teams":      len(prev.Teams),
		})
	}
	log.Info("Writing state file", logger.Fields{"path": store.Path()})
	return func(results []match.TeamResult, _ bool) {
		if err := store.SaveResults(results); err != nil {
			log.Warn("Failed to save state file", logger.Fields{"path": store.Path()}, err)
		}
	}, nil
}

// runPoller starts p, forwards refresh signals to it and runs extra alongside
// it until ctx is done or extra fails.
func runPoller(ctx context.Context, p *poller.Poller, log *logger.Logger, extra func(context.Context) error) error {
	g, ctx := errgroup.WithContext(ctx)

	p.Start(ctx)
	g.Go(func() error {
		forwardRefreshSignals(ctx, p, log)
		return nil
	})
	if extra != nil {
		g.Go(func() error { return extra(ctx) })
	}
	g.Go(func() error {
		<-ctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return p.Stop(stopCtx)
	})
	return g.Wait()
}

func forwardRefreshSignals(ctx context.Context, p *poller.Poller, log *logger.Logger) {
	sigs := refreshSignals()
	if sigs == nil {
		<-ctx.Done()
		return
	}
	defer signal.Stop(sigs)
	for {
		select {
		case <-ctx.Done():
			return
		case <-sigs:
			queued := p.Trigger()
			log.Info("Refresh signal received", logger.Fields{"queued": queued})
		}
	}
}

// Execute runs the CLI
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitError)
	}
}
