package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/asfclaim/claimerd/internal/agent"
	"github.com/asfclaim/claimerd/internal/api"
	"github.com/asfclaim/claimerd/internal/codelist"
	"github.com/asfclaim/claimerd/internal/config"
	"github.com/asfclaim/claimerd/internal/cycle"
	"github.com/asfclaim/claimerd/internal/dispatch"
	"github.com/asfclaim/claimerd/internal/domain"
	"github.com/asfclaim/claimerd/internal/gate"
	"github.com/asfclaim/claimerd/internal/metrics"
	"github.com/asfclaim/claimerd/internal/provider"
	"github.com/asfclaim/claimerd/internal/steam"
	"github.com/asfclaim/claimerd/internal/store"
	"github.com/asfclaim/claimerd/internal/worker"
)

var (
	once    bool
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "claimerd",
	Short: "Polls the free-license code list and redeems new codes through the local agent",
	Long: `claimerd watches an upstream list of redeemable product codes, submits
codes it has not processed yet to the local automation agent's command
API, and reports outcomes to an optional webhook sink. State is a flat
JSON file, so the daemon is safe to restart at any time.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run()
	},
}

func init() {
	rootCmd.Flags().BoolVar(&once, "once", false, "run a single claim cycle and exit")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	zapCfg := zap.NewProductionConfig()
	if verbose {
		zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := zapCfg.Build()
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	// ---- configuration ----
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", zap.Error(err))
		return err
	}

	// ---- state ----
	st, err := store.OpenFile(filepath.Join(cfg.DataDir, "claimed.json"))
	if err != nil {
		logger.Error("failed to open processed set", zap.Error(err))
		return err
	}
	logger.Info("processed set loaded", zap.Int("codes", st.Len()))

	// ---- core dependencies ----
	agentClient := agent.NewClient(cfg.AgentURL, cfg.AgentPassword, cfg.AgentTimeout)
	source := codelist.NewHTTPSource(cfg.CodeListURL, cfg.AgentTimeout)
	sender := provider.NewWebhookSender(
		cfg.WebhookURL, cfg.WebhookUsername, cfg.WebhookAvatarURL,
		cfg.NotifySeverities, cfg.AgentTimeout)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := prometheus.NewRegistry()

	var q *dispatch.Queue
	m := metrics.New(reg, func() int {
		if q == nil {
			return 0
		}
		return q.Depth()
	})
	onDelivered, onFailed := m.DispatchHooks()
	q = dispatch.New(sender, cfg.DispatchSpacing, logger, dispatch.Hooks{
		OnDelivered: onDelivered,
		OnFailed:    onFailed,
	})
	q.Start(ctx)

	tracker := cycle.NewTracker()
	onClaimed, onRateLimited, onCompleted := m.CycleHooks()

	var notifier cycle.Notifier
	if sender.Configured() {
		notifier = q
	}

	cyc := cycle.New(source, agentClient, st, notifier, steam.NewClient(cfg.AgentTimeout, logger), tracker,
		cycle.Config{
			Interval:      cfg.ClaimInterval,
			BatchLimit:    cfg.BatchLimit,
			SubmitSpacing: cfg.SubmitSpacing,
			NotifyDetail:  cfg.NotifyDetail,
		},
		logger,
		cycle.Hooks{
			OnClaimed:     onClaimed,
			OnRateLimited: onRateLimited,
			OnCompleted:   onCompleted,
		})

	// ---- connectivity gate ----
	g := gate.New(agentClient, gate.Config{
		ReachAttempts: cfg.ReachAttempts,
		ReachDelay:    cfg.ReachDelay,
		PollInterval:  cfg.ReadyPollInterval,
	}, logger)

	if err := g.WaitReachable(ctx); err != nil {
		return fatal(ctx, logger, q, notifier, err)
	}
	if err := g.WaitReady(ctx); err != nil {
		return fatal(ctx, logger, q, notifier, err)
	}

	// ---- legacy migration ----
	// The one-time backfill marker needs the current candidate list.
	if candidates, err := source.Fetch(ctx); err == nil {
		store.MigrateLegacyMarker(filepath.Join(cfg.DataDir, "lastindex.txt"), candidates, st, logger)
	} else {
		logger.Warn("skipping legacy migration, code list unavailable", zap.Error(err))
	}

	// ---- ops HTTP surface ----
	router := api.NewRouter(tracker, q, reg, logger)
	srv := &http.Server{Addr: ":" + cfg.OpsPort, Handler: router}
	go func() {
		logger.Info("ops server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("ops server error", zap.Error(err))
		}
	}()
	defer srv.Shutdown(context.Background()) //nolint:errcheck

	if once {
		if err := cyc.Run(ctx); err != nil {
			return fatal(ctx, logger, q, notifier, err)
		}
		logger.Info("single cycle complete")
		return nil
	}

	// ---- scheduler ----
	sched := worker.NewScheduler(cyc.Run, cfg.ClaimInterval, logger)
	errCh := make(chan error, 1)
	go func() { errCh <- sched.Run(ctx) }()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info("shutdown signal received")
		cancel()
		<-errCh
		logger.Info("stopped cleanly")
		return nil
	case err := <-errCh:
		if err != nil {
			return fatal(ctx, logger, q, notifier, err)
		}
		return nil
	}
}

// fatal logs the terminal condition and sends a last best-effort
// notification before the non-zero exit. The send shares the dispatch
// queue's ordering, so anything enqueued earlier is attempted first.
func fatal(ctx context.Context, logger *zap.Logger, q *dispatch.Queue, notifier cycle.Notifier, err error) error {
	logger.Error("fatal condition, exiting", zap.Error(err))
	if notifier != nil && !errors.Is(err, context.Canceled) {
		_ = q.Enqueue(ctx, domain.Notification{
			Severity:    domain.SeverityError,
			Title:       "claimerd stopping",
			Description: err.Error(),
		})
	}
	return err
}
