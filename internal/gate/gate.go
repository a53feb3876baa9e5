// Package gate blocks startup until the automation agent is reachable
// and every managed account reports ready.
package gate

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/asfclaim/claimerd/internal/agent"
	"github.com/asfclaim/claimerd/internal/domain"
	"github.com/asfclaim/claimerd/internal/parse"
)

// Config tunes the two gate phases. Sleep is injected so tests can
// observe the retry schedule without real time passing; nil selects the
// real clock.
type Config struct {
	ReachAttempts int
	ReachDelay    time.Duration
	PollInterval  time.Duration
	Sleep         func(ctx context.Context, d time.Duration) error
}

type Gate struct {
	agent  agent.Commander
	cfg    Config
	logger *zap.Logger
}

func New(a agent.Commander, cfg Config, logger *zap.Logger) *Gate {
	if cfg.Sleep == nil {
		cfg.Sleep = sleep
	}
	return &Gate{agent: a, cfg: cfg, logger: logger}
}

// WaitReachable pings the agent up to ReachAttempts times with a fixed
// delay between attempts. Exhausting the attempts is fatal: there is no
// meaningful retry boundary above this layer since the schedule
// interval is hours.
func (g *Gate) WaitReachable(ctx context.Context) error {
	var lastErr error
	for attempt := 1; attempt <= g.cfg.ReachAttempts; attempt++ {
		err := g.agent.Ping(ctx)
		if err == nil {
			g.logger.Info("agent reachable", zap.Int("attempt", attempt))
			return nil
		}
		lastErr = err
		g.logger.Warn("agent not reachable",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", g.cfg.ReachAttempts),
			zap.Error(err))

		if attempt < g.cfg.ReachAttempts {
			if err := g.cfg.Sleep(ctx, g.cfg.ReachDelay); err != nil {
				return err
			}
		}
	}
	return fmt.Errorf("%w: last error: %v", domain.ErrAgentUnreachable, lastErr)
}

// WaitReady polls the aggregate account status until every managed
// account stops reporting "connecting to Steam network". Accounts still
// connecting are an expected transient state and are polled forever; a
// transport failure during the query is fatal immediately, since at
// this point the agent was already proven reachable.
func (g *Gate) WaitReady(ctx context.Context) error {
	for {
		text, err := g.agent.Status(ctx)
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrReadinessQuery, err)
		}

		result := parse.Readiness(text)
		if result.AllReady {
			g.logger.Info("all accounts ready", zap.Int("accounts", len(result.Accounts)))
			return nil
		}

		waiting := make([]string, 0, len(result.Accounts))
		for name, st := range result.Accounts {
			if !st.Ready {
				waiting = append(waiting, name)
			}
		}
		g.logger.Info("accounts still connecting",
			zap.Strings("accounts", waiting),
			zap.Duration("next_poll", g.cfg.PollInterval))

		if err := g.cfg.Sleep(ctx, g.cfg.PollInterval); err != nil {
			return err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
