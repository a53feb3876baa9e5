// Package cycle implements one full claim run: fetch the candidate
// code list, diff against the processed set, submit a bounded batch to
// the agent, classify each response, persist successes, and notify.
package cycle

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/asfclaim/claimerd/internal/agent"
	"github.com/asfclaim/claimerd/internal/codelist"
	"github.com/asfclaim/claimerd/internal/domain"
	"github.com/asfclaim/claimerd/internal/parse"
	"github.com/asfclaim/claimerd/internal/steam"
	"github.com/asfclaim/claimerd/internal/store"
)

// Notifier is the slice of the dispatch queue the cycle needs.
// A nil Notifier disables notifications (and metadata enrichment,
// which exists only to decorate them).
type Notifier interface {
	// Enqueue blocks until the delivery attempt completes.
	Enqueue(ctx context.Context, n domain.Notification) error
	// EnqueueAsync is fire-and-forget.
	EnqueueAsync(n domain.Notification) error
}

// Hooks carries the metric callbacks injected by main (nil = no-op).
type Hooks struct {
	OnClaimed     func()
	OnRateLimited func()
	OnCompleted   func(duration time.Duration)
}

// Config tunes one cycle.
type Config struct {
	// Interval is the external scheduler period, used only to announce
	// the next run time in the end-of-cycle notification.
	Interval time.Duration
	// BatchLimit caps how many new codes one cycle submits.
	BatchLimit int
	// SubmitSpacing is waited before every submission to respect the
	// agent's own throughput limits.
	SubmitSpacing time.Duration
	// NotifyDetail adds the per-account breakdown to success
	// notifications.
	NotifyDetail bool
}

// Cycle is the orchestrator. It is the only component that mutates the
// processed set, and the only one authorized to report a fatal outcome
// (an error wrapping domain.ErrFatal) to the caller.
type Cycle struct {
	source   codelist.Source
	agent    agent.Commander
	store    store.Store
	notifier Notifier
	enrich   steam.Enricher
	tracker  *Tracker
	pacer    *rate.Limiter
	cfg      Config
	logger   *zap.Logger
	hooks    Hooks
}

func New(
	source codelist.Source,
	a agent.Commander,
	s store.Store,
	notifier Notifier,
	enrich steam.Enricher,
	tracker *Tracker,
	cfg Config,
	logger *zap.Logger,
	hooks Hooks,
) *Cycle {
	if hooks.OnClaimed == nil {
		hooks.OnClaimed = func() {}
	}
	if hooks.OnRateLimited == nil {
		hooks.OnRateLimited = func() {}
	}
	if hooks.OnCompleted == nil {
		hooks.OnCompleted = func(time.Duration) {}
	}
	return &Cycle{
		source:   source,
		agent:    a,
		store:    s,
		notifier: notifier,
		enrich:   enrich,
		tracker:  tracker,
		pacer:    rate.NewLimiter(rate.Every(cfg.SubmitSpacing), 1),
		cfg:      cfg,
		logger:   logger,
		hooks:    hooks,
	}
}

// Run executes one cycle. A nil return means the cycle completed (or
// was deferred for a transient reason); an error wrapping
// domain.ErrFatal means the process must exit non-zero.
func (c *Cycle) Run(ctx context.Context) error {
	start := time.Now()

	candidates, err := c.source.Fetch(ctx)
	if err != nil {
		// The list source is an external best-effort collaborator; a
		// failed fetch defers the whole cycle to the next tick.
		c.logger.Error("code list fetch failed, deferring cycle", zap.Error(err))
		c.notifyAsync(domain.SeverityError, "Code list unavailable", err.Error(), nil, "")
		c.record("deferred", start)
		return nil
	}

	newCodes := c.diff(candidates)
	c.logger.Info("cycle diff",
		zap.Int("candidates", len(candidates)),
		zap.Int("new", len(newCodes)),
		zap.Int("processed", c.store.Len()))

	if len(newCodes) == 0 {
		c.notifyAsync(domain.SeverityInfo, "No new packages", "", nil, "")
		c.record("idle", start)
		c.hooks.OnCompleted(time.Since(start))
		return nil
	}

	batch := c.batch(newCodes)

	// Drain any token accrued since the last run so every submission,
	// including the first, is preceded by the full spacing delay.
	c.pacer.Allow()

	for _, code := range batch {
		if err := c.pacer.Wait(ctx); err != nil {
			return err
		}
		if err := c.submit(ctx, code); err != nil {
			c.record("fatal", start)
			return err
		}
	}

	next := time.Now().Add(c.cfg.Interval)
	c.notifyAsync(domain.SeverityInfo, "Cycle complete",
		fmt.Sprintf("Submitted %d code(s). Next run at %s.", len(batch), next.Format(time.RFC1123)),
		nil, "")

	c.record("completed", start)
	c.hooks.OnCompleted(time.Since(start))
	return nil
}

// diff returns candidates not yet processed, first-occurrence order,
// duplicates collapsed. The upstream list is not assumed deduplicated.
func (c *Cycle) diff(candidates []domain.Code) []domain.Code {
	seen := make(map[domain.Code]struct{}, len(candidates))
	var out []domain.Code
	for _, code := range candidates {
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		if c.store.Contains(code) {
			continue
		}
		out = append(out, code)
	}
	return out
}

// batch reverses the new-code ordering and caps it. The list grows by
// appending, so reversing puts the most recently added entries first;
// anything beyond the cap waits for the next cycle.
func (c *Cycle) batch(newCodes []domain.Code) []domain.Code {
	reversed := make([]domain.Code, len(newCodes))
	for i, code := range newCodes {
		reversed[len(newCodes)-1-i] = code
	}
	if c.cfg.BatchLimit > 0 && len(reversed) > c.cfg.BatchLimit {
		reversed = reversed[:c.cfg.BatchLimit]
	}
	return reversed
}

// submit sends one claim command and applies the classification policy.
// Only rate limits are survivable; a transport error or an agent-level
// rejection is fatal, since continuing past an unexplained agent
// failure risks double-submission or data loss in the processed set.
func (c *Cycle) submit(ctx context.Context, code domain.Code) error {
	log := c.logger.With(zap.String("code", string(code)))

	resp, err := c.agent.Redeem(ctx, code)
	if err != nil {
		log.Error("claim submission transport error", zap.Error(err))
		c.notifySync(ctx, domain.SeverityError, "Agent submission failed",
			fmt.Sprintf("Code %s: %v", code, err), nil, "")
		return fmt.Errorf("submit %s: %v: %w", code, err, domain.ErrCommandTransport)
	}
	if !resp.Success {
		log.Error("claim submission rejected", zap.String("message", resp.Message))
		c.notifySync(ctx, domain.SeverityError, "Agent rejected submission",
			fmt.Sprintf("Code %s: %s", code, resp.Message), nil, "")
		return fmt.Errorf("submit %s: %s: %w", code, resp.Message, domain.ErrCommandRejected)
	}

	result := parse.Claim(resp.Result)

	if result.RateLimited() {
		log.Warn("submission rate-limited, will retry next cycle")
		c.hooks.OnRateLimited()
		c.notifyAsync(domain.SeverityError, "Rate limit reached",
			fmt.Sprintf("Code %s deferred to the next cycle.", code), nil, "")
		return nil
	}

	if err := c.store.Add(code); err != nil {
		// Losing a successful claim from the set means re-submitting it
		// forever; stop before the set drifts further.
		log.Error("failed to persist processed set", zap.Error(err))
		return fmt.Errorf("persist %s: %v: %w", code, err, domain.ErrFatal)
	}

	log.Info("code claimed", zap.Int("accounts", len(result)))
	c.hooks.OnClaimed()
	c.notifySuccess(code, result)
	return nil
}

// notifySuccess composes the success notification, enriched best-effort
// with store metadata for the code.
func (c *Cycle) notifySuccess(code domain.Code, result domain.ClaimResult) {
	if c.notifier == nil {
		return
	}

	meta := steam.Meta{Name: steam.PlaceholderName}
	if c.enrich != nil {
		meta = c.enrich.Describe(context.Background(), code)
	}

	var fields []domain.EmbedField
	if c.cfg.NotifyDetail {
		for name, ar := range result {
			value := ar.Status
			if ar.ItemRef != "" {
				value = ar.ItemRef + " " + value
			}
			fields = append(fields, domain.EmbedField{Name: name, Value: value, Inline: true})
		}
	}

	c.notifyAsync(domain.SeveritySuccess, meta.Name,
		fmt.Sprintf("Claimed %s", code), fields, meta.ImageURL)
}

func (c *Cycle) notifyAsync(sev domain.Severity, title, desc string, fields []domain.EmbedField, image string) {
	if c.notifier == nil {
		return
	}
	n := c.notification(sev, title, desc, fields, image)
	if err := c.notifier.EnqueueAsync(n); err != nil {
		c.logger.Warn("notification dropped", zap.String("title", title), zap.Error(err))
	}
}

// notifySync awaits the delivery attempt. Used on fatal paths so the
// report has a chance to leave before the process exits; the attempt is
// still best-effort and its own failure is only logged.
func (c *Cycle) notifySync(ctx context.Context, sev domain.Severity, title, desc string, fields []domain.EmbedField, image string) {
	if c.notifier == nil {
		return
	}
	n := c.notification(sev, title, desc, fields, image)
	if err := c.notifier.Enqueue(ctx, n); err != nil {
		c.logger.Warn("fatal-path notification not delivered", zap.String("title", title), zap.Error(err))
	}
}

func (c *Cycle) notification(sev domain.Severity, title, desc string, fields []domain.EmbedField, image string) domain.Notification {
	return domain.Notification{
		ID:          uuid.New().String(),
		Severity:    sev,
		Title:       title,
		Description: desc,
		Fields:      fields,
		ImageURL:    image,
	}
}

func (c *Cycle) record(outcome string, start time.Time) {
	if c.tracker == nil {
		return
	}
	c.tracker.Record(outcome, c.store.Len(), start, time.Now().Add(c.cfg.Interval))
}
