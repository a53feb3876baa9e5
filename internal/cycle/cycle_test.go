package cycle_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/asfclaim/claimerd/internal/agent"
	"github.com/asfclaim/claimerd/internal/cycle"
	"github.com/asfclaim/claimerd/internal/domain"
	"github.com/asfclaim/claimerd/internal/parse"
	"github.com/asfclaim/claimerd/internal/steam"
	"github.com/asfclaim/claimerd/internal/store"
)

type stubSource struct {
	codes []domain.Code
	err   error
}

func (s *stubSource) Fetch(context.Context) ([]domain.Code, error) {
	return s.codes, s.err
}

// stubAgent scripts Redeem responses per code and records submission order.
type stubAgent struct {
	responses map[domain.Code]*agent.CommandResponse
	errs      map[domain.Code]error
	submitted []domain.Code
}

func (s *stubAgent) Redeem(_ context.Context, code domain.Code) (*agent.CommandResponse, error) {
	s.submitted = append(s.submitted, code)
	if err := s.errs[code]; err != nil {
		return nil, err
	}
	if resp, ok := s.responses[code]; ok {
		return resp, nil
	}
	return &agent.CommandResponse{Success: true, Result: "<bot1> OK -> Granted license"}, nil
}

func (s *stubAgent) Ping(context.Context) error { return nil }
func (s *stubAgent) Status(context.Context) (string, error) { return "", nil }
func (s *stubAgent) Command(context.Context, string) (*agent.CommandResponse, error) {
	return nil, errors.New("not scripted")
}

// recordingNotifier captures notifications synchronously.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []domain.Notification
}

func (n *recordingNotifier) Enqueue(_ context.Context, notif domain.Notification) error {
	return n.EnqueueAsync(notif)
}

func (n *recordingNotifier) EnqueueAsync(notif domain.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notif)
	return nil
}

func (n *recordingNotifier) bySeverity(sev domain.Severity) []domain.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []domain.Notification
	for _, notif := range n.sent {
		if notif.Severity == sev {
			out = append(out, notif)
		}
	}
	return out
}

type stubEnricher struct{}

func (stubEnricher) Describe(context.Context, domain.Code) steam.Meta {
	return steam.Meta{Name: "Some Game", ImageURL: "https://img/game.jpg"}
}

type fixture struct {
	source   *stubSource
	agent    *stubAgent
	store    *store.MockStore
	notifier *recordingNotifier
	tracker  *cycle.Tracker
	cycle    *cycle.Cycle
}

func newFixture(codes []domain.Code, cfg cycle.Config) *fixture {
	if cfg.BatchLimit == 0 {
		cfg.BatchLimit = 40
	}
	if cfg.SubmitSpacing == 0 {
		cfg.SubmitSpacing = time.Millisecond
	}
	if cfg.Interval == 0 {
		cfg.Interval = time.Hour
	}

	f := &fixture{
		source:   &stubSource{codes: codes},
		agent:    &stubAgent{responses: map[domain.Code]*agent.CommandResponse{}, errs: map[domain.Code]error{}},
		store:    store.NewMockStore(),
		notifier: &recordingNotifier{},
		tracker:  cycle.NewTracker(),
	}
	f.cycle = cycle.New(f.source, f.agent, f.store, f.notifier, stubEnricher{}, f.tracker,
		cfg, zap.NewNop(), cycle.Hooks{})
	return f
}

func TestRun_NoNewCodesEmitsInfoAndStops(t *testing.T) {
	f := newFixture([]domain.Code{"a/100"}, cycle.Config{})
	_ = f.store.Add("a/100")

	if err := f.cycle.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.agent.submitted) != 0 {
		t.Fatalf("expected no submissions, got %v", f.agent.submitted)
	}

	infos := f.notifier.bySeverity(domain.SeverityInfo)
	if len(infos) != 1 || infos[0].Title != "No new packages" {
		t.Fatalf("expected a single no-new-packages info, got %v", infos)
	}
}

func TestRun_DiffDedupsAndReverses(t *testing.T) {
	f := newFixture([]domain.Code{"a/100", "a/200", "a/100"}, cycle.Config{})

	if err := f.cycle.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []domain.Code{"a/200", "a/100"}
	if len(f.agent.submitted) != len(want) {
		t.Fatalf("expected %v, got %v", want, f.agent.submitted)
	}
	for i := range want {
		if f.agent.submitted[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, f.agent.submitted)
		}
	}
}

func TestRun_BatchLimitCapsSubmissions(t *testing.T) {
	var codes []domain.Code
	for i := 0; i < 10; i++ {
		codes = append(codes, domain.Code(fmt.Sprintf("a/%d", i)))
	}
	f := newFixture(codes, cycle.Config{BatchLimit: 3})

	if err := f.cycle.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(f.agent.submitted) != 3 {
		t.Fatalf("expected 3 submissions, got %d", len(f.agent.submitted))
	}
	// Reversed: newest entries first.
	if f.agent.submitted[0] != "a/9" {
		t.Fatalf("expected newest code first, got %v", f.agent.submitted)
	}
}

func TestRun_RateLimitedCodeIsNotProcessedAndCycleContinues(t *testing.T) {
	f := newFixture([]domain.Code{"a/100", "a/200"}, cycle.Config{})
	// Reversal puts a/200 first; it gets rate-limited.
	f.agent.responses["a/200"] = &agent.CommandResponse{
		Success: true,
		Result:  "<bot1> OK -> Granted\n<bot2> Fail/RateLimitExceeded",
	}

	if err := f.cycle.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if f.store.Contains("a/200") {
		t.Fatal("rate-limited code must not enter the processed set")
	}
	if !f.store.Contains("a/100") {
		t.Fatal("expected next code in batch to still be processed")
	}
	if len(f.notifier.bySeverity(domain.SeverityError)) != 1 {
		t.Fatal("expected an error notification for the rate limit")
	}
}

func TestRun_RetriedCodeIsNotDuplicatedAcrossCycles(t *testing.T) {
	f := newFixture([]domain.Code{"a/100"}, cycle.Config{})

	if err := f.cycle.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := f.cycle.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	if len(f.agent.submitted) != 1 {
		t.Fatalf("expected a single submission across cycles, got %v", f.agent.submitted)
	}
	if got := len(f.notifier.bySeverity(domain.SeveritySuccess)); got != 1 {
		t.Fatalf("expected exactly one success notification, got %d", got)
	}
}

func TestRun_TransportErrorIsFatal(t *testing.T) {
	f := newFixture([]domain.Code{"a/100", "a/200"}, cycle.Config{})
	f.agent.errs["a/200"] = errors.New("connection reset")

	err := f.cycle.Run(context.Background())
	if !errors.Is(err, domain.ErrCommandTransport) || !errors.Is(err, domain.ErrFatal) {
		t.Fatalf("expected fatal transport error, got %v", err)
	}
	// The batch stops at the failure; a/100 is never submitted.
	if len(f.agent.submitted) != 1 {
		t.Fatalf("expected 1 submission before fatal stop, got %v", f.agent.submitted)
	}
	if len(f.notifier.bySeverity(domain.SeverityError)) != 1 {
		t.Fatal("expected an error notification before the fatal return")
	}
}

func TestRun_AgentRejectionIsFatal(t *testing.T) {
	f := newFixture([]domain.Code{"a/100"}, cycle.Config{})
	f.agent.responses["a/100"] = &agent.CommandResponse{Success: false, Message: "unauthorized"}

	err := f.cycle.Run(context.Background())
	if !errors.Is(err, domain.ErrCommandRejected) {
		t.Fatalf("expected rejection error, got %v", err)
	}
	if f.store.Contains("a/100") {
		t.Fatal("rejected code must not enter the processed set")
	}
}

func TestRun_PersistFailureIsFatal(t *testing.T) {
	f := newFixture([]domain.Code{"a/100"}, cycle.Config{})
	f.store.AddErr = errors.New("disk full")

	err := f.cycle.Run(context.Background())
	if !errors.Is(err, domain.ErrFatal) {
		t.Fatalf("expected fatal error, got %v", err)
	}
}

func TestRun_BareOKIsStillASuccess(t *testing.T) {
	f := newFixture([]domain.Code{"a/100"}, cycle.Config{NotifyDetail: true})
	f.agent.responses["a/100"] = &agent.CommandResponse{
		Success: true,
		Result:  "<bot1> OK\n<bot2> OK",
	}

	if err := f.cycle.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !f.store.Contains("a/100") {
		t.Fatal("bare OK must count as success and be marked processed")
	}

	successes := f.notifier.bySeverity(domain.SeveritySuccess)
	if len(successes) != 1 {
		t.Fatalf("expected one success notification, got %d", len(successes))
	}
	if len(successes[0].Fields) != 2 {
		t.Fatalf("expected per-account fields, got %v", successes[0].Fields)
	}
	for _, field := range successes[0].Fields {
		if field.Value != parse.BareOKStatus {
			t.Fatalf("expected placeholder status, got %q", field.Value)
		}
	}
}

func TestRun_SuccessNotificationCarriesEnrichment(t *testing.T) {
	f := newFixture([]domain.Code{"a/100"}, cycle.Config{})

	if err := f.cycle.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	successes := f.notifier.bySeverity(domain.SeveritySuccess)
	if len(successes) != 1 {
		t.Fatalf("expected one success notification, got %d", len(successes))
	}
	if successes[0].Title != "Some Game" || successes[0].ImageURL != "https://img/game.jpg" {
		t.Fatalf("expected enriched metadata, got %+v", successes[0])
	}
}

func TestRun_FetchFailureDefersCycle(t *testing.T) {
	f := newFixture(nil, cycle.Config{})
	f.source.err = errors.New("list host down")

	if err := f.cycle.Run(context.Background()); err != nil {
		t.Fatalf("fetch failure must not be fatal, got %v", err)
	}
	if len(f.agent.submitted) != 0 {
		t.Fatal("expected no submissions on fetch failure")
	}
	if f.tracker.Snapshot().LastOutcome != "deferred" {
		t.Fatalf("expected deferred outcome, got %q", f.tracker.Snapshot().LastOutcome)
	}
}

func TestRun_CompletionAnnouncesNextRun(t *testing.T) {
	f := newFixture([]domain.Code{"a/100"}, cycle.Config{})

	if err := f.cycle.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	infos := f.notifier.bySeverity(domain.SeverityInfo)
	if len(infos) != 1 || infos[0].Title != "Cycle complete" {
		t.Fatalf("expected completion info, got %v", infos)
	}

	snap := f.tracker.Snapshot()
	if snap.LastOutcome != "completed" || snap.ProcessedCount != 1 {
		t.Fatalf("unexpected tracker snapshot %+v", snap)
	}
	if !snap.NextRunAt.After(snap.LastRunAt) {
		t.Fatal("expected next run after last run")
	}
}
