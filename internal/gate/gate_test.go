package gate_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/asfclaim/claimerd/internal/agent"
	"github.com/asfclaim/claimerd/internal/domain"
	"github.com/asfclaim/claimerd/internal/gate"
)

// stubAgent scripts Ping and Status behaviour per call.
type stubAgent struct {
	pingErrs   []error // consumed per call; last entry repeats
	pings      int
	statusOut  []string
	statusErr  error
	statusCall int
}

func (s *stubAgent) Ping(context.Context) error {
	s.pings++
	if len(s.pingErrs) == 0 {
		return nil
	}
	i := s.pings - 1
	if i >= len(s.pingErrs) {
		i = len(s.pingErrs) - 1
	}
	return s.pingErrs[i]
}

func (s *stubAgent) Status(context.Context) (string, error) {
	if s.statusErr != nil {
		return "", s.statusErr
	}
	i := s.statusCall
	if i >= len(s.statusOut) {
		i = len(s.statusOut) - 1
	}
	s.statusCall++
	return s.statusOut[i], nil
}

func (s *stubAgent) Command(context.Context, string) (*agent.CommandResponse, error) {
	return nil, errors.New("not scripted")
}

func (s *stubAgent) Redeem(context.Context, domain.Code) (*agent.CommandResponse, error) {
	return nil, errors.New("not scripted")
}

// fakeSleep records requested delays and returns instantly.
type fakeSleep struct {
	delays []time.Duration
}

func (f *fakeSleep) sleep(_ context.Context, d time.Duration) error {
	f.delays = append(f.delays, d)
	return nil
}

func newGate(a agent.Commander, fs *fakeSleep) *gate.Gate {
	return gate.New(a, gate.Config{
		ReachAttempts: 5,
		ReachDelay:    5 * time.Second,
		PollInterval:  10 * time.Second,
		Sleep:         fs.sleep,
	}, zap.NewNop())
}

func TestWaitReachable_ExactlyFiveAttemptsThenFatal(t *testing.T) {
	a := &stubAgent{pingErrs: []error{errors.New("refused")}}
	fs := &fakeSleep{}

	err := newGate(a, fs).WaitReachable(context.Background())

	if !errors.Is(err, domain.ErrFatal) {
		t.Fatalf("expected fatal error, got %v", err)
	}
	if a.pings != 5 {
		t.Fatalf("expected exactly 5 attempts, got %d", a.pings)
	}
	if len(fs.delays) != 4 {
		t.Fatalf("expected 4 inter-attempt delays, got %d", len(fs.delays))
	}
	for _, d := range fs.delays {
		if d != 5*time.Second {
			t.Fatalf("expected 5s delay, got %v", d)
		}
	}
}

func TestWaitReachable_SucceedsMidway(t *testing.T) {
	a := &stubAgent{pingErrs: []error{errors.New("refused"), errors.New("refused"), nil}}
	fs := &fakeSleep{}

	if err := newGate(a, fs).WaitReachable(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.pings != 3 {
		t.Fatalf("expected 3 attempts, got %d", a.pings)
	}
}

func TestWaitReady_PollsUntilAllReady(t *testing.T) {
	a := &stubAgent{statusOut: []string{
		"<main> Bot is connecting to Steam network...",
		"<main> Bot is connecting to Steam network...",
		"<main> Bot is farming",
	}}
	fs := &fakeSleep{}

	if err := newGate(a, fs).WaitReady(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.statusCall != 3 {
		t.Fatalf("expected 3 status queries, got %d", a.statusCall)
	}
	if len(fs.delays) != 2 {
		t.Fatalf("expected 2 poll sleeps, got %d", len(fs.delays))
	}
	for _, d := range fs.delays {
		if d != 10*time.Second {
			t.Fatalf("expected 10s poll interval, got %v", d)
		}
	}
}

func TestWaitReady_TransportErrorIsFatalImmediately(t *testing.T) {
	a := &stubAgent{statusErr: errors.New("connection reset")}
	fs := &fakeSleep{}

	err := newGate(a, fs).WaitReady(context.Background())
	if !errors.Is(err, domain.ErrReadinessQuery) || !errors.Is(err, domain.ErrFatal) {
		t.Fatalf("expected fatal readiness error, got %v", err)
	}
	if len(fs.delays) != 0 {
		t.Fatal("transport failure must not be retried")
	}
}

func TestWaitReady_VacuousReadiness(t *testing.T) {
	a := &stubAgent{statusOut: []string{"agent has no accounts configured"}}
	fs := &fakeSleep{}

	if err := newGate(a, fs).WaitReady(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.statusCall != 1 {
		t.Fatalf("expected a single query, got %d", a.statusCall)
	}
}
