package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Locker is the per-session mutual exclusion the sweeper coordinates
// through. *SessionLocker satisfies it; tests substitute in-memory fakes.
type Locker interface {
	Acquire(ctx context.Context, sessionID string) (token string, ok bool, err error)
	Release(ctx context.Context, sessionID, token string)
}

// ExpiryFinalizer runs the expiry sequence for one session. *Conductor
// satisfies it.
type ExpiryFinalizer interface {
	FinalizeExpired(ctx context.Context, sessionID string) error
}

// ExpirySweeper periodically finds sessions whose deadline passed without a
// final interaction and finalizes them. Multiple sweeper instances can run
// concurrently: the per-session lock plus the absorbing-state check in the
// finalizer guarantee each session is finalized exactly once.
type ExpirySweeper struct {
	store     Store
	locker    Locker
	finalizer ExpiryFinalizer
	interval  time.Duration
	cron      *cron.Cron

	now func() time.Time
}

func NewExpirySweeper(store Store, locker Locker, finalizer ExpiryFinalizer, interval time.Duration) *ExpirySweeper {
	return &ExpirySweeper{
		store:     store,
		locker:    locker,
		finalizer: finalizer,
		interval:  interval,
		cron:      cron.New(),
		now:       time.Now,
	}
}

// Start schedules the periodic sweep and returns immediately.
func (s *ExpirySweeper) Start() error {
	spec := fmt.Sprintf("@every %s", s.interval)
	if _, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.interval)
		defer cancel()
		s.Sweep(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule expiry sweep: %w", err)
	}
	s.cron.Start()
	slog.Info("Expiry sweeper started", "interval", s.interval)
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *ExpirySweeper) Stop() {
	<-s.cron.Stop().Done()
	slog.Info("Expiry sweeper stopped")
}

// Sweep finalizes every expired session it can take the lock for. A failure
// on one session never stops the rest of the pass.
func (s *ExpirySweeper) Sweep(ctx context.Context) {
	expired, err := s.store.FindExpiredActive(ctx, s.now())
	if err != nil {
		slog.Error("Failed to scan for expired sessions", "error", err)
		return
	}
	if len(expired) == 0 {
		return
	}
	slog.Info("Sweeping expired sessions", "count", len(expired))

	for _, session := range expired {
		s.sweepOne(ctx, session.ID)
	}
}

func (s *ExpirySweeper) sweepOne(ctx context.Context, sessionID string) {
	token, ok, err := s.locker.Acquire(ctx, sessionID)
	if err != nil {
		slog.Error("Failed to acquire lock for expired session", "error", err, "session_id", sessionID)
		return
	}
	if !ok {
		// Another worker owns this session's finalization.
		return
	}
	defer s.locker.Release(ctx, sessionID, token)

	if err := s.finalizer.FinalizeExpired(ctx, sessionID); err != nil {
		if errors.Is(err, ErrSessionNotActive) {
			// Finalized between the scan and the lock. Nothing to do.
			return
		}
		slog.Error("Failed to finalize expired session", "error", err, "session_id", sessionID)
		return
	}
	slog.Info("Expired session finalized", "session_id", sessionID)
}
