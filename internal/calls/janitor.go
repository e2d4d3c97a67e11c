package calls

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

const (
	DefaultRingTimeout     = 45 * time.Second
	DefaultJanitorInterval = 15 * time.Second

	sweepBatch = 200
)

// Janitor marks calls that rang too long without an answer as MISSED.
type Janitor struct {
	svc         *Service
	ringTimeout time.Duration
	interval    time.Duration
	log         *slog.Logger
}

func NewJanitor(svc *Service, ringTimeout, interval time.Duration, log *slog.Logger) *Janitor {
	if ringTimeout <= 0 {
		ringTimeout = DefaultRingTimeout
	}
	if interval <= 0 {
		interval = DefaultJanitorInterval
	}
	if log == nil {
		log = slog.Default()
	}
	return &Janitor{svc: svc, ringTimeout: ringTimeout, interval: interval, log: log}
}

// Run sweeps every interval until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	t := time.NewTicker(j.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n, err := j.Sweep(ctx); err != nil {
				j.log.Warn("calls: janitor sweep failed", "err", err, "marked", n)
			} else if n > 0 {
				j.log.Info("calls: janitor marked missed calls", "count", n)
			}
		}
	}
}

// Sweep marks every overdue RINGING session as MISSED and returns how many it
// changed. Sessions that moved on concurrently are skipped.
func (j *Janitor) Sweep(ctx context.Context) (int, error) {
	cutoff := j.svc.now().Add(-j.ringTimeout)
	stale, err := j.svc.store.ListRinging(ctx, cutoff, sweepBatch)
	if err != nil {
		return 0, err
	}
	marked := 0
	for _, s := range stale {
		_, err := j.svc.MarkMissed(ctx, s.SessionID)
		switch {
		case err == nil:
			marked++
		case errors.Is(err, ErrSessionTerminal), errors.Is(err, ErrInvalidTransition):
		default:
			if ctx.Err() != nil {
				return marked, ctx.Err()
			}
			j.log.Warn("calls: mark missed failed", "session_id", s.SessionID, "err", err)
		}
	}
	return marked, nil
}
