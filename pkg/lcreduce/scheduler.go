package lcreduce

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Runner performs one reduction pass.
type Runner interface {
	Run(ctx context.Context) (*PassResult, error)
}

// Scheduler coalesces pass requests. At most one pass runs at a time; requests
// arriving while a pass runs collapse into a single rerun, debounced like any
// other request once the pass finishes.
type Scheduler struct {
	runner   Runner
	delay    time.Duration
	log      zerolog.Logger
	requests chan struct{}
}

// NewScheduler returns a scheduler that starts a pass delay after a request.
// Nothing runs until Serve is called.
func NewScheduler(runner Runner, delay time.Duration, log zerolog.Logger) *Scheduler {
	return &Scheduler{runner: runner, delay: delay, log: log, requests: make(chan struct{}, 1)}
}

// Request asks for a pass. It never blocks.
func (s *Scheduler) Request() {
	select {
	case s.requests <- struct{}{}:
	default:
	}
}

// Serve runs requested passes until ctx is done and returns ctx.Err().
// A pass in flight when ctx ends is left to observe the cancellation itself.
func (s *Scheduler) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.requests:
		}
		if !s.debounce(ctx) {
			return ctx.Err()
		}
		// requests made during the delay are served by this pass
		select {
		case <-s.requests:
		default:
		}
		if _, err := s.runner.Run(ctx); err != nil {
			s.log.Warn().Err(err).Msg("scheduled pass failed")
		}
	}
}

func (s *Scheduler) debounce(ctx context.Context) bool {
	if s.delay <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(s.delay)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
