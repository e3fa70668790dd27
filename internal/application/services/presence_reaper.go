package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Reaper is the sweep run by PresenceReaper.
type Reaper interface {
	Reap(ctx context.Context) (ReapResult, error)
}

// PresenceReaper runs the presence sweep on a cron schedule, independent of request handling.
type PresenceReaper struct {
	reaper   Reaper
	schedule string
	timeout  time.Duration
	cron     *cron.Cron
	ctx      context.Context
	cancel   context.CancelFunc
	mu       sync.Mutex
	running  bool
}

// NewPresenceReaper creates a reaper for a cron spec such as "@every 1m" or "*/2 * * * *"
func NewPresenceReaper(reaper Reaper, schedule string) *PresenceReaper {
	ctx, cancel := context.WithCancel(context.Background())
	return &PresenceReaper{
		reaper:   reaper,
		schedule: schedule,
		timeout:  time.Minute,
		cron:     cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger))),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start registers the sweep and starts the scheduler
func (r *PresenceReaper) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return nil
	}
	if _, err := r.cron.AddFunc(r.schedule, r.RunOnce); err != nil {
		return fmt.Errorf("invalid reap schedule %q: %w", r.schedule, err)
	}
	r.cron.Start()
	r.running = true

	log.Info().Str("schedule", r.schedule).Msg("presence reaper started")
	return nil
}

// RunOnce performs one sweep
func (r *PresenceReaper) RunOnce() {
	ctx, cancel := context.WithTimeout(r.ctx, r.timeout)
	defer cancel()

	if _, err := r.reaper.Reap(ctx); err != nil {
		log.Error().Err(err).Msg("presence reap failed")
	}
}

// Stop stops the scheduler and waits for a running sweep to finish
func (r *PresenceReaper) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		r.cancel()
		return
	}
	<-r.cron.Stop().Done()
	r.cancel()
	r.running = false
	log.Info().Msg("presence reaper stopped")
}
