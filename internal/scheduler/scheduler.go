package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs housekeeping jobs on cron schedules.
type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
}

func New() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(cron.WithLocation(time.UTC)),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Add registers job under name. spec is a standard cron expression or a
// descriptor such as "@every 10m".
func (s *Scheduler) Add(name, spec string, job func(ctx context.Context) error) error {
	_, err := s.cron.AddFunc(spec, func() {
		if err := job(s.ctx); err != nil {
			log.Printf("[scheduler] %s failed: %v", name, err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule %s (%q): %w", name, spec, err)
	}
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	log.Printf("[scheduler] started with %d job(s)", len(s.cron.Entries()))
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	if s.cancel != nil {
		s.cancel()
	}
	log.Println("[scheduler] stopped")
}

// HasJobs reports whether any job is registered.
func (s *Scheduler) HasJobs() bool {
	return s.cron != nil && len(s.cron.Entries()) > 0
}

// Sweeper is anything that can drop idle state, such as chat.Registry.
type Sweeper interface {
	Sweep(idle time.Duration) int
}

// SweepIdle returns a job that drops conversations idle for longer than ttl.
func SweepIdle(sw Sweeper, ttl time.Duration) func(context.Context) error {
	return func(context.Context) error {
		if n := sw.Sweep(ttl); n > 0 {
			log.Printf("[scheduler] dropped %d idle conversation(s)", n)
		}
		return nil
	}
}
