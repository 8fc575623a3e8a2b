// Package app wires the shared runtime every front-end needs: one agent
// client, the conversation registry, the dispatcher and idle-session sweeping.
package app

import (
	"context"
	"fmt"
	"log"
	"sync"

	"agent-chatter/internal/aip"
	"agent-chatter/internal/chat"
	"agent-chatter/internal/config"
	"agent-chatter/internal/scheduler"
	"agent-chatter/internal/storage"
)

type App struct {
	Config     *config.Config
	Factory    *aip.Factory
	Registry   *chat.Registry
	Dispatcher *chat.Dispatcher
	Recorder   storage.Recorder

	sched   *scheduler.Scheduler
	mu      sync.Mutex
	started bool
}

// New builds the runtime for cfg. The agent client is constructed eagerly
// so bad credentials fail at startup rather than on the first message.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	factory := aip.NewFactory(cfg, nil)
	if _, err := factory.Default(ctx); err != nil {
		return nil, fmt.Errorf("init agent client: %w", err)
	}

	var rec storage.Recorder
	if cfg.LogFilePath != "" {
		fr, err := storage.NewFileRecorder(cfg.LogFilePath)
		if err != nil {
			log.Printf("failed to init file recorder: %v", err)
		} else {
			rec = fr
		}
	}

	registry := chat.NewRegistry(cfg.AgentRID)
	sched := scheduler.New()
	if cfg.SessionIdleTTL > 0 && cfg.SweepSchedule != "" {
		if err := sched.Add("sweep-idle", cfg.SweepSchedule, scheduler.SweepIdle(registry, cfg.SessionIdleTTL)); err != nil {
			sched.Stop()
			return nil, err
		}
	}

	return &App{
		Config:     cfg,
		Factory:    factory,
		Registry:   registry,
		Dispatcher: chat.NewDispatcher(factory, rec),
		Recorder:   rec,
		sched:      sched,
	}, nil
}

// Start runs the background jobs, if any are configured. It is a no-op
// when already started.
func (a *App) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started || !a.sched.HasJobs() {
		return
	}
	a.sched.Start()
	a.started = true
}

func (a *App) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.started {
		return
	}
	a.sched.Stop()
	a.started = false
}
