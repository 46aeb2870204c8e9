// Package jobmgr runs named background jobs with cancellation and in-memory
// tracking. It covers the two shapes this bot needs: one-shot async jobs and
// periodic jobs that tick on a fixed interval, survive panics, and keep
// rescheduling themselves until stopped.
//
// Typical usage:
//
//	jm := jobmgr.New(logger)
//	jm.StartPeriodic(ctx, "role-expiry", time.Hour, func(ctx context.Context) error {
//	    return sweeper.Sweep(ctx)
//	})
//
//	// later...
//	jm.Stop("role-expiry")
package jobmgr

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Job is a running unit of work. Jobs are tracked and removed by the Manager.
type Job struct {
	Name   string
	Cancel context.CancelFunc
}

// Manager starts, stops and tracks jobs. Safe for concurrent use.
type Manager struct {
	mu   sync.Mutex
	jobs map[string]*Job
	log  zerolog.Logger
}

// New creates an empty Manager that logs job lifecycle events to log.
func New(log zerolog.Logger) *Manager {
	return &Manager{
		jobs: make(map[string]*Job),
		log:  log,
	}
}

// StartAsync runs a one-shot job in its own goroutine and returns immediately.
// A second job with the same name is rejected while the first is running.
func (m *Manager) StartAsync(ctx context.Context, name string, runner func(ctx context.Context) error) error {
	jobCtx, err := m.track(ctx, name)
	if err != nil {
		return err
	}

	go func() {
		defer m.untrack(name)
		if err := runner(jobCtx); err != nil {
			m.log.Error().Err(err).Str("job", name).Msg("job failed")
			return
		}
		m.log.Debug().Str("job", name).Msg("job done")
	}()

	return nil
}

// StartPeriodic runs the job once immediately and then on every tick of the
// interval until the context is canceled or Stop is called. A panicking or
// failing tick is logged and the job stays scheduled; a background task dying
// permanently would silently stop the expiry sweep.
func (m *Manager) StartPeriodic(ctx context.Context, name string, interval time.Duration, runner func(ctx context.Context) error) error {
	jobCtx, err := m.track(ctx, name)
	if err != nil {
		return err
	}

	go func() {
		defer m.untrack(name)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		m.runTick(jobCtx, name, runner)
		for {
			select {
			case <-jobCtx.Done():
				m.log.Debug().Str("job", name).Msg("periodic job stopped")
				return
			case <-ticker.C:
				m.runTick(jobCtx, name, runner)
			}
		}
	}()

	return nil
}

func (m *Manager) runTick(ctx context.Context, name string, runner func(ctx context.Context) error) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error().Str("job", name).Interface("panic", r).Msg("job tick panicked, keeping schedule")
		}
	}()
	if err := runner(ctx); err != nil {
		m.log.Warn().Err(err).Str("job", name).Msg("job tick failed, keeping schedule")
	}
}

// Stop cancels a running job by name.
func (m *Manager) Stop(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[name]
	if !ok {
		return fmt.Errorf("job '%s' not running", name)
	}
	job.Cancel()
	delete(m.jobs, name)
	return nil
}

// StopAll cancels every tracked job.
func (m *Manager) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, job := range m.jobs {
		job.Cancel()
		delete(m.jobs, name)
	}
}

// List returns the names of active jobs, sorted.
func (m *Manager) List() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.jobs))
	for k := range m.jobs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (m *Manager) track(ctx context.Context, name string) (context.Context, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.jobs[name]; exists {
		return nil, fmt.Errorf("job '%s' is already running", name)
	}
	jobCtx, cancel := context.WithCancel(ctx)
	m.jobs[name] = &Job{Name: name, Cancel: cancel}
	return jobCtx, nil
}

func (m *Manager) untrack(name string) {
	m.mu.Lock()
	delete(m.jobs, name)
	m.mu.Unlock()
}
