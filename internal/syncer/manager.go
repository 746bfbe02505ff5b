// Package syncer implements the background sync manager: a debounced,
// sequential runner for the per-entity refetch tasks with exponential
// backoff on failure. Its phase survives restarts via the key-value store
// and every transition is announced on the event bus.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dailysync/keeper/internal/bus"
	"github.com/dailysync/keeper/internal/domain"
	"github.com/dailysync/keeper/internal/kvstore"
)

// Task is one unit of sync work, typically an entity refetch.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Config bounds the manager's timing behavior.
type Config struct {
	Debounce    time.Duration
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// Manager coordinates background synchronization. Mutations call
// ScheduleSync; bursts within the debounce window collapse into a single run.
// Tasks run sequentially; any failure moves the manager into the error phase
// and retries with exponential backoff, reset on the next success.
type Manager struct {
	log *slog.Logger
	kv  kvstore.Store
	bus *bus.Bus
	cfg Config

	baseCtx context.Context

	mu      sync.Mutex
	tasks   []Task
	reasons map[string]struct{}
	phase   domain.SyncPhase
	backoff time.Duration
	timer   *time.Timer
	syncing bool
	rerun   bool
}

// New creates a sync manager. Call Init before use.
func New(logger *slog.Logger, kv kvstore.Store, b *bus.Bus, cfg Config) *Manager {
	if cfg.Debounce <= 0 {
		cfg.Debounce = 800 * time.Millisecond
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = time.Second
	}
	if cfg.MaxBackoff < cfg.BaseBackoff {
		cfg.MaxBackoff = 15 * time.Second
	}
	return &Manager{
		log:     logger.With("component", "syncer"),
		kv:      kv,
		bus:     b,
		cfg:     cfg,
		baseCtx: context.Background(),
		reasons: make(map[string]struct{}),
		phase:   domain.SyncIdle,
	}
}

// RegisterTask adds a task. Tasks run in first-registration order; registering
// the same name again replaces its run function in place.
func (m *Manager) RegisterTask(name string, run func(ctx context.Context) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, t := range m.tasks {
		if t.Name == name {
			m.tasks[i].Run = run
			return
		}
	}
	m.tasks = append(m.tasks, Task{Name: name, Run: run})
}

// Init rehydrates the persisted phase and adopts ctx as the base context for
// timer-fired runs. A run that was in flight or scheduled when the process
// died is re-scheduled, so no mutation burst is silently lost.
func (m *Manager) Init(ctx context.Context) {
	var state domain.SyncState
	_ = kvstore.GetJSON(ctx, m.kv, kvstore.KeySyncMeta, domain.SyncState{Phase: domain.SyncIdle}, &state)

	m.mu.Lock()
	m.baseCtx = ctx
	m.phase = state.Phase
	m.mu.Unlock()

	switch state.Phase {
	case domain.SyncScheduled, domain.SyncSyncing, domain.SyncError:
		m.ScheduleSync("startup.recovery")
	default:
		m.setPhase(ctx, domain.SyncIdle)
	}
}

// State returns the current phase.
func (m *Manager) State() domain.SyncState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return domain.SyncState{Phase: m.phase}
}

// Backoff returns the current retry delay; zero after a successful run.
func (m *Manager) Backoff() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.backoff
}

// ScheduleSync records the reason and arms the debounce timer. Calls landing
// inside the window push the run out rather than queueing more runs; a call
// during an active run requests one follow-up round.
func (m *Manager) ScheduleSync(reason string) {
	m.mu.Lock()
	m.reasons[reason] = struct{}{}
	if m.syncing {
		m.rerun = true
		m.mu.Unlock()
		return
	}
	ctx := m.baseCtx
	m.mu.Unlock()

	m.setPhase(ctx, domain.SyncScheduled)

	m.mu.Lock()
	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = time.AfterFunc(m.cfg.Debounce, func() {
		_ = m.run(m.baseCtx)
	})
	m.mu.Unlock()
}

// TriggerNow bypasses the debounce window and runs the tasks synchronously.
func (m *Manager) TriggerNow(ctx context.Context) error {
	m.mu.Lock()
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.mu.Unlock()
	return m.run(ctx)
}

// Stop disarms any pending timer. In-flight runs finish on their own.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *Manager) run(ctx context.Context) error {
	m.mu.Lock()
	if m.syncing {
		// Overlapping trigger: the active run picks it up as a follow-up.
		m.rerun = true
		m.mu.Unlock()
		return nil
	}
	m.syncing = true
	m.timer = nil
	reasons := make([]string, 0, len(m.reasons))
	for r := range m.reasons {
		reasons = append(reasons, r)
	}
	m.reasons = make(map[string]struct{})
	tasks := make([]Task, len(m.tasks))
	copy(tasks, m.tasks)
	m.mu.Unlock()

	m.setPhase(ctx, domain.SyncSyncing)
	m.log.InfoContext(ctx, "sync started",
		slog.Int("tasks", len(tasks)), slog.Any("reasons", reasons))

	var errs []error
	for _, t := range tasks {
		if err := t.Run(ctx); err != nil {
			m.log.WarnContext(ctx, "sync task failed",
				slog.String("task", t.Name), slog.Any("error", err))
			errs = append(errs, fmt.Errorf("%s: %w", t.Name, err))
		}
	}

	if len(errs) > 0 {
		err := errors.Join(errs...)
		m.mu.Lock()
		m.syncing = false
		m.backoff = nextBackoff(m.backoff, m.cfg.BaseBackoff, m.cfg.MaxBackoff)
		retryIn := m.backoff
		if m.timer != nil {
			m.timer.Stop()
		}
		m.timer = time.AfterFunc(retryIn, func() {
			_ = m.run(m.baseCtx)
		})
		m.mu.Unlock()

		m.setPhase(ctx, domain.SyncError)
		m.log.WarnContext(ctx, "sync failed, retry scheduled",
			slog.Duration("retry_in", retryIn), slog.Any("error", err))
		return err
	}

	m.mu.Lock()
	m.syncing = false
	m.backoff = 0
	rerun := m.rerun
	m.rerun = false
	m.mu.Unlock()

	m.setPhase(ctx, domain.SyncIdle)
	m.log.InfoContext(ctx, "sync finished")

	if rerun {
		m.ScheduleSync("followup")
	}
	return nil
}

func (m *Manager) setPhase(ctx context.Context, phase domain.SyncPhase) {
	m.mu.Lock()
	m.phase = phase
	m.mu.Unlock()

	state := domain.SyncState{Phase: phase}
	if err := kvstore.SetJSON(ctx, m.kv, kvstore.KeySyncMeta, state); err != nil {
		m.log.WarnContext(ctx, "persist sync state failed", slog.Any("error", err))
	}
	if m.bus != nil {
		m.bus.Publish(bus.TopicSyncState, state)
	}
}

// nextBackoff doubles the delay, clamped to [base, max].
func nextBackoff(cur, base, max time.Duration) time.Duration {
	next := 2 * cur
	if next < base {
		next = base
	}
	if next > max {
		next = max
	}
	return next
}
