// Package todos implements the task entity hook: optimistic local mutations
// over the reactive task cache, reconciled against the remote gateway when
// connectivity allows it.
package todos

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dailysync/keeper/internal/adapter/postgres/task"
	"github.com/dailysync/keeper/internal/domain"
	"github.com/dailysync/keeper/internal/optimistic"
	"github.com/dailysync/keeper/internal/store"
	"github.com/dailysync/keeper/pkg/ctxutil"
)

const maxTitleLen = 120

type gateway interface {
	List(ctx context.Context, userID uuid.UUID) ([]domain.Task, error)
	Insert(ctx context.Context, t domain.Task) (domain.Task, error)
	Update(ctx context.Context, userID, id uuid.UUID, p task.Patch) (domain.Task, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
}

type syncPolicy interface {
	CanRemoteSync(ctx context.Context) bool
}

type syncScheduler interface {
	ScheduleSync(reason string)
}

// Service implements the task business logic.
type Service struct {
	log    *slog.Logger
	cache  *store.Cache[[]domain.Task]
	remote gateway
	policy syncPolicy
	syncer syncScheduler
}

// NewService creates a new todos service. remote may be nil when the
// application runs without a database; syncer may be nil when background sync
// is disabled.
func NewService(
	logger *slog.Logger,
	cache *store.Cache[[]domain.Task],
	remote gateway,
	policy syncPolicy,
	syncer syncScheduler,
) *Service {
	return &Service{
		log:    logger.With("service", "todos"),
		cache:  cache,
		remote: remote,
		policy: policy,
		syncer: syncer,
	}
}

// Tasks returns the current task list, newest first.
func (s *Service) Tasks() []domain.Task {
	return s.cache.Get()
}

// Add stores a new task. The title is trimmed and capped; an unknown priority
// falls back to medium rather than failing the call.
func (s *Service) Add(ctx context.Context, title, priority string) (domain.Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return domain.Task{}, fmt.Errorf("task title is required: %w", domain.ErrValidation)
	}
	if len([]rune(title)) > maxTitleLen {
		title = string([]rune(title)[:maxTitleLen])
	}

	now := time.Now().UTC()
	t := domain.Task{
		ID:        uuid.New(),
		Title:     title,
		Priority:  domain.CoercePriority(priority),
		CreatedAt: now,
		UpdatedAt: now,
	}

	userID, canRemote := s.remoteUser(ctx)
	if canRemote {
		t.UserID = &userID
	}

	apply := func(prev []domain.Task) []domain.Task {
		// Newest first, matching the remote list order.
		return append([]domain.Task{t}, prev...)
	}

	var remoteCall func(ctx context.Context) (func([]domain.Task) []domain.Task, error)
	if canRemote {
		remoteCall = func(ctx context.Context) (func([]domain.Task) []domain.Task, error) {
			stored, err := s.remote.Insert(ctx, t)
			if err != nil {
				return nil, err
			}
			return func(cur []domain.Task) []domain.Task {
				return replaceTask(cur, t.ID, stored)
			}, nil
		}
	}

	if err := optimistic.Mutate(ctx, s.cache, apply, remoteCall); err != nil {
		s.log.WarnContext(ctx, "remote task insert failed, rolled back",
			slog.String("task_id", t.ID.String()), slog.Any("error", err))
		return domain.Task{}, err
	}

	s.scheduleSync("todos.add")
	return t, nil
}

// Toggle flips the completed flag of the task with the given id.
func (s *Service) Toggle(ctx context.Context, id uuid.UUID) error {
	current, ok := findTask(s.cache.Get(), id)
	if !ok {
		return fmt.Errorf("task %s: %w", id, domain.ErrNotFound)
	}
	next := !current.Completed
	return s.update(ctx, id, task.Patch{Completed: &next}, "todos.toggle")
}

// Update applies a partial patch to the task with the given id.
func (s *Service) Update(ctx context.Context, id uuid.UUID, p task.Patch) error {
	if p.Title != nil {
		trimmed := strings.TrimSpace(*p.Title)
		if trimmed == "" {
			return fmt.Errorf("task title is required: %w", domain.ErrValidation)
		}
		p.Title = &trimmed
	}
	if p.Priority != nil && !p.Priority.IsValid() {
		coerced := domain.CoercePriority(p.Priority.String())
		p.Priority = &coerced
	}
	if _, ok := findTask(s.cache.Get(), id); !ok {
		return fmt.Errorf("task %s: %w", id, domain.ErrNotFound)
	}
	return s.update(ctx, id, p, "todos.update")
}

func (s *Service) update(ctx context.Context, id uuid.UUID, p task.Patch, reason string) error {
	apply := func(prev []domain.Task) []domain.Task {
		next := cloneTasks(prev)
		for i, t := range next {
			if t.ID == id {
				next[i] = applyPatch(t, p)
				break
			}
		}
		return next
	}

	userID, canRemote := s.remoteUser(ctx)
	var remoteCall func(ctx context.Context) (func([]domain.Task) []domain.Task, error)
	if canRemote {
		remoteCall = func(ctx context.Context) (func([]domain.Task) []domain.Task, error) {
			stored, err := s.remote.Update(ctx, userID, id, p)
			if err != nil {
				return nil, err
			}
			return func(cur []domain.Task) []domain.Task {
				return replaceTask(cur, id, stored)
			}, nil
		}
	}

	if err := optimistic.Mutate(ctx, s.cache, apply, remoteCall); err != nil {
		s.log.WarnContext(ctx, "remote task update failed, rolled back",
			slog.String("task_id", id.String()), slog.Any("error", err))
		return err
	}

	s.scheduleSync(reason)
	return nil
}

// Remove deletes the task with the given id.
func (s *Service) Remove(ctx context.Context, id uuid.UUID) error {
	if _, ok := findTask(s.cache.Get(), id); !ok {
		return fmt.Errorf("task %s: %w", id, domain.ErrNotFound)
	}

	apply := func(prev []domain.Task) []domain.Task {
		next := make([]domain.Task, 0, len(prev))
		for _, t := range prev {
			if t.ID != id {
				next = append(next, t)
			}
		}
		return next
	}

	userID, canRemote := s.remoteUser(ctx)
	var remoteCall func(ctx context.Context) (func([]domain.Task) []domain.Task, error)
	if canRemote {
		remoteCall = func(ctx context.Context) (func([]domain.Task) []domain.Task, error) {
			return nil, s.remote.Delete(ctx, userID, id)
		}
	}

	if err := optimistic.Mutate(ctx, s.cache, apply, remoteCall); err != nil {
		s.log.WarnContext(ctx, "remote task delete failed, rolled back",
			slog.String("task_id", id.String()), slog.Any("error", err))
		return err
	}

	s.scheduleSync("todos.remove")
	return nil
}

// Refetch replaces the cache with the remote list when connectivity allows
// it. In local-only mode the cache is left as is.
func (s *Service) Refetch(ctx context.Context) error {
	userID, canRemote := s.remoteUser(ctx)
	if !canRemote {
		return nil
	}

	fetched, err := s.remote.List(ctx, userID)
	if err != nil {
		return fmt.Errorf("refetch tasks: %w", err)
	}
	s.cache.SetValue(ctx, fetched)
	return nil
}

func (s *Service) remoteUser(ctx context.Context) (uuid.UUID, bool) {
	if s.remote == nil || s.policy == nil || !s.policy.CanRemoteSync(ctx) {
		return uuid.Nil, false
	}
	return ctxutil.UserIDFromCtx(ctx)
}

func (s *Service) scheduleSync(reason string) {
	if s.syncer != nil {
		s.syncer.ScheduleSync(reason)
	}
}

func applyPatch(t domain.Task, p task.Patch) domain.Task {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
	t.UpdatedAt = time.Now().UTC()
	return t
}

func cloneTasks(tasks []domain.Task) []domain.Task {
	out := make([]domain.Task, len(tasks))
	copy(out, tasks)
	return out
}

func replaceTask(tasks []domain.Task, id uuid.UUID, with domain.Task) []domain.Task {
	next := cloneTasks(tasks)
	for i, t := range next {
		if t.ID == id {
			next[i] = with
			break
		}
	}
	return next
}

func findTask(tasks []domain.Task, id uuid.UUID) (domain.Task, bool) {
	for _, t := range tasks {
		if t.ID == id {
			return t, true
		}
	}
	return domain.Task{}, false
}
