// Package calendar implements the calendar entity hook: optimistic local
// mutations over the reactive event cache, reconciled against the remote
// gateway when connectivity allows it.
package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/dailysync/keeper/internal/adapter/postgres/event"
	"github.com/dailysync/keeper/internal/domain"
	"github.com/dailysync/keeper/internal/optimistic"
	"github.com/dailysync/keeper/internal/store"
	"github.com/dailysync/keeper/pkg/ctxutil"
)

const (
	// DefaultDuration is applied when a new event carries no duration.
	DefaultDuration = 60
	// DefaultColor is applied when a new event carries no usable color.
	DefaultColor = "#005f99"

	maxTitleLen = 120
	dateLayout  = "2006-01-02"
)

var hexColorRe = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

type gateway interface {
	List(ctx context.Context, userID uuid.UUID, f event.Filter) ([]domain.CalendarEvent, error)
	Insert(ctx context.Context, e domain.CalendarEvent) (domain.CalendarEvent, error)
	Update(ctx context.Context, userID, id uuid.UUID, p domain.EventPatch) (domain.CalendarEvent, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
}

type syncPolicy interface {
	CanRemoteSync(ctx context.Context) bool
}

type syncScheduler interface {
	ScheduleSync(reason string)
}

// Service implements the calendar business logic.
type Service struct {
	log    *slog.Logger
	cache  *store.Cache[[]domain.CalendarEvent]
	remote gateway
	policy syncPolicy
	syncer syncScheduler
}

// NewService creates a new calendar service. remote may be nil when the
// application runs without a database; syncer may be nil when background sync
// is disabled.
func NewService(
	logger *slog.Logger,
	cache *store.Cache[[]domain.CalendarEvent],
	remote gateway,
	policy syncPolicy,
	syncer syncScheduler,
) *Service {
	return &Service{
		log:    logger.With("service", "calendar"),
		cache:  cache,
		remote: remote,
		policy: policy,
		syncer: syncer,
	}
}

// Events returns the current events, ordered by (date, time).
func (s *Service) Events() []domain.CalendarEvent {
	return s.cache.Get()
}

// Add validates, normalizes, and stores a new event. The event is visible in
// the local cache immediately; when remote sync is allowed the server row
// (with its timestamps) replaces the optimistic one, and on remote failure
// the cache is rolled back to its pre-mutation state.
func (s *Service) Add(ctx context.Context, e domain.CalendarEvent) (domain.CalendarEvent, error) {
	normalized, err := normalize(e)
	if err != nil {
		return domain.CalendarEvent{}, err
	}
	normalized.ID = uuid.New()
	normalized.CreatedAt = time.Now().UTC()
	normalized.UpdatedAt = normalized.CreatedAt

	userID, canRemote := s.remoteUser(ctx)
	if canRemote {
		normalized.UserID = &userID
	}

	apply := func(prev []domain.CalendarEvent) []domain.CalendarEvent {
		return sortEvents(append(cloneEvents(prev), normalized))
	}

	var remoteCall func(ctx context.Context) (func([]domain.CalendarEvent) []domain.CalendarEvent, error)
	if canRemote {
		remoteCall = func(ctx context.Context) (func([]domain.CalendarEvent) []domain.CalendarEvent, error) {
			stored, err := s.remote.Insert(ctx, normalized)
			if err != nil {
				return nil, err
			}
			return func(cur []domain.CalendarEvent) []domain.CalendarEvent {
				return sortEvents(replaceEvent(cur, normalized.ID, stored))
			}, nil
		}
	}

	if err := optimistic.Mutate(ctx, s.cache, apply, remoteCall); err != nil {
		s.log.WarnContext(ctx, "remote event insert failed, rolled back",
			slog.String("event_id", normalized.ID.String()), slog.Any("error", err))
		return domain.CalendarEvent{}, err
	}

	s.scheduleSync("calendar.add")
	return normalized, nil
}

// Update applies a partial patch to the event with the given id. Date and
// time changes re-sort the list. A remote failure restores the previous
// state.
func (s *Service) Update(ctx context.Context, id uuid.UUID, p domain.EventPatch) error {
	if err := validatePatch(p); err != nil {
		return err
	}
	if !containsEvent(s.cache.Get(), id) {
		return fmt.Errorf("event %s: %w", id, domain.ErrNotFound)
	}

	apply := func(prev []domain.CalendarEvent) []domain.CalendarEvent {
		next := cloneEvents(prev)
		for i, e := range next {
			if e.ID == id {
				next[i] = p.Apply(e)
				next[i].UpdatedAt = time.Now().UTC()
				break
			}
		}
		return sortEvents(next)
	}

	userID, canRemote := s.remoteUser(ctx)
	var remoteCall func(ctx context.Context) (func([]domain.CalendarEvent) []domain.CalendarEvent, error)
	if canRemote {
		remoteCall = func(ctx context.Context) (func([]domain.CalendarEvent) []domain.CalendarEvent, error) {
			stored, err := s.remote.Update(ctx, userID, id, p)
			if err != nil {
				return nil, err
			}
			return func(cur []domain.CalendarEvent) []domain.CalendarEvent {
				return sortEvents(replaceEvent(cur, id, stored))
			}, nil
		}
	}

	if err := optimistic.Mutate(ctx, s.cache, apply, remoteCall); err != nil {
		s.log.WarnContext(ctx, "remote event update failed, rolled back",
			slog.String("event_id", id.String()), slog.Any("error", err))
		return err
	}

	s.scheduleSync("calendar.update")
	return nil
}

// Remove deletes the event with the given id.
func (s *Service) Remove(ctx context.Context, id uuid.UUID) error {
	if !containsEvent(s.cache.Get(), id) {
		return fmt.Errorf("event %s: %w", id, domain.ErrNotFound)
	}

	apply := func(prev []domain.CalendarEvent) []domain.CalendarEvent {
		next := make([]domain.CalendarEvent, 0, len(prev))
		for _, e := range prev {
			if e.ID != id {
				next = append(next, e)
			}
		}
		return next
	}

	userID, canRemote := s.remoteUser(ctx)
	var remoteCall func(ctx context.Context) (func([]domain.CalendarEvent) []domain.CalendarEvent, error)
	if canRemote {
		remoteCall = func(ctx context.Context) (func([]domain.CalendarEvent) []domain.CalendarEvent, error) {
			return nil, s.remote.Delete(ctx, userID, id)
		}
	}

	if err := optimistic.Mutate(ctx, s.cache, apply, remoteCall); err != nil {
		s.log.WarnContext(ctx, "remote event delete failed, rolled back",
			slog.String("event_id", id.String()), slog.Any("error", err))
		return err
	}

	s.scheduleSync("calendar.remove")
	return nil
}

// Refetch replaces the cache with the remote list when connectivity allows
// it. In local-only mode the cache is left as is.
func (s *Service) Refetch(ctx context.Context) error {
	userID, canRemote := s.remoteUser(ctx)
	if !canRemote {
		return nil
	}

	fetched, err := s.remote.List(ctx, userID, event.Filter{})
	if err != nil {
		return fmt.Errorf("refetch events: %w", err)
	}
	s.cache.SetValue(ctx, sortEvents(fetched))
	return nil
}

// EventsForDate returns the events on the given day, ordered by time.
func (s *Service) EventsForDate(date string) []domain.CalendarEvent {
	var out []domain.CalendarEvent
	for _, e := range s.cache.Get() {
		if e.Date == date {
			out = append(out, e)
		}
	}
	return out
}

// EventsForWeek returns a map covering exactly the seven days starting at
// startDate. Days without events map to an empty slice, never a missing key.
func (s *Service) EventsForWeek(startDate string) (map[string][]domain.CalendarEvent, error) {
	start, err := time.Parse(dateLayout, startDate)
	if err != nil {
		return nil, fmt.Errorf("week start %q: %w", startDate, domain.ErrValidation)
	}

	week := make(map[string][]domain.CalendarEvent, 7)
	for i := 0; i < 7; i++ {
		week[start.AddDate(0, 0, i).Format(dateLayout)] = []domain.CalendarEvent{}
	}
	for _, e := range s.cache.Get() {
		if days, ok := week[e.Date]; ok {
			week[e.Date] = append(days, e)
		}
	}
	return week, nil
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

func normalize(e domain.CalendarEvent) (domain.CalendarEvent, error) {
	if e.Title == "" {
		return domain.CalendarEvent{}, fmt.Errorf("event title is required: %w", domain.ErrValidation)
	}
	if len([]rune(e.Title)) > maxTitleLen {
		e.Title = string([]rune(e.Title)[:maxTitleLen])
	}
	if _, err := time.Parse(dateLayout, e.Date); err != nil {
		return domain.CalendarEvent{}, fmt.Errorf("event date %q: %w", e.Date, domain.ErrValidation)
	}
	if e.Time != "" {
		if _, err := time.Parse("15:04", e.Time); err != nil {
			return domain.CalendarEvent{}, fmt.Errorf("event time %q: %w", e.Time, domain.ErrValidation)
		}
	}
	if e.Duration <= 0 {
		e.Duration = DefaultDuration
	}
	if !hexColorRe.MatchString(e.Color) {
		e.Color = DefaultColor
	}
	return e, nil
}

func validatePatch(p domain.EventPatch) error {
	if p.Title != nil && *p.Title == "" {
		return fmt.Errorf("event title is required: %w", domain.ErrValidation)
	}
	if p.Date != nil {
		if _, err := time.Parse(dateLayout, *p.Date); err != nil {
			return fmt.Errorf("event date %q: %w", *p.Date, domain.ErrValidation)
		}
	}
	if p.Time != nil && *p.Time != "" {
		if _, err := time.Parse("15:04", *p.Time); err != nil {
			return fmt.Errorf("event time %q: %w", *p.Time, domain.ErrValidation)
		}
	}
	if p.Duration != nil && *p.Duration <= 0 {
		return fmt.Errorf("event duration must be positive: %w", domain.ErrValidation)
	}
	return nil
}

func sortEvents(events []domain.CalendarEvent) []domain.CalendarEvent {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Before(events[j])
	})
	return events
}

func cloneEvents(events []domain.CalendarEvent) []domain.CalendarEvent {
	out := make([]domain.CalendarEvent, len(events))
	copy(out, events)
	return out
}

func replaceEvent(events []domain.CalendarEvent, id uuid.UUID, with domain.CalendarEvent) []domain.CalendarEvent {
	next := cloneEvents(events)
	for i, e := range next {
		if e.ID == id {
			next[i] = with
			break
		}
	}
	return next
}

func containsEvent(events []domain.CalendarEvent, id uuid.UUID) bool {
	for _, e := range events {
		if e.ID == id {
			return true
		}
	}
	return false
}
