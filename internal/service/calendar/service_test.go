package calendar_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dailysync/keeper/internal/adapter/postgres/event"
	"github.com/dailysync/keeper/internal/bus"
	"github.com/dailysync/keeper/internal/domain"
	"github.com/dailysync/keeper/internal/kvstore"
	"github.com/dailysync/keeper/internal/service/calendar"
	"github.com/dailysync/keeper/internal/store"
	"github.com/dailysync/keeper/pkg/ctxutil"
)

type gatewayMock struct {
	listFn   func(ctx context.Context, userID uuid.UUID, f event.Filter) ([]domain.CalendarEvent, error)
	insertFn func(ctx context.Context, e domain.CalendarEvent) (domain.CalendarEvent, error)
	updateFn func(ctx context.Context, userID, id uuid.UUID, p domain.EventPatch) (domain.CalendarEvent, error)
	deleteFn func(ctx context.Context, userID, id uuid.UUID) error
}

func (m *gatewayMock) List(ctx context.Context, userID uuid.UUID, f event.Filter) ([]domain.CalendarEvent, error) {
	return m.listFn(ctx, userID, f)
}

func (m *gatewayMock) Insert(ctx context.Context, e domain.CalendarEvent) (domain.CalendarEvent, error) {
	return m.insertFn(ctx, e)
}

func (m *gatewayMock) Update(ctx context.Context, userID, id uuid.UUID, p domain.EventPatch) (domain.CalendarEvent, error) {
	return m.updateFn(ctx, userID, id, p)
}

func (m *gatewayMock) Delete(ctx context.Context, userID, id uuid.UUID) error {
	return m.deleteFn(ctx, userID, id)
}

type policyMock struct {
	allow bool
}

func (p policyMock) CanRemoteSync(context.Context) bool { return p.allow }

type schedulerMock struct {
	reasons []string
}

func (s *schedulerMock) ScheduleSync(reason string) { s.reasons = append(s.reasons, reason) }

func newCache(t *testing.T) *store.Cache[[]domain.CalendarEvent] {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	kv := kvstore.NewMemory(nil)
	return store.New(logger, kv, bus.New(), kvstore.KeyCalendar, bus.TopicCalendar, []domain.CalendarEvent{})
}

func newLocalService(t *testing.T) (*calendar.Service, *store.Cache[[]domain.CalendarEvent], *schedulerMock) {
	t.Helper()
	cache := newCache(t)
	sched := &schedulerMock{}
	svc := calendar.NewService(slog.New(slog.DiscardHandler), cache, nil, policyMock{allow: false}, sched)
	return svc, cache, sched
}

func TestService_Add_KeepsDateTimeOrder(t *testing.T) {
	t.Parallel()
	svc, _, _ := newLocalService(t)
	ctx := context.Background()

	_, err := svc.Add(ctx, domain.CalendarEvent{Title: "A", Date: "2024-05-10", Time: "10:00"})
	require.NoError(t, err)
	_, err = svc.Add(ctx, domain.CalendarEvent{Title: "B", Date: "2024-05-10", Time: "09:00"})
	require.NoError(t, err)

	events := svc.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "B", events[0].Title)
	assert.Equal(t, "A", events[1].Title)
}

func TestService_Update_TimeChangeResorts(t *testing.T) {
	t.Parallel()
	svc, _, _ := newLocalService(t)
	ctx := context.Background()

	_, err := svc.Add(ctx, domain.CalendarEvent{Title: "A", Date: "2024-05-10", Time: "10:00"})
	require.NoError(t, err)
	b, err := svc.Add(ctx, domain.CalendarEvent{Title: "B", Date: "2024-05-10", Time: "09:00"})
	require.NoError(t, err)

	newTime := "11:00"
	require.NoError(t, svc.Update(ctx, b.ID, domain.EventPatch{Time: &newTime}))

	events := svc.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "A", events[0].Title)
	assert.Equal(t, "B", events[1].Title)
}

func TestService_Add_EventsWithoutTimeSortLast(t *testing.T) {
	t.Parallel()
	svc, _, _ := newLocalService(t)
	ctx := context.Background()

	_, err := svc.Add(ctx, domain.CalendarEvent{Title: "all day", Date: "2024-05-10"})
	require.NoError(t, err)
	_, err = svc.Add(ctx, domain.CalendarEvent{Title: "timed", Date: "2024-05-10", Time: "23:00"})
	require.NoError(t, err)

	events := svc.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "timed", events[0].Title)
	assert.Equal(t, "all day", events[1].Title)
}

func TestService_Add_AppliesDefaults(t *testing.T) {
	t.Parallel()
	svc, _, _ := newLocalService(t)

	added, err := svc.Add(context.Background(), domain.CalendarEvent{
		Title: "bare",
		Date:  "2024-05-11",
		Color: "not-a-color",
	})
	require.NoError(t, err)
	assert.Equal(t, calendar.DefaultDuration, added.Duration)
	assert.Equal(t, calendar.DefaultColor, added.Color)
}

func TestService_Add_RejectsInvalidInput(t *testing.T) {
	t.Parallel()
	svc, _, _ := newLocalService(t)
	ctx := context.Background()

	_, err := svc.Add(ctx, domain.CalendarEvent{Date: "2024-05-11"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.Add(ctx, domain.CalendarEvent{Title: "x", Date: "11/05/2024"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.Add(ctx, domain.CalendarEvent{Title: "x", Date: "2024-05-11", Time: "25:99"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestService_Add_RemoteFailureRollsBack(t *testing.T) {
	t.Parallel()
	cache := newCache(t)
	userID := uuid.New()
	ctx := ctxutil.WithUserID(context.Background(), userID)

	remote := &gatewayMock{
		insertFn: func(context.Context, domain.CalendarEvent) (domain.CalendarEvent, error) {
			return domain.CalendarEvent{}, errors.New("server unavailable")
		},
	}
	svc := calendar.NewService(slog.New(slog.DiscardHandler), cache, remote, policyMock{allow: true}, nil)

	seeded, err := svc.Add(context.Background(), domain.CalendarEvent{Title: "kept", Date: "2024-05-12", Time: "08:00"})
	require.NoError(t, err)
	before := svc.Events()

	_, err = svc.Add(ctx, domain.CalendarEvent{Title: "doomed", Date: "2024-05-12", Time: "09:00"})
	require.Error(t, err)

	after := svc.Events()
	assert.Equal(t, before, after, "failed remote write must leave the cache untouched")
	require.Len(t, after, 1)
	assert.Equal(t, seeded.ID, after[0].ID)
}

func TestService_Add_ReconcilesServerRow(t *testing.T) {
	t.Parallel()
	cache := newCache(t)
	userID := uuid.New()
	ctx := ctxutil.WithUserID(context.Background(), userID)

	remote := &gatewayMock{
		insertFn: func(_ context.Context, e domain.CalendarEvent) (domain.CalendarEvent, error) {
			e.Description = "from server"
			return e, nil
		},
	}
	sched := &schedulerMock{}
	svc := calendar.NewService(slog.New(slog.DiscardHandler), cache, remote, policyMock{allow: true}, sched)

	added, err := svc.Add(ctx, domain.CalendarEvent{Title: "meeting", Date: "2024-05-13", Time: "10:00"})
	require.NoError(t, err)

	events := svc.Events()
	require.Len(t, events, 1)
	assert.Equal(t, added.ID, events[0].ID, "optimistic id survives reconciliation")
	assert.Equal(t, "from server", events[0].Description)
	assert.Equal(t, []string{"calendar.add"}, sched.reasons)
}

func TestService_Remove(t *testing.T) {
	t.Parallel()
	svc, _, _ := newLocalService(t)
	ctx := context.Background()

	added, err := svc.Add(ctx, domain.CalendarEvent{Title: "gone", Date: "2024-05-14", Time: "10:00"})
	require.NoError(t, err)

	require.NoError(t, svc.Remove(ctx, added.ID))
	assert.Empty(t, svc.Events())

	assert.ErrorIs(t, svc.Remove(ctx, uuid.New()), domain.ErrNotFound)
}

func TestService_EventsForWeek_AlwaysSevenKeys(t *testing.T) {
	t.Parallel()
	svc, _, _ := newLocalService(t)
	ctx := context.Background()

	_, err := svc.Add(ctx, domain.CalendarEvent{Title: "midweek", Date: "2024-05-15", Time: "10:00"})
	require.NoError(t, err)
	_, err = svc.Add(ctx, domain.CalendarEvent{Title: "outside", Date: "2024-06-01", Time: "10:00"})
	require.NoError(t, err)

	week, err := svc.EventsForWeek("2024-05-13")
	require.NoError(t, err)
	require.Len(t, week, 7)

	for _, day := range []string{
		"2024-05-13", "2024-05-14", "2024-05-15", "2024-05-16",
		"2024-05-17", "2024-05-18", "2024-05-19",
	} {
		_, ok := week[day]
		assert.True(t, ok, "missing day %s", day)
	}

	assert.Len(t, week["2024-05-15"], 1)
	assert.Empty(t, week["2024-05-16"])
	_, outside := week["2024-06-01"]
	assert.False(t, outside)
}

func TestService_EventsForDate(t *testing.T) {
	t.Parallel()
	svc, _, _ := newLocalService(t)
	ctx := context.Background()

	_, err := svc.Add(ctx, domain.CalendarEvent{Title: "match", Date: "2024-05-20", Time: "09:00"})
	require.NoError(t, err)
	_, err = svc.Add(ctx, domain.CalendarEvent{Title: "other day", Date: "2024-05-21", Time: "09:00"})
	require.NoError(t, err)

	got := svc.EventsForDate("2024-05-20")
	require.Len(t, got, 1)
	assert.Equal(t, "match", got[0].Title)
}

func TestService_Refetch_ReplacesCacheFromRemote(t *testing.T) {
	t.Parallel()
	cache := newCache(t)
	userID := uuid.New()
	ctx := ctxutil.WithUserID(context.Background(), userID)

	serverEvents := []domain.CalendarEvent{
		{ID: uuid.New(), Title: "second", Date: "2024-05-22", Time: "15:00"},
		{ID: uuid.New(), Title: "first", Date: "2024-05-22", Time: "08:00"},
	}
	remote := &gatewayMock{
		listFn: func(context.Context, uuid.UUID, event.Filter) ([]domain.CalendarEvent, error) {
			return serverEvents, nil
		},
	}
	svc := calendar.NewService(slog.New(slog.DiscardHandler), cache, remote, policyMock{allow: true}, nil)

	require.NoError(t, svc.Refetch(ctx))

	events := svc.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "first", events[0].Title)
	assert.Equal(t, "second", events[1].Title)
}

func TestService_Refetch_LocalOnlyIsNoop(t *testing.T) {
	t.Parallel()
	svc, _, _ := newLocalService(t)
	ctx := context.Background()

	_, err := svc.Add(ctx, domain.CalendarEvent{Title: "local", Date: "2024-05-23", Time: "10:00"})
	require.NoError(t, err)

	require.NoError(t, svc.Refetch(ctx))
	assert.Len(t, svc.Events(), 1)
}
