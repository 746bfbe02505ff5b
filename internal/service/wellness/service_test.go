package wellness_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dailysync/keeper/internal/bus"
	"github.com/dailysync/keeper/internal/domain"
	"github.com/dailysync/keeper/internal/kvstore"
	"github.com/dailysync/keeper/internal/service/wellness"
	"github.com/dailysync/keeper/internal/store"
)

func intPtr(v int) *int { return &v }

type policyMock struct {
	allow bool
}

func (p policyMock) CanRemoteSync(context.Context) bool { return p.allow }

func newLocalService(t *testing.T) *wellness.Service {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	cache := store.New(logger, kvstore.NewMemory(nil), bus.New(),
		kvstore.KeyWellness, bus.TopicWellness, []domain.WellnessRow{})
	return wellness.NewService(logger, cache, nil, policyMock{}, nil)
}

func TestService_Upsert_OneRowPerDay(t *testing.T) {
	t.Parallel()
	svc := newLocalService(t)
	ctx := context.Background()

	_, err := svc.Upsert(ctx, domain.WellnessRow{Date: "2024-07-01", Mood: intPtr(3)})
	require.NoError(t, err)
	_, err = svc.Upsert(ctx, domain.WellnessRow{Date: "2024-07-01", Mood: intPtr(5), Steps: intPtr(4000)})
	require.NoError(t, err)

	rows := svc.Rows()
	require.Len(t, rows, 1, "second write for the same day replaces the first")
	assert.Equal(t, 5, *rows[0].Mood)
	assert.Equal(t, 4000, *rows[0].Steps)
}

func TestService_Upsert_SortedByDate(t *testing.T) {
	t.Parallel()
	svc := newLocalService(t)
	ctx := context.Background()

	_, err := svc.Upsert(ctx, domain.WellnessRow{Date: "2024-07-05"})
	require.NoError(t, err)
	_, err = svc.Upsert(ctx, domain.WellnessRow{Date: "2024-07-01"})
	require.NoError(t, err)

	rows := svc.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, "2024-07-01", rows[0].Date)
	assert.Equal(t, "2024-07-05", rows[1].Date)
}

func TestService_Upsert_Validation(t *testing.T) {
	t.Parallel()
	svc := newLocalService(t)
	ctx := context.Background()

	cases := []struct {
		name string
		row  domain.WellnessRow
	}{
		{"bad date", domain.WellnessRow{Date: "01.07.2024"}},
		{"mood too high", domain.WellnessRow{Date: "2024-07-01", Mood: intPtr(6)}},
		{"mood too low", domain.WellnessRow{Date: "2024-07-01", Mood: intPtr(0)}},
		{"energy out of range", domain.WellnessRow{Date: "2024-07-01", Energy: intPtr(9)}},
		{"negative steps", domain.WellnessRow{Date: "2024-07-01", Steps: intPtr(-1)}},
		{"negative calories", domain.WellnessRow{Date: "2024-07-01", Calories: intPtr(-10)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Upsert(ctx, tc.row)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestService_Stats_SkipsUnrecordedValues(t *testing.T) {
	t.Parallel()
	svc := newLocalService(t)
	ctx := context.Background()

	for _, row := range []domain.WellnessRow{
		{Date: "2024-07-01", Mood: intPtr(4), Energy: intPtr(2), Steps: intPtr(5000)},
		{Date: "2024-07-02", Mood: intPtr(2), Calories: intPtr(1800)},
		{Date: "2024-07-03", Steps: intPtr(7000)},
		{Date: "2024-08-01", Mood: intPtr(5)},
	} {
		_, err := svc.Upsert(ctx, row)
		require.NoError(t, err)
	}

	stats := svc.Stats("2024-07-01", "2024-07-31")
	assert.InDelta(t, 3.0, stats.AvgMood, 0.001, "only recorded moods count")
	assert.InDelta(t, 2.0, stats.AvgEnergy, 0.001)
	assert.Equal(t, 12000, stats.TotalSteps)
	assert.Equal(t, 1800, stats.TotalCalories)
}

func TestService_Stats_EmptyRange(t *testing.T) {
	t.Parallel()
	svc := newLocalService(t)

	stats := svc.Stats("2024-01-01", "2024-01-31")
	assert.Zero(t, stats.AvgMood)
	assert.Zero(t, stats.AvgEnergy)
	assert.Zero(t, stats.TotalSteps)
}

func TestService_RowForDate(t *testing.T) {
	t.Parallel()
	svc := newLocalService(t)

	_, err := svc.Upsert(context.Background(), domain.WellnessRow{Date: "2024-07-10", Notes: "good day"})
	require.NoError(t, err)

	row, ok := svc.RowForDate("2024-07-10")
	require.True(t, ok)
	assert.Equal(t, "good day", row.Notes)
	assert.NotEqual(t, uuid.Nil, row.ID)

	_, ok = svc.RowForDate("2024-07-11")
	assert.False(t, ok)
}

func TestDefaultRange_Covers30Days(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 7, 31, 12, 0, 0, 0, time.UTC)

	start, end := wellness.DefaultRange(now)
	assert.Equal(t, "2024-07-31", end)
	assert.Equal(t, "2024-07-02", start)
}
