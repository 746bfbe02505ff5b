// Package wellness implements the wellness entity hook: one row per day,
// upsert semantics, and range statistics over the reactive cache.
package wellness

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/dailysync/keeper/internal/domain"
	"github.com/dailysync/keeper/internal/optimistic"
	"github.com/dailysync/keeper/internal/store"
	"github.com/dailysync/keeper/pkg/ctxutil"
)

const (
	dateLayout = "2006-01-02"

	// DefaultRangeDays is the window used when the caller asks for stats
	// without an explicit range.
	DefaultRangeDays = 30
)

type gateway interface {
	ListRange(ctx context.Context, userID uuid.UUID, start, end string) ([]domain.WellnessRow, error)
	Upsert(ctx context.Context, row domain.WellnessRow) (domain.WellnessRow, error)
}

type syncPolicy interface {
	CanRemoteSync(ctx context.Context) bool
}

type syncScheduler interface {
	ScheduleSync(reason string)
}

// Service implements the wellness business logic.
type Service struct {
	log    *slog.Logger
	cache  *store.Cache[[]domain.WellnessRow]
	remote gateway
	policy syncPolicy
	syncer syncScheduler
}

// NewService creates a new wellness service. remote may be nil when the
// application runs without a database; syncer may be nil when background sync
// is disabled.
func NewService(
	logger *slog.Logger,
	cache *store.Cache[[]domain.WellnessRow],
	remote gateway,
	policy syncPolicy,
	syncer syncScheduler,
) *Service {
	return &Service{
		log:    logger.With("service", "wellness"),
		cache:  cache,
		remote: remote,
		policy: policy,
		syncer: syncer,
	}
}

// Rows returns the cached wellness rows ordered by date.
func (s *Service) Rows() []domain.WellnessRow {
	return s.cache.Get()
}

// Upsert validates and stores the row for its date, replacing any existing
// row for the same day. Mood and energy must be in 1..5; steps and calories
// must be non-negative.
func (s *Service) Upsert(ctx context.Context, row domain.WellnessRow) (domain.WellnessRow, error) {
	if err := validate(row); err != nil {
		return domain.WellnessRow{}, err
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}

	userID, canRemote := s.remoteUser(ctx)
	if canRemote {
		row.UserID = &userID
	}

	apply := func(prev []domain.WellnessRow) []domain.WellnessRow {
		return sortRows(upsertRow(prev, row))
	}

	var remoteCall func(ctx context.Context) (func([]domain.WellnessRow) []domain.WellnessRow, error)
	if canRemote {
		remoteCall = func(ctx context.Context) (func([]domain.WellnessRow) []domain.WellnessRow, error) {
			stored, err := s.remote.Upsert(ctx, row)
			if err != nil {
				return nil, err
			}
			return func(cur []domain.WellnessRow) []domain.WellnessRow {
				return sortRows(upsertRow(cur, stored))
			}, nil
		}
	}

	if err := optimistic.Mutate(ctx, s.cache, apply, remoteCall); err != nil {
		s.log.WarnContext(ctx, "remote wellness upsert failed, rolled back",
			slog.String("date", row.Date), slog.Any("error", err))
		return domain.WellnessRow{}, err
	}

	s.scheduleSync("wellness.upsert")
	return row, nil
}

// RowForDate returns the row recorded for date, if any.
func (s *Service) RowForDate(date string) (domain.WellnessRow, bool) {
	for _, r := range s.cache.Get() {
		if r.Date == date {
			return r, true
		}
	}
	return domain.WellnessRow{}, false
}

// Stats aggregates the rows with start <= date <= end. Averages skip
// unrecorded values instead of counting them as zero.
func (s *Service) Stats(start, end string) domain.WellnessStats {
	var stats domain.WellnessStats
	var moodSum, moodN, energySum, energyN int
	for _, r := range s.cache.Get() {
		if r.Date < start || r.Date > end {
			continue
		}
		if r.Mood != nil {
			moodSum += *r.Mood
			moodN++
		}
		if r.Energy != nil {
			energySum += *r.Energy
			energyN++
		}
		if r.Steps != nil {
			stats.TotalSteps += *r.Steps
		}
		if r.Calories != nil {
			stats.TotalCalories += *r.Calories
		}
	}
	if moodN > 0 {
		stats.AvgMood = float64(moodSum) / float64(moodN)
	}
	if energyN > 0 {
		stats.AvgEnergy = float64(energySum) / float64(energyN)
	}
	return stats
}

// DefaultRange returns the trailing DefaultRangeDays window ending at now.
func DefaultRange(now time.Time) (start, end string) {
	end = now.Format(dateLayout)
	start = now.AddDate(0, 0, -(DefaultRangeDays - 1)).Format(dateLayout)
	return start, end
}

// Refetch replaces the cache with the remote rows in [start, end] when
// connectivity allows it. In local-only mode the cache is left as is.
func (s *Service) Refetch(ctx context.Context, start, end string) error {
	userID, canRemote := s.remoteUser(ctx)
	if !canRemote {
		return nil
	}

	fetched, err := s.remote.ListRange(ctx, userID, start, end)
	if err != nil {
		return fmt.Errorf("refetch wellness: %w", err)
	}
	s.cache.SetValue(ctx, sortRows(fetched))
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

func validate(row domain.WellnessRow) error {
	if _, err := time.Parse(dateLayout, row.Date); err != nil {
		return fmt.Errorf("wellness date %q: %w", row.Date, domain.ErrValidation)
	}
	if row.Mood != nil && (*row.Mood < 1 || *row.Mood > 5) {
		return fmt.Errorf("mood must be in 1..5: %w", domain.ErrValidation)
	}
	if row.Energy != nil && (*row.Energy < 1 || *row.Energy > 5) {
		return fmt.Errorf("energy must be in 1..5: %w", domain.ErrValidation)
	}
	if row.Steps != nil && *row.Steps < 0 {
		return fmt.Errorf("steps must not be negative: %w", domain.ErrValidation)
	}
	if row.Calories != nil && *row.Calories < 0 {
		return fmt.Errorf("calories must not be negative: %w", domain.ErrValidation)
	}
	return nil
}

func upsertRow(rows []domain.WellnessRow, row domain.WellnessRow) []domain.WellnessRow {
	next := make([]domain.WellnessRow, 0, len(rows)+1)
	for _, r := range rows {
		if r.Date != row.Date {
			next = append(next, r)
		}
	}
	return append(next, row)
}

func sortRows(rows []domain.WellnessRow) []domain.WellnessRow {
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Date < rows[j].Date
	})
	return rows
}
