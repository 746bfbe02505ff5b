// Package expenses implements the expense entity hook: optimistic local
// mutations over the reactive expense cache, monthly budgets, and the derived
// spending views (recent/scheduled partition, totals, category distribution).
package expenses

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dailysync/keeper/internal/domain"
	"github.com/dailysync/keeper/internal/optimistic"
	"github.com/dailysync/keeper/internal/store"
	"github.com/dailysync/keeper/pkg/ctxutil"
)

const dateLayout = "2006-01-02"

type gateway interface {
	List(ctx context.Context, userID uuid.UUID) ([]domain.Expense, error)
	Insert(ctx context.Context, e domain.Expense) (domain.Expense, error)
	Update(ctx context.Context, userID, id uuid.UUID, p domain.ExpensePatch) (domain.Expense, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
}

type budgetGateway interface {
	Get(ctx context.Context, userID uuid.UUID, year, month int) (domain.Budget, error)
	Upsert(ctx context.Context, userID uuid.UUID, year, month int, amount float64) (domain.Budget, error)
}

type syncPolicy interface {
	CanRemoteSync(ctx context.Context) bool
}

type syncScheduler interface {
	ScheduleSync(reason string)
}

// Service implements the expense and budget business logic.
type Service struct {
	log     *slog.Logger
	cache   *store.Cache[[]domain.Expense]
	budgets *store.Cache[map[string]domain.Budget]
	remote  gateway
	budget  budgetGateway
	policy  syncPolicy
	syncer  syncScheduler
}

// NewService creates a new expenses service. remote and budget may be nil
// when the application runs without a database; syncer may be nil when
// background sync is disabled.
func NewService(
	logger *slog.Logger,
	cache *store.Cache[[]domain.Expense],
	budgets *store.Cache[map[string]domain.Budget],
	remote gateway,
	budget budgetGateway,
	policy syncPolicy,
	syncer syncScheduler,
) *Service {
	return &Service{
		log:     logger.With("service", "expenses"),
		cache:   cache,
		budgets: budgets,
		remote:  remote,
		budget:  budget,
		policy:  policy,
		syncer:  syncer,
	}
}

// Expenses returns the current expenses, ordered by (date, description).
func (s *Service) Expenses() []domain.Expense {
	return s.cache.Get()
}

// Add validates and stores a new expense. Amount must be strictly positive.
func (s *Service) Add(ctx context.Context, e domain.Expense) (domain.Expense, error) {
	if e.Amount <= 0 {
		return domain.Expense{}, fmt.Errorf("expense amount must be positive: %w", domain.ErrValidation)
	}
	if _, err := time.Parse(dateLayout, e.Date); err != nil {
		return domain.Expense{}, fmt.Errorf("expense date %q: %w", e.Date, domain.ErrValidation)
	}
	if strings.TrimSpace(e.Category) == "" {
		e.Category = "general"
	}

	e.ID = uuid.New()
	now := time.Now().UTC()
	e.CreatedAt = now
	e.UpdatedAt = now

	userID, canRemote := s.remoteUser(ctx)
	if canRemote {
		e.UserID = &userID
	}

	apply := func(prev []domain.Expense) []domain.Expense {
		return sortExpenses(append(cloneExpenses(prev), e))
	}

	var remoteCall func(ctx context.Context) (func([]domain.Expense) []domain.Expense, error)
	if canRemote {
		remoteCall = func(ctx context.Context) (func([]domain.Expense) []domain.Expense, error) {
			stored, err := s.remote.Insert(ctx, e)
			if err != nil {
				return nil, err
			}
			return func(cur []domain.Expense) []domain.Expense {
				return sortExpenses(replaceExpense(cur, e.ID, stored))
			}, nil
		}
	}

	if err := optimistic.Mutate(ctx, s.cache, apply, remoteCall); err != nil {
		s.log.WarnContext(ctx, "remote expense insert failed, rolled back",
			slog.String("expense_id", e.ID.String()), slog.Any("error", err))
		return domain.Expense{}, err
	}

	s.scheduleSync("expenses.add")
	return e, nil
}

// Update applies a partial patch to the expense with the given id.
func (s *Service) Update(ctx context.Context, id uuid.UUID, p domain.ExpensePatch) error {
	if p.Amount != nil && *p.Amount <= 0 {
		return fmt.Errorf("expense amount must be positive: %w", domain.ErrValidation)
	}
	if p.Date != nil {
		if _, err := time.Parse(dateLayout, *p.Date); err != nil {
			return fmt.Errorf("expense date %q: %w", *p.Date, domain.ErrValidation)
		}
	}
	if !containsExpense(s.cache.Get(), id) {
		return fmt.Errorf("expense %s: %w", id, domain.ErrNotFound)
	}

	apply := func(prev []domain.Expense) []domain.Expense {
		next := cloneExpenses(prev)
		for i, e := range next {
			if e.ID == id {
				next[i] = p.Apply(e)
				next[i].UpdatedAt = time.Now().UTC()
				break
			}
		}
		return sortExpenses(next)
	}

	userID, canRemote := s.remoteUser(ctx)
	var remoteCall func(ctx context.Context) (func([]domain.Expense) []domain.Expense, error)
	if canRemote {
		remoteCall = func(ctx context.Context) (func([]domain.Expense) []domain.Expense, error) {
			stored, err := s.remote.Update(ctx, userID, id, p)
			if err != nil {
				return nil, err
			}
			return func(cur []domain.Expense) []domain.Expense {
				return sortExpenses(replaceExpense(cur, id, stored))
			}, nil
		}
	}

	if err := optimistic.Mutate(ctx, s.cache, apply, remoteCall); err != nil {
		s.log.WarnContext(ctx, "remote expense update failed, rolled back",
			slog.String("expense_id", id.String()), slog.Any("error", err))
		return err
	}

	s.scheduleSync("expenses.update")
	return nil
}

// Remove deletes the expense with the given id.
func (s *Service) Remove(ctx context.Context, id uuid.UUID) error {
	if !containsExpense(s.cache.Get(), id) {
		return fmt.Errorf("expense %s: %w", id, domain.ErrNotFound)
	}

	apply := func(prev []domain.Expense) []domain.Expense {
		next := make([]domain.Expense, 0, len(prev))
		for _, e := range prev {
			if e.ID != id {
				next = append(next, e)
			}
		}
		return next
	}

	userID, canRemote := s.remoteUser(ctx)
	var remoteCall func(ctx context.Context) (func([]domain.Expense) []domain.Expense, error)
	if canRemote {
		remoteCall = func(ctx context.Context) (func([]domain.Expense) []domain.Expense, error) {
			return nil, s.remote.Delete(ctx, userID, id)
		}
	}

	if err := optimistic.Mutate(ctx, s.cache, apply, remoteCall); err != nil {
		s.log.WarnContext(ctx, "remote expense delete failed, rolled back",
			slog.String("expense_id", id.String()), slog.Any("error", err))
		return err
	}

	s.scheduleSync("expenses.remove")
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
		return fmt.Errorf("refetch expenses: %w", err)
	}
	s.cache.SetValue(ctx, sortExpenses(fetched))
	return nil
}

// Partition splits expenses into recent (date <= today) and scheduled
// (date > today). Both halves keep the (date, description) order.
func (s *Service) Partition(today string) (recent, scheduled []domain.Expense) {
	for _, e := range s.cache.Get() {
		if e.Date <= today {
			recent = append(recent, e)
		} else {
			scheduled = append(scheduled, e)
		}
	}
	return recent, scheduled
}

// MonthlyTotal sums the expenses dated within (year, month).
func (s *Service) MonthlyTotal(year, month int) float64 {
	prefix := monthKey(year, month)
	var total float64
	for _, e := range s.cache.Get() {
		if strings.HasPrefix(e.Date, prefix) {
			total += e.Amount
		}
	}
	return total
}

// CategoryDistribution sums the month's expenses per category.
func (s *Service) CategoryDistribution(year, month int) map[string]float64 {
	prefix := monthKey(year, month)
	dist := make(map[string]float64)
	for _, e := range s.cache.Get() {
		if strings.HasPrefix(e.Date, prefix) {
			dist[e.Category] += e.Amount
		}
	}
	return dist
}

// DailyTotals sums the month's expenses per day.
func (s *Service) DailyTotals(year, month int) map[string]float64 {
	prefix := monthKey(year, month)
	totals := make(map[string]float64)
	for _, e := range s.cache.Get() {
		if strings.HasPrefix(e.Date, prefix) {
			totals[e.Date] += e.Amount
		}
	}
	return totals
}

// WeeklyTotals sums the month's expenses per week-of-month bucket (1..5,
// days 1-7 in week 1). Undated or malformed rows are skipped.
func (s *Service) WeeklyTotals(year, month int) map[int]float64 {
	prefix := monthKey(year, month)
	totals := make(map[int]float64)
	for _, e := range s.cache.Get() {
		if !strings.HasPrefix(e.Date, prefix) {
			continue
		}
		d, err := time.Parse(dateLayout, e.Date)
		if err != nil {
			continue
		}
		totals[(d.Day()-1)/7+1] += e.Amount
	}
	return totals
}

// SetBudget creates or replaces the budget for (year, month). Repeating the
// same call is idempotent: one budget row per month, amount replaced.
func (s *Service) SetBudget(ctx context.Context, year, month int, amount float64) (domain.Budget, error) {
	if month < 1 || month > 12 {
		return domain.Budget{}, fmt.Errorf("budget month %d: %w", month, domain.ErrValidation)
	}
	if amount < 0 {
		return domain.Budget{}, fmt.Errorf("budget amount must not be negative: %w", domain.ErrValidation)
	}

	b := domain.Budget{
		ID:        uuid.New(),
		Year:      year,
		Month:     month,
		Amount:    amount,
		UpdatedAt: time.Now().UTC(),
	}

	userID, canRemote := s.remoteUser(ctx)
	if canRemote && s.budget != nil {
		stored, err := s.budget.Upsert(ctx, userID, year, month, amount)
		if err != nil {
			return domain.Budget{}, fmt.Errorf("upsert budget: %w", err)
		}
		b = stored
	}

	key := monthKey(year, month)
	s.budgets.Set(ctx, func(prev map[string]domain.Budget) map[string]domain.Budget {
		next := make(map[string]domain.Budget, len(prev)+1)
		for k, v := range prev {
			next[k] = v
		}
		// Keep the id stable across local re-sets of the same month.
		if existing, ok := prev[key]; ok && b.ID != existing.ID && !canRemote {
			b.ID = existing.ID
		}
		next[key] = b
		return next
	})

	s.scheduleSync("expenses.budget")
	return b, nil
}

// Budget returns the budget for (year, month) if one was set.
func (s *Service) Budget(year, month int) (domain.Budget, bool) {
	b, ok := s.budgets.Get()[monthKey(year, month)]
	return b, ok
}

// Remaining returns budget minus the month's spending. ok is false when no
// budget is set for the month.
func (s *Service) Remaining(year, month int) (float64, bool) {
	b, ok := s.Budget(year, month)
	if !ok {
		return 0, false
	}
	return b.Amount - s.MonthlyTotal(year, month), true
}

// RefetchBudget pulls the remote budget for (year, month) into the local map
// when connectivity allows it. An absent remote budget clears the local one.
func (s *Service) RefetchBudget(ctx context.Context, year, month int) error {
	userID, canRemote := s.remoteUser(ctx)
	if !canRemote || s.budget == nil {
		return nil
	}

	key := monthKey(year, month)
	stored, err := s.budget.Get(ctx, userID, year, month)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.budgets.Set(ctx, func(prev map[string]domain.Budget) map[string]domain.Budget {
				next := make(map[string]domain.Budget, len(prev))
				for k, v := range prev {
					if k != key {
						next[k] = v
					}
				}
				return next
			})
			return nil
		}
		return fmt.Errorf("refetch budget: %w", err)
	}

	s.budgets.Set(ctx, func(prev map[string]domain.Budget) map[string]domain.Budget {
		next := make(map[string]domain.Budget, len(prev)+1)
		for k, v := range prev {
			next[k] = v
		}
		next[key] = stored
		return next
	})
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

func monthKey(year, month int) string {
	return fmt.Sprintf("%04d-%02d", year, month)
}

func sortExpenses(expenses []domain.Expense) []domain.Expense {
	sort.SliceStable(expenses, func(i, j int) bool {
		return expenses[i].Before(expenses[j])
	})
	return expenses
}

func cloneExpenses(expenses []domain.Expense) []domain.Expense {
	out := make([]domain.Expense, len(expenses))
	copy(out, expenses)
	return out
}

func replaceExpense(expenses []domain.Expense, id uuid.UUID, with domain.Expense) []domain.Expense {
	next := cloneExpenses(expenses)
	for i, e := range next {
		if e.ID == id {
			next[i] = with
			break
		}
	}
	return next
}

func containsExpense(expenses []domain.Expense, id uuid.UUID) bool {
	for _, e := range expenses {
		if e.ID == id {
			return true
		}
	}
	return false
}
