// Package profile implements the profile entity hook: user display
// preferences with get-or-default semantics, persisted locally and upserted
// remotely when connectivity allows it.
package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/dailysync/keeper/internal/domain"
	"github.com/dailysync/keeper/internal/store"
	"github.com/dailysync/keeper/pkg/ctxutil"
)

// Defaults applied when no profile has ever been saved.
const (
	DefaultLanguage = "it"
	DefaultTheme    = "light"
)

type gateway interface {
	Get(ctx context.Context, userID uuid.UUID) (domain.Profile, error)
	Upsert(ctx context.Context, p domain.Profile) (domain.Profile, error)
}

type syncPolicy interface {
	CanRemoteSync(ctx context.Context) bool
}

type syncScheduler interface {
	ScheduleSync(reason string)
}

// Service implements the profile business logic.
type Service struct {
	log    *slog.Logger
	cache  *store.Cache[domain.Profile]
	remote gateway
	policy syncPolicy
	syncer syncScheduler
}

// NewService creates a new profile service. remote may be nil when the
// application runs without a database; syncer may be nil when background sync
// is disabled.
func NewService(
	logger *slog.Logger,
	cache *store.Cache[domain.Profile],
	remote gateway,
	policy syncPolicy,
	syncer syncScheduler,
) *Service {
	return &Service{
		log:    logger.With("service", "profile"),
		cache:  cache,
		remote: remote,
		policy: policy,
		syncer: syncer,
	}
}

// Default returns the profile used before anything was ever saved.
func Default() domain.Profile {
	return domain.Profile{Language: DefaultLanguage, Theme: DefaultTheme}
}

// Profile returns the current profile. A profile that was never saved yields
// the defaults rather than an error.
func (s *Service) Profile() domain.Profile {
	return withDefaults(s.cache.Get())
}

// Save validates and stores the profile. The write hits the local cache
// first; when remote sync is allowed the remote row is upserted and a remote
// failure restores the previous local value.
func (s *Service) Save(ctx context.Context, p domain.Profile) (domain.Profile, error) {
	p.Username = strings.TrimSpace(p.Username)
	p = withDefaults(p)
	if p.Theme != "light" && p.Theme != "dark" {
		return domain.Profile{}, fmt.Errorf("theme %q: %w", p.Theme, domain.ErrValidation)
	}

	userID, canRemote := s.remoteUser(ctx)
	if canRemote {
		p.UserID = userID
	}

	snapshot := s.cache.Get()
	s.cache.SetValue(ctx, p)

	if canRemote {
		stored, err := s.remote.Upsert(ctx, p)
		if err != nil {
			s.cache.SetValue(ctx, snapshot)
			s.log.WarnContext(ctx, "remote profile upsert failed, rolled back", slog.Any("error", err))
			return domain.Profile{}, err
		}
		p = stored
		s.cache.SetValue(ctx, p)
	}

	s.scheduleSync("profile.save")
	return p, nil
}

// Refetch replaces the local profile with the remote one when connectivity
// allows it. An absent remote profile keeps the local value.
func (s *Service) Refetch(ctx context.Context) error {
	userID, canRemote := s.remoteUser(ctx)
	if !canRemote {
		return nil
	}

	stored, err := s.remote.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("refetch profile: %w", err)
	}
	s.cache.SetValue(ctx, withDefaults(stored))
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

func withDefaults(p domain.Profile) domain.Profile {
	if p.Language == "" {
		p.Language = DefaultLanguage
	}
	if p.Theme == "" {
		p.Theme = DefaultTheme
	}
	return p
}
