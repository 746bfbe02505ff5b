// Package app wires configuration, storage, services, and the HTTP
// transport into a running process.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	budgetpg "github.com/dailysync/keeper/internal/adapter/postgres/budget"
	eventpg "github.com/dailysync/keeper/internal/adapter/postgres/event"
	expensepg "github.com/dailysync/keeper/internal/adapter/postgres/expense"
	messagepg "github.com/dailysync/keeper/internal/adapter/postgres/message"
	profilepg "github.com/dailysync/keeper/internal/adapter/postgres/profile"
	taskpg "github.com/dailysync/keeper/internal/adapter/postgres/task"
	wellnesspg "github.com/dailysync/keeper/internal/adapter/postgres/wellness"

	"github.com/dailysync/keeper/internal/adapter/postgres"
	"github.com/dailysync/keeper/internal/auth"
	"github.com/dailysync/keeper/internal/bus"
	"github.com/dailysync/keeper/internal/config"
	"github.com/dailysync/keeper/internal/connectivity"
	"github.com/dailysync/keeper/internal/domain"
	"github.com/dailysync/keeper/internal/kvstore"
	"github.com/dailysync/keeper/internal/service/assistant"
	"github.com/dailysync/keeper/internal/service/calendar"
	"github.com/dailysync/keeper/internal/service/expenses"
	"github.com/dailysync/keeper/internal/service/profile"
	"github.com/dailysync/keeper/internal/service/todos"
	"github.com/dailysync/keeper/internal/service/wellness"
	"github.com/dailysync/keeper/internal/store"
	"github.com/dailysync/keeper/internal/syncer"
	"github.com/dailysync/keeper/internal/transport/middleware"
	"github.com/dailysync/keeper/internal/transport/rest"
	"github.com/dailysync/keeper/pkg/ctxutil"
)

// Run is the application entry point. It loads configuration, builds the
// caches and services around the durable store, and serves HTTP until ctx
// is canceled. An empty database DSN starts the process in local-only mode.
func Run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := NewLogger(cfg.Log)
	logger.Info("starting keeper",
		"version", BuildVersion(),
		"log_level", cfg.Log.Level,
		"remote_enabled", cfg.Sync.RemoteEnabled,
	)

	b := bus.New()
	kv, err := kvstore.NewDiskv(cfg.Storage.BasePath, cfg.Storage.Namespace, b)
	if err != nil {
		return fmt.Errorf("open kv store: %w", err)
	}

	todosCache := store.New(logger, kv, b, kvstore.KeyTodos, bus.TopicTodos, []domain.Task{})
	calendarCache := store.New(logger, kv, b, kvstore.KeyCalendar, bus.TopicCalendar, []domain.CalendarEvent{})
	expenseCache := store.New(logger, kv, b, kvstore.KeyExpenses, bus.TopicExpenses, []domain.Expense{})
	budgetCache := store.New(logger, kv, b, kvstore.KeyBudgets, bus.TopicExpenses, map[string]domain.Budget{})
	settingsCache := store.New(logger, kv, b, kvstore.KeySettings, bus.TopicSettings, domain.Profile{})
	wellnessCache := store.New(logger, kv, b, kvstore.KeyWellness, bus.TopicWellness, []domain.WellnessRow{})

	todosCache.Load(ctx)
	calendarCache.Load(ctx)
	expenseCache.Load(ctx)
	budgetCache.Load(ctx)
	settingsCache.Load(ctx)
	wellnessCache.Load(ctx)

	var pool *pgxpool.Pool
	if cfg.Database.DSN != "" {
		pool, err = postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer pool.Close()
	}

	policy := connectivity.NewPolicy(cfg.Sync.RemoteEnabled && pool != nil)

	syncMgr := syncer.New(logger, kv, b, syncer.Config{
		Debounce:    cfg.Sync.Debounce,
		BaseBackoff: cfg.Sync.BaseBackoff,
		MaxBackoff:  cfg.Sync.MaxBackoff,
	})
	defer syncMgr.Stop()

	var (
		todosSvc    *todos.Service
		calendarSvc *calendar.Service
		expensesSvc *expenses.Service
		wellnessSvc *wellness.Service
		profileSvc  *profile.Service
		gateways    assistant.Gateways
	)
	if pool != nil {
		todosSvc = todos.NewService(logger, todosCache, taskpg.New(pool), policy, syncMgr)
		calendarSvc = calendar.NewService(logger, calendarCache, eventpg.New(pool), policy, syncMgr)
		expensesSvc = expenses.NewService(logger, expenseCache, budgetCache,
			expensepg.New(pool), budgetpg.New(pool), policy, syncMgr)
		wellnessSvc = wellness.NewService(logger, wellnessCache, wellnesspg.New(pool), policy, syncMgr)
		profileSvc = profile.NewService(logger, settingsCache, profilepg.New(pool), policy, syncMgr)
		gateways = assistant.Gateways{
			Tasks:    taskpg.New(pool),
			Events:   eventpg.New(pool),
			Expenses: expensepg.New(pool),
			Messages: messagepg.New(pool),
			Tx:       postgres.NewTxManager(pool),
		}
	} else {
		// Literal nils: a typed nil repo would look like a configured remote.
		todosSvc = todos.NewService(logger, todosCache, nil, policy, syncMgr)
		calendarSvc = calendar.NewService(logger, calendarCache, nil, policy, syncMgr)
		expensesSvc = expenses.NewService(logger, expenseCache, budgetCache, nil, nil, policy, syncMgr)
		wellnessSvc = wellness.NewService(logger, wellnessCache, nil, policy, syncMgr)
		profileSvc = profile.NewService(logger, settingsCache, nil, policy, syncMgr)
	}

	syncMgr.RegisterTask("todos.refetch", todosSvc.Refetch)
	syncMgr.RegisterTask("calendar.refetch", calendarSvc.Refetch)
	syncMgr.RegisterTask("expenses.refetch", expensesSvc.Refetch)
	syncMgr.RegisterTask("wellness.refetch", func(ctx context.Context) error {
		start, end := wellness.DefaultRange(time.Now())
		return wellnessSvc.Refetch(ctx, start, end)
	})
	syncMgr.RegisterTask("profile.refetch", profileSvc.Refetch)

	syncCtx := ctx
	if cfg.Sync.DefaultUserID != "" {
		id, err := uuid.Parse(cfg.Sync.DefaultUserID)
		if err != nil {
			return fmt.Errorf("sync.default_user_id: %w", err)
		}
		syncCtx = ctxutil.WithUserID(ctx, id)
	}
	syncMgr.Init(syncCtx)

	extractor := assistant.NewExtractor(time.Now)
	var assistantSvc *assistant.Service
	if llm := assistant.NewLLMClient(cfg.Assistant); llm != nil {
		assistantSvc = assistant.NewService(logger, extractor, gateways, calendarSvc, llm, time.Now)
	} else {
		assistantSvc = assistant.NewService(logger, extractor, gateways, calendarSvc, nil, time.Now)
	}

	var healthH *rest.HealthHandler
	if pool != nil {
		healthH = rest.NewHealthHandler(pool, BuildVersion())
	} else {
		healthH = rest.NewHealthHandler(nil, BuildVersion())
	}

	handlers := rest.Handlers{
		Health:    healthH,
		Assistant: rest.NewAssistantHandler(assistantSvc, logger),
		Sync:      rest.NewSyncHandler(syncMgr, logger),
	}

	limiter := middleware.NewRateLimiter(10 * time.Minute)
	defer limiter.Stop()

	mws := []middleware.Middleware{
		middleware.RequestID(),
		middleware.Recovery(logger),
		middleware.Logger(logger),
		middleware.CORS(cfg.CORS),
	}
	if cfg.Auth.JWTSecret != "" {
		mws = append(mws, middleware.Auth(auth.NewManager(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer)))
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      rest.NewRouter(handlers, limiter, mws...),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}

	return nil
}
