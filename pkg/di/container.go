package di

import (
	"context"
	"fmt"
	"time"

	"chat-companion/backend/internal/ai"
	"chat-companion/backend/internal/api"
	"chat-companion/backend/internal/bot"
	"chat-companion/backend/internal/dedup"
	"chat-companion/backend/internal/pipeline"
	"chat-companion/backend/internal/store"
	"chat-companion/backend/pkg/config"
	"chat-companion/backend/pkg/health"
	"chat-companion/backend/pkg/logger"

	"gorm.io/gorm"
)

// Container holds all the dependencies for the application. It replaces any
// hidden global state: constructed once at startup and passed by reference
// into every request-handling call.
type Container struct {
	DB      *gorm.DB
	Logger  *logger.Logger
	Store   *store.Store
	Backend ai.Backend
	Invoker *pipeline.Invoker
	Engine  *bot.Engine
	Deduper dedup.Deduper
	Health  *health.Checker
	Router  *api.Router
}

// New creates a new dependency injection container
func New(ctx context.Context, db *gorm.DB, cfg *config.Config, log *logger.Logger) (*Container, error) {
	st := store.New(db)

	backend, err := ai.New(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize AI backend: %w", err)
	}

	limiter := pipeline.NewLimiter(cfg.Bot.RateLimitCalls, cfg.Bot.RateLimitPeriod)
	retry := pipeline.NewRetryPolicy(
		cfg.Bot.MaxRetries,
		cfg.Bot.BackoffBase,
		cfg.Bot.BackoffFloor,
		cfg.Bot.BackoffCeiling,
		ai.IsRetryable,
	)
	invoker := pipeline.NewInvoker(limiter, retry, log)

	engine := bot.NewEngine(st, backend, invoker, cfg, log)
	deduper := dedup.New(cfg, log)

	checker := health.NewChecker(log, 30*time.Second)
	checker.Register("database", true, func(context.Context) error { return st.Ping() })
	if rd, ok := deduper.(*dedup.RedisDeduper); ok {
		checker.Register("redis", false, rd.Ping)
	}

	router := api.NewRouter(api.NewHandler(engine, deduper), checker, log)
	router.SetupRoutes()

	return &Container{
		DB:      db,
		Logger:  log,
		Store:   st,
		Backend: backend,
		Invoker: invoker,
		Engine:  engine,
		Deduper: deduper,
		Health:  checker,
		Router:  router,
	}, nil
}
