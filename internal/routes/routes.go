package routes

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/custody_vault/internal/auth"
	"github.com/congo-pay/custody_vault/internal/config"
	"github.com/congo-pay/custody_vault/internal/custody"
	"github.com/congo-pay/custody_vault/internal/identity"
	"github.com/congo-pay/custody_vault/internal/middleware"
	"github.com/congo-pay/custody_vault/internal/notification"
	"github.com/congo-pay/custody_vault/internal/store"
	"github.com/congo-pay/custody_vault/internal/vault"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger

	// Custody moves assets in and out of the custodian. When nil, a
	// PostgresBook is used if DB is set and an in-memory Book otherwise.
	Custody custody.Faucet
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	// Enforce DB/Redis presence outside of dev, even though main also checks.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		// Ledger balances persist, so custody holdings must too.
		if _, inMemory := d.Custody.(*custody.Book); inMemory {
			return fmt.Errorf("in-memory custody book is not allowed when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	// Plain text access log in desired format: [HH:MM:SS] 200 -  145ms METHOD /path
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(middleware.Audit(d.Logger))

	// Health
	RegisterHealthRoutes(app, d)

	// Services and handlers
	var st store.Store
	var identityRepo identity.Repository
	if d.DB != nil {
		st = store.NewPostgres(d.DB)
		identityRepo = identity.NewPostgresRepository(d.DB)
	} else {
		st = store.NewMemory()
		identityRepo = identity.NewMemoryRepository()
	}

	initCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := st.Init(initCtx, d.Cfg.Owner); err != nil {
		return fmt.Errorf("init vault store: %w", err)
	}

	book := d.Custody
	switch {
	case book != nil:
	case d.DB != nil:
		book = custody.NewPostgresBook(d.DB, d.Cfg.Custodian)
	default:
		book = custody.NewBook(d.Cfg.Custodian)
	}

	notifiers := notification.Multi{notification.NewLoggerNotifier(d.Logger)}
	if d.Cache != nil {
		notifiers = append(notifiers, notification.NewRedisStreamNotifier(d.Cache, d.Cfg.EventStream))
	}

	vaultSvc, err := vault.NewService(st, book, book.Custodian(), notifiers, d.Logger)
	if err != nil {
		return err
	}
	vaultHandler := vault.NewHandler(vaultSvc)

	identitySvc := identity.NewService(identityRepo, book.Custodian())
	authSvc := auth.NewService(d.Cfg, identityRepo)
	authHandler := auth.NewHandler(identitySvc, authSvc)

	// API routes
	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDFrom(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// Public routes
	RegisterVaultReadRoutes(api, vaultHandler)
	jwtmw := middleware.JWTAuth(authSvc)
	RegisterAuthRoutes(api, authHandler, middleware.LoginRateLimit(d.Cache, 5), jwtmw)

	// Protected routes
	protected := api.Group("",
		jwtmw,
		middleware.RateLimit(d.Cache, "vault", d.Cfg.RateLimitPerMinute, middleware.ByCaller),
		middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger),
	)
	RegisterVaultRoutes(protected, vaultHandler)
	RegisterAdminRoutes(protected, vaultHandler)
	if d.Cfg.IsDev() {
		RegisterDevCustodyRoutes(protected, custody.NewHandler(book))
		d.Logger.Warn("development custody routes enabled", slog.String("custodian", book.Custodian().Hex()))
	}

	return nil
}
