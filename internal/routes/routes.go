package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/shieldfi/shieldfi/internal/config"
	"github.com/shieldfi/shieldfi/internal/middleware"
	"github.com/shieldfi/shieldfi/internal/notification"
	"github.com/shieldfi/shieldfi/internal/session"
	"github.com/shieldfi/shieldfi/internal/tokens"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	Store  *session.Store
	Hub    *notification.Hub
	Tokens *tokens.Service
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	if d.Store == nil || d.Tokens == nil || d.Hub == nil {
		return fmt.Errorf("session store, token service and hub are required")
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Cache == nil && !d.Cfg.IsDev() {
		d.Logger.Warn("redis not configured, distributions are not idempotent and connects are not rate limited")
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals(middleware.RequestIDLocal).(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	RegisterSessionRoutes(api, d.Store, d.Hub, middleware.ConnectRateLimit(d.Cache, d.Cfg.ConnectRateLimit))

	var distributeGuard fiber.Handler
	if d.Cache != nil {
		distributeGuard = middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger)
	}
	RegisterTokenRoutes(api, tokens.NewHandler(d.Tokens), distributeGuard)

	return nil
}
