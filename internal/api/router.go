package api

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/jackc/pgx/v5/pgxpool"

	swagger "github.com/go-swagno/swagno-fiber/swagger"
	"github.com/leadops-io/leadops/internal/api/docs"
	"github.com/leadops-io/leadops/internal/api/handler"
	"github.com/leadops-io/leadops/internal/api/middleware"
	"github.com/leadops-io/leadops/internal/config"
	"github.com/leadops-io/leadops/internal/dispatch"
	"github.com/leadops-io/leadops/internal/ratelimit"
	"github.com/leadops-io/leadops/internal/repository"
	"github.com/leadops-io/leadops/internal/scheduler"
	"github.com/leadops-io/leadops/internal/urlguard"
)

type Dependencies struct {
	WorkspaceRepo   *repository.WorkspaceRepository
	DestinationRepo *repository.DestinationRepository
	DeliveryRepo    *repository.DeliveryRepository
	AttemptRepo     *repository.AttemptRepository
	LeadRepo        *repository.LeadRepository
	Dispatcher      *dispatch.Dispatcher
	Runner          *scheduler.Runner
	Guard           *urlguard.Guard
	Limiter         middleware.Limiter
	SourceLimiter   *ratelimit.SourceLimiter
	DB              *pgxpool.Pool
}

type Router struct {
	app    *fiber.App
	cfg    *config.Config
	logger *slog.Logger
	deps   *Dependencies
}

func NewRouter(cfg *config.Config, logger *slog.Logger, deps *Dependencies) *Router {
	app := fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler(logger),
		AppName:      "Leadops API",
	})

	return &Router{
		app:    app,
		cfg:    cfg,
		logger: logger,
		deps:   deps,
	}
}

func (r *Router) Setup() {
	// Global middlewares
	r.app.Use(requestid.New())
	r.app.Use(middleware.Recover(r.logger))
	r.app.Use(middleware.Logger(r.logger))
	r.app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization,Idempotency-Key",
	}))

	// Swagger documentation (no auth required)
	sw := docs.NewSwagger()
	swagger.SwaggerHandler(r.app, sw.MustToJson())

	// Health check endpoints (no auth required)
	var pinger handler.Pinger
	if r.deps != nil && r.deps.DB != nil {
		pinger = r.deps.DB
	}
	healthHandler := handler.NewHealthHandler(pinger)
	r.app.Get("/health", healthHandler.Health)
	r.app.Get("/ready", healthHandler.Ready)

	if r.deps == nil {
		return
	}

	// Internal cron endpoints: shared-secret auth, no workspace context
	cronHandler := handler.NewCronHandler(r.deps.Runner, r.cfg.CronBatchLimit, r.logger)
	internal := r.app.Group("/internal", middleware.CronAuth(r.cfg.CronSecret))
	internal.Post("/cron/deliveries", cronHandler.Deliveries)

	// API v1 group with authentication
	v1 := r.app.Group("/v1")
	v1.Use(middleware.Auth(r.deps.WorkspaceRepo))
	v1.Use(middleware.RateLimit(r.deps.Limiter, r.cfg.WorkspaceRateLimit, r.cfg.RateLimitWindow()))

	// Lead ingestion
	leadHandler := handler.NewLeadHandler(
		r.deps.LeadRepo,
		r.deps.DestinationRepo,
		r.deps.DeliveryRepo,
		r.deps.SourceLimiter,
		r.cfg.IngestSourceLimit,
		r.logger,
	)
	v1.Post("/leads", leadHandler.Create)
	v1.Get("/leads/:id", leadHandler.Get)

	// Destination management
	destinationHandler := handler.NewDestinationHandler(
		r.deps.DestinationRepo,
		r.deps.Dispatcher,
		r.deps.Guard,
		r.logger,
	)
	v1.Post("/destinations", destinationHandler.Create)
	v1.Get("/destinations", destinationHandler.List)
	v1.Get("/destinations/:id", destinationHandler.Get)
	v1.Put("/destinations/:id", destinationHandler.Update)
	v1.Delete("/destinations/:id", destinationHandler.Delete)
	v1.Post("/destinations/:id/rotate-secret", destinationHandler.RotateSecret)
	v1.Post("/destinations/:id/test", destinationHandler.Test)

	// Delivery audit trail and replay
	deliveryHandler := handler.NewDeliveryHandler(
		r.deps.DeliveryRepo,
		r.deps.AttemptRepo,
		r.deps.Dispatcher,
		r.cfg.DeliveryBaseDelay(),
		r.logger,
	)
	v1.Get("/deliveries", deliveryHandler.List)
	v1.Get("/deliveries/:id", deliveryHandler.Get)
	v1.Post("/deliveries/:id/replay", deliveryHandler.Replay)
	v1.Post("/deliveries/replay-bulk", deliveryHandler.ReplayBulk)
	v1.Post("/deliveries/send-all-leads", deliveryHandler.SendAllLeads)
}

// App exposes the underlying Fiber app for serving and tests.
func (r *Router) App() *fiber.App {
	return r.app
}

func (r *Router) Listen(addr string) error {
	return r.app.Listen(addr)
}

func (r *Router) Shutdown() error {
	return r.app.Shutdown()
}
