package server

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/mansoorceksport/freightdesk/internal/domain"
	"github.com/mansoorceksport/freightdesk/internal/handler"
	"github.com/mansoorceksport/freightdesk/internal/middleware"
	"github.com/mansoorceksport/freightdesk/internal/telemetry"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// NewApp creates and configures the Fiber application with the given dependencies
func NewApp(deps AppDependencies) (*fiber.App, error) {
	services, err := NewServices(context.Background(), deps)
	if err != nil {
		return nil, err
	}

	cfg := deps.Config
	log := component(deps.Logger, "http")

	paymentHandler := handler.NewPaymentHandler(services.Payments)
	webhookHandler := handler.NewWebhookHandler(services.Payments)
	reportHandler := handler.NewReportHandler(services.Reconciliation)
	authHandler := handler.NewAuthHandler(services.Auth)
	healthHandler := handler.NewHealthHandler("freightdesk", healthChecks(deps))

	bodyLimit := cfg.Server.BodyLimitMB
	if bodyLimit <= 0 {
		bodyLimit = 4
	}

	app := fiber.New(fiber.Config{
		AppName:      "FreightDesk Payments API",
		BodyLimit:    int(bodyLimit * 1024 * 1024),
		ErrorHandler: handler.ErrorHandler(log),
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} ${status} ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Correlation-ID, X-Idempotency-Key",
		AllowMethods: "GET, POST, OPTIONS",
	}))
	app.Use(telemetry.FiberMiddleware())

	app.Get("/health", healthHandler.Health)

	app.Post("/auth/login", authHandler.Login)

	// Stripe calls this without a bearer token; the signature authenticates it.
	// Registered ahead of the authenticated /payments group.
	app.Post("/payments/stripe/webhook", webhookHandler.StripeWebhook)

	verify := middleware.VerifyToken(cfg.JWT.Secret)

	var idempotent fiber.Handler = func(c *fiber.Ctx) error { return c.Next() }
	if deps.RedisClient != nil {
		idempotent = middleware.IdempotencyMiddleware(deps.RedisClient, cfg.Server.IdempotencyTTL, component(deps.Logger, "idempotency"))
	}

	// ===========================================
	// PAYMENTS - /payments/* (client or admin)
	// ===========================================
	payments := app.Group("/payments", verify, middleware.RequireRole(domain.RoleClient, domain.RoleAdmin))
	payments.Post("/create", idempotent, paymentHandler.Create)
	payments.Post("/stripe/create-intent", idempotent, paymentHandler.CreateStripeIntent)
	payments.Post("/paypal/create-order", idempotent, paymentHandler.CreatePayPalOrder)
	payments.Post("/paypal/capture-order", idempotent, paymentHandler.CapturePayPalOrder)
	payments.Get("/", paymentHandler.List)
	payments.Get("/:id", paymentHandler.Get)
	payments.Post("/:id/cancel", paymentHandler.Cancel)

	// ===========================================
	// REPORTS - /payment-reports/* (admin only)
	// ===========================================
	reports := app.Group("/payment-reports", verify, middleware.RequireRole(domain.RoleAdmin))
	reports.Post("/reconcile", reportHandler.Reconcile)
	reports.Post("/send-reminders", reportHandler.SendReminders)
	reports.Post("/overdue-sweep", reportHandler.OverdueSweep)
	reports.Get("/reports/monthly", reportHandler.Monthly)
	reports.Get("/export", reportHandler.Export)
	reports.Get("/analytics", reportHandler.Analytics)

	return app, nil
}

func healthChecks(deps AppDependencies) map[string]handler.HealthCheck {
	checks := map[string]handler.HealthCheck{}
	if deps.MongoDB != nil {
		checks["mongodb"] = func(ctx context.Context) error {
			return deps.MongoDB.Client().Ping(ctx, readpref.Primary())
		}
	}
	if deps.RedisClient != nil {
		checks["redis"] = func(ctx context.Context) error {
			return deps.RedisClient.Ping(ctx).Err()
		}
	}
	return checks
}
