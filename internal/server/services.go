package server

import (
	"context"
	"fmt"
	"time"

	"github.com/mansoorceksport/freightdesk/internal/config"
	"github.com/mansoorceksport/freightdesk/internal/domain"
	"github.com/mansoorceksport/freightdesk/internal/infrastructure/mailer"
	"github.com/mansoorceksport/freightdesk/internal/infrastructure/sms"
	"github.com/mansoorceksport/freightdesk/internal/repository"
	"github.com/mansoorceksport/freightdesk/internal/service"
	"github.com/mansoorceksport/freightdesk/internal/telemetry"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/mongo"
)

// AppDependencies holds the dependencies required to start the application
type AppDependencies struct {
	Config      *config.Config
	MongoDB     *mongo.Database
	RedisClient *redis.Client
	AuthClient  service.FirebaseAuthClient
	// Publisher queues notifications for the notifier worker. Nil delivers inline.
	Publisher service.JobPublisher
	// Documents stores rendered invoices. Nil uses S3 when configured.
	Documents domain.DocumentStore
	Logger    zerolog.Logger
}

// Services are the wired application services shared by the API and the job runner
type Services struct {
	Payments       *service.PaymentService
	Reconciliation *service.ReconciliationService
	Notifications  *service.NotificationService
	Auth           *service.AuthService
}

// NewServices builds repositories and services from deps
func NewServices(ctx context.Context, deps AppDependencies) (*Services, error) {
	cfg := deps.Config
	log := deps.Logger

	payments := repository.NewMongoPaymentRepository(deps.MongoDB)
	invoices := repository.NewMongoInvoiceRepository(deps.MongoDB)
	clients := repository.NewMongoClientRepository(deps.MongoDB)
	sequences := repository.NewMongoSequenceRepository(deps.MongoDB)

	indexCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	for _, repo := range []interface{ EnsureIndexes(context.Context) error }{payments, invoices, clients} {
		if err := repo.EnsureIndexes(indexCtx); err != nil {
			return nil, err
		}
	}

	var cache *repository.RedisCacheRepository
	if deps.RedisClient != nil {
		cache = repository.NewRedisCacheRepository(deps.RedisClient)
	}

	documents := deps.Documents
	if documents == nil && cfg.S3.Enabled() {
		store, err := repository.NewS3DocumentStore(ctx, cfg.S3)
		if err != nil {
			log.Warn().Err(err).Msg("invoice uploads disabled, S3 unavailable")
		} else {
			documents = store
		}
	}

	metrics, err := telemetry.NewPaymentMetrics()
	if err != nil {
		log.Warn().Err(err).Msg("payment metrics disabled")
	}

	taxRate, err := decimal.NewFromString(cfg.Invoice.TaxRate)
	if err != nil {
		return nil, fmt.Errorf("invalid invoice tax rate %q: %w", cfg.Invoice.TaxRate, err)
	}

	company := CompanyFromConfig(cfg.Invoice)

	var notifier domain.Notifier
	if deps.Publisher != nil {
		notifier = service.NewQueuedNotifier(deps.Publisher, cfg.RabbitMQ.Queue)
	} else {
		notifier = NewDeliveryNotifier(cfg, log)
	}

	notifications, err := service.NewNotificationService(notifier, company, metrics, component(log, "notification"))
	if err != nil {
		return nil, fmt.Errorf("failed to build notification templates: %w", err)
	}

	gateways, verifier, err := service.NewGateways(cfg.Stripe, cfg.PayPal, company.Name, component(log, "gateway"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize payment gateways: %w", err)
	}

	renderer := service.NewPDFInvoiceRenderer(cfg.Invoice.OutputDir, company, documents, component(log, "invoice"))

	paymentDeps := service.PaymentDeps{
		Payments:      payments,
		Invoices:      invoices,
		Clients:       clients,
		Sequences:     sequences,
		Gateways:      gateways,
		Webhooks:      verifier,
		Renderer:      renderer,
		Notifications: notifications,
		Metrics:       metrics,
		Logger:        component(log, "payment"),
		TaxRate:       taxRate,
		DueDays:       cfg.Invoice.DueDays,
		Terms:         cfg.Invoice.Terms,
	}
	var analyticsCache service.AnalyticsCache
	if cache != nil {
		paymentDeps.Events = cache
		paymentDeps.Cache = cache
		analyticsCache = cache
	}

	return &Services{
		Payments: service.NewPaymentService(paymentDeps),
		Reconciliation: service.NewReconciliationService(
			payments,
			invoices,
			clients,
			notifications,
			analyticsCache,
			cfg.Reports.AnalyticsTTL,
			cfg.Reports.OpsEmail,
			component(log, "reconciliation"),
		),
		Notifications: notifications,
		Auth:          service.NewAuthService(clients, deps.AuthClient, cfg.JWT),
	}, nil
}

// NewDeliveryNotifier delivers through SMTP and the SMS carriers.
// Without an SMTP host messages are only logged.
func NewDeliveryNotifier(cfg *config.Config, log zerolog.Logger) domain.Notifier {
	if cfg.SMTP.Host == "" {
		log.Warn().Msg("SMTP not configured, notifications will only be logged")
		return service.NewLogNotifier(component(log, "notifier"))
	}

	email := mailer.NewSMTPMailer(mailer.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	})

	var carriers []sms.Sender
	if cfg.SMS.HubtelClientID != "" {
		carriers = append(carriers, sms.NewHubtelSender(sms.HubtelConfig{
			ClientID:     cfg.SMS.HubtelClientID,
			ClientSecret: cfg.SMS.HubtelClientSecret,
			SenderID:     cfg.SMS.SenderID,
			BaseURL:      cfg.SMS.HubtelBaseURL,
		}))
	}
	if cfg.SMS.MNotifyAPIKey != "" {
		carriers = append(carriers, sms.NewMNotifySender(sms.MNotifyConfig{
			APIKey:   cfg.SMS.MNotifyAPIKey,
			SenderID: cfg.SMS.SenderID,
			BaseURL:  cfg.SMS.MNotifyBaseURL,
		}))
	}

	var smsSender sms.Sender
	if len(carriers) > 0 {
		smsSender = sms.NewFallbackSender(component(log, "sms"), carriers...)
	}
	return service.NewDirectNotifier(email, smsSender)
}

// CompanyFromConfig is the letterhead printed on invoices and emails
func CompanyFromConfig(cfg config.InvoiceConfig) service.CompanyInfo {
	return service.CompanyInfo{
		Name:    cfg.CompanyName,
		Address: cfg.CompanyAddress,
		Email:   cfg.CompanyEmail,
		Phone:   cfg.CompanyPhone,
	}
}

func component(base zerolog.Logger, name string) zerolog.Logger {
	return base.With().Str("component", name).Logger()
}
