package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mansoorceksport/freightdesk/internal/config"
	"github.com/mansoorceksport/freightdesk/internal/infrastructure/rabbitmq"
	"github.com/mansoorceksport/freightdesk/internal/logger"
	"github.com/mansoorceksport/freightdesk/internal/middleware"
	"github.com/mansoorceksport/freightdesk/internal/server"
	"github.com/mansoorceksport/freightdesk/internal/service"
	"github.com/mansoorceksport/freightdesk/internal/telemetry"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	logger.Setup(cfg.Log.Level, cfg.Log.Format)
	log.Info().Msg("starting FreightDesk payments API")

	ctx := context.Background()

	otelProvider, err := telemetry.Initialize(ctx, telemetry.Config{
		ServiceName:    cfg.OTEL.ServiceName,
		ServiceVersion: cfg.OTEL.ServiceVersion,
		Environment:    cfg.OTEL.Environment,
		OTLPEndpoint:   cfg.OTEL.Endpoint,
		OTLPHeaders:    telemetry.BasicAuthHeaders(cfg.OTEL.InstanceID, cfg.OTEL.Token),
		Enabled:        cfg.OTEL.Enabled,
	}, logger.WithComponent("telemetry"))
	if err != nil {
		log.Warn().Err(err).Msg("failed to initialize OpenTelemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = otelProvider.Shutdown(shutdownCtx)
	}()

	var authClient service.FirebaseAuthClient
	if cfg.Firebase.Enabled() {
		firebaseApp, err := middleware.InitFirebase(ctx,
			cfg.Firebase.ProjectID,
			cfg.Firebase.PrivateKey,
			cfg.Firebase.ClientEmail,
		)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize Firebase")
		}
		client, err := firebaseApp.Auth(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to get Firebase Auth client")
		}
		authClient = client
		log.Info().Msg("firebase initialized")
	} else {
		log.Warn().Msg("firebase not configured, /auth/login is disabled")
	}

	mongoClient := connectMongo(cfg)
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			log.Error().Err(err).Msg("error disconnecting from MongoDB")
		}
	}()

	redisClient := connectRedis(cfg)
	defer redisClient.Close()

	deps := server.AppDependencies{
		Config:      cfg,
		MongoDB:     mongoClient.Database(cfg.MongoDB.Database),
		RedisClient: redisClient,
		AuthClient:  authClient,
		Logger:      log.Logger,
	}

	if cfg.RabbitMQ.URL != "" {
		publisher, err := rabbitmq.NewPublisher(cfg.RabbitMQ.URL, log.Logger)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
		}
		defer publisher.Close()
		if err := publisher.DeclareQueue(cfg.RabbitMQ.Queue); err != nil {
			log.Fatal().Err(err).Msg("failed to declare notification queue")
		}
		deps.Publisher = publisher
		log.Info().Str("queue", cfg.RabbitMQ.Queue).Msg("notifications are queued")
	}

	app, err := server.NewApp(deps)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build application")
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		log.Info().Msg("shutting down gracefully")
		_ = app.ShutdownWithTimeout(10 * time.Second)
	}()

	log.Info().Str("port", cfg.Server.Port).Msg("server starting")
	if err := app.Listen(":" + cfg.Server.Port); err != nil {
		log.Error().Err(err).Msg("server stopped")
	}
}

func connectMongo(cfg *config.Config) *mongo.Client {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	opts := options.Client().ApplyURI(cfg.MongoDB.URI)
	if cfg.OTEL.Enabled {
		opts.SetMonitor(otelmongo.NewMonitor())
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to MongoDB")
	}
	if err := client.Ping(ctx, nil); err != nil {
		log.Fatal().Err(err).Msg("failed to ping MongoDB")
	}
	log.Info().Msg("mongodb connected")
	return client
}

func connectRedis(cfg *config.Config) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       0,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	log.Info().Msg("redis connected")
	return client
}
