package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/mansoorceksport/freightdesk/internal/config"
	"github.com/mansoorceksport/freightdesk/internal/logger"
	"github.com/mansoorceksport/freightdesk/internal/server"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "freightdesk-jobs",
		Short:        "FreightDesk batch jobs: reconciliation, reminders and notification delivery",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(reconcileCmd())
	rootCmd.AddCommand(sendRemindersCmd())
	rootCmd.AddCommand(overdueSweepCmd())
	rootCmd.AddCommand(notifierCmd())
	rootCmd.AddCommand(scheduleCmd())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runtime holds the connections a job needs
type runtime struct {
	cfg      *config.Config
	services *server.Services
	close    func()
}

func setup(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger.Setup(cfg.Log.Level, cfg.Log.Format)

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	mongoClient, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.MongoDB.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := mongoClient.Ping(connectCtx, nil); err != nil {
		_ = mongoClient.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password})
	if err := redisClient.Ping(connectCtx).Err(); err != nil {
		// jobs only use Redis for the analytics cache
		log.Warn().Err(err).Msg("redis unavailable, analytics cache disabled")
		redisClient.Close()
		redisClient = nil
	}

	services, err := server.NewServices(ctx, server.AppDependencies{
		Config:      cfg,
		MongoDB:     mongoClient.Database(cfg.MongoDB.Database),
		RedisClient: redisClient,
		Logger:      log.Logger,
	})
	if err != nil {
		_ = mongoClient.Disconnect(context.Background())
		return nil, err
	}

	return &runtime{
		cfg:      cfg,
		services: services,
		close: func() {
			if redisClient != nil {
				redisClient.Close()
			}
			if err := mongoClient.Disconnect(context.Background()); err != nil {
				log.Error().Err(err).Msg("error disconnecting from MongoDB")
			}
		},
	}, nil
}
