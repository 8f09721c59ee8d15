package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/mansoorceksport/freightdesk/internal/domain"
	"github.com/mansoorceksport/freightdesk/internal/infrastructure/rabbitmq"
	"github.com/mansoorceksport/freightdesk/internal/logger"
	"github.com/mansoorceksport/freightdesk/internal/scheduler"
	"github.com/mansoorceksport/freightdesk/internal/server"
	"github.com/mansoorceksport/freightdesk/internal/service"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func notifierCmd() *cobra.Command {
	var maxAttempts int
	cmd := &cobra.Command{
		Use:   "notifier",
		Short: "Deliver queued email and SMS notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			rt, err := setup(ctx)
			if err != nil {
				return err
			}
			defer rt.close()

			if rt.cfg.RabbitMQ.URL == "" {
				return errors.New("RABBITMQ_URL is required for the notifier")
			}

			consumer, err := rabbitmq.NewConsumer(rt.cfg.RabbitMQ.URL, log.Logger)
			if err != nil {
				return err
			}
			defer consumer.Close()
			consumer.SetMaxAttempts(maxAttempts)

			notifier := server.NewDeliveryNotifier(rt.cfg, logger.WithComponent("notifier"))
			consumer.RegisterHandler(rt.cfg.RabbitMQ.Queue, deliveryHandler(notifier))

			log.Info().Str("queue", rt.cfg.RabbitMQ.Queue).Int("max_attempts", maxAttempts).Msg("notifier started")
			return consumer.Start(ctx)
		},
	}
	cmd.Flags().IntVar(&maxAttempts, "max-attempts", rabbitmq.DefaultMaxAttempts, "attempts per notification before it is dropped")
	return cmd
}

// deliveryHandler delivers queued notifications. Jobs that can never succeed,
// malformed ones or ones this worker has no channel for, are not retried.
func deliveryHandler(notifier domain.Notifier) rabbitmq.HandlerFunc {
	return func(ctx context.Context, d amqp.Delivery) error {
		err := service.DeliverJob(ctx, d.Body, notifier)
		if errors.Is(err, service.ErrMalformedJob) || errors.Is(err, domain.ErrUndeliverable) {
			return fmt.Errorf("%w: %v", rabbitmq.ErrPermanent, err)
		}
		return err
	}
}

func scheduleCmd() *cobra.Command {
	var timezone string
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run reminders, the weekly sweep and daily reconciliation on their cron triggers",
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := time.LoadLocation(timezone)
			if err != nil {
				return fmt.Errorf("invalid --timezone: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			rt, err := setup(ctx)
			if err != nil {
				return err
			}
			defer rt.close()

			s, err := scheduler.New(rt.services.Reconciliation, loc, timeout, logger.WithComponent("scheduler"))
			if err != nil {
				return err
			}
			s.Start()

			<-ctx.Done()
			log.Info().Msg("stopping scheduler, waiting for running jobs")
			<-s.Stop().Done()
			return nil
		},
	}
	cmd.Flags().StringVar(&timezone, "timezone", "UTC", "IANA zone the cron triggers are evaluated in")
	cmd.Flags().DurationVar(&timeout, "job-timeout", 30*time.Minute, "maximum duration of a single job run")
	return cmd
}
