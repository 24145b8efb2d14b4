package worker

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmehdipour/car-rating/internal/config"
	"github.com/jmehdipour/car-rating/internal/db"
	"github.com/jmehdipour/car-rating/internal/kafka"
	"github.com/jmehdipour/car-rating/internal/logger"
	"github.com/jmehdipour/car-rating/internal/repository"
	"github.com/jmehdipour/car-rating/internal/worker"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newOutboxRelayCmd(cfg func() config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "outbox-relay",
		Short: "Publish committed rate events from the outbox to Kafka",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOutboxRelay(cmd, cfg())
		},
	}
}

func runOutboxRelay(cmd *cobra.Command, cfg config.Config) error {
	if len(cfg.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is empty")
	}
	serveMetrics(cmd)

	dbx, err := db.NewMySQLConnection(cfg.MySQL)
	if err != nil {
		return fmt.Errorf("mysql connect: %w", err)
	}
	defer dbx.Close()

	producer := kafka.NewProducer(cfg.Kafka.Brokers)
	defer func() { _ = producer.Close() }()

	relay := worker.NewOutboxRelay(repository.NewOutboxRepository(dbx), producer)
	if cfg.Outbox.BatchSize > 0 {
		relay.BatchSize = cfg.Outbox.BatchSize
	}
	if cfg.Outbox.PollInterval > 0 {
		relay.PollInterval = cfg.Outbox.PollInterval
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Log.Info("outbox relay started",
		zap.Strings("brokers", cfg.Kafka.Brokers),
		zap.Int("batch_size", relay.BatchSize),
		zap.Duration("poll_interval", relay.PollInterval),
	)

	return relay.Run(ctx)
}
