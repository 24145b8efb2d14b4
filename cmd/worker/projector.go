package worker

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmehdipour/car-rating/internal/config"
	"github.com/jmehdipour/car-rating/internal/db"
	"github.com/jmehdipour/car-rating/internal/kafka"
	"github.com/jmehdipour/car-rating/internal/logger"
	"github.com/jmehdipour/car-rating/internal/repository"
	"github.com/jmehdipour/car-rating/internal/worker"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newProjectorCmd(cfg func() config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "projector",
		Short: "Project rate events from Kafka into ClickHouse",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProjector(cmd, cfg())
		},
	}
}

func runProjector(cmd *cobra.Command, cfg config.Config) error {
	if len(cfg.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is empty")
	}
	serveMetrics(cmd)

	chDB, err := db.NewClickHouseConnection(cfg.ClickHouse)
	if err != nil {
		return fmt.Errorf("clickhouse connect: %w", err)
	}
	defer chDB.Close()

	topic := cfg.Kafka.RatesTopic
	if topic == "" {
		topic = "car.rates"
	}
	groupID := cfg.Kafka.GroupID
	if groupID == "" {
		groupID = "carrate-projector"
	}

	consumer := kafka.NewConsumerFromConfig(kafka.Config{
		Brokers:        cfg.Kafka.Brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       cfg.Kafka.MinBytes,
		MaxBytes:       cfg.Kafka.MaxBytes,
		CommitInterval: time.Duration(cfg.Kafka.CommitInterval) * time.Millisecond,
	})
	defer consumer.Close()

	p := worker.NewProjector(consumer, repository.NewCHRatesRepository(chDB))
	if cfg.Projector.BatchSize > 0 {
		p.BatchSize = cfg.Projector.BatchSize
	}
	if cfg.Projector.BatchWait > 0 {
		p.BatchWait = cfg.Projector.BatchWait
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Log.Info("projector started",
		zap.String("topic", topic),
		zap.String("group", groupID),
		zap.Int("batch_size", p.BatchSize),
		zap.Duration("batch_wait", p.BatchWait),
	)

	return p.Run(ctx)
}
