package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Encrypted-Search-Index/internal/crypto"
	"github.com/Adithya-Monish-Kumar-K/Encrypted-Search-Index/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Encrypted-Search-Index/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/Encrypted-Search-Index/internal/store"
	"github.com/Adithya-Monish-Kumar-K/Encrypted-Search-Index/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Encrypted-Search-Index/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Encrypted-Search-Index/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Encrypted-Search-Index/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Encrypted-Search-Index/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Encrypted-Search-Index/pkg/resilience"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	genKey := flag.Bool("genkey", false, "print fresh hex key material for crypto.key and crypto.iv, then exit")
	flag.Parse()

	if *genKey {
		key, iv, err := crypto.GenerateKeyMaterial()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to generate key material: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("key: %s\niv:  %s\n", hex.EncodeToString(key), hex.EncodeToString(iv))
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	if err := run(cfg); err != nil {
		slog.Error("indexer service failed", "error", err)
		os.Exit(1)
	}
	slog.Info("indexer service stopped")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sessionID := uuid.NewString()
	slog.Info("starting indexer service",
		"session_id", sessionID,
		"store", cfg.Store.Backend,
		"row_capacity", cfg.Indexer.RowCapacity,
	)

	cipher, err := crypto.FromHex(cfg.Crypto.Key, cfg.Crypto.IV, cfg.Indexer.KeyCacheSize)
	if err != nil {
		return fmt.Errorf("loading key material: %w", err)
	}

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("opening %s store: %w", cfg.Store.Backend, err)
	}
	defer st.Close()

	checker := health.NewChecker()
	if p, ok := st.(store.Pinger); ok {
		checker.Register(cfg.Store.Backend, p)
	}

	stats := &indexer.Stats{}
	sinks := []indexer.MetricsSink{stats}
	var prom *metrics.Metrics
	if cfg.Metrics.Enabled {
		prom = metrics.New()
		sinks = append(sinks, prom)
	}
	core := indexer.New(st, cipher,
		indexer.WithMetrics(indexer.Tee(sinks...)),
		indexer.WithRowCapacity(cfg.Indexer.RowCapacity),
		indexer.WithMaxBatchIDs(cfg.Indexer.MaxBatchIDs),
	)

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.BatchApplied)
	defer producer.Close()

	opts := []consumer.Option{
		consumer.WithPublisher(producer),
		consumer.WithRetry(resilience.RetryConfig{
			MaxAttempts:  cfg.Retry.MaxAttempts,
			InitialDelay: cfg.Retry.InitialDelay,
			MaxDelay:     cfg.Retry.MaxDelay,
		}),
	}
	if prom != nil {
		opts = append(opts, consumer.WithRecorder(prom))
	}
	handler := consumer.NewHandler(core, sessionID, opts...)
	kafkaConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.RecordChanges, handler.HandleMessage)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("indexer service ready, consuming from kafka",
			"topic", cfg.Kafka.Topics.RecordChanges,
			"group", cfg.Kafka.ConsumerGroup,
		)
		return kafkaConsumer.Start(gctx)
	})
	if cfg.Metrics.Enabled {
		server := metrics.NewServer(cfg.Metrics.Port, checker)
		g.Go(func() error {
			return metrics.Serve(gctx, server)
		})
	}
	if cfg.Indexer.StatusInterval > 0 {
		g.Go(func() error {
			logStatus(gctx, stats, cfg.Indexer.StatusInterval, sessionID)
			return nil
		})
	}

	err = g.Wait()
	stats.LogStatus(slog.Default().With("component", "indexer", "session_id", sessionID))
	return err
}

func logStatus(ctx context.Context, stats *indexer.Stats, interval time.Duration, sessionID string) {
	log := slog.Default().With("component", "indexer", "session_id", sessionID)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats.LogStatus(log)
		}
	}
}
