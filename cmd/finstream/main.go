// Command finstream runs one of the event-driven services (payments, ledger,
// audit, notifications) selected by configuration. All services share the
// same shape: a consumer-group session driving a handler, a producer for
// derived events and an HTTP surface for probes and metrics.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/finstream/finstream/internal/audit"
	"github.com/finstream/finstream/internal/dispatch"
	"github.com/finstream/finstream/internal/infrastructure/config"
	"github.com/finstream/finstream/internal/infrastructure/messaging"
	"github.com/finstream/finstream/internal/ledger"
	"github.com/finstream/finstream/internal/ledger/store/badgerstore"
	"github.com/finstream/finstream/internal/ledger/store/memory"
	"github.com/finstream/finstream/internal/notifications"
	"github.com/finstream/finstream/internal/payments"
	"github.com/finstream/finstream/internal/server"
	"github.com/finstream/finstream/pkg/logger"
)

const startupTimeout = 15 * time.Second

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	// Missing .env is fine; the environment may be set by the platform.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel, cfg.Service)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("service terminated", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Startup gate: a service that cannot reach the bus must not come up.
	health := messaging.NewHealthChecker(cfg.Kafka.Brokers)
	gateCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	err := health.Check(gateCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("message bus unreachable at startup: %w", err)
	}
	log.Info("connected to message bus", zap.Strings("brokers", cfg.Kafka.Brokers))

	producer := messaging.NewKafkaProducer(cfg.Kafka.Brokers, messaging.RetryPolicy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		MinBackoff:  cfg.Retry.MinBackoff,
		MaxBackoff:  cfg.Retry.MaxBackoff,
	}, log)
	defer producer.Close()

	handler, reader, cleanup, err := buildHandler(cfg, log)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}

	consumer := messaging.NewConsumer(messaging.ConsumerConfig{
		Brokers: cfg.Kafka.Brokers,
		GroupID: cfg.Kafka.GroupID,
		Topics:  handler.Topics(),
	}, log)
	defer consumer.Close()

	dlq := messaging.NewDeadLetterSink(producer, messaging.Topic(cfg.Kafka.DeadLetterTopic), log)
	dispatcher := dispatch.New(cfg.Service, consumer, producer, handler, dlq, log)

	srv := server.New(cfg.Service, cfg.HTTP.Port, health, reader, log)

	errCh := make(chan error, 2)
	go func() {
		if err := srv.Start(); err != nil {
			errCh <- fmt.Errorf("http server failed: %w", err)
		}
	}()
	go func() {
		if err := dispatcher.Run(ctx); err != nil && ctx.Err() == nil {
			errCh <- fmt.Errorf("dispatcher failed: %w", err)
		}
	}()

	log.Info("service started",
		zap.String("service", cfg.Service),
		zap.Int("port", cfg.HTTP.Port))

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", zap.Error(err))
	}
	log.Info("service stopped")
	return nil
}

// buildHandler wires the per-service handler and its state. The returned
// cleanup closes any stores the handler opened; reader is non-nil only for the
// audit service.
func buildHandler(cfg *config.Config, log *zap.Logger) (dispatch.Handler, server.AuditReader, func(), error) {
	switch cfg.Service {
	case "payments":
		gateway := payments.NewSimulatedGateway(cfg.Payments.SuccessRate)
		return payments.NewService(gateway, log), nil, nil, nil

	case "ledger":
		var store ledger.Store
		switch cfg.Ledger.Store {
		case "badger":
			s, err := badgerstore.Open(cfg.Ledger.BadgerPath)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("failed to open ledger store: %w", err)
			}
			store = s
		default:
			store = memory.NewStore(cfg.Ledger.DedupCapacity)
		}
		engine := ledger.NewEngine(store, log)
		cleanup := func() {
			if err := store.Close(); err != nil {
				log.Error("failed to close ledger store", zap.Error(err))
			}
		}
		return ledger.NewService(engine, log), nil, cleanup, nil

	case "audit":
		store := audit.NewStore(cfg.Audit.Capacity)
		detector := audit.NewDetector(cfg.Audit.HighValueThreshold)
		var archive *audit.Archive
		var cleanup func()
		if cfg.Audit.ArchivePath != "" {
			a, err := audit.OpenArchive(cfg.Audit.ArchivePath)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("failed to open audit archive: %w", err)
			}
			archive = a
			cleanup = func() {
				if err := a.Close(); err != nil {
					log.Error("failed to close audit archive", zap.Error(err))
				}
			}
		}
		svc := audit.NewService(store, detector, archive, log)
		return svc, svc, cleanup, nil

	case "notifications":
		channel := notifications.NewSimulatedChannel(cfg.Notifications.SuccessRate)
		return notifications.NewService(channel, log), nil, nil, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown service %q", cfg.Service)
	}
}
