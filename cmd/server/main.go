package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"wallet/internal/audit"
	"wallet/internal/config"
	"wallet/internal/db"
	"wallet/internal/handlers"
	"wallet/internal/jobs"
	"wallet/internal/lock"
	"wallet/internal/logging"
	"wallet/internal/services"
	"wallet/internal/store"
	"wallet/internal/websocket"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, logger, err := bootstrap("wallet-api")
	if err != nil {
		log.Fatalf("failed to start: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	database, err := db.Connect(cfg.DatabaseURL, db.Pool{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
	})
	if err != nil {
		logger.Fatal("failed to connect database", zap.Error(err))
	}
	defer database.Close()

	wallets := store.NewWalletStore(database)
	balances := store.NewBalanceStore(database)
	freezes := store.NewFreezeStore(database)
	limits := store.NewLimitStore(database)
	transactions := store.NewTransactionStore(database)
	txRunner := db.NewTxRunner(database)

	writers := []audit.Writer{store.NewAuditStore(database)}
	var kafkaWriter *audit.KafkaWriter
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := audit.NewKafkaProducer(cfg.KafkaBrokers)
		if err != nil {
			logger.Fatal("failed to create kafka producer", zap.Error(err))
		}
		kafkaWriter = audit.NewKafkaWriter(producer, cfg.KafkaAuditTopic)
		writers = append(writers, kafkaWriter)
		logger.Info("publishing audit entries to kafka", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaAuditTopic))
	}
	sink := audit.NewSink(logger.Named("audit"), cfg.AuditBufferSize, writers...)

	var locker jobs.Locker = lock.NewLocalLocker()
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer client.Close()
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := client.Ping(pingCtx).Err(); err != nil {
			cancel()
			logger.Fatal("failed to connect redis", zap.Error(err))
		}
		cancel()
		locker = lock.NewRedisLocker(client, "wallet:jobs:")
	}

	hub := websocket.NewHub()
	walletService := services.NewWalletService(txRunner, wallets, balances, sink)
	ledgerService := services.NewLedgerService(txRunner, balances, sink, hub, logger.Named("ledger"), cfg.LedgerMaxRetries)
	freezeService := services.NewFreezeService(txRunner, freezes, wallets, sink, logger.Named("freeze"), cfg.SystemActorID)
	limitService := services.NewLimitService(txRunner, limits, wallets, sink, logger.Named("limit"), cfg.SystemActorID)
	transactionService := services.NewTransactionService(txRunner, transactions, ledgerService, freezeService, limitService, sink, logger.Named("transaction"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	workers := []*jobs.Worker{
		jobs.NewFreezeExpiryJob(freezeService, locker, cfg.FreezeSweepInterval, logger),
		jobs.NewLimitResetJob(limitService, locker, cfg.LimitResetInterval, logger),
	}
	for _, worker := range workers {
		go worker.Start(ctx)
	}

	handler := handlers.New(cfg, walletService, ledgerService, freezeService, limitService, transactionService, hub, logger)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("wallet API listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	for _, worker := range workers {
		worker.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
	// the sink drains into the writers, so kafka closes after it
	if err := sink.Close(shutdownCtx); err != nil {
		logger.Warn("audit sink did not drain", zap.Error(err))
	}
	if kafkaWriter != nil {
		if err := kafkaWriter.Close(); err != nil {
			logger.Warn("close kafka producer", zap.Error(err))
		}
	}
}

// bootstrap loads configuration and builds the logger every later step
// reports through.
func bootstrap(service string) (config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(service, cfg.LogLevel, cfg.AppEnv)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("build logger: %w", err)
	}
	return cfg, logger, nil
}
