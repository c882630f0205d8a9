package main

import (
	"context"
	"database/sql"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"

	"storecore/internal/adapter/handler"
	"storecore/internal/adapter/messaging"
	"storecore/internal/adapter/storage"
	"storecore/internal/config"
	"storecore/internal/core/service"
	"storecore/internal/logging"
	"storecore/internal/port"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLog := logging.New("info", false)
		bootLog.Fatal().Err(err).Msg("failed to load config")
	}
	log := logging.New(cfg.LogLevel, cfg.LogPretty)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize MySQL
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect mysql")
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping mysql")
	}
	log.Info().Msg("connected to mysql")

	// Initialize Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		PoolSize: 100,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Msg("failed to connect redis")
	}
	log.Info().Msg("connected to redis")

	// Initialize adapters
	mysqlAdapter := storage.NewMySQLAdapter(db)
	if err := mysqlAdapter.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate schema")
	}
	redisAdapter := storage.NewRedisAdapter(rdb)

	var publisher port.EventPublisher = messaging.NopPublisher{}
	var kafkaPublisher *messaging.KafkaPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher = messaging.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		publisher = kafkaPublisher
		log.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("kafka publisher enabled")
	}

	// Initialize services
	reservationService := service.NewReservationService(mysqlAdapter, redisAdapter, log)
	inventoryService := service.NewInventoryService(mysqlAdapter, log)
	orderService := service.NewOrderService(mysqlAdapter, redisAdapter, inventoryService, reservationService, publisher, log)

	// Expiry sweeper: bounds how long a stale claim can block shoppers
	// when nothing reads it.
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sweepCtx, sweepCancel := context.WithTimeout(ctx, 30*time.Second)
				if _, err := reservationService.SweepExpired(sweepCtx); err != nil {
					log.Warn().Err(err).Msg("reservation sweep failed")
				}
				sweepCancel()
			}
		}
	}()
	log.Info().Dur("interval", cfg.SweepInterval).Msg("expiry sweeper started")

	// Initialize HTTP server
	httpHandler := handler.NewHTTPHandler(reservationService, inventoryService, orderService)
	mux := http.NewServeMux()
	httpHandler.Register(mux)

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	log.Info().Msg("HTTP server stopped")

	cancel()
	wg.Wait()
	log.Info().Msg("sweeper stopped")

	if kafkaPublisher != nil {
		kafkaPublisher.Close()
	}
	rdb.Close()
	db.Close()
	log.Info().Msg("connections closed")
}
