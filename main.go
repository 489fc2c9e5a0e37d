package main

// GET  /                  - liveness
// GET  /product/{code}    - look up a product by code
// POST /cart/add          - add a line to the session cart
// GET  /cart              - show the session cart
// POST /cart/session      - start a new cart session
// POST /purchase          - commit a purchase
// GET  /transaction/{id}  - read back a committed purchase

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"pos-backend/cart"
	"pos-backend/config"
	"pos-backend/events"
	"pos-backend/handler"
	"pos-backend/service"
	"pos-backend/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	// --- Store ---
	dialect, err := store.ParseDialect(cfg.DB.Driver)
	if err != nil {
		log.Fatalf("DB driver: %v", err)
	}
	st, err := store.Open(context.Background(), store.Credentials{
		Dialect:  dialect,
		Host:     cfg.DB.Host,
		Port:     cfg.DB.Port,
		User:     cfg.DB.User,
		Password: cfg.DB.Password,
		DBName:   cfg.DB.Name,
		SSLCA:    cfg.DB.SSLCA,
		Path:     cfg.DB.Path,
	})
	if err != nil {
		log.Fatalf("DB connection failed: %v", err)
	}
	defer st.Close()

	if cfg.DB.RunMigrations {
		if err := st.RunMigrations(); err != nil {
			log.Fatalf("Failed running migrations: %v", err)
		}
		logger.Info("database migrations applied", "driver", cfg.DB.Driver)
	}

	// --- Cart ---
	var carts cart.Store = cart.NewMemory()
	if cfg.CartBackend == "redis" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := rdb.Ping(ctx).Err()
		cancel()
		if err != nil {
			log.Fatalf("redis ping %s: %v", cfg.RedisAddr, err)
		}
		defer rdb.Close()
		carts = cart.NewRedis(rdb, cfg.CartTTL)
	}
	logger.Info("cart backend ready", "backend", cfg.CartBackend)

	// --- Events ---
	var pub events.Publisher = events.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		pub = events.NewKafkaPublisher(cfg.KafkaTopic, cfg.KafkaBrokers...)
		logger.Info("publishing purchase events", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers)
	}
	defer pub.Close()

	// --- Service ---
	svc := service.NewService(st, carts,
		service.WithLogger(logger),
		service.WithPublisher(pub),
		service.WithPriceVerification(cfg.VerifyPrices),
	)
	var serviceInterface service.ServiceInterface = svc

	// --- Handlers ---
	h := handler.NewHandler(serviceInterface, logger)
	router := handler.NewRouter(h, cfg.RequestTimeout)

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(router, "pos-backend"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server running", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		return
	}
	logger.Info("server exited")
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
