package main

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/niti14-code/FreeWheel/internal/outbox"
	"github.com/niti14-code/FreeWheel/internal/ride/domain"
	"github.com/niti14-code/FreeWheel/internal/ride/handler"
	"github.com/niti14-code/FreeWheel/internal/ride/repository"
	"github.com/niti14-code/FreeWheel/internal/ride/rpc"
	"github.com/niti14-code/FreeWheel/internal/ride/search"
	"github.com/niti14-code/FreeWheel/internal/ride/service"
	"github.com/niti14-code/FreeWheel/pkg/observability"
	outboxpkg "github.com/niti14-code/FreeWheel/pkg/outbox"
)

type appConfig struct {
	HTTPAddr     string
	GRPCAddr     string
	PostgresDSN  string
	RedisAddr    string
	NATSURL      string
	JWTSecret    string
	EventSubject string
	OutboxPoll   time.Duration
	OutboxBatch  int
	OutboxRetry  int
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := observability.SetupLogger("ride-service")
	defer logger.Sync() //nolint:errcheck

	shutdown, err := observability.SetupTracer(ctx, "ride-service")
	if err != nil {
		logger.Warn("tracer setup failed", zap.Error(err))
	} else {
		defer shutdown(context.Background())
	}

	cfg := loadConfig()

	var db *sql.DB
	if cfg.PostgresDSN != "" {
		db, err = sql.Open("pgx", cfg.PostgresDSN)
		if err != nil {
			logger.Fatal("postgres connect", zap.Error(err))
		}
		db.SetMaxOpenConns(10)
		db.SetConnMaxLifetime(5 * time.Minute)
		if err := db.PingContext(ctx); err != nil {
			logger.Fatal("postgres ping", zap.Error(err))
		}
		if err := repository.EnsureSchema(ctx, db); err != nil {
			logger.Fatal("postgres schema", zap.Error(err))
		}
		defer db.Close()
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatal("redis ping", zap.Error(err))
		}
		defer redisClient.Close()
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		if conn, err := nats.Connect(cfg.NATSURL, nats.Name("rideservice")); err == nil {
			natsConn = conn
			defer conn.Drain()
		} else {
			logger.Warn("nats connection failed", zap.Error(err))
		}
	}

	rideStore, bookingStore := buildStores(db)
	index := buildIndex(redisClient)

	// With Postgres and NATS both up, events are committed to the
	// outbox table and the dispatcher delivers them at least once.
	// Otherwise they go straight to the broker, best effort.
	var publisher domain.EventPublisher
	if db != nil && natsConn != nil {
		publisher = outbox.NewStore(db, cfg.EventSubject)
		dispatcher := outbox.NewDispatcher(db, natsConn, logger.Named("outbox"), outbox.DispatcherConfig{
			PollInterval: cfg.OutboxPoll,
			BatchSize:    cfg.OutboxBatch,
			RetryMax:     cfg.OutboxRetry,
		})
		go func() {
			if err := dispatcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("outbox dispatcher stopped", zap.Error(err))
			}
		}()
	} else {
		publisher = outboxpkg.NewPublisher(natsConn, cfg.EventSubject)
		logger.Warn("outbox dispatcher disabled", zap.Bool("db", db != nil), zap.Bool("nats", natsConn != nil))
	}

	arbitrator := service.NewArbitrator(rideStore, bookingStore, publisher, domain.SystemClock{})
	rideSvc := service.NewRides(rideStore, index, publisher, domain.SystemClock{})

	r := chi.NewRouter()
	r.Mount("/", handler.NewHTTP(arbitrator, rideSvc, cfg.JWTSecret).Router())
	r.Mount("/observability", observability.MetricsRouter())

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpc.NewServer(grpc.ForceServerCodec(rpc.JSONCodec{}))
	rpc.RegisterArbitratorServer(grpcServer, rpc.NewServer(arbitrator))
	go func() {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			logger.Fatal("grpc listen", zap.Error(err))
		}
		logger.Info("grpc listening", zap.String("addr", cfg.GRPCAddr))
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("grpc server", zap.Error(err))
		}
	}()

	go func() {
		logger.Info("ride service listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	grpcServer.GracefulStop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func buildStores(db *sql.DB) (domain.RideStore, domain.BookingStore) {
	if db != nil {
		return repository.NewPostgresRideStore(db), repository.NewPostgresBookingStore(db)
	}
	return repository.NewMemoryRideStore(), repository.NewMemoryBookingStore()
}

func buildIndex(redisClient *redis.Client) service.GeoIndex {
	if redisClient == nil {
		return search.NewMemoryIndex()
	}
	return search.NewRedisIndex(redisClient, "")
}

func loadConfig() appConfig {
	return appConfig{
		HTTPAddr:     getenv("HTTP_ADDR", ":8080"),
		GRPCAddr:     getenv("GRPC_ADDR", ":8090"),
		PostgresDSN:  firstNonEmpty(os.Getenv("POSTGRES_DSN"), os.Getenv("DATABASE_URL")),
		RedisAddr:    os.Getenv("REDIS_ADDR"),
		NATSURL:      os.Getenv("NATS_URL"),
		JWTSecret:    getenv("JWT_SECRET", "dev-secret"),
		EventSubject: getenv("EVENT_SUBJECT", "freewheel.events"),
		OutboxPoll:   time.Duration(parseIntEnv("OUTBOX_POLL_MS", 200)) * time.Millisecond,
		OutboxBatch:  parseIntEnv("OUTBOX_BATCH", 100),
		OutboxRetry:  parseIntEnv("OUTBOX_RETRY_MAX", 3),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func parseIntEnv(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}
