package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"libreserve-backend/config"
	"libreserve-backend/internal/admission"
	"libreserve-backend/internal/api"
	"libreserve-backend/internal/db"
	"libreserve-backend/internal/notification"
	"libreserve-backend/internal/occupancy"
	"libreserve-backend/internal/parse"
	"libreserve-backend/internal/policy"
	"libreserve-backend/internal/roster"
	"libreserve-backend/internal/store"
	"libreserve-backend/internal/sweeper"
	"libreserve-backend/internal/token"
)

func main() {
	issueFor := flag.String("issue-token", "", "print a librarian access token for the given staff number and exit")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.String("path", configPath), zap.Error(err))
	}
	logger.Info("configuration loaded", zap.String("path", configPath))

	if cfg.Auth.JWTSecret == "" {
		logger.Fatal("auth.jwt_secret must be configured")
	}
	revocations, closeRevocations := newRevocationList(cfg, logger)
	defer closeRevocations()
	tokens := token.NewService(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL, revocations, logger.Named("token"))

	if *issueFor != "" {
		staff, err := parse.StaffNumber(*issueFor)
		if err != nil {
			logger.Fatal("invalid staff number", zap.Error(err))
		}
		signed, err := tokens.Issue(staff, token.RoleLibrarian)
		if err != nil {
			logger.Fatal("failed to issue token", zap.Error(err))
		}
		fmt.Println(signed)
		return
	}

	// Check for VAPID keys
	if cfg.Push.PublicKey == "" || cfg.Push.PrivateKey == "" {
		logger.Fatal("VAPID keys must be configured. Please generate them and add them to your config file.")
	}
	webpushOptions := webpush.Options{
		VAPIDPublicKey:  cfg.Push.PublicKey,
		VAPIDPrivateKey: cfg.Push.PrivateKey,
		Subscriber:      cfg.Push.Subject,
		TTL:             cfg.Push.TTL,
	}

	gormDB, err := db.Init(&cfg.Database, logger.Named("db"))
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}

	p, err := cfg.Library.Policy()
	if err != nil {
		logger.Fatal("invalid library policy", zap.Error(err))
	}
	policies, err := policy.NewHolder(p)
	if err != nil {
		logger.Fatal("invalid library policy", zap.Error(err))
	}
	queue := occupancy.NewQueue(p.Capacity(), p.StudentCapacity())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	workerPool := notification.NewWorkerPool(cfg.WorkerPool.Size, cfg.WorkerPool.QueueSize, gormDB, &webpushOptions, logger.Named("notification"))
	workerPool.Start(ctx)

	reservations := store.NewReservationStore(gormDB)
	accounts := store.NewAccountStore(gormDB)

	loc := cfg.Server.Location()
	clock := func() time.Time { return time.Now().In(loc) }
	coordinator, err := admission.New(admission.Dependencies{
		Queue:        queue,
		Policy:       policies,
		Reservations: reservations,
		Librarians:   store.NewLibrarianStore(gormDB),
		Accounts:     accounts,
		Tokens:       tokens,
		Notifier:     workerPool,
	},
		admission.WithLogger(logger.Named("admission")),
		admission.WithClock(clock),
	)
	if err != nil {
		logger.Fatal("failed to build admission coordinator", zap.Error(err))
	}

	go roster.NewService(cfg.Roster, accounts, logger.Named("roster")).Run(ctx)

	if cfg.Sweeper.Enabled {
		sw := sweeper.New(reservations, queue, policies, workerPool, cfg.Sweeper.Interval, logger.Named("sweeper"), sweeper.WithClock(clock))
		go sw.Run(ctx)
	}

	handler := api.NewHandler(coordinator, store.NewSubscriptionStore(gormDB), &webpushOptions, logger.Named("api"))
	router := api.NewRouter(handler, tokens, cfg.Server, logger.Named("http"))
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("HTTP server starting", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server ListenAndServe", zap.Error(err))
		}
	}()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for sig := range signals {
		if sig == syscall.SIGHUP {
			reloadPolicy(configPath, policies, queue, logger)
			continue
		}
		break
	}
	logger.Info("shutdown signal received, stopping services")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server Shutdown", zap.Error(err))
	}
	logger.Info("server gracefully stopped")
}

// reloadPolicy publishes the library section of a freshly read config. Any
// error leaves the running policy in place.
func reloadPolicy(path string, policies *policy.Holder, queue *occupancy.Queue, logger *zap.Logger) {
	cfg, err := config.Load(path)
	if err != nil {
		logger.Error("config reload rejected", zap.Error(err))
		return
	}
	p, err := cfg.Library.Policy()
	if err != nil {
		logger.Error("policy reload rejected", zap.Error(err))
		return
	}
	if err := policies.Store(p); err != nil {
		logger.Error("policy reload rejected", zap.Error(err))
		return
	}
	queue.Resize(p.Capacity(), p.StudentCapacity())
	logger.Info("library policy reloaded",
		zap.Int("seats", p.Capacity()),
		zap.Int("student_seats", p.StudentCapacity()))
}

func newRevocationList(cfg *config.Config, logger *zap.Logger) (token.RevocationList, func()) {
	if cfg.Auth.RevocationStore != "redis" {
		return token.NewMemoryList(), func() {}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Fatal("failed to reach redis for token revocation", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
	}
	return token.NewRedisList(client, cfg.Redis.KeyPrefix), func() { client.Close() }
}
