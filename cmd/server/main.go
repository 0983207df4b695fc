package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/ignite/newsletter/internal/api"
	"github.com/ignite/newsletter/internal/config"
	"github.com/ignite/newsletter/internal/domain"
	"github.com/ignite/newsletter/internal/mailing"
	"github.com/ignite/newsletter/internal/metrics"
	"github.com/ignite/newsletter/internal/notifier"
	"github.com/ignite/newsletter/internal/pkg/distlock"
	"github.com/ignite/newsletter/internal/pkg/httpretry"
	"github.com/ignite/newsletter/internal/pkg/logger"
	"github.com/ignite/newsletter/internal/repository/postgres"
	"github.com/ignite/newsletter/internal/service/newsletter"
	"github.com/ignite/newsletter/internal/service/subscription"
	"github.com/ignite/newsletter/internal/storage"
)

type emailSender interface {
	Send(ctx context.Context, msg domain.EmailMessage) error
}

func main() {
	defaultPath := os.Getenv("CONFIG_PATH")
	if defaultPath == "" {
		defaultPath = "config/config.yaml"
	}
	configPath := flag.String("config", defaultPath, "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	appLog := logger.New(os.Stderr, logger.ParseLevel(cfg.Log.Level), cfg.Log.Redact())
	logger.SetDefault(appLog)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	err = db.PingContext(pingCtx)
	pingCancel()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	appLog.Info("database connected")

	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			log.Fatalf("Invalid redis url: %v", err)
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
		appLog.Info("redis configured, publish locks use redis")
	} else {
		appLog.Info("redis not configured, publish locks use postgres advisory locks")
	}

	sender, err := newEmailSender(ctx, cfg, appLog)
	if err != nil {
		log.Fatalf("Failed to initialize email provider: %v", err)
	}

	archive, err := storage.New(ctx, cfg.Archive)
	if err != nil {
		log.Fatalf("Failed to initialize issue archive: %v", err)
	}

	appMetrics := metrics.New()

	templates := mailing.NewTemplateService()
	confirmation, err := mailing.NewConfirmationRenderer(templates, mailing.DefaultConfirmationTemplates())
	if err != nil {
		log.Fatalf("Failed to compile confirmation templates: %v", err)
	}

	subscriptions := subscription.NewService(
		postgres.NewStore(db, cfg.Workflow.TxTimeout()),
		sender,
		confirmation,
		subscription.Config{BaseURL: cfg.Application.BaseURL, NotifyTimeout: cfg.Email.Timeout(), Metrics: appMetrics},
		appLog,
	)
	newsletters := newsletter.NewService(
		postgres.NewNewsletterRepo(db),
		sender,
		templates,
		archive,
		distlock.NewFactory(redisClient, db, cfg.Workflow.PublishLockTTL()),
		newsletter.Config{NotifyTimeout: cfg.Email.Timeout(), Metrics: appMetrics},
		appLog,
	)

	var redisPing api.RedisPinger
	if redisClient != nil {
		redisPing = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	server := api.NewServer(
		cfg.Server,
		api.NewHandlers(subscriptions, newsletters, appLog),
		api.NewHealthChecker(db, redisPing),
		api.RouteOptions{
			AllowedOrigins: cfg.Server.AllowedOrigins,
			AccessLog:      cfg.Server.AccessLog,
			Metrics:        appMetrics.Handler(),
		},
	)

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		appLog.Info("starting server", "addr", cfg.Server.Addr(), "base_url", cfg.Application.BaseURL)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	appLog.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLog.Error("server shutdown error", "error", err)
	}
	appLog.Info("server stopped")
}

func newEmailSender(ctx context.Context, cfg *config.Config, log *logger.Logger) (emailSender, error) {
	switch cfg.Email.Provider {
	case "ses":
		return notifier.NewSESNotifier(ctx, notifier.SESOptions{
			AccessKey: cfg.SES.AccessKey,
			SecretKey: cfg.SES.SecretKey,
			Region:    cfg.SES.Region,
		}, cfg.Email.Sender, log)
	case "postmark":
		doer := httpretry.NewRetryClient(&http.Client{Timeout: cfg.Email.Timeout()}, cfg.Email.MaxRetries).
			WithLogger(log)
		return notifier.NewPostmarkClient(cfg.Email.BaseURL, cfg.Email.Sender, cfg.Email.AuthorizationToken, doer, log)
	default:
		return nil, fmt.Errorf("unsupported email provider %q", cfg.Email.Provider)
	}
}
