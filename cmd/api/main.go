package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tailtribe/internal/adapters/auth/google"
	"tailtribe/internal/adapters/auth/jwt"
	"tailtribe/internal/adapters/payments/stripe"
	"tailtribe/internal/adapters/storage/postgres"
	"tailtribe/internal/config"
	"tailtribe/internal/jobs"
	"tailtribe/internal/platform/logger"
	"tailtribe/internal/platform/mailer"
	"tailtribe/internal/platform/ratelimit"
	"tailtribe/internal/realtime"
	"tailtribe/internal/router"

	"github.com/rs/cors"
	"github.com/spf13/cobra"
)

var version = "dev"

// @title TailTribe API
// @version 1.0
// @BasePath /api
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	rootCmd := &cobra.Command{
		Use:     "tailtribe",
		Short:   "TailTribe API: dueños de mascotas y cuidadores",
		Version: version,
		RunE:    func(cmd *cobra.Command, _ []string) error { return serve(cmd.Context()) },
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Arranca el servidor HTTP",
		RunE:  func(cmd *cobra.Command, _ []string) error { return serve(cmd.Context()) },
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Aplica las migraciones pendientes y sale",
		RunE:  func(cmd *cobra.Command, _ []string) error { return migrate(cmd.Context()) },
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) logger.Logger {
	return logger.New(logger.Options{
		Level:  logger.ParseLevel(cfg.Log.Level),
		Format: logger.ParseFormat(cfg.Log.Format),
		App:    cfg.App.Name,
		File:   cfg.Log.File,
	})
}

func syncLogger(log logger.Logger) {
	if z, ok := log.(*logger.ZapLogger); ok {
		_ = z.Sync()
	}
}

func migrate(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := newLogger(cfg)
	defer syncLogger(log)

	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL is required to run migrations")
	}
	db, err := postgres.Open(cfg.Database.URL)
	if err != nil {
		return err
	}
	defer db.Close()

	applied, err := postgres.Migrate(ctx, db)
	if err != nil {
		return err
	}
	log.Info("migrations applied", map[string]any{"versions": applied})
	return nil
}

func serve(parent context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := newLogger(cfg)
	defer syncLogger(log)

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Postgres es opcional: sin DATABASE_URL todo vive en memoria.
	var db *sql.DB
	if cfg.Database.URL != "" {
		db, err = postgres.Open(cfg.Database.URL)
		if err != nil {
			return err
		}
		defer db.Close()
		applied, err := postgres.Migrate(ctx, db)
		if err != nil {
			return err
		}
		log.Info("database ready", map[string]any{"migrations_applied": len(applied)})
	} else {
		log.Warn("DATABASE_URL not set, using in-memory storage", nil)
	}

	rdb, err := ratelimit.OpenRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		// El limiter cae a memoria; no bloquea el arranque.
		log.Warn("redis unavailable", map[string]any{"error": err})
		rdb = nil
	}
	if rdb != nil {
		defer rdb.Close()
	}

	opts := router.Options{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
		Logger: log,
		Limiter: ratelimit.New(ratelimit.Config{
			Capacity:     cfg.RateLimit.Capacity,
			RefillPerSec: cfg.RateLimit.RefillPerSec,
		}, rdb, log),
		AuthLimiter: ratelimit.New(ratelimit.Config{
			Capacity:     cfg.RateLimit.AuthCapacity,
			RefillPerSec: cfg.RateLimit.AuthRefillSec,
		}, rdb, log),
	}

	if cfg.JWT.Secret != "" {
		tokens, err := jwt.NewHMACService(cfg.JWT.Secret, cfg.JWT.TokenTTL, cfg.JWT.Issuer)
		if err != nil {
			return err
		}
		opts.AuthVerifier = tokens
		opts.TokenIssuer = tokens
	} else {
		log.Warn("JWT_SECRET not set, running in dev auth mode (X-Debug-* headers)", nil)
	}

	if cfg.IsGoogleOAuthConfigured() {
		opts.Google = google.New(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.RedirectURL)
	}

	if cfg.IsStripeConfigured() {
		gw, err := stripe.New(stripe.Config{
			SecretKey:     cfg.Stripe.SecretKey,
			WebhookSecret: cfg.Stripe.WebhookSecret,
		}, log)
		if err != nil {
			return err
		}
		opts.Payments = gw
	} else {
		log.Warn("stripe not configured, payments disabled", nil)
	}

	if cfg.IsMailConfigured() {
		smtp, err := mailer.NewSMTP(mailer.Config{
			Host:      cfg.Mail.SMTPHost,
			Port:      cfg.Mail.SMTPPort,
			Username:  cfg.Mail.SMTPUsername,
			Password:  cfg.Mail.SMTPPassword,
			FromEmail: cfg.Mail.FromEmail,
			FromName:  cfg.Mail.FromName,
			Workers:   cfg.Mail.Workers,
		}, log)
		if err != nil {
			return err
		}
		defer smtp.Close()
		opts.Mailer = smtp
	} else {
		opts.Mailer = mailer.Noop{Log: log}
	}

	hub := realtime.NewHub(log)
	go hub.Run(ctx)
	opts.Hub = hub

	runner := jobs.NewRunner(cfg.Location(), log)
	opts.Jobs = runner

	handler := router.NewRouter(opts)

	if cfg.Cron.Enabled {
		if err := runner.Start(); err != nil {
			return err
		}
		defer func() { <-runner.Stop().Done() }()
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Debug-User-ID", "X-Debug-User-Role"},
		AllowCredentials: cfg.CORS.AllowCredentials,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           c.Handler(handler),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", map[string]any{"addr": srv.Addr, "version": version})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
