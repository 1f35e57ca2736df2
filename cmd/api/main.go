package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/laventecare/authcore/internal/api"
	"github.com/laventecare/authcore/internal/audit"
	"github.com/laventecare/authcore/internal/authsvc"
	"github.com/laventecare/authcore/internal/config"
	"github.com/laventecare/authcore/internal/crypto"
	"github.com/laventecare/authcore/internal/kvs"
	"github.com/laventecare/authcore/internal/notify"
	"github.com/laventecare/authcore/internal/rbac"
	"github.com/laventecare/authcore/internal/storage"
	"github.com/laventecare/authcore/pkg/logger"
)

func main() {
	// We mask errors because in Production these files might not exist and we
	// rely on system env vars.
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.Setup(cfg.AppEnv)
	log.Info("application_startup", "env", cfg.AppEnv)

	if cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			TracesSampleRate: 1.0,
			Environment:      cfg.AppEnv,
		})
		if err != nil {
			log.Error("sentry_init_failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
			log.Info("sentry_initialized")
		}
	} else {
		log.Warn("sentry_dsn_missing", "details", "skipping_init")
	}

	ctx := context.Background()

	pool, err := storage.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("database_connect_failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	log.Info("database_connected")

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Error("redis_url_parse_failed", "error", err)
		os.Exit(1)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	kv, err := kvs.NewRedisStore(redisClient)
	if err != nil {
		log.Error("redis_connect_failed", "error", err)
		os.Exit(1)
	}
	log.Info("redis_connected")

	var tokens crypto.TokenProvider
	switch cfg.JWTSigningAlg {
	case "RS256":
		if cfg.JWTPrivateKey == "" {
			if cfg.AppEnv == "production" {
				log.Error("jwt_private_key_missing", "details", "fatal_in_production")
				os.Exit(1)
			}
			log.Warn("jwt_private_key_missing", "details", "dev_mode_unsafe")
		}
		tokens, err = crypto.NewRS256Provider(cfg.JWTPrivateKey, cfg.AppURL, cfg.AppURL, cfg.AccessTokenTTL)
		if err != nil {
			log.Error("jwt_provider_init_failed", "error", err)
			os.Exit(1)
		}
	default:
		if cfg.JWTHS256Secret == "" && cfg.AppEnv == "production" {
			log.Error("jwt_hs256_secret_missing", "details", "fatal_in_production")
			os.Exit(1)
		}
		tokens = crypto.NewHS256Provider(cfg.JWTHS256Secret, cfg.AppURL, cfg.AppURL, cfg.AccessTokenTTL)
	}

	hasher := crypto.NewArgon2Hasher(crypto.Argon2Params{
		MemoryKB: cfg.Argon2MemoryKB, Iterations: cfg.Argon2Iterations,
		Parallelism: cfg.Argon2Parallelism, SaltLen: 16, KeyLen: 32,
	})
	hashPool := crypto.NewHashPool()

	if cfg.TOTPSecretKeyHex == "" {
		if cfg.AppEnv == "production" {
			log.Error("totp_secret_key_missing", "details", "fatal_in_production")
			os.Exit(1)
		}
		log.Warn("totp_secret_key_missing", "details", "dev_mode_unsafe")
	}
	totpBox, err := crypto.NewTOTPSecretBox(map[int]string{1: cfg.TOTPSecretKeyHex}, 1)
	if err != nil {
		log.Error("totp_box_init_failed", "error", err)
		os.Exit(1)
	}

	mailer := notify.NewDevMailer(log)

	authCfg := authsvc.DefaultConfig()
	authCfg.AllowPublicRegistration = cfg.AllowPublicRegistration
	authCfg.AccessTokenTTL = cfg.AccessTokenTTL
	authCfg.RefreshTokenTTL = cfg.RefreshTokenTTL
	authCfg.UnverifiedAccountTTLDays = cfg.UnverifiedAccountTTLDays

	authService := authsvc.New(pool, kv, hasher, hashPool, tokens, totpBox, mailer, log, authCfg)

	auditLogger := audit.NewDBLogger(pool, log)
	pdp := rbac.New(storage.New(pool), kv, nil, auditLogger, log)

	server := api.NewServer(api.Deps{
		Pool: pool, KV: kv, AuthSvc: authService, PDP: pdp, AuditSvc: auditLogger,
		Tokens: tokens, Logger: log, Issuer: cfg.AppURL,
		RateLimitRPS: cfg.RateLimitRPS, RateLimitBurst: cfg.RateLimitBurst,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      server.Router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)

	go func() {
		log.Info("server_listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		log.Error("server_startup_failed", "error", err)
		os.Exit(1)

	case sig := <-shutdown:
		log.Info("shutdown_signal_received", "signal", sig)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("graceful_shutdown_failed", "error", err)
			if err := srv.Close(); err != nil {
				log.Error("server_force_close_failed", "error", err)
			}
		}

		pool.Close()
		log.Info("database_pool_closed")
		log.Info("server_shutdown_complete")
	}
}
