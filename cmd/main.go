package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vidstream/internal/config"
	"vidstream/internal/http_server/handlers/change_password"
	"vidstream/internal/http_server/handlers/channel"
	"vidstream/internal/http_server/handlers/current_user"
	"vidstream/internal/http_server/handlers/history"
	"vidstream/internal/http_server/handlers/like"
	"vidstream/internal/http_server/handlers/login"
	"vidstream/internal/http_server/handlers/logout"
	"vidstream/internal/http_server/handlers/profile_image"
	"vidstream/internal/http_server/handlers/refresh"
	"vidstream/internal/http_server/handlers/register"
	"vidstream/internal/http_server/handlers/update_account"
	"vidstream/internal/lib/hash"
	"vidstream/internal/lib/jwt"
	"vidstream/internal/media"
	"vidstream/internal/middleware/authn"
	"vidstream/internal/middleware/ratelimit"
	"vidstream/internal/rabbitmq"
	"vidstream/internal/session"
	"vidstream/internal/storage/postgres"
	"vidstream/internal/storage/redis"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-playground/validator/v10"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	cfg := config.MustLoad("./config/config.yaml")

	log := setupLogger(cfg.Env)

	log.Info("starting vidstream service", slog.String("env", cfg.Env))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		log.Info("Shutdown signal received")
		cancel()
	}()

	storage, err := postgres.New(ctx, cfg)
	if err != nil {
		log.Error("failed to connect postgres", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer storage.Close()

	cache, err := redis.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.ProfileTTL)
	if err != nil {
		log.Error("failed to connect redis", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer cache.Close()

	msgBroker, err := rabbitmq.New(cfg.RabbitMQ.URL, cfg.RabbitMQ.QueueName)
	if err != nil {
		log.Error("failed to connect rabbitmq", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer msgBroker.Close()

	mediaStore, err := media.New(ctx, cfg)
	if err != nil {
		log.Error("failed to init media storage", slog.String("err", err.Error()))
		os.Exit(1)
	}

	sessions := session.New(
		log,
		storage,
		storage,
		jwt.NewSigner(),
		hash.NewBcrypt(),
		cfg.Tokens.AccessTokenSecret,
		cfg.Tokens.RefreshTokenSecret,
		cfg.Tokens.AccessTokenTTL,
		cfg.Tokens.RefreshTokenTTL,
	)

	router := setupRouter(log, cfg, sessions, storage, cache, mediaStore, msgBroker)

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server is running", slog.String("address", cfg.HTTPServer.Address))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed", slog.String("err", err.Error()))
			cancel()
		}
	}()

	<-ctx.Done()

	log.Info("Shutting down HTTP server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown error", slog.String("err", err.Error()))
	} else {
		log.Info("Server stopped gracefully")
	}

	log.Info("Main service stopped")
}

func setupRouter(
	log *slog.Logger,
	cfg *config.Config,
	sessions *session.Session,
	storage *postgres.PostgresRepo,
	cache *redis.RedisRepo,
	mediaStore *media.Store,
	msgBroker *rabbitmq.RabbitMQClient,
) *chi.Mux {
	validate := validator.New()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	requireAuth := authn.New(log, sessions, storage)

	r.Route("/api/v1/users", func(r chi.Router) {
		r.With(rateLimit.Register()).Post("/register",
			register.New(log, validate, sessions, mediaStore, msgBroker),
		)
		r.With(rateLimit.Login()).Post("/login",
			login.New(log, validate, sessions, cfg.Tokens.AccessTokenTTL, cfg.Tokens.RefreshTokenTTL),
		)
		r.With(rateLimit.Refresh()).Post("/refresh-token",
			refresh.New(log, sessions, cfg.Tokens.AccessTokenTTL, cfg.Tokens.RefreshTokenTTL),
		)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.With(rateLimit.Logout()).Post("/logout",
				logout.New(log, sessions),
			)
			r.With(rateLimit.ChangePassword()).Post("/change-password",
				changePassword.New(log, validate, sessions),
			)
			r.With(rateLimit.Profile()).Get("/fetch-current-user",
				currentUser.New(log),
			)
			r.With(rateLimit.Profile()).Patch("/update-account",
				updateAccount.New(log, validate, storage, cache),
			)
			r.With(rateLimit.Media()).Patch("/avatar",
				profileImage.NewAvatar(log, mediaStore, storage, cache),
			)
			r.With(rateLimit.Media()).Patch("/cover-image",
				profileImage.NewCoverImage(log, mediaStore, storage, cache),
			)
			r.With(rateLimit.Profile()).Get("/c/{username}",
				channel.New(log, storage, cache),
			)
			r.With(rateLimit.Profile()).Get("/history",
				history.New(log, storage),
			)
		})
	})

	r.Route("/api/v1/videos", func(r chi.Router) {
		r.Use(requireAuth)

		r.With(rateLimit.Like()).Post("/toggle/v/{videoID}",
			like.New(log, storage),
		)
	})

	return r
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}

	return log
}
