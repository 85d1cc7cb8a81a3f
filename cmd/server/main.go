package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ewhall/parley/internal/auth"
	"github.com/ewhall/parley/internal/config"
	"github.com/ewhall/parley/internal/handler"
	"github.com/ewhall/parley/internal/lobby"
	"github.com/ewhall/parley/internal/logger"
	"github.com/ewhall/parley/internal/middleware"
	"github.com/ewhall/parley/internal/playerlog"
	"github.com/ewhall/parley/internal/registry"
	"github.com/ewhall/parley/internal/repository"
	"github.com/ewhall/parley/internal/repository/postgres"
	redisrepo "github.com/ewhall/parley/internal/repository/redis"
	"github.com/ewhall/parley/internal/service"
)

func main() {
	logger.Init()
	cfg := config.Load()
	log.Info().Str("dataDir", cfg.DataDir).Msg("Config loaded")

	secret := cfg.JWTSecret
	if secret == "" {
		// Tokens will not survive a restart without a configured secret.
		generated, err := auth.GenerateSecretKey()
		if err != nil {
			log.Fatal().Err(err).Msg("Secret generation failed")
		}
		secret = generated
		log.Warn().Msg("JWT_SECRET not set, using an ephemeral secret")
	}
	tokens := auth.NewTokenManager(secret)

	// Optional durable stores. Without them users and revocations live in
	// memory only.
	var userStore repository.UserStore
	if cfg.DatabaseURL != "" {
		db, err := postgres.Connect(cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Database connection failed")
		}
		defer db.Close()
		userStore = postgres.NewUserStore(db)
	}
	var revStore repository.RevocationStore
	if cfg.RedisURL != "" {
		redisClient, err := redisrepo.NewClient(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Redis connection failed")
		}
		defer redisClient.Close()
		revStore = redisrepo.NewRevocationStore(redisClient)
	}

	reg, err := registry.New(tokens, userStore, revStore, logger.Get())
	if err != nil {
		log.Fatal().Err(err).Msg("Registry initialization failed")
	}

	logs, err := playerlog.NewStore(cfg.DataDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Player log store initialization failed")
	}

	games := service.NewGameService(reg, logs, logger.Get())
	lobbies := lobby.NewCoordinator(games, reg, tokens, cfg.TalkRounds, logger.Get())

	var google *auth.OAuthProvider
	if cfg.GoogleClientID != "" && cfg.GoogleClientSecret != "" {
		google = auth.NewGoogleOAuth(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)
	}

	mux := handler.NewRouter(handler.Deps{
		Registry: reg,
		Tokens:   tokens,
		Games:    games,
		Lobbies:  lobbies,
		Google:   google,
		Hub:      handler.NewHub(),
	})

	root := middleware.Chain(mux, middleware.Logger, middleware.CORS(cfg.AllowedOrigins), middleware.JSON)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      root,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server shutdown error")
	}
	log.Info().Msg("Server stopped")
}
