package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/firstmakers/fm-api/api"
	"github.com/firstmakers/fm-api/cache"
	rediscache "github.com/firstmakers/fm-api/cache/redis"
	"github.com/firstmakers/fm-api/config"
	"github.com/firstmakers/fm-api/internal/auth"
	"github.com/firstmakers/fm-api/mailer"
	"github.com/firstmakers/fm-api/mongodb"
	"github.com/firstmakers/fm-api/services"
	"github.com/firstmakers/fm-api/token"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	level, parseErr := zerolog.ParseLevel(cfg.LogLevel)
	if parseErr != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	if parseErr != nil {
		log.Warn().Str("configured", cfg.LogLevel).Msg("invalid LOG_LEVEL, using info")
	}

	log.Info().Str("http_port", cfg.HTTPPort).Str("mongo_db", cfg.MongoDBName).
		Str("token_cache", cfg.TokenCache).Str("mail_provider", cfg.MailProvider).
		Msg("starting fm-api server")

	ctx := context.Background()
	if err := mongodb.Init(ctx, cfg.MongoURI, cfg.MongoDBName); err != nil {
		log.Fatal().Err(err).Msg("failed to connect to MongoDB")
	}
	db := mongodb.DB()

	userRepo, err := mongodb.NewUserRepository(ctx, db)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize user repository")
	}
	deviceRepo, err := mongodb.NewDeviceRepository(ctx, db)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize device repository")
	}
	sketchRepo, err := mongodb.NewSketchRepository(ctx, db)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize sketch repository")
	}

	hasher := auth.NewBcryptPasswordHasher(cfg.BcryptCost)
	codec := token.NewCodec(cfg.JWTSecret)
	issuer := token.NewIssuer(codec, time.Duration(cfg.AccessTokenTTLMin)*time.Minute)
	refresh := token.NewRefreshManager(userRepo, issuer)
	intents := token.NewIntentSigner(codec,
		time.Duration(cfg.ResetTokenTTLMin)*time.Minute,
		time.Duration(cfg.ActivationTokenTTLHour)*time.Hour)

	mail, err := mailer.New(cfg.Mail())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize mailer")
	}

	var tokenCache cache.TokenCache
	switch cfg.TokenCache {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		tokenCache = rediscache.NewTokenCache(client, cfg.RedisKeyPrefix)
	default:
		tokenCache = cache.NewMemoryTokenCache()
	}

	accounts := services.NewAccountService(
		userRepo, hasher, issuer, refresh, intents, mail, cfg.PublicBaseURL)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogMethod:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			event := log.Info()
			if v.Error != nil {
				event = log.Error().Err(v.Error)
			}
			event.
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("ip", v.RemoteIP).
				Msg("request")
			return nil
		},
	}))

	e.GET("/healthz", func(c echo.Context) error {
		if err := mongodb.Ping(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "degraded"})
		}
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})

	restAPI := api.New(accounts, deviceRepo, sketchRepo, codec, tokenCache)
	restAPI.RegisterRoutes(e)

	go func() {
		log.Info().Str("port", cfg.HTTPPort).Msg("HTTP server listening")
		if err := e.Start(":" + cfg.HTTPPort); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}
	mongodb.Close(shutdownCtx)
	log.Info().Msg("server stopped")
}
