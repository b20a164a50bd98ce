package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-rubric-api/internal/config"
	"github.com/noah-isme/gema-rubric-api/internal/database"
	"github.com/noah-isme/gema-rubric-api/internal/events"
	"github.com/noah-isme/gema-rubric-api/internal/handler"
	"github.com/noah-isme/gema-rubric-api/internal/middleware"
	"github.com/noah-isme/gema-rubric-api/internal/repository"
	"github.com/noah-isme/gema-rubric-api/internal/router"
	"github.com/noah-isme/gema-rubric-api/internal/service"
	"github.com/noah-isme/gema-rubric-api/internal/validation"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()

	store, err := database.OpenStore(cfg)
	if err != nil {
		log.Fatalf("failed to open %s store: %v", cfg.StoreDriver, err)
	}
	defer store.KV.Close()

	publisherCfg := events.Config{Source: cfg.AppName, Prefix: cfg.EventsSubject}
	if cfg.EventsEnabled {
		publisherCfg.Redis = store.Redis
		if cfg.NATSURL != "" {
			natsConn, err := nats.Connect(cfg.NATSURL, nats.Name(cfg.AppName))
			if err != nil {
				logger.Warn().Err(err).Msg("nats unavailable, events will not be sent to nats")
			} else {
				defer natsConn.Drain()
				publisherCfg.NATS = natsConn
			}
		}
	}
	publisher := events.NewPublisher(publisherCfg, logger)

	validator := validation.New()

	rubricRepo := repository.NewRubricRepository(store.KV, validator, repository.Options{})
	evaluationRepo := repository.NewEvaluationRepository(store.KV, validator, repository.Options{})

	rubricService := service.NewRubricService(rubricRepo, validator, publisher, logger)
	evaluationService := service.NewEvaluationService(evaluationRepo, rubricRepo, validator, publisher, logger)

	rubricHandler := handler.NewRubricHandler(rubricService, logger)
	evaluationHandler := handler.NewEvaluationHandler(evaluationService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AllowOrigins: cfg.CORSOrigins})
	router.Register(app, cfg, router.Dependencies{
		RubricHandler:     rubricHandler,
		EvaluationHandler: evaluationHandler,
		Store:             store.KV,
		JWTMiddleware:     middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	logger.Info().Str("address", cfg.HTTPAddress()).Str("store", cfg.StoreDriver).Msg("server started")

	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
