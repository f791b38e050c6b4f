package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	. "github.com/printq/printq/internal"
)

func main() {
	//decimals at json as string
	//https://github.com/shopspring/decimal/issues/21
	decimal.MarshalJSONWithoutQuotes = true

	cfg := NewConfig()
	z, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	sugaredLogger := z.Sugar()

	repository, err := NewRepository(cfg.DatabaseURI, sugaredLogger)
	if err != nil {
		sugaredLogger.Fatal(err)
	}

	fileStore, err := NewDiskFileStore(cfg.StorageDir)
	if err != nil {
		sugaredLogger.Fatal(err)
	}

	service := NewService(repository, fileStore, sugaredLogger)
	notifier := NewNotifier(cfg.DatabaseURI, repository, sugaredLogger)
	handlers := NewHandlers(service, notifier, cfg, sugaredLogger)

	ctx, cancel := context.WithCancel(context.Background())
	go notifier.Run(ctx)

	// correct any drift left from a previous crash
	if err = service.ResetQueueStatus(ctx); err != nil {
		sugaredLogger.Errorf("queue reset on startup: %s", err)
	}

	app := fiber.New(fiber.Config{BodyLimit: 50 * 1024 * 1024})
	app.Use(logger.New())

	api := app.Group("/api")

	api.Post("/orders", handlers.SubmitOrder)
	api.Get("/orders", handlers.GetOrders)
	api.Get("/orders/:id", handlers.GetOrder)

	staff := api.Group("/staff")
	staff.Post("/login", handlers.Login)
	staff.Post("/orders/:id/complete", handlers.CompleteOrder)
	staff.Delete("/orders/:id", handlers.DeleteOrder)
	staff.Post("/queue/reset", handlers.ResetQueue)
	staff.Get("/stats", handlers.Stats)
	staff.Get("/events", handlers.Events)

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	go func() {
		if err := app.Listen(cfg.RunAddress); err != nil {
			sugaredLogger.Fatal(err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	sugaredLogger.Info("Shutting down service...")

	cancel()
	if err = app.Shutdown(); err != nil {
		sugaredLogger.Errorf("server shutdown: %s", err)
	}
}
