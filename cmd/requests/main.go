package main

import (
	"istishara/internal/requests/handler"
	"istishara/internal/requests/repository"
	"istishara/internal/requests/service"
	"istishara/internal/requests/validator"
	"istishara/pkg/app"
	"istishara/pkg/config"
	"istishara/pkg/notify"
)

const ServiceName = "requests"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting Consultation Requests service")

	notifier, err := notify.NewKafkaNotifier(cfg, ServiceName)
	if err != nil {
		cfg.Log.Fatal("Failed to initialize notifier", "error", err)
	}
	defer func() {
		if err := notifier.Close(); err != nil {
			cfg.Log.Warn("Failed to close notifier", "error", err)
		}
	}()

	requestService := service.NewRequestService(
		repository.NewMongoRequestRepository(cfg),
		validator.NewRequestValidator(cfg.Log),
		notifier,
		cfg,
	)

	cfg.Log.Info("Request service initialized", "database", cfg.MongoDatabaseName)

	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(handler.NewRequestHandler(requestService, cfg.Log))
	serverApp.Run()
}
