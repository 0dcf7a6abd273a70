package main

import (
	"istishara/internal/bookings/handler"
	"istishara/internal/bookings/repository"
	"istishara/internal/bookings/service"
	"istishara/internal/bookings/validator"
	consultrepo "istishara/internal/consultations/repository"
	"istishara/pkg/app"
	"istishara/pkg/config"
	"istishara/pkg/notify"
)

const ServiceName = "bookings"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting Bookings service")

	notifier, err := notify.NewKafkaNotifier(cfg, ServiceName)
	if err != nil {
		cfg.Log.Fatal("Failed to initialize notifier", "error", err)
	}
	defer func() {
		if err := notifier.Close(); err != nil {
			cfg.Log.Warn("Failed to close notifier", "error", err)
		}
	}()

	bookingService := service.NewBookingService(
		repository.NewMongoBookingRepository(cfg),
		consultrepo.NewMongoSlotRepository(cfg),
		consultrepo.NewMongoSlotLockRepository(cfg),
		validator.NewBookingValidator(cfg.Log),
		notifier,
		cfg,
	)

	cfg.Log.Info("Booking service initialized", "database", cfg.MongoDatabaseName)

	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(handler.NewBookingHandler(bookingService, cfg.Log))
	serverApp.Run()
}
