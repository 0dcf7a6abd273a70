package main

import (
	"istishara/internal/consultations/handler"
	"istishara/internal/consultations/repository"
	"istishara/internal/consultations/service"
	"istishara/internal/consultations/validator"
	"istishara/pkg/app"
	"istishara/pkg/config"
	"istishara/pkg/notify"
)

const ServiceName = "consultations"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting Consultations service")

	notifier, err := notify.NewKafkaNotifier(cfg, ServiceName)
	if err != nil {
		cfg.Log.Fatal("Failed to initialize notifier", "error", err)
	}
	defer func() {
		if err := notifier.Close(); err != nil {
			cfg.Log.Warn("Failed to close notifier", "error", err)
		}
	}()

	slotValidator := validator.NewSlotValidator(cfg.Log)
	slotRepo := repository.NewMongoSlotRepository(cfg)
	lockRepo := repository.NewMongoSlotLockRepository(cfg)
	consultationRepo := repository.NewMongoConsultationRepository(cfg)

	slotService := service.NewSlotService(slotRepo, slotValidator, cfg)
	claimService := service.NewClaimService(slotRepo, lockRepo, consultationRepo, slotValidator, notifier, cfg)
	consultationService := service.NewConsultationService(consultationRepo, slotRepo, slotValidator, notifier, cfg)

	cfg.Log.Info("Consultation services initialized", "database", cfg.MongoDatabaseName)

	api := handler.NewAPI(
		handler.NewSlotHandler(slotService, cfg.Log),
		handler.NewConsultationHandler(claimService, consultationService, cfg.Log),
	)

	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(api)
	serverApp.Run()
}
