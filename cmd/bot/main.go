package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"dialogbot/internal/admin"
	"dialogbot/internal/config"
	"dialogbot/internal/database"
	"dialogbot/internal/openai"
	"dialogbot/internal/repository"
	"dialogbot/internal/service"
	"dialogbot/internal/storage"
	"dialogbot/internal/telegram"
	"dialogbot/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logr := logger.New()

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("database connect: %v", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := database.Migrate(ctx, db); err != nil {
		log.Fatalf("database migrate: %v", err)
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		log.Fatalf("telegram bot: %v", err)
	}

	aiClient := openai.NewClient(cfg, logr)

	userRepo := repository.NewUserRepository(db)
	dialogRepo := repository.NewDialogRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	balanceRepo := repository.NewBalanceRepository(db)
	subscriptionRepo := repository.NewSubscriptionRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)

	userService := service.NewUserService(userRepo)
	dialogService := service.NewDialogService(dialogRepo, messageRepo)
	balanceService := service.NewBalanceService(balanceRepo)
	subscriptionService := service.NewSubscriptionService(subscriptionRepo)
	paymentService := service.NewPaymentService(cfg, paymentRepo, balanceService)

	var archiver service.ImageArchiver
	if cfg.ArchiveEnabled() {
		uploader, err := storage.NewUploader(storage.Config{
			Endpoint:      cfg.S3Endpoint,
			Region:        cfg.S3Region,
			AccessKey:     cfg.S3AccessKey,
			SecretKey:     cfg.S3SecretKey,
			Bucket:        cfg.S3Bucket,
			PublicBaseURL: cfg.S3PublicBaseURL,
			UsePathStyle:  cfg.S3UsePathStyle,
			Prefix:        cfg.S3Prefix,
		})
		if err != nil {
			log.Fatalf("storage uploader: %v", err)
		}
		archiver = uploader
	}

	generationService := service.NewGenerationService(
		dialogRepo,
		messageRepo,
		subscriptionService,
		balanceService,
		aiClient,
		archiver,
		cfg.TextGenerationCost,
		cfg.ImageGenerationCost,
		logr,
	)

	bot := telegram.NewBot(cfg, botAPI, logr, userService, dialogService, balanceService, subscriptionService, generationService, paymentService)

	adminServer := admin.NewServer(cfg.AdminListenAddr, cfg.AdminUsername, cfg.AdminPassword, logr, userService, balanceService, subscriptionService, paymentService, botAPI)
	go func() {
		if err := adminServer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logr.Error("admin server stopped", "err", err)
		}
	}()

	if err := bot.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logr.Error("bot stopped", "err", err)
	}
}
