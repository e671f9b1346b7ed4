package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/kita-live/kita-api/internal/config"
	"github.com/kita-live/kita-api/internal/database"
	"github.com/kita-live/kita-api/internal/handler"
	"github.com/kita-live/kita-api/internal/middleware"
	"github.com/kita-live/kita-api/internal/models"
	"github.com/kita-live/kita-api/internal/repository"
	"github.com/kita-live/kita-api/internal/router"
	"github.com/kita-live/kita-api/internal/service"
	"github.com/kita-live/kita-api/pkg/ai"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.Room{},
		&models.RoomStudent{},
		&models.RoomMessage{},
		&models.QuestionHistory{},
		&models.TeacherPrompt{},
		&models.TeacherLink{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	natsConn, err := database.ConnectNATS(cfg.NATSURL)
	if err != nil {
		log.Fatalf("failed to connect to nats: %v", err)
	}
	if natsConn != nil {
		defer natsConn.Close()
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	roomRepo := repository.NewRoomRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	historyRepo := repository.NewHistoryRepository(db)
	promptRepo := repository.NewPromptRepository(db)
	linkRepo := repository.NewLinkRepository(db)

	providers := map[models.AIModel]ai.Provider{
		models.AIModelChatGPT: ai.NewChatGPTProvider(ai.ChatGPTConfig{
			APIKey:    cfg.OpenAIAPIKey,
			Model:     cfg.OpenAIModel,
			MaxTokens: cfg.AIMaxTokens,
			Logger:    logger,
		}),
		models.AIModelClaude: ai.NewClaudeProvider(ai.ClaudeConfig{
			APIKey:    cfg.AnthropicAPIKey,
			Model:     cfg.AnthropicModel,
			MaxTokens: cfg.AIMaxTokens,
			Logger:    logger,
		}),
		models.AIModelGemini: ai.NewGeminiProvider(ai.GeminiConfig{
			APIKey:    cfg.GeminiAPIKey,
			Model:     cfg.GeminiModel,
			MaxTokens: cfg.AIMaxTokens,
			Logger:    logger,
		}),
	}

	realtimeService := service.NewRealtimeService(roomRepo, redisClient, cfg.RealtimeChannel, natsConn, logger)
	pollService := service.NewPollService(roomRepo, historyRepo, realtimeService, validate, logger)
	roomService := service.NewRoomService(roomRepo, studentRepo, promptRepo, pollService, realtimeService, validate, logger)
	aiService := service.NewAIService(roomRepo, promptRepo, providers, validate, logger)
	messageService := service.NewMessageService(roomRepo, messageRepo, realtimeService, validate, logger)
	libraryService := service.NewLibraryService(promptRepo, linkRepo, validate, logger)
	cleanupService := service.NewCleanupService(roomRepo, logger)

	authHandler := handler.NewAuthHandler(cfg.JWTSecret, validate, logger)
	roomHandler := handler.NewRoomHandler(roomService, logger)
	pollHandler := handler.NewPollHandler(pollService, logger)
	aiHandler := handler.NewAIHandler(aiService, logger)
	chatHandler := handler.NewChatHandler(messageService, logger)
	realtimeHandler := handler.NewRealtimeHandler(realtimeService, logger)
	libraryHandler := handler.NewLibraryHandler(libraryService, logger)
	adminHandler := handler.NewAdminHandler(cleanupService, cfg.RoomRetention, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		AuthHandler:     authHandler,
		RoomHandler:     roomHandler,
		PollHandler:     pollHandler,
		AIHandler:       aiHandler,
		ChatHandler:     chatHandler,
		RealtimeHandler: realtimeHandler,
		LibraryHandler:  libraryHandler,
		AdminHandler:    adminHandler,
		JWTMiddleware:   middleware.JWTProtected(cfg.JWTSecret),
	})

	runCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	realtimeService.Start(runCtx)
	go runCleanupLoop(runCtx, cleanupService, cfg, logger)

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app, stopWorkers)
}

// runCleanupLoop sweeps stale rooms on a fixed interval. An immediate first
// sweep catches anything that expired while the service was down.
func runCleanupLoop(ctx context.Context, cleanup service.CleanupService, cfg config.Config, logger zerolog.Logger) {
	ticker := time.NewTicker(cfg.CleanupInterval)
	defer ticker.Stop()

	sweep := func() {
		if _, err := cleanup.ExpireStaleRooms(ctx, cfg.RoomRetention); err != nil {
			logger.Error().Err(err).Msg("scheduled cleanup failed")
		}
	}

	sweep()
	for {
		select {
		case <-ticker.C:
			sweep()
		case <-ctx.Done():
			return
		}
	}
}

func waitForShutdown(app *fiber.App, stopWorkers context.CancelFunc) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()
	stopWorkers()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
