package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"voice-banking/internal/config"
	"voice-banking/internal/domain/entities"
	Irepository "voice-banking/internal/domain/interfaces/repository"
	Iservices "voice-banking/internal/domain/interfaces/services"
	"voice-banking/internal/infra/handlers"
	"voice-banking/internal/infra/logger"
	"voice-banking/internal/infra/provider"
	"voice-banking/internal/infra/repository"
	"voice-banking/internal/infra/routes"
	"voice-banking/internal/infra/services"
	"voice-banking/internal/infra/tools"
	"voice-banking/internal/middleware"
	client "voice-banking/internal/pkg"

	"github.com/gorilla/mux"
)

func main() {
	config.LoadEnv()
	cfg := config.Load()

	ctx := context.Background()
	log := logger.NewLogger(ctx, cfg.LogLevel, cfg.JSONLogs())

	httpClient := &http.Client{}

	var sessionStore Irepository.SessionStore = repository.NewMemorySessionStore()
	if cfg.Redis.Addr != "" {
		redisClient, err := client.RedisClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatal(err.Error())
		}
		defer redisClient.Close()
		sessionStore = repository.NewRedisSessionStore(redisClient)
		log.Info(fmt.Sprintf("Session store: redis at %s", cfg.Redis.Addr))
	} else {
		log.Warn("REDIS_ADDR is not set; pending confirmations are kept in memory")
	}

	var commandRepo Irepository.Repository[entities.CommandRecord] = repository.NewMemoryRepository[entities.CommandRecord]()
	if cfg.Mongo.URI != "" {
		mongoClient, err := client.MongoClient(ctx, cfg.Mongo.URI)
		if err != nil {
			log.Fatal(err.Error())
		}
		defer mongoClient.Disconnect(context.Background())
		commandRepo = repository.NewMongoRepository[entities.CommandRecord](mongoClient.Database(cfg.Mongo.Database))
	} else {
		log.Warn("MONGODB_URI is not set; the command log is kept in memory")
	}

	nessie := provider.NewNessieProvider(log, httpClient, cfg.Nessie)
	speech := provider.NewElevenLabsProvider(log, httpClient, cfg.ElevenLabs)

	var model provider.ModelClient
	gemini, err := provider.NewGeminiProvider(ctx, log, httpClient, cfg.Gemini)
	if err != nil {
		log.Warn(fmt.Sprintf("Gemini is unavailable: %v", err))
	} else {
		model = gemini
	}

	registry := tools.NewRegistry()
	if err := tools.NewBankingTools(log, nessie, sessionStore).Register(registry); err != nil {
		log.Fatal(fmt.Sprintf("Failed to register tools: %v", err))
	}

	var commandLogSvc Iservices.ICommandLogService = services.NewCommandLogService(commandRepo, log)
	var scamGuardSvc Iservices.IScamGuardService = services.NewScamGuardService(log, nessie, sessionStore, cfg.Policy.Mode)
	var confirmationSvc Iservices.IConfirmationService = services.NewConfirmationService(log, sessionStore, cfg.Policy.ConfirmationSecret, cfg.Policy.ConfirmationTTL)
	var routerSvc Iservices.ICommandRouterService = services.NewCommandRouterService(
		log,
		model,
		registry,
		scamGuardSvc,
		confirmationSvc,
		commandLogSvc,
		cfg.Policy.Mode,
		cfg.Gemini.MaxToolTurns,
	)

	router := mux.NewRouter()
	router.Use(middleware.LoggingMiddleware(log))
	router.Use(middleware.AccountMiddleware(cfg.Nessie.AccountID))

	commandHandlers := handlers.NewCommandHandlers(log, routerSvc, commandLogSvc)
	speechHandlers := handlers.NewSpeechHandlers(log, speech, routerSvc)

	routes := routes.NewRoutes(
		router,
		commandHandlers,
		speechHandlers,
	)

	routes.Init()

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: router,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info(fmt.Sprintf("Server is running on port %s (policy mode %s)", cfg.Port, cfg.Policy.Mode))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(fmt.Sprintf("Error running HTTP server: %s", err))
			os.Exit(1)
		}
	}()

	<-stop
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error(fmt.Sprintf("Server forced to shutdown: %v", err))
	} else {
		log.Info("Server stopped gracefully.")
	}
}
