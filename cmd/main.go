package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/ob1hnk/triolingo/adapters/llm"
	"github.com/ob1hnk/triolingo/adapters/memory"
	"github.com/ob1hnk/triolingo/adapters/mongo"
	"github.com/ob1hnk/triolingo/adapters/realtime"
	"github.com/ob1hnk/triolingo/adapters/redis"
	"github.com/ob1hnk/triolingo/adapters/stt"
	"github.com/ob1hnk/triolingo/domain/repositories"
	"github.com/ob1hnk/triolingo/internal/api"
	"github.com/ob1hnk/triolingo/internal/audio"
	"github.com/ob1hnk/triolingo/internal/auth"
	"github.com/ob1hnk/triolingo/internal/config"
	"github.com/ob1hnk/triolingo/internal/websocket"
	"github.com/ob1hnk/triolingo/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	var logger *zap.Logger
	if cfg.IsDevelopment() {
		logger, _ = zap.NewDevelopment()
	} else {
		logger, _ = zap.NewProduction()
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
	logger.Info("Server exited")
}

// closer releases a backend on shutdown
type closer func(ctx context.Context)

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx := context.Background()
	var closers []closer
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i](shutdownCtx)
		}
	}()

	// Initialize adapters
	backend, err := newLLM(ctx, cfg, logger)
	if err != nil {
		return err
	}

	speechToText, closeSTT, err := newSpeechToText(ctx, cfg, backend, logger)
	if err != nil {
		return err
	}
	if closeSTT != nil {
		closers = append(closers, closeSTT)
	}

	var factory repositories.RealtimeSessionFactory
	if cfg.RealtimeEnabled() {
		factory = realtime.NewFactory(realtime.Config{
			URL:              cfg.Realtime.URL,
			Model:            cfg.Realtime.Model,
			APIKey:           cfg.Realtime.APIKey,
			HandshakeTimeout: cfg.Realtime.HandshakeTimeout,
		}, logger.Named("realtime"))
	} else {
		logger.Warn("OPENAI_API_KEY not set, streaming endpoints are unavailable")
	}
	realtimeDefaults := realtime.SessionDefaults{
		Instructions:       llm.ConversationSystemPrompt,
		TranscriptionModel: cfg.Realtime.TranscriptionModel,
		Temperature:        cfg.Realtime.Temperature,
	}

	var speechToSpeech repositories.SpeechToSpeech
	switch cfg.SpeechToSpeech.Provider {
	case config.ProviderRealtime:
		speechToSpeech = realtime.NewSpeechToSpeech(factory, realtimeDefaults, logger)
	default:
		speechToSpeech = llm.NewSpeechToSpeech(backend, llm.ResponderConfig{}, logger)
	}

	store, closeStore, err := newConversationStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if closeStore != nil {
		closers = append(closers, closeStore)
	}

	letters, closeLetters, err := newLetterRepository(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if closeLetters != nil {
		closers = append(closers, closeLetters)
	}

	// Initialize usecase services
	textToText := llm.NewTextToText(backend, llm.ResponderConfig{}, logger)
	twoStage := usecase.NewTwoStageConversation(speechToText, textToText, store, logger)
	singleStage := usecase.NewSingleStageConversation(speechToSpeech, store, logger)

	letterWriter := llm.NewTextToText(backend, llm.ResponderConfig{SystemPrompt: llm.LetterSystemPrompt}, logger)
	letterService := usecase.NewLetterService(letterWriter, letters, logger)

	// Initialize WebSocket hub
	assembler := audio.NewAssembler(logger)
	hub := websocket.NewHub(websocket.HubDeps{
		Assembler:        assembler,
		TwoStage:         twoStage,
		SingleStage:      singleStage,
		Store:            store,
		NewRealtime:      factory,
		RealtimeDefaults: realtimeDefaults,
		DefaultLanguage:  cfg.Server.DefaultLanguage,
	}, logger)
	go hub.Run()

	cleanup := websocket.NewSessionCleanupService(assembler, cfg.Audio.IdleTimeout, cfg.Audio.CleanupInterval, logger)
	cleanup.Start()
	defer cleanup.Stop()

	var tokens *auth.TokenIssuer
	if cfg.Auth.Enabled {
		tokens, err = auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
		if err != nil {
			return err
		}
	}

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	api.InitRoutes(e, api.Deps{
		Hub:          hub,
		Letters:      letterService,
		Tokens:       tokens,
		ClientSecret: cfg.Auth.ClientSecret,
	}, logger)

	serverErr := make(chan error, 1)
	go func() {
		if err := e.Start(":" + cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	logger.Info("Server started",
		zap.String("port", cfg.Server.Port),
		zap.String("llmProvider", cfg.LLM.Provider),
		zap.String("sttProvider", cfg.STT.Provider),
		zap.String("speechToSpeechProvider", cfg.SpeechToSpeech.Provider),
		zap.Bool("realtime", factory != nil),
		zap.Bool("auth", tokens != nil))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		return fmt.Errorf("shutting down the server: %w", err)
	}

	logger.Info("Server is shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if !hub.Shutdown(shutdownCtx) {
		logger.Warn("Relays still running at shutdown deadline")
	}
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

func newLLM(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repositories.LargeLanguageModel, error) {
	if cfg.LLM.Provider == config.ProviderMock {
		logger.Warn("Using mock LLM backend")
		return llm.NewMockLLM(logger), nil
	}
	backend, err := llm.NewGeminiLLM(ctx, llm.GeminiConfig{
		APIKey:     cfg.LLM.APIKey,
		Model:      cfg.LLM.Model,
		AudioModel: cfg.LLM.AudioModel,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return backend, nil
}

func newSpeechToText(ctx context.Context, cfg *config.Config, backend repositories.LargeLanguageModel, logger *zap.Logger) (repositories.SpeechToText, closer, error) {
	switch cfg.STT.Provider {
	case config.ProviderGoogle:
		google, err := stt.NewGoogleSpeechToText(ctx, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create Google speech client: %w", err)
		}
		return google, func(context.Context) { google.Close() }, nil
	case config.ProviderMock:
		return stt.NewMockSpeechToText(logger), nil, nil
	default:
		return stt.NewLLMSpeechToText(backend, cfg.LLM.AudioModel, logger), nil, nil
	}
}

func newConversationStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repositories.ConversationStore, closer, error) {
	if cfg.Redis.Addr == "" {
		logger.Info("Using in-memory conversation history")
		return memory.NewConversationStore(), nil, nil
	}
	client, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("Using Redis conversation history", zap.String("addr", cfg.Redis.Addr))
	return redis.NewConversationStore(client, cfg.Redis.HistoryTTL, logger),
		func(context.Context) { client.Close() }, nil
}

func newLetterRepository(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repositories.LetterRepository, closer, error) {
	if cfg.Mongo.URI == "" {
		logger.Info("Using in-memory letter storage")
		return memory.NewLetterRepository(), nil, nil
	}
	client, err := mongo.NewClient(ctx, cfg.Mongo.URI, cfg.Mongo.Database, logger)
	if err != nil {
		return nil, nil, err
	}
	return mongo.NewLetterRepository(client.Database),
		func(ctx context.Context) { client.Close(ctx) }, nil
}
