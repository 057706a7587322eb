package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"iotsvc.kr/doc-chatbot/internal/api"
	"iotsvc.kr/doc-chatbot/internal/auth"
	"iotsvc.kr/doc-chatbot/internal/chat"
	"iotsvc.kr/doc-chatbot/internal/config"
	"iotsvc.kr/doc-chatbot/internal/document"
	"iotsvc.kr/doc-chatbot/internal/faq"
	"iotsvc.kr/doc-chatbot/internal/llm"
	"iotsvc.kr/doc-chatbot/internal/store"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	seedDocument := flag.String("document", "", "Seed the document context from a UTF-8 text file and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Log.Level)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	kv, err := store.NewKVStore(cfg.Store.Path)
	if err != nil {
		logger.Fatal("Failed to initialize store", zap.Error(err))
	}
	defer kv.Close()

	docs := document.NewStore(kv, logger)
	faqs := faq.NewStore(kv, logger)
	authService := auth.NewService(kv, cfg.Auth.JWTSecret, logger)

	if *seedDocument != "" {
		data, err := os.ReadFile(*seedDocument)
		if err != nil {
			logger.Fatal("Failed to read seed document", zap.String("path", *seedDocument), zap.Error(err))
		}
		if _, err := docs.Update(string(data)); err != nil {
			logger.Fatal("Failed to store seed document", zap.Error(err))
		}
		logger.Info("Document context seeded. Exiting.",
			zap.String("path", *seedDocument),
			zap.Int("chars", len([]rune(string(data)))))
		os.Exit(0)
	}

	// A missing API key is fatal for the chat feature but not for the
	// process; the manager surfaces it as a persistent configuration error.
	var provider llm.Provider
	if cfg.Gemini.APIKey == "" {
		logger.Error("Gemini API key is not set; chat is disabled until it is configured")
	} else {
		gemini, err := llm.NewGeminiProvider(context.Background(), cfg.Gemini.APIKey, cfg.Gemini.Model, logger)
		if err != nil {
			logger.Error("Failed to create Gemini provider; chat is disabled", zap.Error(err))
		} else {
			provider = gemini
			defer gemini.Close()
		}
	}

	manager := chat.NewManager(provider, docs, faqs, kv, cfg.Chat, logger)

	apiHandler := api.NewAPIHandler(authService, docs, faqs, manager, logger)
	router := api.NewRouter(apiHandler)

	srv := &http.Server{
		Addr:         cfg.Address(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // streamed LLM exchanges can take a while
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("Starting server", zap.String("address", cfg.Address()))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Could not listen", zap.String("address", cfg.Address()), zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exiting gracefully")
}

func newLogger(level string) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	lvl, err := zap.ParseAtomicLevel(level)
	if err == nil {
		zapCfg.Level = lvl
	}
	return zapCfg.Build()
}
