// The plainapi-server binary serves the question-answering API over
// HTTP. Configuration comes from PLAINAPI_* environment variables
// (optionally via a .env file).
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/plainapi/plainapi"
	"github.com/plainapi/plainapi/database"
	"github.com/plainapi/plainapi/embedding"
	"github.com/plainapi/plainapi/embedding/local"
	openaiembed "github.com/plainapi/plainapi/embedding/openai"
	openaigen "github.com/plainapi/plainapi/generation/openai"
	"github.com/plainapi/plainapi/helper"
	"github.com/plainapi/plainapi/server"
	loadSql "github.com/plainapi/plainapi/sql"
	"github.com/plainapi/plainapi/store"
	"github.com/plainapi/plainapi/store/memory"
)

const defaultPort = "8000"

func main() {
	_ = godotenv.Load()

	opts := helper.PrettyHandlerOptions{
		SlogOpts: slog.HandlerOptions{
			Level: slog.LevelInfo,
		},
	}
	logger := slog.New(helper.NewPrettyHandler(os.Stdout, opts))

	config, err := plainapi.NewConfigFromEnv()
	if err != nil {
		logger.Error("Invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	embedder, err := newEmbedder()
	if err != nil {
		logger.Error("Failed to create embedder", slog.String("error", err.Error()))
		os.Exit(1)
	}

	vectorStore, err := newStore(embedder.Dimensions(), logger)
	if err != nil {
		logger.Error("Failed to open vector store", slog.String("error", err.Error()))
		os.Exit(1)
	}

	generator, err := openaigen.NewGenerator(openaigen.Config{
		APIKey:  os.Getenv("OPENAI_API_KEY"),
		BaseURL: os.Getenv("PLAINAPI_OPENAI_BASE_URL"),
		Model:   os.Getenv("PLAINAPI_CHAT_MODEL"),
	})
	if err != nil {
		logger.Error("Failed to create generator", slog.String("error", err.Error()))
		os.Exit(1)
	}

	engine, err := plainapi.NewEngine(vectorStore, embedder, generator, config)
	if err != nil {
		logger.Error("Failed to create engine", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer engine.Close()

	port := os.Getenv("PLAINAPI_PORT")
	if port == "" {
		port = defaultPort
	}

	httpServer := &http.Server{
		Addr:              ":" + port,
		Handler:           server.NewServer(engine, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("Listening", slog.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", slog.String("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown failed", slog.String("error", err.Error()))
	}
	logger.Info("Server stopped")
}

// newEmbedder picks the embedding backend from PLAINAPI_EMBEDDER:
// "openai" uses the API, anything else the local ONNX model.
func newEmbedder() (embedding.Embedder, error) {
	if os.Getenv("PLAINAPI_EMBEDDER") == "openai" {
		return openaiembed.NewEmbedder(openaiembed.Config{
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			BaseURL: os.Getenv("PLAINAPI_OPENAI_BASE_URL"),
			Model:   os.Getenv("PLAINAPI_EMBED_MODEL"),
		})
	}
	return local.NewEmbedder(local.Config{})
}

// newStore picks the store backend from PLAINAPI_STORE: "file" opens
// (or creates) a persisted in-memory store, anything else connects to
// PostgreSQL.
func newStore(dimension int, logger *slog.Logger) (store.VectorStore, error) {
	if os.Getenv("PLAINAPI_STORE") == "file" {
		path := os.Getenv("PLAINAPI_STORE_PATH")
		if path == "" {
			path = "data/vector_store.bin"
		}
		if _, err := os.Stat(path); err == nil {
			return memory.OpenStore(dimension, path)
		}
		return memory.NewStore(dimension, path)
	}

	dbConfig, err := helper.NewDatabaseConfiguration()
	if err != nil {
		return nil, err
	}
	db := helper.NewDatabase("plainapi", dbConfig, logger)
	if err := loadSql.Init(db.Instance); err != nil {
		return nil, err
	}
	return database.NewPassagesDBHandler(db, dimension, false)
}
