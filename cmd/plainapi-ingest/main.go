// The plainapi-ingest binary rebuilds the vector store from a
// directory of scraped documentation JSON files. The rebuild is
// atomic: a server querying the same store keeps serving the previous
// corpus until the swap completes.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/plainapi/plainapi"
	"github.com/plainapi/plainapi/core/pipeline"
	"github.com/plainapi/plainapi/database"
	"github.com/plainapi/plainapi/embedding"
	"github.com/plainapi/plainapi/embedding/local"
	openaiembed "github.com/plainapi/plainapi/embedding/openai"
	"github.com/plainapi/plainapi/helper"
	"github.com/plainapi/plainapi/ingest"
	loadSql "github.com/plainapi/plainapi/sql"
	"github.com/plainapi/plainapi/store"
	"github.com/plainapi/plainapi/store/memory"
)

func main() {
	_ = godotenv.Load()

	dir := flag.String("dir", "", "directory with scraped raw-document JSON files (default $PLAINAPI_RAW_DOCS or data/raw_docs)")
	flag.Parse()

	if *dir == "" {
		*dir = os.Getenv("PLAINAPI_RAW_DOCS")
	}
	if *dir == "" {
		*dir = "data/raw_docs"
	}

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

	chunkPipeline := pipeline.NewPipeline(
		pipeline.WindowChunker(config.WindowTokens, config.OverlapTokens),
		embedder,
	)
	chunkPipeline.Concurrency = config.MaxConcurrentRequests

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	count, err := ingest.Run(ctx, chunkPipeline, vectorStore, *dir, logger)
	if err != nil {
		logger.Error("Ingestion failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Ingestion complete", slog.Int("num_chunks", count))
}

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

func newStore(dimension int, logger *slog.Logger) (store.VectorStore, error) {
	if os.Getenv("PLAINAPI_STORE") == "file" {
		path := os.Getenv("PLAINAPI_STORE_PATH")
		if path == "" {
			path = "data/vector_store.bin"
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
