// Command rebuild-embeddings recomputes every active product vector.
// Run it after seeding the catalog or switching embedding models.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/barcontrol/barcontrol/internal/config"
	"github.com/barcontrol/barcontrol/internal/embedding"
	"github.com/barcontrol/barcontrol/internal/repository"
	"github.com/barcontrol/barcontrol/pkg/database"
	"github.com/barcontrol/barcontrol/pkg/utils"
)

func main() {
	_ = gotenv.Load()

	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: "stdout",
		Format:     "console",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if cfg.OpenAI.APIKey == "" {
		logger.Fatal("OPENAI_API_KEY is required to rebuild embeddings")
	}

	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	client := openai.NewClient(cfg.OpenAI.APIKey)
	embedder := embedding.NewOpenAIEmbedder(client, cfg.OpenAI.EmbeddingModel, cfg.OpenAI.EmbeddingDims)
	service := embedding.NewService(
		repository.NewEmbeddingRepository(db.DB, logger),
		repository.NewProductRepository(db.DB, logger),
		embedder,
		logger)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	start := time.Now()
	count, err := service.RebuildAll(ctx)
	if err != nil {
		logger.Fatal("Rebuild failed", zap.Int("completed", count), zap.Error(err))
	}

	logger.Info("Rebuild finished",
		zap.Int("products", count),
		zap.String("model", cfg.OpenAI.EmbeddingModel),
		zap.Duration("took", time.Since(start)))
}
