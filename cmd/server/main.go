package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/barcontrol/barcontrol/internal/config"
	"github.com/barcontrol/barcontrol/internal/draft"
	"github.com/barcontrol/barcontrol/internal/embedding"
	"github.com/barcontrol/barcontrol/internal/export"
	"github.com/barcontrol/barcontrol/internal/extraction"
	"github.com/barcontrol/barcontrol/internal/invoice"
	"github.com/barcontrol/barcontrol/internal/matching"
	"github.com/barcontrol/barcontrol/internal/repository"
	"github.com/barcontrol/barcontrol/internal/storage"
	"github.com/barcontrol/barcontrol/internal/web"
	"github.com/barcontrol/barcontrol/pkg/database"
	"github.com/barcontrol/barcontrol/pkg/utils"
	"github.com/gin-gonic/gin"
)

func main() {
	// Load .env before the config reads the environment
	_ = gotenv.Load()

	// Load configuration
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting BarControl invoice service",
		zap.String("extraction_mode", cfg.Extraction.Mode),
		zap.Int("port", cfg.Server.Port))

	// Initialize database
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

	// Run migrations
	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Initialize repositories
	suppliers := repository.NewSupplierRepository(db.DB, logger)
	products := repository.NewProductRepository(db.DB, logger)
	embeddings := repository.NewEmbeddingRepository(db.DB, logger)
	docTypes := repository.NewDocumentTypeRepository(db.DB, logger)
	invoices := repository.NewInvoiceRepository(db.DB, logger)
	draftRepo := repository.NewDraftRepository(db.DB, logger)

	// Extraction provider and embedder, per configured mode
	var provider extraction.Provider
	var embedder embedding.Embedder
	switch cfg.Extraction.Mode {
	case "simulated":
		provider = extraction.NewSimulatedProvider(logger)
		logger.Warn("Running with simulated extraction, no documents will actually be read")
	default:
		client := openai.NewClient(cfg.OpenAI.APIKey)
		provider = extraction.NewOpenAIProvider(client, cfg.OpenAI.VisionModel, cfg.Extraction.MaxPages, logger)
		embedder = embedding.NewOpenAIEmbedder(client, cfg.OpenAI.EmbeddingModel, cfg.OpenAI.EmbeddingDims)
	}

	var embedService *embedding.Service
	if embedder != nil {
		embedService = embedding.NewService(embeddings, products, embedder, logger)
	}

	// Draft store with periodic expiry sweep
	drafts := draft.NewStore(draftRepo, cfg.Drafts.TTL, logger)
	stopSweep := make(chan struct{})
	go func() {
		ticker := time.NewTicker(cfg.Drafts.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := drafts.Sweep(); err != nil {
					logger.Warn("Draft sweep failed", zap.Error(err))
				}
			case <-stopSweep:
				return
			}
		}
	}()

	// Storage for uploaded originals
	if err := os.MkdirAll(cfg.Storage.BaseDir, 0755); err != nil {
		logger.Fatal("Failed to create storage directory", zap.Error(err))
	}
	objects := storage.NewLocalObjectStore(cfg.Storage.BaseDir, logger)
	signer := storage.NewURLSigner(cfg.Storage.SigningSecret, cfg.Storage.LinkTTL)

	// Set Gin mode based on logger level
	if cfg.Logger.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	server := web.NewServer(web.Config{
		MaxUploadSize:     cfg.Server.MaxUploadSize,
		ExtractionTimeout: cfg.Extraction.Timeout,
	}, web.Deps{
		Provider:      provider,
		Matcher:       matching.NewMatcher(products, embedder, cfg.Matching.Threshold, logger),
		Embeddings:    embeddings,
		EmbedService:  embedService,
		Drafts:        drafts,
		Resolver:      invoice.NewResolver(suppliers, docTypes, invoices, logger),
		Assembler:     invoice.NewAssembler(db, suppliers, docTypes, invoices, logger),
		Invoices:      invoices,
		Products:      products,
		Suppliers:     suppliers,
		DocumentTypes: docTypes,
		Objects:       objects,
		Signer:        signer,
		Exporter:      export.NewExcelExporter(logger),
		Logger:        logger,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      server.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	close(stopSweep)

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited successfully")
}
