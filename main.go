package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/civicgraph/civic-engine/pkg/config"
	"github.com/civicgraph/civic-engine/pkg/database"
	"github.com/civicgraph/civic-engine/pkg/handlers"
	"github.com/civicgraph/civic-engine/pkg/importer"
	"github.com/civicgraph/civic-engine/pkg/logging"
	"github.com/civicgraph/civic-engine/pkg/middleware"
	"github.com/civicgraph/civic-engine/pkg/registry"
	"github.com/civicgraph/civic-engine/pkg/registry/congress"
	"github.com/civicgraph/civic-engine/pkg/registry/fedreg"
	"github.com/civicgraph/civic-engine/pkg/registry/legislators"
	"github.com/civicgraph/civic-engine/pkg/repositories"
	"github.com/civicgraph/civic-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("baseURL", cfg.BaseURL),
		zap.String("database", cfg.Database.Database),
		zap.Int("importBatchSize", cfg.Import.BatchSize))

	ctx := context.Background()

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.URL(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := database.RunMigrations(cfg.Database.URL(), cfg.Database.MigrationsPath, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	// Repositories
	orgRepo := repositories.NewOrganizationRepository(db)
	statuteRepo := repositories.NewStatuteRepository(db)
	personRepo := repositories.NewPersonRepository(db)
	regulationRepo := repositories.NewRegulationRepository(db)

	// Import engine
	orchestrator := importer.NewOrchestrator(cfg.Import.MaxErrorDetails, logger)
	writer := importer.NewBatchWriter(db, importer.BatchWriterConfig{
		BatchSize:    cfg.Import.BatchSize,
		WriteTimeout: time.Duration(cfg.Import.WriteTimeoutSeconds) * time.Second,
	}, logger)

	govmanService := services.NewGovmanImportService(orgRepo, orchestrator, writer, logger)
	uscodeService := services.NewUsCodeImportService(statuteRepo, orchestrator, writer, cfg.Import.BatchSize, logger)

	// External registries
	congressClient := congress.NewClient(cfg.Congress, logger)
	if !congressClient.IsConfigured() {
		logger.Warn("CONGRESS_API_KEY not set, congress.gov search will fail")
	}
	personChecker := registry.NewDuplicateChecker(registry.PersonStore{Repo: personRepo}, congress.ImportSourceCongress, logger)
	congressSearch := congress.NewSearchService(congressClient, personChecker, logger)
	congressImport := congress.NewImportService(congressClient, personRepo, logger)

	fedregClient := fedreg.NewClient(cfg.FederalRegister, logger)
	regulationChecker := registry.NewDuplicateChecker(registry.RegulationStore{Repo: regulationRepo}, fedreg.ImportSourceFederalRegister, logger)
	fedregSearch := fedreg.NewSearchService(fedregClient, regulationChecker, logger)
	fedregImport := fedreg.NewImportService(fedregClient, regulationRepo, logger)

	legisClient := legislators.NewClient(cfg.Legislators, logger)
	legisSearch := legislators.NewSearchService(legisClient, personChecker, logger)

	// HTTP surface
	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewImportHandler(cfg, govmanService, uscodeService, logger).RegisterRoutes(mux)
	handlers.NewRegistryHandler(congressSearch, congressImport, fedregSearch, fedregImport, legisSearch, logger).RegisterRoutes(mux)

	handler := middleware.RequestLogger(logger)(mux)

	addr := cfg.BindAddr + ":" + cfg.Port
	logger.Info("Starting civic-engine", zap.String("addr", addr), zap.String("version", cfg.Version))
	if err := http.ListenAndServe(addr, handler); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}
