package cli

import (
	"context"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/medgraph/pkg/adapter"
	"github.com/m-mizutani/medgraph/pkg/catalog"
	"github.com/m-mizutani/medgraph/pkg/model"
	"github.com/m-mizutani/medgraph/pkg/repository"
	"github.com/m-mizutani/medgraph/pkg/service/llm"
	"github.com/m-mizutani/medgraph/pkg/usecase/match"
	"github.com/m-mizutani/medgraph/pkg/usecase/seed"
	"github.com/m-mizutani/medgraph/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// config holds configuration values
type config struct {
	// Repository
	project  string
	database string

	// Logging
	logLevel  string
	logFormat string

	// Models
	geminiProject   string
	geminiLocation  string
	generativeModel string
	embeddingModel  string
	dimensionality  int64

	// Storage
	bucket        string
	storagePrefix string

	// BigQuery
	bigqueryProject  string
	bigqueryLocation string
	prevalenceTable  string
	scanLimit        int64

	// Catalog
	catalogFile string

	// Matching
	matchThreshold float64
	maxIterations  int64
	strategy       string
}

// globalFlags returns common flags used across commands with destination config
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "project",
			Aliases:     []string{"p"},
			Usage:       "Google Cloud project ID",
			Sources:     cli.EnvVars("GOOGLE_CLOUD_PROJECT"),
			Destination: &cfg.project,
		},
		&cli.StringFlag{
			Name:        "database",
			Aliases:     []string{"d"},
			Usage:       "Firestore database ID",
			Value:       "(default)",
			Sources:     cli.EnvVars("FIRESTORE_DATABASE_ID"),
			Destination: &cfg.database,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("MEDGRAPH_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "Log format (console, json)",
			Value:       string(logging.FormatConsole),
			Sources:     cli.EnvVars("MEDGRAPH_LOG_FORMAT"),
			Destination: &cfg.logFormat,
		},
	}
}

// llmFlags returns flags for LLM-related configuration with destination config
func llmFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini",
			Sources:     cli.EnvVars("GEMINI_PROJECT_ID"),
			Destination: &cfg.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini",
			Value:       "us-central1",
			Sources:     cli.EnvVars("GEMINI_LOCATION"),
			Destination: &cfg.geminiLocation,
		},
		&cli.StringFlag{
			Name:        "gemini-model",
			Usage:       "Gemini model for extraction and evaluation",
			Sources:     cli.EnvVars("GEMINI_MODEL"),
			Destination: &cfg.generativeModel,
		},
		&cli.StringFlag{
			Name:        "embedding-model",
			Usage:       "Gemini model for embeddings",
			Sources:     cli.EnvVars("GEMINI_EMBEDDING_MODEL"),
			Destination: &cfg.embeddingModel,
		},
		&cli.IntFlag{
			Name:        "embedding-dimensionality",
			Usage:       "Number of embedding dimensions. Must match the stored catalog",
			Value:       llm.DefaultDimensionality,
			Sources:     cli.EnvVars("MEDGRAPH_EMBEDDING_DIMENSIONALITY"),
			Destination: &cfg.dimensionality,
		},
	}
}

// storageFlags returns flags for Cloud Storage where graphs are published
func storageFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "storage-bucket",
			Usage:       "Cloud Storage bucket for published graphs",
			Sources:     cli.EnvVars("MEDGRAPH_STORAGE_BUCKET"),
			Destination: &cfg.bucket,
		},
		&cli.StringFlag{
			Name:        "storage-prefix",
			Usage:       "Object prefix in the bucket",
			Sources:     cli.EnvVars("MEDGRAPH_STORAGE_PREFIX"),
			Destination: &cfg.storagePrefix,
		},
	}
}

// bigqueryFlags returns flags for the disease prevalence table
func bigqueryFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "bigquery-project",
			Usage:       "Google Cloud project ID for BigQuery jobs (defaults to --project)",
			Sources:     cli.EnvVars("MEDGRAPH_BIGQUERY_PROJECT"),
			Destination: &cfg.bigqueryProject,
		},
		&cli.StringFlag{
			Name:        "bigquery-location",
			Usage:       "BigQuery job location",
			Sources:     cli.EnvVars("MEDGRAPH_BIGQUERY_LOCATION"),
			Destination: &cfg.bigqueryLocation,
		},
		&cli.StringFlag{
			Name:        "prevalence-table",
			Usage:       "BigQuery table (project.dataset.table) with disease and prevalence columns",
			Sources:     cli.EnvVars("MEDGRAPH_PREVALENCE_TABLE"),
			Destination: &cfg.prevalenceTable,
		},
		&cli.IntFlag{
			Name:        "scan-limit",
			Usage:       "Maximum bytes the prevalence query may scan",
			Value:       repository.DefaultScanLimit,
			Sources:     cli.EnvVars("MEDGRAPH_SCAN_LIMIT"),
			Destination: &cfg.scanLimit,
		},
	}
}

// catalogFlags returns flags to read the catalog from a seed file instead of Firestore
func catalogFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "catalog-file",
			Usage:       "Seed YAML to load into an in-memory catalog. Firestore is not used when set",
			Sources:     cli.EnvVars("MEDGRAPH_CATALOG_FILE"),
			Destination: &cfg.catalogFile,
		},
	}
}

// matchFlags returns flags for similarity matching of diseases
func matchFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.FloatFlag{
			Name:        "match-threshold",
			Usage:       "Minimum mean similarity for a disease to match",
			Value:       match.DefaultThreshold,
			Sources:     cli.EnvVars("MEDGRAPH_MATCH_THRESHOLD"),
			Destination: &cfg.matchThreshold,
		},
		&cli.IntFlag{
			Name:        "max-iterations",
			Usage:       "Maximum refinement rounds of a match search",
			Value:       match.DefaultMaxIterations,
			Sources:     cli.EnvVars("MEDGRAPH_MAX_ITERATIONS"),
			Destination: &cfg.maxIterations,
		},
		&cli.StringFlag{
			Name:        "strategy",
			Usage:       "Which qualifying combination to take (first, best)",
			Value:       string(match.StrategyFirst),
			Sources:     cli.EnvVars("MEDGRAPH_MATCH_STRATEGY"),
			Destination: &cfg.strategy,
		},
	}
}

// setupLogger installs the configured logger as default and into ctx
func (cfg *config) setupLogger(ctx context.Context) (context.Context, error) {
	logger, err := logging.NewWithFormat(logging.Format(cfg.logFormat), cfg.logLevel, os.Stderr)
	if err != nil {
		return ctx, err
	}
	logging.SetDefault(logger)
	return logging.With(ctx, logger), nil
}

// newRepository creates a new repository instance
func (cfg *config) newRepository(ctx context.Context) (*repository.Firestore, error) {
	if cfg.project == "" {
		return nil, goerr.New("project is required")
	}
	if cfg.database == "" {
		return nil, goerr.New("database is required")
	}

	repo, err := repository.New(ctx, cfg.project, cfg.database)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create repository")
	}
	return repo, nil
}

// openRepository returns the catalog repository. With a catalog file, the file is seeded into
// an in-memory repository.
func (cfg *config) openRepository(ctx context.Context, client *llm.Client) (repository.Repository, func(), error) {
	if cfg.catalogFile == "" {
		repo, err := cfg.newRepository(ctx)
		if err != nil {
			return nil, nil, err
		}
		return repo, func() {
			if err := repo.Close(); err != nil {
				logging.From(ctx).Warn("failed to close repository", "error", err)
			}
		}, nil
	}

	c, err := seed.LoadFile(cfg.catalogFile)
	if err != nil {
		return nil, nil, err
	}
	repo := repository.NewMemory()
	if _, err := seed.New(client, repo).Seed(ctx, c); err != nil {
		return nil, nil, goerr.Wrap(err, "failed to seed in-memory catalog", goerr.V("file", cfg.catalogFile))
	}
	return repo, func() {}, nil
}

// newGemini creates the models client backed by Gemini
func (cfg *config) newGemini(ctx context.Context) (*llm.Client, error) {
	project := cfg.geminiProject
	if project == "" {
		project = cfg.project
	}
	if project == "" {
		return nil, goerr.New("gemini-project is required")
	}
	if cfg.geminiLocation == "" {
		return nil, goerr.New("gemini-location is required")
	}

	var opts []adapter.GeminiOption
	if cfg.generativeModel != "" {
		opts = append(opts, adapter.WithGenerativeModel(cfg.generativeModel))
	}
	if cfg.embeddingModel != "" {
		opts = append(opts, adapter.WithEmbeddingModel(cfg.embeddingModel))
	}

	gemini, err := adapter.NewGemini(ctx, project, cfg.geminiLocation, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create gemini client")
	}
	return llm.New(gemini, llm.WithDimensionality(int(cfg.dimensionality))), nil
}

// newStorage creates a new Storage adapter instance
func (cfg *config) newStorage(ctx context.Context) (adapter.Storage, error) {
	if cfg.bucket == "" {
		return nil, goerr.New("storage-bucket is required")
	}

	var opts []adapter.StorageOption
	if cfg.storagePrefix != "" {
		opts = append(opts, adapter.WithStoragePrefix(cfg.storagePrefix))
	}

	storage, err := adapter.NewStorage(ctx, cfg.bucket, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage")
	}
	return storage, nil
}

// newBigQuery creates a new BigQuery adapter instance
func (cfg *config) newBigQuery(ctx context.Context) (adapter.BigQuery, error) {
	project := cfg.bigqueryProject
	if project == "" {
		project = cfg.project
	}
	if project == "" {
		return nil, goerr.New("bigquery-project is required")
	}

	var opts []adapter.BigQueryOption
	if cfg.bigqueryLocation != "" {
		opts = append(opts, adapter.WithBigQueryLocation(cfg.bigqueryLocation))
	}
	return adapter.NewBigQuery(ctx, project, opts...)
}

// loadCatalog reads the catalog and, when a prevalence table is configured, overrides disease
// prevalence with it.
func (cfg *config) loadCatalog(ctx context.Context, repo repository.Repository) (*catalog.Catalog, error) {
	if cfg.prevalenceTable == "" {
		return catalog.Load(ctx, repo)
	}

	bq, err := cfg.newBigQuery(ctx)
	if err != nil {
		return nil, err
	}
	return catalog.Load(ctx, &prevalenceRepository{
		Repository: repo,
		loader:     repository.NewPrevalenceLoader(bq, cfg.prevalenceTable, repository.WithScanLimit(cfg.scanLimit)),
	})
}

// prevalenceRepository applies prevalence from BigQuery to listed diseases
type prevalenceRepository struct {
	repository.Repository
	loader *repository.PrevalenceLoader
}

func (r *prevalenceRepository) ListDiseases(ctx context.Context) ([]*model.Disease, error) {
	diseases, err := r.Repository.ListDiseases(ctx)
	if err != nil {
		return nil, err
	}
	if err := r.loader.Apply(ctx, diseases); err != nil {
		return nil, err
	}
	return diseases, nil
}

func (cfg *config) matchOptions() ([]match.Option, error) {
	switch match.Strategy(cfg.strategy) {
	case match.StrategyFirst, match.StrategyBest:
		return []match.Option{match.WithStrategy(match.Strategy(cfg.strategy))}, nil
	default:
		return nil, goerr.New("unknown strategy", goerr.V("strategy", cfg.strategy))
	}
}
