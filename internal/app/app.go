// Package app wires the repositories, capabilities and services from configuration.
package app

import (
	"context"
	"errors"
	"log/slog"

	"github.com/joseph-ayodele/folder-renamer/internal/async"
	"github.com/joseph-ayodele/folder-renamer/internal/classify"
	"github.com/joseph-ayodele/folder-renamer/internal/common"
	"github.com/joseph-ayodele/folder-renamer/internal/embedding"
	"github.com/joseph-ayodele/folder-renamer/internal/extract"
	"github.com/joseph-ayodele/folder-renamer/internal/filestore"
	"github.com/joseph-ayodele/folder-renamer/internal/labels"
	"github.com/joseph-ayodele/folder-renamer/internal/llm"
	"github.com/joseph-ayodele/folder-renamer/internal/llm/openai"
	"github.com/joseph-ayodele/folder-renamer/internal/ocr"
	"github.com/joseph-ayodele/folder-renamer/internal/pipeline"
	"github.com/joseph-ayodele/folder-renamer/internal/rename"
	"github.com/joseph-ayodele/folder-renamer/internal/report"
	"github.com/joseph-ayodele/folder-renamer/internal/repository"
	"github.com/joseph-ayodele/folder-renamer/internal/schema"
	"github.com/joseph-ayodele/folder-renamer/internal/server"
	"github.com/joseph-ayodele/folder-renamer/internal/undo"
)

// App holds every wired component. Embedder and Generator are nil when the
// capability is not configured.
type App struct {
	Config *common.Config
	Logger *slog.Logger

	DB      *repository.DB
	Jobs    repository.JobRepository
	Labels  repository.LabelRepository
	Results repository.ResultRepository
	Undos   repository.UndoRepository

	Store     filestore.Store
	OCR       *ocr.Engine
	Embedder  embedding.Embedder
	Generator llm.StructuredGenerator

	Classifier *classify.Classifier
	Fallback   *classify.Fallback
	Extractor  *extract.Extractor

	JobService   *pipeline.JobService
	Processor    *pipeline.Processor
	Renames      *rename.Service
	LabelService *labels.Service
	Builder      *schema.Builder
	Reports      *report.Service
}

// New opens the database and file store and builds the services. Close releases them.
func New(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}

	db, err := repository.Open(ctx, repository.Config{
		DSN:              cfg.Database.DSN,
		MaxConns:         cfg.Database.MaxConns,
		MinConns:         cfg.Database.MinConns,
		MaxConnLifetime:  cfg.Database.MaxConnLifetime,
		DialTimeout:      cfg.Database.DialTimeout,
		StatementTimeout: cfg.Database.QueryTimeout,
	}, logger)
	if err != nil {
		return nil, err
	}
	a.DB = db
	a.Jobs = repository.NewJobRepository(db, logger)
	a.Labels = repository.NewLabelRepository(db, logger)
	a.Results = repository.NewResultRepository(db, logger)
	a.Undos = repository.NewUndoRepository(db, logger)

	a.Store, err = filestore.New(ctx, cfg.Storage, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	a.OCR = ocr.NewEngine(ocr.ConfigFrom(cfg.OCR), logger)

	emb, err := embedding.NewFromConfig(cfg, logger)
	switch {
	case err == nil:
		a.Embedder = emb
	case errors.Is(err, embedding.ErrDisabled):
		logger.Info("embeddings disabled, using lexical similarity")
	default:
		db.Close()
		return nil, err
	}

	if cfg.LLMEnabled() {
		a.Generator = openai.NewClient(openai.ConfigFrom(cfg.LLM), a.OCR, logger)
	} else {
		logger.Info("no LLM api key configured, fallback and extraction are disabled")
	}

	a.Classifier = classify.NewClassifier(a.Labels, a.Results, classify.NewSimilarity(a.Embedder), classify.ThresholdsFrom(cfg.Classifier), logger)
	if a.Generator != nil {
		a.Fallback = classify.NewFallback(a.Labels, a.Results, a.Generator, cfg.Classifier.LLMLabelMinConfidence, logger)
		a.Extractor = extract.NewExtractor(a.Labels, a.Results, a.Store, a.Generator, logger)
	}

	a.JobService = pipeline.NewJobService(a.Jobs, a.Store, logger)
	stages := pipeline.NewStages(pipeline.StageDeps{
		Jobs:       a.Jobs,
		Results:    a.Results,
		Files:      a.Store,
		Text:       a.OCR,
		Classifier: a.Classifier,
		Fallback:   a.Fallback,
		Extractor:  a.Extractor,
		Pool: async.NewPool(logger,
			async.WithWorkers(cfg.Pipeline.Workers),
			async.WithProcessTimeout(cfg.Pipeline.FileTimeout),
		),
	}, logger)
	a.Processor = pipeline.NewProcessor(a.Jobs, stages, logger)

	a.Renames = rename.NewService(a.Jobs, a.Labels, a.Results, a.Undos, undo.NewLedger(a.Undos, a.Store, logger), logger)
	a.LabelService = labels.NewService(labels.Deps{
		Labels:   a.Labels,
		Jobs:     a.Jobs,
		Results:  a.Results,
		Files:    a.Store,
		Text:     a.OCR,
		Embedder: a.Embedder,
	}, logger)
	a.Builder = schema.NewBuilder(a.Labels, a.Generator, logger)
	a.Reports = report.NewService(a.Jobs, a.Labels, a.Results, a.Renames, a.Store, logger)
	return a, nil
}

// RenamerService exposes the services over the RPC surface.
func (a *App) RenamerService() *server.RenamerService {
	return server.NewRenamerService(server.Deps{
		Jobs:      a.JobService,
		Processor: a.Processor,
		Renames:   a.Renames,
		Overrides: a.LabelService,
		Reports:   a.Reports,
	}, a.Logger)
}

func (a *App) Close() {
	if a.DB != nil {
		a.DB.Close()
	}
}
