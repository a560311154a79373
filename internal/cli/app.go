package cli

import (
	"fmt"

	"go.uber.org/zap"

	"reciperag/config"
	"reciperag/internal/adapter/cache"
	"reciperag/internal/adapter/catalog"
	"reciperag/internal/adapter/embedding"
	"reciperag/internal/adapter/llm"
	"reciperag/internal/adapter/retriever"
	"reciperag/internal/adapter/store"
	"reciperag/internal/port"
	"reciperag/internal/usecase"
)

// app holds the components a command works with. Stores are always open;
// the embedding and generation services are connected on demand since they
// need credentials.
type app struct {
	cfg    *config.Config
	logger *zap.Logger

	catalog *catalog.SQLiteCatalog
	bolt    *store.BoltStore
	vectors *store.BoltVectorStore

	// rebuilding skips the stale-vector check: the rebuild clears them.
	rebuilding bool

	embedder port.Embedder
	searcher *retriever.SemanticSearcher
	index    *usecase.IndexUseCase
	retrieve *usecase.RetrieveUseCase
	pack     *usecase.PackUseCase
	generate *usecase.GenerateUseCase
}

func openApp() (*app, error) {
	cfg := GetConfig()
	if err := cfg.EnsureDataDirs(); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cat, err := catalog.Open(cfg.Catalog.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	bolt, err := store.Open(cfg.Vectors.Path, cfg.Vectors.OpenTimeout)
	if err != nil {
		cat.Close()
		return nil, fmt.Errorf("failed to open vector store: %w", err)
	}
	vectors, err := store.NewBoltVectorStore(bolt, cfg.Embedding.Dimension)
	if err != nil {
		cat.Close()
		bolt.Close()
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		logger:  GetLogger(),
		catalog: cat,
		bolt:    bolt,
		vectors: vectors,
		pack:    usecase.NewPackUseCase(cat),
	}
	a.index = a.newIndexUseCase(nil)
	return a, nil
}

func (a *app) newIndexUseCase(embedder port.Embedder) *usecase.IndexUseCase {
	return usecase.NewIndexUseCase(a.catalog, a.vectors, embedder, a.bolt, usecase.IndexOptions{
		BatchSize:    a.cfg.Index.BatchSize,
		BatchRetries: a.cfg.Index.BatchRetries,
		RetryDelay:   a.cfg.Index.RetryDelay,
		PruneOrphans: a.cfg.Index.PruneOrphans,
		Provider:     a.cfg.Embedding.Provider,
	}, a.logger)
}

// connectEmbedder wires the embedding service and everything that needs it.
func (a *app) connectEmbedder() error {
	if a.embedder != nil {
		return nil
	}
	embedder, err := embedding.FromConfig(a.cfg.Embedding)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}
	if embedder.Dimension() != a.vectors.Dimension() {
		return fmt.Errorf("embedder dimension %d does not match configured dimension %d", embedder.Dimension(), a.vectors.Dimension())
	}

	a.embedder = embedder
	a.index = a.newIndexUseCase(embedder)
	if !a.rebuilding {
		if err := a.index.RequireCompatible(); err != nil {
			return fmt.Errorf("%w; run `reciperag rebuild`", err)
		}
	}

	queryEmbedder := embedder
	if a.cfg.Embedding.CacheSize > 0 {
		queryEmbedder = cache.NewCachedEmbedder(embedder, cache.NewQueryCache(a.cfg.Embedding.CacheSize, a.cfg.Embedding.CacheTTL))
	}
	a.searcher = retriever.NewSemanticSearcher(a.vectors, queryEmbedder, a.logger)
	a.retrieve = usecase.NewRetrieveUseCase(a.searcher, a.catalog, a.cfg.Retrieve.BackfillPerIngredient, a.logger)
	return nil
}

// connectGenerator wires generation on top of retrieval.
func (a *app) connectGenerator() error {
	if err := a.connectEmbedder(); err != nil {
		return err
	}
	generator, err := llm.FromConfig(a.cfg.Generation)
	if err != nil {
		return fmt.Errorf("failed to create generator: %w", err)
	}
	a.generate = usecase.NewGenerateUseCase(a.retrieve, a.pack, generator,
		a.cfg.Retrieve.KRecipes, a.cfg.Retrieve.KIngredients, a.logger)
	return nil
}

func (a *app) Close() error {
	var firstErr error
	if err := a.bolt.Close(); err != nil {
		firstErr = err
	}
	if err := a.catalog.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
