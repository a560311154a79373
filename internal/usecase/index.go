package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"reciperag/internal/adapter/store"
	"reciperag/internal/domain"
	"reciperag/internal/logging"
	"reciperag/internal/port"
)

// Rebuild statuses.
const (
	StatusOK      = "ok"
	StatusPartial = "partial"
	StatusFailed  = "failed"
)

// FingerprintStore is implemented by vector stores that remember, per kind,
// which embedding model produced their rows.
type FingerprintStore interface {
	CheckCompatibility(kind domain.Kind, current store.Fingerprint) (*store.CompatibilityResult, error)
	SetFingerprint(kind domain.Kind, fp store.Fingerprint) error
	Clear(kind domain.Kind) error
}

// ProgressFunc is called after every batch with the number of texts
// processed so far (embedded or skipped) and the total to process.
type ProgressFunc func(kind domain.Kind, done, total int)

// IndexOptions tunes a rebuild.
type IndexOptions struct {
	BatchSize    int
	BatchRetries int
	RetryDelay   time.Duration
	PruneOrphans bool
	// Provider names the embedding service in the stored fingerprint.
	Provider string
}

// IndexUseCase rebuilds the embedding index of each kind from the catalog.
type IndexUseCase struct {
	catalog      port.Catalog
	vectors      port.VectorStore
	embedder     port.Embedder
	fingerprints FingerprintStore
	opts         IndexOptions
	logger       *zap.Logger

	// running guards against concurrent rebuilds in one process.
	running sync.Mutex
}

// NewIndexUseCase creates a new index use case. fingerprints may be nil, in
// which case stored vectors are never checked against the embedder.
func NewIndexUseCase(
	catalog port.Catalog,
	vectors port.VectorStore,
	embedder port.Embedder,
	fingerprints FingerprintStore,
	opts IndexOptions,
	logger *zap.Logger,
) *IndexUseCase {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 250
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 2 * time.Second
	}
	return &IndexUseCase{
		catalog:      catalog,
		vectors:      vectors,
		embedder:     embedder,
		fingerprints: fingerprints,
		opts:         opts,
		logger:       logging.OrNop(logger),
	}
}

// RebuildResult contains the results of rebuilding one kind.
type RebuildResult struct {
	RunID         string        `json:"run_id"`
	Kind          domain.Kind   `json:"kind"`
	Status        string        `json:"status"`
	Entities      int           `json:"entities"`
	SkippedEmpty  int           `json:"skipped_empty"`
	Embedded      int           `json:"embedded"`
	FailedBatches int           `json:"failed_batches"`
	Pruned        int           `json:"pruned"`
	Cleared       bool          `json:"cleared"`
	ClearReason   string        `json:"clear_reason,omitempty"`
	Errors        []string      `json:"errors,omitempty"`
	Duration      time.Duration `json:"duration_ns"`
}

type entityText struct {
	id   int64
	text string
}

// RebuildAll rebuilds every kind in order (both kinds when none are given).
// A store failure on one kind does not prevent rebuilding the others;
// cancellation stops immediately. ErrRebuildInProgress is returned when
// another rebuild is already running.
func (u *IndexUseCase) RebuildAll(ctx context.Context, kinds []domain.Kind, progress ProgressFunc) ([]*RebuildResult, error) {
	if !u.running.TryLock() {
		return nil, domain.ErrRebuildInProgress
	}
	defer u.running.Unlock()

	if len(kinds) == 0 {
		kinds = domain.Kinds
	}

	var (
		results []*RebuildResult
		errs    []error
	)
	for _, kind := range kinds {
		result, err := u.rebuild(ctx, kind, progress)
		if result != nil {
			results = append(results, result)
		}
		if err != nil {
			errs = append(errs, err)
			if ctx.Err() != nil {
				break
			}
		}
	}
	return results, errors.Join(errs...)
}

// Rebuild re-embeds every entity of kind.
func (u *IndexUseCase) Rebuild(ctx context.Context, kind domain.Kind, progress ProgressFunc) (*RebuildResult, error) {
	if !u.running.TryLock() {
		return nil, domain.ErrRebuildInProgress
	}
	defer u.running.Unlock()

	return u.rebuild(ctx, kind, progress)
}

func (u *IndexUseCase) rebuild(ctx context.Context, kind domain.Kind, progress ProgressFunc) (*RebuildResult, error) {
	start := time.Now()
	result := &RebuildResult{
		RunID:  uuid.NewString(),
		Kind:   kind,
		Status: StatusFailed,
	}
	log := u.logger.With(zap.String("run_id", result.RunID), zap.String("kind", kind.String()))

	entities, err := u.enumerate(ctx, kind)
	if err != nil {
		return result, fmt.Errorf("failed to enumerate %s entities: %w", kind, err)
	}
	result.Entities = len(entities)

	texts := make([]entityText, 0, len(entities))
	for _, e := range entities {
		if e.text == "" {
			result.SkippedEmpty++
			continue
		}
		texts = append(texts, e)
	}
	log.Info("rebuilding index",
		zap.Int("entities", result.Entities),
		zap.Int("skipped_empty", result.SkippedEmpty),
		zap.Int("batch_size", u.opts.BatchSize))

	if u.fingerprints != nil {
		if err := u.claimEmbeddingSpace(kind, result, log); err != nil {
			result.Duration = time.Since(start)
			return result, err
		}
	}

	for lo := 0; lo < len(texts); lo += u.opts.BatchSize {
		hi := min(lo+u.opts.BatchSize, len(texts))
		batch := texts[lo:hi]

		vectors, err := u.embedBatch(ctx, batch, lo, hi)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				result.Duration = time.Since(start)
				return result, ctxErr
			}
			result.FailedBatches++
			result.Errors = append(result.Errors, err.Error())
			log.Warn("embedding batch failed, skipping",
				zap.Int("start", lo),
				zap.Int("end", hi),
				zap.Error(err))
			u.report(progress, kind, hi, len(texts))
			continue
		}

		records := make([]domain.EmbeddingRecord, len(batch))
		for i, e := range batch {
			records[i] = domain.EmbeddingRecord{Kind: kind, EntityID: e.id, Vector: vectors[i]}
		}
		if err := u.vectors.UpsertBatch(ctx, kind, records); err != nil {
			result.Errors = append(result.Errors, err.Error())
			result.Duration = time.Since(start)
			log.Error("vector store write failed, aborting rebuild",
				zap.Int("start", lo),
				zap.Int("end", hi),
				zap.Error(err))
			return result, fmt.Errorf("failed to store %s embeddings [%d, %d): %w", kind, lo, hi, err)
		}

		result.Embedded += len(batch)
		u.report(progress, kind, hi, len(texts))
		log.Debug("batch stored", zap.Int("start", lo), zap.Int("end", hi))
	}

	result.Status = StatusOK
	if result.FailedBatches > 0 {
		result.Status = StatusPartial
	}

	if u.opts.PruneOrphans && result.Status == StatusOK {
		pruned, err := u.pruneOrphans(ctx, kind, entities)
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
			log.Warn("orphan prune failed", zap.Error(err))
		}
		result.Pruned = pruned
	}

	result.Duration = time.Since(start)
	log.Info("rebuild finished",
		zap.String("status", result.Status),
		zap.Int("embedded", result.Embedded),
		zap.Int("failed_batches", result.FailedBatches),
		zap.Int("pruned", result.Pruned),
		zap.Duration("duration", result.Duration))

	return result, nil
}

// claimEmbeddingSpace clears the kind's vectors when they were produced by
// another embedding model, then records the current model as theirs.
func (u *IndexUseCase) claimEmbeddingSpace(kind domain.Kind, result *RebuildResult, log *zap.Logger) error {
	fp := u.Fingerprint()
	compat, err := u.fingerprints.CheckCompatibility(kind, fp)
	if err != nil {
		return fmt.Errorf("failed to check %s embedding fingerprint: %w", kind, err)
	}
	if compat.NeedsRebuild {
		log.Warn("clearing vectors from a different embedding model", zap.String("reason", compat.Reason))
		if err := u.fingerprints.Clear(kind); err != nil {
			return fmt.Errorf("failed to clear %s vectors: %w", kind, err)
		}
		result.Cleared = true
		result.ClearReason = compat.Reason
	}
	if err := u.fingerprints.SetFingerprint(kind, fp); err != nil {
		return fmt.Errorf("failed to record %s embedding fingerprint: %w", kind, err)
	}
	return nil
}

// Fingerprint describes the embedding model this use case writes with.
func (u *IndexUseCase) Fingerprint() store.Fingerprint {
	fp := store.Fingerprint{Provider: u.opts.Provider}
	if u.embedder != nil {
		fp.Model = u.embedder.ModelName()
		fp.Dimension = u.embedder.Dimension()
	}
	return fp
}

// Compatibility reports, for each kind (both when none are given), whether
// its stored vectors were produced by the configured embedder.
func (u *IndexUseCase) Compatibility(kinds ...domain.Kind) ([]*store.CompatibilityResult, error) {
	if len(kinds) == 0 {
		kinds = domain.Kinds
	}
	out := make([]*store.CompatibilityResult, 0, len(kinds))
	for _, kind := range kinds {
		if u.fingerprints == nil {
			out = append(out, &store.CompatibilityResult{Kind: kind, Current: u.Fingerprint()})
			continue
		}
		res, err := u.fingerprints.CheckCompatibility(kind, u.Fingerprint())
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}

// RequireCompatible returns ErrEmbeddingMismatch when any kind holds vectors
// that queries embedded by the configured embedder cannot be compared with.
func (u *IndexUseCase) RequireCompatible() error {
	results, err := u.Compatibility()
	if err != nil {
		return err
	}
	var stale []string
	for _, r := range results {
		if r.NeedsRebuild {
			stale = append(stale, fmt.Sprintf("%s: %s", r.Kind, r.Reason))
		}
	}
	if len(stale) > 0 {
		return fmt.Errorf("%w (%s)", domain.ErrEmbeddingMismatch, strings.Join(stale, "; "))
	}
	return nil
}

// enumerate lists every entity of kind with its canonical text.
func (u *IndexUseCase) enumerate(ctx context.Context, kind domain.Kind) ([]entityText, error) {
	switch kind {
	case domain.KindIngredient:
		ings, err := u.catalog.ListIngredients(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]entityText, len(ings))
		for i, ing := range ings {
			out[i] = entityText{id: ing.ID, text: IngredientText(ing)}
		}
		return out, nil
	case domain.KindRecipe:
		recipes, err := u.catalog.ListRecipes(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]entityText, len(recipes))
		for i, r := range recipes {
			out[i] = entityText{id: r.ID, text: RecipeText(r)}
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %q", domain.ErrUnknownKind, kind)
}

// IngredientText is the text embedded for an ingredient.
func IngredientText(ing domain.Ingredient) string {
	return strings.TrimSpace(ing.CanonicalName)
}

// RecipeText is the text embedded for a recipe: the non-empty parts of
// title and body joined by a newline.
func RecipeText(r domain.Recipe) string {
	var parts []string
	if r.Title != "" {
		parts = append(parts, r.Title)
	}
	if r.Body != "" {
		parts = append(parts, r.Body)
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

// embedBatch embeds one batch, retrying retryable provider failures with
// exponential backoff. Errors carry the batch range [lo, hi).
func (u *IndexUseCase) embedBatch(ctx context.Context, batch []entityText, lo, hi int) ([][]float32, error) {
	texts := make([]string, len(batch))
	for i, e := range batch {
		texts[i] = e.text
	}

	delay := u.opts.RetryDelay
	var lastErr error
	for attempt := 0; attempt <= u.opts.BatchRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
				delay *= 2
			}
		}

		vectors, err := u.embedder.Embed(ctx, texts)
		if err == nil && len(vectors) != len(texts) {
			err = fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(texts))
		}
		if err == nil {
			return vectors, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		// re-scope the provider's error to this batch's range
		cause, retryable := err, false
		var inner *domain.ProviderError
		if errors.As(err, &inner) {
			cause, retryable = inner.Err, inner.Retryable
		}
		pe := domain.NewProviderError("embed", lo, hi, cause)
		pe.Retryable = retryable
		lastErr = pe
		if !pe.Retryable {
			break
		}
	}
	return nil, lastErr
}

// pruneOrphans deletes stored rows whose entity is no longer in the catalog.
func (u *IndexUseCase) pruneOrphans(ctx context.Context, kind domain.Kind, entities []entityText) (int, error) {
	live := make(map[int64]struct{}, len(entities))
	for _, e := range entities {
		live[e.id] = struct{}{}
	}

	stored, err := u.vectors.IDs(ctx, kind)
	if err != nil {
		return 0, fmt.Errorf("failed to list stored %s ids: %w", kind, err)
	}

	var orphans []int64
	for _, id := range stored {
		if _, ok := live[id]; !ok {
			orphans = append(orphans, id)
		}
	}
	if len(orphans) == 0 {
		return 0, nil
	}

	if err := u.vectors.Delete(ctx, kind, orphans); err != nil {
		return 0, fmt.Errorf("failed to delete %d orphaned %s rows: %w", len(orphans), kind, err)
	}
	return len(orphans), nil
}

func (u *IndexUseCase) report(progress ProgressFunc, kind domain.Kind, done, total int) {
	if progress != nil {
		progress(kind, done, total)
	}
}

// Stats reports catalog and vector counts for one kind.
type Stats struct {
	Kind     domain.Kind `json:"kind"`
	Entities int         `json:"entities"`
	Vectors  int         `json:"vectors"`
}

// Stats returns counts for every kind.
func (u *IndexUseCase) Stats(ctx context.Context) ([]Stats, error) {
	out := make([]Stats, 0, len(domain.Kinds))
	for _, kind := range domain.Kinds {
		entities, err := u.catalog.Count(ctx, kind)
		if err != nil {
			return nil, err
		}
		vectors, err := u.vectors.Count(ctx, kind)
		if err != nil {
			return nil, err
		}
		out = append(out, Stats{Kind: kind, Entities: entities, Vectors: vectors})
	}
	return out, nil
}
