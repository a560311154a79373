package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"reciperag/config"
	"reciperag/internal/adapter/embedding"
	"reciperag/internal/adapter/memstore"
	"reciperag/internal/adapter/retriever"
	"reciperag/internal/domain"
	"reciperag/internal/port"
	"reciperag/internal/usecase"
)

type cannedGenerator struct {
	err error
}

func (g *cannedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	return "Title: Weeknight Soup", nil
}

func (g *cannedGenerator) ModelName() string { return "canned" }

func newTestServer(t *testing.T, gen port.TextGenerator) *Server {
	t.Helper()
	ctx := context.Background()

	catalog := memstore.NewMemoryCatalog()
	for _, ing := range []domain.Ingredient{{ID: 10, Name: "Tomatoes"}, {ID: 11, Name: "Lentils"}} {
		_, err := catalog.InsertIngredient(ctx, ing)
		require.NoError(t, err)
	}
	for _, rec := range []domain.Recipe{
		{ID: 1, Title: "Tomato Soup", Body: "Simmer tomatoes.", Tags: "soup"},
		{ID: 2, Title: "Lentil Stew", Body: "Stew lentils.", Tags: "stew"},
	} {
		_, err := catalog.InsertRecipe(ctx, rec, []domain.RecipeIngredient{{Raw: rec.Tags}})
		require.NoError(t, err)
	}

	embedder := embedding.NewMockEmbedder(16)
	vectors := memstore.NewMemoryVectorStore(16)
	logger := zap.NewNop()

	searcher := retriever.NewSemanticSearcher(vectors, embedder, logger)
	retrieve := usecase.NewRetrieveUseCase(searcher, catalog, 0, logger)
	generate := usecase.NewGenerateUseCase(retrieve, usecase.NewPackUseCase(catalog), gen, 8, 15, logger)
	index := usecase.NewIndexUseCase(catalog, vectors, embedder, nil, usecase.IndexOptions{BatchSize: 10}, logger)

	cfg := config.DefaultConfig()
	return NewServer(Deps{
		Generate: generate,
		Index:    index,
		Searcher: searcher,
		Catalog:  catalog,
	}, cfg.Server, cfg.Retrieve, logger)
}

func do(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = httptest.NewRequest(method, path, bytes.NewReader(data))
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, r)
	return w
}

func TestHandleHealth(t *testing.T) {
	w := do(t, newTestServer(t, nil), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestHandleRebuildAndStats(t *testing.T) {
	srv := newTestServer(t, nil)

	w := do(t, srv, http.MethodPost, "/api/v1/indices/rebuild", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var rebuilt struct {
		Results []usecase.RebuildResult `json:"results"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&rebuilt))
	require.Len(t, rebuilt.Results, 2)
	assert.Equal(t, usecase.StatusOK, rebuilt.Results[0].Status)

	w = do(t, srv, http.MethodGet, "/api/v1/indices/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats struct {
		Indices []usecase.Stats `json:"indices"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&stats))
	require.Len(t, stats.Indices, 2)
	for _, s := range stats.Indices {
		assert.Equal(t, 2, s.Vectors, "kind %s", s.Kind)
	}
}

func TestHandleRebuild_ChunkedEmptyBody(t *testing.T) {
	srv := newTestServer(t, nil)

	r := httptest.NewRequest(http.MethodPost, "/api/v1/indices/rebuild", strings.NewReader(""))
	r.ContentLength = -1
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var rebuilt struct {
		Results []usecase.RebuildResult `json:"results"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&rebuilt))
	assert.Len(t, rebuilt.Results, 2, "empty body rebuilds every kind")
}

func TestHandleRebuild_MalformedBody(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/api/v1/indices/rebuild", strings.NewReader("{kinds"))
	w := httptest.NewRecorder()
	newTestServer(t, nil).Handler().ServeHTTP(w, r)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleRebuild_UnknownKind(t *testing.T) {
	w := do(t, newTestServer(t, nil), http.MethodPost, "/api/v1/indices/rebuild", map[string]any{"kinds": []string{"dessert"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleSearch(t *testing.T) {
	srv := newTestServer(t, nil)
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, "/api/v1/indices/rebuild", map[string]any{"kinds": []string{"recipe"}}).Code)

	// the mock embedder maps equal texts to equal vectors
	w := do(t, srv, http.MethodPost, "/api/v1/search", map[string]any{
		"kind":  "recipe",
		"query": usecase.RecipeText(domain.Recipe{Title: "Lentil Stew", Body: "Stew lentils."}),
		"k":     1,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var out struct {
		Results []searchResult `json:"results"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&out))
	require.Len(t, out.Results, 1)
	assert.Equal(t, int64(2), out.Results[0].ID)
	assert.Equal(t, "Lentil Stew", out.Results[0].Label)
	assert.InDelta(t, 1.0, out.Results[0].Score, 1e-6)
}

func TestHandleSearch_BadInput(t *testing.T) {
	srv := newTestServer(t, nil)

	tests := []struct {
		name string
		body any
	}{
		{"empty query", map[string]any{"query": " "}},
		{"unknown kind", map[string]any{"query": "soup", "kind": "dessert"}},
		{"not json", "soup"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, srv, http.MethodPost, "/api/v1/search", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestHandleGenerate(t *testing.T) {
	srv := newTestServer(t, &cannedGenerator{})
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, "/api/v1/indices/rebuild", nil).Code)

	w := do(t, srv, http.MethodPost, "/api/v1/recipes/generate", map[string]any{
		"query":     "something warm",
		"calories":  400,
		"allergens": []string{"peanuts"},
		"k_rec":     1,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var out usecase.PlanResult
	require.NoError(t, json.NewDecoder(w.Body).Decode(&out))
	assert.Equal(t, "Title: Weeknight Soup", out.GeneratedText)
	assert.Equal(t, "canned", out.Model)
	assert.NotEmpty(t, out.RetrievedIDs)
	assert.Empty(t, out.RetrievalError)
}

func TestHandleGenerate_Errors(t *testing.T) {
	w := do(t, newTestServer(t, &cannedGenerator{}), http.MethodPost, "/api/v1/recipes/generate", map[string]any{"query": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	failing := &cannedGenerator{err: domain.NewProviderError("generate", 0, 0, errors.New("503 unavailable"))}
	w = do(t, newTestServer(t, failing), http.MethodPost, "/api/v1/recipes/generate", map[string]any{"query": "soup"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestHandleContext(t *testing.T) {
	srv := newTestServer(t, nil)
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, "/api/v1/indices/rebuild", nil).Code)

	w := do(t, srv, http.MethodPost, "/api/v1/context", map[string]any{"query": "tomato soup", "k_rec": 2})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var out usecase.PlanResult
	require.NoError(t, json.NewDecoder(w.Body).Decode(&out))
	assert.ElementsMatch(t, []int64{1, 2}, out.RetrievedIDs)
	assert.Contains(t, out.Context, "Title: Tomato Soup")
	assert.Contains(t, out.Context, "\n---\n")
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrEmptyQuery, http.StatusBadRequest},
		{fmt.Errorf("parse: %w", domain.ErrUnknownKind), http.StatusBadRequest},
		{&domain.NotFoundError{Kind: domain.KindRecipe, ID: 3}, http.StatusNotFound},
		{domain.ErrRebuildInProgress, http.StatusConflict},
		{fmt.Errorf("%w (ingredient: model changed)", domain.ErrEmbeddingMismatch), http.StatusConflict},
		{fmt.Errorf("recipe search failed: %w", domain.NewProviderError("embed_query", 0, 0, errors.New("x"))), http.StatusBadGateway},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
