package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"reciperag/internal/domain"
	"reciperag/internal/usecase"
)

type generateRequest struct {
	Query     string   `json:"query"`
	Calories  int      `json:"calories"`
	Diet      string   `json:"diet"`
	Allergens []string `json:"allergens"`
	KIng      int      `json:"k_ing"`
	KRec      int      `json:"k_rec"`
}

type contextRequest struct {
	Query string `json:"query"`
	KRec  int    `json:"k_rec"`
	KIng  int    `json:"k_ing"`
}

type searchRequest struct {
	Kind  string `json:"kind"`
	Query string `json:"query"`
	K     int    `json:"k"`
}

type searchResult struct {
	ID    int64   `json:"id"`
	Score float64 `json:"score"`
	Label string  `json:"label,omitempty"`
}

type rebuildRequest struct {
	Kinds []string `json:"kinds"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.logger.Debug("generate request", zap.String("query", req.Query), zap.Int("k_rec", req.KRec), zap.Int("k_ing", req.KIng))

	result, err := s.deps.Generate.Plan(r.Context(), usecase.PlanRequest{
		Query: req.Query,
		Constraints: domain.Constraints{
			Calories:  req.Calories,
			Diet:      req.Diet,
			Allergens: req.Allergens,
		},
		KRecipes:     req.KRec,
		KIngredients: req.KIng,
	})
	if err != nil {
		s.fail(w, "generation failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	var req contextRequest
	if !s.decode(w, r, &req) {
		return
	}

	result, err := s.deps.Generate.Ground(r.Context(), usecase.PlanRequest{
		Query:        req.Query,
		KRecipes:     req.KRec,
		KIngredients: req.KIng,
	})
	if err != nil {
		s.fail(w, "context assembly failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		s.respondError(w, http.StatusBadRequest, domain.ErrEmptyQuery.Error())
		return
	}

	kind := domain.KindRecipe
	if req.Kind != "" {
		var err error
		if kind, err = domain.ParseKind(req.Kind); err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	k := req.K
	if k <= 0 {
		k = s.retrieve.KRecipes
		if kind == domain.KindIngredient {
			k = s.retrieve.KIngredients
		}
	}

	hits, err := s.deps.Searcher.Search(r.Context(), kind, req.Query, k)
	if err != nil {
		s.fail(w, "search failed", err)
		return
	}

	labels, err := s.labels(r, kind, hits)
	if err != nil {
		s.logger.Warn("failed to label search hits", zap.Error(err))
	}
	results := make([]searchResult, len(hits))
	for i, hit := range hits {
		results[i] = searchResult{ID: hit.EntityID, Score: hit.Score, Label: labels[hit.EntityID]}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"kind": kind, "results": results})
}

// labels maps hit ids to recipe titles or ingredient names.
func (s *Server) labels(r *http.Request, kind domain.Kind, hits []domain.SearchHit) (map[int64]string, error) {
	out := make(map[int64]string, len(hits))
	if s.deps.Catalog == nil || len(hits) == 0 {
		return out, nil
	}
	ids := make([]int64, len(hits))
	for i, hit := range hits {
		ids[i] = hit.EntityID
	}

	switch kind {
	case domain.KindRecipe:
		recipes, err := s.deps.Catalog.RecipesByIDs(r.Context(), ids)
		if err != nil {
			return out, err
		}
		for _, rec := range recipes {
			out[rec.ID] = rec.Title
		}
	case domain.KindIngredient:
		ings, err := s.deps.Catalog.IngredientsByIDs(r.Context(), ids)
		if err != nil {
			return out, err
		}
		for _, ing := range ings {
			out[ing.ID] = ing.Name
		}
	}
	return out, nil
}

func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	// the body is optional; an empty one rebuilds every kind
	var req rebuildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	kinds := make([]domain.Kind, 0, len(req.Kinds))
	for _, raw := range req.Kinds {
		kind, err := domain.ParseKind(raw)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		kinds = append(kinds, kind)
	}

	results, err := s.deps.Index.RebuildAll(r.Context(), kinds, nil)
	if err != nil {
		if errors.Is(err, domain.ErrRebuildInProgress) {
			s.respondError(w, http.StatusConflict, err.Error())
			return
		}
		s.logger.Error("rebuild failed", zap.Error(err))
		s.respondJSON(w, http.StatusInternalServerError, map[string]any{
			"error":   err.Error(),
			"results": results,
		})
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.deps.Index.Stats(r.Context())
	if err != nil {
		s.fail(w, "stats failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"indices": stats})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// fail logs err and responds with the status its type maps to.
func (s *Server) fail(w http.ResponseWriter, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(msg, zap.Int("status", status), zap.Error(err))
	} else {
		s.logger.Debug(msg, zap.Int("status", status), zap.Error(err))
	}
	s.respondError(w, status, err.Error())
}

func statusFor(err error) int {
	var pe *domain.ProviderError
	switch {
	case errors.Is(err, domain.ErrEmptyQuery), errors.Is(err, domain.ErrUnknownKind):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrRebuildInProgress), errors.Is(err, domain.ErrEmbeddingMismatch):
		return http.StatusConflict
	case errors.As(err, &pe):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
