package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-logr/logr"

	"github.com/solaradvisor/solaradvisor/internal/metrics"
	"github.com/solaradvisor/solaradvisor/internal/report"
	"github.com/solaradvisor/solaradvisor/internal/store"
	"github.com/solaradvisor/solaradvisor/pkg/recommend"
)

// Recommender produces recommendations.
type Recommender interface {
	Recommend(ctx context.Context, q recommend.Query) (*recommend.Recommendation, error)
}

// HistoryStore persists and reads back recommendations.
type HistoryStore interface {
	Save(rec *recommend.Recommendation) string
	Get(ctx context.Context, id string) (*recommend.Recommendation, error)
	List(ctx context.Context, limit int) ([]*recommend.Recommendation, error)
}

type RecommendationHandler struct {
	recommender Recommender
	history     HistoryStore
	renderer    *report.Renderer
	timeout     time.Duration
	log         logr.Logger
}

func NewRecommendationHandler(rec Recommender, history HistoryStore, renderer *report.Renderer, timeout time.Duration, log logr.Logger) *RecommendationHandler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RecommendationHandler{
		recommender: rec,
		history:     history,
		renderer:    renderer,
		timeout:     timeout,
		log:         log.WithName("recommendations"),
	}
}

// Create handles POST /recommend and POST /api/v1/recommend.
func (h *RecommendationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var q recommend.Query
	if err := decodeJSON(w, r, &q); err != nil {
		metrics.RecommendationFailures.WithLabelValues(recommend.CodeInvalidInput).Inc()
		writeError(w, http.StatusBadRequest, recommend.CodeInvalidInput, "request body must be a JSON object")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	rec, err := h.recommender.Recommend(ctx, q)
	if err != nil {
		re := recommend.AsError(err)
		metrics.RecommendationFailures.WithLabelValues(re.Code).Inc()
		if re.Status >= http.StatusInternalServerError {
			h.log.Error(err, "Recommendation failed", "location", q.Location, "code", re.Code)
		} else {
			h.log.V(1).Info("Recommendation rejected", "location", q.Location, "code", re.Code, "reason", err.Error())
		}
		writeRecommendError(w, err)
		return
	}

	metrics.RecommendationsTotal.WithLabelValues(string(rec.Kind)).Inc()
	if rec.Sizing != nil {
		metrics.RecommendedSystemKW.Observe(rec.Sizing.System.SystemKW)
	}
	if h.history != nil {
		h.history.Save(rec)
	}
	writeJSON(w, http.StatusOK, rec)
}

// List handles GET /api/v1/recommendations?limit=N.
func (h *RecommendationHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeJSON(w, http.StatusOK, []*recommend.Recommendation{})
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, recommend.CodeInvalidInput, "limit must be a positive integer")
			return
		}
		limit = n
	}

	recs, err := h.history.List(r.Context(), limit)
	if err != nil {
		h.log.Error(err, "Listing recommendations failed")
		writeError(w, http.StatusInternalServerError, recommend.CodeInternal, "could not list recommendations")
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

// Get handles GET /api/v1/recommendations/{id}.
func (h *RecommendationHandler) Get(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// Report handles GET /api/v1/recommendations/{id}/report. The default is
// an HTML page; ?format=markdown returns the Markdown source.
func (h *RecommendationHandler) Report(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.lookup(w, r)
	if !ok {
		return
	}

	if r.URL.Query().Get("format") == "markdown" {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(h.renderer.Markdown(rec)))
		return
	}

	page, err := h.renderer.HTML(rec)
	if err != nil {
		h.log.Error(err, "Rendering report failed", "id", rec.ID)
		writeError(w, http.StatusInternalServerError, recommend.CodeInternal, "could not render report")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(page))
}

func (h *RecommendationHandler) lookup(w http.ResponseWriter, r *http.Request) (*recommend.Recommendation, bool) {
	id := chi.URLParam(r, "id")
	if h.history == nil {
		writeError(w, http.StatusNotFound, codeNotFound, "recommendation not found")
		return nil, false
	}
	rec, err := h.history.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, codeNotFound, "recommendation not found")
		return nil, false
	}
	if err != nil {
		h.log.Error(err, "Loading recommendation failed", "id", id)
		writeError(w, http.StatusInternalServerError, recommend.CodeInternal, "could not load recommendation")
		return nil, false
	}
	return rec, true
}
