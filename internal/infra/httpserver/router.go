package httpserver

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	appinspections "github.com/bryanwahyu/saqr/internal/application/inspections"
	"github.com/bryanwahyu/saqr/internal/domain/inspection"
	"github.com/bryanwahyu/saqr/internal/middleware"
)

// Options configures the outer surface of the router.
type Options struct {
	APIKeys        map[string]string
	RateLimiter    *middleware.RateLimiter
	CORSOrigins    []string
	MaxBodyBytes   int64
	HealthCheckers map[string]middleware.HealthChecker
	Providers      []string
}

type Router struct {
	svc          *appinspections.Service
	maxBodyBytes int64
}

func NewRouter(svc *appinspections.Service, opts Options) http.Handler {
	r := &Router{svc: svc, maxBodyBytes: opts.MaxBodyBytes}
	if r.maxBodyBytes <= 0 {
		r.maxBodyBytes = 25 << 20
	}

	mux := chi.NewRouter()
	mux.Use(chimw.RequestID, chimw.Recoverer, middleware.LoggingMiddleware, middleware.MetricsMiddleware)
	if len(opts.CORSOrigins) > 0 {
		mux.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			MaxAge:         300,
		}))
	}

	mux.Get("/health", middleware.HealthHandler(opts.HealthCheckers, opts.Providers))
	mux.Get("/ready", middleware.ReadinessHandler)
	mux.Get("/live", middleware.LivenessHandler)
	mux.Handle("/metrics", middleware.MetricsHandler())

	mux.Route("/v1/{tenant}", func(rt chi.Router) {
		rt.Use(middleware.APIKeyAuth(opts.APIKeys), middleware.RequireValidTenant)
		if opts.RateLimiter != nil {
			rt.Use(middleware.RateLimitMiddleware(opts.RateLimiter))
		}
		rt.Post("/inspections/analyze", r.wrap(r.handleAnalyze))
		rt.Get("/inspections/analyses", r.wrap(r.handleList))
		rt.Get("/inspections/analyses/{id}", r.wrap(r.handleGet))
		rt.Post("/inspections/score", r.wrap(r.handleScore))
		rt.Post("/zones/assign", r.wrap(r.handleAssignZones))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// badRequest marks client errors that are not domain validation failures.
type badRequest struct{ err error }

func (b badRequest) Error() string { return b.err.Error() }
func (b badRequest) Unwrap() error { return b.err }

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}
		var tooLarge *http.MaxBytesError
		var bad badRequest
		switch {
		case errors.As(err, &tooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
		case errors.As(err, &bad), errors.Is(err, inspection.ErrInvalidRequest):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, inspection.ErrNotFound), errors.Is(err, sql.ErrNoRows):
			writeError(w, http.StatusNotFound, "not found")
		default:
			log.Error().Err(err).Str("path", req.URL.Path).Msg("request failed")
			writeError(w, http.StatusInternalServerError, "internal error")
		}
	}
}

func (r *Router) decode(w http.ResponseWriter, req *http.Request, v any) error {
	req.Body = http.MaxBytesReader(w, req.Body, r.maxBodyBytes)
	dec := json.NewDecoder(req.Body)
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return badRequest{fmt.Errorf("invalid JSON body: %w", err)}
	}
	if err := middleware.Validate(v); err != nil {
		return fmt.Errorf("%w: %v", inspection.ErrInvalidRequest, err)
	}
	return nil
}

// POST /v1/{tenant}/inspections/analyze
// Body: analyzeBody. Always 200 with an envelope unless the request is invalid.
func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	var body analyzeBody
	if err := r.decode(w, req, &body); err != nil {
		return err
	}

	env, err := r.svc.Analyze(req.Context(), appinspections.AnalyzeCommand{
		TenantID: tenant,
		Request:  body.toRequest(),
	})
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, env)
}

// GET /v1/{tenant}/inspections/analyses?page=&page_size=
func (r *Router) handleList(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	page, _ := strconv.Atoi(req.URL.Query().Get("page"))
	size, _ := strconv.Atoi(req.URL.Query().Get("page_size"))

	list, err := r.svc.ListAnalyses(req.Context(), tenant, middleware.ValidatePage(page), middleware.ValidateLimit(size))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, list)
}

// GET /v1/{tenant}/inspections/analyses/{id}
func (r *Router) handleGet(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	id := chi.URLParam(req, "id")

	a, err := r.svc.GetAnalysis(req.Context(), tenant, inspection.AnalysisID(id))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, a)
}

// POST /v1/{tenant}/inspections/score
func (r *Router) handleScore(w http.ResponseWriter, req *http.Request) error {
	var body scoreBody
	if err := r.decode(w, req, &body); err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, r.svc.Score(toSpecs(body.Specs), body.Results))
}

// POST /v1/{tenant}/zones/assign
func (r *Router) handleAssignZones(w http.ResponseWriter, req *http.Request) error {
	var body zonesBody
	if err := r.decode(w, req, &body); err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]any{
		"assignments": r.svc.AssignZones(toSpecs(body.Specs)),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	_ = writeJSON(w, status, map[string]string{"error": msg})
}
