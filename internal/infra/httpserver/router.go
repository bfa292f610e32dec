package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	appreview "github.com/bryanwahyu/automaton-review/internal/application/review"
	domain "github.com/bryanwahyu/automaton-review/internal/domain/review"
	"github.com/bryanwahyu/automaton-review/internal/middleware"
)

// Analyzer runs one review. *appreview.Service satisfies it.
type Analyzer interface {
	Analyze(ctx context.Context, sub domain.Submission) (*domain.Result, error)
}

type Options struct {
	MaxUploadBytes int64
	AllowedOrigins []string
	// RateLimiter guards /api/analyze when non-nil.
	RateLimiter    *middleware.RateLimiter
	Readiness      map[string]middleware.HealthChecker
}

type Router struct {
	svc       Analyzer
	issues    appreview.Normalizer
	maxUpload int64
}

func NewRouter(svc Analyzer, opts Options) http.Handler {
	r := &Router{svc: svc, maxUpload: opts.MaxUploadBytes}
	if r.maxUpload <= 0 {
		r.maxUpload = 4718592
	}

	mux := chi.NewRouter()
	mux.Use(chimw.RequestID)
	mux.Use(chimw.RealIP)
	mux.Use(middleware.LoggingMiddleware)
	mux.Use(middleware.MetricsMiddleware)
	mux.Use(chimw.Recoverer)

	mux.Get("/health", middleware.LivenessHandler)
	mux.Get("/readyz", middleware.ReadinessHandler(opts.Readiness))
	mux.Get("/metrics", middleware.MetricsHandler)

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	mux.Route("/api", func(api chi.Router) {
		api.Use(cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type"},
			ExposedHeaders: []string{"Retry-After"},
			MaxAge:         300,
		}))
		if opts.RateLimiter != nil {
			api.Use(opts.RateLimiter.Middleware)
		}
		// every method lands here; non-POST gets 405 with Allow
		api.HandleFunc("/analyze", r.wrap(r.handleAnalyze))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}
		status := statusFor(err)
		if status == http.StatusMethodNotAllowed {
			w.Header().Set("Allow", http.MethodPost)
		}
		if status >= http.StatusInternalServerError {
			log.Printf("analyze error req_id=%s status=%d err=%v", chimw.GetReqID(req.Context()), status, err)
		}
		writeJSON(w, status, ErrorResponse{
			Error:  domain.UserMessage(err),
			Issues: r.issues.Error(err),
		})
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrMethodNotAllowed):
		return http.StatusMethodNotAllowed
	case errors.Is(err, domain.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case domain.IsClientError(err):
		return http.StatusBadRequest
	default:
		// archive and upstream failures, including quota, are 500
		return http.StatusInternalServerError
	}
}

// POST /api/analyze
// Body: {"code": "..."} or multipart/form-data with a codeFile part.
func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) error {
	if req.Method != http.MethodPost {
		return domain.ErrMethodNotAllowed
	}

	sub, err := r.readSubmission(w, req)
	if err != nil {
		return err
	}

	// the completion call runs to the end even if the caller goes away
	ctx := context.WithoutCancel(req.Context())
	res, err := r.svc.Analyze(ctx, sub)
	if err != nil {
		if domain.IsUpstreamError(err) {
			middleware.IncrementUpstreamFailures()
		}
		return err
	}

	middleware.RecordAnalysis(string(res.Source.Kind), res.Parsed)
	writeJSON(w, http.StatusOK, NewAnalyzeResponse(res))
	return nil
}

// AnalyzeResponse is the 200 body of /api/analyze. Analysis holds the parsed
// object when Parsed is true and the raw model text otherwise.
type AnalyzeResponse struct {
	Analysis any            `json:"analysis"`
	Parsed   bool           `json:"parsed"`
	Message  string         `json:"message"`
	Source   domain.Source  `json:"source"`
	Issues   []domain.Issue `json:"issues"`
}

// ErrorResponse is the body of a failed analysis.
type ErrorResponse struct {
	Error  string         `json:"error"`
	Issues []domain.Issue `json:"issues"`
}

func NewAnalyzeResponse(res *domain.Result) AnalyzeResponse {
	out := AnalyzeResponse{
		Parsed:  res.Parsed,
		Message: res.Message,
		Source:  res.Source,
		Issues:  res.Issues,
	}
	switch {
	case res.Parsed && len(res.Document) > 0:
		// the model's object as sent, extra fields included
		out.Analysis = res.Document
	case res.Parsed && res.Analysis != nil:
		out.Analysis = res.Analysis
	default:
		out.Analysis = res.Raw
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response error status=%d err=%v", status, err)
	}
}
