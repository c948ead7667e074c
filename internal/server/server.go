// Package server exposes extraction over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/jmylchreest/govextract/internal/logger"
	"github.com/jmylchreest/govextract/pkg/extractor"
	"github.com/jmylchreest/govextract/pkg/govextract"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Extractor is the extraction backend served over HTTP.
// *govextract.Service implements it.
type Extractor interface {
	Extract(ctx context.Context, kind govextract.Kind, inputText string) (*govextract.Result, error)
	Ping(ctx context.Context) error
}

type extractRequest struct {
	InputText string `json:"input_text" validate:"required"`
}

type errorResponse struct {
	Error    string `json:"error"`
	Message  string `json:"message"`
	Attempts int    `json:"attempts,omitempty"`
}

var validate = validator.New()

// NewHandler returns the HTTP API:
//
//	POST /extract_cost/
//	POST /extract_organisation/
//	POST /extract/{kind}
//	GET  /healthz
//	GET  /readyz
func NewHandler(ext Extractor) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(CORS)

	for path, kind := range map[string]govextract.Kind{
		"/extract_cost":         govextract.KindCost,
		"/extract_organisation": govextract.KindOrganisation,
	} {
		h := handleExtract(ext, kind)
		r.Post(path, h)
		r.Post(path+"/", h)
	}
	r.Post("/extract/{kind}", func(w http.ResponseWriter, r *http.Request) {
		kind, err := govextract.ParseKind(chi.URLParam(r, "kind"))
		if err != nil {
			writeError(w, http.StatusNotFound, errorResponse{Error: "UnknownKind", Message: err.Error()})
			return
		}
		handleExtract(ext, kind)(w, r)
	})

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", handleReady(ext))

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleReady(ext Extractor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := ext.Ping(ctx); err != nil {
			writeError(w, http.StatusServiceUnavailable, errorResponse{
				Error:   string(extractor.KindBackendUnavailable),
				Message: err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func handleExtract(ext Extractor, kind govextract.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req extractRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, errorResponse{
				Error:   "InvalidRequest",
				Message: fmt.Sprintf("invalid request body: %v", err),
			})
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, http.StatusBadRequest, errorResponse{
				Error:   "InvalidRequest",
				Message: "input_text is required and must not be empty",
			})
			return
		}

		result, err := ext.Extract(r.Context(), kind, req.InputText)
		if err != nil {
			status, body := mapError(err)
			logger.WarnContext(r.Context(), "extraction failed",
				"kind", kind,
				"status", status,
				"error", err)
			writeError(w, status, body)
			return
		}

		out := make(map[string]any, len(result.Fields)+1)
		for k, v := range result.Fields {
			out[k] = v
		}
		out["input_text"] = result.InputText
		writeJSON(w, http.StatusOK, out)
	}
}

// mapError converts an extraction failure to a status code and error body.
func mapError(err error) (int, errorResponse) {
	var xerr *extractor.Error
	if !errors.As(err, &xerr) {
		if errors.Is(err, govextract.ErrEmptyInput) {
			return http.StatusBadRequest, errorResponse{Error: "InvalidRequest", Message: err.Error()}
		}
		return http.StatusInternalServerError, errorResponse{Error: "InternalError", Message: err.Error()}
	}

	body := errorResponse{Error: string(xerr.Kind), Message: xerr.Error(), Attempts: xerr.Attempts}
	switch xerr.Kind {
	case extractor.KindBackendUnavailable:
		return http.StatusBadGateway, body
	case extractor.KindBackendTimeout:
		return http.StatusGatewayTimeout, body
	case extractor.KindSchemaParse, extractor.KindValidation:
		return http.StatusUnprocessableEntity, body
	default:
		return http.StatusInternalServerError, body
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, body errorResponse) {
	writeJSON(w, status, body)
}

// Server runs the HTTP API until its context is cancelled.
type Server struct {
	srv             *http.Server
	shutdownTimeout time.Duration
}

// New creates a Server listening on addr.
func New(addr string, ext Extractor) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           NewHandler(ext),
			ReadHeaderTimeout: 10 * time.Second,
		},
		shutdownTimeout: 10 * time.Second,
	}
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	return s.srv.Shutdown(shutdownCtx)
}
