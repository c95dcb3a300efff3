package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mdpress/mdpress"
	"github.com/mdpress/mdpress/internal/config"
)

// maxBodyBytes bounds the request body before the core's own input
// ceiling applies.
const maxBodyBytes = 4 << 20

// errorResponse is the JSON error envelope.
type errorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	Retryable bool   `json:"retryable"`
}

// newRouter wires the conversion endpoint. The routing layer stays
// thin: it translates HTTP to a Request and an Outcome back to HTTP.
func newRouter(svc *mdpress.Service, cfg *config.Config, logger *log.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/templates", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(svc.Templates())
	})

	r.Post("/convert", convertHandler(svc, cfg, logger))

	return r
}

// convertHandler translates POST /convert into a core conversion.
// Body is the raw markdown; options arrive as query parameters.
func convertHandler(svc *mdpress.Service, cfg *config.Config, logger *log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
		if err != nil {
			writeError(w, http.StatusBadRequest, "reading request body", mdpress.ErrorKindInvalidInput)
			return
		}
		if len(body) > maxBodyBytes {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large", mdpress.ErrorKindInvalidInput)
			return
		}

		req := mdpress.Request{
			Markdown:     string(body),
			Template:     r.URL.Query().Get("template"),
			HeaderFooter: cfg.HeaderFooter || r.URL.Query().Get("headerFooter") == "1",
		}
		if req.Template == "" {
			req.Template = cfg.Template
		}
		if page := pageFromQuery(r); page != nil {
			req.Page = page
		}
		if ms, err := strconv.Atoi(r.URL.Query().Get("deadlineMs")); err == nil && ms > 0 {
			req.Deadline = time.Duration(ms) * time.Millisecond
		}

		outcome, err := svc.Convert(r.Context(), req)
		if err != nil {
			var failure *mdpress.Failure
			if errors.As(err, &failure) {
				logger.Warn("conversion failed", "kind", failure.Kind, "retryable", failure.Retryable(), "request_id", middleware.GetReqID(r.Context()))
				writeFailure(w, failure)
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error(), mdpress.ErrorKindEngineRender)
			return
		}

		if outcome.ParseDegraded {
			w.Header().Set("X-Parse-Degraded", "1")
		}
		w.Header().Set("Content-Type", outcome.ContentType)
		w.Header().Set("X-Render-Engine", outcome.Engine.String())
		w.Header().Set("Content-Length", strconv.Itoa(len(outcome.PDF)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(outcome.PDF)
	}
}

// pageFromQuery builds page settings from query parameters, nil when
// none are present.
func pageFromQuery(r *http.Request) *mdpress.PageSettings {
	q := r.URL.Query()
	size := q.Get("pageSize")
	orientation := q.Get("orientation")
	marginStr := q.Get("margin")
	if size == "" && orientation == "" && marginStr == "" {
		return nil
	}

	page := &mdpress.PageSettings{
		Size:        size,
		Orientation: orientation,
		Margin:      mdpress.DefaultMargin,
	}
	if page.Size == "" {
		page.Size = mdpress.PageSizeLetter
	}
	if page.Orientation == "" {
		page.Orientation = mdpress.OrientationPortrait
	}
	if m, err := strconv.ParseFloat(marginStr, 64); err == nil {
		page.Margin = m
	}
	return page
}

// writeFailure maps an ErrorKind onto a transport status. Caller
// errors map to 4xx, service errors to 5xx.
func writeFailure(w http.ResponseWriter, f *mdpress.Failure) {
	status := http.StatusBadGateway
	switch f.Kind {
	case mdpress.ErrorKindInvalidInput, mdpress.ErrorKindUnknownTemplate:
		status = http.StatusBadRequest
	case mdpress.ErrorKindResourceExhausted:
		status = http.StatusServiceUnavailable
	case mdpress.ErrorKindDeadlineExceeded, mdpress.ErrorKindEngineTimeout:
		status = http.StatusGatewayTimeout
	case mdpress.ErrorKindRemoteQuota:
		status = http.StatusBadGateway
	}
	writeErrorEnvelope(w, status, errorResponse{
		Error:     f.Message,
		Kind:      f.Kind.String(),
		Retryable: f.Retryable(),
	})
}

func writeError(w http.ResponseWriter, status int, msg string, kind mdpress.ErrorKind) {
	writeErrorEnvelope(w, status, errorResponse{Error: msg, Kind: kind.String(), Retryable: kind.Retryable()})
}

func writeErrorEnvelope(w http.ResponseWriter, status int, resp errorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
