package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "ferroci/internal/errors"
	"ferroci/internal/middleware"
	"ferroci/internal/plot"
	"ferroci/internal/services"
)

// DefaultMaxUploadBytes caps a multipart upload when no limit is configured
const DefaultMaxUploadBytes int64 = 64 << 20

// DropRequest is the body of POST /api/drops
type DropRequest struct {
	Paths []string `json:"paths" validate:"required,min=1,max=500,dive,required,abspath"`
}

// AnalysisHandler exposes drops, uploads, results and plots over HTTP
type AnalysisHandler struct {
	service        AnalysisServiceInterface
	validator      *middleware.ValidationMiddleware
	maxUploadBytes int64
	logger         *slog.Logger
	errorHandler   *apierrors.ErrorHandler
}

// NewAnalysisHandler creates a new analysis handler
func NewAnalysisHandler(service AnalysisServiceInterface, maxUploadBytes int64, logger *slog.Logger) *AnalysisHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	errorHandler := apierrors.NewErrorHandler(logger, false)
	return &AnalysisHandler{
		service:        service,
		validator:      middleware.NewValidationMiddleware(logger, errorHandler),
		maxUploadBytes: maxUploadBytes,
		logger:         logger.With(slog.String("handler", "analysis")),
		errorHandler:   errorHandler,
	}
}

// Routes returns the analysis routes on their own router
func (h *AnalysisHandler) Routes() chi.Router {
	r := chi.NewRouter()
	h.Register(r)
	return r
}

// Register adds the analysis routes to r
func (h *AnalysisHandler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.With(h.validator.RequireContentType("application/json"), h.validator.ValidateRequest).
			Post("/drops", h.Drop)
		r.With(h.validator.RequireContentType("multipart/form-data")).
			Post("/uploads", h.Upload)
		r.Get("/sessions", h.ListSessions)
		r.Get("/session", h.GetSession)
		r.Get("/results", h.GetResults)
		r.Get("/metrics", h.ListMetrics)
	})

	r.Get("/plot.{format}", h.ServePlot)
}

// Drop handles POST /api/drops
func (h *AnalysisHandler) Drop(w http.ResponseWriter, r *http.Request) {
	var req DropRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "drop received",
		slog.Int("files", len(req.Paths)))

	report, err := h.service.Drop(r.Context(), req.Paths)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, report)
}

// Upload handles POST /api/uploads. The form carries the target
// directory in "dir" and one or more CSV files in "files".
func (h *AnalysisHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.errorHandler.HandleError(w, r, apierrors.New(http.StatusRequestEntityTooLarge,
				"UPLOAD_TOO_LARGE", "Upload exceeds the configured size limit"))
			return
		}
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	dir := r.FormValue("dir")
	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("files", "at least one file is required"))
		return
	}

	uploads := make([]services.UploadedFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
			return
		}
		defer f.Close()
		uploads = append(uploads, services.UploadedFile{Name: fh.Filename, Content: f})
	}

	report, err := h.service.Upload(r.Context(), dir, uploads)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, report)
}

// ListSessions handles GET /api/sessions
func (h *AnalysisHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.service.Sessions())
}

// GetSession handles GET /api/session?dir=
func (h *AnalysisHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	info, err := h.service.Session(r.Context(), r.URL.Query().Get("dir"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, info)
}

// GetResults handles GET /api/results?dir=
func (h *AnalysisHandler) GetResults(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Results(r.Context(), r.URL.Query().Get("dir"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, view)
}

// ListMetrics handles GET /api/metrics
func (h *AnalysisHandler) ListMetrics(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.service.Metrics())
}

// ServePlot handles GET /api/plot.png and /api/plot.svg. The plot is
// rendered into a buffer first so a failed render still gets a problem
// response instead of a truncated image.
func (h *AnalysisHandler) ServePlot(w http.ResponseWriter, r *http.Request) {
	format, err := plot.ParseFormat(chi.URLParam(r, "format"))
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.NotFoundError("plot format"))
		return
	}

	var buf bytes.Buffer
	if err := h.service.Plot(r.Context(), r.URL.Query().Get("dir"), format, &buf); err != nil {
		if errors.Is(err, plot.ErrNothingToPlot) {
			h.errorHandler.HandleError(w, r, apierrors.NotFoundError("plot"))
			return
		}
		h.errorHandler.HandleError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.WarnContext(r.Context(), "failed to write plot",
			slog.String("error", err.Error()))
	}
}
