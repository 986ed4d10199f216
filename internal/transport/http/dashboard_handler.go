package http

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "udisecli/internal/errors"
	"udisecli/internal/middleware"
	"udisecli/internal/services"
	apiv1 "udisecli/pkg/contracts/api/v1"
)

// DashboardHandler handles dataset, filter, query and export HTTP requests
// with RFC 7807 compliance
type DashboardHandler struct {
	service      DashboardServiceInterface
	validation   *middleware.ValidationMiddleware
	params       *middleware.QueryParamValidator
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewDashboardHandler creates a new dashboard handler with RFC 7807 error
// handling
func NewDashboardHandler(service DashboardServiceInterface, validation *middleware.ValidationMiddleware, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *DashboardHandler {
	return &DashboardHandler{
		service:      service,
		validation:   validation,
		params:       middleware.NewQueryParamValidator(logger, errorHandler),
		logger:       logger.With(slog.String("component", "dashboard_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the dashboard routes, mounted by the application under /api
func (h *DashboardHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Route("/dataset", func(r chi.Router) {
		r.Get("/", h.GetDataset)
		r.Post("/reload", middleware.DatasetTraceHandler("reload", h.ReloadDataset))
		r.Get("/sources", h.GetSources)
	})
	r.Get("/filters", h.GetFilters)

	// Body-carrying routes go through JSON validation first
	r.Group(func(r chi.Router) {
		r.Use(middleware.ContentTypeValidator("application/json"))
		r.Use(h.validation.ValidateRequest)
		r.Post("/query", h.Query)
		r.Post("/export", middleware.DatasetTraceHandler("export", h.Export))
	})

	return r
}

// GetDataset handles GET /api/dataset
func (h *DashboardHandler) GetDataset(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summary(r.Context())
	if err != nil {
		h.handleDatasetError(w, r, err, "fetch dataset summary")
		return
	}
	render.JSON(w, r, summary)
}

// ReloadDataset handles POST /api/dataset/reload. The fingerprint cache is
// bypassed when ?force=1 is given.
func (h *DashboardHandler) ReloadDataset(w http.ResponseWriter, r *http.Request) {
	force, ok := h.params.ValidateBool(w, r, "force", false)
	if !ok {
		return
	}

	reqID := middleware.GetRequestID(r.Context())
	h.logger.InfoContext(r.Context(), "reloading dataset",
		slog.String("request_id", reqID),
		slog.Bool("force", force),
	)

	summary, err := h.service.Reload(r.Context(), force)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "dataset reload failed",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
		)

		if errors.Is(err, services.ErrReloadInProgress) {
			h.errorHandler.HandleError(w, r, apierrors.ErrReloadInProgress)
			return
		}
		h.handleSourceError(w, r, err)
		return
	}

	render.JSON(w, r, summary)
}

// GetSources handles GET /api/dataset/sources. It works before the first
// load so clients can inspect what a reload would read.
func (h *DashboardHandler) GetSources(w http.ResponseWriter, r *http.Request) {
	sources, err := h.service.Sources(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to describe sources",
			slog.String("error", err.Error()),
			slog.String("request_id", middleware.GetRequestID(r.Context())),
		)
		h.handleSourceError(w, r, err)
		return
	}
	render.JSON(w, r, sources)
}

// GetFilters handles GET /api/filters
func (h *DashboardHandler) GetFilters(w http.ResponseWriter, r *http.Request) {
	catalog, err := h.service.Catalog(r.Context())
	if err != nil {
		h.handleDatasetError(w, r, err, "fetch filter catalog")
		return
	}
	render.JSON(w, r, catalog)
}

// Query handles POST /api/query
func (h *DashboardHandler) Query(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())

	var req apiv1.QueryRequest
	if err := decodeJSON(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	if err := h.validation.ValidateStruct(&req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	result, err := h.service.Query(r.Context(), &req)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "query failed",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
		)

		var ferr *services.FilterStateError
		if errors.As(err, &ferr) {
			h.errorHandler.HandleError(w, r, apierrors.NewValidationErrors(filterStateDetails(ferr)))
			return
		}
		h.handleDatasetError(w, r, err, "execute query")
		return
	}

	render.JSON(w, r, result)
}

// Export handles POST /api/export. The filtered view is streamed as a CSV
// attachment; validation failures are rendered as problems because nothing
// has been written by then.
func (h *DashboardHandler) Export(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())

	var req apiv1.ExportRequest
	if err := decodeJSON(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	if err := h.validation.ValidateStruct(&req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	filename := h.service.ExportFilename(req.Filename)
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	rows, err := h.service.Export(r.Context(), req.Filters, w)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "export failed",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
			slog.String("filename", filename),
		)

		// Failures after streaming began cannot be turned into a problem
		// response anymore.
		if isResponseWritten(w) {
			return
		}
		w.Header().Del("Content-Disposition")

		var ferr *services.FilterStateError
		if errors.As(err, &ferr) {
			h.errorHandler.HandleError(w, r, apierrors.NewValidationErrors(filterStateDetails(ferr)))
			return
		}
		if errors.Is(err, services.ErrDatasetNotLoaded) {
			h.errorHandler.HandleError(w, r, apierrors.ErrDatasetNotLoaded)
			return
		}
		h.errorHandler.HandleError(w, r, apierrors.ErrExportWrite(err))
		return
	}

	h.logger.InfoContext(r.Context(), "export streamed",
		slog.String("request_id", reqID),
		slog.String("filename", filename),
		slog.Int("rows", rows),
	)
}

// handleDatasetError maps snapshot-dependent failures
func (h *DashboardHandler) handleDatasetError(w http.ResponseWriter, r *http.Request, err error, op string) {
	h.logger.ErrorContext(r.Context(), "failed to "+op,
		slog.String("error", err.Error()),
		slog.String("request_id", middleware.GetRequestID(r.Context())),
	)

	if errors.Is(err, services.ErrDatasetNotLoaded) {
		h.errorHandler.HandleError(w, r, apierrors.ErrDatasetNotLoaded)
		return
	}
	h.errorHandler.HandleError(w, r, err)
}

// handleSourceError maps source resolution failures; join violations fall
// through to the central handler's 422 mapping.
func (h *DashboardHandler) handleSourceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrNoSources):
		h.errorHandler.HandleError(w, r, apierrors.NewWithDetails(
			http.StatusNotFound,
			"SOURCE_NOT_FOUND",
			"No source files configured or discovered",
			err.Error(),
		))
	case errors.Is(err, services.ErrMissingSource):
		h.errorHandler.HandleError(w, r, apierrors.NewWithDetails(
			http.StatusNotFound,
			"SOURCE_NOT_FOUND",
			"Data source file not found",
			err.Error(),
		))
	default:
		h.errorHandler.HandleError(w, r, err)
	}
}

// decodeJSON decodes an optional JSON body. An absent body is the empty
// request, not an error.
func decodeJSON(r *http.Request, v interface{}) error {
	err := render.DecodeJSON(r.Body, v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// filterStateDetails flattens per-column predicate failures into field
// errors, ordered by column for stable responses.
func filterStateDetails(ferr *services.FilterStateError) []apierrors.ValidationError {
	fields := make([]string, 0, len(ferr.Fields))
	for field := range ferr.Fields {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	details := make([]apierrors.ValidationError, len(fields))
	for i, field := range fields {
		details[i] = apierrors.ValidationError{Field: field, Message: ferr.Fields[field]}
	}
	return details
}

// isResponseWritten reports whether the handler already committed a status
// code, in which case no problem document can be rendered.
func isResponseWritten(w http.ResponseWriter) bool {
	if ww, ok := w.(interface{ Status() int }); ok {
		return ww.Status() != 0
	}
	return false
}
