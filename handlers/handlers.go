package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/cyl19970726/Code3/core/bounty"
	"github.com/cyl19970726/Code3/models"
	"github.com/cyl19970726/Code3/services"
)

// maxRequestBody caps JSON bodies on unsigned routes.
const maxRequestBody = 1 << 20

// BaseHandler provides common functionality for all handlers
type BaseHandler struct {
	logger *slog.Logger
}

// NewBaseHandler creates a new base handler
func NewBaseHandler(logger *slog.Logger) *BaseHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &BaseHandler{logger: logger}
}

// sendJSON sends a JSON response
func (h *BaseHandler) sendJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			h.logger.Warn("failed to encode response", "error", err)
		}
	}
}

// sendError maps err onto the error envelope.
func (h *BaseHandler) sendError(w http.ResponseWriter, err error) {
	status, code := services.StatusForError(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "code", string(code), "error", err)
	}
	h.sendJSON(w, status, models.NewErrorResponseWithHint(string(code), err.Error(), status, services.Hint(code)))
}

// sendSuccess sends a success response
func (h *BaseHandler) sendSuccess(w http.ResponseWriter, data interface{}) {
	h.sendJSON(w, http.StatusOK, models.NewSuccessResponse(data))
}

// parseJSON parses a JSON request body into v. An empty body leaves v untouched.
func (h *BaseHandler) parseJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return services.Invalid("body", err)
	}
	return nil
}

// bountyID reads the {id} path parameter.
func bountyID(r *http.Request) (uint64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, services.Invalid("id", fmt.Errorf("bounty id %q is not an unsigned integer", raw))
	}
	return id, nil
}

func parseAddress(field, raw string) (bounty.Address, error) {
	a, err := bounty.ParseAddress(raw)
	if err != nil {
		return bounty.Address{}, services.Invalid(field, err)
	}
	return a, nil
}

func parseAmount(field, raw string) (uint64, error) {
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, services.Invalid(field, fmt.Errorf("%q is not an unsigned 64-bit integer", raw))
	}
	return n, nil
}

// queryInt reads a non-negative integer query parameter, def when absent.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, services.Invalid(name, fmt.Errorf("%q is not a non-negative integer", raw))
	}
	return n, nil
}

func queryUint(r *http.Request, name string) (uint64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, services.Invalid(name, fmt.Errorf("%q is not an unsigned integer", raw))
	}
	return n, nil
}

// HealthHandler handles health check requests
type HealthHandler struct {
	*BaseHandler
	healthService *services.HealthService
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(healthService *services.HealthService, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		BaseHandler:   NewBaseHandler(logger),
		healthService: healthService,
	}
}

// HandleHealth handles health check requests
// @Summary Liveness probe
// @Tags Health
// @Produce json
// @Success 200 {object} models.HealthResponse
// @Router /healthz [get]
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.sendSuccess(w, h.healthService.GetHealthStatus())
}
