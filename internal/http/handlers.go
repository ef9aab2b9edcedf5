package http

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/rmaloney/weather-proxy/internal/apperror"
	"github.com/rmaloney/weather-proxy/internal/lifecycle"
	"github.com/rmaloney/weather-proxy/internal/service"
	"github.com/rmaloney/weather-proxy/internal/validation"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	weatherService *service.WeatherService
	logger         *zap.Logger
	// cachePing, when set, is called by the health handler to check the
	// cache backend (SQLite ping or memcached ping).
	cachePing func() error
}

// NewHandler returns a new Handler.
func NewHandler(weatherService *service.WeatherService, logger *zap.Logger, cachePing func() error) *Handler {
	return &Handler{
		weatherService: weatherService,
		logger:         logger,
		cachePing:      cachePing,
	}
}

// GetCurrent handles GET /api/weather/current?city={city}.
func (h *Handler) GetCurrent(w http.ResponseWriter, r *http.Request) {
	city, ok := h.cityParam(w, r)
	if !ok {
		return
	}
	result, err := h.weatherService.GetCurrent(r.Context(), city)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GetForecast handles GET /api/weather/forecast?city={city}.
func (h *Handler) GetForecast(w http.ResponseWriter, r *http.Request) {
	city, ok := h.cityParam(w, r)
	if !ok {
		return
	}
	result, err := h.weatherService.GetForecast(r.Context(), city)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GetBundle handles GET /api/weather/bundle?city={city}. Current and
// forecast are fetched concurrently for the same city.
func (h *Handler) GetBundle(w http.ResponseWriter, r *http.Request) {
	city, ok := h.cityParam(w, r)
	if !ok {
		return
	}
	result, err := h.weatherService.GetBundle(r.Context(), city)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	if lifecycle.IsShuttingDown() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":    "shutting-down",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}

	status := "ok"
	statusCode := http.StatusOK
	checks := make(map[string]string)
	if h.cachePing != nil {
		if err := h.cachePing(); err == nil {
			checks["cache"] = "healthy"
		} else {
			checks["cache"] = "unhealthy"
			// Cache is fail-open, so a dead backend degrades but does not
			// take the service down.
			status = "degraded"
		}
	}
	writeJSON(w, statusCode, map[string]interface{}{
		"status":    status,
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// NotFound renders unknown routes in the standard error contract.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, apperror.Response{
		Error:      "Route " + r.Method + " " + r.URL.Path + " not found.",
		Code:       apperror.CodeNotFound,
		StatusCode: http.StatusNotFound,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	})
}

// cityParam extracts and validates the city query parameter, writing a
// 400 VALIDATION_ERROR response when it is rejected.
func (h *Handler) cityParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	city, err := validation.ValidateCity(r.URL.Query().Get("city"))
	if err != nil {
		aerr := apperror.Validation(err.Error())
		writeJSON(w, aerr.StatusCode, aerr.Response())
		return "", false
	}
	return city, true
}

// writeError renders any error in the error contract. Operational errors
// pass through with their own status and code and are logged at warn;
// anything else becomes a generic INTERNAL_ERROR logged at error level,
// with internals hidden from the client.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	logger := h.logger
	if l, ok := r.Context().Value("logger").(*zap.Logger); ok && l != nil {
		logger = l
	}

	aerr := apperror.From(err)
	if aerr.Code == apperror.CodeInternalError && aerr.Error() != err.Error() {
		logger.Error("unhandled server error",
			zap.Error(err),
			zap.String("path", r.URL.Path),
			zap.String("query", r.URL.RawQuery))
	} else {
		logger.Warn("request failed",
			zap.String("code", aerr.Code),
			zap.Int("statusCode", aerr.StatusCode),
			zap.String("path", r.URL.Path),
			zap.String("query", r.URL.RawQuery))
	}
	writeJSON(w, aerr.StatusCode, aerr.Response())
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
