package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/user/missoula-scraper/internal/delivery/http/request"
	"github.com/user/missoula-scraper/internal/delivery/http/response"
	"github.com/user/missoula-scraper/internal/repository"
	"github.com/user/missoula-scraper/internal/usecase"
	"github.com/user/missoula-scraper/pkg/utils"
	"go.uber.org/zap"
)

const healthCheckTimeout = 2 * time.Second

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

type Handler struct {
	events   usecase.EventService
	checks   map[string]HealthCheck
	location *time.Location
	logger   *zap.Logger
}

// NewHandler creates the API handler. Plain dates in requests are read in loc.
func NewHandler(events usecase.EventService, checks map[string]HealthCheck, loc *time.Location, logger *zap.Logger) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{
		events:   events,
		checks:   checks,
		location: loc,
		logger:   logger,
	}
}

func (h *Handler) HandleScrape(w http.ResponseWriter, r *http.Request) {
	var req request.ScrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	from, to, err := h.parseWindow(req.From, req.To)
	if err != nil {
		h.writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := h.events.Gather(r.Context(), from, to, usecase.ScrapeOptions{CollectDurations: req.Durations})
	if err != nil {
		h.writeServiceError(w, "Scrape failed", err)
		return
	}

	h.writeJSON(w, http.StatusOK, response.NewScrapeResponse(res.RunID, res.Events, res.Failed, res.Durations))
}

func (h *Handler) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, to, err := h.parseWindow(q.Get("from"), q.Get("to"))
	if err != nil {
		h.writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	events, err := h.events.List(r.Context(), from, to)
	if err != nil {
		h.writeServiceError(w, "Could not list events", err)
		return
	}

	h.writeJSON(w, http.StatusOK, response.EventsResponse{Count: len(events), Events: events})
}

func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	run := h.events.LastRun()
	if run == nil {
		h.writeJSONError(w, "No scrape has run yet", http.StatusNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, response.NewRunStatusResponse(run))
}

func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	status := http.StatusOK
	health := map[string]string{"status": "ok"}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.logger.Error("health check failed", zap.String("dependency", name), zap.Error(err))
			health[name] = "unhealthy"
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		health[name] = "healthy"
	}

	h.writeJSON(w, status, health)
}

// parseWindow reads the from/to bounds, both of which are required.
func (h *Handler) parseWindow(fromStr, toStr string) (time.Time, time.Time, error) {
	if fromStr == "" || toStr == "" {
		return time.Time{}, time.Time{}, errors.New("from and to are required")
	}
	from, err := utils.ParseBound(fromStr, h.location, false)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := utils.ParseBound(toStr, h.location, true)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, errors.New("to must not be before from")
	}
	return from, to, nil
}

func (h *Handler) writeServiceError(w http.ResponseWriter, message string, err error) {
	switch {
	case errors.Is(err, usecase.ErrInvalidWindow):
		h.writeJSONError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, usecase.ErrScrapeInProgress):
		h.writeJSONError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, usecase.ErrStorageDisabled):
		h.writeJSONError(w, err.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, usecase.ErrListViewNotFound),
		errors.Is(err, usecase.ErrTooManyEvents),
		errors.Is(err, repository.ErrNavigationFailed):
		h.logger.Error(message, zap.Error(err))
		h.writeJSONError(w, err.Error(), http.StatusBadGateway)
	default:
		h.logger.Error(message, zap.Error(err))
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write JSON response", zap.Error(err))
	}
}

func (h *Handler) writeJSONError(w http.ResponseWriter, message string, status int) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
