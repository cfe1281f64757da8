// internal/server/handlers/simulation.go

package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"wallace/internal/domain/geo"
	"wallace/internal/domain/keyword"
	"wallace/internal/domain/simulation"
)

// SimulationHandler handles simulation-related HTTP requests
type SimulationHandler struct {
	runner simulation.Runner
	logger *slog.Logger
}

// NewSimulationHandler creates a new simulation handler
func NewSimulationHandler(runner simulation.Runner, logger *slog.Logger) *SimulationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SimulationHandler{
		runner: runner,
		logger: logger,
	}
}

// startRequest is the body of a simulation start request
type startRequest struct {
	Seed           string `json:"seed"`
	GeoCode        string `json:"geo_code"`
	GeoDescription string `json:"geo_description"`
	TrendsStart    string `json:"trends_start"`
	TrendsEnd      string `json:"trends_end"`
	TimelineStart  string `json:"timeline_start"`
	TimelineEnd    string `json:"timeline_end"`
	MaxDepth       int    `json:"max_depth"`
}

// StartSimulation starts a simulation in the background
func (h *SimulationHandler) StartSimulation(w http.ResponseWriter, r *http.Request) {
	var body startRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if body.Seed == "" {
		h.respondWithError(w, http.StatusBadRequest, "Missing seed term", nil)
		return
	}

	scope, err := geo.NewScope(body.GeoCode, body.GeoDescription)
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	if body.MaxDepth < 0 {
		h.respondWithError(w, http.StatusBadRequest, "Invalid max depth", nil)
		return
	}

	id, err := h.runner.Start(r.Context(), simulation.Request{
		Seed:           body.Seed,
		Scope:          scope,
		TrendsWindow:   keyword.Window{Start: body.TrendsStart, End: body.TrendsEnd},
		TimelineWindow: keyword.Window{Start: body.TimelineStart, End: body.TimelineEnd},
		MaxDepth:       body.MaxDepth,
	})
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Failed to start simulation", err)
		return
	}

	respondWithJSON(w, http.StatusAccepted, map[string]string{"id": id, "status": string(simulation.StatusRunning)})
}

// ListSimulations returns the most recent runs
func (h *SimulationHandler) ListSimulations(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 20 // Default limit
	}

	runs, err := h.runner.ListRuns(r.Context(), limit)
	if err != nil {
		h.respondWithError(w, http.StatusInternalServerError, "Failed to list simulations", err)
		return
	}
	if runs == nil {
		runs = []simulation.Run{}
	}

	respondWithJSON(w, http.StatusOK, runs)
}

// GetSimulation returns a specific run by ID
func (h *SimulationHandler) GetSimulation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		h.respondWithError(w, http.StatusBadRequest, "Missing simulation ID", nil)
		return
	}

	run, err := h.runner.GetRun(r.Context(), id)
	if err != nil {
		if errors.Is(err, simulation.ErrNotFound) {
			h.respondWithError(w, http.StatusNotFound, "Simulation not found", nil)
		} else {
			h.respondWithError(w, http.StatusInternalServerError, "Failed to get simulation", err)
		}
		return
	}

	respondWithJSON(w, http.StatusOK, run)
}

// Helper for JSON responses
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Failed to marshal response"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// Helper for error responses
func (h *SimulationHandler) respondWithError(w http.ResponseWriter, code int, message string, err error) {
	if err != nil {
		if code >= 500 {
			h.logger.Error("HTTP error", "code", code, "message", message, "error", err)
		} else {
			message = message + ": " + err.Error()
		}
	}
	respondWithError(w, code, message)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	jsonResponse, _ := json.Marshal(map[string]string{"error": message})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(jsonResponse)
}
