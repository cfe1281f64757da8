// internal/server/handlers/geo.go

package handlers

import (
	"net/http"

	"wallace/internal/domain/geo"
)

// GeoHandler handles geographic scope requests
type GeoHandler struct{}

// NewGeoHandler creates a new geo handler
func NewGeoHandler() *GeoHandler {
	return &GeoHandler{}
}

type classifyResponse struct {
	Code      string          `json:"code"`
	Level     geo.Level       `json:"level"`
	Discovery geo.Restriction `json:"discovery"`
	Timeline  geo.Restriction `json:"timeline"`
}

// Classify returns the level and query restrictions for a geo code
func (h *GeoHandler) Classify(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		respondWithError(w, http.StatusBadRequest, "Missing geo code")
		return
	}

	scope, err := geo.NewScope(code, "")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	level, err := scope.Level()
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	timeline, err := scope.TimelineRestriction()
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, classifyResponse{
		Code:      scope.Code,
		Level:     level,
		Discovery: scope.DiscoveryRestriction(),
		Timeline:  timeline,
	})
}
