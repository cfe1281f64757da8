// internal/domain/geo/scope.go

package geo

import (
	"fmt"
	"strings"
)

// Delimiter separates the segments of a scope code (e.g. "US-MA-506")
const Delimiter = "-"

// Level is the specificity of a geographic scope
type Level string

const (
	LevelCountry Level = "country"
	LevelRegion  Level = "region"
	LevelMetro   Level = "metro"
)

// InvalidScopeError reports a scope code with an unsupported number of segments
type InvalidScopeError struct {
	Code     string
	Segments int
}

func (e *InvalidScopeError) Error() string {
	return fmt.Sprintf("invalid geo scope %q: %d segments, want 1 to 3", e.Code, e.Segments)
}

// Scope is a geographic restriction applied to a trends query
type Scope struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// Restriction is a single query parameter restricting a request to a scope
type Restriction struct {
	Param string `json:"param"`
	Value string `json:"value"`
}

// Classify maps a scope code onto its level
func Classify(code string) (Level, error) {
	segments := strings.Split(code, Delimiter)
	for _, s := range segments {
		if s == "" {
			return "", &InvalidScopeError{Code: code, Segments: len(segments)}
		}
	}

	switch len(segments) {
	case 1:
		return LevelCountry, nil
	case 2:
		return LevelRegion, nil
	case 3:
		return LevelMetro, nil
	default:
		return "", &InvalidScopeError{Code: code, Segments: len(segments)}
	}
}

// NewScope validates the code and returns an immutable scope
func NewScope(code, description string) (Scope, error) {
	if _, err := Classify(code); err != nil {
		return Scope{}, err
	}
	if description == "" {
		description = code
	}
	return Scope{Code: code, Description: description}, nil
}

// Level returns the scope's level
func (s Scope) Level() (Level, error) {
	return Classify(s.Code)
}

// DiscoveryRestriction returns the geo parameter used by the top queries and top topics endpoints
func (s Scope) DiscoveryRestriction() Restriction {
	return Restriction{Param: "restrictions.geo", Value: s.Code}
}

// TimelineRestriction returns the geo parameter used by the timelines endpoint.
// Metro scopes are addressed by their DMA number, the third segment of the code.
func (s Scope) TimelineRestriction() (Restriction, error) {
	level, err := s.Level()
	if err != nil {
		return Restriction{}, err
	}

	switch level {
	case LevelCountry:
		return Restriction{Param: "geoRestriction.country", Value: s.Code}, nil
	case LevelRegion:
		return Restriction{Param: "geoRestriction.region", Value: s.Code}, nil
	default:
		segments := strings.Split(s.Code, Delimiter)
		return Restriction{Param: "geoRestriction.dma", Value: segments[2]}, nil
	}
}
