package domain

import (
	"encoding/json"
	"errors"
	"regexp"
	"strconv"
	"strings"
)

type TriggerType string

const (
	TriggerEntry TriggerType = "entry"
	TriggerExit  TriggerType = "exit"
	TriggerBoth  TriggerType = "both"
)

// Geofence is a named polygonal zone. Boundary holds the polygon rings in
// [lat, lng] order; only the first (outer) ring is evaluated for containment.
// Geofences are created elsewhere and read-only to this engine.
type Geofence struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	Boundary   [][]Position `json:"boundary"`
	Type       TriggerType  `json:"type"`
	SpeedLimit *float64     `json:"speed_limit,omitempty"`
	VehicleID  string       `json:"vehicle_id,omitempty"`
	Active     bool         `json:"active"`
}

// AppliesTo reports whether the zone is bound to this vehicle. An empty
// bound vehicle means the zone applies fleet-wide.
func (g *Geofence) AppliesTo(vehicleID string) bool {
	return g.VehicleID == "" || g.VehicleID == vehicleID
}

func (g *Geofence) OuterRing() []Position {
	if len(g.Boundary) == 0 {
		return nil
	}
	return g.Boundary[0]
}

// StyleHint is the rendering color pair for a trigger type.
type StyleHint struct {
	Fill    string `json:"fill"`
	Outline string `json:"outline"`
}

func (g *Geofence) Style() StyleHint {
	switch g.Type {
	case TriggerEntry:
		return StyleHint{Fill: "#22c55e", Outline: "#16a34a"}
	case TriggerExit:
		return StyleHint{Fill: "#ef4444", Outline: "#dc2626"}
	default:
		return StyleHint{Fill: "#3b82f6", Outline: "#2563eb"}
	}
}

var ErrInvalidBoundary = errors.New("invalid geofence boundary")

var (
	sridPrefixRe = regexp.MustCompile(`^SRID=\d+;`)
	wktPolygonRe = regexp.MustCompile(`(?i)POLYGON\s*\(\((.+)\)\)`)
)

type geoJSONPolygon struct {
	Type        string        `json:"type"`
	Coordinates [][][]float64 `json:"coordinates"`
}

// ParseBoundary accepts the boundary formats the store hands back: a GeoJSON
// Polygon (object or JSON string) or a WKT POLYGON with optional SRID prefix.
// GeoJSON and WKT both carry coordinates as lng/lat pairs; rings are returned
// in lat/lng order.
func ParseBoundary(raw string) ([][]Position, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, ErrInvalidBoundary
	}

	if strings.HasPrefix(s, "{") {
		var poly geoJSONPolygon
		if err := json.Unmarshal([]byte(s), &poly); err != nil {
			return nil, ErrInvalidBoundary
		}
		if !strings.EqualFold(poly.Type, "Polygon") || len(poly.Coordinates) == 0 {
			return nil, ErrInvalidBoundary
		}
		rings := make([][]Position, 0, len(poly.Coordinates))
		for _, ring := range poly.Coordinates {
			parsed := make([]Position, 0, len(ring))
			for _, pair := range ring {
				if len(pair) < 2 {
					return nil, ErrInvalidBoundary
				}
				parsed = append(parsed, Position{Lat: pair[1], Lng: pair[0]})
			}
			if len(parsed) < 3 {
				return nil, ErrInvalidBoundary
			}
			rings = append(rings, parsed)
		}
		return rings, nil
	}

	return parseWKTPolygon(s)
}

func parseWKTPolygon(s string) ([][]Position, error) {
	s = sridPrefixRe.ReplaceAllString(s, "")
	m := wktPolygonRe.FindStringSubmatch(s)
	if m == nil {
		return nil, ErrInvalidBoundary
	}

	var rings [][]Position
	for _, ringStr := range strings.Split(m[1], "),(") {
		ringStr = strings.Trim(ringStr, "() ")
		var ring []Position
		for _, pairStr := range strings.Split(ringStr, ",") {
			fields := strings.Fields(strings.TrimSpace(pairStr))
			if len(fields) < 2 {
				return nil, ErrInvalidBoundary
			}
			lng, err := strconv.ParseFloat(fields[0], 64)
			if err != nil {
				return nil, ErrInvalidBoundary
			}
			lat, err := strconv.ParseFloat(fields[1], 64)
			if err != nil {
				return nil, ErrInvalidBoundary
			}
			ring = append(ring, Position{Lat: lat, Lng: lng})
		}
		if len(ring) < 3 {
			return nil, ErrInvalidBoundary
		}
		rings = append(rings, ring)
	}
	if len(rings) == 0 {
		return nil, ErrInvalidBoundary
	}
	return rings, nil
}
