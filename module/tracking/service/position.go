package service

import (
	"errors"
	"math"
	"regexp"
	"strconv"

	"github.com/fleetsight/tracking/module/tracking/domain"
)

// ErrUnrecognizedPosition marks a position payload no recognizer matched.
// The offending update is dropped; the pipeline never fails on it.
var ErrUnrecognizedPosition = errors.New("unrecognized position payload")

var (
	sridPrefixRe = regexp.MustCompile(`^SRID=\d+;`)
	wktPointRe   = regexp.MustCompile(`(?i)POINT\s*\(\s*([+-]?\d+\.?\d*)\s+([+-]?\d+\.?\d*)\s*\)`)
)

// NormalizePosition resolves a raw position value of unknown shape into a
// canonical lat/lng pair. Devices in the field report positions as plain
// lat/lng objects, latitude/longitude objects, GeoJSON points, x/y pairs or
// PostGIS-style WKT strings; recognizers are tried in that order and the
// first match wins.
func NormalizePosition(raw any) (domain.Position, error) {
	switch v := raw.(type) {
	case map[string]any:
		if pos, ok := fromLatLng(v); ok {
			return pos, nil
		}
		if pos, ok := fromLatitudeLongitude(v); ok {
			return pos, nil
		}
		if pos, ok := fromGeoJSON(v); ok {
			return pos, nil
		}
		if pos, ok := fromXY(v); ok {
			return pos, nil
		}
	case string:
		if pos, ok := fromWKTPoint(v); ok {
			return pos, nil
		}
	}
	return domain.Position{}, ErrUnrecognizedPosition
}

func fromLatLng(obj map[string]any) (domain.Position, bool) {
	lat, okLat := finiteNumber(obj["lat"])
	lng, okLng := finiteNumber(obj["lng"])
	if !okLat || !okLng {
		return domain.Position{}, false
	}
	return domain.Position{Lat: lat, Lng: lng}, true
}

func fromLatitudeLongitude(obj map[string]any) (domain.Position, bool) {
	lat, okLat := finiteNumber(obj["latitude"])
	lng, okLng := finiteNumber(obj["longitude"])
	if !okLat || !okLng {
		return domain.Position{}, false
	}
	return domain.Position{Lat: lat, Lng: lng}, true
}

// fromGeoJSON handles {"type": "Point", "coordinates": [lng, lat, ...]}.
func fromGeoJSON(obj map[string]any) (domain.Position, bool) {
	coords, ok := obj["coordinates"].([]any)
	if !ok || len(coords) < 2 {
		return domain.Position{}, false
	}
	lng, okLng := finiteNumber(coords[0])
	lat, okLat := finiteNumber(coords[1])
	if !okLng || !okLat {
		return domain.Position{}, false
	}
	return domain.Position{Lat: lat, Lng: lng}, true
}

// fromXY handles PostGIS point objects where x is longitude and y latitude.
func fromXY(obj map[string]any) (domain.Position, bool) {
	lng, okX := finiteNumber(obj["x"])
	lat, okY := finiteNumber(obj["y"])
	if !okX || !okY {
		return domain.Position{}, false
	}
	return domain.Position{Lat: lat, Lng: lng}, true
}

// fromWKTPoint handles "POINT(lng lat)" with an optional "SRID=n;" prefix.
func fromWKTPoint(s string) (domain.Position, bool) {
	s = sridPrefixRe.ReplaceAllString(s, "")
	m := wktPointRe.FindStringSubmatch(s)
	if m == nil {
		return domain.Position{}, false
	}
	lng, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return domain.Position{}, false
	}
	lat, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return domain.Position{}, false
	}
	if !isFinite(lat) || !isFinite(lng) {
		return domain.Position{}, false
	}
	return domain.Position{Lat: lat, Lng: lng}, true
}

func finiteNumber(v any) (float64, bool) {
	f, ok := v.(float64)
	if !ok || !isFinite(f) {
		return 0, false
	}
	return f, true
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
