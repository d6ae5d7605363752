package service

import (
	"encoding/json"
	"math"
	"testing"
)

func TestNormalizePosition_LatLngObject(t *testing.T) {
	pos, err := NormalizePosition(map[string]any{"lat": 24.8607, "lng": 67.0011})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pos.Lat != 24.8607 || pos.Lng != 67.0011 {
		t.Errorf("got {%f %f}", pos.Lat, pos.Lng)
	}
}

func TestNormalizePosition_LatitudeLongitudeObject(t *testing.T) {
	pos, err := NormalizePosition(map[string]any{"latitude": -6.2088, "longitude": 106.8456})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pos.Lat != -6.2088 || pos.Lng != 106.8456 {
		t.Errorf("got {%f %f}", pos.Lat, pos.Lng)
	}
}

func TestNormalizePosition_GeoJSONPoint(t *testing.T) {
	// coordinates carry lng first
	pos, err := NormalizePosition(map[string]any{
		"type":        "Point",
		"coordinates": []any{67.0011, 24.8607},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pos.Lat != 24.8607 || pos.Lng != 67.0011 {
		t.Errorf("got {%f %f}", pos.Lat, pos.Lng)
	}
}

func TestNormalizePosition_XYObject(t *testing.T) {
	pos, err := NormalizePosition(map[string]any{"x": 67.0011, "y": 24.8607})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pos.Lat != 24.8607 || pos.Lng != 67.0011 {
		t.Errorf("got {%f %f}", pos.Lat, pos.Lng)
	}
}

func TestNormalizePosition_WKTWithSRID(t *testing.T) {
	pos, err := NormalizePosition("SRID=4326;POINT(67.0011 24.8607)")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pos.Lat != 24.8607 || pos.Lng != 67.0011 {
		t.Errorf("got {%f %f}", pos.Lat, pos.Lng)
	}
}

func TestNormalizePosition_WKTWithoutSRID(t *testing.T) {
	pos, err := NormalizePosition("POINT(106.8456 -6.2088)")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pos.Lat != -6.2088 || pos.Lng != 106.8456 {
		t.Errorf("got {%f %f}", pos.Lat, pos.Lng)
	}
}

func TestNormalizePosition_FirstMatchWins(t *testing.T) {
	// lat/lng take precedence over x/y when both are present
	pos, err := NormalizePosition(map[string]any{
		"lat": 1.0, "lng": 2.0,
		"x": 99.0, "y": 99.0,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pos.Lat != 1.0 || pos.Lng != 2.0 {
		t.Errorf("got {%f %f}", pos.Lat, pos.Lng)
	}
}

func TestNormalizePosition_DecodedJSON(t *testing.T) {
	var raw any
	if err := json.Unmarshal([]byte(`{"coordinates":[67.0011,24.8607,12.5]}`), &raw); err != nil {
		t.Fatal(err)
	}
	pos, err := NormalizePosition(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pos.Lat != 24.8607 || pos.Lng != 67.0011 {
		t.Errorf("got {%f %f}", pos.Lat, pos.Lng)
	}
}

func TestNormalizePosition_Unrecognized(t *testing.T) {
	cases := []any{
		nil,
		42.0,
		"not a point",
		"POINT()",
		map[string]any{"lat": "24.86", "lng": "67.00"}, // strings, not numbers
		map[string]any{"lat": 24.86},                   // missing lng
		map[string]any{"coordinates": []any{67.0011}},  // too short
		[]any{67.0011, 24.8607},
	}
	for _, raw := range cases {
		if _, err := NormalizePosition(raw); err != ErrUnrecognizedPosition {
			t.Errorf("%v: expected ErrUnrecognizedPosition, got %v", raw, err)
		}
	}
}

func TestNormalizePosition_NonFinite(t *testing.T) {
	cases := []any{
		map[string]any{"lat": math.NaN(), "lng": 67.0},
		map[string]any{"lat": 24.86, "lng": math.Inf(1)},
		map[string]any{"coordinates": []any{math.Inf(-1), 24.86}},
	}
	for _, raw := range cases {
		if _, err := NormalizePosition(raw); err != ErrUnrecognizedPosition {
			t.Errorf("%v: expected ErrUnrecognizedPosition, got %v", raw, err)
		}
	}
}
