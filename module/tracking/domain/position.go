package domain

import "time"

type Position struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type TrajectoryPoint struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Timestamp time.Time `json:"timestamp"`
	Speed     *float64  `json:"speed,omitempty"`
}

// TrackingUpdate is a single raw delivery from the live feed. The position
// may arrive either as direct latitude/longitude columns or as an opaque
// location value whose shape is resolved by the normalizer.
type TrackingUpdate struct {
	VehicleID   string
	RawLocation any
	Latitude    *float64
	Longitude   *float64
	Speed       *float64
	Heading     *float64
	Ignition    *bool
	Timestamp   time.Time
}

type HistoryQuery struct {
	VehicleID string
	Since     time.Time
	Limit     int
}
