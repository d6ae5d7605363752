package domain

import "time"

type AlertType string

const (
	AlertGeofenceEntry  AlertType = "geofence_entry"
	AlertGeofenceExit   AlertType = "geofence_exit"
	AlertSpeedViolation AlertType = "speed_violation"
)

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

type Alert struct {
	ID            string    `json:"id"`
	VehicleID     string    `json:"vehicle_id"`
	GeofenceID    string    `json:"geofence_id,omitempty"`
	Type          AlertType `json:"alert_type"`
	Severity      Severity  `json:"severity"`
	Message       string    `json:"message"`
	SpeedRecorded *float64  `json:"speed_recorded,omitempty"`
	SpeedLimit    *float64  `json:"speed_limit,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	Acknowledged  bool      `json:"acknowledged"`
}
