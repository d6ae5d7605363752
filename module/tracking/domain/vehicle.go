package domain

import "time"

type VehicleStatus string

// The tracking pipeline only ever derives in_motion, parked and offline
// (ignition on, ignition off, no position). online and alert are assigned
// by the fleet management surface and pass through snapshots unchanged.
const (
	StatusOnline   VehicleStatus = "online"
	StatusInMotion VehicleStatus = "in_motion"
	StatusParked   VehicleStatus = "parked"
	StatusOffline  VehicleStatus = "offline"
	StatusAlert    VehicleStatus = "alert"
)

type Vehicle struct {
	ID           string        `json:"id"`
	Registration string        `json:"registration_number,omitempty"`
	Position     *Position     `json:"position,omitempty"`
	Speed        *float64      `json:"speed,omitempty"`
	Heading      *float64      `json:"heading,omitempty"`
	Ignition     bool          `json:"ignition_status"`
	Status       VehicleStatus `json:"status"`
	LastUpdate   time.Time     `json:"last_update"`
}

// Moving reports whether the vehicle counts as active for display ordering.
func (v *Vehicle) Moving() bool {
	return v.Status == StatusInMotion || v.Status == StatusOnline
}

func (v *Vehicle) Name() string {
	if v.Registration != "" {
		return v.Registration
	}
	return v.ID
}
