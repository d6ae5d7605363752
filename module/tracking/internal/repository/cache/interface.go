package cache

import (
	"context"

	"github.com/fleetsight/tracking/module/tracking/domain"
)

// VehicleCache holds the latest normalized state per vehicle for fast reads.
// Entries expire on their own; the store remains the source of truth.
type VehicleCache interface {
	SetVehicle(ctx context.Context, v *domain.Vehicle) error
	GetVehicle(ctx context.Context, vehicleID string) (*domain.Vehicle, error)
}
