package database

import (
	"context"

	"github.com/fleetsight/tracking/module/tracking/domain"
)

type FleetStore interface {
	ListActiveGeofences(ctx context.Context) ([]domain.Geofence, error)
	ListVehicleSnapshot(ctx context.Context) ([]domain.Vehicle, error)
	QueryTrackHistory(ctx context.Context, query *domain.HistoryQuery) ([]domain.TrajectoryPoint, error)
	InsertTrackPoint(ctx context.Context, vehicleID string, point *domain.TrajectoryPoint) error
	UpsertAlert(ctx context.Context, alert *domain.Alert) error
	AcknowledgeAlert(ctx context.Context, alertID string) error
}
