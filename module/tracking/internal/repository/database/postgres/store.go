package postgres

import (
	"context"
	"database/sql"
	"log"

	"github.com/fleetsight/tracking/module/tracking/domain"
	"github.com/fleetsight/tracking/module/tracking/internal/repository/database"
)

var _ database.FleetStore = (*FleetStore)(nil)

type FleetStore struct {
	db *sql.DB
}

func NewFleetStore(db *sql.DB) *FleetStore {
	return &FleetStore{db: db}
}

func (s *FleetStore) ListActiveGeofences(ctx context.Context) ([]domain.Geofence, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, boundary, type, speed_limit, COALESCE(vehicle_id, ''), active FROM geofences WHERE active = true`,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var results []domain.Geofence
	for rows.Next() {
		var gf domain.Geofence
		var boundary string
		var speedLimit sql.NullFloat64
		if err := rows.Scan(&gf.ID, &gf.Name, &boundary, &gf.Type, &speedLimit, &gf.VehicleID, &gf.Active); err != nil {
			return nil, err
		}
		rings, err := domain.ParseBoundary(boundary)
		if err != nil {
			// Recoverable: a zone with an unreadable boundary is skipped,
			// the rest of the list still loads.
			log.Printf("geofence %s: unparseable boundary, skipping", gf.ID)
			continue
		}
		gf.Boundary = rings
		if speedLimit.Valid {
			gf.SpeedLimit = &speedLimit.Float64
		}
		results = append(results, gf)
	}
	return results, rows.Err()
}

func (s *FleetStore) ListVehicleSnapshot(ctx context.Context) ([]domain.Vehicle, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT v.id, COALESCE(v.registration_number, ''), t.latitude, t.longitude, t.speed, t.heading, t.ignition_status, t.timestamp
		 FROM vehicles v
		 LEFT JOIN LATERAL (
		   SELECT latitude, longitude, speed, heading, ignition_status, timestamp
		   FROM tracking_data WHERE vehicle_id = v.id ORDER BY timestamp DESC LIMIT 1
		 ) t ON true`,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var results []domain.Vehicle
	for rows.Next() {
		var v domain.Vehicle
		var lat, lng, speed, heading sql.NullFloat64
		var ignition sql.NullBool
		var ts sql.NullTime
		if err := rows.Scan(&v.ID, &v.Registration, &lat, &lng, &speed, &heading, &ignition, &ts); err != nil {
			return nil, err
		}
		if lat.Valid && lng.Valid {
			v.Position = &domain.Position{Lat: lat.Float64, Lng: lng.Float64}
		}
		if speed.Valid {
			v.Speed = &speed.Float64
		}
		if heading.Valid {
			v.Heading = &heading.Float64
		}
		v.Ignition = ignition.Valid && ignition.Bool
		if ts.Valid {
			v.LastUpdate = ts.Time
		}
		switch {
		case v.Position == nil:
			v.Status = domain.StatusOffline
		case v.Ignition:
			v.Status = domain.StatusInMotion
		default:
			v.Status = domain.StatusParked
		}
		results = append(results, v)
	}
	return results, rows.Err()
}

func (s *FleetStore) QueryTrackHistory(ctx context.Context, query *domain.HistoryQuery) ([]domain.TrajectoryPoint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT latitude, longitude, timestamp, speed FROM tracking_data WHERE vehicle_id = $1 AND timestamp >= $2 ORDER BY timestamp ASC LIMIT $3`,
		query.VehicleID, query.Since, query.Limit,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var results []domain.TrajectoryPoint
	for rows.Next() {
		var p domain.TrajectoryPoint
		var speed sql.NullFloat64
		if err := rows.Scan(&p.Lat, &p.Lng, &p.Timestamp, &speed); err != nil {
			return nil, err
		}
		if speed.Valid {
			p.Speed = &speed.Float64
		}
		results = append(results, p)
	}
	return results, rows.Err()
}

func (s *FleetStore) InsertTrackPoint(ctx context.Context, vehicleID string, point *domain.TrajectoryPoint) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tracking_data (vehicle_id, latitude, longitude, timestamp, speed) VALUES ($1, $2, $3, $4, $5)`,
		vehicleID, point.Lat, point.Lng, point.Timestamp, point.Speed,
	)
	return err
}

func (s *FleetStore) UpsertAlert(ctx context.Context, alert *domain.Alert) error {
	var geofenceID any
	if alert.GeofenceID != "" {
		geofenceID = alert.GeofenceID
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO alerts (id, vehicle_id, geofence_id, alert_type, severity, message, speed_recorded, speed_limit, created_at, acknowledged)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (id) DO UPDATE SET acknowledged = EXCLUDED.acknowledged`,
		alert.ID, alert.VehicleID, geofenceID, alert.Type, alert.Severity, alert.Message,
		alert.SpeedRecorded, alert.SpeedLimit, alert.CreatedAt, alert.Acknowledged,
	)
	return err
}

func (s *FleetStore) AcknowledgeAlert(ctx context.Context, alertID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE alerts SET acknowledged = true WHERE id = $1`,
		alertID,
	)
	return err
}
