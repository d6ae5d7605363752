package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/fleetsight/tracking/module/tracking/domain"
	"github.com/fleetsight/tracking/module/tracking/internal/repository/cache"
)

type mockVehicleCache struct {
	mu    sync.Mutex
	setFn func(ctx context.Context, v *domain.Vehicle) error
	getFn func(ctx context.Context, vehicleID string) (*domain.Vehicle, error)
	set   []*domain.Vehicle
}

func (m *mockVehicleCache) SetVehicle(ctx context.Context, v *domain.Vehicle) error {
	m.mu.Lock()
	m.set = append(m.set, v)
	m.mu.Unlock()
	if m.setFn != nil {
		return m.setFn(ctx, v)
	}
	return nil
}

func (m *mockVehicleCache) GetVehicle(ctx context.Context, vehicleID string) (*domain.Vehicle, error) {
	if m.getFn != nil {
		return m.getFn(ctx, vehicleID)
	}
	return nil, nil
}

func newTestTracking(store *mockFleetStore, vcache *mockVehicleCache) (*TrackingService, *AlertDispatcher) {
	dispatcher := NewAlertDispatcher(store, nil, 120, nil)
	// a typed nil pointer must not reach the interface field
	var c cache.VehicleCache
	if vcache != nil {
		c = vcache
	}
	svc := NewTrackingService(store, c, NewMembershipTracker(), dispatcher, time.Minute, nil)
	return svc, dispatcher
}

func floatPtr(f float64) *float64 { return &f }
func boolPtr(b bool) *bool        { return &b }

func TestProcessUpdate_DirectColumns(t *testing.T) {
	store := &mockFleetStore{}
	vcache := &mockVehicleCache{}
	svc, _ := newTestTracking(store, vcache)

	upd := &domain.TrackingUpdate{
		VehicleID: "v1",
		Latitude:  floatPtr(24.8607),
		Longitude: floatPtr(67.0011),
		Speed:     floatPtr(42),
		Ignition:  boolPtr(true),
		Timestamp: time.Unix(1715003456, 0),
	}
	if err := svc.ProcessUpdate(context.Background(), upd); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	svc.Stop()

	snapshot := svc.Snapshot()
	if len(snapshot) != 1 {
		t.Fatalf("expected 1 vehicle, got %d", len(snapshot))
	}
	v := snapshot[0]
	if v.ID != "v1" || v.Position == nil || v.Position.Lat != 24.8607 {
		t.Fatalf("unexpected vehicle state: %+v", v)
	}
	if v.Status != domain.StatusInMotion {
		t.Errorf("expected in_motion, got %s", v.Status)
	}

	vcache.mu.Lock()
	cached := len(vcache.set)
	vcache.mu.Unlock()
	if cached != 1 {
		t.Errorf("expected 1 cache write, got %d", cached)
	}

	store.mu.Lock()
	points := len(store.insertedPoints)
	store.mu.Unlock()
	if points != 1 {
		t.Errorf("expected 1 persisted track point, got %d", points)
	}
}

func TestProcessUpdate_WKTLocation(t *testing.T) {
	store := &mockFleetStore{}
	svc, _ := newTestTracking(store, nil)
	defer svc.Stop()

	upd := &domain.TrackingUpdate{
		VehicleID:   "v1",
		RawLocation: "SRID=4326;POINT(67.0011 24.8607)",
		Ignition:    boolPtr(false),
	}
	if err := svc.ProcessUpdate(context.Background(), upd); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	v, err := svc.Latest(context.Background(), "v1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Position.Lat != 24.8607 || v.Position.Lng != 67.0011 {
		t.Errorf("got position %+v", v.Position)
	}
	if v.Status != domain.StatusParked {
		t.Errorf("expected parked, got %s", v.Status)
	}
}

func TestProcessUpdate_NoPosition(t *testing.T) {
	store := &mockFleetStore{}
	svc, dispatcher := newTestTracking(store, nil)
	defer svc.Stop()

	upd := &domain.TrackingUpdate{VehicleID: "v1", RawLocation: "garbage"}
	if err := svc.ProcessUpdate(context.Background(), upd); err != ErrNoPosition {
		t.Fatalf("expected ErrNoPosition, got %v", err)
	}

	if len(svc.Snapshot()) != 0 {
		t.Error("expected no vehicle recorded")
	}
	if len(dispatcher.Recent()) != 0 {
		t.Error("expected no alerts")
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.insertedPoints) != 0 {
		t.Error("expected no persisted track point")
	}
}

func TestProcessUpdate_EmitsEntryAlert(t *testing.T) {
	limit := 40.0
	gf := squareFence("zone-1", domain.TriggerEntry)
	gf.SpeedLimit = &limit
	store := &mockFleetStore{
		listGeofencesFn: func(_ context.Context) ([]domain.Geofence, error) {
			return []domain.Geofence{gf}, nil
		},
	}
	svc, dispatcher := newTestTracking(store, nil)

	if err := svc.RefreshGeofences(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	upd := &domain.TrackingUpdate{
		VehicleID: "v1",
		Latitude:  floatPtr(5),
		Longitude: floatPtr(5),
		Speed:     floatPtr(50),
		Ignition:  boolPtr(true),
	}
	if err := svc.ProcessUpdate(context.Background(), upd); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	svc.Stop()

	recent := dispatcher.Recent()
	if len(recent) != 2 {
		t.Fatalf("expected entry + speed alerts, got %v", alertTypes(recent))
	}
}

func TestProcessUpdate_StaleDeliveryIgnored(t *testing.T) {
	store := &mockFleetStore{
		listGeofencesFn: func(_ context.Context) ([]domain.Geofence, error) {
			return []domain.Geofence{squareFence("zone-1", domain.TriggerBoth)}, nil
		},
	}
	svc, dispatcher := newTestTracking(store, nil)

	if err := svc.RefreshGeofences(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// in-zone, then a stale out-of-zone delivery, then in-zone again
	updates := []*domain.TrackingUpdate{
		{VehicleID: "v1", Latitude: floatPtr(5), Longitude: floatPtr(5), Timestamp: time.Unix(2000, 0)},
		{VehicleID: "v1", Latitude: floatPtr(20), Longitude: floatPtr(20), Timestamp: time.Unix(1000, 0)},
		{VehicleID: "v1", Latitude: floatPtr(6), Longitude: floatPtr(6), Timestamp: time.Unix(3000, 0)},
	}
	for _, upd := range updates {
		if err := svc.ProcessUpdate(context.Background(), upd); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	svc.Stop()

	v, _ := svc.Latest(context.Background(), "v1")
	if v.Position.Lat != 6 {
		t.Errorf("stale update overwrote state: %+v", v.Position)
	}

	// the stale out-of-zone delivery must not produce an exit/re-entry pair
	recent := dispatcher.Recent()
	if len(recent) != 1 || recent[0].Type != domain.AlertGeofenceEntry {
		t.Fatalf("expected a single entry alert, got %v", alertTypes(recent))
	}

	store.mu.Lock()
	points := len(store.insertedPoints)
	store.mu.Unlock()
	if points != 2 {
		t.Errorf("expected only fresh track points persisted, got %d", points)
	}
}

func TestResync_KeepsNewerInMemoryState(t *testing.T) {
	stored := domain.Vehicle{
		ID:         "v1",
		Position:   &domain.Position{Lat: 9, Lng: 9},
		Status:     domain.StatusParked,
		LastUpdate: time.Unix(1000, 0),
	}
	other := domain.Vehicle{
		ID:         "v2",
		Status:     domain.StatusOffline,
		LastUpdate: time.Unix(500, 0),
	}
	store := &mockFleetStore{
		listVehiclesFn: func(_ context.Context) ([]domain.Vehicle, error) {
			return []domain.Vehicle{stored, other}, nil
		},
	}
	svc, _ := newTestTracking(store, nil)
	defer svc.Stop()

	upd := &domain.TrackingUpdate{
		VehicleID: "v1",
		Latitude:  floatPtr(1), Longitude: floatPtr(1),
		Timestamp: time.Unix(2000, 0),
	}
	if err := svc.ProcessUpdate(context.Background(), upd); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := svc.Resync(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snapshot := svc.Snapshot()
	if len(snapshot) != 2 {
		t.Fatalf("expected 2 vehicles, got %d", len(snapshot))
	}
	v1, _ := svc.Latest(context.Background(), "v1")
	if v1.Position.Lat != 1 {
		t.Errorf("resync rolled back live state: %+v", v1.Position)
	}
	if _, err := svc.Latest(context.Background(), "v2"); err != nil {
		t.Errorf("expected v2 from resync: %v", err)
	}
}

func TestSnapshot_ActiveFirst(t *testing.T) {
	store := &mockFleetStore{
		listVehiclesFn: func(_ context.Context) ([]domain.Vehicle, error) {
			return []domain.Vehicle{
				{ID: "parked", Status: domain.StatusParked, LastUpdate: time.Unix(3000, 0)},
				{ID: "moving-old", Status: domain.StatusInMotion, LastUpdate: time.Unix(1000, 0)},
				{ID: "moving-new", Status: domain.StatusInMotion, LastUpdate: time.Unix(2000, 0)},
			}, nil
		},
	}
	svc, _ := newTestTracking(store, nil)
	defer svc.Stop()

	if err := svc.Resync(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snapshot := svc.Snapshot()
	if snapshot[0].ID != "moving-new" || snapshot[1].ID != "moving-old" || snapshot[2].ID != "parked" {
		t.Errorf("unexpected order: %s, %s, %s", snapshot[0].ID, snapshot[1].ID, snapshot[2].ID)
	}
}

func TestLatest_PrefersCache(t *testing.T) {
	cached := &domain.Vehicle{ID: "v1", Position: &domain.Position{Lat: 7, Lng: 7}}
	vcache := &mockVehicleCache{
		getFn: func(_ context.Context, vehicleID string) (*domain.Vehicle, error) {
			return cached, nil
		},
	}
	store := &mockFleetStore{}
	svc, _ := newTestTracking(store, vcache)
	defer svc.Stop()

	v, err := svc.Latest(context.Background(), "v1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Position.Lat != 7 {
		t.Errorf("expected cached state, got %+v", v.Position)
	}
}

func TestLatest_UnknownVehicle(t *testing.T) {
	store := &mockFleetStore{}
	svc, _ := newTestTracking(store, nil)
	defer svc.Stop()

	if _, err := svc.Latest(context.Background(), "ghost"); err == nil {
		t.Fatal("expected error for unknown vehicle")
	}
}
