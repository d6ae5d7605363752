package service

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/fleetsight/tracking/module/tracking/domain"
	"github.com/fleetsight/tracking/module/tracking/internal/repository/cache"
	"github.com/fleetsight/tracking/module/tracking/internal/repository/database"
)

const defaultGeofenceRefresh = time.Minute

// ErrNoPosition marks an update whose position could not be resolved. The
// vehicle is left untouched: no containment evaluation, no alerts.
var ErrNoPosition = errors.New("update carries no usable position")

// TrackingService owns the in-memory fleet snapshot and runs each update
// through normalize, membership evaluation and alert dispatch. The geofence
// list is refreshed from the store on a ticker and read without locking
// against position evaluation; staleness up to one refresh interval is
// accepted.
type TrackingService struct {
	store      database.FleetStore
	cache      cache.VehicleCache
	tracker    *MembershipTracker
	dispatcher *AlertDispatcher
	now        func() time.Time
	refresh    time.Duration

	mu       sync.RWMutex
	vehicles map[string]*domain.Vehicle

	fenceMu sync.RWMutex
	fences  []domain.Geofence

	stopOnce sync.Once
	stopCh   chan struct{}

	persistWG sync.WaitGroup
}

func NewTrackingService(store database.FleetStore, vcache cache.VehicleCache, tracker *MembershipTracker, dispatcher *AlertDispatcher, refresh time.Duration, now func() time.Time) *TrackingService {
	if refresh <= 0 {
		refresh = defaultGeofenceRefresh
	}
	if now == nil {
		now = time.Now
	}
	return &TrackingService{
		store:      store,
		cache:      vcache,
		tracker:    tracker,
		dispatcher: dispatcher,
		now:        now,
		refresh:    refresh,
		vehicles:   make(map[string]*domain.Vehicle),
		stopCh:     make(chan struct{}),
	}
}

// Start loads the initial geofence list and vehicle snapshot and launches
// the refresh loop. Stop cancels the loop.
func (s *TrackingService) Start(ctx context.Context) error {
	if err := s.RefreshGeofences(ctx); err != nil {
		return err
	}
	if err := s.Resync(ctx); err != nil {
		log.Printf("initial vehicle resync: %v", err)
	}
	go s.refreshLoop()
	return nil
}

func (s *TrackingService) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.persistWG.Wait()
	s.dispatcher.Flush()
}

func (s *TrackingService) refreshLoop() {
	ticker := time.NewTicker(s.refresh)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), s.refresh)
			if err := s.RefreshGeofences(ctx); err != nil {
				log.Printf("geofence refresh: %v", err)
			}
			cancel()
		}
	}
}

func (s *TrackingService) RefreshGeofences(ctx context.Context) error {
	fences, err := s.store.ListActiveGeofences(ctx)
	if err != nil {
		return err
	}
	s.fenceMu.Lock()
	s.fences = fences
	s.fenceMu.Unlock()
	return nil
}

func (s *TrackingService) Geofences() []domain.Geofence {
	s.fenceMu.RLock()
	defer s.fenceMu.RUnlock()
	out := make([]domain.Geofence, len(s.fences))
	copy(out, s.fences)
	return out
}

// ProcessUpdate is the live pipeline for one raw delivery: resolve the
// position, mutate the snapshot, persist the track point (fire-and-forget),
// evaluate membership and dispatch alerts. Deliveries are handed in one at
// a time by the feed connector, which preserves per-vehicle ordering. A
// delivery older than the recorded vehicle state is dropped entirely: it
// must not roll back the snapshot, the membership state or the track log.
func (s *TrackingService) ProcessUpdate(ctx context.Context, upd *domain.TrackingUpdate) error {
	pos, err := s.resolvePosition(upd)
	if err != nil {
		return err
	}

	ts := upd.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}

	vehicle, fresh := s.applyUpdate(upd, pos, ts)
	if !fresh {
		return nil
	}

	if s.cache != nil {
		if err := s.cache.SetVehicle(ctx, vehicle); err != nil {
			log.Printf("cache vehicle %s: %v", vehicle.ID, err)
		}
	}

	point := &domain.TrajectoryPoint{Lat: pos.Lat, Lng: pos.Lng, Timestamp: ts, Speed: upd.Speed}
	s.persistWG.Add(1)
	go func() {
		defer s.persistWG.Done()
		pctx, cancel := context.WithTimeout(context.Background(), persistAlertTimeout)
		defer cancel()
		if err := s.store.InsertTrackPoint(pctx, vehicle.ID, point); err != nil {
			log.Printf("persist track point for %s: %v", vehicle.ID, err)
		}
	}()

	entered, exited, inside := s.tracker.Evaluate(vehicle.ID, pos, s.Geofences())
	s.dispatcher.Dispatch(ctx, vehicle, entered, exited, inside)
	return nil
}

func (s *TrackingService) resolvePosition(upd *domain.TrackingUpdate) (domain.Position, error) {
	if upd.Latitude != nil && upd.Longitude != nil {
		pos := domain.Position{Lat: *upd.Latitude, Lng: *upd.Longitude}
		return pos, nil
	}
	if upd.RawLocation == nil {
		return domain.Position{}, ErrNoPosition
	}
	pos, err := NormalizePosition(upd.RawLocation)
	if err != nil {
		return domain.Position{}, ErrNoPosition
	}
	return pos, nil
}

// applyUpdate mutates the vehicle snapshot and reports whether the delivery
// was fresh. Most recent wins: an older buffered delivery leaves the state
// untouched and comes back with fresh=false.
func (s *TrackingService) applyUpdate(upd *domain.TrackingUpdate, pos domain.Position, ts time.Time) (*domain.Vehicle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.vehicles[upd.VehicleID]
	if !ok {
		v = &domain.Vehicle{ID: upd.VehicleID}
		s.vehicles[upd.VehicleID] = v
	}

	if !v.LastUpdate.IsZero() && ts.Before(v.LastUpdate) {
		snapshot := *v
		return &snapshot, false
	}

	p := pos
	v.Position = &p
	v.Speed = upd.Speed
	v.Heading = upd.Heading
	if upd.Ignition != nil {
		v.Ignition = *upd.Ignition
	}
	if v.Ignition {
		v.Status = domain.StatusInMotion
	} else {
		v.Status = domain.StatusParked
	}
	v.LastUpdate = ts

	snapshot := *v
	return &snapshot, true
}

// Resync replaces the snapshot from the store. Used at startup and by the
// polling fallback while the live feed is down; a vehicle with a more
// recent in-memory state keeps it.
func (s *TrackingService) Resync(ctx context.Context) error {
	fetched, err := s.store.ListVehicleSnapshot(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range fetched {
		f := fetched[i]
		if cur, ok := s.vehicles[f.ID]; ok && cur.LastUpdate.After(f.LastUpdate) {
			continue
		}
		s.vehicles[f.ID] = &f
	}
	return nil
}

// Snapshot returns the fleet sorted active-first, then most recent update.
func (s *TrackingService) Snapshot() []domain.Vehicle {
	s.mu.RLock()
	out := make([]domain.Vehicle, 0, len(s.vehicles))
	for _, v := range s.vehicles {
		out = append(out, *v)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		ai, aj := out[i].Moving(), out[j].Moving()
		if ai != aj {
			return ai
		}
		return out[i].LastUpdate.After(out[j].LastUpdate)
	})
	return out
}

// Latest returns the freshest known state for one vehicle: cache first,
// then the in-memory snapshot.
func (s *TrackingService) Latest(ctx context.Context, vehicleID string) (*domain.Vehicle, error) {
	if s.cache != nil {
		if v, err := s.cache.GetVehicle(ctx, vehicleID); err == nil && v != nil {
			return v, nil
		}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vehicles[vehicleID]
	if !ok {
		return nil, errors.New("vehicle not found")
	}
	snapshot := *v
	return &snapshot, nil
}

func (s *TrackingService) History(ctx context.Context, query *domain.HistoryQuery) ([]domain.TrajectoryPoint, error) {
	return s.store.QueryTrackHistory(ctx, query)
}
