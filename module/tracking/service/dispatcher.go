package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fleetsight/tracking/module/tracking/domain"
	"github.com/fleetsight/tracking/module/tracking/internal/repository/database"
	"github.com/fleetsight/tracking/module/tracking/internal/repository/publisher"
)

const (
	recentAlertCap      = 50
	speedAlertDebounce  = 60 * time.Second
	defaultGlobalLimit  = 120.0
	persistAlertTimeout = 10 * time.Second
)

// AlertDispatcher turns membership transitions and speed readings into alert
// records. Every alert lands in a capped in-memory buffer for immediate
// display and is persisted and published fire-and-forget; a failed write
// never removes the alert from the buffer.
type AlertDispatcher struct {
	store       database.FleetStore
	publisher   publisher.AlertPublisher
	now         func() time.Time
	globalLimit float64

	mu             sync.Mutex
	recent         []*domain.Alert
	lastSpeedAlert map[string]time.Time

	wg sync.WaitGroup
}

func NewAlertDispatcher(store database.FleetStore, pub publisher.AlertPublisher, globalLimit float64, now func() time.Time) *AlertDispatcher {
	if globalLimit <= 0 {
		globalLimit = defaultGlobalLimit
	}
	if now == nil {
		now = time.Now
	}
	return &AlertDispatcher{
		store:          store,
		publisher:      pub,
		now:            now,
		globalLimit:    globalLimit,
		lastSpeedAlert: make(map[string]time.Time),
	}
}

// Dispatch applies the alert rules for one processed update. Entry and exit
// alerts fire only on the transitions handed in; the zone speed check runs
// for every zone currently containing the vehicle, on every update.
func (d *AlertDispatcher) Dispatch(ctx context.Context, vehicle *domain.Vehicle, entered, exited, inside []domain.Geofence) {
	for i := range entered {
		gf := &entered[i]
		if gf.Type != domain.TriggerEntry && gf.Type != domain.TriggerBoth {
			continue
		}
		d.emit(ctx, &domain.Alert{
			VehicleID:  vehicle.ID,
			GeofenceID: gf.ID,
			Type:       domain.AlertGeofenceEntry,
			Severity:   domain.SeverityMedium,
			Message:    fmt.Sprintf("%s entered geofence: %s", vehicle.Name(), gf.Name),
		})
	}

	for i := range exited {
		gf := &exited[i]
		if gf.Type != domain.TriggerExit && gf.Type != domain.TriggerBoth {
			continue
		}
		d.emit(ctx, &domain.Alert{
			VehicleID:  vehicle.ID,
			GeofenceID: gf.ID,
			Type:       domain.AlertGeofenceExit,
			Severity:   domain.SeverityMedium,
			Message:    fmt.Sprintf("%s exited geofence: %s", vehicle.Name(), gf.Name),
		})
	}

	speed := vehicle.Speed
	if speed == nil {
		return
	}

	for i := range inside {
		gf := &inside[i]
		if gf.SpeedLimit == nil || *speed <= *gf.SpeedLimit {
			continue
		}
		limit := *gf.SpeedLimit
		recorded := *speed
		d.emit(ctx, &domain.Alert{
			VehicleID:     vehicle.ID,
			GeofenceID:    gf.ID,
			Type:          domain.AlertSpeedViolation,
			Severity:      domain.SeverityHigh,
			Message:       fmt.Sprintf("%s speeding in %s: %.0f km/h (limit: %.0f km/h)", vehicle.Name(), gf.Name, recorded, limit),
			SpeedRecorded: &recorded,
			SpeedLimit:    &limit,
		})
	}

	if *speed > d.globalLimit {
		d.emitGlobalSpeed(ctx, vehicle, *speed)
	}
}

// emitGlobalSpeed debounces the fleet-wide limit per vehicle: at most one
// alert per debounce window, regardless of how often the vehicle is over.
func (d *AlertDispatcher) emitGlobalSpeed(ctx context.Context, vehicle *domain.Vehicle, speed float64) {
	now := d.now()

	d.mu.Lock()
	if last, ok := d.lastSpeedAlert[vehicle.ID]; ok && now.Sub(last) <= speedAlertDebounce {
		d.mu.Unlock()
		return
	}
	d.lastSpeedAlert[vehicle.ID] = now
	d.mu.Unlock()

	limit := d.globalLimit
	d.emit(ctx, &domain.Alert{
		VehicleID:     vehicle.ID,
		Type:          domain.AlertSpeedViolation,
		Severity:      domain.SeverityHigh,
		Message:       fmt.Sprintf("%s exceeded speed limit: %.0f km/h (limit: %.0f km/h)", vehicle.Name(), speed, limit),
		SpeedRecorded: &speed,
		SpeedLimit:    &limit,
	})
}

func (d *AlertDispatcher) emit(_ context.Context, alert *domain.Alert) {
	alert.ID = uuid.New().String()
	alert.CreatedAt = d.now()

	d.mu.Lock()
	d.recent = append([]*domain.Alert{alert}, d.recent...)
	if len(d.recent) > recentAlertCap {
		d.recent = d.recent[:recentAlertCap]
	}
	d.mu.Unlock()

	// Persistence and publishing never block the pipeline.
	d.wg.Add(1)
	go d.forward(alert)
}

func (d *AlertDispatcher) forward(alert *domain.Alert) {
	defer d.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), persistAlertTimeout)
	defer cancel()

	if err := d.store.UpsertAlert(ctx, alert); err != nil {
		log.Printf("persist alert %s: %v", alert.ID, err)
	}
	if d.publisher != nil {
		if err := d.publisher.PublishAlert(ctx, alert); err != nil {
			log.Printf("publish alert %s: %v", alert.ID, err)
		}
	}
}

// Recent returns the buffered alerts, newest first.
func (d *AlertDispatcher) Recent() []domain.Alert {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]domain.Alert, len(d.recent))
	for i, a := range d.recent {
		out[i] = *a
	}
	return out
}

func (d *AlertDispatcher) UnreadCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, a := range d.recent {
		if !a.Acknowledged {
			n++
		}
	}
	return n
}

// Acknowledge flips the flag in the buffer and the store.
func (d *AlertDispatcher) Acknowledge(ctx context.Context, alertID string) error {
	d.mu.Lock()
	for _, a := range d.recent {
		if a.ID == alertID {
			a.Acknowledged = true
			break
		}
	}
	d.mu.Unlock()
	return d.store.AcknowledgeAlert(ctx, alertID)
}

// Flush waits for in-flight persistence writes. Used on shutdown and in tests.
func (d *AlertDispatcher) Flush() {
	d.wg.Wait()
}
