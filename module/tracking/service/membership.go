package service

import (
	"sync"

	"github.com/fleetsight/tracking/module/tracking/domain"
)

// MembershipTracker keeps the per-vehicle set of geofences currently
// containing that vehicle. State lives only in process memory: after a
// restart every vehicle starts outside every zone until first evaluated.
type MembershipTracker struct {
	mu     sync.Mutex
	inside map[string]map[string]struct{}
}

func NewMembershipTracker() *MembershipTracker {
	return &MembershipTracker{inside: make(map[string]map[string]struct{})}
}

// Evaluate tests the position against every active geofence applicable to
// the vehicle, replaces the stored membership set, and returns the zones
// newly entered, newly exited and all zones currently containing the
// vehicle. A vehicle may be inside several zones at once. Updates for a
// single vehicle must be serialized by the caller; the internal lock only
// protects the map across vehicles.
func (t *MembershipTracker) Evaluate(vehicleID string, pos domain.Position, geofences []domain.Geofence) (entered, exited, inside []domain.Geofence) {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev := t.inside[vehicleID]
	next := make(map[string]struct{})

	for _, gf := range geofences {
		if !gf.Active || !gf.AppliesTo(vehicleID) {
			continue
		}
		ring := gf.OuterRing()
		if len(ring) < 3 {
			continue
		}
		if pointInRing(pos, ring) {
			next[gf.ID] = struct{}{}
			inside = append(inside, gf)
			if _, was := prev[gf.ID]; !was {
				entered = append(entered, gf)
			}
		} else if _, was := prev[gf.ID]; was {
			exited = append(exited, gf)
		}
	}

	t.inside[vehicleID] = next
	return entered, exited, inside
}

// Reset drops all recorded membership state.
func (t *MembershipTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inside = make(map[string]map[string]struct{})
}

// pointInRing is the ray casting test: a ray cast in the +x direction from
// the point crosses the ring's edges; an odd crossing count means inside.
// The half-open edge rule decides points exactly on an edge (bottom/left
// edges count as inside, top/right as outside).
func pointInRing(pos domain.Position, ring []domain.Position) bool {
	x, y := pos.Lng, pos.Lat
	in := false
	for i, j := 0, len(ring)-1; i < len(ring); j, i = i, i+1 {
		xi, yi := ring[i].Lng, ring[i].Lat
		xj, yj := ring[j].Lng, ring[j].Lat
		if (yi > y) != (yj > y) && x < (xj-xi)*(y-yi)/(yj-yi)+xi {
			in = !in
		}
	}
	return in
}
