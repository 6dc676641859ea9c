package core

import "time"

// Mobility is a capability, not a class hierarchy: any type that can report
// a position and velocity "now" can back a Node, whether that's an orbiting
// satellite or (per the design note on polymorphic mobility) a fixed ground
// point added later without touching any consumer.
type Mobility interface {
	Position() Vec3
	Velocity() Vec3
	DistanceTo(other Mobility) float64
	LatitudeDeg() float64
	LatitudeSine() float64
}

// SatelliteMobility adapts an OrbitPropagator to the Mobility capability. It
// reads the simulation clock, updates the backing true anomaly, then returns
// cached values until the clock advances again.
type SatelliteMobility struct {
	elements  *OrbitalElements
	scheduler Scheduler
	epoch     time.Time

	lastT    time.Time
	lastSet  bool
	pos, vel Vec3
}

// NewSatelliteMobility builds a Mobility backed by elements, propagated
// relative to epoch using the scheduler's clock.
func NewSatelliteMobility(elements *OrbitalElements, scheduler Scheduler, epoch time.Time) *SatelliteMobility {
	return &SatelliteMobility{elements: elements, scheduler: scheduler, epoch: epoch}
}

func (m *SatelliteMobility) refresh() {
	now := m.scheduler.Now()
	if m.lastSet && now.Equal(m.lastT) {
		return
	}
	secs := now.Sub(m.epoch).Seconds()
	m.pos, m.vel = Propagate(m.elements, secs)
	m.lastT = now
	m.lastSet = true
}

// Position returns the current inertial position, metres.
func (m *SatelliteMobility) Position() Vec3 {
	m.refresh()
	return m.pos
}

// Velocity returns the current inertial velocity, metres/second.
func (m *SatelliteMobility) Velocity() Vec3 {
	m.refresh()
	return m.vel
}

// DistanceTo returns the instantaneous 3D distance to another Mobility,
// metres.
func (m *SatelliteMobility) DistanceTo(other Mobility) float64 {
	return m.Position().DistanceTo(other.Position())
}

// LatitudeSine returns |z|/||pos||.
func (m *SatelliteMobility) LatitudeSine() float64 {
	return LatitudeSine(m.Position())
}

// LatitudeDeg returns asin(LatitudeSine())*180/pi.
func (m *SatelliteMobility) LatitudeDeg() float64 {
	return LatitudeDegrees(m.Position())
}

// FixedMobility is a stationary Mobility variant, exercised by unit tests to
// demonstrate that consumers depend only on the Mobility capability and not
// on any orbital-specific type.
type FixedMobility struct {
	Pos Vec3
}

func (m FixedMobility) Position() Vec3 { return m.Pos }
func (m FixedMobility) Velocity() Vec3 { return Vec3{} }
func (m FixedMobility) DistanceTo(other Mobility) float64 {
	return m.Pos.DistanceTo(other.Position())
}
func (m FixedMobility) LatitudeSine() float64 { return LatitudeSine(m.Pos) }
func (m FixedMobility) LatitudeDeg() float64  { return LatitudeDegrees(m.Pos) }
