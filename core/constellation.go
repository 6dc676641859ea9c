package core

import (
	"fmt"
	"math"
	"time"
)

// BuildResult is what ConstellationBuilder.Build hands back to the caller.
type BuildResult struct {
	Registry   *Registry
	Maintainer *LinkMaintainer
	// BestMatchIndex is the DELTA best-match slot index computed during
	// construction (4.E step 3). It is -1 for STAR constellations and
	// exposed only for diagnostics; it never alters wiring.
	BestMatchIndex int
}

// ConstellationBuilder assembles T satellites into P planes per the Walker
// parameters, wires the permanent intra-plane ring and the temporary
// inter-plane ladder, and schedules the first LinkMaintainer tick.
type ConstellationBuilder struct {
	Registry  *Registry
	Bus       *TraceBus
	Scheduler Scheduler
	Epoch     time.Time

	OnConnect    func(a, b *OpticalDevice)
	OnDisconnect func(a, b *OpticalDevice, ch *OpticalChannel)
	OnReadyBreak func(ch *OpticalChannel, headroomSin float64)

	ErrorSeed int64
}

// Build runs the full construction algorithm from 4.E.
func (cb *ConstellationBuilder) Build(cfg ScenarioConfig) (*BuildResult, error) {
	c := cfg.Constellation
	if c.P <= 0 || c.T%c.P != 0 {
		return nil, fmt.Errorf("core: T=%d is not a multiple of P=%d", c.T, c.P)
	}
	n := c.T / c.P
	dTheta := 360.0 / float64(n)
	dOmega := 360.0 * float64(c.F) / float64(c.T)
	raanSpan := 360.0
	if c.Type == WalkerSTAR {
		raanSpan = 180.0
	}

	mac, err := ParseMAC(cfg.Device.DefaultMAC)
	if err != nil {
		return nil, err
	}
	dataRate, err := ParseDataRate(cfg.Device.DataRate)
	if err != nil {
		return nil, err
	}
	errModel := NewBernoulliErrorModel(cfg.Device.ErrorRate, cb.ErrorSeed)

	nodesByID := make([]*Node, c.T)
	bestMatch := -1
	bestDiff := math.Inf(1)

	// 2/3. Create T nodes with installed orbital elements; track the DELTA
	// best-match index while doing so.
	for i := 0; i < c.P; i++ {
		for j := 0; j < n; j++ {
			fDeg := math.Mod(cfg.Wizard.FDeg+dOmega*float64(i)+dTheta*float64(j), 360.0)
			raanDeg := cfg.Wizard.RAANDeg + raanSpan/float64(c.P)*float64(i)

			elements, err := NewOrbitalElements(cfg.Wizard.AKm, cfg.Wizard.E, cfg.Wizard.IDeg, cfg.Wizard.WDeg, raanDeg, fDeg)
			if err != nil {
				return nil, err
			}
			mobility := NewSatelliteMobility(elements, cb.Scheduler, cb.Epoch)

			name := SatelliteName(i, j)
			node := &Node{ID: i*n + j, Name: name, Plane: i, Slot: j, Mobility: mobility}
			nodesByID[node.ID] = node
			cb.Registry.AddNode(node)

			if c.Type == WalkerDELTA && i == c.P-1 {
				theta := fDeg
				if fDeg > cfg.Wizard.FDeg+180 {
					theta = fDeg - 360
				}
				diff := math.Mod(math.Abs(cfg.Wizard.FDeg-theta), 360.0)
				if diff < bestDiff {
					bestDiff = diff
					bestMatch = j
				}
			}
		}
	}

	// 4. Four devices per node.
	for _, node := range nodesByID {
		for _, dir := range []Direction{DirRight, DirLeft, DirForward, DirBackward} {
			devName := DeviceName(node.Name, dir)
			dev := NewOpticalDevice(devName, mac, dir, dataRate, cfg.Device.QueueCapacity, cb.Scheduler, cb.Bus, errModel)
			dev.Node = node
			dev.WavelengthM = cfg.Device.WavelengthNm * 1e-9
			dev.TxPowerDBm = cfg.Device.TxPowerDBm
			dev.TxGainDB = cfg.Device.TxGainDB
			dev.RxGainDB = cfg.Device.RxGainDB
			dev.RxSensitivityDBm = cfg.Device.RxSensitivityDBm
			dev.Checksum = cfg.Device.Checksum
			node.Devices[dir] = dev
			cb.Registry.AddDevice(dev)
		}
	}

	maintainer := newLinkMaintainer(cb.Registry, cb.Bus, cb.Scheduler, nodesByID, n, c.P, cfg.Runtime.LatLimitDeg, time.Duration(cfg.Runtime.UpdateIntervalSecs*float64(time.Second)), cb.OnConnect, cb.OnDisconnect, cb.OnReadyBreak)

	// 5. Permanent intra-plane ring: S{i}{j}/F <-> S{i}{(j+1)%N}/B.
	for i := 0; i < c.P; i++ {
		for j := 0; j < n; j++ {
			a := nodesByID[i*n+j].Device(DirForward)
			b := nodesByID[i*n+(j+1)%n].Device(DirBackward)
			chName := fmt.Sprintf("ring-%s-%s", a.Name, b.Name)
			ch := NewOpticalChannel(chName, ChannelForever, cfg.Runtime.LatLimitDeg, cb.Scheduler, cb.Bus)
			cb.Registry.AddChannel(ch)
			ch.Attach(a)
			ch.Attach(b)
		}
	}

	// 6. Temporary inter-plane ladder: S{i}{j}/R <-> S{i+1}{j}/L for i in [0,P-1).
	for i := 0; i < c.P-1; i++ {
		for j := 0; j < n; j++ {
			a := nodesByID[i*n+j].Device(DirRight)
			b := nodesByID[(i+1)*n+j].Device(DirLeft)
			chName := fmt.Sprintf("ladder-%s-%s", a.Name, b.Name)
			ch := NewOpticalChannel(chName, ChannelTemporary, cfg.Runtime.LatLimitDeg, cb.Scheduler, cb.Bus)
			ch.SetCallbacks(cb.OnConnect, cb.OnDisconnect, cb.OnReadyBreak)
			cb.Registry.AddChannel(ch)

			aLat := a.Node.Mobility.LatitudeDeg()
			bLat := b.Node.Mobility.LatitudeDeg()
			if aLat > cfg.Runtime.LatLimitDeg || bLat > cfg.Runtime.LatLimitDeg {
				maintainer.seedSparePolar(ch, a, b, aLat > cfg.Runtime.LatLimitDeg, bLat > cfg.Runtime.LatLimitDeg)
			} else {
				ch.Attach(a)
				ch.Attach(b)
			}
		}
	}

	cb.Scheduler.Schedule(maintainer.interval, maintainer.Tick)

	return &BuildResult{Registry: cb.Registry, Maintainer: maintainer, BestMatchIndex: bestMatch}, nil
}
