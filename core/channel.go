package core

import (
	"math"
	"sync"
	"time"
)

// ChannelType distinguishes permanent intra-plane links from polar-gated
// inter-plane links.
type ChannelType int

const (
	ChannelForever ChannelType = iota
	ChannelTemporary
)

// unsetLatitude is the sentinel recorded for a slot that has never had a
// LatitudeCheck run against it, so the first check on a freshly attached
// channel never spuriously fires a ready-break (an impossible latitude
// sine, resolving the ambiguity the reference's single-value array
// initializer leaves open).
const unsetLatitude = -1.0

// OpticalChannel is an ordered pair of device slots. A channel with fewer
// than two attached devices is detached. Devices and channels hold only
// plain (non-owning) references to each other; the Registry arena owns the
// values.
type OpticalChannel struct {
	mu sync.Mutex

	Name string
	Type ChannelType

	slots       [2]*OpticalDevice
	lastLatSine [2]float64

	latLimitSin   float64
	hysteresisSin float64

	onConnect    func(a, b *OpticalDevice)
	onDisconnect func(a, b *OpticalDevice, ch *OpticalChannel)
	onReadyBreak func(ch *OpticalChannel, headroomSin float64)

	scheduler Scheduler
	bus       *TraceBus
}

// NewOpticalChannel builds a detached channel with the sin-encoded latitude
// limit and a 3-degree hysteresis band below it.
func NewOpticalChannel(name string, typ ChannelType, latLimitDeg float64, scheduler Scheduler, bus *TraceBus) *OpticalChannel {
	return &OpticalChannel{
		Name:          name,
		Type:          typ,
		lastLatSine:   [2]float64{unsetLatitude, unsetLatitude},
		latLimitSin:   math.Sin(deg2rad(latLimitDeg)),
		hysteresisSin: math.Sin(deg2rad(latLimitDeg - 3.0)),
		scheduler:     scheduler,
		bus:           bus,
	}
}

// SetCallbacks installs the three observability hooks fired on connect,
// disconnect and ready-break.
func (c *OpticalChannel) SetCallbacks(onConnect func(a, b *OpticalDevice), onDisconnect func(a, b *OpticalDevice, ch *OpticalChannel), onReadyBreak func(ch *OpticalChannel, headroomSin float64)) {
	c.onConnect = onConnect
	c.onDisconnect = onDisconnect
	c.onReadyBreak = onReadyBreak
}

// Attached reports whether both slots are occupied.
func (c *OpticalChannel) Attached() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.slots[0] != nil && c.slots[1] != nil
}

// Attach fills slot 0 if empty, else slot 1, records the endpoint's current
// latitude sine, and notifies the device. Attach on an already-full channel
// is a no-op.
func (c *OpticalChannel) Attach(dev *OpticalDevice) {
	c.mu.Lock()
	idx := -1
	switch {
	case c.slots[0] == nil:
		idx = 0
	case c.slots[1] == nil:
		idx = 1
	}
	if idx < 0 {
		c.mu.Unlock()
		return
	}
	c.slots[idx] = dev
	if dev.Node != nil && dev.Node.Mobility != nil {
		c.lastLatSine[idx] = dev.Node.Mobility.LatitudeSine()
	} else {
		c.lastLatSine[idx] = unsetLatitude
	}
	c.mu.Unlock()

	dev.attach(c)
}

// Detach clears both slots and latitude history and notifies both devices.
func (c *OpticalChannel) Detach() {
	c.mu.Lock()
	a, b := c.slots[0], c.slots[1]
	c.slots[0], c.slots[1] = nil, nil
	c.lastLatSine[0], c.lastLatSine[1] = unsetLatitude, unsetLatitude
	c.mu.Unlock()

	if a != nil {
		a.detach()
	}
	if b != nil {
		b.detach()
	}
}

// GetAnother returns the peer of self, or nil if self is not attached here.
func (c *OpticalChannel) GetAnother(self *OpticalDevice) *OpticalDevice {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.slots[0] == self:
		return c.slots[1]
	case c.slots[1] == self:
		return c.slots[0]
	default:
		return nil
	}
}

// send implements 4.D's channel.send: latitude gate for TEMPORARY channels,
// propagation-delay scheduling of Receive, Friis budgeting deferred to
// receiveAt.
func (c *OpticalChannel) send(sender *OpticalDevice, frame *Frame, txTime time.Duration) bool {
	receiver := c.GetAnother(sender)
	if receiver == nil {
		return false
	}

	if c.Type == ChannelTemporary {
		if !c.latitudeCheck(sender, receiver) {
			a, b := c.endpoints()
			if c.onDisconnect != nil {
				c.onDisconnect(a, b, c)
			}
			c.publishChannel(ChannelDisconnect, 0)
			return false
		}
	}

	d := sender.Node.Mobility.DistanceTo(receiver.Node.Mobility)
	delay := time.Duration(d / SpeedOfLight * float64(time.Second))
	nodeID := receiver.Node.Name

	c.scheduler.ScheduleWithContext(nodeID, delay+txTime, func() {
		c.receiveAt(sender, receiver, frame)
	})
	return true
}

// latitudeCheck runs the LatitudeCheck predicate from 4.D: both endpoints
// must be at or below the sine-encoded limit (strict > breaks the link).
// A ready-break warning fires only when an endpoint moved *toward* the
// limit (its sine increased relative to the last recorded reading) past
// the hysteresis threshold, matching the reference's `l > last_lat && l >
// threshold` conjunction. A satellite exiting the polar band with a
// decreasing latitude sine must not re-fire the warning.
func (c *OpticalChannel) latitudeCheck(a, b *OpticalDevice) bool {
	sa := a.Node.Mobility.LatitudeSine()
	sb := b.Node.Mobility.LatitudeSine()

	c.mu.Lock()
	var lastA, lastB float64
	if c.slots[0] == a {
		lastA = c.lastLatSine[0]
	} else if c.slots[1] == a {
		lastA = c.lastLatSine[1]
	}
	if c.slots[0] == b {
		lastB = c.lastLatSine[0]
	} else if c.slots[1] == b {
		lastB = c.lastLatSine[1]
	}
	limit := c.latLimitSin
	threshold := c.hysteresisSin

	if c.slots[0] == a {
		c.lastLatSine[0] = sa
	} else if c.slots[1] == a {
		c.lastLatSine[1] = sa
	}
	if c.slots[0] == b {
		c.lastLatSine[0] = sb
	} else if c.slots[1] == b {
		c.lastLatSine[1] = sb
	}
	c.mu.Unlock()

	ok := sa <= limit && sb <= limit
	if ok && ((sa > lastA && sa > threshold) || (sb > lastB && sb > threshold)) {
		headroom := limit - math.Max(sa, sb)
		if c.onReadyBreak != nil {
			c.onReadyBreak(c, headroom)
		}
		c.publishChannel(ChannelReadyBreak, headroom)
	}
	return ok
}

// receiveAt applies the Friis link budget at the instant of delivery and
// either invokes the receiver or silently drops the frame. A drop for
// insufficient receive power is neither logged nor traced.
func (c *OpticalChannel) receiveAt(sender, receiver *OpticalDevice, frame *Frame) {
	d := sender.Node.Mobility.DistanceTo(receiver.Node.Mobility)
	if d <= 0 {
		receiver.Receive(frame)
		return
	}
	rxPowerDbm := sender.TxPowerDBm + sender.TxGainDB +
		20*math.Log10(sender.WavelengthM/(4*math.Pi*d)) + receiver.RxGainDB
	if rxPowerDbm < receiver.RxSensitivityDBm {
		return
	}
	receiver.Receive(frame)
}

func (c *OpticalChannel) endpoints() (a, b *OpticalDevice) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.slots[0], c.slots[1]
}

func (c *OpticalChannel) publishChannel(source TraceSource, headroom float64) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(TraceEvent{Source: source, EntityName: c.Name, At: c.scheduler.Now(), Headroom: headroom})
}
