package core

import (
	"sync"
	"time"
)

// TxState is the OpticalDevice transmit finite-state machine's state.
type TxState int

const (
	StateReady TxState = iota
	StateBusy
)

// OpticalDevice is one directional optical port owned by a Node. It
// references at most one OpticalChannel through a plain (non-owning) field;
// ownership of every device lives in the Registry arena (see the design
// note on cyclic references).
type OpticalDevice struct {
	mu sync.Mutex

	Name string
	MAC  MACAddress
	Dir  Direction
	Node *Node

	DataRateBps float64
	QueueCap    int
	Checksum    bool

	TxGainDB, RxGainDB           float64
	WavelengthM                  float64
	TxPowerDBm, RxSensitivityDBm float64

	scheduler Scheduler
	bus       *TraceBus
	errModel  ErrorModel

	state    TxState
	queue    []*Frame
	inFlight *Frame
	channel  *OpticalChannel
	linkUp   bool

	linkChangeCallbacks []func(up bool)
	receiveFn           func(*Frame)
	promiscFn           func(*Frame)
}

// NewOpticalDevice constructs a port in the READY state with an empty queue.
func NewOpticalDevice(name string, mac MACAddress, dir Direction, dataRateBps float64, queueCap int, scheduler Scheduler, bus *TraceBus, errModel ErrorModel) *OpticalDevice {
	return &OpticalDevice{
		Name:        name,
		MAC:         mac,
		Dir:         dir,
		DataRateBps: dataRateBps,
		QueueCap:    queueCap,
		scheduler:   scheduler,
		bus:         bus,
		errModel:    errModel,
		state:       StateReady,
	}
}

// SetReceiveCallback installs the callback invoked on MacRx (non-OtherHost).
func (d *OpticalDevice) SetReceiveCallback(fn func(*Frame)) { d.receiveFn = fn }

// SetPromiscCallback installs the callback invoked on every successfully
// decoded frame, regardless of destination.
func (d *OpticalDevice) SetPromiscCallback(fn func(*Frame)) { d.promiscFn = fn }

// AddLinkChangeCallback registers fn to run on every Attach/Detach. The
// reference implementation stubs this out despite its public signature;
// this module honors it (an Open Question resolved in DESIGN.md).
func (d *OpticalDevice) AddLinkChangeCallback(fn func(up bool)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.linkChangeCallbacks = append(d.linkChangeCallbacks, fn)
}

// Channel returns the currently attached channel, or nil.
func (d *OpticalDevice) Channel() *OpticalChannel {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.channel
}

// LinkUp reports whether the device currently has an attached channel.
func (d *OpticalDevice) LinkUp() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.linkUp
}

// attach sets the device's channel reference and fires link-up/link-change.
// Called by OpticalChannel.Attach; devices never attach themselves.
func (d *OpticalDevice) attach(ch *OpticalChannel) {
	d.mu.Lock()
	d.channel = ch
	d.linkUp = true
	callbacks := append([]func(bool){}, d.linkChangeCallbacks...)
	d.mu.Unlock()

	d.trace(LinkChange, nil, 0)
	for _, fn := range callbacks {
		fn(true)
	}
}

// detach clears the device's channel reference and fires link-change.
func (d *OpticalDevice) detach() {
	d.mu.Lock()
	d.channel = nil
	d.linkUp = false
	callbacks := append([]func(bool){}, d.linkChangeCallbacks...)
	d.mu.Unlock()

	d.trace(LinkChange, nil, 0)
	for _, fn := range callbacks {
		fn(false)
	}
}

// Send frames payload as an Ethernet II packet to dst with the given
// protocol, enqueues it, and kicks the transmit FSM if the device is READY.
// It never blocks and returns false on every drop path.
func (d *OpticalDevice) Send(payload []byte, dst MACAddress, protocol uint16) bool {
	d.mu.Lock()
	if !d.linkUp || d.channel == nil {
		d.mu.Unlock()
		d.trace(MacTxDrop, nil, 0)
		return false
	}

	frame := EncodeFrame(payload, d.MAC, dst, protocol, d.Checksum)

	if d.QueueCap > 0 && len(d.queue) >= d.QueueCap {
		d.mu.Unlock()
		d.trace(MacTxDrop, frame, 0)
		return false
	}

	d.queue = append(d.queue, frame)
	ready := d.state == StateReady
	d.mu.Unlock()

	d.trace(MacTx, frame, 0)
	if ready {
		d.trace(Sniffer, frame, 0)
		d.trace(PromiscSniffer, frame, 0)
		d.transmitStart()
	}
	return true
}

// transmitStart dequeues the head frame, transitions READY->BUSY, schedules
// transmitComplete after txTime, and hands the frame to the channel.
func (d *OpticalDevice) transmitStart() {
	d.mu.Lock()
	if d.state != StateReady || len(d.queue) == 0 {
		d.mu.Unlock()
		return
	}
	frame := d.queue[0]
	d.queue = d.queue[1:]
	d.state = StateBusy
	d.inFlight = frame
	ch := d.channel
	rate := d.DataRateBps
	d.mu.Unlock()

	d.trace(PhyTxBegin, frame, 0)

	txTime := txDuration(frame, rate)
	d.scheduler.Schedule(txTime, d.transmitComplete)

	if ch == nil || !ch.send(d, frame, txTime) {
		d.trace(PhyTxDrop, frame, 0)
	}
}

// transmitComplete is the scheduled continuation of transmitStart. It
// tolerates a device that has since been detached: it just dequeues or idles.
func (d *OpticalDevice) transmitComplete() {
	d.mu.Lock()
	frame := d.inFlight
	d.inFlight = nil
	d.state = StateReady
	var next *Frame
	if len(d.queue) > 0 {
		next = d.queue[0]
	}
	d.mu.Unlock()

	if frame != nil {
		d.trace(PhyTxEnd, frame, 0)
	}
	if next != nil {
		d.trace(Sniffer, next, 0)
		d.trace(PromiscSniffer, next, 0)
		d.transmitStart()
	}
}

// Receive is the scheduled continuation of a peer's channel.send. It
// verifies link state first: a Receive scheduled before detachment still
// fires, but is dropped if the link is now down.
func (d *OpticalDevice) Receive(frame *Frame) {
	d.mu.Lock()
	up := d.linkUp
	d.mu.Unlock()

	if !up {
		d.trace(MacRxDrop, frame, 0)
		return
	}

	d.trace(PhyRxEnd, frame, 0)

	if d.errModel != nil && d.errModel.ShouldCorrupt() {
		d.trace(PhyRxDrop, frame, 0)
		return
	}
	if !frame.VerifyFCS() {
		d.trace(PhyRxDrop, frame, 0)
		return
	}

	pktType := ClassifyPacketType(frame.Dst, d.MAC)

	d.trace(PromiscSniffer, frame, 0)
	d.trace(MacPromiscRx, frame, 0)
	if d.promiscFn != nil {
		d.promiscFn(frame)
	}

	if pktType != PacketOtherHost {
		d.trace(MacRx, frame, 0)
		d.trace(Sniffer, frame, 0)
		if d.receiveFn != nil {
			d.receiveFn(frame)
		}
	}
}

func (d *OpticalDevice) trace(source TraceSource, frame *Frame, headroom float64) {
	if d.bus == nil {
		return
	}
	d.bus.Publish(TraceEvent{Source: source, EntityName: d.Name, At: d.scheduler.Now(), Frame: frame, Headroom: headroom})
}

// txDuration is size (bits) / data rate (bits/sec) as a time.Duration.
func txDuration(frame *Frame, bps float64) time.Duration {
	if bps <= 0 {
		return 0
	}
	bits := float64(len(frame.Bytes())) * 8
	return time.Duration(bits / bps * float64(time.Second))
}
