package core

import (
	"context"
	"testing"
	"time"

	"github.com/signalsfoundry/constellation-simulator/eventsim"
)

func newTestDevice(t *testing.T, name string, dir Direction, sched Scheduler, bus *TraceBus, queueCap int) *OpticalDevice {
	t.Helper()
	mac, err := ParseMAC("02:00:00:00:00:01")
	if err != nil {
		t.Fatalf("ParseMAC: %v", err)
	}
	dev := NewOpticalDevice(name, mac, dir, 1e9, queueCap, sched, bus, nil)
	dev.WavelengthM = 1550e-9
	dev.TxPowerDBm = 20
	dev.TxGainDB = 120
	dev.RxGainDB = 120
	dev.RxSensitivityDBm = -40
	return dev
}

func TestSendDropsWhenLinkDown(t *testing.T) {
	start := time.Unix(0, 0)
	sched := eventsim.NewScheduler(start)
	bus := NewTraceBus()
	var drops []TraceEvent
	bus.Subscribe(MacTxDrop, func(ev TraceEvent) { drops = append(drops, ev) })

	dev := newTestDevice(t, "dev", DirRight, sched, bus, 4)

	if dev.Send([]byte("hello"), BroadcastMAC, 0x0800) {
		t.Fatal("Send returned true for a device with no attached channel")
	}
	if len(drops) != 1 {
		t.Fatalf("MacTxDrop fired %d times, want 1", len(drops))
	}
}

func TestSendDropsOnQueueOverflow(t *testing.T) {
	start := time.Unix(0, 0)
	sched := eventsim.NewScheduler(start)
	bus := NewTraceBus()

	a := newTestDevice(t, "a", DirRight, sched, bus, 1)
	b := newTestDevice(t, "b", DirLeft, sched, bus, 1)
	a.Node = &Node{Name: "A", Mobility: FixedMobility{Pos: Vec3{X: 7000000}}}
	b.Node = &Node{Name: "B", Mobility: FixedMobility{Pos: Vec3{X: 7000100}}}

	ch := NewOpticalChannel("ab", ChannelForever, 60, sched, bus)
	ch.Attach(a)
	ch.Attach(b)

	var drops int
	bus.Subscribe(MacTxDrop, func(TraceEvent) { drops++ })

	if !a.Send([]byte("m1"), b.MAC, 0x0800) {
		t.Fatal("first send should succeed")
	}
	if !a.Send([]byte("m2"), b.MAC, 0x0800) {
		t.Fatal("second send should be queued, not dropped")
	}
	if a.Send([]byte("m3"), b.MAC, 0x0800) {
		t.Fatal("third send should overflow the capacity-1 queue")
	}
	if drops != 1 {
		t.Fatalf("MacTxDrop fired %d times, want 1", drops)
	}
}

func TestTransmitFSMDeliversAcrossChannel(t *testing.T) {
	start := time.Unix(0, 0)
	sched := eventsim.NewScheduler(start)
	bus := NewTraceBus()

	a := newTestDevice(t, "a", DirRight, sched, bus, 4)
	b := newTestDevice(t, "b", DirLeft, sched, bus, 4)
	a.Node = &Node{Name: "A", Mobility: FixedMobility{Pos: Vec3{X: 7000000}}}
	b.Node = &Node{Name: "B", Mobility: FixedMobility{Pos: Vec3{X: 7000100}}}

	ch := NewOpticalChannel("ab", ChannelForever, 60, sched, bus)
	ch.Attach(a)
	ch.Attach(b)

	var received *Frame
	b.SetReceiveCallback(func(f *Frame) { received = f })

	if !a.Send([]byte("hello"), b.MAC, 0x0800) {
		t.Fatal("Send failed")
	}

	sched.Run(context.Background())

	if received == nil {
		t.Fatal("peer never received the frame")
	}
}

func TestSendAndReceiveFireSnifferTraces(t *testing.T) {
	start := time.Unix(0, 0)
	sched := eventsim.NewScheduler(start)
	bus := NewTraceBus()

	a := newTestDevice(t, "a", DirRight, sched, bus, 4)
	b := newTestDevice(t, "b", DirLeft, sched, bus, 4)
	a.Node = &Node{Name: "A", Mobility: FixedMobility{Pos: Vec3{X: 7000000}}}
	b.Node = &Node{Name: "B", Mobility: FixedMobility{Pos: Vec3{X: 7000100}}}

	ch := NewOpticalChannel("ab", ChannelForever, 60, sched, bus)
	ch.Attach(a)
	ch.Attach(b)

	var txSniffer, txPromiscSniffer, rxSniffer, rxPromiscSniffer int
	bus.Subscribe(Sniffer, func(ev TraceEvent) {
		switch ev.EntityName {
		case a.Name:
			txSniffer++
		case b.Name:
			rxSniffer++
		}
	})
	bus.Subscribe(PromiscSniffer, func(ev TraceEvent) {
		switch ev.EntityName {
		case a.Name:
			txPromiscSniffer++
		case b.Name:
			rxPromiscSniffer++
		}
	})

	if !a.Send([]byte("hello"), b.MAC, 0x0800) {
		t.Fatal("Send failed")
	}

	sched.Run(context.Background())

	if txSniffer != 1 {
		t.Fatalf("sender Sniffer fired %d times, want 1", txSniffer)
	}
	if txPromiscSniffer != 1 {
		t.Fatalf("sender PromiscSniffer fired %d times, want 1", txPromiscSniffer)
	}
	if rxSniffer != 1 {
		t.Fatalf("receiver Sniffer fired %d times, want 1", rxSniffer)
	}
	if rxPromiscSniffer != 1 {
		t.Fatalf("receiver PromiscSniffer fired %d times, want 1", rxPromiscSniffer)
	}
}

func TestAddLinkChangeCallbackFiresOnAttachAndDetach(t *testing.T) {
	start := time.Unix(0, 0)
	sched := eventsim.NewScheduler(start)
	bus := NewTraceBus()

	a := newTestDevice(t, "a", DirRight, sched, bus, 4)
	b := newTestDevice(t, "b", DirLeft, sched, bus, 4)
	a.Node = &Node{Name: "A", Mobility: FixedMobility{}}
	b.Node = &Node{Name: "B", Mobility: FixedMobility{}}

	var states []bool
	a.AddLinkChangeCallback(func(up bool) { states = append(states, up) })

	ch := NewOpticalChannel("ab", ChannelForever, 60, sched, bus)
	ch.Attach(a)
	ch.Attach(b)
	ch.Detach()

	if len(states) != 2 || states[0] != true || states[1] != false {
		t.Fatalf("link-change callback states = %v, want [true false]", states)
	}
}
