package eventsim

import (
	"context"
	"testing"
	"time"
)

func TestScheduleOrdersEventsByVirtualTime(t *testing.T) {
	start := time.Unix(0, 0)
	s := NewScheduler(start)

	var order []string
	s.Schedule(3*time.Second, func() { order = append(order, "third") })
	s.Schedule(1*time.Second, func() { order = append(order, "first") })
	s.Schedule(2*time.Second, func() { order = append(order, "second") })

	s.Run(context.Background())

	want := []string{"first", "second", "third"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %q, want %q", i, order[i], want[i])
		}
	}
}

func TestNowAdvancesToEachPoppedEvent(t *testing.T) {
	start := time.Unix(100, 0)
	s := NewScheduler(start)

	var seenAt time.Time
	s.Schedule(5*time.Second, func() { seenAt = s.Now() })
	s.Run(context.Background())

	want := start.Add(5 * time.Second)
	if !seenAt.Equal(want) {
		t.Errorf("Now() during callback = %v, want %v", seenAt, want)
	}
}

func TestCancelPreventsExecution(t *testing.T) {
	start := time.Unix(0, 0)
	s := NewScheduler(start)

	fired := false
	h := s.Schedule(time.Second, func() { fired = true })
	h.Cancel()
	s.Run(context.Background())

	if fired {
		t.Error("cancelled event fired")
	}
}

func TestScheduleDuringCallbackRunsInOrder(t *testing.T) {
	start := time.Unix(0, 0)
	s := NewScheduler(start)

	var order []int
	s.Schedule(time.Second, func() {
		order = append(order, 1)
		s.Schedule(time.Second, func() { order = append(order, 2) })
	})
	s.Run(context.Background())

	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("order = %v, want [1 2]", order)
	}
}

func TestStopHaltsRunAtHorizon(t *testing.T) {
	start := time.Unix(0, 0)
	s := NewScheduler(start)

	var fired []int
	s.Schedule(1*time.Second, func() { fired = append(fired, 1) })
	s.Schedule(2*time.Second, func() { fired = append(fired, 2) })
	s.Schedule(3*time.Second, func() { fired = append(fired, 3) })
	s.Stop(start.Add(2 * time.Second))

	s.Run(context.Background())

	if len(fired) != 2 || fired[0] != 1 || fired[1] != 2 {
		t.Fatalf("fired = %v, want [1 2]", fired)
	}
}

func TestScheduleWithContextDispatchesNormally(t *testing.T) {
	start := time.Unix(0, 0)
	s := NewScheduler(start)

	fired := false
	s.ScheduleWithContext("S0000", time.Second, func() { fired = true })
	s.Run(context.Background())

	if !fired {
		t.Error("ScheduleWithContext callback never fired")
	}
}

func TestPendingReflectsQueueDepth(t *testing.T) {
	start := time.Unix(0, 0)
	s := NewScheduler(start)

	if got := s.Pending(); got != 0 {
		t.Fatalf("Pending() = %d, want 0", got)
	}
	s.Schedule(time.Second, func() {})
	s.Schedule(2*time.Second, func() {})
	if got := s.Pending(); got != 2 {
		t.Fatalf("Pending() = %d, want 2", got)
	}
}
