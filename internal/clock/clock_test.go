package clock

import (
	"testing"
	"time"
)

func TestRealNow(t *testing.T) {
	clk := Real{}
	if clk.Now().IsZero() {
		t.Fatalf("expected non-zero time")
	}
}

func TestFakeAdvance(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	clk := NewFake(start)

	if !clk.Now().Equal(start) {
		t.Fatalf("expected start time")
	}

	clk.Advance(1500 * time.Millisecond)
	want := start.Add(1500 * time.Millisecond)
	if !clk.Now().Equal(want) {
		t.Fatalf("expected %v got %v", want, clk.Now())
	}
}

func TestFakeFiresInScheduleOrder(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	clk := NewFake(start)

	var order []string
	var firedAt []time.Time
	clk.AfterFunc(3*time.Second, func() { order = append(order, "c"); firedAt = append(firedAt, clk.Now()) })
	clk.AfterFunc(1*time.Second, func() { order = append(order, "a"); firedAt = append(firedAt, clk.Now()) })
	clk.AfterFunc(2*time.Second, func() { order = append(order, "b"); firedAt = append(firedAt, clk.Now()) })

	clk.Advance(2 * time.Second)
	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Fatalf("unexpected order after 2s: %v", order)
	}
	if !firedAt[0].Equal(start.Add(time.Second)) {
		t.Fatalf("callback should observe its due time, got %v", firedAt[0])
	}
	clk.Advance(time.Second)
	if len(order) != 3 || order[2] != "c" {
		t.Fatalf("unexpected order after 3s: %v", order)
	}
}

func TestFakeRescheduleFromCallback(t *testing.T) {
	clk := NewFake(time.Unix(0, 0))
	count := 0
	var tick func()
	tick = func() {
		count++
		clk.AfterFunc(time.Second, tick)
	}
	clk.AfterFunc(time.Second, tick)

	clk.Advance(5 * time.Second)
	if count != 5 {
		t.Fatalf("expected 5 ticks, got %d", count)
	}
	if clk.Pending() != 1 {
		t.Fatalf("expected one pending timer, got %d", clk.Pending())
	}
}

func TestFakeStop(t *testing.T) {
	clk := NewFake(time.Unix(0, 0))
	fired := false
	tm := clk.AfterFunc(time.Second, func() { fired = true })
	if !tm.Stop() {
		t.Fatalf("expected Stop to report success")
	}
	if tm.Stop() {
		t.Fatalf("second Stop should report false")
	}
	clk.Advance(2 * time.Second)
	if fired {
		t.Fatalf("stopped timer fired")
	}
}
