package punishments

import (
	"testing"
	"time"
)

func TestFloodLimiterSlidingWindow(t *testing.T) {
	now := t0
	f := NewFloodLimiterWithClock(3, time.Minute, func() time.Time { return now })

	for i := 0; i < 3; i++ {
		if !f.Allow("1.1.1.1") {
			t.Fatalf("attempt %d rejected", i)
		}
	}
	if f.Allow("1.1.1.1") {
		t.Error("fourth attempt inside the window allowed")
	}
	// Other addresses have their own budget.
	if !f.Allow("2.2.2.2") {
		t.Error("unrelated address rejected")
	}

	// The window slides: old attempts age out.
	now = now.Add(61 * time.Second)
	if !f.Allow("1.1.1.1") {
		t.Error("attempt rejected after the window passed")
	}
}

func TestFloodLimiterClear(t *testing.T) {
	f := NewFloodLimiterWithClock(1, time.Minute, func() time.Time { return t0 })

	if !f.Allow("1.1.1.1") {
		t.Fatal("first attempt rejected")
	}
	if f.Allow("1.1.1.1") {
		t.Fatal("second attempt allowed")
	}
	f.Clear("1.1.1.1")
	if !f.Allow("1.1.1.1") {
		t.Error("attempt rejected after Clear")
	}
}

func TestFloodLimiterDisabled(t *testing.T) {
	f := NewFloodLimiterWithClock(0, time.Minute, func() time.Time { return t0 })
	for i := 0; i < 100; i++ {
		if !f.Allow("1.1.1.1") {
			t.Fatal("disabled limiter rejected an attempt")
		}
	}
}
