package testfixtures

import (
	"testing"
	"time"
)

func TestClockDefaultsToReferenceTime(t *testing.T) {
	clock := NewClock(time.Time{})
	if !clock.Now().Equal(ReferenceTime()) {
		t.Fatalf("expected ReferenceTime, got %v", clock.Now())
	}
}

func TestClockAdvanceDaysKeepsWallClock(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// The night of 2024-03-31 is only 23 hours long in Berlin.
	clock := NewClock(time.Date(2024, time.March, 30, 23, 30, 0, 0, berlin))

	next := clock.AdvanceDays(1)
	if next.Day() != 31 || next.Hour() != 23 || next.Minute() != 30 {
		t.Fatalf("expected 2024-03-31 23:30, got %v", next)
	}
	if got := next.Sub(time.Date(2024, time.March, 30, 23, 30, 0, 0, berlin)); got != 23*time.Hour {
		t.Fatalf("expected a 23h step across the DST change, got %v", got)
	}
}

func TestClockNowFunc(t *testing.T) {
	clock := NewClock(time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC))
	nowFn := clock.NowFunc()

	clock.Advance(90 * time.Minute)
	if got := nowFn(); !got.Equal(time.Date(2024, time.January, 1, 1, 30, 0, 0, time.UTC)) {
		t.Fatalf("expected NowFunc to track Advance, got %v", got)
	}

	var nilClock *Clock
	if nilClock.NowFunc() == nil {
		t.Fatal("expected a fallback time source for a nil clock")
	}
}
