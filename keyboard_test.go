package netpiano

import (
	"log/slog"
	"os"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakeClock lets tests advance time explicitly.
type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestKeyboard(t *testing.T) (*Keyboard, *fakeClock) {
	t.Helper()
	k := NewKeyboard(testLogger())
	clock := newFakeClock()
	k.now = clock.Now
	return k, clock
}

func TestPressStartEndDuration(t *testing.T) {
	k, clock := newTestKeyboard(t)

	ev, ok := k.PressStart("c4", SourceKeyboard)
	if !ok {
		t.Fatal("PressStart returned ok=false for a fresh note")
	}
	if ev.Action != ActionStart {
		t.Errorf("start event action = %q, want %q", ev.Action, ActionStart)
	}
	if ev.Volume != DefaultVolume {
		t.Errorf("start event volume = %d, want %d", ev.Volume, DefaultVolume)
	}

	clock.Advance(500 * time.Millisecond)
	stop, ok := k.PressEnd("c4", SourceKeyboard)
	if !ok {
		t.Fatal("PressEnd returned ok=false for a held note")
	}
	if stop.Action != ActionStop {
		t.Errorf("stop event action = %q, want %q", stop.Action, ActionStop)
	}
	if stop.Duration != 500*time.Millisecond {
		t.Errorf("stop event duration = %s, want 500ms", stop.Duration)
	}
	if k.ActiveCount() != 0 {
		t.Errorf("ActiveCount() = %d after release, want 0", k.ActiveCount())
	}
}

func TestPressImmediateReleaseNonNegative(t *testing.T) {
	k, _ := newTestKeyboard(t)
	k.PressStart("c4", SourceKeyboard)
	stop, ok := k.PressEnd("c4", SourceKeyboard)
	if !ok {
		t.Fatal("PressEnd returned ok=false")
	}
	if stop.Duration < 0 {
		t.Errorf("duration = %s, want >= 0", stop.Duration)
	}
}

func TestPressStartIdempotent(t *testing.T) {
	k, clock := newTestKeyboard(t)

	if _, ok := k.PressStart("d4", SourceKeyboard); !ok {
		t.Fatal("first PressStart returned ok=false")
	}
	// keyboard autorepeat
	if _, ok := k.PressStart("d4", SourceKeyboard); ok {
		t.Error("second PressStart returned ok=true, want no-op")
	}
	// a second source targeting the same note
	if _, ok := k.PressStart("d4", SourcePointer); ok {
		t.Error("PressStart from another source returned ok=true, want no-op")
	}
	if k.ActiveCount() != 1 {
		t.Fatalf("ActiveCount() = %d, want 1", k.ActiveCount())
	}

	clock.Advance(200 * time.Millisecond)
	stop, ok := k.PressEnd("d4", SourceKeyboard)
	if !ok {
		t.Fatal("PressEnd returned ok=false")
	}
	if stop.Duration != 200*time.Millisecond {
		t.Errorf("duration = %s, want 200ms (measured from the first press)", stop.Duration)
	}
	if _, ok := k.PressEnd("d4", SourceKeyboard); ok {
		t.Error("second PressEnd returned ok=true, want no-op")
	}
}

func TestPressEndWithoutStart(t *testing.T) {
	k, _ := newTestKeyboard(t)
	if _, ok := k.PressEnd("e4", SourceKeyboard); ok {
		t.Error("PressEnd with no matching press returned ok=true, want no-op")
	}
}

func TestReleaseKeyedByNoteNotSource(t *testing.T) {
	k, _ := newTestKeyboard(t)
	k.PressStart("f4", SourceKeyboard)
	if _, ok := k.PressEnd("f4", SourcePointer); !ok {
		t.Error("release from a different source did not clear the press")
	}
	if k.IsActive("f4") {
		t.Error("note still active after release")
	}
}

func TestForceClearAll(t *testing.T) {
	k, clock := newTestKeyboard(t)

	k.PressStart("c4", SourceKeyboard)
	k.PressStart("e4", SourcePointer)
	clock.Advance(300 * time.Millisecond)

	events := k.ForceClearAll()
	if len(events) != 2 {
		t.Fatalf("ForceClearAll returned %d events, want 2", len(events))
	}
	for _, ev := range events {
		if ev.Action != ActionStop {
			t.Errorf("event for %s has action %q, want %q", ev.NoteID, ev.Action, ActionStop)
		}
		if ev.Duration != 300*time.Millisecond {
			t.Errorf("event for %s has duration %s, want 300ms", ev.NoteID, ev.Duration)
		}
	}
	if events[0].NoteID != "c4" || events[1].NoteID != "e4" {
		t.Errorf("events for notes %q, %q, want c4, e4", events[0].NoteID, events[1].NoteID)
	}
	if k.ActiveCount() != 0 {
		t.Errorf("ActiveCount() = %d after clear, want 0", k.ActiveCount())
	}
	if again := k.ForceClearAll(); again != nil {
		t.Errorf("second ForceClearAll returned %d events, want none", len(again))
	}
}

func TestSetVolumeClamp(t *testing.T) {
	k, _ := newTestKeyboard(t)

	if v, changed := k.SetVolume(150); v != MaxVolume || !changed {
		t.Errorf("SetVolume(150) = (%d, %t), want (%d, true)", v, changed, MaxVolume)
	}
	if v, changed := k.SetVolume(120); v != MaxVolume || changed {
		t.Errorf("SetVolume(120) = (%d, %t), want (%d, false): clamped value unchanged", v, changed, MaxVolume)
	}
	if v, changed := k.SetVolume(-5); v != MinVolume || !changed {
		t.Errorf("SetVolume(-5) = (%d, %t), want (%d, true)", v, changed, MinVolume)
	}
	if k.Volume() != MinVolume {
		t.Errorf("Volume() = %d, want %d", k.Volume(), MinVolume)
	}
}

func TestVolumeSnapshotOnEvents(t *testing.T) {
	k, _ := newTestKeyboard(t)
	k.SetVolume(33)
	ev, _ := k.PressStart("g4", SourceKeyboard)
	if ev.Volume != 33 {
		t.Errorf("start event volume = %d, want 33", ev.Volume)
	}
	k.SetVolume(77)
	stop, _ := k.PressEnd("g4", SourceKeyboard)
	if stop.Volume != 77 {
		t.Errorf("stop event volume = %d, want 77 (snapshot at emission)", stop.Volume)
	}
}
