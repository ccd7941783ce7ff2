package netpiano

import (
	"testing"
	"time"
)

func newTestSession(t *testing.T, fb *fakeBroker) *Session {
	t.Helper()
	s := NewSession(newBrokerClient(t, fb), nil, testLogger())
	t.Cleanup(s.Close)
	return s
}

func TestSessionKeyPressPublishes(t *testing.T) {
	fb := startFakeBroker(t)
	s := newTestSession(t, fb)
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	s.KeyDown("a") // bound to c4 in the default catalog
	msg := fb.waitMessage(t)
	if msg.Note != "c4" || !msg.IsStart() {
		t.Fatalf("broker received %+v, want c4 start", msg)
	}
	if msg.Volume == nil || *msg.Volume != DefaultVolume {
		t.Errorf("start volume = %v, want %d", msg.Volume, DefaultVolume)
	}

	s.KeyUp("a")
	msg = fb.waitMessage(t)
	if msg.Note != "c4" || !msg.IsStop() {
		t.Fatalf("broker received %+v, want c4 stop", msg)
	}
	if msg.Duration == nil || *msg.Duration < 0 {
		t.Errorf("stop duration = %v, want >= 0", msg.Duration)
	}
	if s.Keyboard().ActiveCount() != 0 {
		t.Errorf("ActiveCount() = %d after release, want 0", s.Keyboard().ActiveCount())
	}
}

func TestSessionAutorepeatPublishesOnce(t *testing.T) {
	fb := startFakeBroker(t)
	s := newTestSession(t, fb)
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	s.KeyDown("s")
	s.KeyDown("s")
	s.KeyDown("s")
	fb.waitMessage(t) // the single start

	s.KeyUp("s")
	msg := fb.waitMessage(t)
	if !msg.IsStop() {
		t.Fatalf("second message = %+v, want the stop", msg)
	}
	select {
	case extra := <-fb.received:
		t.Errorf("unexpected extra message %+v: autorepeat must publish once", extra)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSessionUnknownBindingIgnored(t *testing.T) {
	fb := startFakeBroker(t)
	s := newTestSession(t, fb)
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	s.KeyDown("z")
	s.KeyUp("z")
	if s.Keyboard().ActiveCount() != 0 {
		t.Errorf("unmapped key created a press")
	}
	select {
	case msg := <-fb.received:
		t.Errorf("unmapped key published %+v", msg)
	case <-time.After(100 * time.Millisecond):
	}
	if entries := s.Publisher().DebugLog(); len(entries) != 0 {
		t.Errorf("unmapped key recorded %d publish attempts", len(entries))
	}
}

func TestSessionVolumeClampAndRepublishPolicy(t *testing.T) {
	fb := startFakeBroker(t)
	s := newTestSession(t, fb)
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if v := s.SetVolume(150); v != MaxVolume {
		t.Fatalf("SetVolume(150) = %d, want %d", v, MaxVolume)
	}
	msg := fb.waitMessage(t)
	if !msg.IsVolumeOnly() || msg.Volume == nil || *msg.Volume != MaxVolume {
		t.Fatalf("broker received %+v, want volume-only %d", msg, MaxVolume)
	}

	// Same clamped value again: not republished.
	s.SetVolume(120)
	select {
	case extra := <-fb.received:
		t.Errorf("unchanged volume republished: %+v", extra)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSessionForceClear(t *testing.T) {
	fb := startFakeBroker(t)
	s := newTestSession(t, fb)
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	s.KeyDown("a") // c4
	s.KeyDown("d") // e4
	fb.waitMessage(t)
	fb.waitMessage(t)

	s.ForceClear()
	first := fb.waitMessage(t)
	second := fb.waitMessage(t)
	if !first.IsStop() || !second.IsStop() {
		t.Errorf("force clear published %+v and %+v, want two stops", first, second)
	}
	if s.Keyboard().ActiveCount() != 0 {
		t.Errorf("ActiveCount() = %d after force clear, want 0", s.Keyboard().ActiveCount())
	}
}

func TestSessionMIDIInput(t *testing.T) {
	fb := startFakeBroker(t)
	s := newTestSession(t, fb)
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	s.MIDIDown(60) // C4
	msg := fb.waitMessage(t)
	if msg.Note != "c4" || !msg.IsStart() {
		t.Fatalf("broker received %+v, want c4 start", msg)
	}
	s.MIDIUp(60)
	msg = fb.waitMessage(t)
	if msg.Note != "c4" || !msg.IsStop() {
		t.Fatalf("broker received %+v, want c4 stop", msg)
	}

	// Keys outside the catalog are ignored.
	s.MIDIDown(21)
	if s.Keyboard().ActiveCount() != 0 {
		t.Error("out-of-catalog MIDI key created a press")
	}
}

func TestSessionOfflinePressStillClears(t *testing.T) {
	fb := startFakeBroker(t)
	s := newTestSession(t, fb) // never started: disconnected

	s.KeyDown("a")
	s.KeyUp("a")

	if s.Keyboard().ActiveCount() != 0 {
		t.Error("press state corrupted by failed publishes")
	}
	entries := s.Publisher().DebugLog()
	if len(entries) != 2 {
		t.Fatalf("debug log has %d entries, want 2 dropped attempts", len(entries))
	}
	for _, e := range entries {
		if e.Err == nil {
			t.Errorf("attempt %+v recorded without error while disconnected", e.Message)
		}
	}
}

func TestSessionCloseIdempotent(t *testing.T) {
	fb := startFakeBroker(t)
	s := newTestSession(t, fb)
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.KeyDown("a")
	s.Close()
	s.Close() // must not panic
	if s.Keyboard().ActiveCount() != 0 {
		t.Error("Close left held notes behind")
	}
}
