package netpiano

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// SourceID distinguishes which input surface holds a press. The press
// itself is keyed by note, so two sources can never hold the same note.
type SourceID string

const (
	SourceKeyboard SourceID = "keyboard"
	SourcePointer  SourceID = "pointer"
	SourceMIDI     SourceID = "midi"
)

// Volume bounds. Raw values outside the range are clamped, not rejected.
const (
	MinVolume     = 0
	MaxVolume     = 100
	DefaultVolume = 80
)

// ActivePress records a currently held note: which source pressed it and
// when. StartedAt carries Go's monotonic clock reading, so wall-clock
// adjustments cannot skew the duration computed on release.
type ActivePress struct {
	NoteID    string
	Source    SourceID
	StartedAt time.Time
}

// NoteEvent is an immutable note transition ready for publishing. Duration
// is meaningful only on stop events and is always >= 0. Volume is the
// snapshot taken when the event was created.
type NoteEvent struct {
	NoteID   string
	Action   string
	Duration time.Duration
	Volume   int
	Source   SourceID
}

// Keyboard tracks which notes are held and owns the volume state. Durations
// are always computed as a timestamp difference at release time, never by
// accumulating a polling interval.
type Keyboard struct {
	mu     sync.Mutex
	active map[string]ActivePress
	volume int
	now    func() time.Time
	logger *slog.Logger
}

// NewKeyboard returns a keyboard with no held notes and the default volume.
// A nil logger falls back to slog.Default().
func NewKeyboard(lgr *slog.Logger) *Keyboard {
	if lgr == nil {
		lgr = slog.Default()
	}
	return &Keyboard{
		active: make(map[string]ActivePress),
		volume: DefaultVolume,
		now:    time.Now,
		logger: lgr,
	}
}

// PressStart begins holding a note. If the note is already held by any
// source this is a no-op returning ok=false; keyboard autorepeat and a
// pointer pressing a key the keyboard already holds both land here.
func (k *Keyboard) PressStart(noteID string, source SourceID) (NoteEvent, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if _, held := k.active[noteID]; held {
		k.logger.Debug("press ignored, note already held", "note", noteID, "source", source)
		return NoteEvent{}, false
	}
	k.active[noteID] = ActivePress{
		NoteID:    noteID,
		Source:    source,
		StartedAt: k.now(),
	}
	return NoteEvent{
		NoteID: noteID,
		Action: ActionStart,
		Volume: k.volume,
		Source: source,
	}, true
}

// PressEnd releases a note and returns the completed stop event with the
// held duration. A release with no matching press (e.g. after a forced
// clear) is a no-op returning ok=false. Releases are keyed by note, not by
// source.
func (k *Keyboard) PressEnd(noteID string, source SourceID) (NoteEvent, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	press, held := k.active[noteID]
	if !held {
		k.logger.Debug("release ignored, note not held", "note", noteID, "source", source)
		return NoteEvent{}, false
	}
	delete(k.active, noteID)
	return k.stopEventLocked(press), true
}

// ForceClearAll releases every held note at once, returning one stop event
// per note. Used when the input surface can no longer observe releases:
// focus loss, pointer leaving the key area, teardown.
func (k *Keyboard) ForceClearAll() []NoteEvent {
	k.mu.Lock()
	defer k.mu.Unlock()
	if len(k.active) == 0 {
		return nil
	}
	events := make([]NoteEvent, 0, len(k.active))
	for id, press := range k.active {
		events = append(events, k.stopEventLocked(press))
		delete(k.active, id)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].NoteID < events[j].NoteID })
	k.logger.Debug("force-cleared held notes", "count", len(events))
	return events
}

func (k *Keyboard) stopEventLocked(press ActivePress) NoteEvent {
	d := k.now().Sub(press.StartedAt)
	if d < 0 {
		d = 0
	}
	return NoteEvent{
		NoteID:   press.NoteID,
		Action:   ActionStop,
		Duration: d,
		Volume:   k.volume,
		Source:   press.Source,
	}
}

// SetVolume clamps raw into [MinVolume, MaxVolume] and stores it. The
// second return reports whether the clamped value actually changed; callers
// republish only on change.
func (k *Keyboard) SetVolume(raw int) (int, bool) {
	clamped := raw
	if clamped < MinVolume {
		clamped = MinVolume
	}
	if clamped > MaxVolume {
		clamped = MaxVolume
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	changed := clamped != k.volume
	k.volume = clamped
	return clamped, changed
}

// Volume returns the current volume.
func (k *Keyboard) Volume() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.volume
}

// IsActive reports whether the note is currently held.
func (k *Keyboard) IsActive(noteID string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	_, held := k.active[noteID]
	return held
}

// ActiveCount returns how many notes are currently held.
func (k *Keyboard) ActiveCount() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.active)
}

// ActiveNotes returns the ids of the currently held notes, sorted.
func (k *Keyboard) ActiveNotes() []string {
	k.mu.Lock()
	defer k.mu.Unlock()
	ids := make([]string, 0, len(k.active))
	for id := range k.active {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
