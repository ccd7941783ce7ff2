package netpiano

import (
	"log/slog"
	"sync"

	"netpiano/notes"
)

// Session ties one keyboard, one publisher and one broker client into a
// single owned lifecycle: construct once, Start once, Close once. Input
// surfaces (terminal, pointer, MIDI) call the normalization methods below;
// none of them ever returns an error into the input path — publish failures
// are reported through the client's error and result channels and the debug
// log.
type Session struct {
	catalog *notes.Catalog
	keys    *Keyboard
	pub     *Publisher
	client  *Client
	logger  *slog.Logger

	closeOnce sync.Once
}

// NewSession builds a session around a client. A nil catalog gets the
// default layout, a nil logger slog.Default().
func NewSession(client *Client, catalog *notes.Catalog, lgr *slog.Logger) *Session {
	if catalog == nil {
		catalog = notes.Default()
	}
	if lgr == nil {
		lgr = slog.Default()
	}
	return &Session{
		catalog: catalog,
		keys:    NewKeyboard(lgr),
		pub:     NewPublisher(client, lgr),
		client:  client,
		logger:  lgr,
	}
}

// Start connects to the broker. The session is usable before Start; presses
// are tracked and their publishes dropped with a reported error.
func (s *Session) Start() error {
	return s.client.Connect()
}

// Close releases every held note, publishes the synthetic stops as a best
// effort, and tears down the connection. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		for _, ev := range s.keys.ForceClearAll() {
			s.pub.PublishNote(ev)
		}
		s.client.Close()
	})
}

// Catalog returns the note catalog for rendering.
func (s *Session) Catalog() *notes.Catalog { return s.catalog }

// Keyboard returns the press/volume state, read by the UI layer.
func (s *Session) Keyboard() *Keyboard { return s.keys }

// Publisher returns the publisher, whose debug log the UI layer displays.
func (s *Session) Publisher() *Publisher { return s.pub }

// Client returns the broker client, whose state the UI layer displays.
func (s *Session) Client() *Client { return s.client }

// KeyDown handles a raw keyboard key press. Unknown bindings are ignored.
func (s *Session) KeyDown(binding string) {
	note, ok := s.catalog.ByBinding(binding)
	if !ok {
		s.logger.Debug("unmapped key ignored", "binding", binding)
		return
	}
	s.pressStart(note.ID, SourceKeyboard)
}

// KeyUp handles a raw keyboard key release. Unknown bindings are ignored.
func (s *Session) KeyUp(binding string) {
	note, ok := s.catalog.ByBinding(binding)
	if !ok {
		return
	}
	s.pressEnd(note.ID, SourceKeyboard)
}

// PointerDown handles a pointer press on a rendered key.
func (s *Session) PointerDown(noteID string) {
	if _, ok := s.catalog.ByID(noteID); !ok {
		s.logger.Debug("unknown note ignored", "note", noteID)
		return
	}
	s.pressStart(noteID, SourcePointer)
}

// PointerUp handles a pointer release on a rendered key.
func (s *Session) PointerUp(noteID string) {
	if _, ok := s.catalog.ByID(noteID); !ok {
		return
	}
	s.pressEnd(noteID, SourcePointer)
}

// MIDIDown handles a NoteOn from a MIDI device. Keys outside the catalog
// are ignored.
func (s *Session) MIDIDown(key uint8) {
	note, ok := s.catalog.ByMIDI(int(key))
	if !ok {
		s.logger.Debug("midi key outside catalog ignored", "key", key)
		return
	}
	s.pressStart(note.ID, SourceMIDI)
}

// MIDIUp handles a NoteOff from a MIDI device.
func (s *Session) MIDIUp(key uint8) {
	note, ok := s.catalog.ByMIDI(int(key))
	if !ok {
		return
	}
	s.pressEnd(note.ID, SourceMIDI)
}

// ForceClear stops every held note, one stop event per note. Call it when
// releases can no longer be observed: focus loss, pointer leaving the key
// area while down.
func (s *Session) ForceClear() {
	for _, ev := range s.keys.ForceClearAll() {
		s.pub.PublishNote(ev)
	}
}

// SetVolume clamps and stores the volume, publishing it only when the
// clamped value changed. Returns the stored value.
func (s *Session) SetVolume(raw int) int {
	v, changed := s.keys.SetVolume(raw)
	if changed {
		s.pub.PublishVolume(v)
	} else {
		s.logger.Debug("volume unchanged, not republished", "volume", v)
	}
	return v
}

func (s *Session) pressStart(noteID string, source SourceID) {
	ev, ok := s.keys.PressStart(noteID, source)
	if !ok {
		return
	}
	s.pub.PublishNote(ev)
}

func (s *Session) pressEnd(noteID string, source SourceID) {
	ev, ok := s.keys.PressEnd(noteID, source)
	if !ok {
		return
	}
	s.pub.PublishNote(ev)
}
