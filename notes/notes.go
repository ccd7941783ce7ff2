// Package notes holds the static catalog mapping input-key identifiers to
// note identities. The catalog is immutable after construction; unknown
// lookups return ok=false, never an error, since unmapped keys are expected.
package notes

import "fmt"

// Note is one playable key of the virtual keyboard.
type Note struct {
	// ID is the unique, stable note identifier, e.g. "cs4".
	ID string
	// DisplayName is the human-readable name, e.g. "C#4".
	DisplayName string
	// Accidental marks sharp/flat notes, i.e. "black" keys.
	Accidental bool
	// Binding is the qwerty key that plays this note.
	Binding string
	// MIDI is the MIDI note number, C4 = 60.
	MIDI int
}

func (n Note) String() string {
	return fmt.Sprintf("%s (midi %d, key %q)", n.DisplayName, n.MIDI, n.Binding)
}

var noteStems = []struct {
	id         string
	name       string
	accidental bool
}{
	{"c", "C", false},
	{"cs", "C#", true},
	{"d", "D", false},
	{"ds", "D#", true},
	{"e", "E", false},
	{"f", "F", false},
	{"fs", "F#", true},
	{"g", "G", false},
	{"gs", "G#", true},
	{"a", "A", false},
	{"as", "A#", true},
	{"b", "B", false},
}

// qwertyKeys is ordered so fingering resembles a real piano: naturals on the
// home row, accidentals on the q row above.
var qwertyKeys = []string{
	"a", "w", "s", "e", "d", "f", "t", "g", "y", "h", "u", "j",
	"k", "o", "l", "p", ";", "'",
}

// MakeOctaveNotes builds the notes of one keyboard span starting at C of the
// given octave: a full octave plus the fourth into the next, covering all
// available qwerty keys.
func MakeOctaveNotes(octave int) []Note {
	const midiC0 = 12
	out := make([]Note, 0, len(qwertyKeys))
	for i, kb := range qwertyKeys {
		stem := noteStems[i%len(noteStems)]
		oct := octave + i/len(noteStems)
		out = append(out, Note{
			ID:          fmt.Sprintf("%s%d", stem.id, oct),
			DisplayName: fmt.Sprintf("%s%d", stem.name, oct),
			Accidental:  stem.accidental,
			Binding:     kb,
			MIDI:        midiC0 + 12*octave + i,
		})
	}
	return out
}

// Catalog is an immutable set of notes indexed by binding, id and MIDI
// number.
type Catalog struct {
	notes     []Note
	byBinding map[string]Note
	byID      map[string]Note
	byMIDI    map[int]Note
}

// New builds a catalog from a note list. Later entries win on binding or id
// collisions.
func New(ns []Note) *Catalog {
	c := &Catalog{
		notes:     append([]Note(nil), ns...),
		byBinding: make(map[string]Note, len(ns)),
		byID:      make(map[string]Note, len(ns)),
		byMIDI:    make(map[int]Note, len(ns)),
	}
	for _, n := range c.notes {
		c.byBinding[n.Binding] = n
		c.byID[n.ID] = n
		c.byMIDI[n.MIDI] = n
	}
	return c
}

// Default returns the standard layout: the C4 span on the home row.
func Default() *Catalog {
	return New(MakeOctaveNotes(4))
}

// ByBinding resolves a qwerty key to its note.
func (c *Catalog) ByBinding(binding string) (Note, bool) {
	n, ok := c.byBinding[binding]
	return n, ok
}

// ByID resolves a note identifier.
func (c *Catalog) ByID(id string) (Note, bool) {
	n, ok := c.byID[id]
	return n, ok
}

// ByMIDI resolves a MIDI note number.
func (c *Catalog) ByMIDI(midi int) (Note, bool) {
	n, ok := c.byMIDI[midi]
	return n, ok
}

// All returns the notes in keyboard order.
func (c *Catalog) All() []Note {
	out := make([]Note, len(c.notes))
	copy(out, c.notes)
	return out
}

// Len returns how many notes the catalog holds.
func (c *Catalog) Len() int {
	return len(c.notes)
}
