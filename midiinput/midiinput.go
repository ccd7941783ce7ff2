// Package midiinput feeds NoteOn/NoteOff events from a hardware MIDI
// keyboard into a netpiano session.
package midiinput

import (
	"fmt"
	"log/slog"
	"strings"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

// Target is the slice of a session the adapter drives.
type Target interface {
	MIDIDown(key uint8)
	MIDIUp(key uint8)
}

// Adapter owns one MIDI input port and its listener.
type Adapter struct {
	drv    *rtmididrv.Driver
	inPort drivers.In
	stop   func()
	logger *slog.Logger
}

// Ports lists the names of the available MIDI input ports.
func Ports() ([]string, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("rtmididrv: %w", err)
	}
	defer drv.Close()
	ins, err := drv.Ins()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ins))
	for _, in := range ins {
		names = append(names, in.String())
	}
	return names, nil
}

// Open connects to the first input port whose name contains portName
// (case-insensitive; empty matches the first port) and starts forwarding
// note events to the target. Call Close when done.
func Open(portName string, target Target, lgr *slog.Logger) (*Adapter, error) {
	if lgr == nil {
		lgr = slog.Default()
	}
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("rtmididrv: %w", err)
	}
	ins, err := drv.Ins()
	if err != nil {
		drv.Close()
		return nil, err
	}
	var found drivers.In
	for _, in := range ins {
		if portName == "" || strings.Contains(strings.ToLower(in.String()), strings.ToLower(portName)) {
			found = in
			break
		}
	}
	if found == nil {
		drv.Close()
		return nil, fmt.Errorf("no MIDI input matching %q", portName)
	}
	if err := found.Open(); err != nil {
		drv.Close()
		return nil, fmt.Errorf("open %q: %w", found.String(), err)
	}

	a := &Adapter{drv: drv, inPort: found, logger: lgr}
	stop, err := midi.ListenTo(found, func(msg midi.Message, _ int32) {
		var ch, key, vel uint8
		if msg.GetNoteStart(&ch, &key, &vel) {
			lgr.Debug("midi note on", "key", key, "velocity", vel)
			target.MIDIDown(key)
		} else if msg.GetNoteEnd(&ch, &key) {
			lgr.Debug("midi note off", "key", key)
			target.MIDIUp(key)
		}
	})
	if err != nil {
		found.Close()
		drv.Close()
		return nil, fmt.Errorf("listen %q: %w", found.String(), err)
	}
	a.stop = stop
	lgr.Info("midi input connected", "port", found.String())
	return a, nil
}

// Port returns the name of the connected input port.
func (a *Adapter) Port() string {
	return a.inPort.String()
}

// Close releases the listener, the port and the driver.
func (a *Adapter) Close() error {
	if a.stop != nil {
		a.stop()
		a.stop = nil
	}
	if a.inPort != nil {
		a.inPort.Close()
		a.inPort = nil
	}
	if a.drv != nil {
		a.drv.Close()
		a.drv = nil
	}
	return nil
}
