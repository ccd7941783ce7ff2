package netpiano

import (
	"log/slog"
	"sync"
	"time"
)

// debugLogCap bounds the in-memory publish log. The oldest entries fall off
// once the cap is reached.
const debugLogCap = 256

// LogEntry records one publish attempt for display by the UI layer.
type LogEntry struct {
	At      time.Time
	Message NoteMessage
	ID      int64
	Err     error
}

// Publisher serializes note and volume events into wire messages and hands
// them to the client at QoS at-least-once. Every attempt, dropped or not,
// lands in the debug log; delivery outcomes arrive on Results. A failed
// publish is reported, never thrown back into the input handling path.
type Publisher struct {
	client *Client
	logger *slog.Logger

	mu      sync.Mutex
	entries []LogEntry
}

// NewPublisher wraps a client. A nil logger falls back to slog.Default().
func NewPublisher(client *Client, lgr *slog.Logger) *Publisher {
	if lgr == nil {
		lgr = slog.Default()
	}
	return &Publisher{
		client: client,
		logger: lgr,
	}
}

// PublishNote serializes a note event and queues it for delivery. When the
// client is not connected the event is dropped and the PublishError
// returned; press state has already been updated by then and stays correct.
func (p *Publisher) PublishNote(ev NoteEvent) error {
	var msg NoteMessage
	switch ev.Action {
	case ActionStart:
		msg = NewStartMessage(ev.NoteID, ev.Volume)
	default:
		msg = NewStopMessage(ev.NoteID, ev.Duration.Milliseconds(), ev.Volume)
	}
	return p.publish(msg)
}

// PublishVolume serializes a volume-only message and queues it for delivery.
func (p *Publisher) PublishVolume(volume int) error {
	return p.publish(NewVolumeMessage(volume))
}

func (p *Publisher) publish(msg NoteMessage) error {
	id, err := p.client.Publish(msg, QoSAtLeastOnce)
	p.record(LogEntry{At: time.Now(), Message: msg, ID: id, Err: err})
	if err != nil {
		p.logger.Warn("publish dropped", "message", msg.String(), "error", err)
		return err
	}
	return nil
}

func (p *Publisher) record(e LogEntry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = append(p.entries, e)
	if len(p.entries) > debugLogCap {
		p.entries = p.entries[len(p.entries)-debugLogCap:]
	}
}

// DebugLog returns a copy of the recorded publish attempts, oldest first.
func (p *Publisher) DebugLog() []LogEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]LogEntry, len(p.entries))
	copy(out, p.entries)
	return out
}

// Results delivers the asynchronous delivery outcome of each publish.
func (p *Publisher) Results() <-chan PublishResult {
	return p.client.Results()
}
