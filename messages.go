package netpiano

import (
	"encoding/json"
	"fmt"
)

// ProtocolVersion is the broker protocol version spoken by this client.
const ProtocolVersion = 1

// QoS is the delivery guarantee requested for a publish.
type QoS int

const (
	// QoSAtMostOnce publishes fire-and-forget, no ack expected.
	QoSAtMostOnce QoS = 0
	// QoSAtLeastOnce publishes are acked by the broker; duplicates are
	// possible and subscribers must tolerate them.
	QoSAtLeastOnce QoS = 1
)

// Note message actions.
const (
	ActionStart = "start"
	ActionStop  = "stop"
)

// NoteMessage is the canonical payload carried on the topic. Stop messages
// carry a duration, every note message carries the volume snapshot at
// emission time, and volume-only messages carry just the volume. A message
// with a note but no action is a legacy stop.
type NoteMessage struct {
	Note     string `json:"note,omitempty"`
	Action   string `json:"action,omitempty"`
	Duration *int64 `json:"duration,omitempty"`
	Volume   *int   `json:"volume,omitempty"`
}

// NewStartMessage returns a note-start message with the given volume snapshot.
func NewStartMessage(noteID string, volume int) NoteMessage {
	v := volume
	return NoteMessage{Note: noteID, Action: ActionStart, Volume: &v}
}

// NewStopMessage returns a note-stop message with the held duration in
// milliseconds and the volume snapshot.
func NewStopMessage(noteID string, durationMs int64, volume int) NoteMessage {
	d := durationMs
	v := volume
	return NoteMessage{Note: noteID, Action: ActionStop, Duration: &d, Volume: &v}
}

// NewVolumeMessage returns a volume-only message.
func NewVolumeMessage(volume int) NoteMessage {
	v := volume
	return NoteMessage{Volume: &v}
}

// IsVolumeOnly reports whether the message carries no note at all.
func (m NoteMessage) IsVolumeOnly() bool {
	return m.Note == "" && m.Volume != nil
}

// IsStop reports whether the message ends a note. Messages with a note but
// no action come from older publishers and count as stops.
func (m NoteMessage) IsStop() bool {
	return m.Note != "" && (m.Action == ActionStop || m.Action == "")
}

// IsStart reports whether the message begins a note.
func (m NoteMessage) IsStart() bool {
	return m.Note != "" && m.Action == ActionStart
}

func (m NoteMessage) String() string {
	switch {
	case m.IsVolumeOnly():
		return fmt.Sprintf("volume %d", *m.Volume)
	case m.IsStart():
		return fmt.Sprintf("note %s start", m.Note)
	case m.IsStop() && m.Duration != nil:
		return fmt.Sprintf("note %s stop after %dms", m.Note, *m.Duration)
	case m.IsStop():
		return fmt.Sprintf("note %s stop", m.Note)
	default:
		return fmt.Sprintf("note message %+v", map[string]any{"note": m.Note, "action": m.Action})
	}
}

// DecodeNoteMessage parses a topic payload. Receivers accept every schema
// variant: start messages, stop messages with duration, legacy stops without
// an action, and volume-only messages.
func DecodeNoteMessage(data []byte) (NoteMessage, error) {
	var m NoteMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return NoteMessage{}, err
	}
	if m.Note == "" && m.Volume == nil {
		return NoteMessage{}, fmt.Errorf("note message carries neither note nor volume")
	}
	if m.Duration != nil && *m.Duration < 0 {
		return NoteMessage{}, fmt.Errorf("note message has negative duration %d", *m.Duration)
	}
	return m, nil
}

type Packet interface {
	Type() string
	String() string
}

type BasePacket struct {
	PacketType string `json:"type"`
}

func (b BasePacket) String() string {
	return fmt.Sprintf("type %s", b.PacketType)
}

func (b BasePacket) Type() string { return b.PacketType }

// HelloPacket is the first packet the client sends after dialing.
type HelloPacket struct {
	BasePacket
	ClientID string `json:"client_id"`
	Version  int    `json:"version"`
}

func (h HelloPacket) String() string {
	return fmt.Sprintf("hello from %s, protocol version %d", h.ClientID, h.Version)
}

func NewHelloPacket(clientID string) HelloPacket {
	return HelloPacket{
		BasePacket: BasePacket{PacketType: "hello"},
		ClientID:   clientID,
		Version:    ProtocolVersion,
	}
}

// WelcomePacket is the broker's reply to a hello.
type WelcomePacket struct {
	BasePacket
	MOTD string `json:"motd,omitempty"`
}

func (w WelcomePacket) String() string {
	if w.MOTD == "" {
		return "welcome"
	}
	return fmt.Sprintf("welcome: %s", w.MOTD)
}

// SubscribePacket asks the broker to deliver everything published on a topic.
type SubscribePacket struct {
	BasePacket
	Topic string `json:"topic"`
}

func (s SubscribePacket) String() string {
	return fmt.Sprintf("subscribe to %s", s.Topic)
}

func NewSubscribePacket(topic string) SubscribePacket {
	return SubscribePacket{
		BasePacket: BasePacket{PacketType: "subscribe"},
		Topic:      topic,
	}
}

// SubscribedPacket confirms a subscription.
type SubscribedPacket struct {
	BasePacket
	Topic string `json:"topic"`
}

func (s SubscribedPacket) String() string {
	return fmt.Sprintf("subscribed to %s", s.Topic)
}

// PublishPacket carries a topic payload in either direction. Outbound it is
// a publish request; inbound it is a message relayed from another client on
// the topic, with Origin set by the broker.
type PublishPacket struct {
	BasePacket
	Topic  string          `json:"topic"`
	ID     int64           `json:"id"`
	QoS    QoS             `json:"qos"`
	Body   json.RawMessage `json:"body"`
	Origin *int            `json:"origin,omitempty"`
}

func (p PublishPacket) String() string {
	return fmt.Sprintf("publish %d on %s: %s", p.ID, p.Topic, p.Body)
}

// Note decodes the payload as a note/volume message.
func (p PublishPacket) Note() (NoteMessage, error) {
	return DecodeNoteMessage(p.Body)
}

func NewPublishPacket(topic string, id int64, qos QoS, body NoteMessage) (PublishPacket, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return PublishPacket{}, err
	}
	return PublishPacket{
		BasePacket: BasePacket{PacketType: "publish"},
		Topic:      topic,
		ID:         id,
		QoS:        qos,
		Body:       data,
	}, nil
}

// AckPacket confirms delivery of a publish with the matching id.
type AckPacket struct {
	BasePacket
	ID int64 `json:"id"`
}

func (a AckPacket) String() string {
	return fmt.Sprintf("ack %d", a.ID)
}

func NewAckPacket(id int64) AckPacket {
	return AckPacket{
		BasePacket: BasePacket{PacketType: "ack"},
		ID:         id,
	}
}

// PingPacket is sent by the broker to check if the client is still there.
type PingPacket struct {
	BasePacket
}

func (p PingPacket) String() string {
	return "ping"
}

// ErrorPacket reports a broker-side failure, e.g. a rejected subscribe.
type ErrorPacket struct {
	BasePacket
	Message string `json:"message"`
}

func (e ErrorPacket) String() string {
	return fmt.Sprintf("broker error: %s", e.Message)
}

// InvalidPacket is returned for unknown or malformed packets.
type InvalidPacket struct {
	BasePacket
	RawData json.RawMessage
}

func (i InvalidPacket) String() string {
	return fmt.Sprintf("invalid packet: %s", i.RawData)
}

func ParsePacket(data []byte) (Packet, error) {
	var base BasePacket
	if err := json.Unmarshal(data, &base); err != nil {
		return InvalidPacket{RawData: data}, err
	}

	switch base.PacketType {
	case "hello":
		var p HelloPacket
		err := json.Unmarshal(data, &p)
		return p, err
	case "welcome":
		var p WelcomePacket
		err := json.Unmarshal(data, &p)
		return p, err
	case "subscribe":
		var p SubscribePacket
		err := json.Unmarshal(data, &p)
		return p, err
	case "subscribed":
		var p SubscribedPacket
		err := json.Unmarshal(data, &p)
		return p, err
	case "publish":
		var p PublishPacket
		err := json.Unmarshal(data, &p)
		return p, err
	case "ack":
		var p AckPacket
		err := json.Unmarshal(data, &p)
		return p, err
	case "ping":
		return PingPacket{BasePacket: base}, nil
	case "error":
		var p ErrorPacket
		err := json.Unmarshal(data, &p)
		return p, err
	default:
		return InvalidPacket{
			BasePacket: base,
			RawData:    data,
		}, fmt.Errorf("unknown packet type: %s", base.PacketType)
	}
}
