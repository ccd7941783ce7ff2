package netpiano

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestStopMessageWireForm(t *testing.T) {
	msg := NewStopMessage("do", 500, 80)
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(data)
	for _, want := range []string{`"note":"do"`, `"action":"stop"`, `"duration":500`, `"volume":80`} {
		if !strings.Contains(s, want) {
			t.Errorf("wire form %s missing %s", s, want)
		}
	}
}

func TestStartMessageHasNoDuration(t *testing.T) {
	msg := NewStartMessage("c4", 64)
	data, _ := json.Marshal(msg)
	if strings.Contains(string(data), "duration") {
		t.Errorf("start message %s carries a duration", data)
	}
	if !msg.IsStart() {
		t.Error("IsStart() = false")
	}
}

func TestDecodeLegacyStop(t *testing.T) {
	msg, err := DecodeNoteMessage([]byte(`{"note":"do","duration":500}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !msg.IsStop() {
		t.Error("legacy message without action should count as a stop")
	}
	if msg.Duration == nil || *msg.Duration != 500 {
		t.Errorf("duration = %v, want 500", msg.Duration)
	}
}

func TestDecodeVolumeOnly(t *testing.T) {
	msg, err := DecodeNoteMessage([]byte(`{"volume":42}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !msg.IsVolumeOnly() {
		t.Error("IsVolumeOnly() = false")
	}
	if msg.IsStop() || msg.IsStart() {
		t.Error("volume-only message classified as a note message")
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := DecodeNoteMessage([]byte(`{}`)); err == nil {
		t.Error("empty message accepted")
	}
	if _, err := DecodeNoteMessage([]byte(`{"note":"do","duration":-1}`)); err == nil {
		t.Error("negative duration accepted")
	}
	if _, err := DecodeNoteMessage([]byte(`not json`)); err == nil {
		t.Error("malformed JSON accepted")
	}
}

func TestParsePublishPacket(t *testing.T) {
	pkt, err := NewPublishPacket("piano", 7, QoSAtLeastOnce, NewStartMessage("c4", 80))
	if err != nil {
		t.Fatalf("NewPublishPacket: %v", err)
	}
	data, err := json.Marshal(pkt)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	parsed, err := ParsePacket(data)
	if err != nil {
		t.Fatalf("ParsePacket: %v", err)
	}
	pub, ok := parsed.(PublishPacket)
	if !ok {
		t.Fatalf("parsed type = %T, want PublishPacket", parsed)
	}
	if pub.ID != 7 || pub.Topic != "piano" || pub.QoS != QoSAtLeastOnce {
		t.Errorf("parsed publish = %+v", pub)
	}
	msg, err := pub.Note()
	if err != nil {
		t.Fatalf("Note(): %v", err)
	}
	if msg.Note != "c4" || !msg.IsStart() {
		t.Errorf("body = %+v, want c4 start", msg)
	}
}

func TestParseAckAndPing(t *testing.T) {
	parsed, err := ParsePacket([]byte(`{"type":"ack","id":12}` + "\n"))
	if err != nil {
		t.Fatalf("ParsePacket(ack): %v", err)
	}
	ack, ok := parsed.(AckPacket)
	if !ok || ack.ID != 12 {
		t.Errorf("parsed = %#v, want AckPacket id 12", parsed)
	}

	parsed, err = ParsePacket([]byte(`{"type":"ping"}` + "\n"))
	if err != nil {
		t.Fatalf("ParsePacket(ping): %v", err)
	}
	if _, ok := parsed.(PingPacket); !ok {
		t.Errorf("parsed type = %T, want PingPacket", parsed)
	}
}

func TestParseUnknownPacket(t *testing.T) {
	parsed, err := ParsePacket([]byte(`{"type":"bogus"}`))
	if err == nil {
		t.Error("unknown packet type parsed without error")
	}
	if _, ok := parsed.(InvalidPacket); !ok {
		t.Errorf("parsed type = %T, want InvalidPacket", parsed)
	}
}
