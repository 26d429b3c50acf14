package protocol

import (
	"encoding/json"
	"testing"
)

func TestSideOther(t *testing.T) {
	if SideP1.Other() != SideP2 {
		t.Errorf("expected p1.Other() == p2, got %s", SideP1.Other())
	}
	if SideP2.Other() != SideP1 {
		t.Errorf("expected p2.Other() == p1, got %s", SideP2.Other())
	}
}

func TestSideValid(t *testing.T) {
	if !SideP1.Valid() || !SideP2.Valid() {
		t.Error("expected p1 and p2 to be valid sides")
	}
	if Side("p3").Valid() {
		t.Error("expected p3 to be invalid")
	}
}

func TestIsProtocolLine(t *testing.T) {
	cases := []struct {
		frame []byte
		want  bool
	}{
		{[]byte("|turn|1"), true},
		{[]byte(`{"type":"choose"}`), false},
		{[]byte(""), false},
	}
	for _, c := range cases {
		if got := IsProtocolLine(c.frame); got != c.want {
			t.Errorf("IsProtocolLine(%q) = %v, want %v", c.frame, got, c.want)
		}
	}
}

func TestEnvelopeRoundTrip(t *testing.T) {
	env := NewEnvelope(EnvChoose, ChoosePayload{Command: "move 1"})
	data, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded Envelope
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Type != EnvChoose {
		t.Errorf("expected type %s, got %s", EnvChoose, decoded.Type)
	}

	var payload ChoosePayload
	if err := decoded.Decode(&payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Command != "move 1" {
		t.Errorf("expected command %q, got %q", "move 1", payload.Command)
	}
}

func TestEnvelopeDecodeEmptyPayload(t *testing.T) {
	env := Envelope{Type: EnvStart}
	var payload StartPayload
	if err := env.Decode(&payload); err != nil {
		t.Fatalf("expected no error decoding empty payload, got %v", err)
	}
}

func TestErrorEnvelope(t *testing.T) {
	env := ErrorEnvelope("boom")
	var payload ErrorPayload
	if err := env.Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Message != "boom" {
		t.Errorf("expected message %q, got %q", "boom", payload.Message)
	}
}
