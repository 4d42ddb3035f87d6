package model

import (
	"encoding/json"
	"testing"
)

func TestParseKind(t *testing.T) {
	cases := map[string]Kind{"PRIVATE": KindPrivate, "team": KindTeam, " Department ": KindDepartment}
	for in, want := range cases {
		got, err := ParseKind(in)
		if err != nil || got != want {
			t.Fatalf("ParseKind(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseKind("CHANNEL"); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestKindJSONRejectsUnknown(t *testing.T) {
	var v struct {
		Kind Kind `json:"kind"`
	}
	if err := json.Unmarshal([]byte(`{"kind":"TEAM"}`), &v); err != nil || v.Kind != KindTeam {
		t.Fatalf("unmarshal TEAM: %v %v", v.Kind, err)
	}
	if err := json.Unmarshal([]byte(`{"kind":"BROADCAST"}`), &v); err == nil {
		t.Fatal("expected error for unknown kind")
	}
	if _, err := json.Marshal(struct{ K Kind }{}); err == nil {
		t.Fatal("zero Kind must not marshal")
	}
}

func TestConversationFromViewer(t *testing.T) {
	m := &Message{SenderID: "A", ReceiverID: "B", Kind: KindPrivate}
	if got := m.Conversation("A"); got.ID != "B" {
		t.Fatalf("sender view = %+v", got)
	}
	if got := m.Conversation("B"); got.ID != "A" {
		t.Fatalf("receiver view = %+v", got)
	}
	g := &Message{SenderID: "A", GroupID: "7", Kind: KindDepartment}
	if got := g.Conversation("Z"); got.Topic() != "/topic/department-7" {
		t.Fatalf("topic = %s", got.Topic())
	}
}

func TestMediaKind(t *testing.T) {
	cases := map[string]string{"image/png": "image", "audio/webm": "audio", "application/pdf": "file", "": "text"}
	for ft, want := range cases {
		if got := (&Message{FileType: ft}).MediaKind(); got != want {
			t.Fatalf("MediaKind(%q) = %s, want %s", ft, got, want)
		}
	}
}
