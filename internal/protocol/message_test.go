package protocol

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestEncodeDecodeInitWidget(t *testing.T) {
	t.Parallel()

	in := InitWidget{
		Token:          "tok",
		UserID:         "u1",
		LeadershipType: "개별비전형",
		AssessmentData: json.RawMessage(`{"score":3}`),
	}
	env, err := Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if env.Type != TypeInitWidget {
		t.Fatalf("expected type %s, got %s", TypeInitWidget, env.Type)
	}

	raw, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	var wire map[string]any
	if err := json.Unmarshal(raw, &wire); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	data, ok := wire["data"].(map[string]any)
	if !ok {
		t.Fatalf("expected object data, got %T", wire["data"])
	}
	if data["userId"] != "u1" || data["leadershipType"] != "개별비전형" {
		t.Fatalf("unexpected wire data: %v", data)
	}

	out, err := Decode(env)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	got, ok := out.(InitWidget)
	if !ok {
		t.Fatalf("expected InitWidget, got %T", out)
	}
	if diff := cmp.Diff(in.Session(), got.Session()); diff != "" {
		t.Fatalf("session mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeUnknownType(t *testing.T) {
	t.Parallel()

	_, err := Decode(Envelope{Type: "SOMETHING_ELSE"})
	if !errors.Is(err, ErrUnknownType) {
		t.Fatalf("expected ErrUnknownType, got %v", err)
	}
}

func TestDecodeMalformedResize(t *testing.T) {
	t.Parallel()

	_, err := Decode(Envelope{Type: TypeWidgetResize, Data: json.RawMessage(`{"height":"tall"}`)})
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestDecodeResizeWithoutData(t *testing.T) {
	t.Parallel()

	m, err := Decode(Envelope{Type: TypeWidgetResize})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if r := m.(WidgetResize); r.Height != 0 {
		t.Fatalf("expected zero height, got %v", r.Height)
	}
}

func TestInitWidgetSessionDropsNullAssessment(t *testing.T) {
	t.Parallel()

	s := InitWidget{Token: "t", UserID: "u", LeadershipType: "과도기형", AssessmentData: json.RawMessage("null")}.Session()
	if s.AssessmentData != nil {
		t.Fatalf("expected nil assessment data, got %s", s.AssessmentData)
	}
}

type recordingHandler struct {
	calls []Type
}

func (r *recordingHandler) HandleWidgetReady(string, WidgetReady) {
	r.calls = append(r.calls, TypeWidgetReady)
}
func (r *recordingHandler) HandleInitWidget(string, InitWidget) {
	r.calls = append(r.calls, TypeInitWidget)
}
func (r *recordingHandler) HandleWidgetResize(string, WidgetResize) {
	r.calls = append(r.calls, TypeWidgetResize)
}
func (r *recordingHandler) HandleWidgetClose(string, WidgetClose) {
	r.calls = append(r.calls, TypeWidgetClose)
}
func (r *recordingHandler) HandleWidgetError(string, WidgetError) {
	r.calls = append(r.calls, TypeWidgetError)
}
func (r *recordingHandler) HandleUpdateUser(string, UpdateUser) {
	r.calls = append(r.calls, TypeUpdateUser)
}

func TestDispatchRoutesEveryKind(t *testing.T) {
	t.Parallel()

	h := &recordingHandler{}
	msgs := []Message{
		WidgetReady{}, InitWidget{}, WidgetResize{Height: 10},
		WidgetClose{}, WidgetError{}, UpdateUser{},
	}
	for _, m := range msgs {
		Dispatch(h, "https://example.com", m)
	}

	want := []Type{
		TypeWidgetReady, TypeInitWidget, TypeWidgetResize,
		TypeWidgetClose, TypeWidgetError, TypeUpdateUser,
	}
	if diff := cmp.Diff(want, h.calls); diff != "" {
		t.Fatalf("dispatch order mismatch (-want +got):\n%s", diff)
	}
}

func TestParseUserUpdate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload string
		wantOK  bool
		wantLT  string
		wantAD  bool
	}{
		{name: "profile fields", payload: `{"leadershipType":"참여코칭형","assessmentData":{"a":1}}`, wantOK: true, wantLT: "참여코칭형", wantAD: true},
		{name: "identity keys ignored", payload: `{"userId":"other","token":"x"}`, wantOK: true},
		{name: "string payload", payload: `"hello"`, wantOK: false},
		{name: "array payload", payload: `[1,2]`, wantOK: false},
		{name: "null payload", payload: `null`, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			u, ok := ParseUserUpdate(json.RawMessage(tt.payload))
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if u.LeadershipType != tt.wantLT {
				t.Fatalf("leadershipType = %q, want %q", u.LeadershipType, tt.wantLT)
			}
			if (u.AssessmentData != nil) != tt.wantAD {
				t.Fatalf("assessmentData presence = %v, want %v", u.AssessmentData != nil, tt.wantAD)
			}
		})
	}
}
