// Package protocol defines the cross-frame message set exchanged between a host
// page and the embedded coaching widget.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ashureev/link-coach/internal/domain"
)

// Type is the discriminator carried in every envelope.
type Type string

const (
	TypeWidgetReady  Type = "WIDGET_READY"
	TypeInitWidget   Type = "INIT_WIDGET"
	TypeWidgetResize Type = "WIDGET_RESIZE"
	TypeWidgetClose  Type = "WIDGET_CLOSE"
	TypeWidgetError  Type = "WIDGET_ERROR"
	TypeUpdateUser   Type = "UPDATE_USER"
)

var (
	// ErrUnknownType is returned by Decode for envelope types outside the message set.
	ErrUnknownType = errors.New("unknown message type")
	// ErrMalformed is returned by Decode when the data does not fit the type.
	ErrMalformed = errors.New("malformed message data")
)

// Envelope is the wire shape {type, data}.
type Envelope struct {
	Type Type            `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Message is one of the six protocol messages.
type Message interface {
	Type() Type
	isMessage()
}

// WidgetReady is sent by the embedded app once its listener is registered.
type WidgetReady struct{}

// InitWidget carries the host's credentials and user context.
type InitWidget struct {
	Token          string          `json:"token"`
	UserID         string          `json:"userId"`
	LeadershipType string          `json:"leadershipType"`
	AssessmentData json.RawMessage `json:"assessmentData,omitempty"`
}

// WidgetResize asks the host to change the surface height in pixels.
type WidgetResize struct {
	Height float64 `json:"height"`
}

// WidgetClose asks the host to remove the surface.
type WidgetClose struct{}

// WidgetError forwards an arbitrary error payload to the host's reporter.
type WidgetError struct {
	Payload json.RawMessage
}

// UpdateUser carries a profile update from the host. Payload is an arbitrary
// JSON value; consumers decide what they accept.
type UpdateUser struct {
	Payload json.RawMessage
}

func (WidgetReady) Type() Type  { return TypeWidgetReady }
func (InitWidget) Type() Type   { return TypeInitWidget }
func (WidgetResize) Type() Type { return TypeWidgetResize }
func (WidgetClose) Type() Type  { return TypeWidgetClose }
func (WidgetError) Type() Type  { return TypeWidgetError }
func (UpdateUser) Type() Type   { return TypeUpdateUser }

func (WidgetReady) isMessage()  {}
func (InitWidget) isMessage()   {}
func (WidgetResize) isMessage() {}
func (WidgetClose) isMessage()  {}
func (WidgetError) isMessage()  {}
func (UpdateUser) isMessage()   {}

// Session converts the init payload into a domain session.
func (m InitWidget) Session() domain.Session {
	s := domain.Session{
		Token:          m.Token,
		UserID:         m.UserID,
		LeadershipType: m.LeadershipType,
	}
	if domain.HasAssessmentData(m.AssessmentData) {
		s.AssessmentData = m.AssessmentData
	}
	return s
}

// Encode wraps m into its wire envelope.
func Encode(m Message) (Envelope, error) {
	env := Envelope{Type: m.Type()}
	switch m := m.(type) {
	case WidgetReady, WidgetClose:
		return env, nil
	case WidgetError:
		env.Data = m.Payload
		return env, nil
	case UpdateUser:
		env.Data = m.Payload
		return env, nil
	default:
		data, err := json.Marshal(m)
		if err != nil {
			return Envelope{}, fmt.Errorf("encode %s: %w", m.Type(), err)
		}
		env.Data = data
		return env, nil
	}
}

// Decode turns an envelope into its typed message.
func Decode(env Envelope) (Message, error) {
	switch env.Type {
	case TypeWidgetReady:
		return WidgetReady{}, nil
	case TypeWidgetClose:
		return WidgetClose{}, nil
	case TypeWidgetError:
		return WidgetError{Payload: env.Data}, nil
	case TypeUpdateUser:
		return UpdateUser{Payload: env.Data}, nil
	case TypeInitWidget:
		var m InitWidget
		if err := unmarshalData(env.Data, &m); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		return m, nil
	case TypeWidgetResize:
		var m WidgetResize
		if err := unmarshalData(env.Data, &m); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
}

func unmarshalData(data json.RawMessage, v any) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}
