package protocol

import "encoding/json"

// Handler receives every message kind. Implementations must handle all six, so
// adding a kind breaks every consumer at compile time instead of at runtime.
type Handler interface {
	HandleWidgetReady(origin string, m WidgetReady)
	HandleInitWidget(origin string, m InitWidget)
	HandleWidgetResize(origin string, m WidgetResize)
	HandleWidgetClose(origin string, m WidgetClose)
	HandleWidgetError(origin string, m WidgetError)
	HandleUpdateUser(origin string, m UpdateUser)
}

// Dispatch routes m to the matching Handler method.
func Dispatch(h Handler, origin string, m Message) {
	switch m := m.(type) {
	case WidgetReady:
		h.HandleWidgetReady(origin, m)
	case InitWidget:
		h.HandleInitWidget(origin, m)
	case WidgetResize:
		h.HandleWidgetResize(origin, m)
	case WidgetClose:
		h.HandleWidgetClose(origin, m)
	case WidgetError:
		h.HandleWidgetError(origin, m)
	case UpdateUser:
		h.HandleUpdateUser(origin, m)
	}
}

// UserUpdate is the accepted shape of an UPDATE_USER payload. Identity keys
// such as userId or token are not part of it and are dropped on decode.
type UserUpdate struct {
	LeadershipType string          `json:"leadershipType,omitempty"`
	AssessmentData json.RawMessage `json:"assessmentData,omitempty"`
}

// ParseUserUpdate decodes an UPDATE_USER payload. ok is false when the payload
// is not a JSON object.
func ParseUserUpdate(payload json.RawMessage) (UserUpdate, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil || fields == nil {
		return UserUpdate{}, false
	}
	var u UserUpdate
	if raw, ok := fields["leadershipType"]; ok {
		var lt string
		if err := json.Unmarshal(raw, &lt); err == nil {
			u.LeadershipType = lt
		}
	}
	if raw, ok := fields["assessmentData"]; ok {
		u.AssessmentData = raw
	}
	return u, true
}
