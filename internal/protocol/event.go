package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Wire names of the hub events.
const (
	TypeOnlineRoster = "online-roster"
	TypeNewMessage   = "new-message"
)

var (
	// ErrUnknownEvent is returned by Decode for a well-formed envelope whose
	// type tag is not part of the protocol. Callers usually ignore it.
	ErrUnknownEvent = errors.New("unknown event type")
	// ErrMalformedEvent is returned when the envelope or its payload does not
	// match the schema of its type.
	ErrMalformedEvent = errors.New("malformed event")
)

// Event is one of the hub → client variants: RosterUpdate or MessageDelivered.
type Event interface {
	eventType() string
}

// RosterUpdate carries the full set of identity ids connected to the hub.
type RosterUpdate struct {
	Online []string
}

// MessageDelivered carries a message addressed to the receiving client.
type MessageDelivered struct {
	Message Message
}

func (RosterUpdate) eventType() string     { return TypeOnlineRoster }
func (MessageDelivered) eventType() string { return TypeNewMessage }

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Encode serializes an event into its JSON envelope.
func Encode(evt Event) ([]byte, error) {
	var payload any
	switch e := evt.(type) {
	case RosterUpdate:
		online := e.Online
		if online == nil {
			online = []string{}
		}
		payload = online
	case MessageDelivered:
		payload = e.Message
	default:
		return nil, fmt.Errorf("encode %T: %w", evt, ErrUnknownEvent)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", evt.eventType(), err)
	}
	return json.Marshal(envelope{Type: evt.eventType(), Payload: raw})
}

// Decode parses and validates a JSON envelope received from the hub.
func Decode(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	switch env.Type {
	case TypeOnlineRoster:
		if !isArray(env.Payload) {
			return nil, fmt.Errorf("%w: %s payload is not a list", ErrMalformedEvent, env.Type)
		}
		var online []string
		if err := json.Unmarshal(env.Payload, &online); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedEvent, env.Type, err)
		}
		return RosterUpdate{Online: online}, nil
	case TypeNewMessage:
		var msg Message
		if err := json.Unmarshal(env.Payload, &msg); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedEvent, env.Type, err)
		}
		if msg.ID == "" || msg.SenderID == "" {
			return nil, fmt.Errorf("%w: %s without id or senderId", ErrMalformedEvent, env.Type)
		}
		return MessageDelivered{Message: msg}, nil
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrMalformedEvent)
	default:
		return nil, fmt.Errorf("%q: %w", env.Type, ErrUnknownEvent)
	}
}

// DecodeList decodes a JSON list response. A payload that is not a list, or
// whose elements do not decode, yields an empty (non-nil) slice and ok=false.
func DecodeList[T any](data []byte) (items []T, ok bool) {
	items = []T{}
	if !isArray(data) {
		return items, false
	}
	if err := json.Unmarshal(data, &items); err != nil {
		return []T{}, false
	}
	return items, true
}

func isArray(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) > 0 && trimmed[0] == '['
}
