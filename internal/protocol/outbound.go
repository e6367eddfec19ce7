package protocol

import (
	"encoding/json"
	"fmt"

	"couplechat/internal/domain"
)

// Outbound is an event pushed by the server.
type Outbound interface {
	Name() string
}

// MessageSent confirms a persisted message to its sender.
type MessageSent struct {
	Message *domain.Message
}

// NewMessage delivers a persisted message to its receiver.
type NewMessage struct {
	Message *domain.Message
}

// MessageRead tells the original sender that a message was read.
type MessageRead struct {
	MessageID string
}

type UserTyping struct {
	SenderID string
}

type UserStopTyping struct {
	SenderID string
}

// Error reports a rejected operation to the client that triggered it.
type Error struct {
	Message string `json:"message"`
}

func (MessageSent) Name() string    { return EventMessageSent }
func (NewMessage) Name() string     { return EventNewMessage }
func (MessageRead) Name() string    { return EventMessageRead }
func (UserTyping) Name() string     { return EventUserTyping }
func (UserStopTyping) Name() string { return EventUserStopTyping }
func (Error) Name() string          { return EventError }

// Encode renders an outbound event as an envelope frame.
func Encode(ev Outbound) ([]byte, error) {
	var data any
	switch e := ev.(type) {
	case MessageSent:
		data = e.Message
	case NewMessage:
		data = e.Message
	case MessageRead:
		data = e.MessageID
	case UserTyping:
		data = e.SenderID
	case UserStopTyping:
		data = e.SenderID
	case Error:
		data = e
	default:
		return nil, fmt.Errorf("encode: unsupported event %T", ev)
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", ev.Name(), err)
	}
	return json.Marshal(Envelope{Event: ev.Name(), Data: raw})
}

// Parse is the client-side counterpart of Encode, used by tests and tools
// that consume the server stream.
func Parse(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return env, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return env, nil
}
