// Package protocol defines the realtime wire format: a JSON envelope that
// carries one of a closed set of client and server events.
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"couplechat/internal/domain"
)

// Event names.
const (
	EventUserConnected = "user_connected"
	EventSendMessage   = "send_message"
	EventReadMessage   = "read_message"
	EventTyping        = "typing"
	EventStopTyping    = "stop_typing"

	EventMessageSent    = "message_sent"
	EventNewMessage     = "new_message"
	EventMessageRead    = "message_read"
	EventUserTyping     = "user_typing"
	EventUserStopTyping = "user_stop_typing"
	EventError          = "error"
)

var (
	ErrMalformed    = errors.New("malformed event")
	ErrUnknownEvent = errors.New("unknown event")
)

// MaxTextLength is the longest message text accepted, in runes.
const MaxTextLength = 5000

// Envelope is the frame exchanged in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

var validate = validator.New()

// Inbound is an event sent by a client.
type Inbound interface {
	inbound()
}

type UserConnected struct {
	UserID string
}

type SendMessage struct {
	ReceiverID  string              `json:"receiverId" validate:"required"`
	Text        string              `json:"text" validate:"max=5000"`
	Attachments []domain.Attachment `json:"attachments" validate:"dive"`
}

type ReadMessage struct {
	MessageID string
}

type StartTyping struct {
	ReceiverID string
}

type StopTyping struct {
	ReceiverID string
}

func (UserConnected) inbound() {}
func (SendMessage) inbound()   {}
func (ReadMessage) inbound()   {}
func (StartTyping) inbound()   {}
func (StopTyping) inbound()    {}

// Decode parses a client frame into one of the Inbound variants.
func Decode(frame []byte) (Inbound, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch env.Event {
	case EventUserConnected:
		id, err := decodeID(env.Data, "userId")
		if err != nil {
			return nil, err
		}
		return UserConnected{UserID: id}, nil
	case EventSendMessage:
		return decodeSend(env.Data)
	case EventReadMessage:
		id, err := decodeID(env.Data, "messageId")
		if err != nil {
			return nil, err
		}
		return ReadMessage{MessageID: id}, nil
	case EventTyping:
		id, err := decodeID(env.Data, "receiverId")
		if err != nil {
			return nil, err
		}
		return StartTyping{ReceiverID: id}, nil
	case EventStopTyping:
		id, err := decodeID(env.Data, "receiverId")
		if err != nil {
			return nil, err
		}
		return StopTyping{ReceiverID: id}, nil
	case "":
		return nil, fmt.Errorf("%w: missing event name", ErrMalformed)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}
}

func decodeSend(data json.RawMessage) (SendMessage, error) {
	var req SendMessage
	if len(data) == 0 {
		return req, fmt.Errorf("%w: missing payload", ErrMalformed)
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return req, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := ValidateSend(&req); err != nil {
		return req, err
	}
	return req, nil
}

// ValidateSend checks a send request before anything is persisted. It is
// shared with the REST fallback.
func ValidateSend(req *SendMessage) error {
	req.ReceiverID = strings.TrimSpace(req.ReceiverID)
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %s", ErrMalformed, describe(err))
	}
	if (&domain.Message{Text: req.Text, Attachments: req.Attachments}).Empty() {
		return fmt.Errorf("%w: message must have text or attachments", ErrMalformed)
	}
	return nil
}

// decodeID accepts either a bare JSON string or an object holding the id
// under field.
func decodeID(data json.RawMessage, field string) (string, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return "", fmt.Errorf("%w: missing %s", ErrMalformed, field)
	}

	var id string
	if data[0] == '"' {
		if err := json.Unmarshal(data, &id); err != nil {
			return "", fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	} else {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(data, &obj); err != nil {
			return "", fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		raw, ok := obj[field]
		if !ok {
			return "", fmt.Errorf("%w: missing %s", ErrMalformed, field)
		}
		if err := json.Unmarshal(raw, &id); err != nil {
			return "", fmt.Errorf("%w: %s must be a string", ErrMalformed, field)
		}
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("%w: missing %s", ErrMalformed, field)
	}
	return id, nil
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "max":
		return fmt.Sprintf("%s is too long", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	case "url":
		return fmt.Sprintf("%s must be a valid url", fe.Field())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
