package realtime

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/neexbeast/destinasi/internal/wishlist"
)

// MessageType identifies a sync message.
type MessageType string

const (
	// Client -> server
	TypeAuth    MessageType = "auth"
	TypeToggle  MessageType = "toggle"
	TypeRefresh MessageType = "refresh"
	TypePing    MessageType = "ping"

	// Server -> client
	TypeMembership   MessageType = "membership"
	TypeToggleResult MessageType = "toggle_result"
	TypeError        MessageType = "error"
	TypePong         MessageType = "pong"
)

// KindBadRequest is reported for malformed client messages.
const KindBadRequest = "bad_request"

// ClientMessage is a command sent by the browser.
type ClientMessage struct {
	Type          MessageType `json:"type"`
	Token         string      `json:"token,omitempty"`
	DestinationID string      `json:"destination_id,omitempty"`
}

// Message is the envelope for every server message.
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   any         `json:"payload,omitempty"`
}

func NewMessage(t MessageType, payload any) Message {
	return Message{Type: t, Timestamp: time.Now().UTC(), Payload: payload}
}

func (m Message) JSON() ([]byte, error) {
	return json.Marshal(m)
}

// ErrorPayload is the payload of an error message.
type ErrorPayload struct {
	Kind          string `json:"kind"`
	Message       string `json:"message"`
	DestinationID string `json:"destination_id,omitempty"`
}

func errorPayload(err error) ErrorPayload {
	var we *wishlist.Error
	if errors.As(err, &we) {
		return ErrorPayload{Kind: string(we.Kind), Message: we.Message(), DestinationID: we.DestinationID}
	}
	return ErrorPayload{Kind: string(wishlist.KindTransient), Message: "Could not reach the server. Please try again."}
}
