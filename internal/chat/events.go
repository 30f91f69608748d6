// Package chat implements the real-time core of Parley: the session registry,
// connection lifecycle, and message routing over WebSocket connections.
package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Event kinds exchanged over the socket. Inbound payloads are tagged and
// validated here, at the transport boundary, before anything reaches the
// router.
const (
	EventSendMessage    = "send_message"
	EventJoinChannel    = "join_channel"
	EventLeaveChannel   = "leave_channel"
	EventServerMessage  = "server_message"
	EventReceiveMessage = "receive_message"
)

// ErrUnknownEvent is returned for an envelope naming no known event kind.
var ErrUnknownEvent = errors.New("chat: unknown event")

// Envelope is the wire frame for every event in either direction.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// SendMessage is the inbound chat message payload. Channel and RecipientUser
// scope delivery; when both are empty the message is a full broadcast.
type SendMessage struct {
	Content       string `json:"content"`
	Channel       string `json:"channel,omitempty"`
	RecipientUser string `json:"recipient_user,omitempty"`
}

// ChannelRequest is the payload for join_channel and leave_channel.
type ChannelRequest struct {
	Channel string `json:"channel"`
}

// ServerMessage is an outbound notice scoped to a single connection.
type ServerMessage struct {
	Message string `json:"message"`
}

// ReceiveMessage is the outbound chat message delivered to each recipient.
type ReceiveMessage struct {
	Username  string    `json:"username"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

func decodeEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("chat: malformed envelope: %w", err)
	}
	switch env.Event {
	case EventSendMessage, EventJoinChannel, EventLeaveChannel:
		return env, nil
	default:
		return Envelope{}, ErrUnknownEvent
	}
}

func marshalEvent(event string, data any) []byte {
	raw, err := json.Marshal(data)
	if err != nil {
		// All outbound payload types marshal cleanly; this is unreachable in
		// practice but kept total.
		return nil
	}
	payload, err := json.Marshal(Envelope{Event: event, Data: raw})
	if err != nil {
		return nil
	}
	return payload
}

func serverMessage(text string) []byte {
	return marshalEvent(EventServerMessage, ServerMessage{Message: text})
}
