package gateway

import (
	"encoding/json"
	"time"
)

// inbound is the wire shape of a client -> server message.
type inbound struct {
	Event         string          `json:"event"`
	Payload       json.RawMessage `json:"payload"`
	CorrelationID string          `json:"correlationId,omitempty"`
}

// outbound is the wire shape of a server -> client message. Timestamp is
// stamped by newOutbound, so every message carries the moment the gateway
// built it.
type outbound struct {
	Event         string      `json:"event"`
	Payload       any         `json:"payload,omitempty"`
	CorrelationID string      `json:"correlationId,omitempty"`
	Timestamp     int64       `json:"timestamp"`
}

func newOutbound(event string, payload any, correlationID string) outbound {
	return outbound{
		Event:         event,
		Payload:       payload,
		CorrelationID: correlationID,
		Timestamp:     time.Now().UnixMilli(),
	}
}

// errorPayload is the body of an `error` (or `*:error`) reply.
type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
