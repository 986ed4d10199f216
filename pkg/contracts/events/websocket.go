// Package events defines the wire contract for messages pushed over the
// dashboard WebSocket. Every frame is an Envelope; the Type field tells
// clients how to interpret Data.
package events

import "time"

// Message types carried in the Envelope Type field.
const (
	// TypeConnection is the welcome frame sent once when a client connects.
	TypeConnection = "connection"

	// TypeDatasetReloaded announces that a new dataset snapshot is live.
	// Data carries the summary of the fresh snapshot in the same shape the
	// dataset endpoint reports.
	TypeDatasetReloaded = "dataset:reloaded"

	// TypeError reports a server-side failure to connected clients.
	TypeError = "error"
)

// Envelope is the frame every WebSocket message is wrapped in. TraceID is
// only set on frames tied to a specific request, such as the welcome frame.
type Envelope struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp string      `json:"timestamp"`
	TraceID   string      `json:"trace_id,omitempty"`
}

// NewEnvelope wraps data in an Envelope stamped with the current time.
func NewEnvelope(messageType string, data interface{}) Envelope {
	return Envelope{
		Type:      messageType,
		Data:      data,
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

// ConnectionAck is the Data payload of TypeConnection frames.
type ConnectionAck struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	ClientID string `json:"client_id"`
}

// ErrorEvent is the Data payload of TypeError frames.
type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
