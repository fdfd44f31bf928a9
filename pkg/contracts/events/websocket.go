// Package events contains the websocket message contracts pushed to admin
// dashboards.
package events

import (
	"time"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// MessageTypeConnect is sent once to every new client and carries the
	// current license status.
	MessageTypeConnect MessageType = "connect"

	// MessageTypeLicenseStatus is broadcast on every license state change.
	MessageTypeLicenseStatus MessageType = "license:status"
)

// WebSocketMessage is the envelope of every server-to-client message.
type WebSocketMessage struct {
	Type      MessageType `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
	TraceID   string      `json:"trace_id,omitempty"`
}

// LicenseStatusData is the payload of license:status and connect messages.
type LicenseStatusData struct {
	Valid    bool      `json:"valid"`
	State    string    `json:"state"`
	Error    string    `json:"error,omitempty"`
	Mode     string    `json:"mode,omitempty"`
	Reason   string    `json:"reason,omitempty"`
	ClientID string    `json:"client_id,omitempty"`
	At       time.Time `json:"at"`
}
