// Package events contains the event contract definitions for WebSocket communication
// between the Ferroci Analyzer server and the browser GUI.
package events

import (
	"time"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// Status log line, the primary event type
	MessageTypeStatusLog MessageType = "status:log"

	// Results of a working directory changed (new row or new reference)
	MessageTypeResultsUpdated MessageType = "results:updated"

	// Drop lifecycle
	MessageTypeDropStarted  MessageType = "drop:started"
	MessageTypeDropFinished MessageType = "drop:finished"

	// Sent once to a newly connected client
	MessageTypeConnect MessageType = "connect"
)

// Level is the severity shown in the status log panel
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// BaseMessage represents the base structure for all WebSocket messages
type BaseMessage struct {
	ID        string      `json:"id,omitempty"`       // Unique message ID
	Type      MessageType `json:"type"`               // Message type
	Timestamp time.Time   `json:"timestamp"`          // Message timestamp
	TraceID   string      `json:"trace_id,omitempty"` // Drop trace ID
}

// WebSocketMessage represents a complete WebSocket message
type WebSocketMessage struct {
	BaseMessage
	Data interface{} `json:"data,omitempty"` // Message payload
}

// StatusEntry is one line of the status log
type StatusEntry struct {
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	File      string    `json:"file,omitempty"`
	Directory string    `json:"directory,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	TraceID   string    `json:"trace_id,omitempty"`
}

// ResultsUpdated tells the GUI to reload table and plot for a directory
type ResultsUpdated struct {
	Directory string `json:"directory"`
	RowCount  int    `json:"row_count"`
	State     string `json:"state"`
}
