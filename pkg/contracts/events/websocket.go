// Package events contains the WebSocket message contracts published while
// rejection workbooks are analyzed.
package events

import (
	"time"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	MessageTypeAnalysisStarted   MessageType = "analysis:started"
	MessageTypeAnalysisCompleted MessageType = "analysis:completed"

	MessageTypeConnect MessageType = "connect"
	MessageTypeError   MessageType = "error"
)

// Message is the envelope of every WebSocket message
type Message struct {
	ID        string      `json:"id,omitempty"`
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	TraceID   string      `json:"trace_id,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

// AnalysisSummary is the payload of analysis messages. It carries section
// outcomes only; clients fetch the full report over HTTP.
type AnalysisSummary struct {
	RunID     string            `json:"run_id"`
	Source    string            `json:"source"`
	Status    string            `json:"status"`
	Sections  map[string]string `json:"sections,omitempty"`
	Warnings  int               `json:"warnings"`
	Duration  string            `json:"duration,omitempty"`
	StartedAt time.Time         `json:"started_at"`
}
