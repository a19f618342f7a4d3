// Package eventlog keeps structured error events for the dashboard. Events
// are captured from the zap logger, so anything logged at or above the
// configured level becomes an event without re-parsing formatted lines.
package eventlog

import (
	"context"
	"time"
)

// Event is one structured log event.
type Event struct {
	ID            string                 `json:"id"`
	Time          time.Time              `json:"time"`
	Level         string                 `json:"level"`
	Category      string                 `json:"category,omitempty"`
	Message       string                 `json:"message"`
	Method        string                 `json:"method,omitempty"`
	Path          string                 `json:"path,omitempty"`
	Status        int                    `json:"status,omitempty"`
	RequestID     string                 `json:"request_id,omitempty"`
	QuestionIndex *int                   `json:"question_index,omitempty"`
	Error         string                 `json:"error,omitempty"`
	Fields        map[string]interface{} `json:"fields,omitempty"`
}

// Store persists events and returns the most recent ones, newest first.
type Store interface {
	Append(ctx context.Context, event Event) error
	Recent(ctx context.Context, limit int) ([]Event, error)
}

// Field names the logger uses that are lifted into Event's typed fields.
const (
	FieldCategory      = "category"
	FieldMethod        = "method"
	FieldPath          = "path"
	FieldStatus        = "status"
	FieldRequestID     = "request_id"
	FieldQuestionIndex = "question_index"
	FieldError         = "error"
)
