// Package event provides the job lifecycle event bus and stores.
package event

import (
	"encoding/json"
	"time"

	"github.com/ncobase/spacearc/job/structs"
)

// EventType identifies a job lifecycle event.
type EventType string

const (
	EventTypeJobCreated   EventType = "job.created"
	EventTypeJobClaimed   EventType = "job.claimed"
	EventTypeJobCompleted EventType = "job.completed"
	EventTypeJobFailed    EventType = "job.failed"
	EventTypeJobCancelled EventType = "job.cancelled"
	EventTypeJobRetried   EventType = "job.retried"
	EventTypeJobReaped    EventType = "job.reaped"
)

// Event records one job lifecycle transition.
type Event struct {
	ID        string         `json:"id" bson:"id"`
	Type      EventType      `json:"type" bson:"type"`
	JobID     int64          `json:"job_id" bson:"job_id"`
	Kind      string         `json:"kind,omitempty" bson:"kind,omitempty"`
	SpaceID   string         `json:"space_id,omitempty" bson:"space_id,omitempty"`
	Status    string         `json:"status,omitempty" bson:"status,omitempty"`
	Error     string         `json:"error,omitempty" bson:"error,omitempty"`
	Payload   map[string]any `json:"payload,omitempty" bson:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp" bson:"timestamp"`
}

// JobEvent builds an event snapshotting the job's identity and state.
func JobEvent(eventType EventType, job *structs.Job) *Event {
	return &Event{
		Type:    eventType,
		JobID:   job.ID,
		Kind:    string(job.Kind),
		SpaceID: job.SpaceID,
		Status:  string(job.Status),
		Error:   job.Error,
	}
}

// MarshalEvent marshals an event to JSON.
func MarshalEvent(event *Event) ([]byte, error) {
	return json.Marshal(event)
}

// UnmarshalEvent unmarshals an event from JSON.
func UnmarshalEvent(data []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, err
	}
	return &event, nil
}
