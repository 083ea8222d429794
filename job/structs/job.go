// Package structs defines the job record and its lifecycle vocabulary.
package structs

import "time"

// JobKind identifies the type of work a job performs.
type JobKind string

// Job kinds accepted by the enqueue API.
const (
	KindSpaceDownload   JobKind = "space_download"
	KindTranscription   JobKind = "transcription"
	KindTranslation     JobKind = "translation"
	KindVideoGeneration JobKind = "video_generation"
	KindTTS             JobKind = "tts"
)

// Kinds returns every known job kind.
func Kinds() []JobKind {
	return []JobKind{
		KindSpaceDownload,
		KindTranscription,
		KindTranslation,
		KindVideoGeneration,
		KindTTS,
	}
}

// IsValid reports whether k names a known job kind.
func (k JobKind) IsValid() bool {
	switch k {
	case KindSpaceDownload, KindTranscription, KindTranslation, KindVideoGeneration, KindTTS:
		return true
	}
	return false
}

// JobStatus represents the lifecycle state of a job.
type JobStatus string

// Job lifecycle states.
const (
	StatusPending     JobStatus = "pending"
	StatusInProgress  JobStatus = "in_progress"
	StatusDownloading JobStatus = "downloading"
	StatusProcessing  JobStatus = "processing"
	StatusCompleted   JobStatus = "completed"
	StatusFailed      JobStatus = "failed"
	StatusCancelled   JobStatus = "cancelled"
)

// ActiveStatuses are the states owned by a running worker. Rows in these
// states carry a live heartbeat in updated_at and are watched by the reaper.
func ActiveStatuses() []JobStatus {
	return []JobStatus{StatusInProgress, StatusDownloading, StatusProcessing}
}

// IsActive reports whether a worker currently owns the job.
func (s JobStatus) IsActive() bool {
	switch s {
	case StatusInProgress, StatusDownloading, StatusProcessing:
		return true
	}
	return false
}

// IsValid reports whether s names a known lifecycle state.
func (s JobStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusDownloading, StatusProcessing,
		StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether the job reached a final state. Terminal rows are
// immutable except for an admin retry, which resets them to pending.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// transitions is the forward edge set of the job state machine.
var transitions = map[JobStatus][]JobStatus{
	StatusPending:     {StatusInProgress, StatusFailed, StatusCancelled},
	StatusInProgress:  {StatusDownloading, StatusProcessing, StatusCompleted, StatusFailed},
	StatusDownloading: {StatusProcessing, StatusCompleted, StatusFailed},
	StatusProcessing:  {StatusCompleted, StatusFailed},
}

// CanTransition reports whether the state machine allows moving from one
// status to another. Terminal states have no outgoing edges; the admin reset
// to pending is handled separately by the repository.
func CanTransition(from, to JobStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Job is one unit of archive work tracked in the jobs table.
type Job struct {
	ID          int64          `json:"id"`
	SpaceID     string         `json:"space_id"`
	Kind        JobKind        `json:"kind"`
	Status      JobStatus      `json:"status"`
	Progress    int            `json:"progress_percent"`
	BytesDone   int64          `json:"bytes_done"`
	ETASeconds  *int64         `json:"eta_seconds,omitempty"`
	Payload     map[string]any `json:"payload,omitempty"`
	CreatedBy   string         `json:"created_by,omitempty"`
	NotifyEmail string         `json:"notify_email,omitempty"`
	OutputPath  string         `json:"output_path,omitempty"`
	Error       string         `json:"error_message,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	StartTime   *time.Time     `json:"start_time,omitempty"`
	EndTime     *time.Time     `json:"end_time,omitempty"`
}

// Elapsed returns the wall time the job has been running, zero before claim.
func (j *Job) Elapsed(now time.Time) time.Duration {
	if j.StartTime == nil {
		return 0
	}
	end := now
	if j.EndTime != nil {
		end = *j.EndTime
	}
	if end.Before(*j.StartTime) {
		return 0
	}
	return end.Sub(*j.StartTime)
}
