package model

import "time"

// TaskStatus is the caller-visible state of a separation task.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// rank orders statuses for monotonicity checks. Both terminal states share
// the highest rank; there is no transition out of either.
func (s TaskStatus) rank() int {
	switch s {
	case TaskStatusPending:
		return 0
	case TaskStatusInProgress:
		return 1
	case TaskStatusCompleted, TaskStatusFailed:
		return 2
	}
	return -1
}

// CanTransitionTo reports whether moving from s to next keeps the status
// progression non-decreasing with a single terminal state.
func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	if s.Terminal() {
		return false
	}
	return next.rank() >= s.rank()
}

// Terminal reports whether the status is one of the two final states.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// Task represents one separation job. It exists only in memory for the
// duration of its pipeline run; there is no persistent task store.
type Task struct {
	ID          string              `json:"id"`
	SourceRef   string              `json:"sourceRef"`
	Window      Window              `json:"window"`
	Status      TaskStatus          `json:"status"`
	CallbackURL string              `json:"callbackUrl"`
	Artifacts   map[FileKey]*string `json:"artifacts,omitempty"`
	Error       *string             `json:"error,omitempty"`
	CreatedAt   time.Time           `json:"createdAt"`
	StartedAt   *time.Time          `json:"startedAt,omitempty"`
	CompletedAt *time.Time          `json:"completedAt,omitempty"`
}

// Window is the slice of the source audio a task processes. A nil Start means
// the pipeline auto-picks one from the provider heatmap.
type Window struct {
	Start    *int `json:"start,omitempty"`
	Duration int  `json:"duration"`
}

// SeparationJobPayload is the asynq task payload carrying everything the
// worker needs to run one task.
type SeparationJobPayload struct {
	SourceURL    string `json:"sourceUrl,omitempty"`
	UploadedFile string `json:"uploadedFile,omitempty"`
	StartTime    *int   `json:"startTime,omitempty"`
	Duration     int    `json:"duration"`
	CallbackURL  string `json:"callbackUrl"`
}

// SeparateFromLinkRequest is the submit-job request body.
type SeparateFromLinkRequest struct {
	URL         string `json:"url" validate:"required,url"`
	StartTime   *int   `json:"start_time" validate:"omitempty,gte=0"`
	Duration    int    `json:"duration" validate:"omitempty,gt=0,lte=300"`
	CallbackURL string `json:"callback_url" validate:"required,url"`
}

// SeparateAcceptedResponse is the immediate acknowledgment for a submit.
type SeparateAcceptedResponse struct {
	Message string     `json:"message"`
	Status  TaskStatus `json:"status"`
	TaskID  string     `json:"task_id"`
}
