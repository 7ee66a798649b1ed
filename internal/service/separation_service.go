package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stemforge/api/internal/model"
)

const TaskTypeSeparate = "separation:process"

const defaultDuration = 30

// TaskEnvelope wraps the job payload with its task ID for the queue.
type TaskEnvelope struct {
	TaskID  string          `json:"taskId"`
	Payload json.RawMessage `json:"payload"`
}

// SeparationService accepts separation jobs and hands them to the queue. The
// submit path returns as soon as the task is enqueued; all further progress
// reaches the caller through webhooks.
type SeparationService struct {
	asynqClient *asynq.Client
}

func NewSeparationService(asynqClient *asynq.Client) *SeparationService {
	return &SeparationService{asynqClient: asynqClient}
}

// SubmitLink enqueues a separation task for a media or playlist URL.
func (s *SeparationService) SubmitLink(ctx context.Context, req *model.SeparateFromLinkRequest) (*model.SeparateAcceptedResponse, error) {
	payload := &model.SeparationJobPayload{
		SourceURL:   req.URL,
		StartTime:   req.StartTime,
		Duration:    req.Duration,
		CallbackURL: req.CallbackURL,
	}
	return s.enqueue(ctx, payload)
}

// SubmitFile enqueues a separation task for an already-saved upload.
func (s *SeparationService) SubmitFile(ctx context.Context, localPath string, startTime *int, duration int, callbackURL string) (*model.SeparateAcceptedResponse, error) {
	payload := &model.SeparationJobPayload{
		UploadedFile: localPath,
		StartTime:    startTime,
		Duration:     duration,
		CallbackURL:  callbackURL,
	}
	return s.enqueue(ctx, payload)
}

func (s *SeparationService) enqueue(ctx context.Context, payload *model.SeparationJobPayload) (*model.SeparateAcceptedResponse, error) {
	if payload.Duration == 0 {
		payload.Duration = defaultDuration
	}

	taskID := uuid.New().String()

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	envelope, err := json.Marshal(TaskEnvelope{TaskID: taskID, Payload: payloadBytes})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal task envelope: %w", err)
	}

	task := asynq.NewTask(TaskTypeSeparate, envelope)

	// MaxRetry(0): a failed task is reported over the webhook and must be
	// resubmitted by the caller, never replayed by the queue.
	_, err = s.asynqClient.EnqueueContext(ctx, task,
		asynq.Queue("separate"),
		asynq.MaxRetry(0),
		asynq.Timeout(30*time.Minute),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue task: %w", err)
	}

	return &model.SeparateAcceptedResponse{
		Message: "Request received and processing started",
		Status:  model.TaskStatusPending,
		TaskID:  taskID,
	}, nil
}
