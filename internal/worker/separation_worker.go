package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stemforge/api/internal/client"
	"github.com/stemforge/api/internal/model"
	"github.com/stemforge/api/internal/pipeline"
	"github.com/stemforge/api/internal/service"
)

// Acquirer retrieves and trims source audio for a task.
type Acquirer interface {
	Acquire(ctx context.Context, ref, searchTerm string, explicitStart *int, duration int, taskID string) (*pipeline.Acquisition, error)
	AcquireUpload(ctx context.Context, uploadedFile string, explicitStart *int, duration int, taskID string) (*pipeline.Acquisition, error)
}

// StemSeparator invokes the separation engine.
type StemSeparator interface {
	Separate(ctx context.Context, audioPath, outputDir string) (string, error)
}

// MixComposer renders the remix cascade from separated stems.
type MixComposer interface {
	Compose(ctx context.Context, stemsDir, trimmedPath, outputDir string) (map[string]string, error)
}

// ArtifactPublisher uploads produced files and issues access URLs.
type ArtifactPublisher interface {
	PublishAll(ctx context.Context, files []string, folder string) (map[string]string, error)
}

// StatusNotifier delivers task-status webhooks.
type StatusNotifier interface {
	Enqueue(ctx context.Context, target string, payload interface{})
	Send(ctx context.Context, target string, payload interface{}) error
}

// StatusBroadcaster feeds the live websocket status channel.
type StatusBroadcaster interface {
	BroadcastStatus(taskID string, update model.TaskStatusUpdate)
	BroadcastResult(taskID string, result *model.TaskResultBody)
}

// SeparationWorker is the task orchestrator. It owns the per-task state
// machine and runs the pipeline stages strictly in sequence: resolve window
// and acquire source, separate, compose, publish, notify, clean up. Each
// stage is attempted once; the first failure ends the task.
type SeparationWorker struct {
	acquirer   Acquirer
	separator  StemSeparator
	composer   MixComposer
	publisher  ArtifactPublisher
	notifier   StatusNotifier
	hub        StatusBroadcaster
	lookup     client.TrackLookup
	outputRoot string
}

func NewSeparationWorker(
	acquirer Acquirer,
	separator StemSeparator,
	composer MixComposer,
	publisher ArtifactPublisher,
	notifier StatusNotifier,
	hub StatusBroadcaster,
	lookup client.TrackLookup,
	outputRoot string,
) *SeparationWorker {
	return &SeparationWorker{
		acquirer:   acquirer,
		separator:  separator,
		composer:   composer,
		publisher:  publisher,
		notifier:   notifier,
		hub:        hub,
		lookup:     lookup,
		outputRoot: outputRoot,
	}
}

// ProcessTask runs one separation task end to end.
func (w *SeparationWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var envelope service.TaskEnvelope
	if err := json.Unmarshal(t.Payload(), &envelope); err != nil {
		return fmt.Errorf("failed to unmarshal task envelope: %w", err)
	}

	var payload model.SeparationJobPayload
	if err := json.Unmarshal(envelope.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal separation payload: %w", err)
	}

	task := &model.Task{
		ID:          envelope.TaskID,
		SourceRef:   payload.SourceURL,
		Window:      model.Window{Start: payload.StartTime, Duration: payload.Duration},
		Status:      model.TaskStatusPending,
		CallbackURL: payload.CallbackURL,
		CreatedAt:   time.Now(),
	}
	if task.SourceRef == "" {
		task.SourceRef = payload.UploadedFile
	}

	log.Printf("Starting separation task %s for %s", task.ID, task.SourceRef)
	w.pushStatus(ctx, task, model.TaskStatusPending, "Task started")

	result, cleanupPaths, err := w.run(ctx, task, &payload)

	// Terminal notification first, then cleanup; cleanup runs on every
	// outcome.
	defer pipeline.Cleanup(cleanupPaths...)

	if err != nil {
		// The failure was reported over the webhook; returning nil keeps
		// asynq from ever replaying the task.
		w.failTask(ctx, task, err)
		return nil
	}

	w.completeTask(ctx, task, result)
	return nil
}

// run executes the pipeline stages and returns the terminal-success payload.
// Whatever local paths exist by the time it returns are handed back for
// cleanup regardless of outcome.
func (w *SeparationWorker) run(ctx context.Context, task *model.Task, payload *model.SeparationJobPayload) (*model.TaskResultBody, []string, error) {
	var cleanupPaths []string

	// A playlist reference resolves to a provider search for one of its
	// tracks.
	searchTerm := ""
	if payload.SourceURL != "" && strings.Contains(payload.SourceURL, "spotify.com") {
		w.pushStatus(ctx, task, model.TaskStatusInProgress, "Searching catalog track")
		track, err := w.lookup.RandomPlaylistTrack(ctx, payload.SourceURL)
		if err != nil {
			return nil, cleanupPaths, &pipeline.StageError{Kind: pipeline.StageAcquisition, Err: fmt.Errorf("resolve playlist track: %w", err)}
		}
		searchTerm = track.PrimaryArtist() + " - " + track.Name
		log.Printf("Task %s resolved playlist to %q", task.ID, searchTerm)
	}

	w.pushStatus(ctx, task, model.TaskStatusInProgress, "Downloading audio")
	var (
		acq *pipeline.Acquisition
		err error
	)
	if payload.UploadedFile != "" {
		cleanupPaths = append(cleanupPaths, payload.UploadedFile)
		acq, err = w.acquirer.AcquireUpload(ctx, payload.UploadedFile, payload.StartTime, payload.Duration, task.ID)
	} else {
		acq, err = w.acquirer.Acquire(ctx, payload.SourceURL, searchTerm, payload.StartTime, payload.Duration, task.ID)
	}
	if err != nil {
		return nil, cleanupPaths, err
	}
	cleanupPaths = append(cleanupPaths, acq.WorkDir)

	// Scratch space is keyed by task ID, so two tasks for the same song
	// never share local files. The storage folder keeps the song title;
	// resubmitting a song overwrites that song's previous objects.
	taskFolder := pipeline.SanitizeName(acq.Title)
	outputDir := filepath.Join(w.outputRoot, task.ID)
	cleanupPaths = append(cleanupPaths, outputDir)

	w.pushStatus(ctx, task, model.TaskStatusInProgress, "Separating audio")
	stemsDir, err := w.separator.Separate(ctx, acq.TrimmedPath, outputDir)
	if err != nil {
		return nil, cleanupPaths, err
	}

	w.pushStatus(ctx, task, model.TaskStatusInProgress, "Merging and uploading")
	produced, err := w.composer.Compose(ctx, stemsDir, acq.TrimmedPath, outputDir)
	if err != nil {
		return nil, cleanupPaths, err
	}

	files := make([]string, 0, len(produced))
	for _, path := range produced {
		files = append(files, path)
	}
	urls, err := w.publisher.PublishAll(ctx, files, taskFolder)
	if err != nil {
		return nil, cleanupPaths, pipeline.PublishError(err)
	}

	// Every schema key appears in the result; keys whose remix was skipped
	// carry null.
	fileKeys := make(map[model.FileKey]*string, len(model.FileKeyMapping))
	task.Artifacts = fileKeys
	for fileName, key := range model.FileKeyMapping {
		if url, ok := urls[fileName]; ok {
			u := url
			fileKeys[key] = &u
		} else {
			fileKeys[key] = nil
		}
	}

	return &model.TaskResultBody{
		TaskStatus: model.TaskStatusUpdate{
			Status:  model.TaskStatusCompleted,
			Message: "Process complete",
		},
		SongMetadata: acq.Metadata,
		FileKeys:     fileKeys,
	}, cleanupPaths, nil
}

// pushStatus advances the task state machine and emits the update to the
// webhook queue and the websocket feed without blocking the pipeline.
func (w *SeparationWorker) pushStatus(ctx context.Context, task *model.Task, status model.TaskStatus, message string) {
	if !task.Status.CanTransitionTo(status) {
		log.Printf("Task %s: refusing status transition %s -> %s", task.ID, task.Status, status)
		return
	}
	if status == model.TaskStatusInProgress && task.StartedAt == nil {
		now := time.Now()
		task.StartedAt = &now
	}
	task.Status = status

	update := model.TaskStatusUpdate{Status: status, Message: message}
	w.notifier.Enqueue(ctx, task.CallbackURL, update)
	w.hub.BroadcastStatus(task.ID, update)
}

// completeTask delivers the terminal success notification. It is the last
// observable action of the task, so delivery is synchronous.
func (w *SeparationWorker) completeTask(ctx context.Context, task *model.Task, result *model.TaskResultBody) {
	now := time.Now()
	task.CompletedAt = &now
	task.Status = model.TaskStatusCompleted

	if err := w.notifier.Send(ctx, task.CallbackURL, result); err != nil {
		log.Printf("Task %s: terminal callback failed: %v", task.ID, err)
	}
	w.hub.BroadcastResult(task.ID, result)
	log.Printf("Separation task %s completed", task.ID)
}

// failTask delivers the single terminal failure notification carrying the
// stage error's message.
func (w *SeparationWorker) failTask(ctx context.Context, task *model.Task, taskErr error) {
	now := time.Now()
	task.CompletedAt = &now
	task.Status = model.TaskStatusFailed
	msg := taskErr.Error()
	task.Error = &msg

	update := model.TaskStatusUpdate{Status: model.TaskStatusFailed, Message: msg}
	if err := w.notifier.Send(ctx, task.CallbackURL, update); err != nil {
		log.Printf("Task %s: failure callback failed: %v", task.ID, err)
	}
	w.hub.BroadcastStatus(task.ID, update)
	log.Printf("Separation task %s failed: %v", task.ID, taskErr)
}
