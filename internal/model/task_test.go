package model

import (
	"encoding/json"
	"testing"
)

func TestTaskStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to TaskStatus
		allowed  bool
	}{
		{TaskStatusPending, TaskStatusInProgress, true},
		{TaskStatusPending, TaskStatusCompleted, true},
		{TaskStatusPending, TaskStatusFailed, true},
		{TaskStatusPending, TaskStatusPending, true},
		{TaskStatusInProgress, TaskStatusInProgress, true},
		{TaskStatusInProgress, TaskStatusCompleted, true},
		{TaskStatusInProgress, TaskStatusFailed, true},
		{TaskStatusInProgress, TaskStatusPending, false},
		{TaskStatusCompleted, TaskStatusFailed, false},
		{TaskStatusCompleted, TaskStatusInProgress, false},
		{TaskStatusFailed, TaskStatusCompleted, false},
		{TaskStatusFailed, TaskStatusPending, false},
	}

	for _, c := range cases {
		if got := c.from.CanTransitionTo(c.to); got != c.allowed {
			t.Errorf("%s -> %s: got %v, want %v", c.from, c.to, got, c.allowed)
		}
	}
}

func TestTaskStatusTerminal(t *testing.T) {
	if TaskStatusPending.Terminal() || TaskStatusInProgress.Terminal() {
		t.Error("pending and in_progress are not terminal")
	}
	if !TaskStatusCompleted.Terminal() || !TaskStatusFailed.Terminal() {
		t.Error("completed and failed are terminal")
	}
}

func TestTaskResultBody_NullFileKeys(t *testing.T) {
	url := "https://store.example/Song/drums.mp3?signed"
	body := TaskResultBody{
		TaskStatus:   TaskStatusUpdate{Status: TaskStatusCompleted, Message: "Process complete"},
		SongMetadata: SongMetadata{Title: "Song", Artists: []string{"Artist"}},
		FileKeys: map[FileKey]*string{
			FileKeyDrums: &url,
			FileKeyBass:  nil,
		},
	}

	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}

	fileKeys, ok := decoded["file_keys"].(map[string]interface{})
	if !ok {
		t.Fatal("expected file_keys object")
	}
	if fileKeys["drums"] != url {
		t.Errorf("drums key: got %v", fileKeys["drums"])
	}
	if v, present := fileKeys["bass"]; !present || v != nil {
		t.Errorf("bass key should be present and null, got %v (present=%v)", v, present)
	}
}

func TestFileKeyMapping_CoversContract(t *testing.T) {
	want := map[string]FileKey{
		"drums.mp3":                         FileKeyDrums,
		"drums_bass.mp3":                    FileKeyBass,
		"drums_bass_guitar.mp3":             FileKeyGuitar,
		"drums_bass_guitar_other_piano.mp3": FileKeyOther,
		"original_trimmed.mp3":              FileKeyOriginal,
	}

	if len(FileKeyMapping) != len(want) {
		t.Fatalf("expected %d mapped files, got %d", len(want), len(FileKeyMapping))
	}
	for file, key := range want {
		if FileKeyMapping[file] != key {
			t.Errorf("%s: got %s, want %s", file, FileKeyMapping[file], key)
		}
	}
}
