package model

// FileKey identifies one deliverable artifact in the webhook payload.
type FileKey string

const (
	FileKeyDrums    FileKey = "drums"
	FileKeyBass     FileKey = "bass"
	FileKeyGuitar   FileKey = "guitar"
	FileKeyOther    FileKey = "other"
	FileKeyOriginal FileKey = "original"
)

// FileKeyMapping fixes the produced file name for each webhook key. The names
// encode the cumulative stem set of the cascade and must not change: callers
// key off them.
var FileKeyMapping = map[string]FileKey{
	"drums.mp3":                         FileKeyDrums,
	"drums_bass.mp3":                    FileKeyBass,
	"drums_bass_guitar.mp3":             FileKeyGuitar,
	"drums_bass_guitar_other_piano.mp3": FileKeyOther,
	"original_trimmed.mp3":              FileKeyOriginal,
}

// TaskStatusUpdate is an intermediate or terminal-failure webhook body.
type TaskStatusUpdate struct {
	Status  TaskStatus `json:"status"`
	Message string     `json:"message"`
}

// SongMetadata describes the processed song, resolved from the source
// provider's info at fetch time.
type SongMetadata struct {
	Title      string   `json:"title"`
	Artists    []string `json:"artists"`
	Album      string   `json:"album"`
	Duration   int      `json:"duration"`
	Year       int      `json:"year"`
	Popularity int64    `json:"popularity"`
}

// TaskResultBody is the terminal-success webhook body. A nil URL marks a
// remix that was intentionally skipped because all its stems were silent.
type TaskResultBody struct {
	TaskStatus   TaskStatusUpdate    `json:"task_status"`
	SongMetadata SongMetadata        `json:"song_metadata"`
	FileKeys     map[FileKey]*string `json:"file_keys"`
}
