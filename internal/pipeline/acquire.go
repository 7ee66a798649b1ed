package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/stemforge/api/internal/config"
	"github.com/stemforge/api/internal/model"
)

// Acquisition is the output of the source-acquisition stage: a trimmed wav
// ready for separation, plus everything the provider told us about the song.
type Acquisition struct {
	TrimmedPath   string
	Title         string
	Metadata      model.SongMetadata
	ResolvedStart int
	WorkDir       string
}

// Fetcher retrieves source audio through the external media-fetch tool and
// trims it to the requested window with ffmpeg.
type Fetcher struct {
	fetchCfg     config.FetchConfig
	ffmpegPath   string
	downloadRoot string
}

func NewFetcher(fetchCfg config.FetchConfig, ffmpegCfg config.FFmpegConfig, paths config.PathsConfig) *Fetcher {
	return &Fetcher{
		fetchCfg:     fetchCfg,
		ffmpegPath:   ffmpegCfg.BinPath,
		downloadRoot: paths.DownloadDir,
	}
}

// mediaInfo is the slice of the fetch tool's info JSON we care about.
type mediaInfo struct {
	Title      string          `json:"title"`
	Artist     string          `json:"artist"`
	Uploader   string          `json:"uploader"`
	Album      string          `json:"album"`
	Duration   float64         `json:"duration"`
	ViewCount  int64           `json:"view_count"`
	UploadDate string          `json:"upload_date"`
	Heatmap    []HeatmapSample `json:"heatmap"`
	Entries    []*mediaInfo    `json:"entries"`

	RequestedDownloads []struct {
		Filepath string `json:"filepath"`
	} `json:"requested_downloads"`
}

// Acquire downloads the best audio for ref (a direct URL, or a provider
// search when searchTerm is set), resolves the window start, and trims the
// result to [start, start+duration]. Partial downloads never outlive a failed
// attempt.
func (f *Fetcher) Acquire(ctx context.Context, ref, searchTerm string, explicitStart *int, duration int, taskID string) (*Acquisition, error) {
	target := ref
	if searchTerm != "" {
		target = "ytsearch1:" + searchTerm
		log.Printf("Acquiring audio via search term %q", searchTerm)
	} else {
		log.Printf("Acquiring audio from %s", ref)
	}

	workDir := filepath.Join(f.downloadRoot, taskID)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, acquisitionError("create download dir: %w", err)
	}

	info, err := f.fetch(ctx, target, workDir)
	if err != nil {
		Cleanup(workDir)
		return nil, err
	}

	if len(info.Entries) > 0 {
		info = info.Entries[0]
	}
	if len(info.RequestedDownloads) == 0 {
		Cleanup(workDir)
		return nil, acquisitionError("fetch tool reported no downloaded file")
	}
	originalPath := info.RequestedDownloads[0].Filepath
	log.Printf("Downloaded audio to %s", originalPath)

	start := ResolveStart(explicitStart, info.Heatmap)
	if explicitStart == nil {
		log.Printf("Auto-picked start time %ds from heatmap (%d samples)", start, len(info.Heatmap))
	}

	title := strings.TrimSuffix(filepath.Base(originalPath), filepath.Ext(originalPath))
	if info.Title != "" {
		title = info.Title
	}

	// The trim output is named after the downloaded file, never the raw
	// provider title: titles can carry path separators.
	trimmedPath := filepath.Join(workDir, trimmedFileName(originalPath))
	if err := f.trim(ctx, originalPath, trimmedPath, start, duration); err != nil {
		Cleanup(workDir)
		return nil, err
	}

	// The full-length download is only needed until the trim lands.
	Cleanup(originalPath)

	return &Acquisition{
		TrimmedPath:   trimmedPath,
		Title:         title,
		Metadata:      buildMetadata(info),
		ResolvedStart: start,
		WorkDir:       workDir,
	}, nil
}

// AcquireUpload trims an already-uploaded local file. No provider metadata
// and no heatmap exist, so the window starts at the explicit start or 0.
func (f *Fetcher) AcquireUpload(ctx context.Context, uploadedFile string, explicitStart *int, duration int, taskID string) (*Acquisition, error) {
	workDir := filepath.Join(f.downloadRoot, taskID)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, acquisitionError("create work dir: %w", err)
	}

	start := 0
	if explicitStart != nil {
		start = *explicitStart
	}

	title := strings.TrimSuffix(filepath.Base(uploadedFile), filepath.Ext(uploadedFile))
	trimmedPath := filepath.Join(workDir, trimmedFileName(uploadedFile))
	if err := f.trim(ctx, uploadedFile, trimmedPath, start, duration); err != nil {
		Cleanup(workDir)
		return nil, err
	}

	return &Acquisition{
		TrimmedPath:   trimmedPath,
		Title:         title,
		Metadata:      model.SongMetadata{Title: title, Artists: []string{"Unknown Artist"}, Album: "Unknown Album"},
		ResolvedStart: start,
		WorkDir:       workDir,
	}, nil
}

// trimmedFileName names the trim output after the source file's stem. The
// fetch tool has already made that stem filesystem-safe, and SanitizeName
// guards against anything that slipped through.
func trimmedFileName(sourcePath string) string {
	stem := strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))
	return fmt.Sprintf("trimmed_%s.wav", SanitizeName(stem))
}

func (f *Fetcher) fetch(ctx context.Context, target, workDir string) (*mediaInfo, error) {
	args := []string{
		"-f", "bestaudio/best",
		"--no-playlist",
		"-x", "--audio-format", "wav",
		"--postprocessor-args", "ffmpeg:-ar 44100 -ac 2",
		"--print-json",
		"-o", filepath.Join(workDir, "%(title)s.%(ext)s"),
	}
	if f.fetchCfg.Proxy != "" {
		args = append(args, "--proxy", f.fetchCfg.Proxy)
	}
	if f.fetchCfg.CookiesFile != "" {
		if _, err := os.Stat(f.fetchCfg.CookiesFile); err == nil {
			args = append(args, "--cookies", f.fetchCfg.CookiesFile)
		}
	}
	args = append(args, target)

	cmd := exec.CommandContext(ctx, f.fetchCfg.BinPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, acquisitionError("fetch tool failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	var info mediaInfo
	if err := json.Unmarshal(stdout.Bytes(), &info); err != nil {
		return nil, acquisitionError("decode fetch info: %w", err)
	}
	return &info, nil
}

func (f *Fetcher) trim(ctx context.Context, inputPath, outputPath string, start, duration int) error {
	cmd := exec.CommandContext(ctx, f.ffmpegPath,
		"-ss", strconv.Itoa(start),
		"-i", inputPath,
		"-t", strconv.Itoa(duration),
		"-c:a", "pcm_s16le",
		"-y",
		"-loglevel", "error",
		outputPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return acquisitionError("trim audio: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	log.Printf("Trimmed audio saved to %s", outputPath)
	return nil
}

func buildMetadata(info *mediaInfo) model.SongMetadata {
	artist := info.Artist
	if artist == "" {
		artist = info.Uploader
	}
	if artist == "" {
		artist = "Unknown Artist"
	}

	album := info.Album
	if album == "" {
		album = "Unknown Album"
	}

	year := 0
	if len(info.UploadDate) >= 4 {
		if y, err := strconv.Atoi(info.UploadDate[:4]); err == nil {
			year = y
		}
	}

	title := info.Title
	if title == "" {
		title = "Unknown Title"
	}

	return model.SongMetadata{
		Title:      title,
		Artists:    []string{artist},
		Album:      album,
		Duration:   int(info.Duration),
		Year:       year,
		Popularity: info.ViewCount,
	}
}
