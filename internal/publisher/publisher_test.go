package publisher

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeStore records uploads and hands out deterministic URLs. Failures are
// keyed by the uploaded object key.
type fakeStore struct {
	mu       sync.Mutex
	uploaded map[string]string
	failKeys map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		uploaded: make(map[string]string),
		failKeys: make(map[string]bool),
	}
}

func (s *fakeStore) UploadFile(ctx context.Context, key, localPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failKeys[key] {
		return fmt.Errorf("simulated upload failure for %s", key)
	}
	s.uploaded[key] = localPath
	return nil
}

func (s *fakeStore) GetSignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	return "https://store.example/" + key + "?signed", nil
}

func (s *fakeStore) ListFolders(ctx context.Context) ([]string, error) {
	return nil, nil
}

func (s *fakeStore) ListObjects(ctx context.Context, folder string) ([]string, error) {
	return nil, nil
}

func (s *fakeStore) uploadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.uploaded)
}

func TestPublishAll_AllSucceed(t *testing.T) {
	store := newFakeStore()
	p := New(store, 5, time.Hour)

	files := []string{
		"/tmp/out/drums.mp3",
		"/tmp/out/drums_bass.mp3",
		"/tmp/out/drums_bass_guitar.mp3",
		"/tmp/out/drums_bass_guitar_other_piano.mp3",
		"/tmp/out/original_trimmed.mp3",
	}

	urls, err := p.PublishAll(context.Background(), files, "My_Song")
	if err != nil {
		t.Fatalf("PublishAll failed: %v", err)
	}

	if len(urls) != 5 {
		t.Fatalf("expected 5 URLs, got %d", len(urls))
	}
	for name, url := range urls {
		if !strings.Contains(url, "My_Song/"+name) {
			t.Errorf("URL for %s missing folder-qualified key: %s", name, url)
		}
	}
	if store.uploadCount() != 5 {
		t.Errorf("expected 5 uploads, got %d", store.uploadCount())
	}
}

func TestPublishAll_OneFailureFailsBatch(t *testing.T) {
	store := newFakeStore()
	store.failKeys["My_Song/drums_bass.mp3"] = true
	p := New(store, 2, time.Hour)

	files := []string{
		"/tmp/out/drums.mp3",
		"/tmp/out/drums_bass.mp3",
		"/tmp/out/original_trimmed.mp3",
	}

	urls, err := p.PublishAll(context.Background(), files, "My_Song")
	if err == nil {
		t.Fatal("expected batch error, got nil")
	}
	if urls != nil {
		t.Errorf("expected nil URLs on batch failure, got %v", urls)
	}
	if !strings.Contains(err.Error(), "drums_bass.mp3") {
		t.Errorf("error should name the failing unit: %v", err)
	}

	// Completed units are not rolled back.
	store.mu.Lock()
	defer store.mu.Unlock()
	if store.failKeys["My_Song/drums.mp3"] {
		t.Fatal("test setup broken")
	}
	if _, ok := store.uploaded["My_Song/drums_bass.mp3"]; ok {
		t.Error("failed unit should not be recorded as uploaded")
	}
}

func TestPublishAll_CompletedUnitsSurviveFailure(t *testing.T) {
	store := newFakeStore()
	store.failKeys["My_Song/drums_bass.mp3"] = true

	// Single worker drains the jobs in order, so the first unit is
	// guaranteed to finish before the second one fails.
	p := New(store, 1, time.Hour)

	files := []string{
		"/tmp/out/drums.mp3",
		"/tmp/out/drums_bass.mp3",
	}

	if _, err := p.PublishAll(context.Background(), files, "My_Song"); err == nil {
		t.Fatal("expected batch error, got nil")
	}

	// The failed batch does not revert units that already completed; the
	// uploaded object stays in the store.
	store.mu.Lock()
	defer store.mu.Unlock()
	if _, ok := store.uploaded["My_Song/drums.mp3"]; !ok {
		t.Error("completed upload should remain stored after the batch fails")
	}
	if _, ok := store.uploaded["My_Song/drums_bass.mp3"]; ok {
		t.Error("failed unit should not be recorded as uploaded")
	}
}

func TestPublishAll_EmptyBatch(t *testing.T) {
	p := New(newFakeStore(), 5, time.Hour)

	if _, err := p.PublishAll(context.Background(), nil, "folder"); err == nil {
		t.Fatal("expected error for empty batch")
	}
}

func TestPublishAll_MoreWorkersThanFiles(t *testing.T) {
	store := newFakeStore()
	p := New(store, 16, time.Hour)

	urls, err := p.PublishAll(context.Background(), []string{"/tmp/out/original_trimmed.mp3"}, "f")
	if err != nil {
		t.Fatalf("PublishAll failed: %v", err)
	}
	if len(urls) != 1 {
		t.Fatalf("expected 1 URL, got %d", len(urls))
	}
}
