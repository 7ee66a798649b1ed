package publisher

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/stemforge/api/internal/client"
)

// Publisher uploads a task's artifact files and issues time-limited access
// URLs for them, with a bounded amount of parallelism per batch.
type Publisher struct {
	store       client.ObjectStore
	concurrency int
	urlExpiry   time.Duration
}

func New(store client.ObjectStore, concurrency int, urlExpiry time.Duration) *Publisher {
	if concurrency <= 0 {
		concurrency = 5
	}
	return &Publisher{
		store:       store,
		concurrency: concurrency,
		urlExpiry:   urlExpiry,
	}
}

// PublishAll uploads every file into {folder}/{filename} and returns file
// names mapped to presigned URLs. Each unit is upload-then-presign and fails
// atomically. The first unit failure fails the whole batch; units that
// already completed are not rolled back, their objects stay stored.
func (p *Publisher) PublishAll(ctx context.Context, files []string, folder string) (map[string]string, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("no files to publish")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan string, len(files))
	for _, f := range files {
		jobs <- f
	}
	close(jobs)

	var (
		mu       sync.Mutex
		urls     = make(map[string]string, len(files))
		firstErr error
	)

	workers := p.concurrency
	if len(files) < workers {
		workers = len(files)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				if ctx.Err() != nil {
					return
				}
				name := filepath.Base(path)
				url, err := p.publishOne(ctx, path, folder+"/"+name)
				mu.Lock()
				if err != nil {
					if firstErr == nil {
						firstErr = err
						cancel()
					}
					mu.Unlock()
					return
				}
				urls[name] = url
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	log.Printf("Published %d artifacts to folder %s", len(urls), folder)
	return urls, nil
}

func (p *Publisher) publishOne(ctx context.Context, localPath, key string) (string, error) {
	if err := p.store.UploadFile(ctx, key, localPath); err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	url, err := p.store.GetSignedURL(ctx, key, p.urlExpiry)
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return url, nil
}
