package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// Notifier delivers task-status webhooks to caller-registered endpoints. A
// single worker goroutine consumes a bounded queue, so delivery order per
// task follows enqueue order, and delivery failures are observable in one
// place. Failures never affect task state.
type Notifier struct {
	httpClient *http.Client
	apiKey     string
	queue      chan delivery
	done       chan struct{}
}

type delivery struct {
	ctx     context.Context
	target  string
	payload interface{}
	ack     chan error
}

func New(apiKey string, queueSize int) *Notifier {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Notifier{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		apiKey:     apiKey,
		queue:      make(chan delivery, queueSize),
		done:       make(chan struct{}),
	}
}

// Run consumes the outbound queue until Close is called.
func (n *Notifier) Run() {
	defer close(n.done)
	for d := range n.queue {
		err := n.deliver(d.ctx, d.target, d.payload)
		if err != nil {
			log.Printf("Failed to send callback to %s: %v", d.target, err)
		}
		if d.ack != nil {
			d.ack <- err
		}
	}
}

// Close stops the delivery worker after the queue drains.
func (n *Notifier) Close() {
	close(n.queue)
	<-n.done
}

// Enqueue queues an update without blocking pipeline progress. When the
// queue is full the update is dropped and logged; status delivery is
// best-effort by contract.
func (n *Notifier) Enqueue(ctx context.Context, target string, payload interface{}) {
	select {
	case n.queue <- delivery{ctx: ctx, target: target, payload: payload}:
	default:
		log.Printf("Notification queue full, dropping update for %s", target)
	}
}

// Send queues an update and waits for its delivery attempt. Terminal
// notifications go through here so they are the last observable action of a
// task, and still sit behind any queued intermediate updates.
func (n *Notifier) Send(ctx context.Context, target string, payload interface{}) error {
	ack := make(chan error, 1)
	select {
	case n.queue <- delivery{ctx: ctx, target: target, payload: payload, ack: ack}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-ack:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (n *Notifier) deliver(ctx context.Context, target string, payload interface{}) error {
	if ctx == nil {
		ctx = context.Background()
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", n.apiKey)

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("callback endpoint returned status %d", resp.StatusCode)
	}

	log.Printf("Callback sent to %s: %d", target, resp.StatusCode)
	return nil
}
