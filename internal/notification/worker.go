package notification

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"course-tracker-backend/internal/model"
	"course-tracker-backend/internal/store"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// ErrPoolClosed is returned by Send once Close has been called.
var ErrPoolClosed = errors.New("push worker pool is closed")

type delivery struct {
	sub     model.PushSubscription
	payload []byte
}

// WorkerPool delivers messages to every browser subscription using a pool
// of workers. Send only enqueues; delivery failures are logged.
type WorkerPool struct {
	size    int
	jobs    chan delivery
	subs    store.SubscriptionStore
	webpush *webpush.Options
	sender  NotificationSender
	log     *zap.Logger
	wg      sync.WaitGroup

	mu        sync.RWMutex
	closed    bool
	done      chan struct{}
	closeOnce sync.Once
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, subs store.SubscriptionStore, webpushOptions *webpush.Options, log *zap.Logger) *WorkerPool {
	return &WorkerPool{
		size:    size,
		jobs:    make(chan delivery, size*16),
		subs:    subs,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
		log:     log,
		done:    make(chan struct{}),
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx, i)
	}
}

// Close stops accepting messages and waits for queued deliveries.
// Sends still in flight give up with ErrPoolClosed. Close is idempotent.
func (wp *WorkerPool) Close() {
	wp.closeOnce.Do(func() {
		close(wp.done)
		wp.mu.Lock()
		wp.closed = true
		close(wp.jobs)
		wp.mu.Unlock()
	})
	wp.wg.Wait()
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	defer wp.wg.Done()
	wp.log.Debug("push worker started", zap.Int("worker", id))
	for {
		select {
		case d, ok := <-wp.jobs:
			if !ok {
				return
			}
			wp.deliver(ctx, d)
		case <-ctx.Done():
			wp.log.Debug("push worker shutting down", zap.Int("worker", id))
			return
		}
	}
}

// Send queues the message for every stored subscription.
func (wp *WorkerPool) Send(ctx context.Context, message string) error {
	subscriptions, err := wp.subs.ListSubscriptions(ctx)
	if err != nil {
		return fmt.Errorf("failed to load push subscriptions: %w", err)
	}

	wp.mu.RLock()
	defer wp.mu.RUnlock()
	if wp.closed {
		return ErrPoolClosed
	}

	payload := []byte(message)
	for _, sub := range subscriptions {
		select {
		case wp.jobs <- delivery{sub: sub, payload: payload}:
		case <-wp.done:
			return ErrPoolClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// deliver sends a single web push notification.
func (wp *WorkerPool) deliver(ctx context.Context, d delivery) {
	wpSub := &webpush.Subscription{
		Endpoint: d.sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: d.sub.P256DH,
			Auth:   d.sub.Auth,
		},
	}

	resp, err := wp.sender.Send(d.payload, wpSub, wp.webpush)
	if err != nil {
		wp.log.Error("error sending push notification", zap.String("endpoint", d.sub.Endpoint), zap.Error(err))
		return
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone {
		wp.log.Info("push subscription expired, deleting", zap.String("endpoint", d.sub.Endpoint))
		if err := wp.subs.DeleteSubscription(ctx, d.sub.Endpoint); err != nil {
			wp.log.Error("failed to delete expired subscription", zap.String("endpoint", d.sub.Endpoint), zap.Error(err))
		}
	}
}
