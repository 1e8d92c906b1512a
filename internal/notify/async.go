// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BestWishes Contributors

package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/bestwishes/bestwishes/pkg/errutil"
)

// DefaultSendTimeout bounds a single background delivery.
const DefaultSendTimeout = 30 * time.Second

// FailureRecorder is notified of every message that could not be delivered.
type FailureRecorder interface {
	NotificationFailed(kind string)
}

// Async delivers messages in the background. Dispatch never blocks on the
// mail server and never reports delivery failures to the caller; they are
// logged and counted instead.
type Async struct {
	next     Dispatcher
	logger   *slog.Logger
	failures FailureRecorder
	timeout  time.Duration

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewAsync wraps next. failures may be nil.
func NewAsync(next Dispatcher, logger *slog.Logger, failures FailureRecorder) *Async {
	if logger == nil {
		logger = slog.Default()
	}
	return &Async{
		next:     next,
		logger:   logger,
		failures: failures,
		timeout:  DefaultSendTimeout,
	}
}

// Dispatch queues msg for delivery and returns immediately. The send outlives
// ctx cancellation but keeps its values for log correlation.
func (a *Async) Dispatch(ctx context.Context, msg Message) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		a.logger.WarnContext(ctx, "notification dropped after shutdown", "kind", msg.Kind)
		a.recordFailure(msg.Kind)
		return
	}
	a.wg.Add(1)
	a.mu.Unlock()

	go func() {
		defer a.wg.Done()
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
		defer cancel()

		if err := a.next.Send(sendCtx, msg); err != nil {
			errutil.LogErrorContext(sendCtx, a.logger, "notification failed", err)
			a.recordFailure(msg.Kind)
		}
	}()
}

// Close stops accepting messages and waits for in-flight sends or ctx.
func (a *Async) Close(ctx context.Context) error {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return oops.With("operation", "drain notifications").Wrap(ctx.Err())
	}
}

func (a *Async) recordFailure(kind string) {
	if a.failures != nil {
		a.failures.NotificationFailed(kind)
	}
}
