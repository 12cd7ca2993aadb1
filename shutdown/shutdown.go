// Package shutdown turns termination signals into context cancellation and
// runs registered cleanup hooks exactly once.
package shutdown

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// Hook is a cleanup step. It receives the context passed to Shutdown, which
// is still alive, so hooks may flush over the network.
type Hook func(ctx context.Context) error

// Handler owns the process-level shutdown sequence.
type Handler struct {
	mu      sync.Mutex
	hooks   []Hook
	signals chan os.Signal
	cancel  context.CancelFunc
	once    sync.Once
	err     error
}

// NewHandler listens for SIGINT and SIGTERM. The returned context is
// cancelled when one arrives or when Trigger is called. Hooks run later, in
// Shutdown, so in-flight work can observe the cancellation first.
func NewHandler(parent context.Context) (*Handler, context.Context) {
	ctx, cancel := context.WithCancel(parent)

	h := &Handler{
		signals: make(chan os.Signal, 1),
		cancel:  cancel,
	}

	signal.Notify(h.signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig, ok := <-h.signals:
			if ok {
				slog.Warn("Received " + sig.String() + ", shutting down...")
			}

			cancel()
		case <-ctx.Done():
		}
	}()

	return h, ctx
}

// BeforeShutdown registers a hook. Hooks run in reverse registration order.
func (h *Handler) BeforeShutdown(hook Hook) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.hooks = append(h.hooks, hook)
}

// Trigger cancels the handler's context as if a signal had arrived.
func (h *Handler) Trigger() {
	h.cancel()
}

// Shutdown stops listening for signals, cancels the handler's context and
// runs every hook. Later calls return the first call's result.
func (h *Handler) Shutdown(ctx context.Context) error {
	h.once.Do(func() {
		signal.Stop(h.signals)
		h.cancel()

		h.mu.Lock()
		hooks := h.hooks
		h.hooks = nil
		h.mu.Unlock()

		errs := make([]error, 0, len(hooks))
		for i := len(hooks) - 1; i >= 0; i-- {
			errs = append(errs, hooks[i](ctx))
		}

		h.err = errors.Join(errs...)
	})

	return h.err
}
