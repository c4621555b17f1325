// Package shutdown turns SIGINT/SIGTERM into context cancellation and
// runs registered cleanup functions exactly once.
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// Handler coordinates graceful shutdown
type Handler struct {
	ctx      context.Context
	cancel   context.CancelFunc
	mu       sync.Mutex
	cleanups []func()
	once     sync.Once
	done     chan struct{}
}

// New creates a new shutdown handler
func New() *Handler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Handler{
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Context is cancelled when shutdown begins
func (h *Handler) Context() context.Context {
	return h.ctx
}

// AddCleanup registers fn to run during shutdown. Functions run in
// reverse registration order, mirroring defer.
func (h *Handler) AddCleanup(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cleanups = append(h.cleanups, fn)
}

// Listen installs the signal handler. A second signal exits immediately
// without waiting for cleanup.
func (h *Handler) Listen() {
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigs
		go h.Shutdown()
		<-sigs
		os.Exit(1)
	}()
}

// Shutdown cancels the context and runs cleanups. Safe to call more
// than once; later calls wait for the first to finish.
func (h *Handler) Shutdown() {
	h.once.Do(func() {
		h.cancel()

		h.mu.Lock()
		fns := h.cleanups
		h.cleanups = nil
		h.mu.Unlock()

		for i := len(fns) - 1; i >= 0; i-- {
			fns[i]()
		}
		close(h.done)
	})
	<-h.done
}

// Wait blocks until an in-flight shutdown finishes. Returns immediately
// when no shutdown was triggered.
func (h *Handler) Wait() {
	select {
	case <-h.ctx.Done():
		<-h.done
	default:
	}
}
