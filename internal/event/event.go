package event

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"trivia_backend/internal/logger"
)

const (
	defaultPoolSize = 1024
	defaultTimeout  = 30 * time.Second
)

type Event interface {
	Name() string
}

type Handler func(ctx context.Context, e Event) error

// Bus is an in-memory event bus. Handlers run asynchronously and their failures are only logged.
type Bus struct {
	pool     chan struct{}
	wg       *sync.WaitGroup
	mu       sync.RWMutex
	handlers map[string][]Handler
	timeout  time.Duration
}

// NewBus creates a bus running at most poolSize handlers at once (0 means the default).
// Call Stop on shutdown to wait for in-flight handlers.
func NewBus(poolSize int) *Bus {
	if poolSize <= 0 {
		poolSize = defaultPoolSize
	}
	return &Bus{
		pool:     make(chan struct{}, poolSize),
		wg:       new(sync.WaitGroup),
		handlers: make(map[string][]Handler),
		timeout:  defaultTimeout,
	}
}

func (b *Bus) Subscribe(name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[name] = append(b.handlers[name], h)
}

// Publish is safe on a nil bus.
func (b *Bus) Publish(ctx context.Context, e Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, h := range b.handlers[e.Name()] {
		b.dispatch(ctx, h, e)
	}
}

func (b *Bus) dispatch(ctx context.Context, h Handler, e Event) {
	b.wg.Add(1)

	b.pool <- struct{}{}

	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.timeout)
		defer func() {
			if r := recover(); r != nil {
				logger.Error("event: handler panic",
					"event", e.Name(),
					"error", fmt.Errorf("%v, stack: %s", r, debug.Stack()),
				)
			}

			cancel()
			<-b.pool
			b.wg.Done()
		}()

		if err := h(ctx, e); err != nil {
			logger.Error("event: handle event failed", "event", e.Name(), "error", err)
		}
	}()
}

// Stop waits for all handlers to finish
func (b *Bus) Stop() {
	b.wg.Wait()
}
