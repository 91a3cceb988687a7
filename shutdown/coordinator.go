package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/BrightTonyTech/taskledger/logging"
)

// Coordinator runs registered handlers phase by phase on shutdown.
type Coordinator struct {
	config Config
	logger *logging.Logger

	mu           sync.Mutex
	handlers     []registration
	shutdownOnce sync.Once
	shutdownErr  error
	done         chan struct{}
	signalChan   chan os.Signal
}

// NewCoordinator creates a new shutdown coordinator.
func NewCoordinator(config Config, logger *logging.Logger) *Coordinator {
	if config.Timeout == 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	if logger == nil {
		logger = logging.New()
	}

	return &Coordinator{
		config:     config,
		logger:     logger.WithComponent("shutdown"),
		handlers:   make([]registration, 0),
		done:       make(chan struct{}),
		signalChan: make(chan os.Signal, 1),
	}
}

// Register adds a handler to be called during shutdown. Lower phases
// stop first; handlers in the same phase stop concurrently.
func (c *Coordinator) Register(name string, phase int, handler Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.handlers = append(c.handlers, registration{
		name:    name,
		handler: handler,
		phase:   phase,
	})
}

// RegisterFunc registers a plain function as a handler.
func (c *Coordinator) RegisterFunc(name string, phase int, fn func(ctx context.Context) error) {
	c.Register(name, phase, Func(fn))
}

// RegisterCloser registers anything with a Close method. The close is
// not interruptible; the phase timeout only bounds waiting for it.
func (c *Coordinator) RegisterCloser(name string, phase int, closer interface{ Close() error }) {
	c.Register(name, phase, Func(func(context.Context) error {
		return closer.Close()
	}))
}

// Shutdown initiates graceful shutdown. It runs every registered
// handler and returns ErrAlreadyShutdown if called more than once;
// the first call's outcome stays available through Err.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	var first bool
	c.shutdownOnce.Do(func() {
		first = true
		c.shutdownErr = c.doShutdown(ctx)
		close(c.done)
	})

	if !first {
		return ErrAlreadyShutdown
	}
	return c.shutdownErr
}

// ShutdownWithTimeout initiates shutdown bounded by the given timeout,
// falling back to the configured one when zero.
func (c *Coordinator) ShutdownWithTimeout(timeout time.Duration) error {
	if timeout == 0 {
		timeout = c.config.Timeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return c.Shutdown(ctx)
}

// HandleSignals triggers shutdown on SIGTERM or SIGINT. Must be called
// before the signals are expected.
func (c *Coordinator) HandleSignals() {
	signal.Notify(c.signalChan, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		sig := <-c.signalChan
		c.logger.Info("signal received", map[string]interface{}{
			"signal": sig.String(),
		})
		_ = c.ShutdownWithTimeout(c.config.Timeout)
	}()
}

// Trigger initiates shutdown as if a signal had arrived.
func (c *Coordinator) Trigger() {
	select {
	case c.signalChan <- syscall.SIGTERM:
	default:
	}
}

// Done returns a channel that is closed when shutdown is complete.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Err returns any error that occurred during shutdown.
// Only valid after Done() is closed.
func (c *Coordinator) Err() error {
	select {
	case <-c.done:
		return c.shutdownErr
	default:
		return nil
	}
}

// doShutdown runs the registered handlers phase by phase.
func (c *Coordinator) doShutdown(ctx context.Context) error {
	start := time.Now()

	c.mu.Lock()
	handlers := make([]registration, len(c.handlers))
	copy(handlers, c.handlers)
	c.mu.Unlock()

	sort.SliceStable(handlers, func(i, j int) bool {
		return handlers[i].phase < handlers[j].phase
	})

	var overallErr error
	for _, group := range groupByPhase(handlers) {
		select {
		case <-ctx.Done():
			c.logger.Error("shutdown timed out", map[string]interface{}{
				"elapsed": time.Since(start).String(),
			})
			return ErrTimeout
		default:
		}

		if failed := c.runPhase(ctx, group); failed {
			if overallErr == nil {
				overallErr = ErrHandlerFailed
			}
			if !c.config.ContinueOnError {
				return overallErr
			}
		}
	}

	c.logger.Info("shutdown complete", map[string]interface{}{
		"handlers": len(handlers),
		"elapsed":  time.Since(start).String(),
	})
	return overallErr
}

// runPhase stops all handlers in one phase concurrently and reports
// whether any failed.
func (c *Coordinator) runPhase(ctx context.Context, handlers []registration) bool {
	errs := make([]error, len(handlers))
	var wg sync.WaitGroup

	for i, reg := range handlers {
		wg.Add(1)
		go func(idx int, r registration) {
			defer wg.Done()

			start := time.Now()
			err := r.handler.OnShutdown(ctx)
			errs[idx] = err

			fields := map[string]interface{}{
				"handler": r.name,
				"phase":   r.phase,
				"elapsed": time.Since(start).String(),
			}
			if err != nil {
				fields["error"] = err.Error()
				c.logger.Error("handler failed", fields)
				return
			}
			c.logger.Info("handler stopped", fields)
		}(i, reg)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return true
		}
	}
	return false
}

// groupByPhase splits phase-sorted handlers into consecutive groups.
func groupByPhase(handlers []registration) [][]registration {
	if len(handlers) == 0 {
		return nil
	}

	var groups [][]registration
	var current []registration
	phase := handlers[0].phase

	for _, h := range handlers {
		if h.phase != phase {
			groups = append(groups, current)
			current = nil
			phase = h.phase
		}
		current = append(current, h)
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}

	return groups
}
