package shutdown

import (
	"context"
	"errors"
	"time"
)

// Teardown phases in stop order.
const (
	// PhaseIntake stops the surfaces that accept new work, such as the
	// RPC gateway.
	PhaseIntake = 10

	// PhaseDrain stops the node itself once intake is closed, letting
	// the in-flight apply finish.
	PhaseDrain = 20

	// PhaseResources closes stores, logs, broadcasters and connections
	// after nothing uses them anymore.
	PhaseResources = 30
)

// Common errors.
var (
	// ErrAlreadyShutdown indicates shutdown was already initiated.
	ErrAlreadyShutdown = errors.New("shutdown already initiated")

	// ErrTimeout indicates shutdown did not complete within the timeout.
	ErrTimeout = errors.New("shutdown timeout exceeded")

	// ErrHandlerFailed indicates one or more handlers failed during shutdown.
	ErrHandlerFailed = errors.New("one or more handlers failed")
)

// Handler is implemented by components that need graceful shutdown.
type Handler interface {
	// OnShutdown is called when shutdown is initiated. The context is
	// cancelled when the timeout is reached. Implementations should stop
	// accepting new work, finish what is in flight, and release
	// resources.
	OnShutdown(ctx context.Context) error
}

// Func adapts a plain function to a Handler.
type Func func(ctx context.Context) error

// OnShutdown implements Handler.
func (f Func) OnShutdown(ctx context.Context) error {
	return f(ctx)
}

// Config configures the shutdown coordinator.
type Config struct {
	// Timeout bounds the whole shutdown when it is triggered by a
	// signal or ShutdownWithTimeout. Default: 30 seconds.
	Timeout time.Duration

	// ContinueOnError determines whether later phases still run after a
	// handler fails. Default: true.
	ContinueOnError bool
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:         30 * time.Second,
		ContinueOnError: true,
	}
}

// registration holds a registered handler with its metadata.
type registration struct {
	name    string
	handler Handler
	phase   int
}
