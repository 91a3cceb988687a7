// Package shutdown provides graceful teardown coordination for a ledger node.
//
// # Overview
//
// A node is a stack of components with stop-order dependencies: the RPC
// gateway must stop accepting work before the node drains its apply
// loop, and the node must be drained before the stores, logs and
// connections underneath it close. The coordinator runs registered
// handlers phase by phase, lower phases first, handlers within a phase
// concurrently, triggered by OS signals (SIGTERM, SIGINT) or an
// explicit call.
//
// # Usage
//
// Basic usage with signal handling:
//
//	coord := shutdown.NewCoordinator(shutdown.DefaultConfig(), logger)
//	coord.HandleSignals() // SIGTERM, SIGINT
//
//	coord.RegisterCloser("gateway", shutdown.PhaseIntake, gateway)
//	coord.RegisterCloser("node", shutdown.PhaseDrain, node)
//	coord.RegisterCloser("store", shutdown.PhaseResources, store)
//	coord.RegisterCloser("oplog", shutdown.PhaseResources, log)
//
//	// Stops in order: gateway, then node, then store and oplog together
//	<-coord.Done()
//
// Manual shutdown with timeout:
//
//	if err := coord.ShutdownWithTimeout(30 * time.Second); err != nil {
//	    logger.Error("shutdown incomplete", map[string]interface{}{"error": err})
//	}
//
// # Phases
//
// Three named phases cover a node's stack:
//
//   - PhaseIntake (10): surfaces accepting new work, such as the gateway
//   - PhaseDrain (20): the node itself, finishing the in-flight apply
//   - PhaseResources (30): stores, logs, broadcasters, connections
//
// Any int works as a phase; the constants just name the conventional
// ordering. Handlers in the same phase stop concurrently.
//
// # Handlers
//
// Components exposing Close() error register through RegisterCloser.
// Anything needing context awareness implements Handler:
//
//	func (s *Service) OnShutdown(ctx context.Context) error {
//	    s.stopIntake()
//	    select {
//	    case <-s.drained:
//	        return nil
//	    case <-ctx.Done():
//	        return ctx.Err()
//	    }
//	}
//
// Progress is reported through the structured logger, one line per
// handler with its phase and elapsed time.
package shutdown
