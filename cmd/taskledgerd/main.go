// Command taskledgerd runs a task ledger node: it applies the ordered
// operation stream to its local state store and serves the JSON-RPC
// gateway for clients.
//
// Run standalone (in-process log, no replication):
//
//	taskledgerd
//
// Run replicated against a NATS server, from a config file:
//
//	taskledgerd -config node.toml
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nats-io/nats.go"

	"github.com/BrightTonyTech/taskledger/config"
	"github.com/BrightTonyTech/taskledger/logging"
	"github.com/BrightTonyTech/taskledger/members"
	"github.com/BrightTonyTech/taskledger/node"
	"github.com/BrightTonyTech/taskledger/notify"
	"github.com/BrightTonyTech/taskledger/oplog"
	"github.com/BrightTonyTech/taskledger/rpc"
	"github.com/BrightTonyTech/taskledger/shutdown"
	"github.com/BrightTonyTech/taskledger/store"
)

func main() {
	configPath := flag.String("config", "", "path to the TOML config file (defaults apply when omitted)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "taskledgerd: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	logger := logging.New()
	logger.SetLevel(cfg.LogLevel())

	st, err := openStore(cfg)
	if err != nil {
		return err
	}

	lg, bc, conn, err := openReplication(cfg)
	if err != nil {
		st.Close()
		return err
	}

	roster := members.NewStaticRoster(cfg.RosterConfig())

	n, err := node.New(node.Config{
		ID:          cfg.Node.ID,
		Store:       st,
		Log:         lg,
		Roster:      roster,
		Broadcaster: bc,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("build node: %w", err)
	}
	if err := n.Start(); err != nil {
		return fmt.Errorf("start node: %w", err)
	}

	gateway, err := rpc.New(rpc.Config{
		Listen:      cfg.RPC.Listen,
		Node:        n,
		Roster:      roster,
		Broadcaster: bc,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("build gateway: %w", err)
	}
	if err := gateway.Start(); err != nil {
		return fmt.Errorf("start gateway: %w", err)
	}

	coord := shutdown.NewCoordinator(shutdown.DefaultConfig(), logger)
	coord.RegisterCloser("gateway", shutdown.PhaseIntake, gateway)
	coord.RegisterCloser("node", shutdown.PhaseDrain, n)
	coord.RegisterCloser("store", shutdown.PhaseResources, st)
	coord.RegisterCloser("oplog", shutdown.PhaseResources, lg)
	coord.RegisterCloser("broadcaster", shutdown.PhaseResources, bc)
	if conn != nil {
		// The shared connection closes after everything riding on it
		coord.RegisterFunc("nats", shutdown.PhaseResources+10, func(context.Context) error {
			conn.Close()
			return nil
		})
	}
	coord.HandleSignals()

	logger.Info("node running", map[string]interface{}{
		"node":       cfg.Node.ID,
		"listen":     gateway.Addr(),
		"store":      cfg.Store.Backend,
		"standalone": cfg.Standalone(),
	})

	<-coord.Done()
	return coord.Err()
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Parse("")
	}
	return config.LoadFile(path)
}

func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Backend {
	case "memory":
		return store.NewMemoryStore(), nil
	case "bolt":
		if dir := filepath.Dir(cfg.Store.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create data dir: %w", err)
			}
		}
		st, err := store.NewBoltStore(store.BoltStoreConfig{Path: cfg.Store.Path})
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// openReplication builds the ordered log and the broadcaster. Standalone
// nodes keep both in process; replicated nodes share one NATS connection
// between the JetStream log and the events channel. The returned conn is
// nil in standalone mode and owned by the caller otherwise.
func openReplication(cfg *config.Config) (oplog.Log, notify.Broadcaster, *nats.Conn, error) {
	if cfg.Standalone() {
		return oplog.NewMemoryLog(), notify.NewMemoryBroadcaster(notify.DefaultConfig()), nil, nil
	}

	conn, err := nats.Connect(cfg.NATS.URL, nats.Name(cfg.Node.ID))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect nats: %w", err)
	}

	lg, err := oplog.NewNATSLog(oplog.NATSLogConfig{
		Conn:    conn,
		Stream:  cfg.NATS.Stream,
		Subject: cfg.NATS.Subject,
	})
	if err != nil {
		conn.Close()
		return nil, nil, nil, fmt.Errorf("open oplog: %w", err)
	}

	bc := notify.NewNATSBroadcasterFromConn(conn, notify.NATSConfig{
		Name:    cfg.Node.ID,
		Subject: cfg.NATS.EventsSubject,
	})
	return lg, bc, conn, nil
}
