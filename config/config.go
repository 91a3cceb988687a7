// Package config loads node configuration from TOML.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"

	"github.com/BrightTonyTech/taskledger/logging"
	"github.com/BrightTonyTech/taskledger/members"
)

// Default values applied when the config file leaves fields unset.
const (
	DefaultDataDir       = "data"
	DefaultStoreBackend  = "bolt"
	DefaultStoreFile     = "ledger.db"
	DefaultStream        = "TASKLEDGER_OPS"
	DefaultSubject       = "taskledger.ops"
	DefaultEventsSubject = "taskledger.events"
	DefaultListen        = ":8080"
	DefaultLogLevel      = "info"
)

// Config is the complete node configuration.
type Config struct {
	Node    NodeConfig    `toml:"node"`
	Store   StoreConfig   `toml:"store"`
	NATS    NATSConfig    `toml:"nats"`
	RPC     RPCConfig     `toml:"rpc"`
	Members MembersConfig `toml:"members"`
	Log     LogConfig     `toml:"log"`
}

// NodeConfig identifies the node and its working directory.
type NodeConfig struct {
	// ID names this node in logs and peer listings. Generated when
	// empty.
	ID string `toml:"id"`

	// DataDir holds the node's durable state.
	DataDir string `toml:"data_dir"`
}

// StoreConfig selects and locates the state store backend.
type StoreConfig struct {
	// Backend is either bolt or memory.
	Backend string `toml:"backend"`

	// Path overrides the bolt database file. Defaults to
	// <data_dir>/ledger.db.
	Path string `toml:"path"`
}

// NATSConfig locates the replication stream and the event channel.
type NATSConfig struct {
	// URL of the NATS server. Empty runs the node standalone on
	// in-memory collaborators, useful for development and tests.
	URL string `toml:"url"`

	// Stream is the JetStream stream holding the ordered operations.
	Stream string `toml:"stream"`

	// Subject carries appended operations into the stream.
	Subject string `toml:"subject"`

	// EventsSubject carries best-effort notification events.
	EventsSubject string `toml:"events_subject"`
}

// RPCConfig configures the JSON-RPC gateway.
type RPCConfig struct {
	// Listen is the address the gateway binds.
	Listen string `toml:"listen"`
}

// MembersConfig is the membership roster.
type MembersConfig struct {
	// Admins may cancel any task and always hold write access.
	Admins []string `toml:"admins"`

	// Writers may submit transactions.
	Writers []string `toml:"writers"`

	// OpenJoin grants write access to any signer.
	OpenJoin bool `toml:"open_join"`
}

// LogConfig configures console logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level"`
}

// Default returns a configuration with all defaults applied, suitable
// for a standalone node.
func Default() *Config {
	return &Config{
		Node: NodeConfig{
			DataDir: DefaultDataDir,
		},
		Store: StoreConfig{
			Backend: DefaultStoreBackend,
		},
		NATS: NATSConfig{
			Stream:        DefaultStream,
			Subject:       DefaultSubject,
			EventsSubject: DefaultEventsSubject,
		},
		RPC: RPCConfig{
			Listen: DefaultListen,
		},
		Log: LogConfig{
			Level: DefaultLogLevel,
		},
	}
}

// LoadFile loads a configuration from a TOML file.
func LoadFile(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(string(content))
}

// Parse parses a configuration from TOML content. Fields the content
// leaves unset keep their defaults.
func Parse(content string) (*Config, error) {
	cfg := Default()
	if _, err := toml.Decode(content, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyComputedDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyComputedDefaults fills fields whose default derives from other
// fields.
func (c *Config) applyComputedDefaults() {
	if c.Node.ID == "" {
		c.Node.ID = "node-" + uuid.NewString()[:8]
	}
	if c.Store.Path == "" {
		c.Store.Path = filepath.Join(c.Node.DataDir, DefaultStoreFile)
	}
}

// Validate checks the configuration for unusable values.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "bolt", "memory":
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}

	if c.Store.Backend == "bolt" && c.Node.DataDir == "" && c.Store.Path == "" {
		return fmt.Errorf("bolt backend requires data_dir or store path")
	}
	if c.RPC.Listen == "" {
		return fmt.Errorf("rpc listen address is required")
	}

	if c.NATS.URL != "" {
		if c.NATS.Stream == "" {
			return fmt.Errorf("nats stream is required")
		}
		if c.NATS.Subject == "" {
			return fmt.Errorf("nats subject is required")
		}
		if c.NATS.EventsSubject == "" {
			return fmt.Errorf("nats events subject is required")
		}
		if c.NATS.Subject == c.NATS.EventsSubject {
			return fmt.Errorf("nats subject and events subject must differ")
		}
	}
	return nil
}

// Standalone reports whether the node runs without a NATS server,
// replicating nothing and keeping its collaborators in process.
func (c *Config) Standalone() bool {
	return c.NATS.URL == ""
}

// RosterConfig converts the members section into a roster config.
func (c *Config) RosterConfig() members.StaticRosterConfig {
	return members.StaticRosterConfig{
		Admins:   c.Members.Admins,
		Writers:  c.Members.Writers,
		OpenJoin: c.Members.OpenJoin,
	}
}

// LogLevel converts the configured level into a logging level,
// defaulting to info for anything unrecognized.
func (c *Config) LogLevel() logging.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}
