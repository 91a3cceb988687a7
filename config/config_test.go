package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/BrightTonyTech/taskledger/logging"
)

func TestConfig_Defaults(t *testing.T) {
	cfg := Default()

	if cfg.Node.DataDir != "data" {
		t.Errorf("expected data dir 'data', got %q", cfg.Node.DataDir)
	}
	if cfg.Store.Backend != "bolt" {
		t.Errorf("expected bolt backend, got %q", cfg.Store.Backend)
	}
	if cfg.NATS.Stream != "TASKLEDGER_OPS" {
		t.Errorf("unexpected stream: %q", cfg.NATS.Stream)
	}
	if cfg.RPC.Listen != ":8080" {
		t.Errorf("unexpected listen address: %q", cfg.RPC.Listen)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("unexpected log level: %q", cfg.Log.Level)
	}
	if !cfg.Standalone() {
		t.Error("default config should be standalone")
	}
}

func TestConfig_ParseFull(t *testing.T) {
	content := `
[node]
id = "node-east-1"
data_dir = "/var/lib/taskledger"

[store]
backend = "bolt"

[nats]
url = "nats://localhost:4222"
stream = "TEAM_OPS"
subject = "team.ops"
events_subject = "team.events"

[rpc]
listen = ":9090"

[members]
admins = ["ops"]
writers = ["alice", "bob"]
open_join = false

[log]
level = "debug"
`
	cfg, err := Parse(content)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if cfg.Node.ID != "node-east-1" {
		t.Errorf("unexpected node id: %q", cfg.Node.ID)
	}
	if cfg.NATS.Stream != "TEAM_OPS" || cfg.NATS.Subject != "team.ops" {
		t.Errorf("nats section not applied: %+v", cfg.NATS)
	}
	if cfg.Standalone() {
		t.Error("config with a NATS URL is not standalone")
	}
	if len(cfg.Members.Writers) != 2 || cfg.Members.Writers[0] != "alice" {
		t.Errorf("unexpected writers: %v", cfg.Members.Writers)
	}
	if cfg.RPC.Listen != ":9090" {
		t.Errorf("unexpected listen address: %q", cfg.RPC.Listen)
	}
}

func TestConfig_ParsePartialKeepsDefaults(t *testing.T) {
	content := `
[node]
id = "solo"

[members]
open_join = true
`
	cfg, err := Parse(content)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if cfg.Node.ID != "solo" {
		t.Errorf("unexpected node id: %q", cfg.Node.ID)
	}
	if cfg.Node.DataDir != "data" {
		t.Errorf("data dir default lost: %q", cfg.Node.DataDir)
	}
	if cfg.NATS.Stream != "TASKLEDGER_OPS" {
		t.Errorf("stream default lost: %q", cfg.NATS.Stream)
	}
	if !cfg.Members.OpenJoin {
		t.Error("expected open_join = true")
	}
}

func TestConfig_ComputedDefaults(t *testing.T) {
	cfg, err := Parse("")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if cfg.Node.ID == "" {
		t.Error("expected a generated node id")
	}
	if !strings.HasPrefix(cfg.Node.ID, "node-") {
		t.Errorf("generated id should carry the node- prefix, got %q", cfg.Node.ID)
	}
	if cfg.Store.Path != filepath.Join("data", "ledger.db") {
		t.Errorf("unexpected store path: %q", cfg.Store.Path)
	}

	// An explicit path wins over the derived one
	cfg, err = Parse(`
[store]
path = "/tmp/custom.db"
`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.Store.Path != "/tmp/custom.db" {
		t.Errorf("explicit path overridden: %q", cfg.Store.Path)
	}
}

func TestConfig_ParseInvalidTOML(t *testing.T) {
	_, err := Parse("[node\nid = ")
	if err == nil {
		t.Fatal("expected parse error")
	}
	if !strings.Contains(err.Error(), "failed to parse config") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid defaults", func(c *Config) {}, ""},
		{"bad backend", func(c *Config) { c.Store.Backend = "redis" }, "store backend"},
		{"bad level", func(c *Config) { c.Log.Level = "verbose" }, "log level"},
		{"missing listen", func(c *Config) { c.RPC.Listen = "" }, "listen"},
		{"nats without stream", func(c *Config) {
			c.NATS.URL = "nats://localhost:4222"
			c.NATS.Stream = ""
		}, "stream"},
		{"nats without subject", func(c *Config) {
			c.NATS.URL = "nats://localhost:4222"
			c.NATS.Subject = ""
		}, "subject"},
		{"colliding subjects", func(c *Config) {
			c.NATS.URL = "nats://localhost:4222"
			c.NATS.EventsSubject = c.NATS.Subject
		}, "must differ"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.applyComputedDefaults()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestConfig_LoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "taskledger.toml")

	content := `
[node]
id = "file-node"

[rpc]
listen = ":7000"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.Node.ID != "file-node" || cfg.RPC.Listen != ":7000" {
		t.Errorf("file content not applied: %+v", cfg)
	}
}

func TestConfig_LoadMissingFile(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.toml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(err.Error(), "failed to read config file") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestConfig_RosterConfig(t *testing.T) {
	cfg := Default()
	cfg.Members.Admins = []string{"ops"}
	cfg.Members.Writers = []string{"alice"}
	cfg.Members.OpenJoin = true

	rc := cfg.RosterConfig()
	if len(rc.Admins) != 1 || rc.Admins[0] != "ops" {
		t.Errorf("admins not carried: %v", rc.Admins)
	}
	if len(rc.Writers) != 1 || rc.Writers[0] != "alice" {
		t.Errorf("writers not carried: %v", rc.Writers)
	}
	if !rc.OpenJoin {
		t.Error("open join not carried")
	}
}

func TestConfig_LogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected logging.Level
	}{
		{"debug", logging.LevelDebug},
		{"info", logging.LevelInfo},
		{"WARN", logging.LevelWarn},
		{"error", logging.LevelError},
		{"bogus", logging.LevelInfo},
		{"", logging.LevelInfo},
	}

	for _, tt := range tests {
		cfg := Default()
		cfg.Log.Level = tt.level
		if got := cfg.LogLevel(); got != tt.expected {
			t.Errorf("LogLevel(%q) = %v, want %v", tt.level, got, tt.expected)
		}
	}
}
