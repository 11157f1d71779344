package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yaml := `
instance:
  id: desk-01
server:
  uri: ws://push.example.com/notifications
  channel_id: alerts
  keep_alive: 45s
queue:
  backend: sqlite
  sqlite_path: /var/lib/pushclient/queue.db
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Instance.ID != "desk-01" {
		t.Errorf("Instance.ID = %q, want %q", cfg.Instance.ID, "desk-01")
	}
	if cfg.Server.URI != "ws://push.example.com/notifications" {
		t.Errorf("Server.URI = %q, want %q", cfg.Server.URI, "ws://push.example.com/notifications")
	}
	if cfg.Server.ChannelID != "alerts" {
		t.Errorf("Server.ChannelID = %q, want %q", cfg.Server.ChannelID, "alerts")
	}
	if cfg.Server.KeepAlive != 45*time.Second {
		t.Errorf("Server.KeepAlive = %v, want %v", cfg.Server.KeepAlive, 45*time.Second)
	}
	if cfg.Queue.Backend != "sqlite" {
		t.Errorf("Queue.Backend = %q, want %q", cfg.Queue.Backend, "sqlite")
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_PUSH_HOST", "push.internal")
	t.Setenv("TEST_DB_PASSWORD", "secret123")

	yaml := `
instance:
  id: desk-01
server:
  uri: wss://${TEST_PUSH_HOST}/notifications
queue:
  backend: postgres
  postgres:
    host: localhost
    name: push
    user: push
    password: ${TEST_DB_PASSWORD}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.URI != "wss://push.internal/notifications" {
		t.Errorf("Server.URI = %q, want %q", cfg.Server.URI, "wss://push.internal/notifications")
	}
	if cfg.Queue.Postgres.Password != "secret123" {
		t.Errorf("Queue.Postgres.Password = %q, want %q", cfg.Queue.Postgres.Password, "secret123")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	yaml := `
instance:
  id: desk-01
server:
  uri: ws://localhost:8000/notifications
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	if cfg.Server.ChannelID != DefaultChannelID {
		t.Errorf("Server.ChannelID = %q, want default %q", cfg.Server.ChannelID, DefaultChannelID)
	}
	if cfg.Server.KeepAlive != DefaultKeepAlive {
		t.Errorf("Server.KeepAlive = %v, want default %v", cfg.Server.KeepAlive, DefaultKeepAlive)
	}
	if cfg.Queue.Backend != DefaultQueueBackend {
		t.Errorf("Queue.Backend = %q, want default %q", cfg.Queue.Backend, DefaultQueueBackend)
	}
	if cfg.Queue.SQLitePath != filepath.Join(DefaultLockDir(), DefaultSQLiteFile) {
		t.Errorf("Queue.SQLitePath = %q, want default under lock dir", cfg.Queue.SQLitePath)
	}
	if cfg.Queue.Postgres.Port != 0 {
		t.Errorf("Queue.Postgres.Port = %d, want 0 for memory backend", cfg.Queue.Postgres.Port)
	}
	if cfg.Logging.Format != DefaultLogFormat {
		t.Errorf("Logging.Format = %q, want default %q", cfg.Logging.Format, DefaultLogFormat)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() after defaults: %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(err.Error(), "read config file") {
		t.Errorf("error = %q, want read config file prefix", err)
	}
}

func TestLoadAndValidate_InvalidURI(t *testing.T) {
	yaml := `
instance:
  id: desk-01
server:
  uri: http://push.example.com/notifications
`
	path := writeTempFile(t, yaml)

	_, err := LoadAndValidate(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "scheme must be ws or wss") {
		t.Errorf("error = %q, want scheme error", err)
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		cfg := Config{
			Instance: InstanceConfig{ID: "test"},
			Server:   ServerConfig{URI: "ws://localhost/notifications"},
		}
		cfg.applyDefaults()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing instance id",
			mutate:  func(c *Config) { c.Instance.ID = "" },
			wantErr: "instance.id is required",
		},
		{
			name:    "missing uri",
			mutate:  func(c *Config) { c.Server.URI = "" },
			wantErr: "server.uri: uri is required",
		},
		{
			name:    "uri without host",
			mutate:  func(c *Config) { c.Server.URI = "ws:///path" },
			wantErr: "server.uri: host is required",
		},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.Queue.Backend = "redis" },
			wantErr: `queue.backend must be one of memory, sqlite, postgres, got "redis"`,
		},
		{
			name: "postgres missing host",
			mutate: func(c *Config) {
				c.Queue.Backend = "postgres"
				c.Queue.Postgres = DBConfig{Name: "db", User: "user", MaxConns: 2}
			},
			wantErr: "queue.postgres.host is required",
		},
		{
			name: "min_conns exceeds max_conns",
			mutate: func(c *Config) {
				c.Queue.Backend = "postgres"
				c.Queue.Postgres = DBConfig{Host: "localhost", Name: "db", User: "user", MaxConns: 5, MinConns: 10}
			},
			wantErr: "queue.postgres.min_conns (10) cannot exceed max_conns (5)",
		},
		{
			name: "status port out of range",
			mutate: func(c *Config) {
				c.Status.Enabled = true
				c.Status.Port = 70000
			},
			wantErr: "status.port must be between 1 and 65535, got 70000",
		},
		{
			name:    "bad log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: `logging.format must be one of text, json, auto, got "xml"`,
		},
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error containing %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
