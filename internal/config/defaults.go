package config

import (
	"os"
	"path/filepath"
	"time"
)

// Default values for optional configuration fields.
const (
	DefaultChannelID        = "notifications"
	DefaultKeepAlive        = 30 * time.Second
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultWriteTimeout     = 5 * time.Second
	DefaultPingTimeout      = 90 * time.Second
	DefaultReadLimit        = 64 * 1024
	DefaultResolvConf       = "/etc/resolv.conf"
	DefaultSignalBuffer     = 64
	DefaultQueueBackend     = "memory"
	DefaultQueueCapacity    = 64
	DefaultQueueOpTimeout   = 5 * time.Second
	DefaultSQLiteFile       = "handoff.db"
	DefaultDBPort           = 5432
	DefaultDBSSLMode        = "prefer"
	DefaultMaxConns         = 4
	DefaultMinConns         = 1
	DefaultStatusPort       = 8080
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "auto"
)

// DefaultLockDir returns the directory used for wake channel lock files.
func DefaultLockDir() string {
	return filepath.Join(os.TempDir(), "pushclient")
}

func (c *Config) applyDefaults() {
	// Server defaults
	if c.Server.ChannelID == "" {
		c.Server.ChannelID = DefaultChannelID
	}
	if c.Server.KeepAlive == 0 {
		c.Server.KeepAlive = DefaultKeepAlive
	}
	if c.Server.HandshakeTimeout == 0 {
		c.Server.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = DefaultWriteTimeout
	}
	if c.Server.PingTimeout == 0 {
		c.Server.PingTimeout = DefaultPingTimeout
	}
	if c.Server.ReadLimit == 0 {
		c.Server.ReadLimit = DefaultReadLimit
	}

	// Wake defaults
	if c.Wake.LockDir == "" {
		c.Wake.LockDir = DefaultLockDir()
	}
	if c.Wake.SignalBuffer == 0 {
		c.Wake.SignalBuffer = DefaultSignalBuffer
	}

	// Queue defaults
	if c.Queue.Backend == "" {
		c.Queue.Backend = DefaultQueueBackend
	}
	if c.Queue.InitialCapacity == 0 {
		c.Queue.InitialCapacity = DefaultQueueCapacity
	}
	if c.Queue.OpTimeout == 0 {
		c.Queue.OpTimeout = DefaultQueueOpTimeout
	}
	if c.Queue.SQLitePath == "" {
		c.Queue.SQLitePath = filepath.Join(c.Wake.LockDir, DefaultSQLiteFile)
	}
	if c.Queue.Backend == "postgres" {
		applyDBDefaults(&c.Queue.Postgres)
	}

	// Status defaults
	if c.Status.Port == 0 {
		c.Status.Port = DefaultStatusPort
	}

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
