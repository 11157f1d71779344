package config

import "time"

// Config is the root configuration for a push client instance.
type Config struct {
	Instance InstanceConfig `yaml:"instance"`
	Server   ServerConfig   `yaml:"server"`
	Wake     WakeConfig     `yaml:"wake"`
	Queue    QueueConfig    `yaml:"queue"`
	Status   StatusConfig   `yaml:"status"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// InstanceConfig identifies this client.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// ServerConfig holds push server connection settings.
type ServerConfig struct {
	URI              string        `yaml:"uri"`        // ws:// or wss:// endpoint
	ChannelID        string        `yaml:"channel_id"` // Wake channel id the handle is published under
	KeepAlive        time.Duration `yaml:"keep_alive"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	PingTimeout      time.Duration `yaml:"ping_timeout"` // Max time without server ping before the transport is considered stale
	ReadLimit        int64         `yaml:"read_limit"`   // Max frame size in bytes
}

// WakeConfig holds local wake scheduling settings.
type WakeConfig struct {
	LockDir      string `yaml:"lock_dir"`    // Directory for per-channel lock files
	Netlink      bool   `yaml:"netlink"`     // Watch udev net events for network changes (Linux)
	ResolvConf   string `yaml:"resolv_conf"` // File whose changes signal a network change; empty disables
	SignalBuffer int    `yaml:"signal_buffer"`
}

// QueueConfig selects and configures the handoff queue backend.
type QueueConfig struct {
	Backend         string        `yaml:"backend"` // memory, sqlite, postgres
	InitialCapacity int           `yaml:"initial_capacity"`
	SQLitePath      string        `yaml:"sqlite_path"`
	Postgres        DBConfig      `yaml:"postgres"`
	OpTimeout       time.Duration `yaml:"op_timeout"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// StatusConfig holds the read-only status endpoint settings.
type StatusConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json, auto
}
