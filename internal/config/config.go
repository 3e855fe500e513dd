package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" validate:"required"`
	Log       LogConfig       `mapstructure:"log" validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database" validate:"required"`
	Auth      AuthConfig      `mapstructure:"auth" validate:"required"`
	Hub       HubConfig       `mapstructure:"hub" validate:"required"`
	Client    ClientConfig    `mapstructure:"client" validate:"required"`
	Bootstrap BootstrapConfig `mapstructure:"bootstrap"`
	Debug     DebugConfig     `mapstructure:"debug"`
}

// ServerConfig configures the hub HTTP server.
type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=json text"`
	// File, when set, receives log output instead of stdout.
	File string `mapstructure:"file"`
}

// DatabaseConfig contains all database-related configuration settings.
// For the sqlite driver URL is a file path.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver" validate:"required,oneof=postgres sqlite"`
	URL             string        `mapstructure:"url" validate:"required"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"gte=0"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"gte=0"`
}

// AuthConfig contains authentication settings. An empty JWTSecret leaves
// the hub unauthenticated.
type AuthConfig struct {
	JWTSecret            string        `mapstructure:"jwt_secret" validate:"omitempty,min=32"`
	TokenLifetimeMinutes int           `mapstructure:"token_lifetime_minutes" validate:"gt=0,lt=44640"`
	BCryptCost           int           `mapstructure:"bcrypt_cost" validate:"gte=4,lte=31"`
	LoginTimeout         time.Duration `mapstructure:"login_timeout" validate:"gt=0"`
}

// HubConfig tunes the notification hub.
type HubConfig struct {
	OutboxSize     int           `mapstructure:"outbox_size" validate:"gt=0"`
	PingInterval   time.Duration `mapstructure:"ping_interval" validate:"gt=0"`
	PongWait       time.Duration `mapstructure:"pong_wait" validate:"gtfield=PingInterval"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout" validate:"gt=0"`
	MaxMessageSize int64         `mapstructure:"max_message_size" validate:"gt=0"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

// ClientConfig configures the console client's hub connection.
type ClientConfig struct {
	HubURL               string        `mapstructure:"hub_url" validate:"required,url"`
	DialTimeout          time.Duration `mapstructure:"dial_timeout" validate:"gt=0"`
	WriteTimeout         time.Duration `mapstructure:"write_timeout" validate:"gt=0"`
	// ServerTimeout drops a hub connection that sends nothing, pings
	// included, for this long.
	ServerTimeout        time.Duration `mapstructure:"server_timeout" validate:"gt=0"`
	ReconnectBase        time.Duration `mapstructure:"reconnect_base" validate:"gt=0"`
	ReconnectMax         time.Duration `mapstructure:"reconnect_max" validate:"gtefield=ReconnectBase"`
	MaxReconnectAttempts uint64        `mapstructure:"max_reconnect_attempts"`
	ResyncOnReconnect    bool          `mapstructure:"resync_on_reconnect"`
	// ResyncSchedule is a cron spec for periodic view reloads; empty disables it.
	ResyncSchedule string `mapstructure:"resync_schedule" validate:"omitempty,cron"`
	// HostHub runs a hub inside the client process on HostAddr.
	HostHub  bool   `mapstructure:"host_hub"`
	HostAddr string `mapstructure:"host_addr" validate:"required_if=HostHub true"`
}

// BootstrapConfig describes the administrator created when the users
// table is empty.
type BootstrapConfig struct {
	AdminUsername     string `mapstructure:"admin_username"`
	AdminPassword     string `mapstructure:"admin_password"`
	AdminEmployeeCode string `mapstructure:"admin_employee_code"`
	AdminDisplayName  string `mapstructure:"admin_display_name"`
}

// DebugConfig enables auto-login for local development.
type DebugConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Username string `mapstructure:"username" validate:"required_if=Enabled true"`
}
