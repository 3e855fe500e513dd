package config

import (
	"errors"
	"fmt"
	"io/fs"
	"reflect"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g.
// TASKMGR_DATABASE_URL for database.url.
const EnvPrefix = "TASKMGR"

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"hub-url":   "client.hub_url",
	"host-hub":  "client.host_hub",
	"host-addr": "client.host_addr",
	"db-driver": "database.driver",
	"db-url":    "database.url",
	"log-level": "log.level",
	"port":      "server.port",
}

// Options controls where configuration is read from.
type Options struct {
	// ConfigFile is an optional YAML file. Missing explicit files are an error.
	ConfigFile string
	// EnvFile is a dotenv file loaded into the environment. When empty,
	// ".env" is loaded if it exists.
	EnvFile string
	// Flags, when set, are bound over every other source for the keys in
	// flagKeys that the user actually passed.
	Flags *pflag.FlagSet
}

// RegisterFlags adds the shared configuration flags.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String("config", "", "path to a YAML config file")
	flags.String("env-file", "", "path to a .env file")
	flags.String("hub-url", "", "notification hub URL (ws://host:port/taskhub)")
	flags.Bool("host-hub", false, "host the notification hub in this process")
	flags.String("host-addr", "", "listen address for the in-process hub")
	flags.String("db-driver", "", "database driver: postgres or sqlite")
	flags.String("db-url", "", "database URL, or file path for sqlite")
	flags.String("log-level", "", "log level: debug, info, warn or error")
	flags.Int("port", 0, "hub server port")
}

// OptionsFromFlags reads --config and --env-file from a parsed flag set.
func OptionsFromFlags(flags *pflag.FlagSet) Options {
	opts := Options{Flags: flags}
	opts.ConfigFile, _ = flags.GetString("config")
	opts.EnvFile, _ = flags.GetString("env-file")
	return opts
}

// Loader reads configuration and can watch the config file for changes.
type Loader struct {
	opts     Options
	v        *viper.Viper
	validate *validator.Validate

	mu sync.Mutex
}

// NewLoader creates a Loader. Nothing is read until Load.
func NewLoader(opts Options) *Loader {
	return &Loader{
		opts:     opts,
		v:        viper.New(),
		validate: newValidator(),
	}
}

// Load configuration from environment variables and optionally config files.
// Environment variables take precedence over values from config files;
// flags take precedence over both.
// Returns a populated Config struct or an error if loading/validation fails.
func Load(opts Options) (*Config, error) {
	return NewLoader(opts).Load()
}

// Load reads every source and returns the validated configuration.
func (l *Loader) Load() (*Config, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := loadEnvFile(l.opts.EnvFile); err != nil {
		return nil, err
	}

	v := l.v
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if l.opts.ConfigFile != "" {
		v.SetConfigFile(l.opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", l.opts.ConfigFile, err)
		}
	}

	if l.opts.Flags != nil {
		for name, key := range flagKeys {
			if f := l.opts.Flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("binding flag --%s: %w", name, err)
				}
			}
		}
	}

	return l.decode()
}

// decode unmarshals and validates the current viper state.
func (l *Loader) decode() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	cfg.Log.Format = strings.ToLower(cfg.Log.Format)
	cfg.Database.Driver = strings.ToLower(cfg.Database.Driver)

	if err := l.validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Watch calls fn with the reloaded configuration whenever the config file
// changes. A reload that fails validation is passed as err with a nil cfg.
// It reports false when no config file is in use.
func (l *Loader) Watch(fn func(cfg *Config, err error)) bool {
	if l.v.ConfigFileUsed() == "" {
		return false
	}

	l.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		l.mu.Lock()
		cfg, err := l.decode()
		l.mu.Unlock()
		fn(cfg, err)
	})
	l.v.WatchConfig()
	return true
}

func loadEnvFile(path string) error {
	if path == "" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading .env: %w", err)
		}
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading env file %s: %w", path, err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.url", "data/taskmanager.db")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "5m")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_lifetime_minutes", 60)
	v.SetDefault("auth.bcrypt_cost", 10)
	v.SetDefault("auth.login_timeout", "10s")

	v.SetDefault("hub.outbox_size", 16)
	v.SetDefault("hub.ping_interval", "30s")
	v.SetDefault("hub.pong_wait", "60s")
	v.SetDefault("hub.write_timeout", "10s")
	v.SetDefault("hub.max_message_size", 4096)
	v.SetDefault("hub.allowed_origins", []string{"*"})

	v.SetDefault("client.hub_url", "ws://localhost:5000/taskhub")
	v.SetDefault("client.dial_timeout", "10s")
	v.SetDefault("client.write_timeout", "5s")
	v.SetDefault("client.server_timeout", "60s")
	v.SetDefault("client.reconnect_base", "1s")
	v.SetDefault("client.reconnect_max", "30s")
	v.SetDefault("client.max_reconnect_attempts", 0)
	v.SetDefault("client.resync_on_reconnect", true)
	v.SetDefault("client.resync_schedule", "")
	v.SetDefault("client.host_hub", false)
	v.SetDefault("client.host_addr", ":5000")

	v.SetDefault("bootstrap.admin_username", "admin")
	v.SetDefault("bootstrap.admin_password", "")
	v.SetDefault("bootstrap.admin_employee_code", "ADMIN")
	v.SetDefault("bootstrap.admin_display_name", "Administrator")

	v.SetDefault("debug.enabled", false)
	v.SetDefault("debug.username", "")
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Error messages use the mapstructure key rather than the Go field name.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("cron", func(fl validator.FieldLevel) bool {
		_, err := cron.ParseStandard(fl.Field().String())
		return err == nil
	})
	return v
}
