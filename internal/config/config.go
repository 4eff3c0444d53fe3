package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Supported database types
const (
	DatabaseTypeMySQL  = "mysql"
	DatabaseTypeSQLite = "sqlite"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig    `mapstructure:"server"`
	Database DatabasesConfig `mapstructure:"database"`
	Logging  LoggingConfig   `mapstructure:"logging"`
	Identity IdentityConfig  `mapstructure:"identity"`
	Ledger   LedgerConfig    `mapstructure:"ledger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Hostname        string        `mapstructure:"hostname"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabasesConfig holds all database configurations
type DatabasesConfig struct {
	Consent DatabaseConfig `mapstructure:"consent"`
}

// DatabaseConfig holds individual database configuration
type DatabaseConfig struct {
	Type            string        `mapstructure:"type"`
	Hostname        string        `mapstructure:"hostname"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// IdentityConfig names the headers through which the upstream auth
// collaborator hands over the caller identity.
type IdentityConfig struct {
	SubjectHeader string `mapstructure:"subject_header"`
	AdminHeader   string `mapstructure:"admin_header"`
}

// LedgerConfig holds consent ledger limits
type LedgerConfig struct {
	MaxFieldLength    int `mapstructure:"max_field_length"`
	AdminListMaxLimit int `mapstructure:"admin_list_max_limit"`
}

// Load reads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("deployment")
		v.SetConfigType("yaml")
		v.AddConfigPath("./repository/conf")
		v.AddConfigPath("./cmd/server/repository/conf")
		v.AddConfigPath("../repository/conf")
		v.AddConfigPath(".")
	}

	// CONSENT_LEDGER_DATABASE_CONSENT_PASSWORD overrides database.consent.password
	v.SetEnvPrefix("CONSENT_LEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.hostname", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.request_timeout", 10*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("database.consent.type", DatabaseTypeMySQL)
	v.SetDefault("database.consent.port", 3306)
	v.SetDefault("database.consent.max_open_conns", 25)
	v.SetDefault("database.consent.max_idle_conns", 5)
	v.SetDefault("database.consent.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("identity.subject_header", "X-Subject-ID")
	v.SetDefault("identity.admin_header", "X-Admin-Privilege")

	v.SetDefault("ledger.max_field_length", 255)
	v.SetDefault("ledger.admin_list_max_limit", 1000)
}

// validateConfig validates the configuration
func validateConfig(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	db := config.Database.Consent
	switch db.Type {
	case DatabaseTypeMySQL:
		if db.Hostname == "" {
			return fmt.Errorf("database hostname is required")
		}
		if db.Database == "" {
			return fmt.Errorf("database name is required")
		}
	case DatabaseTypeSQLite:
		if db.Path == "" {
			return fmt.Errorf("database path is required for sqlite")
		}
	default:
		return fmt.Errorf("unsupported database type: %q", db.Type)
	}

	if config.Identity.SubjectHeader == "" {
		return fmt.Errorf("identity subject header is required")
	}
	if config.Identity.AdminHeader == "" {
		return fmt.Errorf("identity admin header is required")
	}

	if config.Ledger.MaxFieldLength <= 0 {
		return fmt.Errorf("ledger max field length must be positive")
	}
	if config.Ledger.AdminListMaxLimit <= 0 {
		return fmt.Errorf("ledger admin list max limit must be positive")
	}

	return nil
}

// GetDSN returns the database connection string for the configured driver
func (d *DatabaseConfig) GetDSN() string {
	if d.Type == DatabaseTypeSQLite {
		return d.Path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&multiStatements=true",
		d.User,
		d.Password,
		d.Hostname,
		d.Port,
		d.Database,
	)
}

// GetServerAddress returns the server address in host:port format
func (s *ServerConfig) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", s.Hostname, s.Port)
}
