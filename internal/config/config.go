package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Identity  IdentityConfig  `mapstructure:"identity"`
	Export    ExportConfig    `mapstructure:"export"`
	Logger    LoggerConfig    `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// SchedulerConfig holds SLA sweep configuration
type SchedulerConfig struct {
	TickInterval     time.Duration `mapstructure:"tick_interval"`
	WarningThreshold float64       `mapstructure:"warning_threshold"`
	WorkerPoolSize   int           `mapstructure:"worker_pool_size"`
	SweepTimeout     time.Duration `mapstructure:"sweep_timeout"`
}

// IdentityConfig points at the identity directory
type IdentityConfig struct {
	DirectoryPath string `mapstructure:"directory_path"`
}

// ExportConfig holds report export configuration
type ExportConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	bindEnvVars()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)

	// Database defaults
	viper.SetDefault("database.path", "data/workflow.db")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	// Scheduler defaults
	viper.SetDefault("scheduler.tick_interval", 15*time.Second)
	viper.SetDefault("scheduler.warning_threshold", 0.8)
	viper.SetDefault("scheduler.worker_pool_size", 8)
	viper.SetDefault("scheduler.sweep_timeout", 30*time.Second)

	// Identity defaults
	viper.SetDefault("identity.directory_path", "configs/directory.json")

	// Export defaults
	viper.SetDefault("export.enabled", true)

	// Logger defaults
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.output_path", "stdout")
	viper.SetDefault("logger.format", "json")
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars() {
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("database.path", "DATABASE_PATH")
	viper.BindEnv("identity.directory_path", "IDENTITY_DIRECTORY_PATH")
	viper.BindEnv("logger.level", "LOG_LEVEL")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Scheduler.TickInterval <= 0 {
		return fmt.Errorf("scheduler.tick_interval must be positive")
	}
	if c.Scheduler.WarningThreshold <= 0 || c.Scheduler.WarningThreshold >= 1 {
		return fmt.Errorf("scheduler.warning_threshold must be between 0 and 1 exclusive")
	}
	if c.Scheduler.WorkerPoolSize <= 0 {
		return fmt.Errorf("scheduler.worker_pool_size must be positive")
	}
	if c.Identity.DirectoryPath == "" {
		return fmt.Errorf("identity.directory_path is required")
	}
	return nil
}
