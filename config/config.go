// Package config loads process-wide settings from sqlmodel.yml (or .yaml) and
// SQLMODEL_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Settings represents the sqlmodel configuration
type Settings struct {
	Log        LogSettings        `mapstructure:"log"`
	Naming     NamingSettings     `mapstructure:"naming"`
	Validation ValidationSettings `mapstructure:"validation"`
	Database   DatabaseSettings   `mapstructure:"database"`
}

// LogSettings selects the logger backend and level
type LogSettings struct {
	Level         string        `mapstructure:"level"`
	Backend       string        `mapstructure:"backend"`
	SlowThreshold time.Duration `mapstructure:"slow_threshold"`
}

// NamingSettings controls how table names are derived from class names
type NamingSettings struct {
	// Strategy is "lower" (class name lower-cased) or "snake".
	Strategy      string `mapstructure:"strategy"`
	TablePrefix   string `mapstructure:"table_prefix"`
	SingularTable bool   `mapstructure:"singular_table"`
}

// ValidationSettings holds registry-wide validation defaults
type ValidationSettings struct {
	// StrictTable makes supplied-but-invalid values fatal for table classes.
	StrictTable bool `mapstructure:"strict_table"`
}

// DatabaseSettings names the SQL dialect used when it cannot be detected
type DatabaseSettings struct {
	Dialect string `mapstructure:"dialect"`
}

const envPrefix = "SQLMODEL"

func newViper() *viper.Viper {
	v := viper.New()

	v.SetDefault("log.level", "warn")
	v.SetDefault("log.backend", "zap")
	v.SetDefault("log.slow_threshold", 200*time.Millisecond)
	v.SetDefault("naming.strategy", "lower")
	v.SetDefault("naming.table_prefix", "")
	v.SetDefault("naming.singular_table", true)
	v.SetDefault("validation.strict_table", false)
	v.SetDefault("database.dialect", "sqlite")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Default returns the built-in settings.
func Default() *Settings {
	s, err := decode(newViper())
	if err != nil {
		// defaults are static; a failure here is a programming error
		panic(err)
	}
	return s
}

// Load reads sqlmodel.yml from the given directories (the working directory
// when none are given). A missing file is not an error.
func Load(dirs ...string) (*Settings, error) {
	v := newViper()
	v.SetConfigName("sqlmodel")
	v.SetConfigType("yaml")
	if len(dirs) == 0 {
		dirs = []string{"."}
	}
	for _, dir := range dirs {
		v.AddConfigPath(dir)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return decode(v)
}

// LoadFile reads settings from an explicit file path.
func LoadFile(path string) (*Settings, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks enumerated settings.
func (s *Settings) Validate() error {
	switch strings.ToLower(s.Naming.Strategy) {
	case "lower", "snake":
	default:
		return fmt.Errorf("naming.strategy must be 'lower' or 'snake', got: %s", s.Naming.Strategy)
	}
	switch strings.ToLower(s.Log.Backend) {
	case "zap", "zerolog", "logrus":
	default:
		return fmt.Errorf("log.backend must be one of zap, zerolog, logrus, got: %s", s.Log.Backend)
	}
	switch strings.ToLower(s.Database.Dialect) {
	case "sqlite", "postgres", "mysql":
	default:
		return fmt.Errorf("database.dialect must be one of sqlite, postgres, mysql, got: %s", s.Database.Dialect)
	}
	if s.Log.SlowThreshold < 0 {
		return fmt.Errorf("log.slow_threshold must not be negative")
	}
	return nil
}
