package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the complete server configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Game     GameConfig     `mapstructure:"game"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type ServerConfig struct {
	WebSocket   WebSocketConfig `mapstructure:"websocket"`
	GRPC        GRPCConfig      `mapstructure:"grpc"`
	LeasePeriod time.Duration   `mapstructure:"lease_period"`
}

type WebSocketConfig struct {
	Address         string `mapstructure:"address"`
	ReadBufferSize  int    `mapstructure:"read_buffer_size"`
	WriteBufferSize int    `mapstructure:"write_buffer_size"`
}

type GRPCConfig struct {
	Address              string `mapstructure:"address"`
	MaxConcurrentStreams int    `mapstructure:"max_concurrent_streams"`
}

// GameConfig controls matchmaking and the match clock.
type GameConfig struct {
	MaxConcurrentGames int           `mapstructure:"max_concurrent_games"`
	DeckSize           int           `mapstructure:"deck_size"`
	InitialTime        time.Duration `mapstructure:"initial_time"`
	TimerInterval      time.Duration `mapstructure:"timer_interval"`
	OpeningHand        int           `mapstructure:"opening_hand"`
	CleanupInterval    time.Duration `mapstructure:"cleanup_interval"`
	CatalogPath        string        `mapstructure:"catalog_path"`
}

// DatabaseConfig selects the match archive. Driver is one of postgres, sqlite
// or none.
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	URL      string `mapstructure:"url"`
	MaxConns int32  `mapstructure:"max_conns"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.websocket.address", ":8000")
	v.SetDefault("server.websocket.read_buffer_size", 1024)
	v.SetDefault("server.websocket.write_buffer_size", 1024)
	v.SetDefault("server.grpc.address", ":17171")
	v.SetDefault("server.grpc.max_concurrent_streams", 100)
	v.SetDefault("server.lease_period", 5*time.Minute)

	v.SetDefault("game.max_concurrent_games", 20)
	v.SetDefault("game.deck_size", 16)
	v.SetDefault("game.initial_time", 15*time.Minute)
	v.SetDefault("game.timer_interval", time.Second)
	v.SetDefault("game.opening_hand", 4)
	v.SetDefault("game.cleanup_interval", 5*time.Minute)
	v.SetDefault("game.catalog_path", "")

	v.SetDefault("database.driver", "none")
	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 10)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// Load reads the configuration file at path, if it exists, and applies
// ARCANE_ prefixed environment overrides on top of the defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("ARCANE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the server cannot run with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite", "none":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.Driver != "none" && c.Database.URL == "" {
		return fmt.Errorf("database url is required for driver %q", c.Database.Driver)
	}
	if c.Game.MaxConcurrentGames <= 0 {
		return errors.New("game.max_concurrent_games must be positive")
	}
	if c.Game.DeckSize != 16 {
		return fmt.Errorf("game.deck_size must be 16, got %d", c.Game.DeckSize)
	}
	if c.Game.InitialTime <= 0 || c.Game.TimerInterval <= 0 {
		return errors.New("game clock durations must be positive")
	}
	if c.Game.CleanupInterval <= 0 {
		return errors.New("game.cleanup_interval must be positive")
	}
	if c.Server.LeasePeriod < time.Second {
		return errors.New("server.lease_period must be at least 1s")
	}
	return nil
}
