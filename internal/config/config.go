package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Repository RepositoryConfig `mapstructure:"repository"`
	Board      BoardConfig      `mapstructure:"board"`
}

type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           string        `mapstructure:"port"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	RateLimitRPM   int           `mapstructure:"rate_limit_rpm"`
}

type DatabaseConfig struct {
	Path               string        `mapstructure:"path"`
	CheckpointInterval time.Duration `mapstructure:"checkpoint_interval"`
}

type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

type RepositoryConfig struct {
	Type string `mapstructure:"type"` // "sqlite" или "inmemory"
}

type BoardConfig struct {
	// статусы, которые автоматический пересчёт не перезаписывает
	ProtectedStatuses []string `mapstructure:"protected_statuses"`
}

// Load читает config.yml (если есть) и переменные окружения с
// префиксом BOARD_: BOARD_SERVER_PORT, BOARD_DATABASE_PATH и так далее.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.request_timeout", 30*time.Second)
	v.SetDefault("server.rate_limit_rpm", 100)
	v.SetDefault("database.path", "board.db")
	v.SetDefault("database.checkpoint_interval", 5*time.Minute)
	v.SetDefault("logging.development", false)
	v.SetDefault("repository.type", "sqlite")
	v.SetDefault("board.protected_statuses", []string{"failed", "blocked"})

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("BOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("чтение config.yml: %w", err)
		}
		// файла нет — работаем на значениях по умолчанию и окружении
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("разбор конфигурации: %w", err)
	}

	if cfg.Repository.Type != "sqlite" && cfg.Repository.Type != "inmemory" {
		return nil, fmt.Errorf("неизвестный repository.type: %q", cfg.Repository.Type)
	}

	return &cfg, nil
}

func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}
