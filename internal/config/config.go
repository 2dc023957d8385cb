package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds the process configuration, loaded from environment variables.
type Config struct {
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	ServerPort  string `mapstructure:"SERVER_PORT"`
	JWTSecret   string `mapstructure:"JWT_SECRET"`
	AMQPURL     string `mapstructure:"AMQP_URL"`

	GenerateJobSchedule string `mapstructure:"GENERATE_JOB_SCHEDULE"`
	OverdueJobSchedule  string `mapstructure:"OVERDUE_JOB_SCHEDULE"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`
}

// Load reads configuration from the environment. Schedules default to early
// morning daily runs; AMQP_URL is optional and disables event publishing when
// empty.
func Load() (*Config, error) {
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("GENERATE_JOB_SCHEDULE", "0 2 * * *") // daily at 02:00
	viper.SetDefault("OVERDUE_JOB_SCHEDULE", "30 1 * * *") // daily at 01:30
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "json")
	viper.AutomaticEnv()

	// Explicit binds so variables without defaults survive Unmarshal.
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("JWT_SECRET")
	_ = viper.BindEnv("AMQP_URL")
	_ = viper.BindEnv("GENERATE_JOB_SCHEDULE")
	_ = viper.BindEnv("OVERDUE_JOB_SCHEDULE")
	_ = viper.BindEnv("LOG_LEVEL")
	_ = viper.BindEnv("LOG_FORMAT")

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable not set")
	}
	return &cfg, nil
}
