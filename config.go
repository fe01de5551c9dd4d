package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Config holds all application settings, populated from the environment.
type Config struct {
	Port                  string `env:"PORT" envDefault:"3000"`
	DatabasePath          string `env:"DATABASE_PATH" envDefault:"./taskflow.db"`
	JWTSecret             string `env:"JWT_SECRET" envDefault:"your_jwt_secret"`
	FrontendURL           string `env:"FRONTEND_URL" envDefault:"*"`
	NotificationRetention int    `env:"NOTIFICATION_RETENTION" envDefault:"500"`
	LogLevel              string `env:"LOG_LEVEL" envDefault:"info"`
}

// LoadConfig reads an optional .env file into the environment and parses
// the configuration from it.
func LoadConfig(envFile string) (*Config, error) {
	if envFile != "" {
		if err := loadEnvFile(envFile); err != nil && !os.IsNotExist(err) {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// loadEnvFile loads environment variables from a .env file.
func loadEnvFile(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()

		// Skip empty lines and comments
		if len(line) == 0 || strings.HasPrefix(line, "#") {
			continue
		}

		// Split on the first equals sign
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue // Skip malformed lines
		}

		// Trim spaces and optional quotes from the value
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		value = strings.Trim(value, `"'`)

		os.Setenv(key, value)
	}

	return scanner.Err()
}
