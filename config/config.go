package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the API server.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type AuthConfig struct {
	JWTSecret        string `yaml:"jwt_secret"`
	TokenExpireHours int    `yaml:"token_expire_hours"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// Load reads the YAML config at path and applies environment overrides.
// DATABASE_URL and JWT_SECRET always win over file values so deployments can
// keep credentials out of the config file.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{Port: 8080},
		Auth:   AuthConfig{TokenExpireHours: 24},
		Log:    LogConfig{Level: "info", Format: "json"},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if url := os.Getenv("DATABASE_URL"); url != "" {
		cfg.Database.URL = url
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		cfg.Auth.JWTSecret = secret
	}

	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("config: database url is required")
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("config: jwt secret is required")
	}
	if cfg.Auth.TokenExpireHours <= 0 {
		cfg.Auth.TokenExpireHours = 24
	}

	return cfg, nil
}
