package config

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

type Config struct {
	Port        int
	Token       string
	ConfigPath  string
	DBPath      string
	ProfilesDir string
	PrintToken  bool

	EngineAPIKey          string
	EngineModel           string
	EngineBaseURL         string
	EngineTemperature     float64
	EngineMaxOutputTokens int

	DirectoryBaseURL string
	DirectoryToken   string
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:        8780,
		EngineModel: "gpt-4o-mini",
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}
	cfg.ConfigPath = filepath.Join(homeDir, ".config", "propdesk", "config")
	cfg.DBPath = filepath.Join(homeDir, ".local", "share", "propdesk", "propdesk.db")
	cfg.ProfilesDir = filepath.Join(homeDir, ".config", "propdesk", "profiles")

	if err := cfg.loadFromFile(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if key := strings.TrimSpace(os.Getenv("PROPDESK_ENGINE_API_KEY")); key != "" {
		cfg.EngineAPIKey = key
	}

	flag.IntVar(&cfg.Port, "port", cfg.Port, "server port (1-65535)")
	flag.StringVar(&cfg.Token, "token", cfg.Token, "authentication token (auto-generated if empty)")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "sqlite database path")
	flag.StringVar(&cfg.ProfilesDir, "profiles", cfg.ProfilesDir, "triage profiles directory")
	flag.StringVar(&cfg.EngineModel, "engine-model", cfg.EngineModel, "reasoning engine model")
	flag.StringVar(&cfg.EngineBaseURL, "engine-url", cfg.EngineBaseURL, "reasoning engine base URL (default provider URL if empty)")
	flag.StringVar(&cfg.DirectoryBaseURL, "directory-url", cfg.DirectoryBaseURL, "external contractor directory base URL (disabled if empty)")
	flag.BoolVar(&cfg.PrintToken, "print-token", false, "print token to stdout (for local debugging)")
	flag.Parse()

	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port %d: must be between 1 and 65535", cfg.Port)
	}

	if cfg.Token == "" {
		token, err := generateToken()
		if err != nil {
			return nil, fmt.Errorf("failed to generate token: %w", err)
		}
		cfg.Token = token
		if err := cfg.saveToFile(); err != nil {
			return nil, fmt.Errorf("failed to save config file: %w", err)
		}
	}

	return cfg, nil
}

func (c *Config) loadFromFile() error {
	data, err := os.ReadFile(c.ConfigPath)
	if err != nil {
		return err
	}
	lines := strings.Split(string(data), "\n")
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		switch key {
		case "Token":
			c.Token = value
		case "Port":
			port, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("invalid Port value %q: %w", value, err)
			}
			c.Port = port
		case "DBPath":
			c.DBPath = value
		case "ProfilesDir":
			c.ProfilesDir = value
		case "EngineAPIKey":
			c.EngineAPIKey = value
		case "EngineModel":
			c.EngineModel = value
		case "EngineBaseURL":
			c.EngineBaseURL = value
		case "EngineTemperature":
			temp, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return fmt.Errorf("invalid EngineTemperature value %q: %w", value, err)
			}
			c.EngineTemperature = temp
		case "EngineMaxOutputTokens":
			tokens, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("invalid EngineMaxOutputTokens value %q: %w", value, err)
			}
			c.EngineMaxOutputTokens = tokens
		case "DirectoryBaseURL":
			c.DirectoryBaseURL = value
		case "DirectoryToken":
			c.DirectoryToken = value
		}
	}
	return nil
}

func (c *Config) saveToFile() error {
	dir := filepath.Dir(c.ConfigPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data := fmt.Sprintf("Port=%d\nToken=%s\nDBPath=%s\nProfilesDir=%s\n", c.Port, c.Token, c.DBPath, c.ProfilesDir)
	return os.WriteFile(c.ConfigPath, []byte(data), 0o600)
}

func generateToken() (string, error) {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
