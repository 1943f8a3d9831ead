package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the player client configuration, loaded from client.yaml with
// environment overrides.
type Config struct {
	Feed struct {
		Transport    string `yaml:"transport"` // "nats" or "websocket"
		NATSURL      string `yaml:"nats_url"`
		WebSocketURL string `yaml:"websocket_url"`
	} `yaml:"feed"`
	UserID    string `yaml:"user_id"`
	ContestID string `yaml:"contest_id"`
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func loadConfig(path string) (*Config, error) {
	var config Config
	config.Feed.Transport = "websocket"

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.Feed.Transport = getEnv("FEED_TRANSPORT", config.Feed.Transport)
	config.Feed.NATSURL = getEnv("NATS_URL", config.Feed.NATSURL)
	config.Feed.WebSocketURL = getEnv("FEED_WS_URL", config.Feed.WebSocketURL)
	config.UserID = getEnv("USER_ID", config.UserID)
	config.ContestID = getEnv("CONTEST_ID", config.ContestID)

	switch config.Feed.Transport {
	case "nats", "websocket":
	default:
		return nil, fmt.Errorf("unknown feed transport %q", config.Feed.Transport)
	}

	return &config, nil
}
