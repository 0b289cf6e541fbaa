package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	// Core
	OpenRouterKey string `env:"OPENROUTER_API_KEY,required"`
	DatabasePath  string `env:"DATABASE_PATH" envDefault:"converse.db"`

	// Server
	Port int `env:"PORT" envDefault:"8080"`

	// Model selection
	ChatModel   string `env:"CHAT_MODEL" envDefault:"openai/gpt-4o-mini"`
	VisionModel string `env:"VISION_MODEL" envDefault:"openai/gpt-4o-mini"`

	// Storage directories
	UploadDir    string `env:"UPLOAD_DIR" envDefault:"data/uploads"`
	GeneratedDir string `env:"GENERATED_DIR" envDefault:"data/generated"`

	// Image generation services
	ImageAPIURL       string `env:"IMAGE_API_URL" envDefault:"https://image.pollinations.ai"`
	PlaceholderAPIURL string `env:"PLACEHOLDER_API_URL" envDefault:"https://picsum.photos"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
