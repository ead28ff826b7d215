package config

import (
	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type Config struct {
	HttpServerPort uint16 `env:"HTTP_SERVER_PORT" envDefault:"8085" validate:"min=1000,max=65535"`

	// PublicBaseURL is what the QR share endpoint embeds in join links.
	PublicBaseURL string `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8085" validate:"url"`

	// An empty key is valid: the suggestion endpoint then serves its canned
	// fallback set.
	OpenAIAPIKey  string `env:"OPENAI_API_KEY"  envDefault:""`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1" validate:"url"`
	OpenAIModel   string `env:"OPENAI_MODEL"    envDefault:"gpt-4o"`
}

func LoadConfig() (*Config, error) {
	// Load environment variables from .env file
	err := godotenv.Load(".env")
	if err != nil {
		zap.L().Debug(".env file not found", zap.Error(err))
	}

	cfg := &Config{}
	// Parse config from environment variables
	if err = env.Parse(cfg); err != nil {
		zap.L().Error("config_load_failed", zap.Error(err))
		return nil, err
	}

	// Validate the config
	validate := validator.New()
	err = validate.Struct(cfg)
	if err != nil {
		zap.L().Error("config_validation_failed", zap.Error(err))
		return nil, err
	}
	return cfg, nil
}
