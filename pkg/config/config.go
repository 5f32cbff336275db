package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/caarlos0/env/v6"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// EnvConfigPath names the variable that points at the config file.
const EnvConfigPath = "ZEPLER_CONFIG"

// DefaultFallbackImageURL is served when the dog image service cannot be reached.
const DefaultFallbackImageURL = "https://dcewboipbvgi2.cloudfront.net/cdn/farfuture/F3Jhqj1h8Lw_ZY8KFN4psInhN8vPekhOtFUYDskKWJs/mtime:1496942436/sites/default/files/styles/article_hero_image/public/Puppy_Dog_Labrador_Jerry.jpg"

// Config is the root runtime configuration loaded from config.json.
type Config struct {
	Bot      BotConfig      `json:"bot"`
	Channels ChannelsConfig `json:"channels"`
	Services ServicesConfig `json:"services"`
	Gateway  GatewayConfig  `json:"gateway"`
	Logging  LoggingConfig  `json:"logging,omitempty"`
}

// BotConfig holds the bot's display settings.
type BotConfig struct {
	Name string `json:"name" validate:"required"`
}

// LoggingConfig controls structured log output format and verbosity.
type LoggingConfig struct {
	Format    string `json:"format,omitempty" validate:"omitempty,oneof=text json"`
	Level     string `json:"level,omitempty" validate:"omitempty,oneof=debug info warn warning error"`
	AddSource bool   `json:"add_source,omitempty"`
}

// ChannelsConfig stores transport adapter settings.
type ChannelsConfig struct {
	Slack    SlackConfig    `json:"slack"`
	Telegram TelegramConfig `json:"telegram"`
}

// SlackConfig configures the Slack Socket Mode integration.
type SlackConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"bot_token" validate:"required_if=Enabled true"`
	AppToken string `json:"app_token" validate:"required_if=Enabled true"`
	Debug    bool   `json:"debug"`
}

// TelegramConfig configures Telegram channel integration.
type TelegramConfig struct {
	Enabled   bool     `json:"enabled"`
	Token     string   `json:"token" validate:"required_if=Enabled true"`
	AllowFrom []string `json:"allow_from"`
}

// ServicesConfig groups the external content services used by commands.
type ServicesConfig struct {
	DogCEO DogCEOConfig `json:"dogceo"`
	Yelp   YelpConfig   `json:"yelp"`
}

// DogCEOConfig configures the random dog image service.
type DogCEOConfig struct {
	BaseURL               string `json:"base_url" validate:"required,url"`
	FallbackImageURL      string `json:"fallback_image_url" validate:"required,url"`
	RequestTimeoutSeconds int    `json:"request_timeout_seconds" validate:"gte=0"`
}

// YelpConfig configures the restaurant listing search.
type YelpConfig struct {
	BaseURL               string  `json:"base_url" validate:"required,url"`
	Token                 string  `json:"-"`
	Latitude              float64 `json:"latitude" validate:"latitude"`
	Longitude             float64 `json:"longitude" validate:"longitude"`
	RadiusMeters          int     `json:"radius_meters" validate:"gt=0,lte=40000"`
	Price                 string  `json:"price"`
	Categories            string  `json:"categories"`
	RequestTimeoutSeconds int     `json:"request_timeout_seconds" validate:"gte=0"`
}

// GatewayConfig configures HTTP status server bind settings.
type GatewayConfig struct {
	Host string `json:"host"`
	Port int    `json:"port" validate:"gte=0,lte=65535"`
}

// secrets are the environment-provided tokens and overrides read once at start.
type secrets struct {
	SlackBotToken     string   `env:"ZEPLER_TOKEN"`
	SlackAppToken     string   `env:"SLACK_APP_TOKEN"`
	TelegramBotToken  string   `env:"TELEGRAM_BOT_TOKEN"`
	TelegramAllowFrom []string `env:"TELEGRAM_ALLOW_FROM" envSeparator:","`
	YelpToken         string   `env:"YELP_TOKEN"`
}

// Default returns the configuration used when no config file is present.
func Default() *Config {
	return &Config{
		Bot: BotConfig{Name: "zepler"},
		Services: ServicesConfig{
			DogCEO: DogCEOConfig{
				BaseURL:               "https://dog.ceo/api",
				FallbackImageURL:      DefaultFallbackImageURL,
				RequestTimeoutSeconds: 10,
			},
			Yelp: YelpConfig{
				BaseURL:               "https://api.yelp.com/v3",
				Latitude:              37.4121902,
				Longitude:             -122.0585327,
				RadiusMeters:          5000,
				Price:                 "1,2",
				Categories:            "restaurants",
				RequestTimeoutSeconds: 10,
			},
		},
		Gateway: GatewayConfig{Host: "127.0.0.1", Port: 18790},
	}
}

// LoadConfig resolves config.json on top of the defaults, applies environment
// secrets, and validates the result.
func LoadConfig() (*Config, error) {
	cfg := Default()

	configPath, err := findConfigPath()
	if err != nil {
		return nil, err
	}

	if configPath != "" {
		content, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := json.Unmarshal(content, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env file: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks struct-level constraints on a loaded configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is required")
	}

	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	return nil
}

// applyEnvOverrides injects env-driven secrets on top of file config.
func applyEnvOverrides(cfg *Config) error {
	if cfg == nil {
		return nil
	}

	var s secrets
	if err := env.Parse(&s); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}

	if token := strings.TrimSpace(s.SlackBotToken); token != "" {
		cfg.Channels.Slack.BotToken = token
	}
	if token := strings.TrimSpace(s.SlackAppToken); token != "" {
		cfg.Channels.Slack.AppToken = token
	}
	if token := strings.TrimSpace(s.TelegramBotToken); token != "" {
		cfg.Channels.Telegram.Token = token
	}
	if allowFrom := compact(s.TelegramAllowFrom); len(allowFrom) > 0 {
		cfg.Channels.Telegram.AllowFrom = allowFrom
	}
	cfg.Services.Yelp.Token = strings.TrimSpace(s.YelpToken)

	return nil
}

// compact trims values and drops empty ones.
func compact(values []string) []string {
	clean := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		clean = append(clean, trimmed)
	}

	return slices.Clip(clean)
}

// findConfigPath resolves the active config file location.
//
// Precedence is ZEPLER_CONFIG first, then cwd-local fallback paths. An empty
// path with a nil error means no file exists and defaults apply.
func findConfigPath() (string, error) {
	if value := strings.TrimSpace(os.Getenv(EnvConfigPath)); value != "" {
		if info, err := os.Stat(value); err == nil && !info.IsDir() {
			return value, nil
		}
		return "", fmt.Errorf("%s does not point to a file: %s", EnvConfigPath, value)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get current working directory: %w", err)
	}

	candidates := []string{
		filepath.Join(cwd, "config.json"),
		filepath.Join(cwd, "config", "config.json"),
	}

	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	return "", nil
}
