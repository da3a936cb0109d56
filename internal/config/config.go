package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "LABELER_"

// Config holds the application configuration
type Config struct {
	Canvas  CanvasConfig  `json:"canvas"`
	Dataset DatasetConfig `json:"dataset"`
	Vision  VisionConfig  `json:"vision"`
	Render  RenderConfig  `json:"render"`
	Log     LogConfig     `json:"log"`
}

// CanvasConfig holds editor window and hit-testing sizes, in pixels
type CanvasConfig struct {
	WindowWidth  int `json:"window_width"`
	WindowHeight int `json:"window_height"`
	HandleSize   int `json:"handle_size"`
	MinBoxSize   int `json:"min_box_size"`
	MinDrawSize  int `json:"min_draw_size"`
}

// DatasetConfig holds folder defaults
type DatasetConfig struct {
	Dir          string `json:"dir"`
	WatchClasses bool   `json:"watch_classes"`
}

// VisionConfig holds configuration for model pre-labelling
type VisionConfig struct {
	Provider      string `json:"provider"` // ollama or llamacpp
	Endpoint      string `json:"endpoint"`
	Model         string `json:"model"`
	MaxDimension  int    `json:"max_dimension"`
	Quality       int    `json:"quality"`
	TimeoutSec    int    `json:"timeout_sec"`
	CreateClasses bool   `json:"create_classes"`
}

// RenderConfig holds configuration for preview output
type RenderConfig struct {
	Labels    bool   `json:"labels"`
	Stroke    int    `json:"stroke"`
	Quality   int    `json:"quality"`
	OutputDir string `json:"output_dir"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Dir   string `json:"dir"` // empty logs to the console only
	Debug bool   `json:"debug"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Canvas: CanvasConfig{
			WindowWidth:  1280,
			WindowHeight: 800,
			HandleSize:   8,
			MinBoxSize:   10,
			MinDrawSize:  5,
		},
		Dataset: DatasetConfig{
			WatchClasses: true,
		},
		Vision: VisionConfig{
			Provider:     "ollama",
			Endpoint:     "http://localhost:11434",
			Model:        "qwen2.5vl:7b",
			MaxDimension: 1024,
			Quality:      85,
			TimeoutSec:   120,
		},
		Render: RenderConfig{
			Labels:    true,
			Stroke:    2,
			Quality:   90,
			OutputDir: "./preview",
		},
	}
}

// Load reads filename if it exists, falling back to defaults, then applies
// environment overrides and validates the result.
func Load(filename string, envFiles ...string) (*Config, error) {
	cfg := Default()
	if filename != "" {
		loaded, err := LoadFromFile(filename)
		switch {
		case err == nil:
			cfg = loaded
		case !errors.Is(err, os.ErrNotExist):
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(envFiles...); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a JSON file. Missing keys keep their
// default values.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv loads the given .env files (or ./.env) and overrides fields from
// LABELER_* variables. Missing .env files are ignored.
func (c *Config) ApplyEnv(envFiles ...string) error {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load env file: %w", err)
	}

	c.Canvas.WindowWidth = getEnvAsInt("WINDOW_WIDTH", c.Canvas.WindowWidth)
	c.Canvas.WindowHeight = getEnvAsInt("WINDOW_HEIGHT", c.Canvas.WindowHeight)
	c.Canvas.HandleSize = getEnvAsInt("HANDLE_SIZE", c.Canvas.HandleSize)
	c.Canvas.MinBoxSize = getEnvAsInt("MIN_BOX_SIZE", c.Canvas.MinBoxSize)
	c.Canvas.MinDrawSize = getEnvAsInt("MIN_DRAW_SIZE", c.Canvas.MinDrawSize)

	c.Dataset.Dir = getEnv("DATASET_DIR", c.Dataset.Dir)
	c.Dataset.WatchClasses = getEnvAsBool("WATCH_CLASSES", c.Dataset.WatchClasses)

	c.Vision.Provider = getEnv("VISION_PROVIDER", c.Vision.Provider)
	c.Vision.Endpoint = getEnv("VISION_ENDPOINT", c.Vision.Endpoint)
	c.Vision.Model = getEnv("VISION_MODEL", c.Vision.Model)
	c.Vision.MaxDimension = getEnvAsInt("VISION_MAX_DIMENSION", c.Vision.MaxDimension)
	c.Vision.TimeoutSec = getEnvAsInt("VISION_TIMEOUT", c.Vision.TimeoutSec)
	c.Vision.CreateClasses = getEnvAsBool("VISION_CREATE_CLASSES", c.Vision.CreateClasses)

	c.Render.OutputDir = getEnv("RENDER_OUTPUT_DIR", c.Render.OutputDir)

	c.Log.Dir = getEnv("LOG_DIR", c.Log.Dir)
	c.Log.Debug = getEnvAsBool("LOG_DEBUG", c.Log.Debug)
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Canvas.HandleSize < 2 {
		return fmt.Errorf("canvas.handle_size must be at least 2")
	}

	if c.Canvas.MinBoxSize < 1 {
		return fmt.Errorf("canvas.min_box_size must be positive")
	}

	if c.Canvas.MinDrawSize < 0 {
		return fmt.Errorf("canvas.min_draw_size cannot be negative")
	}

	if c.Canvas.WindowWidth < 1 || c.Canvas.WindowHeight < 1 {
		return fmt.Errorf("canvas window size must be positive")
	}

	switch strings.ToLower(c.Vision.Provider) {
	case "ollama", "llamacpp":
	default:
		return fmt.Errorf("vision.provider must be ollama or llamacpp, got %q", c.Vision.Provider)
	}

	if c.Vision.Quality < 1 || c.Vision.Quality > 100 {
		return fmt.Errorf("vision.quality must be between 1 and 100")
	}

	if c.Vision.TimeoutSec < 1 {
		return fmt.Errorf("vision.timeout_sec must be positive")
	}

	if c.Render.Quality < 1 || c.Render.Quality > 100 {
		return fmt.Errorf("render.quality must be between 1 and 100")
	}

	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "yolo-labeler", "config.json")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
