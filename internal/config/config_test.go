package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config invalid: %v", err)
	}
	if cfg.Canvas.HandleSize != 8 || cfg.Canvas.MinBoxSize != 10 || cfg.Canvas.MinDrawSize != 5 {
		t.Errorf("Unexpected canvas defaults %+v", cfg.Canvas)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"handle size", func(c *Config) { c.Canvas.HandleSize = 1 }},
		{"min box size", func(c *Config) { c.Canvas.MinBoxSize = 0 }},
		{"min draw size", func(c *Config) { c.Canvas.MinDrawSize = -1 }},
		{"window", func(c *Config) { c.Canvas.WindowWidth = 0 }},
		{"provider", func(c *Config) { c.Vision.Provider = "gpt" }},
		{"vision quality", func(c *Config) { c.Vision.Quality = 101 }},
		{"timeout", func(c *Config) { c.Vision.TimeoutSec = 0 }},
		{"render quality", func(c *Config) { c.Render.Quality = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	cfg := Default()
	cfg.Vision.Model = "llava"
	cfg.Canvas.HandleSize = 12

	if err := cfg.SaveToFile(path); err != nil {
		t.Fatalf("SaveToFile() error: %v", err)
	}
	loaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error: %v", err)
	}
	if loaded.Vision.Model != "llava" || loaded.Canvas.HandleSize != 12 {
		t.Errorf("Round trip lost values: %+v", loaded)
	}
}

func TestLoadFromFilePartial(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"vision":{"model":"moondream"}}`), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error: %v", err)
	}
	if cfg.Vision.Model != "moondream" {
		t.Errorf("Expected model override, got %q", cfg.Vision.Model)
	}
	if cfg.Vision.Provider != "ollama" || cfg.Canvas.MinBoxSize != 10 {
		t.Errorf("Expected defaults for missing keys, got %+v", cfg)
	}
}

func TestLoadFromFileInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFromFile(path); err == nil {
		t.Error("Expected parse error")
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(filepath.Join(dir, "absent.json"), filepath.Join(dir, "absent.env"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Canvas.HandleSize != Default().Canvas.HandleSize {
		t.Errorf("Expected default handle size, got %d", cfg.Canvas.HandleSize)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("LABELER_HANDLE_SIZE", "14")
	t.Setenv("LABELER_VISION_PROVIDER", "llamacpp")
	t.Setenv("LABELER_WATCH_CLASSES", "false")
	t.Setenv("LABELER_MIN_BOX_SIZE", "not-a-number")

	cfg := Default()
	if err := cfg.ApplyEnv(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Fatalf("ApplyEnv() error: %v", err)
	}
	if cfg.Canvas.HandleSize != 14 {
		t.Errorf("Expected handle size 14, got %d", cfg.Canvas.HandleSize)
	}
	if cfg.Vision.Provider != "llamacpp" {
		t.Errorf("Expected provider llamacpp, got %q", cfg.Vision.Provider)
	}
	if cfg.Dataset.WatchClasses {
		t.Error("Expected watch disabled")
	}
	if cfg.Canvas.MinBoxSize != 10 {
		t.Errorf("Invalid number should keep default, got %d", cfg.Canvas.MinBoxSize)
	}
}

func TestApplyEnvFile(t *testing.T) {
	const key = "LABELER_RENDER_OUTPUT_DIR"
	os.Unsetenv(key)
	t.Cleanup(func() { os.Unsetenv(key) })

	envFile := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(envFile, []byte(key+"=/tmp/previews\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg := Default()
	if err := cfg.ApplyEnv(envFile); err != nil {
		t.Fatalf("ApplyEnv() error: %v", err)
	}
	if cfg.Render.OutputDir != "/tmp/previews" {
		t.Errorf("Expected output dir from env file, got %q", cfg.Render.OutputDir)
	}
}
