package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/go-playground/validator"
	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	StoreFile   = "file"
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

// Config holds application configuration.
type Config struct {
	DataDir    string   `yaml:"data_dir" validate:"required"`
	Store      string   `yaml:"store" validate:"oneof=file sqlite memory"`
	ZTypes     []string `yaml:"ztypes" validate:"unique,dive,required"`
	CrossZType string   `yaml:"cross_ztype" validate:"omitempty,oneof=allow reject"`
	MoveMode   string   `yaml:"move_mode" validate:"omitempty,oneof=reorder reparent"`
	// History records every drag in a journal next to the store.
	History    bool     `yaml:"history"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		DataDir:    "~/.layertree",
		Store:      StoreFile,
		ZTypes:     []string{"reference", "feature", "image", "tile"},
		CrossZType: "allow",
		MoveMode:   "reorder",
		History:    true,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation error: %w", err)
	}
	return nil
}

// ResolvedDataDir returns DataDir with a leading ~ expanded.
func (c Config) ResolvedDataDir() (string, error) {
	dir, err := homedir.Expand(c.DataDir)
	if err != nil {
		return "", fmt.Errorf("failed to expand data directory: %w", err)
	}
	return dir, nil
}

// LoadConfig reads a yaml config file over the defaults. A missing file
// yields the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	expanded, err := homedir.Expand(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to expand config path: %w", err)
	}
	content, err := os.ReadFile(expanded)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
