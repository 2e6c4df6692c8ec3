package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"treeline/arbor/internal/db"
	"treeline/arbor/internal/tree"
)

// FileName is the config file looked for when walking up from the working
// directory.
const FileName = ".arbor.yaml"

// Config is the on-disk configuration of the arbor CLI.
type Config struct {
	// Database is the SQLite file holding the node table.
	Database string `yaml:"database"`

	// Table and ForeignKey name the node table and its parent column.
	Table      string `yaml:"table" validate:"required,max=64"`
	ForeignKey string `yaml:"foreign_key" validate:"required,max=64"`

	// OrderBy is applied when listing a node's direct children, e.g. "id desc".
	OrderBy string `yaml:"order_by"`

	// Level and Family switch the optional derived columns on.
	Level  bool `yaml:"level"`
	Family bool `yaml:"family"`

	// FamilyLevel is the path index family_id is taken from.
	FamilyLevel int `yaml:"family_level" validate:"gte=0"`

	// DeleteBehavior is one of "", restrict, nullify, destroy.
	DeleteBehavior string `yaml:"delete_behavior" validate:"omitempty,oneof=restrict nullify destroy"`

	LogLevel string `yaml:"log_level" validate:"omitempty,oneof=trace debug info warn error disabled"`
}

// Default returns the configuration used when no file is found.
func Default() *Config {
	s := db.DefaultSchema()
	return &Config{
		Table:      s.Table,
		ForeignKey: s.ForeignKey,
		Level:      s.Level,
		Family:     s.Family,
		LogLevel:   "info",
	}
}

var validate = validator.New()

// Validate checks the field constraints and the SQL identifiers.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return c.Schema().Validate()
}

// Schema returns the table layout described by c.
func (c *Config) Schema() db.Schema {
	return db.Schema{
		Table:      c.Table,
		ForeignKey: c.ForeignKey,
		OrderBy:    c.OrderBy,
		Level:      c.Level,
		Family:     c.Family,
	}
}

// Tree returns the maintenance parameters described by c.
func (c *Config) Tree() *tree.Config {
	return &tree.Config{
		FamilyLevel:    c.FamilyLevel,
		DeleteBehavior: tree.DeleteBehavior(c.DeleteBehavior),
	}
}

// Load reads path on top of the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML on top of the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	c := Default()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Discover finds the config file using priority: env > flag > walk-up.
// An empty path with a nil error means no file was found and defaults apply.
func Discover(flagPath string) (string, error) {
	// 1. Environment variable
	if envPath := os.Getenv("ARBOR_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath, nil
		}
	}

	// 2. CLI flag
	if flagPath != "" {
		if _, err := os.Stat(flagPath); err == nil {
			return flagPath, nil
		}
		return "", fmt.Errorf("config not found at --config path: %s", flagPath)
	}

	// 3. Walk up from CWD
	dir, err := os.Getwd()
	if err != nil {
		return "", nil
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("checking %s: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

// Resolve discovers and loads the config, falling back to defaults.
func Resolve(flagPath string) (*Config, error) {
	path, err := Discover(flagPath)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return Default(), nil
	}
	c, err := Load(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	// A relative database path is relative to the config file.
	if c.Database != "" && !filepath.IsAbs(c.Database) {
		c.Database = filepath.Join(filepath.Dir(path), c.Database)
	}
	return c, nil
}
