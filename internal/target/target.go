package target

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the subset of a hal_fuzz machine description the launcher
// cares about. The harness owns the full schema; everything here is
// best-effort identity information for logging and sanity checks.
type Config struct {
	Name       string            `yaml:"name"`
	Include    []string          `yaml:"include"`
	MemoryMap  map[string]Region `yaml:"memory_map"`
	EntryPoint uint64            `yaml:"entry_point"`
	InitialSP  uint64            `yaml:"initial_sp"`

	path string
}

type Region struct {
	BaseAddr    uint64 `yaml:"base_addr"`
	Size        uint64 `yaml:"size"`
	File        string `yaml:"file"`
	Permissions string `yaml:"permissions"`
}

// Load reads and parses the machine description at path. Unknown keys
// are ignored; the file only has to be valid yaml.
func Load(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read target config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse target config %s: %w", path, err)
	}
	cfg.path = path
	return &cfg, nil
}

// Identity returns a human-readable name for the emulated machine:
// its declared name if present, otherwise the config file's basename.
func (c *Config) Identity() string {
	if c.Name != "" {
		return c.Name
	}
	base := filepath.Base(c.path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// RegionCount returns the number of mapped memory regions.
func (c *Config) RegionCount() int {
	return len(c.MemoryMap)
}
