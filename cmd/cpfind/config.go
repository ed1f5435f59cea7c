package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/meigma/classpath/location"
)

// fileConfig is the optional YAML configuration read with --config.
//
//	roots:
//	  - build/classes
//	  - lib/app.jar
//	  - archive:file:///opt/lib/bundle.jar!/lib/
//	compression: lz4
//	max_resource_size: 1048576
//	index_cache_capacity: 64
type fileConfig struct {
	Roots              []string `yaml:"roots"`
	Compression        string   `yaml:"compression"`
	MaxResourceSize    *uint64  `yaml:"max_resource_size"`
	IndexCacheCapacity int      `yaml:"index_cache_capacity"`
}

func loadConfig(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &cfg, nil
}

// locations parses the configured roots. Relative paths are resolved
// against the current directory, not the config file.
func (c *fileConfig) locations() ([]location.Location, error) {
	locs := make([]location.Location, 0, len(c.Roots))
	for _, s := range c.Roots {
		l, err := location.Parse(s)
		if err != nil {
			return nil, err
		}
		locs = append(locs, l)
	}
	return locs, nil
}
