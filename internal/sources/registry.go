// Package sources loads the config-driven list of content sources into
// a fixed in-memory registry at startup.
package sources

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Source is one configured content source
type Source struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	FeedURL  string `yaml:"feed_url"`
	Priority int    `yaml:"priority"`
	Enabled  bool   `yaml:"enabled"`
}

type registryFile struct {
	Sources []Source `yaml:"sources"`
}

// Registry is the resolved source list
type Registry struct {
	sources []Source
	byID    map[string]Source
}

// Load reads and validates the source registry file. Malformed entries
// are a configuration error and fail startup.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sources file %s: %w", path, err)
	}
	return Parse(data)
}

// Parse builds a registry from raw YAML
func Parse(data []byte) (*Registry, error) {
	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse sources file: %w", err)
	}
	if len(file.Sources) == 0 {
		return nil, fmt.Errorf("sources file defines no sources")
	}

	byID := make(map[string]Source, len(file.Sources))
	for i, src := range file.Sources {
		if src.ID == "" {
			return nil, fmt.Errorf("source at index %d has no id", i)
		}
		if src.FeedURL == "" {
			return nil, fmt.Errorf("source %q has no feed_url", src.ID)
		}
		if _, exists := byID[src.ID]; exists {
			return nil, fmt.Errorf("duplicate source id %q", src.ID)
		}
		byID[src.ID] = src
	}

	return &Registry{sources: file.Sources, byID: byID}, nil
}

// Enabled returns the enabled sources, highest priority first. Ordering
// is stable for equal priorities.
func (r *Registry) Enabled() []Source {
	enabled := make([]Source, 0, len(r.sources))
	for _, src := range r.sources {
		if src.Enabled {
			enabled = append(enabled, src)
		}
	}
	sort.SliceStable(enabled, func(i, j int) bool {
		return enabled[i].Priority > enabled[j].Priority
	})
	return enabled
}

// Get looks up a source by id
func (r *Registry) Get(id string) (Source, bool) {
	src, ok := r.byID[id]
	return src, ok
}

// Len returns the total number of configured sources
func (r *Registry) Len() int {
	return len(r.sources)
}
