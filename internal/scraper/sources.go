// Package scraper fetches marketplace listing pages and extracts deal
// candidates from them.
package scraper

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultRequestDelaySeconds = 3
	defaultMaxItems            = 10
)

// Source is one listing page to harvest candidates from.
type Source struct {
	ID                  string `yaml:"id"`
	Name                string `yaml:"name"`
	URL                 string `yaml:"url"`
	Category            string `yaml:"category"`
	Enabled             *bool  `yaml:"enabled"`
	RequestDelaySeconds int    `yaml:"request_delay_seconds"`
	MaxItems            int    `yaml:"max_items"`
}

// RequestDelay returns the pause between page fetches for this source.
func (s Source) RequestDelay() time.Duration {
	return time.Duration(s.RequestDelaySeconds) * time.Second
}

// EnabledValue returns the enabled flag defaulting to true.
func (s Source) EnabledValue() bool {
	if s.Enabled == nil {
		return true
	}
	return *s.Enabled
}

type sourcesFile struct {
	Sources []Source `yaml:"sources"`
}

// LoadSources reads the source list from a YAML file, returning only
// enabled entries.
func LoadSources(path string) ([]Source, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("sources file path is empty")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources file: %w", err)
	}

	var file sourcesFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("decode sources file: %w", err)
	}
	if len(file.Sources) == 0 {
		return nil, errors.New("sources file contains no sources entries")
	}

	seen := make(map[string]struct{}, len(file.Sources))
	out := make([]Source, 0, len(file.Sources))
	for i, src := range file.Sources {
		src = sanitizeSource(src)
		if err := validateSource(src); err != nil {
			return nil, fmt.Errorf("sources[%d]: %w", i, err)
		}
		if _, dup := seen[src.ID]; dup {
			return nil, fmt.Errorf("duplicate source id %q", src.ID)
		}
		seen[src.ID] = struct{}{}
		if src.EnabledValue() {
			out = append(out, src)
		}
	}
	return out, nil
}

func sanitizeSource(src Source) Source {
	src.ID = strings.TrimSpace(src.ID)
	src.Name = strings.TrimSpace(src.Name)
	src.URL = strings.TrimSpace(src.URL)
	src.Category = strings.ToLower(strings.TrimSpace(src.Category))
	if src.RequestDelaySeconds <= 0 {
		src.RequestDelaySeconds = defaultRequestDelaySeconds
	}
	if src.MaxItems <= 0 {
		src.MaxItems = defaultMaxItems
	}
	return src
}

func validateSource(src Source) error {
	if src.ID == "" {
		return errors.New("id is required")
	}
	if src.URL == "" {
		return fmt.Errorf("url is required for source %q", src.ID)
	}
	if !strings.HasPrefix(src.URL, "http://") && !strings.HasPrefix(src.URL, "https://") {
		return fmt.Errorf("url must be absolute for source %q", src.ID)
	}
	return nil
}
