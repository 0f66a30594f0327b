package config

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Target is one city to scrape: the search page template and the
// localities to visit. SearchURL may contain a single %s that is replaced
// with the locality slug.
type Target struct {
	SearchURL  string   `yaml:"search_url"`
	Localities []string `yaml:"localities"`
}

// Targets maps a city name to its scrape target.
type Targets map[string]Target

// LoadTargets reads and validates the YAML targets file at path.
func LoadTargets(path string) (Targets, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read targets: %w", err)
	}
	return ParseTargets(data)
}

// ParseTargets decodes targets from YAML.
func ParseTargets(data []byte) (Targets, error) {
	var t Targets
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("config: parse targets: %w", err)
	}
	if len(t) == 0 {
		return nil, fmt.Errorf("config: parse targets: no cities defined")
	}
	for city, target := range t {
		if target.SearchURL == "" {
			return nil, fmt.Errorf("config: parse targets: city %q has no search_url", city)
		}
		if len(target.Localities) == 0 {
			return nil, fmt.Errorf("config: parse targets: city %q has no localities", city)
		}
	}
	return t, nil
}

// Cities returns the configured city names in sorted order.
func (t Targets) Cities() []string {
	cities := make([]string, 0, len(t))
	for c := range t {
		cities = append(cities, c)
	}
	sort.Strings(cities)
	return cities
}
