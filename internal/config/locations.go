package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/weather-history-etl/internal/domain"
)

type locationsFile struct {
	Locations []domain.Location `yaml:"locations"`
}

// LoadLocations reads the configured locations from a YAML file of the form
//
//	locations:
//	  - name: Menlo Park, CA
//	    lat: 37.4530
//	    lon: -122.1817
func LoadLocations(path string) ([]domain.Location, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read locations file: %w", err)
	}
	return ParseLocations(data)
}

// ParseLocations decodes and checks a locations document. Names must be
// unique after partition normalization so that every location maps to its
// own storage prefix.
func ParseLocations(data []byte) ([]domain.Location, error) {
	var f locationsFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse locations file: %w", err)
	}
	if len(f.Locations) == 0 {
		return nil, fmt.Errorf("locations file defines no locations")
	}

	v := newValidator()
	byPartition := make(map[string]string, len(f.Locations))
	for i, loc := range f.Locations {
		if err := v.Struct(loc); err != nil {
			return nil, fmt.Errorf("location %d (%q): %w", i, loc.Name, err)
		}
		part := loc.PartitionName()
		if part == "" {
			return nil, fmt.Errorf("location %d (%q): name has no alphanumeric characters", i, loc.Name)
		}
		if prev, ok := byPartition[part]; ok {
			return nil, fmt.Errorf("locations %q and %q share partition name %q", prev, loc.Name, part)
		}
		byPartition[part] = loc.Name
	}
	return f.Locations, nil
}
