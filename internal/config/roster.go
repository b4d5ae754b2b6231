package config

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// City is one roster entry.
type City struct {
	Name string `yaml:"name"`
	// Query overrides Name for geocoding, e.g. "San Jose del Monte" for SJDM.
	Query           string `yaml:"query,omitempty"`
	Urban           bool   `yaml:"urban,omitempty"`
	TotalPopulation *int64 `yaml:"total_population,omitempty"`
	UrbanPopulation *int64 `yaml:"urban_population,omitempty"`
}

// GeocodeQuery is the text sent to the geocoder.
func (c City) GeocodeQuery() string {
	if q := strings.TrimSpace(c.Query); q != "" {
		return q
	}
	return c.Name
}

// Roster is the YAML city list.
type Roster struct {
	Cities []City `yaml:"cities"`
}

// LoadRoster reads a roster file. Names are trimmed; blank and repeated names
// are rejected.
func LoadRoster(path string) ([]City, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "config: read roster %s", path)
	}
	return ParseRoster(data)
}

// ParseRoster decodes roster YAML.
func ParseRoster(data []byte) ([]City, error) {
	var r Roster
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, eris.Wrap(err, "config: parse roster")
	}

	seen := make(map[string]bool, len(r.Cities))
	for i := range r.Cities {
		c := &r.Cities[i]
		c.Name = strings.TrimSpace(c.Name)
		if c.Name == "" {
			return nil, eris.Errorf("config: roster entry %d has no name", i+1)
		}
		key := strings.ToLower(c.Name)
		if seen[key] {
			return nil, eris.Errorf("config: roster lists %q twice", c.Name)
		}
		seen[key] = true
	}
	return r.Cities, nil
}

// FilterCities keeps the roster entries named in names, in roster order.
// An empty names keeps all. Unknown names are returned separately.
func FilterCities(cities []City, names []string) (kept []City, unknown []string) {
	if len(names) == 0 {
		return cities, nil
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[strings.ToLower(strings.TrimSpace(n))] = true
	}
	found := make(map[string]bool, len(names))
	for _, c := range cities {
		k := strings.ToLower(c.Name)
		if want[k] {
			kept = append(kept, c)
			found[k] = true
		}
	}
	for _, n := range names {
		if k := strings.ToLower(strings.TrimSpace(n)); !found[k] {
			unknown = append(unknown, n)
		}
	}
	return kept, unknown
}
