// Package catalog holds the static region/city directory the bot offers in its menus.
// A Catalog is built once at startup and only read afterwards.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"slices"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed regions.yaml
var defaultRegions []byte

// ErrNotFound is returned when a region name is not part of the catalog.
var ErrNotFound = errors.New("catalog: region not found")

// Region is a top-level geographic grouping offered in the region menu.
type Region struct {
	Name string `yaml:"name"`
	// Param is the state value passed to the air-quality API.
	Param  string   `yaml:"param"`
	Cities []string `yaml:"cities"`
}

// HasCity reports whether city belongs to the region. Matching is exact and case-sensitive.
func (r Region) HasCity(city string) bool {
	return slices.Contains(r.Cities, city)
}

// Catalog is an immutable region directory.
type Catalog struct {
	regions map[string]Region
	names   []string
}

type document struct {
	Regions []Region `yaml:"regions"`
}

// New builds a catalog from the provided regions.
// Names must be non-empty and unique; cities inside a region must be unique.
func New(regions []Region) (*Catalog, error) {
	c := &Catalog{regions: make(map[string]Region, len(regions))}
	for i, r := range regions {
		name := strings.TrimSpace(r.Name)
		if name == "" {
			return nil, fmt.Errorf("catalog: region #%d has empty name", i)
		}
		if _, dup := c.regions[name]; dup {
			return nil, fmt.Errorf("catalog: duplicate region %q", name)
		}
		param := strings.TrimSpace(r.Param)
		if param == "" {
			param = name
		}
		seen := make(map[string]struct{}, len(r.Cities))
		cities := make([]string, 0, len(r.Cities))
		for _, city := range r.Cities {
			city = strings.TrimSpace(city)
			if city == "" {
				return nil, fmt.Errorf("catalog: region %q has empty city name", name)
			}
			if _, dup := seen[city]; dup {
				return nil, fmt.Errorf("catalog: region %q lists city %q twice", name, city)
			}
			seen[city] = struct{}{}
			cities = append(cities, city)
		}
		c.regions[name] = Region{Name: name, Param: param, Cities: cities}
		c.names = append(c.names, name)
	}
	sort.Strings(c.names)
	return c, nil
}

// Parse decodes a YAML catalog document.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("catalog: parse yaml: %w", err)
	}
	if len(doc.Regions) == 0 {
		return nil, errors.New("catalog: no regions defined")
	}
	return New(doc.Regions)
}

// Load reads the catalog from path, or the embedded default when path is empty.
func Load(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	return Parse(data)
}

// Default returns the built-in Uzbekistan catalog.
func Default() (*Catalog, error) {
	return Parse(defaultRegions)
}

// Lookup returns the region with the exact given name.
func (c *Catalog) Lookup(name string) (Region, error) {
	r, ok := c.regions[name]
	if !ok {
		return Region{}, ErrNotFound
	}
	return r.clone(), nil
}

// RegionNames returns region names in ascending lexicographic order.
func (c *Catalog) RegionNames() []string {
	return slices.Clone(c.names)
}

// Cities returns the ordered city list of a region. Unknown regions yield an empty list.
func (c *Catalog) Cities(region string) []string {
	r, ok := c.regions[region]
	if !ok {
		return nil
	}
	return slices.Clone(r.Cities)
}

// Len reports the number of regions.
func (c *Catalog) Len() int {
	return len(c.names)
}

func (r Region) clone() Region {
	r.Cities = slices.Clone(r.Cities)
	return r
}
