// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package catalog holds the reference list of property names the Search
// Service accepts in property-range filters.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/molsearch/pkg/types"
)

//go:embed properties.yaml
var builtin []byte

// Group classifies a property.
type Group string

const (
	GroupDescriptor Group = "descriptor"
	GroupADMET      Group = "admet"
)

// Property is one filterable property.
type Property struct {
	Name    string   `yaml:"name"`
	Aliases []string `yaml:"aliases,omitempty"`
	Group   Group    `yaml:"-"`
}

type catalogFile struct {
	Descriptors []Property `yaml:"descriptors"`
	ADMET       []Property `yaml:"admet"`
}

// Catalog resolves property names and aliases to canonical names.
type Catalog struct {
	props  []Property
	lookup map[string]string // name or alias -> canonical name
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := Parse(builtin)
	if err != nil {
		panic(fmt.Sprintf("built-in property catalog: %v", err))
	}
	return c
}

// Load reads a catalog from a YAML file with the same layout as the
// built-in one. An empty path returns Default().
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading property catalog: %w", err)
	}
	return Parse(data)
}

// Parse builds a catalog from YAML. Duplicate names or aliases are errors.
func Parse(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing property catalog: %w", err)
	}

	c := &Catalog{lookup: make(map[string]string)}
	add := func(group Group, props []Property) error {
		for _, p := range props {
			if p.Name == "" {
				return fmt.Errorf("property with empty name in %s group", group)
			}
			p.Group = group
			for _, key := range append([]string{p.Name}, p.Aliases...) {
				if prev, dup := c.lookup[key]; dup {
					return fmt.Errorf("property key %q declared by both %s and %s", key, prev, p.Name)
				}
				c.lookup[key] = p.Name
			}
			c.props = append(c.props, p)
		}
		return nil
	}
	if err := add(GroupDescriptor, f.Descriptors); err != nil {
		return nil, err
	}
	if err := add(GroupADMET, f.ADMET); err != nil {
		return nil, err
	}
	if len(c.props) == 0 {
		return nil, fmt.Errorf("property catalog is empty")
	}
	return c, nil
}

// Lookup returns the canonical name for a property name or alias.
func (c *Catalog) Lookup(name string) (string, bool) {
	canonical, ok := c.lookup[name]
	return canonical, ok
}

// Canonicalize rewrites range keys to canonical names. Unknown names are
// returned sorted; the rewritten map is nil when any name is unknown or two
// keys resolve to the same property.
func (c *Catalog) Canonicalize(ranges map[string]types.PropertyRange) (map[string]types.PropertyRange, []string) {
	out := make(map[string]types.PropertyRange, len(ranges))
	var bad []string
	for name, r := range ranges {
		canonical, ok := c.lookup[name]
		if !ok {
			bad = append(bad, name)
			continue
		}
		if _, dup := out[canonical]; dup {
			bad = append(bad, name+" (duplicate of "+canonical+")")
			continue
		}
		out[canonical] = r
	}
	if len(bad) > 0 {
		sort.Strings(bad)
		return nil, bad
	}
	return out, nil
}

// Properties returns every property sorted by group then name.
func (c *Catalog) Properties() []Property {
	out := make([]Property, len(c.props))
	copy(out, c.props)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Group != out[j].Group {
			return out[i].Group > out[j].Group // descriptors first
		}
		return out[i].Name < out[j].Name
	})
	return out
}
