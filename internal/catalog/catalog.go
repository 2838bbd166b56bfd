// Package catalog exposes the static option lists (models, purposes, sort
// options) and the reserved username set, loaded from an embedded YAML file.
package catalog

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// AllModels is the "no filter" sentinel offered first in the model list.
const AllModels = "All models"

// SortOption is one entry of the feed sort selector.
type SortOption struct {
	Value string `yaml:"value" json:"value"`
	Label string `yaml:"label" json:"label"`
}

// Catalog holds the option lists.
type Catalog struct {
	Models            []string          `yaml:"models" json:"models"`
	Purposes          []string          `yaml:"purposes" json:"purposes"`
	SortOptions       []SortOption      `yaml:"sort_options" json:"sortOptions"`
	FilterPresets     map[string]string `yaml:"filter_presets" json:"filterPresets"`
	ReservedUsernames []string          `yaml:"reserved_usernames" json:"-"`

	reserved map[string]struct{}
	sortable map[string]struct{}
}

//go:embed catalog.yml
var raw []byte

var defaultCatalog = mustParse(raw)

// Default returns the embedded catalog.
func Default() *Catalog {
	return defaultCatalog
}

func mustParse(data []byte) *Catalog {
	c, err := Parse(data)
	if err != nil {
		panic(fmt.Sprintf("invalid embedded catalog: %v", err))
	}
	return c
}

// Parse decodes a catalog document.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if len(c.SortOptions) == 0 {
		return nil, fmt.Errorf("catalog must define at least one sort option")
	}

	c.reserved = make(map[string]struct{}, len(c.ReservedUsernames))
	for _, name := range c.ReservedUsernames {
		c.reserved[strings.ToLower(strings.TrimSpace(name))] = struct{}{}
	}
	c.sortable = make(map[string]struct{}, len(c.SortOptions))
	for _, opt := range c.SortOptions {
		c.sortable[opt.Value] = struct{}{}
	}
	for preset, field := range c.FilterPresets {
		if _, ok := c.sortable[field]; !ok {
			return nil, fmt.Errorf("filter preset %q maps to unknown sort field %q", preset, field)
		}
	}
	return &c, nil
}

// IsReservedUsername compares name case-insensitively against the reserved set.
func (c *Catalog) IsReservedUsername(name string) bool {
	_, ok := c.reserved[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// IsSortField reports whether field is an allowed feed sort column.
func (c *Catalog) IsSortField(field string) bool {
	_, ok := c.sortable[field]
	return ok
}

// DefaultSort is the first sort option.
func (c *Catalog) DefaultSort() string {
	return c.SortOptions[0].Value
}

// PresetSort resolves a filter preset (latest, popular, trending) to its sort field.
func (c *Catalog) PresetSort(preset string) (string, bool) {
	field, ok := c.FilterPresets[strings.ToLower(strings.TrimSpace(preset))]
	return field, ok
}

// IsNoFilter reports whether a model/purpose filter value means "do not filter".
func IsNoFilter(value string) bool {
	v := strings.TrimSpace(value)
	return v == "" || strings.EqualFold(v, AllModels) || strings.EqualFold(v, "all")
}
