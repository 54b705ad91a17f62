package model

import (
	"io"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// CategoryTag identifies one of the fixed search categories. The tag set is
// closed: overrides may relabel a tag but never add or remove one.
type CategoryTag string

const (
	CategoryRestaurants CategoryTag = "restaurants"
	CategoryActivities  CategoryTag = "activites"
	CategoryNature      CategoryTag = "nature"
	CategoryCulture     CategoryTag = "culture"
	CategoryShopping    CategoryTag = "shopping"
	CategoryBars        CategoryTag = "bars"
)

// CatalogEntry describes one category as it appears to the operator.
type CatalogEntry struct {
	Tag             CategoryTag `yaml:"tag" json:"tag"`
	Label           string      `yaml:"label" json:"label"`
	Icon            string      `yaml:"icon" json:"icon"`
	DefaultSelected bool        `yaml:"default_selected" json:"default_selected"`
}

// Catalog is the ordered list of searchable categories.
type Catalog []CatalogEntry

// DefaultCatalog returns the built-in category set. Restaurants and
// activities start selected; the rest are opt-in.
func DefaultCatalog() Catalog {
	return Catalog{
		{Tag: CategoryRestaurants, Label: "Restaurants", Icon: "utensils", DefaultSelected: true},
		{Tag: CategoryActivities, Label: "Activités", Icon: "ferris-wheel", DefaultSelected: true},
		{Tag: CategoryNature, Label: "Nature", Icon: "tree", DefaultSelected: false},
		{Tag: CategoryCulture, Label: "Culture", Icon: "landmark", DefaultSelected: false},
		{Tag: CategoryShopping, Label: "Shopping", Icon: "shopping-bag", DefaultSelected: false},
		{Tag: CategoryBars, Label: "Bars", Icon: "beer", DefaultSelected: false},
	}
}

// Entry returns the catalog entry for a tag, or nil when the tag is unknown.
func (c Catalog) Entry(tag CategoryTag) *CatalogEntry {
	for i := range c {
		if c[i].Tag == tag {
			return &c[i]
		}
	}
	return nil
}

// Contains reports whether tag is part of the catalog.
func (c Catalog) Contains(tag CategoryTag) bool {
	return c.Entry(tag) != nil
}

// DefaultTags returns the tags that start selected.
func (c Catalog) DefaultTags() []CategoryTag {
	var tags []CategoryTag
	for _, e := range c {
		if e.DefaultSelected {
			tags = append(tags, e.Tag)
		}
	}
	return tags
}

type catalogOverrideFile struct {
	Categories []struct {
		Tag             CategoryTag `yaml:"tag"`
		Label           string      `yaml:"label"`
		Icon            string      `yaml:"icon"`
		DefaultSelected *bool       `yaml:"default_selected"`
	} `yaml:"categories"`
}

// ApplyOverrides reads a YAML override file and returns a catalog with the
// overridden labels, icons, and default selections. An override naming a tag
// outside the built-in set is an error.
func (c Catalog) ApplyOverrides(r io.Reader) (Catalog, error) {
	var file catalogOverrideFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		return nil, eris.Wrap(err, "catalog: decode overrides")
	}

	out := make(Catalog, len(c))
	copy(out, c)

	for _, ov := range file.Categories {
		entry := out.Entry(ov.Tag)
		if entry == nil {
			return nil, eris.Errorf("catalog: unknown category tag %q", ov.Tag)
		}
		if ov.Label != "" {
			entry.Label = ov.Label
		}
		if ov.Icon != "" {
			entry.Icon = ov.Icon
		}
		if ov.DefaultSelected != nil {
			entry.DefaultSelected = *ov.DefaultSelected
		}
	}
	return out, nil
}
