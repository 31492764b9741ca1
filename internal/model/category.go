package model

// CategoryUnknown is the name of the fallback bucket for rows no
// registered category matches.
const CategoryUnknown = "UNKNOWN"

// Category is a configured product bucket: the keywords that identify it,
// the unit of measurement it is sold in, its OKPD2 code prefix, and the
// ordered list of technical specification fields a normalized record of
// this category must carry.
type Category struct {
	Name        string   `json:"name" yaml:"name"`
	Keywords    []string `json:"keywords" yaml:"keywords"`
	Unit        string   `json:"unit" yaml:"unit"`
	OKPD2Prefix string   `json:"okpd2_prefix" yaml:"okpd2_prefix"`
	Schema      []string `json:"schema" yaml:"schema"`
}

// CategoryRegistry is the immutable process-wide category table, built
// once at startup. Iteration order equals registration order, which makes
// detector tie-breaking deterministic.
type CategoryRegistry struct {
	categories []Category
	byName     map[string]*Category
	unknown    Category
}

// NewCategoryRegistry indexes the given categories. The UNKNOWN bucket is
// always present and does not need to be passed in.
func NewCategoryRegistry(categories []Category) *CategoryRegistry {
	r := &CategoryRegistry{
		categories: categories,
		byName:     make(map[string]*Category, len(categories)),
		unknown:    Category{Name: CategoryUnknown},
	}
	for i := range r.categories {
		r.byName[r.categories[i].Name] = &r.categories[i]
	}
	return r
}

// ByName returns the category with the given name, or nil.
func (r *CategoryRegistry) ByName(name string) *Category {
	if name == CategoryUnknown {
		return &r.unknown
	}
	return r.byName[name]
}

// Unknown returns the shared UNKNOWN category.
func (r *CategoryRegistry) Unknown() *Category {
	return &r.unknown
}

// All returns the registered categories in registration order.
func (r *CategoryRegistry) All() []Category {
	return r.categories
}

// Names returns the registered category names in registration order.
func (r *CategoryRegistry) Names() []string {
	names := make([]string, len(r.categories))
	for i, c := range r.categories {
		names[i] = c.Name
	}
	return names
}

// IsRegistered reports whether name is a registered category or UNKNOWN.
func (r *CategoryRegistry) IsRegistered(name string) bool {
	if name == CategoryUnknown {
		return true
	}
	_, ok := r.byName[name]
	return ok
}
