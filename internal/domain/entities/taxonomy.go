package entities

// Taxonomy names a lookup collection whose entries are resolved by name
type Taxonomy string

const (
	TaxonomyCategories   Taxonomy = "categories"
	TaxonomyTechnologies Taxonomy = "technologies"
	TaxonomyRankings     Taxonomy = "rankings"
)

// NameField is the indexed field matched when resolving names. Category
// names are matched on the raw keyword sub-field.
func (t Taxonomy) NameField() string {
	if t == TaxonomyCategories {
		return "name.keyword"
	}
	return "name"
}
