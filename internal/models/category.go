package models

// Category is a judging category. The set is closed and compiled in.
type Category struct {
	Slug   string `json:"slug"`
	Name   string `json:"name"`
	Branch bool   `json:"branch"`
}

// Categories in display order.
var Categories = []Category{
	{Slug: "army", Name: "Army", Branch: true},
	{Slug: "navy", Name: "Navy", Branch: true},
	{Slug: "air-force", Name: "Air Force", Branch: true},
	{Slug: "marines", Name: "Marines", Branch: true},
	{Slug: "coast-guard", Name: "Coast Guard", Branch: true},
	{Slug: "space-force", Name: "Space Force", Branch: true},
	{Slug: "peoples-choice", Name: "People's Choice"},
}

// CategoryBySlug looks up a category by its URL slug.
func CategoryBySlug(slug string) (Category, bool) {
	for _, c := range Categories {
		if c.Slug == slug {
			return c, true
		}
	}
	return Category{}, false
}

// CategoryByName looks up a category by the display name stored in the ledger.
func CategoryByName(name string) (Category, bool) {
	for _, c := range Categories {
		if c.Name == name {
			return c, true
		}
	}
	return Category{}, false
}
