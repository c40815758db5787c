package model

// CategoryOther is the fallthrough category id.
const CategoryOther = "other"

// Category is an entry of the fixed grocery taxonomy.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Categories is the fixed taxonomy, in display order.
var Categories = []Category{
	{ID: "dairy", Name: "Млечни продукти"},
	{ID: "meat", Name: "Месо и колбаси"},
	{ID: "fish", Name: "Риба и морски дарове"},
	{ID: "bakery", Name: "Хляб и тестени"},
	{ID: "fruits_vegetables", Name: "Плодове и зеленчуци"},
	{ID: "beverages", Name: "Напитки"},
	{ID: "alcohol", Name: "Алкохол"},
	{ID: "snacks", Name: "Сладки и снаксове"},
	{ID: "frozen", Name: "Замразени храни"},
	{ID: "pantry", Name: "Основни храни"},
	{ID: "condiments", Name: "Сосове и подправки"},
	{ID: "household", Name: "Домакински стоки"},
	{ID: "personal_care", Name: "Лична хигиена"},
	{ID: "baby", Name: "Бебешки стоки"},
	{ID: "pets", Name: "Домашни любимци"},
	{ID: CategoryOther, Name: "Други"},
}

var categoryByID = func() map[string]Category {
	m := make(map[string]Category, len(Categories))
	for _, c := range Categories {
		m[c.ID] = c
	}
	return m
}()

// LookupCategory returns the taxonomy entry for id.
func LookupCategory(id string) (Category, bool) {
	c, ok := categoryByID[id]
	return c, ok
}

// MustCategory returns the taxonomy entry for id, or the "other" category when
// the id is unknown.
func MustCategory(id string) Category {
	if c, ok := categoryByID[id]; ok {
		return c
	}
	return categoryByID[CategoryOther]
}

// CategoryIDs returns the permitted category ids in taxonomy order.
func CategoryIDs() []string {
	ids := make([]string, len(Categories))
	for i, c := range Categories {
		ids[i] = c.ID
	}
	return ids
}
