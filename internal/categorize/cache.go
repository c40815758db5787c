package categorize

import (
	"sort"
	"strings"
)

// knownProducts is the static product dictionary. Keys are in cleaned form
// (lowercase, single spaces). Both canonical and shop-floor word orders are
// listed since matching runs against the normalized and the cleaned raw name.
var knownProducts = map[string]string{
	"мляко прясно":       "dairy",
	"прясно мляко":       "dairy",
	"мляко кисело":       "dairy",
	"кисело мляко":       "dairy",
	"сирене краве":       "dairy",
	"краве сирене":       "dairy",
	"бяло сирене":        "dairy",
	"кашкавал":           "dairy",
	"краве масло":        "dairy",
	"айран":              "dairy",
	"извара":             "dairy",
	"яйца":               "pantry",
	"хляб добруджа":      "bakery",
	"хляб типов":         "bakery",
	"бял хляб":           "bakery",
	"баничка":            "bakery",
	"кифла":              "bakery",
	"кока-кола":          "beverages",
	"coca-cola":          "beverages",
	"минерална вода":     "beverages",
	"вода минерална":     "beverages",
	"айрян":              "dairy",
	"бира загорка":       "alcohol",
	"бира шуменско":      "alcohol",
	"бира каменица":      "alcohol",
	"доматена паста":     "condiments",
	"лютеница":           "condiments",
	"кетчуп":             "condiments",
	"майонеза":           "condiments",
	"банани":             "fruits_vegetables",
	"домати":             "fruits_vegetables",
	"краставици":         "fruits_vegetables",
	"картофи":            "fruits_vegetables",
	"ябълки":             "fruits_vegetables",
	"тоалетна хартия":    "household",
	"кухненска ролка":    "household",
	"перилен препарат":   "household",
	"препарат за съдове": "household",
	"паста за зъби":      "personal_care",
	"шампоан":            "personal_care",
	"душ гел":            "personal_care",
	"пелени":             "baby",
	"кайма смесена":      "meat",
	"пилешко филе":       "meat",
	"пилешко бутчета":    "meat",
	"кренвирши":          "meat",
	"луканка":            "meat",
	"скумрия":            "fish",
	"сьомга":             "fish",
	"слънчогледово олио": "pantry",
	"олио слънчогледово": "pantry",
	"брашно":             "pantry",
	"ориз":               "pantry",
	"сладолед":           "frozen",
	"чипс":               "snacks",
	"торбичка":           "household",
}

// Cache is the static product dictionary stage of the waterfall.
type Cache struct {
	exact map[string]string
	// keys ordered longest first so substring hits prefer the most specific entry
	keys []string
}

// NewCache builds a dictionary from entries. Nil uses the built-in table.
func NewCache(entries map[string]string) *Cache {
	if entries == nil {
		entries = knownProducts
	}
	c := &Cache{exact: make(map[string]string, len(entries))}
	for k, v := range entries {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		c.exact[k] = v
		c.keys = append(c.keys, k)
	}
	sort.Slice(c.keys, func(i, j int) bool {
		if len(c.keys[i]) != len(c.keys[j]) {
			return len(c.keys[i]) > len(c.keys[j])
		}
		return c.keys[i] < c.keys[j]
	})
	return c
}

// Lookup resolves the first of names that hits the dictionary, exactly or by
// containing a dictionary key. It returns the category id and the key that hit.
func (c *Cache) Lookup(names ...string) (string, string, bool) {
	for _, name := range names {
		if category, ok := c.exact[name]; ok {
			return category, name, true
		}
	}
	for _, key := range c.keys {
		for _, name := range names {
			if strings.Contains(name, key) {
				return c.exact[key], key, true
			}
		}
	}
	return "", "", false
}

// Len returns the number of dictionary entries.
func (c *Cache) Len() int {
	return len(c.keys)
}
