package categorize

import (
	"regexp"
	"strings"
)

// StorePattern maps a retailer private-label regex to a category.
type StorePattern struct {
	Pattern    *regexp.Regexp
	CategoryID string
}

// Chain is a known retailer with its private labels and their patterns.
type Chain struct {
	ID string
	// Aliases are the spellings a merchant name may carry on a receipt.
	Aliases []string
	// Labels are private-label brand keywords printed only by this chain.
	Labels   []string
	Patterns []StorePattern
}

func pattern(expr, category string) StorePattern {
	return StorePattern{Pattern: regexp.MustCompile(`(?i)` + expr), CategoryID: category}
}

// chains is order-significant for merchant resolution and for the patterns
// inside each chain.
var chains = []Chain{
	{
		ID:      "kaufland",
		Aliases: []string{"kaufland", "кауфланд"},
		Labels:  []string{"k-classic", "k-bio", "k-free", "exquisit"},
		Patterns: []StorePattern{
			pattern(`k-classic.*(мляко|сирене|кашкавал|йогурт|масло)`, "dairy"),
			pattern(`k-classic.*(прах|препарат|омекотител|хартия)`, "household"),
			pattern(`k-classic.*(вода|сок|напитка)`, "beverages"),
			pattern(`k-bio`, "fruits_vegetables"),
			pattern(`exquisit`, "dairy"),
			pattern(`k-free`, "pantry"),
		},
	},
	{
		ID:      "lidl",
		Aliases: []string{"lidl", "лидл"},
		Labels:  []string{"pilos", "dulano", "cien", "w5", "freeway", "crownfield", "alesto", "favorina", "solevita", "chef select"},
		Patterns: []StorePattern{
			pattern(`pilos`, "dairy"),
			pattern(`dulano`, "meat"),
			pattern(`cien`, "personal_care"),
			pattern(`\bw5\b`, "household"),
			pattern(`freeway|solevita`, "beverages"),
			pattern(`crownfield`, "pantry"),
			pattern(`alesto|favorina`, "snacks"),
			pattern(`chef select`, "frozen"),
		},
	},
	{
		ID:      "billa",
		Aliases: []string{"billa", "била"},
		Labels:  []string{"clever", "billa bio", "billa premium"},
		Patterns: []StorePattern{
			pattern(`clever.*(мляко|сирене|кашкавал)`, "dairy"),
			pattern(`clever.*(вода|сок)`, "beverages"),
			pattern(`billa bio`, "fruits_vegetables"),
			pattern(`clever`, "pantry"),
		},
	},
	{
		ID:      "fantastico",
		Aliases: []string{"fantastico", "фантастико"},
		Labels:  []string{"фантастико"},
		Patterns: []StorePattern{
			pattern(`фантастико.*(хляб|питка|козунак)`, "bakery"),
			pattern(`фантастико.*(кебапче|кюфте|кайма)`, "meat"),
		},
	},
	{
		ID:      "t-market",
		Aliases: []string{"t market", "t-market", "т маркет", "т-маркет"},
		Labels:  []string{"t-market"},
		Patterns: []StorePattern{
			pattern(`t-market.*(хляб|питка)`, "bakery"),
		},
	},
}

// StorePatterns is the retailer-specific stage of the waterfall.
type StorePatterns struct {
	chains []Chain
}

// NewStorePatterns builds a matcher over chains. Nil uses the built-in table.
func NewStorePatterns(list []Chain) *StorePatterns {
	if list == nil {
		list = chains
	}
	return &StorePatterns{chains: list}
}

// LookupChain resolves a merchant name to a known chain.
func (s *StorePatterns) LookupChain(store string) (Chain, bool) {
	store = strings.ToLower(store)
	if strings.TrimSpace(store) == "" {
		return Chain{}, false
	}
	for _, chain := range s.chains {
		for _, alias := range chain.Aliases {
			if strings.Contains(store, alias) {
				return chain, true
			}
		}
	}
	return Chain{}, false
}

// Chains returns the configured chains.
func (s *StorePatterns) Chains() []Chain {
	return s.chains
}

// Match tests the store's patterns against the raw item name.
func (s *StorePatterns) Match(store, rawName string) (Chain, StorePattern, bool) {
	chain, ok := s.LookupChain(store)
	if !ok {
		return Chain{}, StorePattern{}, false
	}
	for _, p := range chain.Patterns {
		if p.Pattern.MatchString(rawName) {
			return chain, p, true
		}
	}
	return chain, StorePattern{}, false
}

// DefaultStorePatterns returns a matcher over the built-in chain table.
func DefaultStorePatterns() *StorePatterns {
	return NewStorePatterns(nil)
}
