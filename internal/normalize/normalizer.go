// Package normalize turns raw receipt product names into structured components
// and a canonical key used for exact-match lookups.
package normalize

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/Veraticus/the-receipts-must-flow/internal/model"
)

// Confidence contributions for each extracted component.
const (
	baseConfidence    = 0.5
	brandConfidence   = 0.15
	sizeConfidence    = 0.15
	typeConfidence    = 0.10
	fatConfidence     = 0.05
	barcodeConfidence = 0.05
)

// Normalizer parses raw product names. The zero value is not usable; call New.
// A Normalizer holds only precompiled tables and is safe for concurrent use.
type Normalizer struct {
	brands []brandMatcher
}

type brandMatcher struct {
	pattern *regexp.Regexp
	name    string
}

// New builds a Normalizer with the built-in brand, product and unit tables.
func New() *Normalizer {
	n := &Normalizer{}
	for _, group := range brandGroups {
		for _, brand := range group.brands {
			n.brands = append(n.brands, brandMatcher{
				name:    brand,
				pattern: regexp.MustCompile(`(?:^|[^\p{L}\p{N}])` + regexp.QuoteMeta(brand) + `(?:[^\p{L}\p{N}]|$)`),
			})
		}
	}
	return n
}

var defaultNormalizer = New()

// Normalize parses raw with the default tables.
func Normalize(raw string) model.NormalizedProduct {
	return defaultNormalizer.Normalize(raw)
}

// Normalize parses raw into components, a canonical name, a display name and
// a keyword set. It never fails; unrecognised names fall back to their residue.
func (n *Normalizer) Normalize(raw string) model.NormalizedProduct {
	text := Clean(raw)

	c := model.ProductComponents{}
	residue := text

	if m := barcodePattern.FindStringSubmatch(text); m != nil {
		c.Barcode = m[1]
		residue = strings.Replace(residue, m[1], " ", 1)
	}

	if m := sizePattern.FindStringSubmatch(residue); m != nil {
		if size, err := strconv.ParseFloat(m[1], 64); err == nil && size > 0 {
			c.Size = size
			c.Unit = unitAliases[m[2]]
			residue = sizePattern.ReplaceAllString(residue, " ")
		}
	}

	if m := fatPattern.FindStringSubmatch(residue); m != nil {
		if fat, err := strconv.ParseFloat(m[1], 64); err == nil {
			c.FatContentPct = &fat
			residue = fatPattern.ReplaceAllString(residue, " ")
		}
	}

	if brand, ok := n.matchBrand(text); ok {
		c.Brand = titleCase(brand)
		residue = strings.Replace(residue, brand, " ", 1)
	}

	c.BaseProduct = matchBase(text, residue)
	c.Type = matchType(c.BaseProduct, text)
	c.Attributes = matchAttributes(text)

	return model.NormalizedProduct{
		NormalizedName: normalizedName(c),
		DisplayName:    displayName(c),
		Components:     c,
		Keywords:       keywords(c),
		Confidence:     confidence(c),
	}
}

// Clean lowercases raw, composes and strips stray combining marks, folds OCR
// look-alikes and collapses punctuation and whitespace. It is the text every
// table in this package is matched against.
func Clean(raw string) string {
	s := norm.NFC.String(raw)
	s = strings.ToLower(s)
	s = strings.Map(func(r rune) rune {
		switch {
		case unicode.Is(unicode.Mn, r):
			return -1
		case r == 'ё':
			return 'е'
		case r == 'ѝ':
			return 'и'
		}
		return r
	}, s)
	s = decimalComma.ReplaceAllString(s, "$1.$2")
	s = separators.ReplaceAllString(s, " ")
	s = foldLookalikes(s)
	return collapse(s)
}

func foldLookalikes(s string) string {
	fields := strings.Fields(s)
	for i, field := range fields {
		if !containsCyrillic(field) {
			continue
		}
		fields[i] = strings.Map(func(r rune) rune {
			if c, ok := latinLookalikes[r]; ok {
				return c
			}
			return r
		}, field)
	}
	return strings.Join(fields, " ")
}

func containsCyrillic(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Cyrillic, r) {
			return true
		}
	}
	return false
}

func collapse(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

func (n *Normalizer) matchBrand(text string) (string, bool) {
	for _, b := range n.brands {
		if b.pattern.MatchString(text) {
			return b.name, true
		}
	}
	return "", false
}

func matchBase(text, residue string) string {
	for _, r := range baseRules {
		if r.pattern.MatchString(text) {
			return r.base
		}
	}
	residue = collapse(strings.Trim(collapse(residue), ".-&"))
	if residue == "" {
		return fallbackBase
	}
	return residue
}

// Group returns the rule group that claimed the base product, or "" when the
// base came from the residue fallback.
func Group(baseProduct string) string {
	for _, r := range baseRules {
		if r.base == baseProduct {
			return r.group
		}
	}
	return ""
}

func matchType(base, text string) string {
	for _, t := range productTypes[base] {
		if strings.Contains(text, t) {
			return t
		}
	}
	return ""
}

func matchAttributes(text string) []string {
	var attrs []string
	for _, a := range attributeRules {
		if a.pattern.MatchString(text) {
			attrs = append(attrs, a.attribute)
		}
	}
	return attrs
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func sizeToken(c model.ProductComponents) string {
	if !c.HasSizeAndUnit() {
		return ""
	}
	return formatNumber(c.Size) + c.Unit
}

func fatToken(c model.ProductComponents) string {
	if c.FatContentPct == nil {
		return ""
	}
	return formatNumber(*c.FatContentPct) + "%"
}

func join(parts ...string) string {
	return collapse(strings.Join(parts, " "))
}

func normalizedName(c model.ProductComponents) string {
	parts := []string{c.BaseProduct, c.Type, c.Brand, fatToken(c)}
	parts = append(parts, c.Attributes...)
	parts = append(parts, sizeToken(c))
	return join(parts...)
}

func displayName(c model.ProductComponents) string {
	parts := []string{capitalize(c.BaseProduct), c.Type, c.Brand, fatToken(c)}
	parts = append(parts, c.Attributes...)
	parts = append(parts, sizeToken(c))
	return join(parts...)
}

func keywords(c model.ProductComponents) []string {
	set := make(map[string]struct{})
	add := func(words ...string) {
		for _, w := range words {
			w = strings.ToLower(strings.TrimSpace(w))
			if utf8.RuneCountInString(w) > 1 {
				set[w] = struct{}{}
			}
		}
	}

	add(c.BaseProduct)
	add(synonyms[c.BaseProduct]...)
	if c.Brand != "" {
		add(c.Brand, strings.ReplaceAll(c.Brand, " ", ""))
	}
	if c.Type != "" {
		add(c.Type)
		add(synonyms[c.Type]...)
	}
	add(sizeToken(c))
	add(c.Attributes...)
	add(c.Barcode)

	out := make([]string, 0, len(set))
	for w := range set {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}

func confidence(c model.ProductComponents) float64 {
	score := baseConfidence
	if c.Brand != "" {
		score += brandConfidence
	}
	if c.HasSizeAndUnit() {
		score += sizeConfidence
	}
	if c.Type != "" {
		score += typeConfidence
	}
	if c.FatContentPct != nil {
		score += fatConfidence
	}
	if c.Barcode != "" {
		score += barcodeConfidence
	}
	return math.Min(1.0, math.Round(score*100)/100)
}

// titleCase capitalizes every word. Casers carry state, so one is built per call.
func titleCase(s string) string {
	return cases.Title(language.Bulgarian).String(s)
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
