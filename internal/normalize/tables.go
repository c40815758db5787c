package normalize

import (
	"regexp"
	"strings"
)

// Canonical units.
const (
	UnitLiter      = "л"
	UnitMilliliter = "мл"
	UnitKilogram   = "кг"
	UnitGram       = "г"
	UnitPiece      = "бр"
)

// fallbackBase is used when nothing recognisable is left of a name.
const fallbackBase = "продукт"

// unitAliases maps every accepted unit spelling to its canonical unit.
var unitAliases = map[string]string{
	"л": UnitLiter, "l": UnitLiter, "lt": UnitLiter, "ltr": UnitLiter, "литър": UnitLiter, "литра": UnitLiter,
	"мл": UnitMilliliter, "ml": UnitMilliliter,
	"кг": UnitKilogram, "kg": UnitKilogram, "килограм": UnitKilogram, "килограма": UnitKilogram,
	"г": UnitGram, "гр": UnitGram, "g": UnitGram, "gr": UnitGram, "грам": UnitGram, "грама": UnitGram,
	"бр": UnitPiece, "броя": UnitPiece, "брой": UnitPiece, "pcs": UnitPiece, "pc": UnitPiece,
}

// unitPattern lists the unit spellings longest first, since Go's alternation
// is leftmost-first.
const unitPattern = `килограма|килограм|грама|литра|литър|броя|брой|грам|ltr|pcs|мл|ml|кг|kg|гр|gr|бр|pc|lt|л|l|г|g`

var (
	sizePattern    = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(` + unitPattern + `)(?:[^\p{L}]|$)`)
	fatPattern     = regexp.MustCompile(`(?:^|[^\d.])(\d{1,2}(?:\.\d{1,2})?)\s*%`)
	barcodePattern = regexp.MustCompile(`(?:^|\D)(\d{8,14})(?:\D|$)`)
	decimalComma   = regexp.MustCompile(`(\d),(\d)`)
	separators     = regexp.MustCompile(`[^\p{L}\p{N}%.&\-\s]+`)
	whitespace     = regexp.MustCompile(`\s+`)
)

// brandGroup is a per-domain brand list. Groups and the brands inside them
// are tested in order; the first hit wins.
type brandGroup struct {
	domain string
	brands []string
}

var brandGroups = []brandGroup{
	{domain: "dairy", brands: []string{
		"верея", "олимпус", "olympus", "маджаров", "боженци", "елена", "данон", "danone",
		"активиа", "activia", "президент", "president", "мегле", "meggle", "саяна",
		"домлекс", "lb bulgaricum", "бор чвор",
	}},
	{domain: "meat", brands: []string{
		"тандем", "леки", "бони", "орехите", "перелик", "градус", "лудогорско", "карнобат",
	}},
	{domain: "beverages", brands: []string{
		"кока-кола", "coca-cola", "пепси", "pepsi", "фанта", "fanta", "спрайт", "sprite",
		"девин", "банкя", "горна баня", "хисар", "велинград", "каменица", "загорка",
		"шуменско", "пиринско", "якобс", "jacobs", "нескафе", "nescafe", "lavazza", "лаваца",
	}},
	{domain: "snacks", brands: []string{
		"милка", "milka", "своге", "победа", "лейс", "kit kat", "кит кат", "орео", "oreo",
		"нестле", "nestle", "тоблерон", "toblerone", "харибо", "haribo",
	}},
	{domain: "personal_care", brands: []string{
		"нивеа", "nivea", "колгейт", "colgate", "дав", "dove", "пантин", "pantene",
		"head & shoulders", "жилет", "gillette", "палмолив", "palmolive",
	}},
	{domain: "general", brands: []string{
		"k-classic", "clever", "billa", "била", "pilos", "пилос", "fine life", "ariel", "ариел",
		"persil", "персил", "fairy", "феъри",
	}},
}

// baseRule maps a family of spellings to a canonical base product.
type baseRule struct {
	pattern *regexp.Regexp
	group   string
	base    string
}

// wordStart anchors a fragment at the start of a word. Go's \b only knows
// ASCII word characters, so Cyrillic needs an explicit class.
const wordStart = `(?:^|[^\p{L}])`

// wordEnd closes a fragment that must not be a prefix of a longer word.
const wordEnd = `(?:[^\p{L}]|$)`

func rule(group, base string, fragments ...string) baseRule {
	return baseRule{
		group:   group,
		base:    base,
		pattern: regexp.MustCompile(wordStart + `(?:` + strings.Join(fragments, "|") + `)`),
	}
}

// baseRules is order-significant. Specific groups (condiments, household,
// personal care) come before broad food groups, and fruits/vegetables come
// last, so "доматена паста" resolves before "домат" can claim it.
var baseRules = []baseRule{
	rule("condiments", "доматена паста", `доматен\p{L}* паст`, `доматен\p{L}* пюре`),
	rule("condiments", "кетчуп", `кетчуп`, `ketchup`),
	rule("condiments", "майонеза", `майонез`),
	rule("condiments", "горчица", `горчиц`),
	rule("condiments", "лютеница", `лютениц`),
	rule("condiments", "оцет", `оцет`),
	rule("condiments", "черен пипер", `черен пипер`),
	rule("condiments", "сол", `сол`+wordEnd, `морска сол`),
	rule("condiments", "подправка", `подправк`),
	rule("household", "перилен препарат", `перилен`, `прах за пране`, `гел за пране`),
	rule("household", "омекотител", `омекотител`),
	rule("household", "препарат за съдове", `препарат за съдове`, `за съдове`),
	rule("household", "тоалетна хартия", `тоалетна хартия`),
	rule("household", "кухненска ролка", `кухненск\p{L}* рол`),
	rule("household", "белина", `белина`),
	rule("household", "торбички", `торб`),
	rule("household", "почистващ препарат", `почиств`, `препарат`),
	rule("personal_care", "паста за зъби", `паста за зъби`),
	rule("personal_care", "четка за зъби", `четка за зъби`),
	rule("personal_care", "шампоан", `шампоан`),
	rule("personal_care", "душ гел", `душ гел`),
	rule("personal_care", "сапун", `сапун`),
	rule("personal_care", "дезодорант", `дезодорант`),
	rule("personal_care", "самобръсначка", `самобръсначк`),
	rule("baby", "пелени", `пелени`, `памперс`),
	rule("baby", "адаптирано мляко", `адаптиран\p{L}* мляко`),
	rule("baby", "бебешка храна", `бебешк\p{L}* храна`, `пюре за бебета`),
	rule("pets", "храна за животни", `храна за (?:котки|кучета)`, `котешка храна`, `кучешка храна`),
	rule("alcohol", "бира", `бира`),
	rule("alcohol", "вино", `вино`),
	rule("alcohol", "ракия", `ракия`),
	rule("alcohol", "водка", `водка`),
	rule("alcohol", "уиски", `уиски`),
	rule("beverages", "сок", `сок`+wordEnd, `нектар`),
	rule("beverages", "вода", `вода`, `минерална`),
	rule("beverages", "кола", `кола`+wordEnd),
	rule("beverages", "газирана напитка", `газиран\p{L}* напитк`, `лимонада`),
	rule("beverages", "кафе", `кафе`),
	rule("beverages", "чай", `чай`),
	rule("pantry", "олио", `олио`, `зехтин`, `(?:маслинов|слънчогледов|рапичн)\p{L}* масл`),
	rule("dairy", "мляко", `мляко`, `прясно мл`),
	rule("dairy", "сирене", `сирене`),
	rule("dairy", "кашкавал", `кашкавал`),
	rule("dairy", "масло", `масло`),
	rule("dairy", "извара", `извара`),
	rule("dairy", "сметана", `сметана`),
	rule("dairy", "айран", `айран`),
	rule("dairy", "йогурт", `йогурт`),
	rule("meat", "кайма", `кайма`),
	rule("meat", "пилешко", `пилешк`, `пиле`+wordEnd),
	rule("meat", "свинско", `свинск`),
	rule("meat", "телешко", `телешк`),
	rule("meat", "наденица", `наденица`),
	rule("meat", "кренвирши", `кренвирш`),
	rule("meat", "луканка", `луканк`),
	rule("meat", "салам", `салам`),
	rule("meat", "шунка", `шунка`),
	rule("meat", "бекон", `бекон`),
	rule("fish", "риба тон", `риба тон`),
	rule("fish", "скумрия", `скумрия`),
	rule("fish", "сьомга", `сьомга`),
	rule("fish", "риба", `риба`),
	rule("bakery", "хляб", `хляб`),
	rule("bakery", "питка", `питка`),
	rule("bakery", "кифла", `кифл`),
	rule("bakery", "баничка", `баница`, `баничк`),
	rule("bakery", "кроасан", `кроасан`),
	rule("bakery", "франзела", `франзела`),
	rule("snacks", "шоколад", `шоколад`),
	rule("snacks", "бисквити", `бисквит`),
	rule("snacks", "вафла", `вафл`),
	rule("snacks", "чипс", `чипс`),
	rule("snacks", "бонбони", `бонбон`),
	rule("frozen", "сладолед", `сладолед`),
	rule("frozen", "замразени зеленчуци", `замразен\p{L}* зеленчуц`),
	rule("pantry", "ориз", `ориз`),
	rule("pantry", "брашно", `брашно`),
	rule("pantry", "захар", `захар`+wordEnd),
	rule("pantry", "макарони", `макарон`, `спагети`, `паста`+wordEnd),
	rule("pantry", "боб", `боб`+wordEnd),
	rule("pantry", "леща", `леща`),
	rule("pantry", "яйца", `яйца`),
	rule("pantry", "мед", `мед`+wordEnd),
	rule("fruits_vegetables", "домати", `домат`),
	rule("fruits_vegetables", "краставици", `краставиц`),
	rule("fruits_vegetables", "картофи", `картоф`),
	rule("fruits_vegetables", "лук", `лук`+wordEnd),
	rule("fruits_vegetables", "чесън", `чесън`),
	rule("fruits_vegetables", "моркови", `морков`),
	rule("fruits_vegetables", "чушки", `чушк`),
	rule("fruits_vegetables", "зеле", `зеле`+wordEnd),
	rule("fruits_vegetables", "марули", `марул`),
	rule("fruits_vegetables", "ябълки", `ябълк`),
	rule("fruits_vegetables", "банани", `банан`),
	rule("fruits_vegetables", "портокали", `портокал`),
	rule("fruits_vegetables", "лимони", `лимон`),
	rule("fruits_vegetables", "мандарини", `мандарин`),
	rule("fruits_vegetables", "грозде", `грозде`),
	rule("fruits_vegetables", "круши", `круш`),
	rule("fruits_vegetables", "ягоди", `ягод`),
}

// productTypes lists, per base product, the type qualifiers that may appear
// in a name. The first contained qualifier wins.
var productTypes = map[string][]string{
	"мляко":    {"прясно", "кисело", "безлактозно", "овесено", "соево", "бадемово", "козе", "краве"},
	"сирене":   {"краве", "овче", "козе", "бяло", "топено"},
	"кашкавал": {"краве", "овчи", "козе"},
	"масло":    {"краве", "несолено", "солено"},
	"хляб":     {"бял", "пълнозърнест", "ръжен", "типов", "добруджа"},
	"вода":     {"минерална", "изворна", "газирана"},
	"сок":      {"портокал", "ябълка", "праскова", "мултиплод"},
	"кафе":     {"мляно", "разтворимо", "на зърна", "капсули"},
	"чай":      {"черен", "зелен", "билков", "плодов"},
	"олио":     {"слънчогледово", "маслиново", "рапично"},
	"кайма":    {"смесена", "свинска", "телешка", "пилешка"},
	"пилешко":  {"филе", "бутчета", "крилца", "гърди", "цяло"},
	"яйца":     {"размер m", "размер l", "свободно отглеждане"},
	"бира":     {"светла", "тъмна", "нефилтрирана"},
	"вино":     {"червено", "бяло", "розе"},
	"шоколад":  {"млечен", "черен", "бял"},
}

// attributeRule recognises a free-form attribute; several may match.
type attributeRule struct {
	pattern   *regexp.Regexp
	attribute string
}

func attribute(name string, fragments ...string) attributeRule {
	return attributeRule{
		attribute: name,
		pattern:   regexp.MustCompile(wordStart + `(?:` + strings.Join(fragments, "|") + `)`),
	}
}

var attributeRules = []attributeRule{
	attribute("био", `био`+wordEnd, `bio`+wordEnd, `organic`, `органичн`),
	attribute("веган", `веган`, `vegan`),
	attribute("без глутен", `без глутен`, `gluten free`),
	attribute("без лактоза", `без лактоза`, `lactose free`),
	attribute("без захар", `без захар`, `sugar free`, `zero`+wordEnd),
	attribute("лайт", `лайт`, `light`),
	attribute("домашен", `домашн`),
	attribute("замразен", `замразен`),
	attribute("промо", `промо`, `промоция`),
}

// synonyms are added to a product's keywords to widen catalog matching.
var synonyms = map[string][]string{
	"мляко":          {"milk"},
	"кисело":         {"йогурт"},
	"сирене":         {"feta", "бяло сирене"},
	"кашкавал":       {"cheese"},
	"масло":          {"butter"},
	"хляб":           {"bread"},
	"вода":           {"water"},
	"сок":            {"juice", "нектар"},
	"кафе":           {"coffee"},
	"бира":           {"beer"},
	"вино":           {"wine"},
	"домати":         {"домат"},
	"доматена паста": {"доматено пюре"},
	"картофи":        {"картоф"},
	"яйца":           {"eggs"},
	"пилешко":        {"пиле"},
	"кайма":          {"мляно месо"},
	"олио":           {"oil"},
	"захар":          {"sugar"},
	"шоколад":        {"chocolate"},
}

// latinLookalikes folds Latin letters that OCR confuses with Cyrillic ones.
// Only applied to tokens that already contain Cyrillic.
var latinLookalikes = map[rune]rune{
	'a': 'а', 'e': 'е', 'o': 'о', 'p': 'р', 'c': 'с', 'x': 'х', 'y': 'у',
	'k': 'к', 'm': 'м', 't': 'т', 'h': 'н', 'b': 'в',
}
