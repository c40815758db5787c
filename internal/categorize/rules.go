package categorize

import "strings"

// KeywordRule lists the keywords that place a product in a category.
type KeywordRule struct {
	CategoryID string
	Keywords   []string
}

// keywordRules is order-significant: the first category with a hit wins, and
// within a category the first keyword in the list is reported. Specific
// non-food groups come first so that e.g. "паста за зъби" is not read as pasta.
var keywordRules = []KeywordRule{
	{CategoryID: "personal_care", Keywords: []string{
		"паста за зъби", "четка за зъби", "шампоан", "балсам за коса", "душ гел", "сапун",
		"дезодорант", "самобръсначк", "пяна за бръснене", "крем за ръце", "мокри кърпи",
		"дамски превръзки", "тампони", "вода за уста",
	}},
	{CategoryID: "household", Keywords: []string{
		"перилен препарат", "омекотител", "препарат за съдове", "почистващ препарат",
		"тоалетна хартия", "кухненска ролка", "белина", "торбички", "салфетки",
		"гъби за съдове", "таблетки за съдомиялна", "фолио", "батерии",
	}},
	{CategoryID: "baby", Keywords: []string{
		"пелени", "бебешка храна", "бебешки", "биберон", "адаптирано мляко",
	}},
	{CategoryID: "pets", Keywords: []string{
		"храна за животни", "котешка", "кучешка", "за котки", "за кучета", "котешка тоалетна",
	}},
	{CategoryID: "condiments", Keywords: []string{
		"доматена паста", "кетчуп", "майонеза", "горчица", "лютеница", "оцет", "черен пипер",
		"подправка", "морска сол", "готварска сол", "соев сос", "чубрица",
	}},
	{CategoryID: "alcohol", Keywords: []string{
		"бира", "вино", "ракия", "водка", "уиски", "джин", "мастика",
	}},
	{CategoryID: "beverages", Keywords: []string{
		"вода", "сок", "кока-кола", "coca-cola", "пепси", "газирана напитка", "кафе", "чай", "енергийна напитка",
		"лимонада", "нектар", "айрян",
	}},
	// Cooking oils are "масло" in Bulgarian and must not reach the butter keyword.
	{CategoryID: "pantry", Keywords: []string{
		"маслиново масло", "слънчогледово масло", "рапично масло", "олио", "зехтин",
	}},
	{CategoryID: "dairy", Keywords: []string{
		"мляко", "сирене", "кашкавал", "масло", "извара", "сметана", "айран", "йогурт",
		"крема сирене", "моцарела", "пармезан",
	}},
	{CategoryID: "meat", Keywords: []string{
		"кайма", "пилешко", "свинско", "телешко", "агнешко", "наденица", "кренвирши",
		"луканка", "салам", "шунка", "бекон", "кебапче", "кюфте", "суджук",
	}},
	{CategoryID: "fish", Keywords: []string{
		"риба тон", "скумрия", "сьомга", "риба", "скариди", "пъстърва", "хайвер",
	}},
	{CategoryID: "bakery", Keywords: []string{
		"хляб", "питка", "кифла", "баничка", "кроасан", "франзела", "козунак", "багета",
	}},
	{CategoryID: "frozen", Keywords: []string{
		"сладолед", "замразени зеленчуци", "замразен", "пица замразена",
	}},
	{CategoryID: "snacks", Keywords: []string{
		"шоколад", "бисквити", "вафла", "чипс", "бонбони", "солети", "ядки", "фъстъци",
		"крекери", "дъвки",
	}},
	{CategoryID: "pantry", Keywords: []string{
		"ориз", "брашно", "захар", "макарони", "боб", "леща", "яйца", "мед",
		"конфитюр", "консерва",
	}},
	{CategoryID: "fruits_vegetables", Keywords: []string{
		"домати", "краставици", "картофи", "лук", "чесън", "моркови", "чушки", "зеле",
		"марули", "ябълки", "банани", "портокали", "лимони", "мандарини", "грозде", "круши",
		"ягоди", "праскови", "дини", "пъпеш", "тиквички", "спанак",
	}},
}

// Rules is the keyword stage of the waterfall.
type Rules struct {
	rules []KeywordRule
}

// NewRules builds a matcher over rules in the given order. Nil uses the
// built-in rule list.
func NewRules(rules []KeywordRule) *Rules {
	if rules == nil {
		rules = keywordRules
	}
	return &Rules{rules: rules}
}

// Match returns the category of the first rule whose keyword list hits any of
// names. Rule order decides, not the order of names.
func (r *Rules) Match(names ...string) (string, string, bool) {
	lowered := make([]string, 0, len(names))
	for _, name := range names {
		if name = strings.ToLower(name); name != "" {
			lowered = append(lowered, name)
		}
	}
	for _, rule := range r.rules {
		for _, keyword := range rule.Keywords {
			for _, name := range lowered {
				if strings.Contains(name, keyword) {
					return rule.CategoryID, keyword, true
				}
			}
		}
	}
	return "", "", false
}
