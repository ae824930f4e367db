package subtitle

// complexScriptLanguages get tighter line limits because their scripts pack
// more information per character (or lack inter-word spacing entirely).
var complexScriptLanguages = map[string]bool{
	"th": true,
	"lo": true,
	"my": true,
	"km": true,
	"am": true,
	"ko": true,
	"ja": true,
	"zh": true,
	"ti": true,
	"ta": true,
	"te": true,
	"kn": true,
	"ml": true,
	"hi": true,
	"ne": true,
	"mr": true,
	"ar": true,
	"fa": true,
	"ur": true,
	"ka": true,
}

// noSpaceLanguages do not separate words with spaces.
var noSpaceLanguages = map[string]bool{
	"zh": true,
	"ja": true,
}

var clauseCommas = map[string]string{
	"zh": "，",
	"ja": "、",
	"ar": "،",
	"fa": "،",
	"ur": "،",
}

// clauseComma returns the clause-terminal punctuation mark for a language.
func clauseComma(lang string) string {
	if c, ok := clauseCommas[lang]; ok {
		return c
	}
	return ","
}

var conjunctionsByLanguage = map[string][]string{
	"en": {"and", "but", "or", "nor", "so", "yet", "because", "although",
		"though", "while", "whereas", "if", "unless", "until", "since",
		"when", "where", "that", "which", "who"},
	"es": {"y", "e", "o", "u", "pero", "sino", "porque", "aunque", "mientras",
		"si", "cuando", "donde", "que", "pues"},
	"fr": {"et", "ou", "mais", "donc", "car", "ni", "or", "parce", "quand",
		"lorsque", "puisque", "si", "que", "qui"},
	"de": {"und", "oder", "aber", "denn", "sondern", "weil", "obwohl",
		"während", "wenn", "als", "dass", "ob", "damit"},
	"it": {"e", "o", "ma", "però", "perché", "sebbene", "mentre", "se",
		"quando", "che", "poiché"},
	"pt": {"e", "ou", "mas", "porém", "porque", "embora", "enquanto", "se",
		"quando", "que", "pois"},
	"nl": {"en", "of", "maar", "want", "omdat", "hoewel", "terwijl", "als",
		"toen", "dat", "dus"},
	"pl": {"i", "oraz", "albo", "lub", "ale", "lecz", "bo", "ponieważ",
		"chociaż", "gdy", "jeśli", "że"},
	"tr": {"ve", "veya", "ama", "fakat", "çünkü", "ancak", "oysa", "eğer",
		"ki", "yani"},
	"uk": {"і", "й", "та", "або", "чи", "але", "проте", "бо", "тому",
		"хоча", "якщо", "коли", "що"},
	"ru": {"и", "или", "но", "а", "да", "потому", "хотя", "если", "когда",
		"что", "чтобы"},
	"zh": {"和", "或", "但是", "因为", "虽然", "而且", "所以", "如果"},
	"ja": {"そして", "しかし", "または", "なぜなら", "だから", "もし"},
	"ar": {"و", "أو", "لكن", "لأن", "بينما", "إذا", "حتى", "ثم"},
	"hi": {"और", "या", "लेकिन", "क्योंकि", "जबकि", "अगर", "तो", "कि"},
	"ko": {"그리고", "하지만", "또는", "왜냐하면", "그래서", "만약"},
}

// conjunctionSet returns the case-folded conjunction set for a language, or
// an empty set when the language has no table.
func conjunctionSet(lang string) map[string]bool {
	words, ok := conjunctionsByLanguage[lang]
	if !ok {
		return map[string]bool{}
	}
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}
