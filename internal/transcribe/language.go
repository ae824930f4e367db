package transcribe

import (
	"strings"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/language"

	"subgen/internal/subtitle"
)

// NormalizeDetectedLanguage maps a detected two-letter code to the
// region-qualified form the delivery side expects.
func NormalizeDetectedLanguage(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	switch code {
	case "EN":
		return "EN-US"
	case "PT":
		return "PT-PT"
	}
	return code
}

// DetectLanguage guesses the language of a transcript by majority vote
// over its segments. Fallback for results that carry no detected
// language.
func DetectLanguage(segments []subtitle.Segment) language.Tag {
	if len(segments) == 0 {
		return language.Und
	}

	langMap := make(map[string]int)
	for _, seg := range segments {
		lang := whatlanggo.DetectLang(seg.Text).Iso6391()
		langMap[lang]++
	}

	var topLang string
	var topCount int
	for lang, count := range langMap {
		if count > topCount {
			topLang = lang
			topCount = count
		}
	}

	return language.All.Make(topLang)
}
