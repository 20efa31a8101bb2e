package translation

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"codeberg.org/snonux/chmtrans/internal/apperr"
)

// NormalizeLanguage validates a BCP-47 code and returns its canonical form,
// e.g. "zh-cn" becomes "zh-CN".
func NormalizeLanguage(code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", apperr.New(apperr.CodeConfig, "language code is empty")
	}
	tag, err := language.Parse(code)
	if err != nil {
		return "", apperr.Wrap(err, apperr.CodeConfig, "invalid language code "+code)
	}
	return tag.String(), nil
}

// isAutoSource reports whether the source language should be detected by
// the backend
func isAutoSource(code string) bool {
	return code == "" || strings.EqualFold(code, "auto")
}

func baseLanguage(code string) string {
	base, _, _ := strings.Cut(code, "-")
	return strings.ToLower(base)
}

var deeplTargets = map[string]string{
	"en":      "EN-US",
	"en-us":   "EN-US",
	"en-gb":   "EN-GB",
	"pt":      "PT-PT",
	"pt-pt":   "PT-PT",
	"pt-br":   "PT-BR",
	"zh":      "ZH-HANS",
	"zh-cn":   "ZH-HANS",
	"zh-hans": "ZH-HANS",
	"zh-sg":   "ZH-HANS",
	"zh-tw":   "ZH-HANT",
	"zh-hk":   "ZH-HANT",
	"zh-hant": "ZH-HANT",
}

// deeplTarget maps a BCP-47 code to a DeepL target_lang value
func deeplTarget(code string) string {
	if v, ok := deeplTargets[strings.ToLower(code)]; ok {
		return v
	}
	return strings.ToUpper(baseLanguage(code))
}

// deeplSource maps a BCP-47 code to a DeepL source_lang value, which never
// carries a region
func deeplSource(code string) string {
	return strings.ToUpper(baseLanguage(code))
}

var microsoftLanguages = map[string]string{
	"zh":      "zh-Hans",
	"zh-cn":   "zh-Hans",
	"zh-sg":   "zh-Hans",
	"zh-hans": "zh-Hans",
	"zh-tw":   "zh-Hant",
	"zh-hk":   "zh-Hant",
	"zh-hant": "zh-Hant",
	"pt-br":   "pt",
	"pt-pt":   "pt-pt",
	"fr-ca":   "fr-ca",
	"sr-latn": "sr-Latn",
	"sr-cyrl": "sr-Cyrl",
}

// microsoftLanguage maps a BCP-47 code to a Translator v3 language code
func microsoftLanguage(code string) string {
	if v, ok := microsoftLanguages[strings.ToLower(code)]; ok {
		return v
	}
	return baseLanguage(code)
}

// googleLanguage maps a BCP-47 code to a Cloud Translation v2 code. Only
// Chinese keeps its region.
func googleLanguage(code string) string {
	switch strings.ToLower(code) {
	case "zh", "zh-cn", "zh-hans", "zh-sg":
		return "zh-CN"
	case "zh-tw", "zh-hk", "zh-hant":
		return "zh-TW"
	}
	return baseLanguage(code)
}

// LanguageName returns an English display name for prompts
func LanguageName(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := englishNames.Name(tag); name != "" {
		return name
	}
	return tag.String()
}

var englishNames = display.English.Tags()
