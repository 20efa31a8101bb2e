package translation

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var codeFence = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")

// llmSystemPrompt instructs chat models to behave like a batch translation API
func llmSystemPrompt(sourceLang, targetLang string) string {
	source := "the source language"
	if !isAutoSource(sourceLang) {
		source = LanguageName(sourceLang)
	}
	return fmt.Sprintf(`You translate help documentation from %s to %s.
The user sends a JSON array of strings. Reply with only a JSON array of the
same length where element i is the translation of input element i.
Keep product names, numbers, file names and placeholders unchanged.
Do not add explanations or markdown.`, source, LanguageName(targetLang))
}

// llmUserPrompt encodes texts as a JSON array
func llmUserPrompt(texts []string) (string, error) {
	data, err := json.Marshal(texts)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// parseLLMTranslations extracts the JSON array from a model reply
func parseLLMTranslations(backend, content string, expected int) ([]string, error) {
	content = strings.TrimSpace(content)
	if m := codeFence.FindStringSubmatch(content); len(m) > 1 {
		content = m[1]
	}

	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%s reply contains no JSON array: %s", backend, truncate(content, maxErrorBody))
	}

	var out []string
	if err := json.Unmarshal([]byte(content[start:end+1]), &out); err != nil {
		return nil, fmt.Errorf("failed to parse %s reply as JSON array: %w", backend, err)
	}
	if len(out) != expected {
		return nil, &CountMismatchError{Backend: backend, Expected: expected, Got: len(out)}
	}
	return out, nil
}
