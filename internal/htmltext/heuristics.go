package htmltext

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	urlPattern   = regexp.MustCompile(`^(?i)(?:https?|ftp|mailto|file)://\S+$|^(?i)www\.\S+$`)
	emailPattern = regexp.MustCompile(`^[\w.+-]+@[\w-]+(?:\.[\w-]+)+$`)
	pathPattern  = regexp.MustCompile(`^(?:[A-Za-z]:\\|\\\\|/|\.{1,2}/)\S*$|^[\w.-]*[\\/][\w.\\/-]*\.[A-Za-z0-9]{1,4}$`)

	// A bare word with arguments in parentheses, like Note(s), is prose
	codePattern = regexp.MustCompile(`^[\w.]+\([^()]*\);$|^[\w.]+\(\)$|^\w+(?:\.\w+)+\([^()]*\)$|^[{}\[\]();=<>!&|]+$`)
)

// IsNonText reports whether s carries no natural language worth sending to
// a translation backend: numbers, punctuation, URLs, e-mail addresses,
// file paths and bare code fragments.
func IsNonText(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return true
	}

	hasLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			hasLetter = true
			break
		}
	}
	if !hasLetter {
		return true
	}

	if strings.ContainsAny(s, " \t\n") {
		return false
	}

	return urlPattern.MatchString(s) ||
		emailPattern.MatchString(s) ||
		pathPattern.MatchString(s) ||
		codePattern.MatchString(s)
}
