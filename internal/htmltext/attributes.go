package htmltext

import (
	"strings"

	"golang.org/x/net/html"

	"codeberg.org/snonux/chmtrans/internal/apperr"
)

// SitemapNames selects the entry names of .hhc and .hhk sitemap files
const SitemapNames = "param@value"

// attributeFilters restrict attributes whose meaning depends on a sibling
// name attribute
var attributeFilters = map[string][]string{
	"meta@content": {"description", "keywords"},
	"param@value":  {"name"},
}

type attributeRule struct {
	tag  string
	attr string
}

func (r attributeRule) matches(tag, attr string) bool {
	return (r.tag == "*" || r.tag == tag) && r.attr == attr
}

func parseAttributeRules(specs []string) ([]attributeRule, error) {
	var rules []attributeRule
	for _, spec := range specs {
		spec = strings.ToLower(strings.TrimSpace(spec))
		if spec == "" {
			continue
		}
		tag, attr, ok := strings.Cut(spec, "@")
		if !ok || tag == "" || attr == "" || attr == "*" || strings.ContainsAny(attr, "@ ") {
			return nil, apperr.Newf(apperr.CodeConfig, "invalid attribute %q (expected tag@attr, e.g. img@alt)", spec)
		}
		rules = append(rules, attributeRule{tag: tag, attr: attr})
	}
	return rules, nil
}

// ValidateAttributes checks tag@attr specs for Options.Attributes
func ValidateAttributes(specs []string) error {
	_, err := parseAttributeRules(specs)
	return err
}

// rawAttribute is an attribute of a raw start tag. Offsets are relative to
// the tag and valueStart is -1 when the attribute has no value.
type rawAttribute struct {
	name       string
	valueStart int
	valueEnd   int
	unquoted   bool
}

func (a rawAttribute) value(tag []byte) string {
	if a.valueStart < 0 {
		return ""
	}
	return html.UnescapeString(string(tag[a.valueStart:a.valueEnd]))
}

func isTagSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\f' || c == '\r'
}

// scanAttributes locates the attributes of a raw start tag the way the
// html tokenizer splits them
func scanAttributes(tag []byte) []rawAttribute {
	n := len(tag)
	i := 1
	for i < n && !isTagSpace(tag[i]) && tag[i] != '/' && tag[i] != '>' {
		i++
	}

	var attrs []rawAttribute
	for i < n {
		for i < n && (isTagSpace(tag[i]) || tag[i] == '/') {
			i++
		}
		if i >= n || tag[i] == '>' {
			break
		}

		// A leading = belongs to the name
		start := i
		i++
		for i < n && !isTagSpace(tag[i]) && tag[i] != '/' && tag[i] != '>' && tag[i] != '=' {
			i++
		}
		a := rawAttribute{name: strings.ToLower(string(tag[start:i])), valueStart: -1, valueEnd: -1}

		j := i
		for j < n && isTagSpace(tag[j]) {
			j++
		}
		if j < n && tag[j] == '=' {
			j++
			for j < n && isTagSpace(tag[j]) {
				j++
			}
			if j < n && (tag[j] == '"' || tag[j] == '\'') {
				quote := tag[j]
				j++
				a.valueStart = j
				for j < n && tag[j] != quote {
					j++
				}
				a.valueEnd = j
				if j < n {
					j++
				}
			} else {
				a.valueStart = j
				for j < n && !isTagSpace(tag[j]) && tag[j] != '>' {
					j++
				}
				a.valueEnd = j
				a.unquoted = true
			}
			i = j
		}
		attrs = append(attrs, a)
	}
	return attrs
}

// attributeSegments returns the translatable attribute values of the start
// tag doc[start:end]
func attributeSegments(doc []byte, start, end int, tag string, rules []attributeRule, opts Options) []*Segment {
	raw := doc[start:end]
	attrs := scanAttributes(raw)

	var segments []*Segment
	seen := make(map[string]bool, len(attrs))
	for _, a := range attrs {
		// Only the first of duplicate attributes counts
		if seen[a.name] {
			continue
		}
		seen[a.name] = true
		if a.valueStart < 0 {
			continue
		}

		if !matchesAny(rules, tag, a.name) || !passesFilter(tag, a.name, attrs, raw) {
			continue
		}

		seg := textSegment(doc, start+a.valueStart, start+a.valueEnd, opts)
		if seg == nil {
			continue
		}
		seg.Attribute = a.name
		seg.unquoted = a.unquoted
		segments = append(segments, seg)
	}
	return segments
}

func matchesAny(rules []attributeRule, tag, attr string) bool {
	for _, r := range rules {
		if r.matches(tag, attr) {
			return true
		}
	}
	return false
}

func passesFilter(tag, attr string, attrs []rawAttribute, raw []byte) bool {
	allowed, ok := attributeFilters[tag+"@"+attr]
	if !ok {
		return true
	}
	for _, a := range attrs {
		if a.name != "name" {
			continue
		}
		name := strings.ToLower(strings.TrimSpace(a.value(raw)))
		for _, v := range allowed {
			if name == v {
				return true
			}
		}
		return false
	}
	return false
}
