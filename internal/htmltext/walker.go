package htmltext

import (
	"bytes"
	"errors"
	"io"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/html"

	"codeberg.org/snonux/chmtrans/internal/apperr"
)

// Segment is one translatable text run of a document. Start and End are the
// byte offsets of the run in the document it was extracted from.
type Segment struct {
	DocumentID string
	Index      int
	Start      int
	End        int
	Original   string
	Translated string
	Done       bool

	// Attribute names the attribute whose value the segment spans, empty
	// for element text
	Attribute string
	unquoted  bool
}

// SetTranslation records the translated text
func (s *Segment) SetTranslation(text string) {
	s.Translated = text
	s.Done = true
}

// DefaultSkipTags are elements whose contents are never extracted
var DefaultSkipTags = []string{"script", "style", "noscript", "pre", "code", "textarea"}

// Options control what Extract considers translatable
type Options struct {
	SkipTags    []string
	SkipNonText bool

	// Attributes lists attribute values to translate as tag@attr, e.g.
	// img@alt. The tag * matches every element. Attributes are not
	// translated unless listed.
	Attributes []string
}

// DefaultOptions returns the options used by the pipeline
func DefaultOptions() Options {
	return Options{
		SkipTags:    DefaultSkipTags,
		SkipNonText: true,
	}
}

// Extract returns the translatable text runs of doc in document order
func Extract(docID string, doc []byte, opts Options) ([]*Segment, error) {
	skip := make(map[string]bool, len(opts.SkipTags))
	for _, tag := range opts.SkipTags {
		skip[strings.ToLower(tag)] = true
	}
	rules, err := parseAttributeRules(opts.Attributes)
	if err != nil {
		return nil, err
	}

	z := html.NewTokenizer(bytes.NewReader(doc))
	open := make(map[string]int)
	skipping := 0
	offset := 0

	var segments []*Segment
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if errors.Is(z.Err(), io.EOF) {
				break
			}
			return nil, apperr.Wrap(z.Err(), apperr.CodeValidation, "failed to tokenize "+docID)
		}

		// Raw is the unmodified token text, so the running sum of its
		// length is the byte offset of the next token.
		start := offset
		offset += len(z.Raw())
		if offset > len(doc) {
			return nil, apperr.Newf(apperr.CodeValidation, "%s: token offsets exceed document length", docID)
		}

		switch tt {
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			tag := string(name)
			if hasAttr && skipping == 0 && len(rules) > 0 {
				for _, seg := range attributeSegments(doc, start, offset, tag, rules, opts) {
					seg.DocumentID = docID
					seg.Index = len(segments)
					segments = append(segments, seg)
				}
			}
			if tt == html.StartTagToken && skip[tag] {
				open[tag]++
				skipping++
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if tag := string(name); skip[tag] && open[tag] > 0 {
				open[tag]--
				skipping--
			}
		case html.TextToken:
			if skipping > 0 {
				continue
			}
			if seg := textSegment(doc, start, offset, opts); seg != nil {
				seg.DocumentID = docID
				seg.Index = len(segments)
				segments = append(segments, seg)
			}
		}
	}

	return segments, nil
}

// textSegment trims the surrounding whitespace of the raw run doc[start:end]
// and returns nil when nothing translatable is left.
func textSegment(doc []byte, start, end int, opts Options) *Segment {
	raw := doc[start:end]
	lead := len(raw) - len(bytes.TrimLeftFunc(raw, isBlank))
	core := bytes.TrimRightFunc(raw[lead:], isBlank)
	if len(core) == 0 {
		return nil
	}

	original := html.UnescapeString(string(core))
	if strings.TrimFunc(original, isBlank) == "" {
		return nil
	}
	if opts.SkipNonText && IsNonText(original) {
		return nil
	}

	return &Segment{
		Start:    start + lead,
		End:      start + lead + len(core),
		Original: original,
	}
}

// isBlank also treats a byte order mark as whitespace
func isBlank(r rune) bool {
	return unicode.IsSpace(r) || r == '\uFEFF'
}

// Reinsert writes the translation of every Done segment into its span and
// copies all other bytes unchanged.
func Reinsert(doc []byte, segments []*Segment) ([]byte, error) {
	done := make([]*Segment, 0, len(segments))
	for _, s := range segments {
		if s != nil && s.Done {
			done = append(done, s)
		}
	}
	if len(done) == 0 {
		out := make([]byte, len(doc))
		copy(out, doc)
		return out, nil
	}

	sort.SliceStable(done, func(i, j int) bool { return done[i].Start < done[j].Start })

	var buf bytes.Buffer
	buf.Grow(len(doc))
	prev := 0
	for _, s := range done {
		if s.Start < 0 || s.End < s.Start || s.End > len(doc) {
			return nil, apperr.Newf(apperr.CodeValidation, "%s: segment %d span [%d,%d) out of range", s.DocumentID, s.Index, s.Start, s.End)
		}
		if s.Start < prev {
			return nil, apperr.Newf(apperr.CodeValidation, "%s: segment %d overlaps previous segment", s.DocumentID, s.Index)
		}
		if !utf8.ValidString(s.Translated) {
			return nil, apperr.Newf(apperr.CodeValidation, "%s: segment %d translation is not valid UTF-8", s.DocumentID, s.Index)
		}

		buf.Write(doc[prev:s.Start])
		switch {
		case s.Translated == s.Original:
			buf.Write(doc[s.Start:s.End])
		case s.Attribute == "":
			buf.WriteString(EscapeText(s.Translated))
		case s.unquoted:
			buf.WriteString(`"` + html.EscapeString(s.Translated) + `"`)
		default:
			buf.WriteString(html.EscapeString(s.Translated))
		}
		prev = s.End
	}
	buf.Write(doc[prev:])

	return buf.Bytes(), nil
}

var textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// EscapeText escapes s for use as HTML element text
func EscapeText(s string) string {
	return textEscaper.Replace(s)
}
