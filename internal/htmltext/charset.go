package htmltext

import (
	"regexp"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"

	"codeberg.org/snonux/chmtrans/internal/apperr"
)

// Charset describes the encoding a document was read in
type Charset struct {
	Name     string
	Encoding encoding.Encoding
	Certain  bool
}

// IsUTF8 reports whether no transcoding is needed
func (c Charset) IsUTF8() bool {
	return c.Name == "utf-8" || c.Encoding == nil || c.Encoding == encoding.Nop
}

// DecodeDocument detects the charset of doc (BOM, meta declaration, then
// content sniffing) and returns its UTF-8 form.
func DecodeDocument(doc []byte) ([]byte, Charset, error) {
	enc, name, certain := charset.DetermineEncoding(doc, "text/html")
	cs := Charset{Name: name, Encoding: enc, Certain: certain}

	if cs.IsUTF8() {
		if !utf8.Valid(doc) {
			return nil, cs, apperr.New(apperr.CodeValidation, "document declares UTF-8 but contains invalid byte sequences")
		}
		return doc, cs, nil
	}

	decoded, err := enc.NewDecoder().Bytes(doc)
	if err != nil {
		return nil, cs, apperr.Wrap(err, apperr.CodeValidation, "failed to decode document from "+name)
	}
	if !utf8.Valid(decoded) {
		return nil, cs, apperr.New(apperr.CodeValidation, "decoded document is not valid UTF-8")
	}
	return decoded, cs, nil
}

// EncodeDocument converts a UTF-8 document back to cs. When some rune cannot
// be represented in cs the document is returned as UTF-8 with its meta
// charset declaration rewritten, and transcoded is false.
func EncodeDocument(doc []byte, cs Charset) (out []byte, transcoded bool) {
	if cs.IsUTF8() {
		return doc, true
	}

	// The encodings from html/charset write unsupported runes as numeric
	// character references, so encode through the strict htmlindex one.
	enc, err := htmlindex.Get(cs.Name)
	if err != nil {
		return RetagCharset(doc, "utf-8"), false
	}
	encoded, err := enc.NewEncoder().Bytes(doc)
	if err == nil {
		return encoded, true
	}

	return RetagCharset(doc, "utf-8"), false
}

var metaCharset = regexp.MustCompile(`(?i)(<meta[^>]*charset\s*=\s*["']?)([\w.:-]+)`)

// RetagCharset rewrites the charset named by the first meta declaration
func RetagCharset(doc []byte, name string) []byte {
	loc := metaCharset.FindSubmatchIndex(doc)
	if loc == nil {
		return doc
	}

	out := make([]byte, 0, len(doc)+len(name))
	out = append(out, doc[:loc[4]]...)
	out = append(out, name...)
	out = append(out, doc[loc[5]:]...)
	return out
}
