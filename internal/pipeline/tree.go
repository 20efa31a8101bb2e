package pipeline

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"codeberg.org/snonux/chmtrans/internal/htmltext"
	"codeberg.org/snonux/chmtrans/internal/translation"
)

// SegmentTranslator fills in the translations of segments
type SegmentTranslator interface {
	TranslateSegments(ctx context.Context, segments []*htmltext.Segment, targetLang string) (translation.Stats, error)
}

// TreeStats summarizes one TranslateTree call
type TreeStats struct {
	Documents int // HTML pages and sitemaps
	Sitemaps  int
	Copied    int
	translation.Stats

	// Fallbacks counts documents written as UTF-8 because their original
	// charset cannot hold the translation
	Fallbacks int
}

// TreeTranslator translates every HTML document of an extracted help tree,
// including the entry names of its contents and index sitemaps
type TreeTranslator struct {
	translator  SegmentTranslator
	opts        htmltext.Options
	sitemapOpts htmltext.Options
	logger      *logrus.Logger
}

// NewTreeTranslator creates a tree translator
func NewTreeTranslator(translator SegmentTranslator, opts htmltext.Options, logger *logrus.Logger) *TreeTranslator {
	sitemapOpts := opts
	sitemapOpts.Attributes = []string{htmltext.SitemapNames}
	return &TreeTranslator{translator: translator, opts: opts, sitemapOpts: sitemapOpts, logger: logger}
}

// document is one HTML file held between extraction and reinsertion
type document struct {
	rel      string
	raw      []byte
	decoded  []byte
	charset  htmltext.Charset
	segments []*htmltext.Segment
}

func isHTML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".htm", ".html":
		return true
	}
	return false
}

// isSitemap reports whether path is a table of contents or index file
func isSitemap(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".hhc", ".hhk":
		return true
	}
	return false
}

// TranslateTree writes a translated copy of inDir to outDir. Segments of all
// documents go to the translator in one call so batches span documents.
// Files other than HTML documents are copied unchanged. Nothing is written
// for documents when translation fails.
func (t *TreeTranslator) TranslateTree(ctx context.Context, inDir, outDir, targetLang string) (TreeStats, error) {
	var stats TreeStats
	var docs []*document
	var all []*htmltext.Segment

	err := filepath.WalkDir(inDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(inDir, path)
		if err != nil {
			return err
		}

		opts := t.opts
		switch {
		case isHTML(rel):
		case isSitemap(rel):
			opts = t.sitemapOpts
			stats.Sitemaps++
		default:
			stats.Copied++
			return copyFile(path, filepath.Join(outDir, rel))
		}

		doc, err := t.loadDocument(path, filepath.ToSlash(rel), opts)
		if err != nil {
			return err
		}
		docs = append(docs, doc)
		all = append(all, doc.segments...)
		return nil
	})
	if err != nil {
		return stats, err
	}
	stats.Documents = len(docs)

	t.logger.WithFields(logrus.Fields{
		"documents": len(docs),
		"copied":    stats.Copied,
		"segments":  len(all),
	}).Debug("Extracted text segments")

	stats.Stats, err = t.translator.TranslateSegments(ctx, all, targetLang)
	if err != nil {
		return stats, err
	}

	for _, doc := range docs {
		fallback, err := t.writeDocument(doc, filepath.Join(outDir, filepath.FromSlash(doc.rel)))
		if err != nil {
			return stats, err
		}
		if fallback {
			stats.Fallbacks++
			t.logger.WithFields(logrus.Fields{
				"document": doc.rel,
				"charset":  doc.charset.Name,
			}).Warn("Translation does not fit the document charset, writing UTF-8")
		}
	}

	return stats, nil
}

func (t *TreeTranslator) loadDocument(path, rel string, opts htmltext.Options) (*document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", rel, err)
	}

	decoded, cs, err := htmltext.DecodeDocument(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", rel, err)
	}

	segments, err := htmltext.Extract(rel, decoded, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", rel, err)
	}

	return &document{rel: rel, raw: raw, decoded: decoded, charset: cs, segments: segments}, nil
}

// writeDocument reinserts the translations of doc and writes it to dst in
// its original charset where possible
func (t *TreeTranslator) writeDocument(doc *document, dst string) (fallback bool, err error) {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return false, fmt.Errorf("failed to create directory for %s: %w", doc.rel, err)
	}

	// Documents without text keep their exact bytes
	if len(doc.segments) == 0 {
		return false, os.WriteFile(dst, doc.raw, 0644)
	}

	translated, err := htmltext.Reinsert(doc.decoded, doc.segments)
	if err != nil {
		return false, fmt.Errorf("%s: %w", doc.rel, err)
	}

	out, transcoded := htmltext.EncodeDocument(translated, doc.charset)
	if err := os.WriteFile(dst, out, 0644); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", doc.rel, err)
	}
	return !transcoded, nil
}

// copyFile copies src to dst, creating parent directories
func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return out.Close()
}
