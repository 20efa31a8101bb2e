package glossary

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"codeberg.org/snonux/chmtrans/internal/apperr"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Load reads a glossary file. The format is chosen by extension:
// .csv, .tsv/.txt, .json and .yaml/.yml.
func Load(path string) (*Glossary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeConfig, "failed to read glossary file")
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	var entries []Entry
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		entries, err = parseDelimited(data, ',')
	case ".tsv", ".txt":
		entries, err = parseDelimited(data, '\t')
	case ".json":
		entries, err = parseJSON(data)
	case ".yaml", ".yml":
		entries, err = parseYAML(data)
	default:
		return nil, apperr.Newf(apperr.CodeConfig, "unsupported glossary format: %s", filepath.Ext(path))
	}
	if err != nil {
		if apperr.CodeOf(err) != "" {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return nil, apperr.Wrap(err, apperr.CodeConfig, fmt.Sprintf("malformed glossary %s", path))
	}

	return New(entries)
}

func parseDelimited(data []byte, comma rune) ([]Entry, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = comma
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	if comma == '\t' {
		r.LazyQuotes = true
	}

	var entries []Entry
	first := true
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		line, _ := r.FieldPos(0)

		if isBlankRecord(record) {
			continue
		}
		if len(record) != 2 {
			return nil, apperr.Newf(apperr.CodeConfig, "line %d: expected 2 columns, got %d", line, len(record))
		}
		if first {
			first = false
			if isHeader(record) {
				continue
			}
		}
		entries = append(entries, Entry{Source: record[0], Target: record[1]})
	}
	return entries, nil
}

func isBlankRecord(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func isHeader(record []string) bool {
	src := strings.ToLower(strings.TrimSpace(record[0]))
	dst := strings.ToLower(strings.TrimSpace(record[1]))
	return (src == "source" && dst == "target") || (src == "source_term" && dst == "target_term")
}

// parseJSON accepts either [{"source":..,"target":..}] or {"source":"target"}
func parseJSON(data []byte) ([]Entry, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var entries []Entry
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, err
		}
		return entries, nil
	}

	// Walk the object token by token so duplicate keys are reported
	// instead of silently overwritten.
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected JSON object or array")
	}

	var entries []Entry
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := keyTok.(string)
		var value string
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("term %q: %w", key, err)
		}
		entries = append(entries, Entry{Source: key, Target: value})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return entries, nil
}

// parseYAML accepts a mapping of terms or a list of source/target entries
func parseYAML(data []byte) ([]Entry, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	if len(root.Content) == 0 {
		return nil, nil
	}

	doc := root.Content[0]
	switch doc.Kind {
	case yaml.MappingNode:
		entries := make([]Entry, 0, len(doc.Content)/2)
		for i := 0; i+1 < len(doc.Content); i += 2 {
			k, v := doc.Content[i], doc.Content[i+1]
			if v.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("line %d: term %q must map to a string", v.Line, k.Value)
			}
			entries = append(entries, Entry{Source: k.Value, Target: v.Value})
		}
		return entries, nil
	case yaml.SequenceNode:
		var entries []Entry
		if err := doc.Decode(&entries); err != nil {
			return nil, err
		}
		return entries, nil
	default:
		return nil, fmt.Errorf("line %d: expected a mapping or a list", doc.Line)
	}
}
