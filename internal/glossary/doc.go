// Package glossary loads fixed source-to-target term mappings from CSV,
// TSV, JSON or YAML files and applies them to translated text segments.
// A Glossary is immutable once loaded and safe for concurrent use.
package glossary
