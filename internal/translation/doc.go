// Package translation sends text segments to a remote machine translation
// backend. Backends (Google, DeepL, Microsoft, OpenAI and Gemini) are
// selected by name at run time through NewBackend. The Client groups
// segments into batches, runs them on a bounded worker pool, retries
// rate-limited and transient failures with exponential backoff behind a
// circuit breaker, and applies glossary overrides. An optional sqlite
// translation memory lets repeated runs skip text that was already
// translated.
package translation
