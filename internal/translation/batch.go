package translation

import (
	"errors"
	"unicode/utf8"
)

// Batch is a contiguous range of texts sent in one backend request
type Batch struct {
	Index int
	Start int // first text, inclusive
	End   int // last text, exclusive
	Chars int
}

// Len returns the number of texts in the batch
func (b Batch) Len() int { return b.End - b.Start }

// CreateBatches groups texts in order into batches of at most maxSegments
// texts and maxChars characters. A text is never split: one longer than
// maxChars is sent alone. maxChars <= 0 disables the character ceiling.
func CreateBatches(texts []string, maxSegments, maxChars int) ([]Batch, error) {
	if maxSegments <= 0 {
		return nil, errors.New("maxSegments must be positive")
	}
	if len(texts) == 0 {
		return []Batch{}, nil
	}

	var batches []Batch
	current := Batch{}

	for i, text := range texts {
		chars := utf8.RuneCountInString(text)

		full := current.Len() >= maxSegments ||
			(maxChars > 0 && current.Chars+chars > maxChars)

		// If adding this text would exceed a ceiling, start a new batch
		if full && current.Len() > 0 {
			batches = append(batches, current)
			current = Batch{Index: len(batches), Start: i}
		}

		current.End = i + 1
		current.Chars += chars
	}

	if current.Len() > 0 {
		batches = append(batches, current)
	}

	return batches, nil
}
