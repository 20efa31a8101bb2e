package translation

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/snonux/chmtrans/internal/apperr"
	"codeberg.org/snonux/chmtrans/internal/glossary"
	"codeberg.org/snonux/chmtrans/internal/htmltext"
	"codeberg.org/snonux/chmtrans/internal/metrics"
)

// fakeBackend records every batch it receives and answers through fn
type fakeBackend struct {
	mu      sync.Mutex
	calls   int
	batches [][]string
	fn      func(call int, texts []string) ([]string, error)
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	out, err := f.TranslateBatch(ctx, []string{text}, sourceLang, targetLang)
	if err != nil {
		return "", err
	}
	return out[0], nil
}

func (f *fakeBackend) TranslateBatch(ctx context.Context, texts []string, sourceLang, targetLang string) ([]string, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.batches = append(f.batches, append([]string(nil), texts...))
	f.mu.Unlock()
	return f.fn(call, texts)
}

func (f *fakeBackend) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// singleBackend only implements Backend
type singleBackend struct {
	mu    sync.Mutex
	calls int
}

func (s *singleBackend) Name() string { return "single" }

func (s *singleBackend) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return "<" + text + ">", nil
}

func upper(call int, texts []string) ([]string, error) {
	out := make([]string, len(texts))
	for i, t := range texts {
		out[i] = strings.ToUpper(t)
	}
	return out, nil
}

func makeSegments(texts ...string) []*htmltext.Segment {
	segs := make([]*htmltext.Segment, len(texts))
	for i, t := range texts {
		segs[i] = &htmltext.Segment{DocumentID: "doc.htm", Index: i, Original: t}
	}
	return segs
}

func fastOptions() Options {
	opts := DefaultOptions()
	opts.InitialBackoff = time.Millisecond
	opts.MaxBackoff = 2 * time.Millisecond
	opts.BreakerThreshold = 0
	return opts
}

func TestTranslateSegments(t *testing.T) {
	backend := &fakeBackend{fn: upper}
	opts := fastOptions()
	opts.BatchSize = 2

	client := NewClient(ClientConfig{Backend: backend, Options: opts, Metrics: metrics.NewRecorder()})
	segs := makeSegments("open", "close", "open", "save")

	stats, err := client.TranslateSegments(context.Background(), segs, "de")
	require.NoError(t, err)

	want := []string{"OPEN", "CLOSE", "OPEN", "SAVE"}
	for i, s := range segs {
		assert.True(t, s.Done)
		assert.Equal(t, want[i], s.Translated)
	}
	assert.Equal(t, 4, stats.Segments)
	assert.Equal(t, 3, stats.Unique)
	assert.Equal(t, 3, stats.Translated)
	assert.Equal(t, 2, stats.Batches)
	assert.Equal(t, 2, backend.callCount())
}

func TestTranslateSegmentsEmpty(t *testing.T) {
	backend := &fakeBackend{fn: upper}
	client := NewClient(ClientConfig{Backend: backend, Options: fastOptions()})

	stats, err := client.TranslateSegments(context.Background(), nil, "de")
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Segments)
	assert.Equal(t, 0, backend.callCount())
}

func TestRetryBoundOnRateLimit(t *testing.T) {
	for _, threshold := range []uint32{0, 2} {
		t.Run(fmt.Sprintf("breaker threshold %d", threshold), func(t *testing.T) {
			backend := &fakeBackend{fn: func(int, []string) ([]string, error) {
				return nil, &StatusError{Backend: "fake", StatusCode: 429}
			}}
			opts := fastOptions()
			opts.MaxRetries = 4
			opts.BreakerThreshold = threshold

			client := NewClient(ClientConfig{Backend: backend, Options: opts})
			segs := makeSegments("hello")

			_, err := client.TranslateSegments(context.Background(), segs, "fr")
			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.CodeBackend))
			assert.Equal(t, 4, backend.callCount())
			assert.False(t, segs[0].Done)
		})
	}
}

func TestTransientFailureRecovers(t *testing.T) {
	backend := &fakeBackend{fn: func(call int, texts []string) ([]string, error) {
		if call == 1 {
			return nil, &StatusError{Backend: "fake", StatusCode: 503}
		}
		return upper(call, texts)
	}}

	client := NewClient(ClientConfig{Backend: backend, Options: fastOptions()})
	segs := makeSegments("retry me")

	_, err := client.TranslateSegments(context.Background(), segs, "fr")
	require.NoError(t, err)
	assert.Equal(t, "RETRY ME", segs[0].Translated)
	assert.Equal(t, 2, backend.callCount())
}

func TestNonRetryableErrors(t *testing.T) {
	tests := []struct {
		name string
		fn   func(int, []string) ([]string, error)
	}{
		{
			name: "client error",
			fn: func(int, []string) ([]string, error) {
				return nil, &StatusError{Backend: "fake", StatusCode: 403}
			},
		},
		{
			name: "count mismatch",
			fn: func(int, []string) ([]string, error) {
				return []string{"only one"}, nil
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &fakeBackend{fn: tt.fn}
			client := NewClient(ClientConfig{Backend: backend, Options: fastOptions()})

			_, err := client.TranslateSegments(context.Background(), makeSegments("a", "b"), "fr")
			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.CodeBackend))
			assert.Equal(t, 1, backend.callCount())
		})
	}
}

func TestBreakerOpensOnServerErrors(t *testing.T) {
	backend := &fakeBackend{fn: func(int, []string) ([]string, error) {
		return nil, &StatusError{Backend: "fake", StatusCode: 500}
	}}
	opts := fastOptions()
	opts.MaxRetries = 5
	opts.BreakerThreshold = 2
	opts.BreakerCooldown = time.Hour

	client := NewClient(ClientConfig{Backend: backend, Options: opts})
	_, err := client.TranslateSegments(context.Background(), makeSegments("x"), "fr")
	require.Error(t, err)

	// Attempts after the breaker opens never reach the backend
	assert.Equal(t, 2, backend.callCount())
}

func TestOneFailedBatchFailsTheCall(t *testing.T) {
	backend := &fakeBackend{fn: func(call int, texts []string) ([]string, error) {
		if texts[0] == "bad" {
			return nil, &StatusError{Backend: "fake", StatusCode: 400}
		}
		return upper(call, texts)
	}}
	opts := fastOptions()
	opts.BatchSize = 1
	opts.Workers = 3

	client := NewClient(ClientConfig{Backend: backend, Options: opts})
	segs := makeSegments("good", "bad", "fine")

	_, err := client.TranslateSegments(context.Background(), segs, "fr")
	require.Error(t, err)
	for _, s := range segs {
		assert.False(t, s.Done, "segment %q must stay untranslated", s.Original)
	}
}

func TestManyBatchesKeepOrder(t *testing.T) {
	backend := &fakeBackend{fn: upper}
	opts := fastOptions()
	opts.BatchSize = 3
	opts.Workers = 8

	var texts []string
	for i := 0; i < 100; i++ {
		texts = append(texts, fmt.Sprintf("text %d", i))
	}
	segs := makeSegments(texts...)

	client := NewClient(ClientConfig{Backend: backend, Options: opts})
	stats, err := client.TranslateSegments(context.Background(), segs, "ja")
	require.NoError(t, err)
	assert.Equal(t, 34, stats.Batches)

	for i, s := range segs {
		assert.Equal(t, fmt.Sprintf("TEXT %d", i), s.Translated)
	}
}

func TestGlossaryModes(t *testing.T) {
	g, err := glossary.New([]glossary.Entry{{Source: "API", Target: "Schnittstelle"}})
	require.NoError(t, err)

	echo := func(call int, texts []string) ([]string, error) {
		return append([]string(nil), texts...), nil
	}

	tests := []struct {
		mode     string
		wantSent string
		wantOut  string
	}{
		{GlossaryPost, "the API docs", "the Schnittstelle docs"},
		{GlossaryPre, "the Schnittstelle docs", "the Schnittstelle docs"},
		{GlossaryBoth, "the Schnittstelle docs", "the Schnittstelle docs"},
	}

	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			backend := &fakeBackend{fn: echo}
			opts := fastOptions()
			opts.GlossaryMode = tt.mode

			client := NewClient(ClientConfig{Backend: backend, Glossary: g, Options: opts})
			segs := makeSegments("the API docs")

			_, err := client.TranslateSegments(context.Background(), segs, "de")
			require.NoError(t, err)
			require.Len(t, backend.batches, 1)
			assert.Equal(t, tt.wantSent, backend.batches[0][0])
			assert.Equal(t, tt.wantOut, segs[0].Translated)
		})
	}
}

func TestGlossaryOverridesBackendOutput(t *testing.T) {
	g, err := glossary.New([]glossary.Entry{{Source: "Gateway", Target: "网关"}})
	require.NoError(t, err)

	backend := &fakeBackend{fn: func(int, []string) ([]string, error) {
		return []string{"API Gateway 服务"}, nil
	}}
	client := NewClient(ClientConfig{Backend: backend, Glossary: g, Options: fastOptions()})
	segs := makeSegments("API Gateway service")

	_, err = client.TranslateSegments(context.Background(), segs, "zh-CN")
	require.NoError(t, err)
	assert.Equal(t, "API 网关 服务", segs[0].Translated)
}

func TestTranslationMemory(t *testing.T) {
	mem, err := OpenSQLiteMemory(filepath.Join(t.TempDir(), "tm", "memory.db"))
	require.NoError(t, err)
	defer mem.Close()

	backend := &fakeBackend{fn: upper}
	client := NewClient(ClientConfig{Backend: backend, Memory: mem, Options: fastOptions()})

	_, err = client.TranslateSegments(context.Background(), makeSegments("one", "two"), "de")
	require.NoError(t, err)
	assert.Equal(t, 1, backend.callCount())

	failing := &fakeBackend{fn: func(int, []string) ([]string, error) {
		return nil, errors.New("must not be called")
	}}
	client = NewClient(ClientConfig{Backend: failing, Memory: mem, Options: fastOptions()})
	segs := makeSegments("two", "one")

	// The fake backend name is shared, so the second client sees the
	// first client's entries
	stats, err := client.TranslateSegments(context.Background(), segs, "de")
	require.NoError(t, err)
	assert.Equal(t, 0, failing.callCount())
	assert.Equal(t, 2, stats.FromMemory)
	assert.Equal(t, "TWO", segs[0].Translated)
	assert.Equal(t, "ONE", segs[1].Translated)
}

func TestSingleTextBackend(t *testing.T) {
	backend := &singleBackend{}
	client := NewClient(ClientConfig{Backend: backend, Options: fastOptions()})
	segs := makeSegments("a", "b", "c")

	_, err := client.TranslateSegments(context.Background(), segs, "de")
	require.NoError(t, err)
	assert.Equal(t, "<b>", segs[1].Translated)
	assert.Equal(t, 3, backend.calls)
}

func TestCancelledContextStopsRetries(t *testing.T) {
	backend := &fakeBackend{fn: func(int, []string) ([]string, error) {
		return nil, &StatusError{Backend: "fake", StatusCode: 429}
	}}
	opts := fastOptions()
	opts.MaxRetries = 1000
	opts.InitialBackoff = 50 * time.Millisecond
	opts.MaxBackoff = 50 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()

	client := NewClient(ClientConfig{Backend: backend, Options: opts})
	_, err := client.TranslateSegments(ctx, makeSegments("x"), "fr")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, backend.callCount(), 10)
}

func TestParseGlossaryMode(t *testing.T) {
	mode, err := ParseGlossaryMode("")
	require.NoError(t, err)
	assert.Equal(t, GlossaryPost, mode)

	mode, err = ParseGlossaryMode("BOTH")
	require.NoError(t, err)
	assert.Equal(t, GlossaryBoth, mode)

	_, err = ParseGlossaryMode("sometimes")
	assert.True(t, apperr.Is(err, apperr.CodeConfig))
}
