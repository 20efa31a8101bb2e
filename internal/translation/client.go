package translation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"

	"codeberg.org/snonux/chmtrans/internal/apperr"
	"codeberg.org/snonux/chmtrans/internal/glossary"
	"codeberg.org/snonux/chmtrans/internal/htmltext"
	"codeberg.org/snonux/chmtrans/internal/metrics"
)

// Glossary modes
const (
	GlossaryPost = "post" // apply to backend output
	GlossaryPre  = "pre"  // apply to source text before sending
	GlossaryBoth = "both"
)

// Options tune batching, concurrency and retries
type Options struct {
	SourceLang       string
	BatchSize        int
	BatchChars       int
	Workers          int
	MaxRetries       int // total attempts per batch
	InitialBackoff   time.Duration
	MaxBackoff       time.Duration
	BreakerThreshold uint32 // consecutive failures that open the breaker, 0 disables it
	BreakerCooldown  time.Duration
	GlossaryMode     string
}

// DefaultOptions returns the options used when nothing is configured
func DefaultOptions() Options {
	return Options{
		SourceLang:       "auto",
		BatchSize:        50,
		BatchChars:       4500,
		Workers:          4,
		MaxRetries:       3,
		InitialBackoff:   time.Second,
		MaxBackoff:       30 * time.Second,
		BreakerThreshold: 5,
		BreakerCooldown:  30 * time.Second,
		GlossaryMode:     GlossaryPost,
	}
}

// ParseGlossaryMode validates a glossary mode name
func ParseGlossaryMode(mode string) (string, error) {
	switch m := strings.ToLower(strings.TrimSpace(mode)); m {
	case "", GlossaryPost:
		return GlossaryPost, nil
	case GlossaryPre, GlossaryBoth:
		return m, nil
	default:
		return "", apperr.Newf(apperr.CodeConfig, "unknown glossary mode %q (expected post, pre or both)", mode)
	}
}

// ClientConfig wires a Client to its collaborators. Only Backend is
// required.
type ClientConfig struct {
	Backend  Backend
	Glossary *glossary.Glossary
	Memory   Memory
	Metrics  *metrics.Recorder
	Logger   *logrus.Logger
	Options  Options
}

// Stats summarizes one TranslateSegments call
type Stats struct {
	Segments   int
	Unique     int
	FromMemory int
	Translated int
	Batches    int
}

// Client translates segments through a backend
type Client struct {
	backend  Backend
	glossary *glossary.Glossary
	memory   Memory
	metrics  *metrics.Recorder
	logger   *logrus.Logger
	breaker  *gobreaker.CircuitBreaker
	opts     Options
}

// NewClient creates a client. Zero option values fall back to defaults.
func NewClient(cfg ClientConfig) *Client {
	opts := cfg.Options
	defaults := DefaultOptions()
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaults.BatchSize
	}
	if opts.Workers <= 0 {
		opts.Workers = defaults.Workers
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = defaults.MaxRetries
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = defaults.InitialBackoff
	}
	if opts.MaxBackoff < opts.InitialBackoff {
		opts.MaxBackoff = opts.InitialBackoff * 30
	}
	if opts.BreakerCooldown <= 0 {
		opts.BreakerCooldown = defaults.BreakerCooldown
	}
	if opts.GlossaryMode == "" {
		opts.GlossaryMode = GlossaryPost
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logrus.New()
	}

	c := &Client{
		backend:  cfg.Backend,
		glossary: cfg.Glossary,
		memory:   cfg.Memory,
		metrics:  cfg.Metrics,
		logger:   logger,
		opts:     opts,
	}

	if opts.BreakerThreshold > 0 {
		threshold := opts.BreakerThreshold
		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        cfg.Backend.Name(),
			MaxRequests: 1,
			Timeout:     opts.BreakerCooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			IsSuccessful: func(err error) bool {
				return !isBackendFault(err)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.WithFields(logrus.Fields{
					"backend": name,
					"from":    from.String(),
					"to":      to.String(),
				}).Warn("Circuit breaker state changed")
			},
		})
	}

	return c
}

// Backend returns the backend in use
func (c *Client) Backend() Backend { return c.backend }

// TranslateSegments translates every segment into targetLang. Identical
// texts are sent once. On success every segment is marked Done. On failure
// no segment is modified and the error carries CodeBackend.
func (c *Client) TranslateSegments(ctx context.Context, segments []*htmltext.Segment, targetLang string) (Stats, error) {
	stats := Stats{Segments: len(segments)}
	if len(segments) == 0 {
		return stats, nil
	}

	// Source text actually sent, per segment, and its unique set in order
	sources := make([]string, len(segments))
	var unique []string
	seen := make(map[string]bool)
	for i, s := range segments {
		src := s.Original
		if c.opts.GlossaryMode == GlossaryPre || c.opts.GlossaryMode == GlossaryBoth {
			src = c.glossary.Apply(src)
		}
		sources[i] = src
		if !seen[src] {
			seen[src] = true
			unique = append(unique, src)
		}
	}
	stats.Unique = len(unique)

	key := MemoryKey{Backend: c.backend.Name(), SourceLang: c.opts.SourceLang, TargetLang: targetLang}
	raw := make(map[string]string, len(unique))

	pending := unique
	if c.memory != nil {
		found, err := c.memory.Lookup(ctx, key, unique)
		if err != nil {
			c.logger.WithError(err).Warn("Translation memory lookup failed, translating everything")
		} else {
			pending = nil
			for _, src := range unique {
				if t, ok := found[src]; ok {
					raw[src] = t
				} else {
					pending = append(pending, src)
				}
			}
			stats.FromMemory = len(unique) - len(pending)
		}
	}

	translated, batches, err := c.translateTexts(ctx, key, pending, targetLang)
	stats.Batches = batches
	if err != nil {
		return stats, err
	}
	for i, src := range pending {
		raw[src] = translated[i]
	}
	stats.Translated = len(pending)

	for i, s := range segments {
		out := raw[sources[i]]
		if c.opts.GlossaryMode != GlossaryPre {
			out = c.glossary.Apply(out)
		}
		s.SetTranslation(out)
	}

	c.metrics.RecordSegments(c.backend.Name(), stats.Translated, stats.FromMemory)
	c.logger.WithFields(logrus.Fields{
		"backend":     c.backend.Name(),
		"target_lang": targetLang,
		"segments":    stats.Segments,
		"unique":      stats.Unique,
		"from_memory": stats.FromMemory,
		"batches":     stats.Batches,
	}).Info("Translated segments")

	return stats, nil
}

// translateTexts runs the batches of texts on the worker pool. Each worker
// writes only the result slots of its own batch.
func (c *Client) translateTexts(ctx context.Context, key MemoryKey, texts []string, targetLang string) ([]string, int, error) {
	if len(texts) == 0 {
		return nil, 0, nil
	}

	batches, err := CreateBatches(texts, c.opts.BatchSize, c.opts.BatchChars)
	if err != nil {
		return nil, 0, apperr.Wrap(err, apperr.CodeConfig, "invalid batch settings")
	}

	results := make([]string, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Workers)

	for _, b := range batches {
		g.Go(func() error {
			batchTexts := texts[b.Start:b.End]
			out, err := c.translateBatch(gctx, b, batchTexts, targetLang)
			if err != nil {
				return err
			}
			copy(results[b.Start:b.End], out)

			if c.memory != nil {
				pairs := make(map[string]string, len(out))
				for i, src := range batchTexts {
					pairs[src] = out[i]
				}
				if err := c.memory.Store(gctx, key, pairs); err != nil {
					c.logger.WithError(err).Warn("Failed to store translations in memory")
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, len(batches), err
	}
	return results, len(batches), nil
}

// translateBatch sends one batch, retrying transient failures with
// exponential backoff for at most MaxRetries attempts in total
func (c *Client) translateBatch(ctx context.Context, b Batch, texts []string, targetLang string) ([]string, error) {
	name := c.backend.Name()
	log := c.logger.WithFields(logrus.Fields{
		"backend": name,
		"batch":   b.Index,
		"texts":   len(texts),
	})

	attempts := 0
	operation := func() ([]string, error) {
		attempts++
		start := time.Now()
		out, err := c.call(ctx, texts, targetLang)
		c.metrics.RecordRequest(name, time.Since(start), err)

		if err == nil && len(out) != len(texts) {
			err = &CountMismatchError{Backend: name, Expected: len(texts), Got: len(out)}
		}
		if err != nil {
			if !IsRetryable(err) {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return out, nil
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = c.opts.InitialBackoff
	expo.MaxInterval = c.opts.MaxBackoff
	expo.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(expo, uint64(c.opts.MaxRetries-1)), ctx)

	notify := func(err error, wait time.Duration) {
		c.metrics.RecordRetry(name)
		log.WithFields(logrus.Fields{
			"attempt": attempts,
			"wait":    wait.String(),
		}).WithError(err).Warn("Translation request failed, retrying")
	}

	out, err := backoff.RetryNotifyWithData(operation, policy, notify)
	if err != nil {
		log.WithField("attempts", attempts).WithError(err).Error("Translation batch failed")
		return nil, apperr.Wrap(err, apperr.CodeBackend,
			fmt.Sprintf("batch %d (%d texts) failed after %d attempt(s)", b.Index, len(texts), attempts))
	}
	return out, nil
}

// call performs one backend request, through the circuit breaker if enabled
func (c *Client) call(ctx context.Context, texts []string, targetLang string) ([]string, error) {
	do := func() ([]string, error) {
		if bb, ok := c.backend.(BatchBackend); ok {
			return bb.TranslateBatch(ctx, texts, c.opts.SourceLang, targetLang)
		}
		return translateEach(ctx, c.backend, texts, c.opts.SourceLang, targetLang)
	}

	if c.breaker == nil {
		return do()
	}

	res, err := c.breaker.Execute(func() (interface{}, error) {
		out, err := do()
		return out, err
	})
	if err != nil {
		return nil, err
	}
	return res.([]string), nil
}
