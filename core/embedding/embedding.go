// Package embedding generates chunk embeddings through remote model servers.
//
// Texts are sent in batches. Batches run concurrently up to a configured
// limit and every request has its own timeout. A batch the server fails on
// with a server error yields nil embeddings for its texts, while client
// errors, refused connections and timeouts fail the whole call with
// ErrUnavailable.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/siherrmann/halluguard/core/pipeline"
	"github.com/siherrmann/halluguard/helper"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// ErrUnavailable is returned when the embedding server cannot serve requests at all
var ErrUnavailable = errors.New("embedding service unavailable")

const (
	DefaultBatchSize      = 20
	DefaultTimeout        = 60 * time.Second
	DefaultMaxConcurrency = 4
)

var (
	batchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "halluguard_embedding_batch_duration_seconds",
			Help:    "Duration of embedding batch requests",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"provider"},
	)

	batchFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "halluguard_embedding_batch_failures_total",
			Help: "Embedding batches that returned no embeddings",
		},
		[]string{"provider"},
	)
)

// GeneratorParams configures a remote embedding generator
type GeneratorParams struct {
	BaseURL string
	Model   string
	APIKey  string

	BatchSize      int
	Timeout        time.Duration
	MaxConcurrency int64
}

func (p GeneratorParams) withDefaults() GeneratorParams {
	if p.BatchSize <= 0 {
		p.BatchSize = DefaultBatchSize
	}
	if p.Timeout <= 0 {
		p.Timeout = DefaultTimeout
	}
	if p.MaxConcurrency <= 0 {
		p.MaxConcurrency = DefaultMaxConcurrency
	}
	return p
}

// embedBatchFunc embeds one batch with a single request
type embedBatchFunc func(ctx context.Context, texts []string) ([][]float32, error)

// batcher splits texts into batches and maps request failures
type batcher struct {
	provider  string
	batchSize int
	timeout   time.Duration
	reqLock   *semaphore.Weighted
	// Reports errors the server will keep returning, like a 4xx status
	isFatal func(err error) bool
	log     *slog.Logger
}

func newBatcher(provider string, params GeneratorParams, isFatal func(err error) bool, logger *slog.Logger) batcher {
	if logger == nil {
		logger = slog.Default()
	}
	return batcher{
		provider:  provider,
		batchSize: params.BatchSize,
		timeout:   params.Timeout,
		reqLock:   semaphore.NewWeighted(params.MaxConcurrency),
		isFatal:   isFatal,
		log:       logger,
	}
}

func (b *batcher) generate(ctx context.Context, texts []string, embed embedBatchFunc) ([][]float32, error) {
	out := make([][]float32, len(texts))
	if len(texts) == 0 {
		return out, nil
	}

	eg, ectx := errgroup.WithContext(ctx)
	for start := 0; start < len(texts); start += b.batchSize {
		end := min(start+b.batchSize, len(texts))
		eg.Go(func() error {
			if err := b.reqLock.Acquire(ectx, 1); err != nil {
				return err
			}
			defer b.reqLock.Release(1)

			rCtx, cancel := context.WithTimeout(ectx, b.timeout)
			defer cancel()

			begin := time.Now()
			embeddings, err := embed(rCtx, texts[start:end])
			batchDuration.WithLabelValues(b.provider).Observe(time.Since(begin).Seconds())
			if err != nil {
				// cancelled by the caller or by a fatal sibling batch
				if ectx.Err() != nil {
					return ectx.Err()
				}
				if b.isFatal(err) || isConnectionError(err) {
					return helper.NewError(b.provider+" embeddings", fmt.Errorf("%w: %v", ErrUnavailable, err))
				}
				batchFailures.WithLabelValues(b.provider).Inc()
				b.log.Error("Embedding batch failed", slog.String("provider", b.provider), slog.Int("batch_start", start), slog.Int("batch_size", end-start), slog.String("error", err.Error()))
				return nil
			}

			if len(embeddings) != end-start {
				batchFailures.WithLabelValues(b.provider).Inc()
				b.log.Error("Embedding count mismatch", slog.String("provider", b.provider), slog.Int("expected", end-start), slog.Int("got", len(embeddings)))
				return nil
			}
			copy(out[start:end], embeddings)
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return out, nil
}

// isConnectionError reports refused connections and timeouts
func isConnectionError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

// NewGenerator creates the embedding generator selected by the configuration.
// The provider "none" returns a nil generator.
func NewGenerator(config *helper.EmbeddingConfiguration, logger *slog.Logger) (pipeline.EmbeddingGenerator, error) {
	params := GeneratorParams{
		BaseURL:        config.BaseURL,
		Model:          config.Model,
		APIKey:         config.APIKey,
		BatchSize:      config.BatchSize,
		Timeout:        config.Timeout,
		MaxConcurrency: int64(config.MaxConcurrency),
	}

	switch config.Provider {
	case helper.EmbeddingProviderOllama:
		generator, err := NewOllamaGenerator(params, logger)
		if err != nil {
			return nil, err
		}
		return generator, nil
	case helper.EmbeddingProviderLMStudio:
		generator, err := NewOpenAIGenerator(params, logger)
		if err != nil {
			return nil, err
		}
		return generator, nil
	case helper.EmbeddingProviderHugot:
		return pipeline.NewHugotEmbedder(config.Model, config.BatchSize, logger), nil
	case helper.EmbeddingProviderNone:
		return nil, nil
	default:
		return nil, helper.NewError("create embedding generator", fmt.Errorf("unknown embedding provider %q", config.Provider))
	}
}
