package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/siherrmann/halluguard/core/similarity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// staticExtractor returns the same mentions for every call and counts calls
type staticExtractor struct {
	name     string
	mentions []string
	err      error
	calls    int
}

func (s *staticExtractor) Extract(ctx context.Context, text string, entityTypes []string) ([]string, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.mentions, nil
}

func (s *staticExtractor) Name() string {
	return s.name
}

func TestNewCompositeExtractor(t *testing.T) {
	t.Run("Valid call NewCompositeExtractor", func(t *testing.T) {
		composite, err := NewCompositeExtractor(nil, &staticExtractor{name: "a"}, &staticExtractor{name: "b"})

		require.NoError(t, err)
		assert.Equal(t, "composite(a,b)", composite.Name())
	})

	t.Run("Zero extractors", func(t *testing.T) {
		composite, err := NewCompositeExtractor(nil)

		assert.Error(t, err, "Expected construction without extractors to fail")
		assert.Nil(t, composite)
	})

	t.Run("Nil extractor", func(t *testing.T) {
		composite, err := NewCompositeExtractor(nil, &staticExtractor{}, nil)

		assert.Error(t, err)
		assert.Nil(t, composite)
	})
}

func TestCompositeExtractorExtract(t *testing.T) {
	ctx := context.Background()
	types := []string{"Person", "Location"}

	t.Run("Valid call Extract merges in registration order", func(t *testing.T) {
		first := &staticExtractor{name: "first", mentions: []string{"Alice", "Paris"}}
		second := &staticExtractor{name: "second", mentions: []string{" alice ", "Charlie", "Berlin"}}
		composite, err := NewCompositeExtractor(nil, first, second)
		require.NoError(t, err)

		entities, err := composite.Extract(ctx, "some text", types)

		require.NoError(t, err)
		assert.Equal(t, []string{"Alice", "Paris", "Charlie", "Berlin"}, entities, "Expected near duplicates to collapse into the first spelling")
	})

	t.Run("Failing extractor is isolated", func(t *testing.T) {
		failing := &staticExtractor{name: "failing", err: errors.New("model crashed")}
		healthy := &staticExtractor{name: "healthy", mentions: []string{"Bob", "bob", "London"}}
		composite, err := NewCompositeExtractor(nil, failing, healthy)
		require.NoError(t, err)

		entities, err := composite.Extract(ctx, "some text", types)

		require.NoError(t, err, "Expected a single failing extractor not to abort extraction")
		assert.Equal(t, similarity.Dedupe(healthy.mentions), entities)
		assert.Equal(t, 1, failing.calls)
		assert.Equal(t, 1, healthy.calls)
	})

	t.Run("All extractors failing", func(t *testing.T) {
		errFirst := errors.New("first down")
		composite, err := NewCompositeExtractor(nil,
			&staticExtractor{name: "first", err: errFirst},
			&staticExtractor{name: "second", err: errors.New("second down")},
		)
		require.NoError(t, err)

		entities, err := composite.Extract(ctx, "some text", types)

		assert.Nil(t, entities)
		assert.ErrorIs(t, err, ErrAllExtractorsFailed)
		assert.ErrorIs(t, err, errFirst, "Expected the backend errors to be joined")
	})

	t.Run("Empty text or types skip all extractors", func(t *testing.T) {
		backend := &staticExtractor{name: "backend", mentions: []string{"Alice"}}
		composite, err := NewCompositeExtractor(nil, backend)
		require.NoError(t, err)

		entities, err := composite.Extract(ctx, "", types)
		require.NoError(t, err)
		assert.NotNil(t, entities)
		assert.Empty(t, entities)

		entities, err = composite.Extract(ctx, "some text", []string{})
		require.NoError(t, err)
		assert.Empty(t, entities)

		assert.Equal(t, 0, backend.calls, "Expected no backend to be invoked")
	})

	t.Run("Extractor without name", func(t *testing.T) {
		fn := ExtractorFunc(func(ctx context.Context, text string, entityTypes []string) ([]string, error) {
			return []string{"Zoo"}, nil
		})
		composite, err := NewCompositeExtractor(nil, fn)
		require.NoError(t, err)

		entities, err := composite.Extract(ctx, "some text", types)

		require.NoError(t, err)
		assert.Equal(t, []string{"Zoo"}, entities)
		assert.Equal(t, "composite(extractor_0)", composite.Name())
	})

	t.Run("Custom matcher", func(t *testing.T) {
		backend := &staticExtractor{name: "backend", mentions: []string{"Bob", "Rob"}}
		composite, err := NewCompositeExtractor(nil, backend)
		require.NoError(t, err)
		composite.WithMatcher(similarity.NewMatcher(similarity.Absolute(0)))

		entities, err := composite.Extract(ctx, "some text", types)

		require.NoError(t, err)
		assert.Equal(t, []string{"Bob", "Rob"}, entities)
	})

	t.Run("Cancelled context", func(t *testing.T) {
		backend := &staticExtractor{name: "backend", mentions: []string{"Alice"}}
		composite, err := NewCompositeExtractor(nil, backend)
		require.NoError(t, err)

		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		entities, err := composite.Extract(cancelled, "some text", types)

		assert.ErrorIs(t, err, context.Canceled)
		assert.Nil(t, entities)
		assert.Equal(t, 0, backend.calls)
	})
}
