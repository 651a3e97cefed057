package helper

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewPrettyHandler(t *testing.T) {
	t.Run("Create PrettyHandler with default options", func(t *testing.T) {
		var buf bytes.Buffer
		handler := NewPrettyHandler(&buf, PrettyHandlerOptions{})

		assert.NotNil(t, handler, "Expected NewPrettyHandler to return a non-nil handler")
		assert.NotNil(t, handler.Handler, "Expected handler to have a non-nil Handler field")
		assert.NotNil(t, handler.l, "Expected handler to have a non-nil logger field")
	})

	t.Run("Level filtering follows the slog options", func(t *testing.T) {
		var buf bytes.Buffer
		handler := NewPrettyHandler(&buf, PrettyHandlerOptions{
			SlogOpts: slog.HandlerOptions{Level: slog.LevelWarn},
		})

		assert.False(t, handler.Enabled(context.Background(), slog.LevelInfo))
		assert.True(t, handler.Enabled(context.Background(), slog.LevelError))
	})
}

func TestPrettyHandlerHandle(t *testing.T) {
	ctx := context.Background()

	levels := []struct {
		level  slog.Level
		prefix string
	}{
		{slog.LevelDebug, "DEBUG:"},
		{slog.LevelInfo, "INFO:"},
		{slog.LevelWarn, "WARN:"},
		{slog.LevelError, "ERROR:"},
	}
	for _, tt := range levels {
		t.Run("Handle "+tt.prefix+" log", func(t *testing.T) {
			var buf bytes.Buffer
			handler := NewPrettyHandler(&buf, PrettyHandlerOptions{
				SlogOpts: slog.HandlerOptions{Level: slog.LevelDebug},
			})

			record := slog.NewRecord(time.Now(), tt.level, "extractor failed", 0)
			record.AddAttrs(slog.String("extractor", "regex"), slog.Int("count", 42))

			err := handler.Handle(ctx, record)

			assert.NoError(t, err, "Expected Handle to not return an error")
			output := buf.String()
			assert.Contains(t, output, tt.prefix, "Expected output to contain the level")
			assert.Contains(t, output, "extractor failed", "Expected output to contain the message")
			assert.Contains(t, output, `"extractor":"regex"`, "Expected output to contain the string attribute")
			assert.Contains(t, output, `"count":42`, "Expected output to contain the int attribute")
		})
	}

	t.Run("Handle log with no attributes", func(t *testing.T) {
		var buf bytes.Buffer
		handler := NewPrettyHandler(&buf, PrettyHandlerOptions{})

		record := slog.NewRecord(time.Now(), slog.LevelInfo, "simple message", 0)
		err := handler.Handle(ctx, record)

		assert.NoError(t, err)
		assert.Contains(t, buf.String(), "{}", "Expected output to contain empty JSON object for attributes")
	})

	t.Run("Handle log formats timestamp correctly", func(t *testing.T) {
		var buf bytes.Buffer
		handler := NewPrettyHandler(&buf, PrettyHandlerOptions{})

		record := slog.NewRecord(time.Now(), slog.LevelInfo, "time test", 0)
		err := handler.Handle(ctx, record)

		assert.NoError(t, err)
		assert.Regexp(t, `\[\d{2}:\d{2}:\d{2}\.\d{3}\]`, buf.String(), "Expected output to contain properly formatted timestamp")
	})
}

func TestNewLogger(t *testing.T) {
	t.Run("Valid call NewLogger", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(&buf, slog.LevelInfo)

		logger.Debug("hidden")
		logger.Info("visible", slog.String("file_id", "doc-1"))

		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "visible")
		assert.Contains(t, buf.String(), "doc-1")
	})
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLogLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLogLevel("WARN"))
	assert.Equal(t, slog.LevelInfo, ParseLogLevel("verbose"))
}
