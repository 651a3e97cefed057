package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadata(t *testing.T) {
	t.Run("Valid call Value with nil metadata", func(t *testing.T) {
		var m Metadata

		value, err := m.Value()

		require.NoError(t, err)
		assert.Equal(t, []byte("{}"), value)
	})

	t.Run("Valid call Value and Scan roundtrip", func(t *testing.T) {
		m := Metadata{"num_chunks": 3, "source": "upload"}

		value, err := m.Value()
		require.NoError(t, err)

		var scanned Metadata
		err = scanned.Scan(value)
		require.NoError(t, err)
		assert.Equal(t, float64(3), scanned["num_chunks"], "JSON numbers become float64")
		assert.Equal(t, "upload", scanned["source"])
	})

	t.Run("Valid call Scan with string and nil", func(t *testing.T) {
		var m Metadata
		require.NoError(t, m.Scan(`{"a":"b"}`))
		assert.Equal(t, "b", m["a"])

		require.NoError(t, m.Scan(nil))
		assert.Empty(t, m)
	})

	t.Run("Invalid call Scan with unsupported type", func(t *testing.T) {
		var m Metadata
		err := m.Scan(42)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported metadata type int")
	})

	t.Run("Invalid call Scan with malformed JSON", func(t *testing.T) {
		var m Metadata
		assert.Error(t, m.Scan([]byte("{not json")))
	})
}
