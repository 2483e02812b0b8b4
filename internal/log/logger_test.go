package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithComponentAnnotatesEntries(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "debug", Output: &buf, Service: "test"})

	l := WithComponent("bridge")
	l.Info().Str("app", "Simple").Msg("started")

	if buf.Len() == 0 {
		// Another test in this binary configured the logger first.
		t.Skip("logger already configured")
	}
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "bridge", entry["component"])
	assert.Equal(t, "test", entry["service"])
	assert.Equal(t, "Simple", entry["app"])
	assert.Equal(t, "started", entry["message"])
}
