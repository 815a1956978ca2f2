package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	Initialize(Config{Level: "debug", Format: "json", Output: &buf})

	WithContext(Fields{"request_id": "abc"}).Error("increment failed", errors.New("db down"), Fields{
		"review_id": "r1",
	})

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "error", line["level"])
	assert.Equal(t, "increment failed", line["message"])
	assert.Equal(t, "db down", line["error"])
	assert.Equal(t, "abc", line["request_id"])
	assert.Equal(t, "r1", line["review_id"])
	assert.Contains(t, line["caller"], "logger_test.go")
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Initialize(Config{Level: "warn", Format: "json", Output: &buf})
	defer Initialize(Config{Level: "info", Format: "json", Output: &bytes.Buffer{}})

	Info("hidden")
	Debug("hidden too", nil)
	assert.Zero(t, buf.Len())

	Warn("visible")
	assert.Contains(t, buf.String(), "visible")
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, "debug", parseLogLevel("debug").String())
	assert.Equal(t, "info", parseLogLevel("bogus").String())
	assert.Equal(t, "fatal", parseLogLevel("fatal").String())
}
