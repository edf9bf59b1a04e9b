package log_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appLog "duesync/internal/log"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	appLog.SetOutput(&buf)
	appLog.SetJSON(true)
	appLog.SetLevel(appLog.LevelInfo)
	defer appLog.SetJSON(false)

	appLog.Debug("hidden")
	assert.Empty(t, buf.String())

	appLog.Info("visible", "record", 3, 42)
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "visible", line["msg"])
	assert.Equal(t, float64(3), line["record"])
	assert.NotContains(t, line, "42")
}

func TestErrorCarriesErr(t *testing.T) {
	var buf bytes.Buffer
	appLog.SetOutput(&buf)
	appLog.SetJSON(true)
	defer appLog.SetJSON(false)

	appLog.Error("create failed", errors.New("boom"), "summary", "Library Book Due: A")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "boom", line["error"])
	assert.Equal(t, "error", line["level"])
	assert.Equal(t, "Library Book Due: A", line["summary"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, appLog.LevelDebug, appLog.ParseLevel("debug"))
	assert.Equal(t, appLog.LevelWarn, appLog.ParseLevel("warning"))
	assert.Equal(t, appLog.LevelError, appLog.ParseLevel(" ERROR "))
	assert.Equal(t, appLog.LevelInfo, appLog.ParseLevel("loud"))
}
