package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductionLoggerEmitsJSONWithAppName(t *testing.T) {
	var buf bytes.Buffer
	logger := newWithOutput(&buf, "attendance-api", "production", "debug")

	logger.WithField("session_id", "s-1").Info("session opened")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "attendance-api", line["app"])
	assert.Equal(t, "s-1", line["session_id"])
	assert.Equal(t, "session opened", line["msg"])
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
}

func TestInvalidLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := newWithOutput(&buf, "attendance-api", "dev", "loud")

	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
	assert.Contains(t, buf.String(), "invalid LOG_LEVEL")
}
