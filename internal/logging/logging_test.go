package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSONAddsAppField(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithWriter(&buf, "sdqa-server", "debug", "json")
	require.NoError(t, err)
	assert.Equal(t, log.DebugLevel, logger.GetLevel())

	logger.WithField("scope", "CCD").Info("ratings written")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "sdqa-server", entry[AppField])
	assert.Equal(t, "CCD", entry["scope"])
	assert.Equal(t, "ratings written", entry["msg"])
}

func TestFieldFormatterKeepsEntryValue(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithWriter(&buf, "sdqactl", "info", "json")
	require.NoError(t, err)

	logger.WithField(AppField, "override").Info("x")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "override", entry[AppField])
}

func TestNewText(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithWriter(&buf, "sdqactl", "warn", "text")
	require.NoError(t, err)

	logger.Info("hidden")
	assert.Zero(t, buf.Len())
	logger.Warn("shown")
	assert.Contains(t, buf.String(), "app=sdqactl")
}

func TestNewRejectsBadInput(t *testing.T) {
	_, err := New("x", "loud", "text")
	assert.Error(t, err)
	_, err = New("x", "info", "xml")
	assert.Error(t, err)
}
