package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labqc-mcp-server/internal/domain"
)

func TestNew_JSON(t *testing.T) {
	logger, err := New(domain.LoggingConfig{Level: "debug", Format: "json", Output: "stdout"})
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())

	var buf bytes.Buffer
	logger.SetOutput(&buf)
	logger.WithField("document_id", "doc-1").Info("Document processed")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "Document processed", entry["message"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "doc-1", entry["document_id"])
	assert.Contains(t, entry, "timestamp")
}

func TestNew_TextAndBadLevel(t *testing.T) {
	logger, err := New(domain.LoggingConfig{Level: "loud", Format: "text", Output: "stderr"})
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, logger.Formatter)
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labqc.log")
	logger, err := New(domain.LoggingConfig{Level: "info", Output: path})
	require.NoError(t, err)

	logger.Info("hello")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
}

func TestNew_BadFile(t *testing.T) {
	_, err := New(domain.LoggingConfig{Output: filepath.Join(t.TempDir(), "missing", "x.log")})
	assert.Error(t, err)
}

func TestDiscard(t *testing.T) {
	assert.Equal(t, logrus.FatalLevel, Discard().GetLevel())
}
