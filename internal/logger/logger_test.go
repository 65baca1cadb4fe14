package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/liliang-cn/pdfqa/internal/config"
)

func TestFileCoreWritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pdfqa.log")
	log, err := NewWithConsole(config.LogConfig{Level: "info", File: path, MaxSizeMB: 1}, nil)
	require.NoError(t, err)

	log.Info("Document processed", zap.String("document", "report.pdf"))
	log.Debug("dropped below level")
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "Document processed", entry["msg"])
	assert.Equal(t, "report.pdf", entry["document"])
	assert.Contains(t, entry, "timestamp")
}

func TestConsoleCore(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithConsole(config.LogConfig{Level: "debug", Production: true}, &buf)
	require.NoError(t, err)

	log.Debug("hello")
	assert.Contains(t, buf.String(), `"msg":"hello"`)
}

func TestInvalidLevel(t *testing.T) {
	_, err := NewWithConsole(config.LogConfig{Level: "loud"}, nil)
	assert.Error(t, err)
}

func TestNoCoresIsNop(t *testing.T) {
	log, err := NewWithConsole(config.LogConfig{Level: "info"}, nil)
	require.NoError(t, err)
	assert.NotNil(t, log)
}
