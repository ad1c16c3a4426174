package logging

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

// setupTestDir points the package at a temporary directory and resets global state
func setupTestDir(t *testing.T) {
	t.Helper()

	tempDir := t.TempDir()

	origLogDir := logDir
	origInitErr := initErr
	origSessionID := sessionID
	origLevel := level.Level()

	logDir = tempDir
	initErr = nil
	initOnce = sync.Once{}
	sessionID = ""
	sessionIDOnce = sync.Once{}
	level.SetLevel(zapcore.DebugLevel)

	t.Cleanup(func() {
		logDir = origLogDir
		initErr = origInitErr
		initOnce = sync.Once{}
		sessionID = origSessionID
		sessionIDOnce = sync.Once{}
		level.SetLevel(origLevel)
	})
}

func readLog(t *testing.T, l *Logger) string {
	t.Helper()
	require.NoError(t, l.sugar.Sync())
	content, err := os.ReadFile(l.logPath)
	require.NoError(t, err)
	return string(content)
}

func TestNewLogger(t *testing.T) {
	setupTestDir(t)

	logger, err := NewLogger("test-component")
	require.NoError(t, err)
	defer logger.Close()

	assert.Equal(t, "test-component", logger.Component())
	assert.NotEmpty(t, logger.SessionID())
	assert.NotEmpty(t, logger.LogPath())

	_, statErr := os.Stat(logger.LogPath())
	assert.NoError(t, statErr)
}

func TestLoggerFormatting(t *testing.T) {
	setupTestDir(t)

	logger, err := NewLogger("test")
	require.NoError(t, err)
	defer logger.Close()

	logger.Printf("Test message %d", 123)
	logger.Debugf("Debug message")
	logger.Infof("Info message")
	logger.Warnf("Warning message")
	logger.Errorf("Error message")

	content := readLog(t, logger)
	for _, pattern := range []string{
		"[test] [INFO] Test message 123",
		"[test] [DEBUG] Debug message",
		"[test] [INFO] Info message",
		"[test] [WARN] Warning message",
		"[test] [ERROR] Error message",
	} {
		assert.Contains(t, content, pattern)
	}
	assert.Regexp(t, `(?m)^\[\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\.\d{3}\] \[test\] \[INFO\] Test message 123$`, content)
}

func TestVerbosityFiltering(t *testing.T) {
	setupTestDir(t)

	logger, err := NewLogger("filtered")
	require.NoError(t, err)
	defer logger.Close()

	require.NoError(t, SetVerbosity("quiet"))
	logger.Infof("hidden info")
	logger.Warnf("visible warning")

	content := readLog(t, logger)
	assert.NotContains(t, content, "hidden info")
	assert.Contains(t, content, "visible warning")

	assert.Error(t, SetVerbosity("chatty"))
}

func TestMultipleComponents(t *testing.T) {
	setupTestDir(t)

	logger1, err := NewLogger("component1")
	require.NoError(t, err)
	defer logger1.Close()

	logger2, err := NewLogger("component2")
	require.NoError(t, err)
	defer logger2.Close()

	// Same session, same file
	assert.Equal(t, logger1.SessionID(), logger2.SessionID())
	assert.Equal(t, logger1.LogPath(), logger2.LogPath())

	logger1.Printf("Message from component1")
	logger2.Printf("Message from component2")
	require.NoError(t, logger2.sugar.Sync())

	content := readLog(t, logger1)
	assert.Contains(t, content, "[component1]")
	assert.Contains(t, content, "[component2]")
}

func TestGetSessionID(t *testing.T) {
	setupTestDir(t)

	id1 := GetSessionID()
	id2 := GetSessionID()

	assert.Equal(t, id1, id2)
	assert.NotEmpty(t, id1)
}

func TestGetLogDirectory(t *testing.T) {
	setupTestDir(t)

	dir, err := GetLogDirectory()
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestLoggerClose(t *testing.T) {
	setupTestDir(t)

	logger, err := NewLogger("test")
	require.NoError(t, err)

	assert.NoError(t, logger.Close())
	// Close again should be safe
	assert.NoError(t, logger.Close())
}

func TestLogPathFormat(t *testing.T) {
	setupTestDir(t)

	logger, err := NewLogger("test")
	require.NoError(t, err)
	defer logger.Close()

	fileName := filepath.Base(logger.LogPath())
	assert.True(t, strings.HasSuffix(fileName, "-robotdriver.log"), fileName)

	sessionPart := strings.TrimSuffix(fileName, "-robotdriver.log")
	assert.Contains(t, sessionPart, "-")
}

func TestNopLogger(t *testing.T) {
	l := Nop()
	l.Infof("discarded %d", 1)
	assert.NoError(t, l.Close())
}
