package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger provides structured logging for robotdriver components.
// All loggers of one process write to a session-specific file in
// ~/.robotdriver/logs/ unless another directory was set with SetLogDirectory.
//
// Output is filtered by the process-wide level (see SetVerbosity).
type Logger struct {
	sessionID string
	component string
	file      *os.File
	sugar     *zap.SugaredLogger
	logPath   string
	closeOnce sync.Once
}

var (
	// Global session ID for the current execution
	sessionID     string
	sessionIDOnce sync.Once

	// logDir is the directory where log files are stored
	logDir string

	// initOnce ensures directory initialization happens once
	initOnce sync.Once

	// initErr stores any error from directory initialization
	initErr error

	// level is shared by every logger so verbosity can change at runtime
	level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
)

// getSessionID returns or creates the session ID for this execution
func getSessionID() string {
	sessionIDOnce.Do(func() {
		sessionID = uuid.New().String()
	})
	return sessionID
}

// initLogDirectory ensures the log directory exists
func initLogDirectory() error {
	initOnce.Do(func() {
		if logDir == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				initErr = fmt.Errorf("failed to get home directory: %w", err)
				return
			}
			logDir = filepath.Join(homeDir, ".robotdriver", "logs")
		}

		if err := os.MkdirAll(logDir, 0750); err != nil {
			initErr = fmt.Errorf("failed to create log directory: %w", err)
			return
		}
	})
	return initErr
}

// SetLogDirectory overrides the log directory. It only has an effect when
// called before the first NewLogger.
func SetLogDirectory(dir string) {
	if dir != "" {
		logDir = dir
	}
}

// SetVerbosity maps a configured verbosity onto the shared log level.
// Valid values are quiet, normal, verbose and debug.
func SetVerbosity(verbosity string) error {
	switch strings.ToLower(verbosity) {
	case "quiet":
		level.SetLevel(zapcore.WarnLevel)
	case "", "normal":
		level.SetLevel(zapcore.InfoLevel)
	case "verbose", "debug":
		level.SetLevel(zapcore.DebugLevel)
	default:
		return fmt.Errorf("invalid verbosity: %s", verbosity)
	}
	return nil
}

// encoderConfig renders entries as "[ts] [component] [LEVEL] message". The
// console encoder always writes the level before the logger name, so the
// component rides along with the timestamp instead.
func encoderConfig(component string) zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:    "time",
		LevelKey:   "level",
		MessageKey: "msg",
		EncodeTime: func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString("[" + t.Format("2006-01-02 15:04:05.000") + "]")
			enc.AppendString("[" + component + "]")
		},
		EncodeLevel: func(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString("[" + l.CapitalString() + "]")
		},
		EncodeDuration:   zapcore.StringDurationEncoder,
		ConsoleSeparator: " ",
	}
}

func newSugar(component string, sink zapcore.WriteSyncer) *zap.SugaredLogger {
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig(component)), sink, level)
	return zap.New(core).Sugar()
}

// NewLogger creates a new logger for a specific component.
// The logger writes to <log dir>/<session-id>-robotdriver.log
//
// If the log directory cannot be created or the log file cannot be opened,
// it returns a fallback logger that writes to stderr along with the error.
// Callers can check the error to detect fallback mode and log warnings.
func NewLogger(component string) (*Logger, error) {
	if err := initLogDirectory(); err != nil {
		return newFallbackLogger(component, err), err
	}

	sessID := getSessionID()
	logPath := filepath.Join(logDir, fmt.Sprintf("%s-robotdriver.log", sessID))

	// Append mode: every component of the process shares the file
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		err = fmt.Errorf("failed to open log file: %w", err)
		return newFallbackLogger(component, err), err
	}

	return &Logger{
		sessionID: sessID,
		component: component,
		file:      file,
		sugar:     newSugar(component, zapcore.AddSync(file)),
		logPath:   logPath,
	}, nil
}

// newFallbackLogger creates a logger that writes to stderr when file logging fails
func newFallbackLogger(component string, err error) *Logger {
	l := &Logger{
		sessionID: getSessionID(),
		component: component,
		sugar:     newSugar(component, zapcore.Lock(os.Stderr)),
	}
	l.sugar.Warnf("failed to initialize file logging: %v", err)
	l.sugar.Warnf("falling back to stderr logging")
	return l
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{component: "nop", sugar: zap.NewNop().Sugar()}
}

// Printf logs a formatted message at info level
func (l *Logger) Printf(format string, v ...interface{}) {
	l.sugar.Infof(format, v...)
}

// Debugf logs a debug-level message
func (l *Logger) Debugf(format string, v ...interface{}) {
	l.sugar.Debugf(format, v...)
}

// Infof logs an info-level message
func (l *Logger) Infof(format string, v ...interface{}) {
	l.sugar.Infof(format, v...)
}

// Warnf logs a warning-level message
func (l *Logger) Warnf(format string, v ...interface{}) {
	l.sugar.Warnf(format, v...)
}

// Errorf logs an error-level message
func (l *Logger) Errorf(format string, v ...interface{}) {
	l.sugar.Errorf(format, v...)
}

// Component returns the component name the logger was created for
func (l *Logger) Component() string {
	return l.component
}

// SessionID returns the current session ID
func (l *Logger) SessionID() string {
	return l.sessionID
}

// LogPath returns the path to the log file
func (l *Logger) LogPath() string {
	return l.logPath
}

// Close flushes and closes the log file. Safe to call multiple times.
func (l *Logger) Close() error {
	var err error
	l.closeOnce.Do(func() {
		_ = l.sugar.Sync()
		if l.file != nil {
			err = l.file.Close()
		}
	})
	return err
}

// GetSessionID returns the current global session ID
func GetSessionID() string {
	return getSessionID()
}

// GetLogDirectory returns the directory where logs are stored
func GetLogDirectory() (string, error) {
	if err := initLogDirectory(); err != nil {
		return "", err
	}
	return logDir, nil
}
