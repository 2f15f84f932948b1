package logger

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

// viper keys, duplicated from constants to keep this package dependency free
const (
	configFolderKey = "CONFIG_FOLDER"
	logLevelKey     = "LOG_LEVEL"
	logFileKey      = "LOG_FILE"
)

// logMessageType matches types.LogMessage
const logMessageType = "LOG"

var (
	// every line on messageOut is one JSON message
	messageOut io.Writer = os.Stdout
	outMu      sync.Mutex
)

var logger = zerolog.New(envelopeWriter{}).With().Timestamp().Logger().Level(zerolog.InfoLevel)

// envelopeWriter wraps every zerolog event into a LOG message on messageOut
type envelopeWriter struct{}

func (envelopeWriter) Write(p []byte) (int, error) {
	line := make([]byte, 0, len(p)+32)
	line = append(line, `{"type":"`+logMessageType+`","log":`...)
	line = append(line, bytes.TrimSpace(p)...)
	line = append(line, '}')
	if err := writeLine(line); err != nil {
		return 0, err
	}
	return len(p), nil
}

func writeLine(line []byte) error {
	outMu.Lock()
	defer outMu.Unlock()
	_, err := messageOut.Write(append(line, '\n'))
	return err
}

// Init configures the global logger: LOG messages on stdout and, when a
// config folder or log file is set, a rotated JSON file.
func Init() {
	writers := []io.Writer{envelopeWriter{}}

	logFile := viper.GetString(logFileKey)
	if logFile == "" && viper.GetString(configFolderKey) != "" {
		logFile = filepath.Join(viper.GetString(configFolderKey), "logs", fmt.Sprintf("sync_%s.log", time.Now().UTC().Format("2006-01-02_15-04-05")))
	}
	if logFile != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    100, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		})
	}

	logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Logger().
		Level(parseLevel(viper.GetString(logLevelKey)))
}

// SetOutput redirects messages and logs, used by tests
func SetOutput(w io.Writer, level string) {
	outMu.Lock()
	messageOut = w
	outMu.Unlock()
	logger = zerolog.New(envelopeWriter{}).With().Timestamp().Logger().Level(parseLevel(level))
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Logger exposes the underlying zerolog logger for structured fields
func Logger() *zerolog.Logger {
	return &logger
}

func Info(v ...any) {
	logger.Info().Msg(fmt.Sprint(v...))
}

func Infof(format string, v ...any) {
	logger.Info().Msgf(format, v...)
}

func Debug(v ...any) {
	logger.Debug().Msg(fmt.Sprint(v...))
}

// Debugf skips formatting entirely when debug is disabled
func Debugf(format string, v ...any) {
	if e := logger.Debug(); e.Enabled() {
		e.Msgf(format, v...)
	}
}

func Warn(v ...any) {
	logger.Warn().Msg(fmt.Sprint(v...))
}

func Warnf(format string, v ...any) {
	logger.Warn().Msgf(format, v...)
}

func Error(v ...any) {
	logger.Error().Msg(fmt.Sprint(v...))
}

func Errorf(format string, v ...any) {
	logger.Error().Msgf(format, v...)
}

func Fatal(v ...any) {
	logger.Fatal().Msg(fmt.Sprint(v...))
}

func Fatalf(format string, v ...any) {
	logger.Fatal().Msgf(format, v...)
}

// WriteMessage prints a protocol message as one JSON line on stdout
func WriteMessage(message any) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %s", err)
	}
	return writeLine(data)
}

// LogMessage is WriteMessage for callers without an error path
func LogMessage(message any) {
	if err := WriteMessage(message); err != nil {
		Error(err)
	}
}
