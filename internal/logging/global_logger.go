// Package logging configures the process-wide logrus logger and provides gin middlewares
// that route HTTP access and panic logs through it.
package logging

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	logFileName   = "interaction-logs.log"
	logMaxSizeMB  = 10
	logMaxBackups = 5
	logMaxAgeDays = 14
)

var (
	setupOnce sync.Once

	outputMu   sync.Mutex
	fileWriter *lumberjack.Logger
)

// LogFormatter renders entries as "[time] [level] [file:line] message key=value ...".
type LogFormatter struct{}

// Format implements log.Formatter.
func (f *LogFormatter) Format(entry *log.Entry) ([]byte, error) {
	var b *bytes.Buffer
	if entry.Buffer != nil {
		b = entry.Buffer
	} else {
		b = &bytes.Buffer{}
	}

	timestamp := entry.Time.Format("2006-01-02 15:04:05")
	level := entry.Level.String()
	if entry.Caller != nil {
		fmt.Fprintf(b, "[%s] [%s] [%s:%d] %s", timestamp, level, filepath.Base(entry.Caller.File), entry.Caller.Line, strings.TrimRight(entry.Message, "\n"))
	} else {
		fmt.Fprintf(b, "[%s] [%s] %s", timestamp, level, strings.TrimRight(entry.Message, "\n"))
	}

	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(b, " %s=%v", k, entry.Data[k])
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}

// SetupBaseLogger configures the shared logrus instance. Safe to call more than once.
func SetupBaseLogger() {
	setupOnce.Do(func() {
		log.SetOutput(os.Stdout)
		log.SetReportCaller(true)
		log.SetFormatter(&LogFormatter{})
	})
}

// SetDebug switches the global level between debug and info.
func SetDebug(debug bool) {
	if debug {
		log.SetLevel(log.DebugLevel)
		return
	}
	log.SetLevel(log.InfoLevel)
}

// ConfigureLogOutput switches the global log output between stdout and a rotating file in logDir.
func ConfigureLogOutput(loggingToFile bool, logDir string) error {
	outputMu.Lock()
	defer outputMu.Unlock()

	if !loggingToFile {
		closeFileWriterLocked()
		log.SetOutput(os.Stdout)
		return nil
	}

	if logDir == "" {
		logDir = "logs"
	}
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	path := filepath.Join(logDir, logFileName)
	if fileWriter != nil && fileWriter.Filename == path {
		return nil
	}
	closeFileWriterLocked()
	fileWriter = &lumberjack.Logger{
		Filename:   path,
		MaxSize:    logMaxSizeMB,
		MaxBackups: logMaxBackups,
		MaxAge:     logMaxAgeDays,
		Compress:   true,
	}
	log.SetOutput(io.MultiWriter(os.Stdout, fileWriter))
	return nil
}

// Close releases the log file, if any.
func Close() {
	outputMu.Lock()
	defer outputMu.Unlock()
	closeFileWriterLocked()
	log.SetOutput(os.Stdout)
}

func closeFileWriterLocked() {
	if fileWriter == nil {
		return
	}
	_ = fileWriter.Close()
	fileWriter = nil
}
