package logger

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

var levelNames = map[LogLevel]string{
	DEBUG: "DEBUG",
	INFO:  "INFO",
	WARN:  "WARN",
	ERROR: "ERROR",
	FATAL: "FATAL",
}

type sink struct {
	file         *os.File
	filePath     string
	maxSizeBytes int64
	mu           sync.Mutex
}

var (
	currentLevel = INFO
	fileSink     = &sink{}
	mu           sync.RWMutex
)

type entry struct {
	Level     string                 `json:"level"`
	Timestamp string                 `json:"timestamp"`
	Component string                 `json:"component,omitempty"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

func SetLevel(level LogLevel) {
	mu.Lock()
	defer mu.Unlock()
	currentLevel = level
}

func GetLevel() LogLevel {
	mu.RLock()
	defer mu.RUnlock()
	return currentLevel
}

// EnableFileLogging mirrors console output to a JSON-lines file, rotating
// when the file would exceed maxSizeMB.
func EnableFileLogging(filePath string, maxSizeMB int) error {
	if maxSizeMB <= 0 {
		maxSizeMB = 20
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	fileSink.mu.Lock()
	defer fileSink.mu.Unlock()
	if fileSink.file != nil {
		fileSink.file.Close()
	}
	fileSink.file = file
	fileSink.filePath = filePath
	fileSink.maxSizeBytes = int64(maxSizeMB) * 1024 * 1024
	return nil
}

func DisableFileLogging() {
	fileSink.mu.Lock()
	defer fileSink.mu.Unlock()
	if fileSink.file != nil {
		fileSink.file.Close()
		fileSink.file = nil
		fileSink.filePath = ""
	}
}

func logMessage(level LogLevel, component, message string, fields map[string]interface{}) {
	if level < GetLevel() {
		return
	}

	e := entry{
		Level:     levelNames[level],
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Component: component,
		Message:   message,
		Fields:    fields,
	}

	fileSink.write(e)

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] [%s]", e.Timestamp, e.Level)
	if component != "" {
		fmt.Fprintf(&b, " %s:", component)
	}
	b.WriteString(" " + message)
	if len(fields) > 0 {
		parts := make([]string, 0, len(fields))
		for k, v := range fields {
			parts = append(parts, fmt.Sprintf("%s=%v", k, v))
		}
		fmt.Fprintf(&b, " {%s}", strings.Join(parts, ", "))
	}
	log.Println(b.String())

	if level == FATAL {
		os.Exit(1)
	}
}

func (s *sink) write(e entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return
	}

	line, err := json.Marshal(e)
	if err != nil {
		return
	}
	line = append(line, '\n')

	if s.maxSizeBytes > 0 {
		if info, err := s.file.Stat(); err == nil && info.Size()+int64(len(line)) > s.maxSizeBytes {
			s.rotate()
		}
	}
	if s.file == nil {
		return
	}
	if _, err := s.file.Write(line); err != nil {
		log.Println("Failed to write file log:", err)
	}
}

// rotate renames the active file with a timestamp suffix and reopens it.
// Caller holds s.mu.
func (s *sink) rotate() {
	s.file.Close()
	backup := fmt.Sprintf("%s.%s", s.filePath, time.Now().UTC().Format("20060102-150405"))
	if err := os.Rename(s.filePath, backup); err != nil {
		log.Println("Failed to rotate log file:", err)
	}
	file, err := os.OpenFile(s.filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		log.Println("Failed to reopen log file:", err)
		s.file = nil
		return
	}
	s.file = file
}

func Debug(message string) {
	logMessage(DEBUG, "", message, nil)
}

func DebugC(component, message string) {
	logMessage(DEBUG, component, message, nil)
}

func DebugCF(component, message string, fields map[string]interface{}) {
	logMessage(DEBUG, component, message, fields)
}

func Info(message string) {
	logMessage(INFO, "", message, nil)
}

func InfoC(component, message string) {
	logMessage(INFO, component, message, nil)
}

func InfoCF(component, message string, fields map[string]interface{}) {
	logMessage(INFO, component, message, fields)
}

func Warn(message string) {
	logMessage(WARN, "", message, nil)
}

func WarnC(component, message string) {
	logMessage(WARN, component, message, nil)
}

func WarnCF(component, message string, fields map[string]interface{}) {
	logMessage(WARN, component, message, fields)
}

func Error(message string) {
	logMessage(ERROR, "", message, nil)
}

func ErrorC(component, message string) {
	logMessage(ERROR, component, message, nil)
}

func ErrorCF(component, message string, fields map[string]interface{}) {
	logMessage(ERROR, component, message, fields)
}

func Fatal(message string) {
	logMessage(FATAL, "", message, nil)
}

func FatalCF(component, message string, fields map[string]interface{}) {
	logMessage(FATAL, component, message, fields)
}
