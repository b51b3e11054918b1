// Package logging provides the leveled logger used across the simulator.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
)

// Level is a logging verbosity level.
type Level int

const (
	LevelSilent Level = iota
	LevelError
	LevelInfo
	LevelVerbose
	LevelDebug
)

// ParseLevel maps a config string to a Level, defaulting to LevelInfo for
// anything unrecognized.
func ParseLevel(s string) Level {
	switch s {
	case "silent":
		return LevelSilent
	case "error":
		return LevelError
	case "verbose":
		return LevelVerbose
	case "debug":
		return LevelDebug
	default:
		return LevelInfo
	}
}

// Logger is a small leveled logger writing to stdout/stderr and an
// optional log file.
type Logger struct {
	mu      sync.Mutex
	level   Level
	file    *os.File
	fileLog *log.Logger
	stdout  *log.Logger
	stderr  *log.Logger
}

// NewLogger creates a logger at the given level. If logFile is non-empty,
// every line that passes the level filter is also written there, including
// info lines that are not echoed to stdout below LevelVerbose.
func NewLogger(level Level, logFile string) (*Logger, error) {
	l := &Logger{
		level:  level,
		stdout: log.New(os.Stdout, "", 0),
		stderr: log.New(os.Stderr, "", 0),
	}

	if logFile != "" {
		file, err := os.Create(logFile)
		if err != nil {
			return nil, fmt.Errorf("create log file: %w", err)
		}
		l.file = file
		l.fileLog = log.New(file, "", log.LstdFlags)
	}

	return l, nil
}

// Close flushes and closes the log file, if any.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// Error logs an error-level message.
func (l *Logger) Error(format string, v ...interface{}) {
	if l.level >= LevelError {
		l.write(fmt.Sprintf("ERROR: "+format, v...), true)
	}
}

// Info logs an info-level message.
func (l *Logger) Info(format string, v ...interface{}) {
	if l.level >= LevelInfo {
		l.write(fmt.Sprintf("INFO: "+format, v...), false)
	}
}

// Verbose logs a verbose-level message.
func (l *Logger) Verbose(format string, v ...interface{}) {
	if l.level >= LevelVerbose {
		l.write(fmt.Sprintf("VERBOSE: "+format, v...), false)
	}
}

// Debug logs a debug-level message.
func (l *Logger) Debug(format string, v ...interface{}) {
	if l.level >= LevelDebug {
		l.write(fmt.Sprintf("DEBUG: "+format, v...), false)
	}
}

func (l *Logger) write(msg string, isError bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.fileLog != nil {
		l.fileLog.Println(msg)
	}

	if isError {
		l.stderr.Println(msg)
	} else if l.level >= LevelVerbose {
		l.stdout.Println(msg)
	}
}

// SetLevel changes the logger's verbosity at runtime.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// GetLevel returns the logger's current verbosity.
func (l *Logger) GetLevel() Level {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

// LogDispatch logs the outcome of one dispatched CIP service call.
func (l *Logger) LogDispatch(reqID, target, serviceCode string, success bool, status uint8, err error) {
	var statusStr string
	if success {
		statusStr = "OK"
	} else {
		statusStr = "FAILED"
	}

	var errStr string
	if err != nil {
		errStr = fmt.Sprintf(" - error: %v", err)
	}

	msg := fmt.Sprintf("[%s] %s on %s (service: %s, status: 0x%02X)%s",
		reqID, statusStr, target, serviceCode, status, errStr)

	if success {
		l.Verbose(msg)
	} else {
		l.Info(msg)
	}
}

// LogStartup logs the server's startup banner.
func (l *Logger) LogStartup(name, listenIP string, tcpPort, udpPort int, configPath string) {
	l.Info("Starting %s", name)
	l.Verbose("  Listen: %s:%d (TCP), %s:%d (UDP)", listenIP, tcpPort, listenIP, udpPort)
	l.Verbose("  Config: %s", configPath)
}

// LogHex hex-dumps data at debug level, one space-separated byte per group.
func (l *Logger) LogHex(label string, data []byte) {
	if l.level < LevelDebug {
		return
	}
	hexStr := fmt.Sprintf("%x", data)
	var formatted string
	for i := 0; i < len(hexStr); i += 2 {
		if i > 0 {
			formatted += " "
		}
		if i+2 <= len(hexStr) {
			formatted += hexStr[i : i+2]
		} else {
			formatted += hexStr[i:]
		}
	}
	l.Debug("%s: %s", label, formatted)
}

// MultiWriter fans writes out to several io.Writers, stopping at the first
// writer that returns an error.
type MultiWriter struct {
	writers []io.Writer
}

// NewMultiWriter builds a MultiWriter over the given writers.
func NewMultiWriter(writers ...io.Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

func (m *MultiWriter) Write(p []byte) (n int, err error) {
	for _, w := range m.writers {
		n, err = w.Write(p)
		if err != nil {
			return n, err
		}
	}
	return len(p), nil
}
