package logging

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewLogger(t *testing.T) {
	t.Run("no file", func(t *testing.T) {
		l, err := NewLogger(LevelInfo, "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer l.Close()
		if l.GetLevel() != LevelInfo {
			t.Errorf("level = %d, want %d", l.GetLevel(), LevelInfo)
		}
		if l.file != nil {
			t.Error("file should be nil when no path given")
		}
	})

	t.Run("with file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "test.log")
		l, err := NewLogger(LevelDebug, path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer l.Close()
		if l.file == nil {
			t.Error("file should not be nil")
		}
		if l.fileLog == nil {
			t.Error("fileLog should not be nil")
		}
	})

	t.Run("invalid path", func(t *testing.T) {
		_, err := NewLogger(LevelInfo, "/nonexistent/dir/test.log")
		if err == nil {
			t.Error("expected error for invalid path")
		}
	})
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"silent":      LevelSilent,
		"error":       LevelError,
		"info":        LevelInfo,
		"verbose":     LevelVerbose,
		"debug":       LevelDebug,
		"unrecognized": LevelInfo,
		"":            LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestLoggerWritesToFileRegardlessOfStdoutLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	l, err := NewLogger(LevelInfo, path)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	defer l.Close()

	l.Info("hello %s", "world")
	l.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "hello world") {
		t.Errorf("log file missing expected line, got %q", data)
	}
}

func TestLoggerSilentSuppressesEverything(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	l, err := NewLogger(LevelSilent, path)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	defer l.Close()

	l.Error("should not appear")
	l.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if len(data) != 0 {
		t.Errorf("expected no output at LevelSilent, got %q", data)
	}
}

func TestSetLevelGetLevel(t *testing.T) {
	l, err := NewLogger(LevelError, "")
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	defer l.Close()

	l.SetLevel(LevelDebug)
	if l.GetLevel() != LevelDebug {
		t.Fatalf("GetLevel() = %d, want %d", l.GetLevel(), LevelDebug)
	}
}

func TestLogHexRespectsDebugLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	l, err := NewLogger(LevelVerbose, path)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	l.LogHex("payload", []byte{0xDE, 0xAD, 0xBE, 0xEF})
	l.Close()

	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), "de ad be ef") {
		t.Fatalf("LogHex should be suppressed below LevelDebug, got %q", data)
	}

	l2, err := NewLogger(LevelDebug, path)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	l2.LogHex("payload", []byte{0xDE, 0xAD, 0xBE, 0xEF})
	l2.Close()

	data2, _ := os.ReadFile(path)
	if !strings.Contains(string(data2), "de ad be ef") {
		t.Fatalf("expected hex dump at LevelDebug, got %q", data2)
	}
}

func TestLogDispatchSuccessAndFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	l, err := NewLogger(LevelVerbose, path)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	defer l.Close()

	l.LogDispatch("req1", "session:5", "0x4C", true, 0x00, nil)
	l.LogDispatch("req2", "session:5", "0x4C", false, 0x05, errors.New("tag not found"))
	l.Close()

	data, _ := os.ReadFile(path)
	out := string(data)
	if !strings.Contains(out, "req1") || !strings.Contains(out, "OK") {
		t.Errorf("missing success dispatch line: %q", out)
	}
	if !strings.Contains(out, "req2") || !strings.Contains(out, "FAILED") || !strings.Contains(out, "tag not found") {
		t.Errorf("missing failure dispatch line: %q", out)
	}
}

func TestMultiWriter(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	mw := NewMultiWriter(&buf1, &buf2)

	n, err := mw.Write([]byte("hello"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 5 {
		t.Errorf("n = %d, want 5", n)
	}
	if buf1.String() != "hello" || buf2.String() != "hello" {
		t.Errorf("both writers should receive the write, got %q and %q", buf1.String(), buf2.String())
	}
}

type errWriter struct{}

func (errWriter) Write(p []byte) (int, error) {
	return 0, errors.New("boom")
}

func TestMultiWriterStopsOnFirstError(t *testing.T) {
	var buf bytes.Buffer
	mw := NewMultiWriter(errWriter{}, &buf)

	if _, err := mw.Write([]byte("hi")); err == nil {
		t.Fatal("expected error from first writer")
	}
	if buf.Len() != 0 {
		t.Errorf("second writer should not have been reached after first error, got %q", buf.String())
	}
}
