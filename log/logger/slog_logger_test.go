package logger

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hatlonely/sorm/log/writer"
)

func TestNewSLogWithOptions(t *testing.T) {
	tests := []struct {
		name    string
		options *SLogOptions
		wantErr bool
	}{
		{
			name:    "nil options",
			options: nil,
			wantErr: true,
		},
		{
			name:    "default console output",
			options: &SLogOptions{Level: "info"},
		},
		{
			name: "json to stderr",
			options: &SLogOptions{
				Level:  "debug",
				Format: "json",
				Output: writer.Options{Type: "console", Target: "stderr"},
			},
		},
		{
			name:    "invalid level",
			options: &SLogOptions{Level: "invalid"},
			wantErr: true,
		},
		{
			name:    "invalid format",
			options: &SLogOptions{Level: "info", Format: "xml"},
			wantErr: true,
		},
		{
			name: "invalid writer",
			options: &SLogOptions{
				Output: writer.Options{Type: "file"},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := NewSLogWithOptions(tt.options)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewSLogWithOptions() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && l == nil {
				t.Error("NewSLogWithOptions() returned nil logger without error")
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		level   string
		wantErr bool
	}{
		{"debug", false},
		{"info", false},
		{"warn", false},
		{"warning", false},
		{"error", false},
		{"DEBUG", false}, // 大小写不敏感
		{"invalid", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			_, err := parseLevel(tt.level)
			if (err != nil) != tt.wantErr {
				t.Errorf("parseLevel(%q) error = %v, wantErr %v", tt.level, err, tt.wantErr)
			}
		})
	}
}

func TestSLog_FileOutput(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "sql.log")

	l, err := NewSLogWithOptions(&SLogOptions{
		Level:  "debug",
		Format: "json",
		Output: writer.Options{Type: "file", File: writer.FileWriterOptions{Path: logFile}},
		Fields: map[string]any{"component": "executor"},
	})
	if err != nil {
		t.Fatalf("NewSLogWithOptions() error = %v", err)
	}

	l.Debug("executing statement", "statement", "SELECT * FROM Person")
	l.With("table", "Person").InfoContext(context.Background(), "table created")
	l.WithGroup("tx").Warn("rollback")
	if err := l.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	content, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	for _, want := range []string{
		`"msg":"executing statement"`,
		`"statement":"SELECT * FROM Person"`,
		`"component":"executor"`,
		`"table":"Person"`,
		`"msg":"rollback"`,
	} {
		if !strings.Contains(string(content), want) {
			t.Errorf("log output missing %s:\n%s", want, content)
		}
	}
}

func TestSLog_LevelFilter(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "filtered.log")

	l, err := NewSLogWithOptions(&SLogOptions{
		Level:  "warn",
		Output: writer.Options{Type: "file", File: writer.FileWriterOptions{Path: logFile}},
	})
	if err != nil {
		t.Fatalf("NewSLogWithOptions() error = %v", err)
	}
	l.Debug("hidden debug")
	l.Info("hidden info")
	l.Error("visible error")
	l.Close()

	content, _ := os.ReadFile(logFile)
	if strings.Contains(string(content), "hidden") {
		t.Errorf("messages below warn should be filtered:\n%s", content)
	}
	if !strings.Contains(string(content), "visible error") {
		t.Errorf("error message missing:\n%s", content)
	}
}
