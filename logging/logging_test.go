package logging

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", DebugLevel, false},
		{"INFO", InfoLevel, false},
		{"", InfoLevel, false},
		{"warning", WarnLevel, false},
		{"error", ErrorLevel, false},
		{"verbose", InfoLevel, true},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestWriterLogger_FieldsAndLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf)

	component := logger.WithFields(Fields{"component": "peaks"})
	component.Warn("detection skipped", Fields{"frame": 3})

	line := buf.String()
	if !strings.Contains(line, "[WARN] detection skipped") {
		t.Errorf("missing message: %q", line)
	}
	if !strings.Contains(line, "component=peaks frame=3") {
		t.Errorf("fields not sorted/merged: %q", line)
	}

	buf.Reset()
	logger.SetLevel(ErrorLevel)
	component.Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("derived logger ignored root level: %q", buf.String())
	}

	component.Error(errors.New("boom"), "frame failed")
	if !strings.Contains(buf.String(), "frame failed: boom") {
		t.Errorf("error not rendered: %q", buf.String())
	}
}

func TestWithContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf)

	ctx := ContextWithFields(context.Background(), Fields{"session": "s1"})
	logger.WithContext(ctx).Info("started")

	if !strings.Contains(buf.String(), "session=s1") {
		t.Errorf("context fields missing: %q", buf.String())
	}
}
