package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNewWithWriter_Levels(t *testing.T) {
	tests := []struct {
		in   string
		want logrus.Level
	}{
		{"debug", logrus.DebugLevel},
		{"WARN", logrus.WarnLevel},
		{" error ", logrus.ErrorLevel},
		{"", logrus.InfoLevel},
		{"chatty", logrus.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			log := NewWithWriter(&bytes.Buffer{}, tt.in)
			if log.GetLevel() != tt.want {
				t.Errorf("level: got %v, want %v", log.GetLevel(), tt.want)
			}
		})
	}
}

func TestNewWithWriter_Output(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "info")
	log.WithField("backend", "onnx").Info("model loaded")
	log.Debug("hidden")

	out := buf.String()
	if !strings.Contains(out, "model loaded") || !strings.Contains(out, "backend=onnx") {
		t.Errorf("unexpected log output: %q", out)
	}
	if strings.Contains(out, "hidden") {
		t.Error("debug message written at info level")
	}
}
