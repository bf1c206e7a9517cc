package logutil

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestTee(t *testing.T) {
	var console, file bytes.Buffer
	log := slog.New(Tee(NewHandler(&console, slog.LevelDebug), NewHandler(&file, slog.LevelInfo)))

	log.Debug("queue filling", "fraction", 0.5)
	log.Info("Step 0", "loss", 2.3)

	if !strings.Contains(console.String(), "queue filling") || !strings.Contains(console.String(), "Step 0") {
		t.Errorf("console missed records:\n%s", console.String())
	}
	if strings.Contains(file.String(), "queue filling") {
		t.Errorf("file must not receive debug records:\n%s", file.String())
	}
	if !strings.Contains(file.String(), "source=logutil_test.go:") {
		t.Errorf("source should be shortened:\n%s", file.String())
	}
}

func TestTraceLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&buf, LevelTrace)
	log.Log(context.TODO(), LevelTrace, "batch")
	if !strings.Contains(buf.String(), "level=TRACE") {
		t.Errorf("unexpected output %q", buf.String())
	}
}
