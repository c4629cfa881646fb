package logging

import (
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{"debug", zapcore.DebugLevel, false},
		{"INFO", zapcore.InfoLevel, false},
		{"warning", zapcore.WarnLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"loud", zapcore.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestInitialize_SilentByDefault(t *testing.T) {
	t.Setenv(LogLevelEnvVar, "")
	if err := Initialize(""); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if GetLogger().Core().Enabled(zapcore.ErrorLevel) {
		t.Error("expected silent logger when no level is set")
	}
}

func TestLogWords(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := zap.New(core)

	LogWords(l, "loading image", 0x1fffda0, []uint32{0x47702005, 0x46c0})

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["address"] != "0x01fffda0" {
		t.Errorf("address = %v", fields["address"])
	}
	if fields["hex"] != "47702005 000046c0" {
		t.Errorf("hex = %v", fields["hex"])
	}
}

func TestLogWords_Truncates(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	words := make([]uint32, 100)

	LogWords(zap.New(core), "big", 0, words)

	hex, _ := logs.All()[0].ContextMap()["hex"].(string)
	if !strings.HasSuffix(hex, "...") {
		t.Errorf("expected truncated dump, got %q", hex)
	}
}

func TestLogRawBytes_SkippedAboveDebug(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)

	LogRawBytes(zap.New(core), "image", []byte{1, 2, 3})

	if logs.Len() != 0 {
		t.Errorf("expected no entries at info level, got %d", logs.Len())
	}
}
