package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestLogLevelFromString(t *testing.T) {
	tests := []struct {
		level    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"invalid", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			if got := LogLevelFromString(tt.level); got != tt.expected {
				t.Errorf("LogLevelFromString(%q) = %v, want %v", tt.level, got, tt.expected)
			}
		})
	}
}

func TestNewLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "warn", Format: "json", Output: &buf})

	logger.Info("info message")
	logger.Warn("warn message")

	out := buf.String()
	if strings.Contains(out, "info message") {
		t.Error("info record written at warn level")
	}
	if !strings.Contains(out, "warn message") {
		t.Error("warn record missing")
	}
}

func TestNewLogger_Formats(t *testing.T) {
	var jsonBuf, textBuf, autoBuf bytes.Buffer
	NewLogger(LogConfig{Format: "json", Output: &jsonBuf}).Info("hello", "k", "v")
	NewLogger(LogConfig{Format: "text", Output: &textBuf}).Info("hello", "k", "v")
	// A buffer is not a terminal, so auto falls back to JSON.
	NewLogger(LogConfig{Format: "auto", Output: &autoBuf}).Info("hello", "k", "v")

	var record map[string]any
	if err := json.Unmarshal(jsonBuf.Bytes(), &record); err != nil {
		t.Fatalf("json output not parseable: %v", err)
	}
	if record["k"] != "v" {
		t.Errorf("record[k] = %v, want v", record["k"])
	}
	if !strings.Contains(textBuf.String(), "k=v") {
		t.Errorf("text output = %q", textBuf.String())
	}
	if err := json.Unmarshal(autoBuf.Bytes(), &record); err != nil {
		t.Errorf("auto output not JSON for non-terminal writer: %v", err)
	}
}

func TestNewLogger_RedactsSecrets(t *testing.T) {
	var buf bytes.Buffer
	token := "literal-secret-value"
	logger := NewLogger(LogConfig{Format: "json", Output: &buf, Secrets: []string{token}})

	logger.Info("connecting with "+token, "error", errors.New("bad token "+token), "plain", token)

	if strings.Contains(buf.String(), token) {
		t.Errorf("secret leaked into log output: %s", buf.String())
	}
	if !strings.Contains(buf.String(), redacted) {
		t.Error("expected redaction marker")
	}
}

func TestNewLogger_RedactsDiscordToken(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Format: "json", Output: &buf})
	tok := "MTIzNDU2Nzg5MDEyMzQ1Njc4OQ.GabcDE.abcdefghijklmnopqrstuvwxyz0123"

	logger.Info("session", "auth", tok)

	if strings.Contains(buf.String(), tok) {
		t.Errorf("discord token leaked: %s", buf.String())
	}
}

func TestContextHandler_AddsCorrelation(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Format: "json", Output: &buf})

	ctx := WithChannelID(WithPassID(context.Background(), "pass-1"), "chan-9")
	logger.InfoContext(ctx, "dispatch")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if record["pass_id"] != "pass-1" {
		t.Errorf("pass_id = %v", record["pass_id"])
	}
	if record["channel_id"] != "chan-9" {
		t.Errorf("channel_id = %v", record["channel_id"])
	}
	if PassID(ctx) != "pass-1" {
		t.Errorf("PassID() = %q", PassID(ctx))
	}
}
