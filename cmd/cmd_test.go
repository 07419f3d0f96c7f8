package cmd

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/feedpress/apiserver/internal/mq"
)

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"info":  slog.LevelInfo,
		"":      slog.LevelInfo,
		"loud":  slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLogLevel(in); got != want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLogEvent(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	handler := logEvent(slog.New(slog.NewJSONHandler(&buf, nil)))

	err := handler(context.Background(), mq.Message{
		ID:   "m-1",
		Data: []byte(`{"action":"created","postId":"7","creatorId":"3","at":"2024-01-01T12:00:00Z"}`),
	})
	if err != nil {
		t.Fatalf("handler returned %v", err)
	}
	if !strings.Contains(buf.String(), `"postId":"7"`) || !strings.Contains(buf.String(), `"action":"created"`) {
		t.Errorf("unexpected log output %s", buf.String())
	}

	buf.Reset()
	if err := handler(context.Background(), mq.Message{ID: "m-2", Data: []byte("not json")}); err != nil {
		t.Fatalf("undecodable events must be acked, got %v", err)
	}
	if !strings.Contains(buf.String(), "undecodable event") {
		t.Errorf("expected warning, got %s", buf.String())
	}
}
