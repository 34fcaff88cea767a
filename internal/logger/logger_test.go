package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

// TestLevelFiltering verifies that events below the level are dropped
func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, zerolog.InfoLevel)

	log.Debug().Msg("hidden")
	if buf.Len() != 0 {
		t.Errorf("Expected no output for debug event, got %q", buf.String())
	}

	log.Info().Str("component", "correction").Msg("visible")
	var event map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &event); err != nil {
		t.Fatalf("Expected a JSON event, got %q: %v", buf.String(), err)
	}
	if event["component"] != "correction" || event["message"] != "visible" {
		t.Errorf("Unexpected event: %v", event)
	}
	if _, ok := event["time"]; !ok {
		t.Errorf("Expected a timestamp field in %v", event)
	}
}

// TestConsoleLevel verifies the verbose switch
func TestConsoleLevel(t *testing.T) {
	if got := NewConsole(false).GetLevel(); got != zerolog.InfoLevel {
		t.Errorf("Expected info level, got %v", got)
	}
	if got := NewConsole(true).GetLevel(); got != zerolog.DebugLevel {
		t.Errorf("Expected debug level, got %v", got)
	}
}
