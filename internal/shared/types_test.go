package shared

import (
	"strings"
	"testing"
	"time"
)

func TestNewID(t *testing.T) {
	id := NewID("rec_")
	if !strings.HasPrefix(id, "rec_") {
		t.Errorf("expected prefix 'rec_', got '%s'", id)
	}
	if len(id) != len("rec_")+32 {
		t.Errorf("expected 32 hex chars after prefix, got length %d", len(id))
	}

	other := NewID("rec_")
	if id == other {
		t.Error("expected unique ids")
	}
}

func TestNormalizeBackoff_Defaults(t *testing.T) {
	cfg := NormalizeBackoff(BackoffConfig{})
	if cfg.Initial != 500*time.Millisecond {
		t.Errorf("expected default initial 500ms, got %v", cfg.Initial)
	}
	if cfg.MaxAttempts != 3 {
		t.Errorf("expected default max attempts 3, got %d", cfg.MaxAttempts)
	}
	if cfg.MaxDelay != 8*time.Second {
		t.Errorf("expected default max delay 8s, got %v", cfg.MaxDelay)
	}
}

func TestNormalizeBackoff_PreservesExplicit(t *testing.T) {
	in := BackoffConfig{Initial: time.Second, MaxDelay: 4 * time.Second, MaxAttempts: 5}
	out := NormalizeBackoff(in)
	if out != in {
		t.Errorf("expected explicit config preserved, got %+v", out)
	}
}

func TestBackoffConfig_DelayFor(t *testing.T) {
	cfg := BackoffConfig{Initial: 100 * time.Millisecond, MaxDelay: 350 * time.Millisecond, MaxAttempts: 5}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 0},
		{2, 100 * time.Millisecond},
		{3, 200 * time.Millisecond},
		{4, 350 * time.Millisecond},
		{5, 350 * time.Millisecond},
	}

	for _, tt := range tests {
		if got := cfg.DelayFor(tt.attempt); got != tt.want {
			t.Errorf("DelayFor(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}
