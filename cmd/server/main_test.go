package main

import (
	"testing"
	"time"
)

func TestEnvDuration(t *testing.T) {
	const key = "ACCESSPANEL_AUTO_SCAN_INTERVAL_MS"
	fallback := 5 * time.Second

	tests := []struct {
		name  string
		value string
		floor time.Duration
		want  time.Duration
	}{
		{"unset", "", time.Millisecond, fallback},
		{"valid", "1500", time.Millisecond, 1500 * time.Millisecond},
		{"zero interval rejected", "0", time.Millisecond, fallback},
		{"negative rejected", "-10", time.Millisecond, fallback},
		{"not a number", "soon", time.Millisecond, fallback},
		{"zero delay allowed", "0", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(key, tt.value)
			if got := envDuration(key, fallback, tt.floor); got != tt.want {
				t.Errorf("envDuration() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" panel.local:8080, ,kiosk.local ")
	if len(got) != 2 || got[0] != "panel.local:8080" || got[1] != "kiosk.local" {
		t.Errorf("splitList() = %q", got)
	}
	if got := splitList(""); len(got) != 0 {
		t.Errorf("splitList(\"\") = %q, want empty", got)
	}
}
