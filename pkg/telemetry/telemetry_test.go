package telemetry

import (
	"context"
	"testing"
)

func TestInit_DisabledWithoutEndpoint(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")

	shutdown, err := Init(context.Background(), "hls-relay-test")
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown() error = %v", err)
	}
}

func TestSampleRate(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
	}{
		{"", 0.1},
		{"0.5", 0.5},
		{"1", 1},
		{"2", 0.1},
		{"-1", 0.1},
		{"abc", 0.1},
	}
	for _, tt := range tests {
		t.Setenv("OTEL_TRACE_SAMPLE_RATE", tt.raw)
		if got := SampleRate(); got != tt.want {
			t.Errorf("SampleRate() with %q = %v, want %v", tt.raw, got, tt.want)
		}
	}
}
