package otel

import (
	"context"
	"testing"
)

func TestParseHeaders(t *testing.T) {
	got := ParseHeaders(" authorization = Bearer abc ,broken,=nokey, x-tenant=cantor")
	if len(got) != 2 {
		t.Fatalf("unexpected headers %v", got)
	}
	if got["authorization"] != "Bearer abc" || got["x-tenant"] != "cantor" {
		t.Fatalf("unexpected headers %v", got)
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4318")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "false")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.25")
	t.Setenv("OTEL_SDK_DISABLED", "")
	cfg := ConfigFromEnv("vaultd", "staging")
	if cfg.Endpoint != "collector:4318" || cfg.Insecure {
		t.Fatalf("unexpected exporter config %+v", cfg)
	}
	if cfg.SampleRatio != 0.25 {
		t.Fatalf("unexpected sample ratio %v", cfg.SampleRatio)
	}
	if cfg.Disabled {
		t.Fatalf("telemetry should be enabled")
	}

	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "7")
	if ratio := ConfigFromEnv("vaultd", "").SampleRatio; ratio != 1 {
		t.Fatalf("out of range ratio must fall back to 1, got %v", ratio)
	}
}

func TestInitDisabledAndValidation(t *testing.T) {
	if _, err := Init(context.Background(), Config{}); err == nil {
		t.Fatalf("expected missing service name to fail")
	}
	shutdown, err := Init(context.Background(), Config{ServiceName: "vaultd", Disabled: true})
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
