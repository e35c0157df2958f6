package telemetry

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestInitTracing_NoEndpoint(t *testing.T) {
	p, err := InitTracing(context.Background(), "transitguard-test", "")
	if err != nil {
		t.Fatalf("unexpected: %v", err)
	}
	defer p.Shutdown(context.Background())

	if p.Exporter {
		t.Fatal("expected no exporter without endpoint")
	}
	_, span := otel.Tracer("test").Start(context.Background(), "op")
	if !span.SpanContext().IsValid() {
		t.Fatal("expected a recording span from the installed provider")
	}
	span.End()
}

func TestInitTracing_WithEndpoint(t *testing.T) {
	// the gRPC client connects lazily, so no collector is needed
	p, err := InitTracing(context.Background(), "transitguard-test", "localhost:4317")
	if err != nil {
		t.Fatalf("unexpected: %v", err)
	}
	if !p.Exporter {
		t.Fatal("expected exporter")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = p.Shutdown(ctx)
}

func TestShutdownNil(t *testing.T) {
	var p *Provider
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("unexpected: %v", err)
	}
}
