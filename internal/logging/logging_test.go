package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/ppiankov/rflocate/internal/model"
)

func TestNewJSONRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(model.LoggingConfig{Level: "warn", Format: "json"}, &buf)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	log.Info(context.Background(), "dropped")
	log.Warn(context.Background(), "kept", String("method", "centroid"), Float("residual", 1.5))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 log line, got %d: %q", len(lines), buf.String())
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("expected JSON log line, got error: %v", err)
	}
	if entry["msg"] != "kept" {
		t.Errorf("expected msg 'kept', got %v", entry["msg"])
	}
	if entry["method"] != "centroid" {
		t.Errorf("expected method field, got %v", entry["method"])
	}
	if entry["residual"] != 1.5 {
		t.Errorf("expected residual 1.5, got %v", entry["residual"])
	}
	if _, ok := entry["trace_id"]; ok {
		t.Error("expected no trace_id outside a span")
	}
}

func TestNewRejectsUnknownSettings(t *testing.T) {
	if _, err := New(model.LoggingConfig{Level: "loud"}, nil); err == nil {
		t.Error("expected error for unknown level")
	}
	if _, err := New(model.LoggingConfig{Format: "xml"}, nil); err == nil {
		t.Error("expected error for unknown format")
	}
	if _, err := New(model.LoggingConfig{}, nil); err != nil {
		t.Errorf("expected empty config to default to text/info, got %v", err)
	}
}

func TestSpanIDsOnRecords(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(model.LoggingConfig{Level: "debug", Format: "json"}, &buf)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()
	ctx, span := tp.Tracer("test").Start(context.Background(), "locate")
	log.With(String("stage", "locate")).Debug(ctx, "estimator selected")
	span.End()

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("expected JSON log line, got error: %v", err)
	}
	if entry["trace_id"] != span.SpanContext().TraceID().String() {
		t.Errorf("expected trace_id %s, got %v", span.SpanContext().TraceID(), entry["trace_id"])
	}
	if entry["span_id"] != span.SpanContext().SpanID().String() {
		t.Errorf("expected span_id %s, got %v", span.SpanContext().SpanID(), entry["span_id"])
	}
	if entry["stage"] != "locate" {
		t.Errorf("expected stage field from With, got %v", entry["stage"])
	}
}

func TestWithRunLogger(t *testing.T) {
	var buf bytes.Buffer
	base, err := New(model.LoggingConfig{Level: "debug", Format: "text"}, &buf)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, log := WithRunLogger(context.Background(), base)
	id := RunIDFromContext(ctx)
	if id == "" {
		t.Fatal("expected run id on context")
	}

	log.Debug(ctx, "hello")
	if !strings.Contains(buf.String(), "run_id="+id) {
		t.Errorf("expected run_id in output, got %q", buf.String())
	}

	// Existing ids are reused
	ctx2, _ := WithRunLogger(ctx, nil)
	if got := RunIDFromContext(ctx2); got != id {
		t.Errorf("expected run id %s to be reused, got %s", id, got)
	}
}

func TestNoopLogger(t *testing.T) {
	log := Noop().With(String("k", "v"))
	if _, ok := log.(noopLogger); !ok {
		t.Errorf("expected noop logger from With, got %T", log)
	}
	log.Error(context.Background(), "dropped", Err(nil))
	if RunIDFromContext(context.Background()) != "" {
		t.Error("expected empty run id on a bare context")
	}
}
