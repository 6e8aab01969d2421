package tracing

import (
	"context"
	"testing"

	"mercator-hq/mailrules/pkg/config"
	"mercator-hq/mailrules/pkg/rules"
	"mercator-hq/mailrules/pkg/rules/engine"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name        string
		cfg         *config.TracingConfig
		wantErr     bool
		wantEnabled bool
	}{
		{"nil config", nil, true, false},
		{"disabled", &config.TracingConfig{}, false, false},
		{"enabled without exporter", &config.TracingConfig{Enabled: true, ServiceName: "test", SampleRatio: 1}, false, true},
		{"invalid ratio", &config.TracingConfig{Enabled: true, SampleRatio: 2}, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracer, err := New(tt.cfg, "test")
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			defer tracer.Shutdown(context.Background())
			if tracer.Enabled() != tt.wantEnabled {
				t.Errorf("Enabled() = %v, want %v", tracer.Enabled(), tt.wantEnabled)
			}
		})
	}
}

func TestTracer_EvaluatorSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tracer, err := New(&config.TracingConfig{Enabled: true, ServiceName: "test", SampleRatio: 1}, "test",
		sdktrace.WithSpanProcessor(recorder))
	if err != nil {
		t.Fatal(err)
	}
	defer tracer.Shutdown(context.Background())

	evaluator, err := engine.NewEvaluator(nil, nil, engine.WithTracer(tracer.Tracer()))
	if err != nil {
		t.Fatal(err)
	}

	from := "news@"
	_, err = evaluator.FindPotentialMatchingRules(context.Background(), engine.Input{
		UserID:  "u1",
		Message: &rules.Message{ID: "m1", From: "news@letters.io"},
		Rules:   []*rules.Rule{{ID: "r1", UserID: "u1", From: &from}},
	})
	if err != nil {
		t.Fatal(err)
	}

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("ended spans = %d, want 1", len(spans))
	}
	if spans[0].Name() != "rules.FindPotentialMatchingRules" {
		t.Errorf("span name = %q", spans[0].Name())
	}
}

func TestCreateSampler(t *testing.T) {
	for _, ratio := range []float64{0, 0.25, 1} {
		if _, err := createSampler(ratio); err != nil {
			t.Errorf("createSampler(%v) error = %v", ratio, err)
		}
	}
	if _, err := createSampler(-0.1); err == nil {
		t.Error("createSampler(-0.1) should fail")
	}
}

func TestTraceID_NoSpan(t *testing.T) {
	if got := TraceID(context.Background()); got != "" {
		t.Errorf("TraceID() = %q, want empty", got)
	}
}
