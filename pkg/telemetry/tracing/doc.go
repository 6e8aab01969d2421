// Package tracing configures OpenTelemetry for mailrules.
//
// The evaluator opens one span per deterministic pass
// ("rules.FindPotentialMatchingRules") and one per tie-breaker call. This
// package only builds the provider those spans go to:
//
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing, version)
//	if err != nil {
//	    return err
//	}
//	defer tracer.Shutdown(context.Background())
//
//	evaluator, err := engine.NewEvaluator(engineCfg, logger, engine.WithTracer(tracer.Tracer()))
//
// With an empty endpoint spans are sampled and kept in-process only; set
// telemetry.tracing.endpoint to export them over OTLP gRPC.
package tracing
