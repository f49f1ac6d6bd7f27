// Package observability provides OpenTelemetry tracing and metrics for batch
// steps and the nested pipelines they run.
//
// Setup:
//
//	shutdown, err := observability.Setup(ctx, &cfg.Observability, "batchexec", "1.0.0", "production")
//	defer shutdown(ctx)
//
// Invocations:
//
//	metrics, err := observability.NewMetrics(observability.Meter("etlkit"))
//	inv := observability.NewInvocation("lookup", "enrich", id, len(group), metrics)
//	ctx, span := inv.Start(ctx)
//	defer inv.End(ctx, span, "ok", nil)
package observability
