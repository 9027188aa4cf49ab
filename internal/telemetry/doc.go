// Package telemetry provides OpenTelemetry tracing and metrics for chatindex.
//
// Create one instance per process and pass it to the components that emit
// spans and instruments:
//
//	tel, err := telemetry.New(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	tracer := tel.Tracer("chatindex/indexer")
//	ctx, span := tracer.Start(ctx, "Indexer.Build")
//	defer span.End()
//
// Configuration:
//
//	telemetry:
//	  enabled: true
//	  endpoint: "localhost:4317"
//	  protocol: grpc          # or http/protobuf
//	  sampling:
//	    rate: 1.0
//	  metrics:
//	    enabled: true
//	    export_interval: "15s"
//
// Telemetry failures do not fail the caller. An instance that cannot build
// its exporters is marked degraded and falls back to the global providers.
//
// Tests use NewTestTelemetry, which records spans and metrics in memory.
package telemetry
