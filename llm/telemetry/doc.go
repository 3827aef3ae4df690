// Package telemetry records structured events for every pipeline call.
//
// The pipeline talks to a Logger. Recorder is the standard Logger: it
// builds an Event per call and submits it to a Reporter, which batches
// events and fans them out to sinks (ZapSink, MetricsSink, or any
// SinkFunc). The Reporter has an explicit lifecycle and no package-level
// state; whoever creates it owns Start and Shutdown:
//
//	rep := telemetry.NewReporter(telemetry.DefaultReporterConfig(), logger,
//		[]telemetry.Sink{telemetry.NewZapSink(logger)})
//	_ = rep.Start()
//	defer rep.Shutdown(ctx)
//
//	p, err := pipeline.New(cfg, pipeline.WithTelemetry(telemetry.NewRecorder(rep, logger)))
//
// Telemetry never fails a call. Recorder recovers panics, Submit never
// blocks, and events that do not fit the queue are dropped and counted.
package telemetry
