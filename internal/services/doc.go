// Package services implements the business logic between the HTTP handlers
// and the processing packages.
//
// AnalysisService keeps one dataprocessing.Processor per working directory,
// restored from disk the first time a directory is seen. Drops are processed
// one at a time: a weighted semaphore of size one guards processing and a
// drop arriving while another runs fails with errors.ErrBusy instead of
// waiting. Status lines and result updates go to a Notifier, normally the
// WebSocket hub.
//
//	svc := services.NewAnalysisService(cfg.Analysis, registry, hub, analysisMetrics, logger)
//	report, err := svc.Drop(ctx, []string{"/data/run1/ref.csv", "/data/run1/a.csv"})
//
// HealthService reports on the analysis service and the hub for /api/health.
package services
