// Package services implements the business logic layer between the HTTP and
// CLI front ends and the extraction packages.
//
// # Available Services
//
//	- AnalysisService: opens one workbook per run and derives the breakdown,
//	  trend and detail sections of a domain.AnalysisReport
//	- HealthService: liveness, readiness and version information
//
// # Section Isolation
//
// A run fails as a whole only when its document cannot be opened. Any other
// failure is classified with ClassifySectionError and stored on the section
// it affected, so a missing detail sheet still yields a breakdown and a trend.
//
// # Observability
//
// Every run and section gets its own span. Run, section, skipped-row and
// advisory metrics are recorded on an infrastructure.AnalysisMetrics when one
// is supplied with WithMetrics. Lifecycle messages go to an optional
// Notifier, normally the WebSocket hub.
//
// # Testing
//
//	notifier := &services.MockNotifier{}
//	notifier.On("Broadcast", mock.Anything, mock.Anything)
//	svc := services.NewAnalysisService(cfg.Analysis, logger, services.WithNotifier(notifier))
package services
