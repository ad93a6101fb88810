// Package http implements the HTTP handlers of the Ferroci GUI server. The
// handlers are a thin layer over the services package: they decode and
// validate requests, call a service, and render JSON with go-chi/render.
//
// # Routes
//
//	POST /api/drops           analyze dropped files by absolute path
//	POST /api/uploads         multipart upload into a working directory
//	GET  /api/sessions        known working directories
//	GET  /api/session         one working directory (?dir=)
//	GET  /api/results         results table (?dir=)
//	GET  /api/plot.png        reference and test curves (?dir=)
//	GET  /api/plot.svg        same plot as SVG
//	GET  /api/metrics         registered metrics
//	GET  /api/status/log      recent status log lines
//	GET  /api/health          health check
//	GET  /api/version         build information
//	POST /api/client-log      browser log forwarding
//
// # Error Handling
//
// Every failure goes through errors.ErrorHandler and is written as RFC 7807
// problem details:
//
//	{
//	    "type": "/errors/analysis/parse",
//	    "title": "Malformed Input File",
//	    "status": 422,
//	    "detail": "...",
//	    "instance": "/api/drops"
//	}
//
// Handlers depend on small interfaces (AnalysisServiceInterface,
// HealthServiceInterface, StatusHistory) so tests can swap in testify mocks.
package http
