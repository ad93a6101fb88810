// Package app wires Ferroci together: configuration, logging, OpenTelemetry,
// the metric registry, the status hub, the analysis service and the HTTP
// router, plus the server lifecycle around them.
//
// # Initialization Flow
//
//	1. Load configuration (defaults, config.yaml, FERROCI_* environment)
//	2. Initialize the slog logger and OpenTelemetry providers
//	3. Build the metric registry from analysis.metrics and analysis.alignment
//	4. Create the WebSocket hub and the analysis and health services
//	5. Set up middleware, API routes, /ws, /metrics and the embedded GUI
//
// # Usage
//
//	application, err := app.NewApplication(frontendFS)
//	if err != nil {
//	    return err
//	}
//	return application.Run()
//
// Tests use New with an explicit config and logger instead, so nothing is
// read from the executable directory.
//
// # Graceful Shutdown
//
// Run stops on SIGINT or SIGTERM. Stop closes WebSocket clients first, then
// drains HTTP requests within server.shutdown_timeout and flushes telemetry.
// The package never calls os.Exit.
package app
