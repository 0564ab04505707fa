// Package app wires the rejection analysis HTTP application together and
// manages its lifecycle.
//
// # Initialization Flow
//
//	1. Build the logger from configuration (or take an injected one)
//	2. Resolve and create the data, uploads, reports and logs directories
//	3. Initialize OpenTelemetry tracing and metrics
//	4. Start the WebSocket hub and build the analysis and health services
//	5. Assemble the chi router and the HTTP server
//
// # Usage
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    return err
//	}
//	application, err := app.NewApplication(cfg, app.Options{})
//	if err != nil {
//	    return err
//	}
//	return application.Run()
//
// # Graceful Shutdown
//
// Run blocks until SIGINT, SIGTERM or a server failure, then drains
// in-flight requests, closes WebSocket clients, flushes telemetry and closes
// the log file. Errors are returned; the package never calls os.Exit.
package app
