// Package http implements the HTTP handlers of the rejection analysis
// service. Handlers parse requests, delegate to the services package and
// render results; every failure is answered as RFC 7807 problem details by
// the shared errors.ErrorHandler.
//
// Routes:
//
//	POST /api/analyses          multipart upload, returns the AnalysisReport
//	POST /api/guidance/extract  preview column roles named by guidance text
//	GET  /api/health[/live|/ready], /api/version
//	GET  /ws                    run notifications
package http
