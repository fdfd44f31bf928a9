// Package app is the composition root of the booking API's license
// subsystem.
//
// # Initialization Flow
//
//	1. Load configuration (config.Load) and build the slog logger
//	2. Initialize OpenTelemetry (tracing exporter, Prometheus metrics)
//	3. Create the license gate and the websocket status hub, and subscribe
//	   the hub to gate transitions
//	4. Build the chi router: health, public license status, admin license
//	   routes and the externally supplied route Modules
//	5. Start: initialize the license, then serve until signalled
//
// # Usage
//
//	application, err := app.NewApplication(cfg)
//	if err != nil {
//	    return err
//	}
//	return application.Run(ctx)
//
// # Graceful Shutdown
//
// Run watches SIGINT and SIGTERM. On shutdown the HTTP server drains, the
// hub closes every websocket, the gate stops its heartbeat and releases
// this machine's activation, and telemetry is flushed.
//
// A missing license key outside development mode is returned from Start.
// A refused or unreachable license is logged and the process keeps serving
// so an operator can activate a key from the admin license routes.
package app
