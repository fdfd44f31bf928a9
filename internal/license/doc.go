// Package license binds the running process to a license issued by the
// remote license service.
//
// # Components
//
//	- Client: validate, activate, deactivate and heartbeat calls against the
//	  license server, with a 60 second validation cache
//	- Gate: the process license state machine used by the HTTP guards
//	- heartbeat: the background re-check loop owned by the Gate
//
// # Client
//
// Every call is a JSON POST bounded by the client timeout (10s by default).
// A timeout fails with code TIMEOUT; a non-2xx answer carries the server's
// code when the body has one and SERVER_ERROR otherwise. A license the
// server refuses is not an error: Validate returns a result with Valid
// false and the server's reason.
//
//	client, err := license.NewClient(license.ClientConfig{
//		LicenseKey: key,
//		ServerURL:  "https://licenses.example.com",
//		AppSlug:    "zamutints-booking",
//	})
//	result, err := client.Validate(ctx, true)
//
// Activate and Deactivate always clear the cache. An activation the server
// reports as ALREADY_ACTIVATED is returned as a success.
//
// # Gate
//
// The Gate starts UNINITIALIZED. Init validates (bypassing the cache) and
// activates the configured key, then moves to VALID and starts a heartbeat
// (12h by default). A failed heartbeat moves the gate to INVALID without
// stopping later ticks; a successful one restores VALID.
//
// RequireLicense reads the cached state only. RequireFeature asks the
// current client, which may call the server. ActivateLicenseKey builds and
// activates a new client before swapping it in, so a failed re-activation
// leaves the gate untouched. Shutdown stops the heartbeat and deactivates
// the machine once, logging any failure.
//
// In development mode with no key configured the gate is VALID with mode
// "development" and never calls the server.
//
// # Logging
//
// License keys are never logged in clear. Log lines carry the key masked to
// its first and last four characters plus a short SHA-256 prefix.
package license
