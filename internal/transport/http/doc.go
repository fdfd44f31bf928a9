// Package http implements the HTTP handlers of the booking API's license
// surface: the public banner status, the admin license status and
// activation endpoints, health probes and the websocket that pushes license
// status changes to admin dashboards.
//
// Handlers are thin. License decisions belong to the license gate; request
// decoding and validation to the middleware package. Errors are rendered as
// RFC 7807 problems through the shared ErrorHandler.
package http
