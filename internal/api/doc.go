// Package api implements the HTTP REST API and WebSocket event feed for
// meshgate core.
//
// This package provides:
//   - Gateway endpoints: self-registration of device inventories and key checks
//   - The relay authorization webhook
//   - Admin endpoints for gateways, devices, cameras and the audit trail
//   - JWT authentication for the admin identity
//   - WebSocket hub broadcasting lifecycle events to admin clients
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Security
//
// Gateway endpoints authenticate with the gateway API key carried in the
// request body. Admin endpoints require a bearer JWT issued by
// POST /api/v1/auth/login; the WebSocket feed takes the same token as a
// token query parameter because browsers cannot set headers on upgrade.
//
// # Errors
//
// Domain errors are classified with apperr kinds and translated to HTTP
// status codes in exactly one place, writeAppError. Internal failures are
// logged with the request ID and reported to clients without detail.
//
// # Graceful Degradation
//
// MQTT and InfluxDB are optional. The health endpoint reports them but only
// a database failure makes the service unhealthy.
package api
