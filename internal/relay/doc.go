// Package relay talks to the external streaming relay in both directions.
//
// Inbound, the relay calls an authorization webhook before every publish,
// read or playback. Authorizer turns that callback into a Decision: only
// publishes are gated, and only a gateway presenting the configured publish
// user and a valid API key may publish.
//
// Outbound, StatusClient reads the relay's live path list
// (GET /v3/paths/list) so cameras can be shown with their readiness.
package relay
