package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/meshgate-core/internal/events"
)

// Measurement names.
const (
	MeasurementGatewayEvents  = "gateway_event"
	MeasurementRelayDecisions = "relay_decision"
)

// WriteEvent records one lifecycle event. The write is non-blocking; data
// is batched and sent asynchronously.
//
// Tags are the event type and, when present, the gateway ID. The device ID
// is a field so device churn does not grow series cardinality.
func (c *Client) WriteEvent(e events.Event) {
	if !c.IsConnected() {
		return
	}

	tags := map[string]string{"type": e.Type}
	if e.GatewayID != "" {
		tags["gateway_id"] = e.GatewayID
	}
	fields := map[string]interface{}{"count": 1}
	if e.DeviceID != "" {
		fields["device_id"] = e.DeviceID
	}

	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	c.writeAPI.WritePoint(write.NewPoint(MeasurementGatewayEvents, tags, fields, ts))
}

// RecordRelayDecision records one relay authorization outcome.
//
// Example:
//
//	client.RecordRelayDecision("publish", false, "invalid api key or inactive gateway")
func (c *Client) RecordRelayDecision(action string, allowed bool, reason string) {
	if !c.IsConnected() {
		return
	}

	decision := "deny"
	if allowed {
		decision = "allow"
	}
	c.writeAPI.WritePoint(write.NewPoint(
		MeasurementRelayDecisions,
		map[string]string{"action": action, "decision": decision},
		map[string]interface{}{"count": 1, "reason": reason},
		time.Now(),
	))
}
