// Package mqtt publishes meshgate lifecycle events to an MQTT broker.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Publishing with QoS guarantees
//   - A retained online/offline status with Last Will and Testament
//   - An events.Sink that forwards gateway, device and relay events
//
// MQTT is optional. With mqtt.enabled=false Connect returns ErrDisabled and
// the process runs without it.
//
// # Topics
//
//	meshgate/system/status          retained {"status":"online"|"offline",...}
//	meshgate/events/gateway/created
//	meshgate/events/device/registered
//	meshgate/events/relay/denied
//
// # Security Considerations
//
//   - Use TLS in production (cfg.Broker.TLS=true)
//   - Event payloads never carry API keys or hashes
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	bus.AddSink(mqtt.NewEventSink(client))
package mqtt
