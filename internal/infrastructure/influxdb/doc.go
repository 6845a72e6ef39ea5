// Package influxdb records meshgate activity in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library for connection
// management, batched writes and health monitoring.
//
// # Measurements
//
//	gateway_event    tags: type, gateway_id   fields: count, device_id
//	relay_decision   tags: action, decision   fields: count, reason
//
// Both also carry the tag service=meshgate and are written with
// millisecond precision.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB,
//	    influxdb.WithErrorHandler(func(err error) { log.Error("write failed", "error", err) }))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	bus.AddSink(influxdb.NewEventSink(client))
//	authorizer.AddRecorder(client)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// Writes are non-blocking and batched according to batch_size and
// flush_interval; batch errors are delivered to the WithErrorHandler callback.
package influxdb
