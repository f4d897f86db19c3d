// Package influxdb records MQTT connect attempts as InfluxDB v2 points.
//
// It wraps the official influxdb-client-go v2 library for connection
// management, batched non-blocking writes and health monitoring.
//
// # Measurement
//
//	connect_attempts
//	  tags:   client_id, outcome
//	  fields: code (int), duration_ms (int), server_count (int)
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	factory := mqtt.NewFactory(mqtt.WithRecorder(client))
//
// # Error Handling
//
// Writes are non-blocking; batch errors are delivered to the SetOnError
// callback. Connection and health check errors are returned directly.
package influxdb
