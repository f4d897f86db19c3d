// Package config loads mqttconnect settings.
//
// Load applies, in order: built-in defaults, the YAML file, then
// MQTTCONNECT_* environment variables. The result is validated before it is
// returned; every problem found is reported in a single error.
//
// The connect section is kept as a loose mapping and checked with
// mqtt.BuildRequest, so a bad keepAliveInterval or will block fails at
// startup instead of at the first connect.
//
// Secrets (broker password, TLS key password, InfluxDB token, API JWT
// secret) are best supplied through the environment:
//
//	MQTTCONNECT_USERNAME, MQTTCONNECT_PASSWORD
//	MQTTCONNECT_INFLUXDB_TOKEN
//	MQTTCONNECT_JWT_SECRET
//
// Example:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
//	err = client.Connect(cfg.ConnectOptions())
package config
