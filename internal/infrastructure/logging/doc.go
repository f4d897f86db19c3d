// Package logging builds the structured slog logger used across mqttconnect.
//
// Every entry carries service=mqttconnect and the build version. Output is
// JSON by default or text for development, filtered by level:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Attributes named password, privateKeyPassword, token, jwt_secret or
// authorization are written as [REDACTED].
//
//	logger := logging.New(cfg.Logging, version)
//	client, err := mqtt.Create(uri, id, mqtt.WithLogger(logger.With("component", "mqtt")))
package logging
