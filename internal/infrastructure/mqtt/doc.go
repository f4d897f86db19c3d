// Package mqtt creates MQTT v3 clients and connects them to a broker.
//
// This package manages:
//   - Client handles bound to one (server URI, client ID) pair
//   - Translation of a loosely-typed connect configuration into a ConnectRequest
//   - Last Will and Testament and TLS sub-configurations
//   - Fallback broker URI lists tried in order
//   - Mapping of the engine's numeric connect results to errors
//
// # Architecture
//
// The wire protocol is delegated to an Engine; the default is
// github.com/eclipse/paho.mqtt.golang. Persistence is always "none".
//
//	Options (map) → BuildRequest → ConnectRequest → Engine → ReturnCode → MapResult
//
// # Configuration keys
//
//	keepAliveInterval  int      seconds, default 60
//	cleanSession       bool     default true
//	reliable           bool     default true (in-order delivery)
//	username, password string
//	connectTimeout     int      seconds per server, default 30
//	retryInterval      int      seconds, default 20; validated and carried
//	                            on the request, not applied by PahoEngine
//	mqttVersion        int      0 (engine choice), 3 (3.1) or 4 (3.1.1)
//	will               mapping  topicName, message, retained, qos
//	ssl                mapping  trustStore, keyStore, privateKey,
//	                            privateKeyPassword, enabledCipherSuites,
//	                            enableServerCertAuth
//	serverURIs         []string fallback brokers, first tried first
//
// Unknown keys are ignored. Wrong types fail with ErrInvalidConfig.
//
// # Usage
//
//	client, err := mqtt.Create("tcp://localhost:1883", "c1")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Connect(mqtt.Options{
//	    "keepAliveInterval": 60,
//	    "cleanSession":      true,
//	})
//	var refused *mqtt.ConnectError
//	if errors.As(err, &refused) {
//	    log.Printf("broker refused: %s", refused.Message)
//	}
package mqtt
