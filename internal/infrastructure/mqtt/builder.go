package mqtt

import (
	"fmt"
	"strings"
)

// requestFields maps the top-level connect configuration keys.
var requestFields = map[string]fieldSetter[ConnectRequest]{
	"keepAliveInterval": nonNegativeField(func(r *ConnectRequest, n int) { r.KeepAliveInterval = n }),
	"cleanSession":      boolField(func(r *ConnectRequest, b bool) { r.CleanSession = b }),
	"reliable":          boolField(func(r *ConnectRequest, b bool) { r.Reliable = b }),
	"username":          stringField(func(r *ConnectRequest, s string) { r.Username = s }),
	"password":          stringField(func(r *ConnectRequest, s string) { r.Password = s }),
	"connectTimeout":    nonNegativeField(func(r *ConnectRequest, n int) { r.ConnectTimeout = n }),
	"retryInterval":     nonNegativeField(func(r *ConnectRequest, n int) { r.RetryInterval = n }),
	"mqttVersion": intField(func(r *ConnectRequest, n int) error {
		switch n {
		case MQTTVersionDefault, MQTTVersion31, MQTTVersion311:
			r.MQTTVersion = n
			return nil
		default:
			return fmt.Errorf("must be %d, %d, or %d, got %d",
				MQTTVersionDefault, MQTTVersion31, MQTTVersion311, n)
		}
	}),
	"will": func(r *ConnectRequest, value any) error {
		will, err := parseWill(value)
		if err != nil {
			return err
		}
		r.Will = will
		return nil
	},
	"ssl": func(r *ConnectRequest, value any) error {
		spec, err := parseTLS(value)
		if err != nil {
			return err
		}
		r.TLS = spec
		return nil
	},
	"serverURIs": func(r *ConnectRequest, value any) error {
		uris, err := asStringSeq(value)
		if err != nil {
			return err
		}
		list, err := marshalServerURIs(uris)
		if err != nil {
			return err
		}
		r.ServerURIs = list
		return nil
	},
}

// BuildRequest projects a connect configuration onto a ConnectRequest.
//
// Recognised keys override the engine defaults from NewConnectRequest;
// unknown keys are ignored. The nested "will" and "ssl" mappings produce a
// WillSpec and TLSSpec only when present, and "serverURIs" produces an owned
// ServerURIList.
//
// Parameters:
//   - options: Connect configuration, e.g. decoded from YAML
//
// Returns:
//   - *ConnectRequest: Request ready for Client.ConnectWith
//   - error: ErrInvalidConfig listing every offending key
//
// Example:
//
//	req, err := mqtt.BuildRequest(mqtt.Options{
//	    "keepAliveInterval": 30,
//	    "will": map[string]any{"topicName": "t/status", "message": "offline"},
//	})
func BuildRequest(options Options) (*ConnectRequest, error) {
	req := NewConnectRequest()
	if err := fill(req, options); err != nil {
		return nil, err
	}
	return req, nil
}

// fill applies options to req. On failure the parts already built, such as
// a parsed serverURIs list, are released and req is left spent.
func fill(req *ConnectRequest, options Options) error {
	if errs := applyFields(req, options, requestFields, ""); len(errs) > 0 {
		req.release()
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(errs, "; "))
	}
	return nil
}
