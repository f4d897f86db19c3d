package mqtt

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// fieldSetter stores one configuration value into a field of T.
type fieldSetter[T any] func(target *T, value any) error

// fieldErrors carries already-qualified messages from a nested mapping so
// they are reported without a second key prefix.
type fieldErrors []string

func (e fieldErrors) Error() string {
	return strings.Join(e, "; ")
}

// applyFields walks mapping and dispatches every recognised key to its
// setter. Unknown keys are ignored. Keys are visited in sorted order so the
// reported errors do not depend on map iteration order; the result itself
// never does because each key owns a distinct field.
func applyFields[T any](target *T, mapping map[string]any, fields map[string]fieldSetter[T], prefix string) []string {
	keys := make([]string, 0, len(mapping))
	for key := range mapping {
		if _, ok := fields[key]; ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	var errs []string
	for _, key := range keys {
		err := fields[key](target, mapping[key])
		if err == nil {
			continue
		}
		var nested fieldErrors
		if errors.As(err, &nested) {
			errs = append(errs, nested...)
			continue
		}
		errs = append(errs, fmt.Sprintf("%s%s: %v", prefix, key, err))
	}
	return errs
}

// parseNested fills a fresh T from a nested mapping.
func parseNested[T any](value any, fields map[string]fieldSetter[T], prefix string) (*T, error) {
	mapping, err := asMapping(value)
	if err != nil {
		return nil, err
	}
	spec := new(T)
	if errs := applyFields(spec, mapping, fields, prefix); len(errs) > 0 {
		return nil, fieldErrors(errs)
	}
	return spec, nil
}

func intField[T any](set func(*T, int) error) fieldSetter[T] {
	return func(target *T, value any) error {
		n, err := asInt(value)
		if err != nil {
			return err
		}
		return set(target, n)
	}
}

func boolField[T any](set func(*T, bool)) fieldSetter[T] {
	return func(target *T, value any) error {
		b, err := asBool(value)
		if err != nil {
			return err
		}
		set(target, b)
		return nil
	}
}

func stringField[T any](set func(*T, string)) fieldSetter[T] {
	return func(target *T, value any) error {
		s, err := asString(value)
		if err != nil {
			return err
		}
		set(target, s)
		return nil
	}
}

func nonNegativeField[T any](set func(*T, int)) fieldSetter[T] {
	return intField(func(target *T, n int) error {
		if n < 0 {
			return fmt.Errorf("must not be negative, got %d", n)
		}
		set(target, n)
		return nil
	})
}

// willFields maps the keys of the "will" sub-configuration.
var willFields = map[string]fieldSetter[WillSpec]{
	"topicName": stringField(func(w *WillSpec, s string) { w.TopicName = s }),
	"message":   stringField(func(w *WillSpec, s string) { w.Message = s }),
	"retained":  boolField(func(w *WillSpec, b bool) { w.Retained = b }),
	"qos": intField(func(w *WillSpec, n int) error {
		if n < 0 || n > maxQoS {
			return fmt.Errorf("must be 0, 1, or 2, got %d", n)
		}
		w.QoS = n
		return nil
	}),
}

// tlsFields maps the keys of the "ssl" sub-configuration.
var tlsFields = map[string]fieldSetter[TLSSpec]{
	"trustStore":          stringField(func(t *TLSSpec, s string) { t.TrustStore = s }),
	"keyStore":            stringField(func(t *TLSSpec, s string) { t.KeyStore = s }),
	"privateKey":          stringField(func(t *TLSSpec, s string) { t.PrivateKey = s }),
	"privateKeyPassword":  stringField(func(t *TLSSpec, s string) { t.PrivateKeyPassword = s }),
	"enabledCipherSuites": stringField(func(t *TLSSpec, s string) { t.EnabledCipherSuites = s }),
	"enableServerCertAuth": boolField(func(t *TLSSpec, b bool) {
		t.EnableServerCertAuth = &b
	}),
}

// parseWill parses the "will" sub-configuration. A will without a topic
// cannot be registered, so topicName is mandatory.
func parseWill(value any) (*WillSpec, error) {
	will, err := parseNested(value, willFields, "will.")
	if err != nil {
		return nil, err
	}
	if err := validatePublishTopic(will.TopicName); err != nil {
		return nil, fieldErrors{"will.topicName: " + err.Error()}
	}
	return will, nil
}

func parseTLS(value any) (*TLSSpec, error) {
	return parseNested(value, tlsFields, "ssl.")
}
