package mqtt

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// maxTopicLength is the longest topic name MQTT can encode.
const maxTopicLength = 65535

// validatePublishTopic checks a topic a message will be published to, such
// as the will topic. Publish topics are concrete: wildcards are only valid
// in subscription filters.
func validatePublishTopic(topic string) error {
	switch {
	case topic == "":
		return errors.New("required")
	case len(topic) > maxTopicLength:
		return errors.New("longer than 65535 bytes")
	case !utf8.ValidString(topic):
		return errors.New("not valid UTF-8")
	case strings.ContainsRune(topic, 0):
		return errors.New("must not contain NUL")
	case strings.ContainsAny(topic, "+#"):
		return errors.New("must not contain wildcards '+' or '#'")
	}
	return nil
}
