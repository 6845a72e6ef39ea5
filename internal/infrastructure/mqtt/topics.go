package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes for meshgate MQTT traffic.
const (
	// TopicPrefix is the root of every meshgate topic.
	TopicPrefix = "meshgate"

	// TopicPrefixEvents is the base for lifecycle events.
	TopicPrefixEvents = "meshgate/events"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "meshgate/system"
)

// Topics provides builders for meshgate MQTT topics.
//
//	topics := mqtt.Topics{}
//	topic := topics.Event("gateway.created")
//	// Returns: "meshgate/events/gateway/created"
type Topics struct{}

// Event returns the topic for a lifecycle event. Dots in the event type
// become topic levels, so subscribers can filter with wildcards.
//
// Example: meshgate/events/relay/denied
func (Topics) Event(eventType string) string {
	return fmt.Sprintf("%s/%s", TopicPrefixEvents, strings.ReplaceAll(eventType, ".", "/"))
}

// SystemStatus returns the retained online/offline status topic.
//
// Example: meshgate/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}
