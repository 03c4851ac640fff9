// Package verticles holds the producers and consumers of the shared topic:
// a periodic house spawner, an HTTP ingress and one consumer per payload shape.
//
// Payloads carry no type tag. Every consumer sees every message on the topic
// and only acts on bodies that decode into its shape.
package verticles

// DefaultTopic is the address all verticles use unless configured otherwise.
const DefaultTopic = "shared"

func topicOrDefault(topic string) string {
	if topic == "" {
		return DefaultTopic
	}
	return topic
}
