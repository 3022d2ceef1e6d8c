package kafkax

import (
	"fmt"
	"strings"

	"github.com/segmentio/kafka-go"
)

// EventMeta is the metadata carried on every booking event message.
type EventMeta struct {
	EventID   string
	EventType string
}

// ExtractEventMeta reads the meta headers. Without an event_id header the
// message position stands in, since keys are shared by every event of a
// host and cannot identify one event.
func ExtractEventMeta(msg kafka.Message) EventMeta {
	eventID := HeaderValue(msg.Headers, "event_id")
	eventType := HeaderValue(msg.Headers, "event_type")
	if eventID == "" {
		eventID = fmt.Sprintf("%s/%d/%d", msg.Topic, msg.Partition, msg.Offset)
	}
	if eventType == "" {
		eventType = msg.Topic
	}
	return EventMeta{EventID: eventID, EventType: eventType}
}

// MetaHeaders is the inverse of ExtractEventMeta.
func MetaHeaders(meta EventMeta) []kafka.Header {
	return []kafka.Header{
		{Key: "event_id", Value: []byte(meta.EventID)},
		{Key: "event_type", Value: []byte(meta.EventType)},
	}
}

func HeaderValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func SplitBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
