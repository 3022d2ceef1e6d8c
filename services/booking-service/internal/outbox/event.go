package outbox

// Event is the envelope written to outbox_events. The Kafka topic is the
// event type and the message key is the aggregate id, so events of one host
// stay ordered within a partition.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}
