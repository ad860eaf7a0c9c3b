package events

// Topic constants for checkout events.
const (
	TopicOrderPlaced = "order.placed"
	TopicOrderFailed = "order.failed"
)

// DefaultTopics returns every topic the checkout emits.
func DefaultTopics() []string {
	return []string{TopicOrderPlaced, TopicOrderFailed}
}
