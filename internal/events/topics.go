package events

// Topic constants for domain events emitted by the storefront.
const (
	TopicOrderCreated       = "order.created"
	TopicOrderStatusChanged = "order.status_changed"
	TopicComboConfigChanged = "combo.config_changed"
)

// DefaultTopics returns the topics forwarded to the worker queue.
func DefaultTopics() []string {
	return []string{
		TopicOrderCreated,
		TopicOrderStatusChanged,
		TopicComboConfigChanged,
	}
}
