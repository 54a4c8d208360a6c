package events

// Topic constants for domain events emitted by the platform.
const (
	TopicCartUpdated         = "cart.updated"
	TopicCartChangesDetected = "cart.changes_detected"
	TopicCartAbandoned       = "cart.abandoned"
	TopicCartCheckedOut      = "cart.checked_out"
)

// DefaultTopics returns the canonical list of topics that support notifications.
func DefaultTopics() []string {
	return []string{
		TopicCartUpdated,
		TopicCartChangesDetected,
		TopicCartAbandoned,
		TopicCartCheckedOut,
	}
}
