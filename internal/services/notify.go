package services

// Publisher is the fan-out signal fired after every successful pass mutation.
// The event carries no payload beyond the school it concerns; subscribers
// re-fetch authoritative state when it arrives.
type Publisher interface {
	PassesUpdated(schoolID string)
}

// MultiPublisher fans a notification out to several publishers.
type MultiPublisher []Publisher

// PassesUpdated notifies every registered publisher.
func (m MultiPublisher) PassesUpdated(schoolID string) {
	for _, p := range m {
		p.PassesUpdated(schoolID)
	}
}
