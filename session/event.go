package session

import "time"

// EventType classifies notification events. The set is closed: frames
// carrying a type outside it are dropped at the channel boundary.
type EventType string

const (
	EventConnectionOpened  EventType = "connection_opened"
	EventConnectionLost    EventType = "connection_lost"
	EventDonationPending   EventType = "donation_pending"
	EventDonationConfirmed EventType = "donation_confirmed"
	EventDonationFinalized EventType = "donation_finalized"
	EventDonationFailed    EventType = "donation_failed"
	EventDonationExpired   EventType = "donation_expired"
)

var knownEventTypes = map[EventType]bool{
	EventConnectionOpened:  true,
	EventConnectionLost:    true,
	EventDonationPending:   true,
	EventDonationConfirmed: true,
	EventDonationFinalized: true,
	EventDonationFailed:    true,
	EventDonationExpired:   true,
}

// KnownEventType reports whether t belongs to the closed event set.
func KnownEventType(t EventType) bool {
	return knownEventTypes[t]
}

// EventTypes returns every known event type, connection kinds first.
func EventTypes() []EventType {
	return []EventType{
		EventConnectionOpened,
		EventConnectionLost,
		EventDonationPending,
		EventDonationConfirmed,
		EventDonationFinalized,
		EventDonationFailed,
		EventDonationExpired,
	}
}

// DonationEventType returns the event type derived from a session
// status, e.g. Confirmed -> donation_confirmed.
func DonationEventType(s Status) EventType {
	return EventType("donation_" + s.String())
}

// Event is a single state-change notification. Events are constructed
// at the point of detection, broadcast once, and discarded.
type Event struct {
	Type      EventType `json:"type"`
	Session   *Session  `json:"session,omitempty"` // snapshot, safe to retain
	Timestamp time.Time `json:"timestamp"`
	Err       string    `json:"error,omitempty"`
}
