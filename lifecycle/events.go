package lifecycle

import (
	"log"
	"time"
)

// =============================================================================
// DOMAIN EVENTS - Fire-and-forget signals for downstream collaborators
// =============================================================================

// EventType names a lifecycle transition worth telling collaborators about.
type EventType string

const (
	EventLeaseCreated     EventType = "lease.created"
	EventLeaseTerminated  EventType = "lease.terminated"
	EventLeaseRenewed     EventType = "lease.renewed"
	EventLeaseExpired     EventType = "lease.expired"
	EventPaymentPaid      EventType = "payment.paid"
	EventPaymentConfirmed EventType = "payment.confirmed"
	EventPaymentOverdue   EventType = "payment.overdue"
)

// Event describes one transition. Only the fields relevant to the event
// type are set.
type Event struct {
	Type       EventType
	LeaseID    string
	PaymentID  string
	PropertyID string
	TenantID   string
	LandlordID string
	At         time.Time
}

// EventSink consumes events. Publishing is fire-and-forget: a sink must not
// block the caller, and its failures never roll back the state change that
// produced the event.
type EventSink interface {
	Publish(e Event)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Publish(Event) {}

// LogSink writes events to the process log. Useful until a real
// notification collaborator is attached.
type LogSink struct{}

func (LogSink) Publish(e Event) {
	log.Printf("[Event] %s lease=%s payment=%s property=%s", e.Type, e.LeaseID, e.PaymentID, e.PropertyID)
}
