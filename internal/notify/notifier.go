// Package notify delivers best-effort email notifications for workflow
// events. Delivery is decoupled from the state transition that triggered it:
// a failed or slow send never affects the committed transition.
package notify

// EventKind classifies what happened to a form.
type EventKind string

const (
	// EventAwaitingDecision tells a role holder a form now waits on them.
	EventAwaitingDecision EventKind = "awaiting_decision"
	// EventApproved tells the submitter the form cleared every stage.
	EventApproved EventKind = "approved"
	// EventRejected tells the submitter the form was rejected.
	EventRejected EventKind = "rejected"
)

// Message is one notification to deliver.
type Message struct {
	Recipients []string
	Event      EventKind
	FormID     string
	FormTitle  string
	FormType   string
	Detail     string
}

// Notifier performs a single delivery attempt.
type Notifier interface {
	Send(msg Message) error
}
