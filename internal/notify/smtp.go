package notify

import (
	"fmt"

	"github.com/wneessen/go-mail"
)

// SMTPNotifier delivers messages over SMTP.
type SMTPNotifier struct {
	client *mail.Client
	from   string
}

// NewSMTPNotifier creates a new SMTPNotifier. Username may be empty for
// relays that accept unauthenticated mail (local dev).
func NewSMTPNotifier(host string, port int, username, password, from string) (*SMTPNotifier, error) {
	opts := []mail.Option{
		mail.WithPort(port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(username),
			mail.WithPassword(password),
		)
	}

	client, err := mail.NewClient(host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create smtp client: %w", err)
	}

	return &SMTPNotifier{client: client, from: from}, nil
}

// Send performs a single delivery attempt.
func (n *SMTPNotifier) Send(msg Message) error {
	m := mail.NewMsg()
	if err := m.From(n.from); err != nil {
		return fmt.Errorf("invalid sender address: %w", err)
	}
	if err := m.To(msg.Recipients...); err != nil {
		return fmt.Errorf("invalid recipient address: %w", err)
	}
	m.Subject(subject(msg))
	m.SetBodyString(mail.TypeTextPlain, body(msg))

	if err := n.client.DialAndSend(m); err != nil {
		return fmt.Errorf("smtp send failed: %w", err)
	}
	return nil
}

func subject(msg Message) string {
	switch msg.Event {
	case EventAwaitingDecision:
		return fmt.Sprintf("Action required: %s awaiting your decision", msg.FormTitle)
	case EventApproved:
		return fmt.Sprintf("Approved: %s", msg.FormTitle)
	case EventRejected:
		return fmt.Sprintf("Rejected: %s", msg.FormTitle)
	default:
		return fmt.Sprintf("Update on %s", msg.FormTitle)
	}
}

func body(msg Message) string {
	switch msg.Event {
	case EventAwaitingDecision:
		return fmt.Sprintf(
			"The %s form %q (%s) has reached your approval stage and is waiting for your decision.",
			msg.FormType, msg.FormTitle, msg.FormID)
	case EventApproved:
		return fmt.Sprintf(
			"Your %s form %q (%s) has been approved at every stage.",
			msg.FormType, msg.FormTitle, msg.FormID)
	case EventRejected:
		text := fmt.Sprintf(
			"Your %s form %q (%s) has been rejected.",
			msg.FormType, msg.FormTitle, msg.FormID)
		if msg.Detail != "" {
			text += "\nReason: " + msg.Detail
		}
		return text
	default:
		return fmt.Sprintf("The %s form %q (%s) changed state.", msg.FormType, msg.FormTitle, msg.FormID)
	}
}
