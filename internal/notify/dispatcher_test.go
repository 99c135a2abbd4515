package notify

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []Message
	err  error
}

func (n *recordingNotifier) Send(msg Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, msg)
	return nil
}

func (n *recordingNotifier) messages() []Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Message(nil), n.sent...)
}

type nopLogger struct{}

func (nopLogger) Debug(msg string, args ...any) {}
func (nopLogger) Info(msg string, args ...any)  {}
func (nopLogger) Warn(msg string, args ...any)  {}
func (nopLogger) Error(msg string, args ...any) {}

func TestDispatcherDeliversQueuedMessages(t *testing.T) {
	notifier := &recordingNotifier{}
	d := NewDispatcher(notifier, nopLogger{})

	d.Enqueue(Message{Recipients: []string{"finance@localhost"}, Event: EventAwaitingDecision, FormID: "f-1"})
	d.Enqueue(Message{Recipients: []string{"employee@localhost"}, Event: EventApproved, FormID: "f-1"})
	d.Close()

	sent := notifier.messages()
	require.Len(t, sent, 2)
	assert.Equal(t, EventAwaitingDecision, sent[0].Event)
	assert.Equal(t, EventApproved, sent[1].Event)
}

func TestDispatcherSkipsEmptyRecipients(t *testing.T) {
	notifier := &recordingNotifier{}
	d := NewDispatcher(notifier, nopLogger{})

	d.Enqueue(Message{Event: EventAwaitingDecision, FormID: "f-1"})
	d.Close()

	assert.Empty(t, notifier.messages())
}

func TestDispatcherSurvivesSendFailure(t *testing.T) {
	notifier := &recordingNotifier{err: errors.New("smtp unreachable")}
	d := NewDispatcher(notifier, nopLogger{})

	// failed deliveries are logged and dropped, the worker keeps running
	d.Enqueue(Message{Recipients: []string{"finance@localhost"}, Event: EventAwaitingDecision, FormID: "f-1"})
	d.Enqueue(Message{Recipients: []string{"manager@localhost"}, Event: EventAwaitingDecision, FormID: "f-2"})
	d.Close()

	assert.Empty(t, notifier.messages())
}

func TestDispatcherCloseIsIdempotent(t *testing.T) {
	d := NewDispatcher(&recordingNotifier{}, nopLogger{})
	d.Close()
	d.Close()
}
