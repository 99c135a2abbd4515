package notify

import (
	"sync"
)

// Logger defines the logging interface compatible with the application logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Dispatcher queues messages and delivers them on a background worker so
// callers never block on the mail server. Send failures are logged and
// dropped; the state transition that produced the message has already
// committed.
type Dispatcher struct {
	notifier Notifier
	logger   Logger
	queue    chan Message
	wg       sync.WaitGroup

	closeOnce sync.Once
}

const defaultQueueSize = 256

// NewDispatcher creates a Dispatcher and starts its delivery worker.
func NewDispatcher(notifier Notifier, logger Logger) *Dispatcher {
	d := &Dispatcher{
		notifier: notifier,
		logger:   logger,
		queue:    make(chan Message, defaultQueueSize),
	}
	d.wg.Add(1)
	go d.run()
	return d
}

// Enqueue hands a message to the delivery worker. It never blocks: when the
// queue is full the message is dropped and logged.
func (d *Dispatcher) Enqueue(msg Message) {
	if len(msg.Recipients) == 0 {
		d.logger.Info("notification skipped, no recipients", "form_id", msg.FormID, "event", string(msg.Event))
		return
	}
	select {
	case d.queue <- msg:
	default:
		d.logger.Warn("notification queue full, dropping message", "form_id", msg.FormID, "event", string(msg.Event))
	}
}

// Close stops accepting messages and waits for queued deliveries to finish.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.queue)
	})
	d.wg.Wait()
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for msg := range d.queue {
		if err := d.notifier.Send(msg); err != nil {
			d.logger.Error("notification delivery failed", "form_id", msg.FormID, "event", string(msg.Event), "error", err)
			continue
		}
		d.logger.Debug("notification delivered", "form_id", msg.FormID, "event", string(msg.Event), "recipients", len(msg.Recipients))
	}
}
