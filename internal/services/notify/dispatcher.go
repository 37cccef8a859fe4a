// Package notify delivers alerts to the configured transports off the
// capture path.
//
// Alerts go through a bounded FIFO served by a fixed pool of workers. Notify
// never blocks: when the queue is full the oldest pending alert is dropped to
// make room for the new one. Delivery failures are logged per transport and
// are never retried.
package notify

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"facewatch/internal/logger"
	"facewatch/internal/models"

	"github.com/google/uuid"
)

// ErrStopped is returned by Enqueue after Stop.
var ErrStopped = errors.New("dispatcher stopped")

// Transport delivers one alert to an external system.
type Transport interface {
	Name() string
	Deliver(ctx context.Context, alert models.Alert) error
}

// Stats are the dispatcher counters. Delivered and Failed count transport
// attempts, Queued and Dropped count alerts.
type Stats struct {
	Queued    int64 `json:"queued"`
	Pending   int   `json:"pending"`
	Delivered int64 `json:"delivered"`
	Failed    int64 `json:"failed"`
	Dropped   int64 `json:"dropped"`
}

type Dispatcher struct {
	transports []Transport
	queue      chan models.Alert
	timeout    time.Duration
	logger     *logger.Logger
	now        func() time.Time

	mu      sync.Mutex // serializes producers and guards stopped
	stopped bool
	wg      sync.WaitGroup

	queued    atomic.Int64
	delivered atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

// NewDispatcher starts workers goroutines serving a queue of queueSize alerts.
// Each transport attempt is bounded by timeout when it is positive.
func NewDispatcher(workers, queueSize int, timeout time.Duration, log *logger.Logger, transports ...Transport) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}

	d := &Dispatcher{
		transports: transports,
		queue:      make(chan models.Alert, queueSize),
		timeout:    timeout,
		logger:     log,
		now:        time.Now,
	}

	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}

	names := make([]string, 0, len(transports))
	for _, t := range transports {
		names = append(names, t.Name())
	}
	d.logger.Info("📨 Notification dispatcher started - %d worker(s), queue %d, transports %v", workers, queueSize, names)
	return d
}

// Notify queues an alert and returns immediately. Errors are logged only.
func (d *Dispatcher) Notify(subject, message string) {
	if _, err := d.Enqueue(subject, message); err != nil {
		d.logger.Warning("Alert %q not queued: %v", subject, err)
	}
}

// Enqueue builds an alert and queues it, dropping the oldest pending alert
// when the queue is full.
func (d *Dispatcher) Enqueue(subject, message string) (models.Alert, error) {
	alert := models.Alert{
		ID:        uuid.NewString(),
		Subject:   subject,
		Message:   message,
		CreatedAt: d.now(),
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return alert, ErrStopped
	}

	for {
		select {
		case d.queue <- alert:
			d.queued.Add(1)
			return alert, nil
		default:
		}

		select {
		case old := <-d.queue:
			d.dropped.Add(1)
			d.logger.Warning("⚠️  Notification queue full - dropped alert %s (%s)", old.ID, old.Subject)
		default:
			// a worker freed a slot in the meantime
		}
	}
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()

	for alert := range d.queue {
		d.deliver(alert)
	}

	d.logger.Info("🔧 Notification worker %d stopped", id)
}

func (d *Dispatcher) deliver(alert models.Alert) {
	for _, t := range d.transports {
		ctx := context.Background()
		cancel := func() {}
		if d.timeout > 0 {
			ctx, cancel = context.WithTimeout(ctx, d.timeout)
		}
		err := t.Deliver(ctx, alert)
		cancel()

		if err != nil {
			d.failed.Add(1)
			d.logger.Error("Failed to deliver alert %s via %s: %v", alert.ID, t.Name(), err)
			continue
		}
		d.delivered.Add(1)
	}
}

// Stats returns a snapshot of the counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Queued:    d.queued.Load(),
		Pending:   len(d.queue),
		Delivered: d.delivered.Load(),
		Failed:    d.failed.Load(),
		Dropped:   d.dropped.Load(),
	}
}

// Stop rejects new alerts, delivers the ones already queued and waits for
// the workers to exit.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
	d.logger.Info("🛑 Notification dispatcher stopped")
}
