// Package refresh delivers lead-changed notifications to board viewers and
// downstream consumers. Delivery is fire-and-forget: publish errors are
// logged and never reach the operation that triggered them.
package refresh

import (
	"context"
	"sync"
	"time"

	"sales_pipeline_backend/internal/leads/ports"
	"sales_pipeline_backend/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Message is the wire form of a lead-changed notification.
type Message struct {
	TenantID uuid.UUID `json:"tenantId"`
	LeadID   uuid.UUID `json:"leadId"`
	At       time.Time `json:"at"`
}

// Publisher is one delivery channel.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, msg Message) error
}

// Fanout sends every notification to all publishers concurrently.
type Fanout struct {
	publishers []Publisher
	timeout    time.Duration
	log        *logger.Logger
	wg         sync.WaitGroup
}

var _ ports.RefreshNotifier = (*Fanout)(nil)

// NewFanout bounds each delivery round by timeout.
func NewFanout(log *logger.Logger, timeout time.Duration, publishers ...Publisher) *Fanout {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Fanout{publishers: publishers, timeout: timeout, log: log}
}

// NotifyLeadChanged returns immediately; delivery happens in the background
// on a context detached from the caller.
func (f *Fanout) NotifyLeadChanged(ctx context.Context, tenantID, leadID uuid.UUID) {
	if len(f.publishers) == 0 {
		return
	}
	msg := Message{TenantID: tenantID, LeadID: leadID, At: time.Now().UTC()}
	detached := context.WithoutCancel(ctx)

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		f.deliver(detached, msg)
	}()
}

func (f *Fanout) deliver(ctx context.Context, msg Message) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	var g errgroup.Group
	for _, p := range f.publishers {
		p := p
		g.Go(func() error {
			if err := p.Publish(ctx, msg); err != nil {
				f.log.Warn("refresh: publish failed", "publisher", p.Name(), "leadId", msg.LeadID, "error", err)
				return err
			}
			return nil
		})
	}
	_ = g.Wait()
}

// Wait blocks until in-flight deliveries finish. Used on shutdown.
func (f *Fanout) Wait() {
	f.wg.Wait()
}

// LocalPublisher adapts an in-process notifier (the SSE hub) to Publisher.
type LocalPublisher struct {
	Notifier ports.RefreshNotifier
}

func (LocalPublisher) Name() string { return "local" }

func (p LocalPublisher) Publish(ctx context.Context, msg Message) error {
	p.Notifier.NotifyLeadChanged(ctx, msg.TenantID, msg.LeadID)
	return nil
}
