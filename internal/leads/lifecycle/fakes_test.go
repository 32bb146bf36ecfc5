package lifecycle

import (
	"context"
	"fmt"
	"sync"

	"sales_pipeline_backend/internal/events"
	"sales_pipeline_backend/internal/leads/domain"
	"sales_pipeline_backend/internal/leads/ports"
)

type fakeOrders struct {
	mu        sync.Mutex
	calls     int
	snapshots []domain.OrderSnapshot
	err       error
	// started is closed on the first call; the call then waits on release.
	started chan struct{}
	release chan struct{}
	ctxErrs []error
}

func (f *fakeOrders) CreateOrder(ctx context.Context, snapshot domain.OrderSnapshot) (string, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.snapshots = append(f.snapshots, snapshot)
	started, release := f.started, f.release
	f.mu.Unlock()

	if started != nil && n == 1 {
		close(started)
		<-release
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.ctxErrs = append(f.ctxErrs, ctx.Err())
	if f.err != nil {
		return "", f.err
	}
	return fmt.Sprintf("ORD-%d", n), nil
}

func (f *fakeOrders) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeIncidents struct {
	mu        sync.Mutex
	incidents []ports.PartialFailureIncident
}

func (f *fakeIncidents) ReportPartialFailure(_ context.Context, incident ports.PartialFailureIncident) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.incidents = append(f.incidents, incident)
	return nil
}

type fakeArchiver struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (f *fakeArchiver) ArchiveSnapshot(_ context.Context, snapshot domain.OrderSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, snapshot.IdempotencyKey())
	return f.err
}

type recordingBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *recordingBus) Publish(_ context.Context, event events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func (b *recordingBus) PublishSync(ctx context.Context, event events.Event) error {
	b.Publish(ctx, event)
	return nil
}

func (b *recordingBus) Subscribe(string, events.Handler) {}

func (b *recordingBus) Names() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, 0, len(b.events))
	for _, e := range b.events {
		names = append(names, e.EventName())
	}
	return names
}
