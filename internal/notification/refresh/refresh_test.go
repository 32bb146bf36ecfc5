package refresh

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"sales_pipeline_backend/platform/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type recordingNotifier struct {
	mu    sync.Mutex
	leads []uuid.UUID
	got   chan struct{}
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{got: make(chan struct{}, 16)}
}

func (n *recordingNotifier) NotifyLeadChanged(_ context.Context, _ uuid.UUID, leadID uuid.UUID) {
	n.mu.Lock()
	n.leads = append(n.leads, leadID)
	n.mu.Unlock()
	n.got <- struct{}{}
}

type stubPublisher struct {
	name string
	err  error
	mu   sync.Mutex
	msgs []Message
}

func (p *stubPublisher) Name() string { return p.name }

func (p *stubPublisher) Publish(_ context.Context, msg Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return p.err
}

func TestFanoutDeliversToAllDespiteFailures(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ok := &stubPublisher{name: "ok"}
	broken := &stubPublisher{name: "broken", err: errors.New("down")}
	fanout := NewFanout(logger.Nop(), time.Second, broken, ok)

	ctx, cancel := context.WithCancel(context.Background())
	leadID := uuid.New()
	fanout.NotifyLeadChanged(ctx, uuid.New(), leadID)
	// Caller cancellation must not cut delivery short.
	cancel()
	fanout.Wait()

	require.Len(t, ok.msgs, 1)
	assert.Equal(t, leadID, ok.msgs[0].LeadID)
	assert.Len(t, broken.msgs, 1)
}

func TestRedisRelayRoundTrip(t *testing.T) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	local := newRecordingNotifier()
	relay := NewRelay(client, "", local, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx, ready) }()
	<-ready

	leadID := uuid.New()
	pub := NewRedisPublisher(client, "")
	require.NoError(t, pub.Publish(context.Background(), Message{TenantID: uuid.New(), LeadID: leadID, At: time.Now()}))

	select {
	case <-local.got:
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not forward the message")
	}
	local.mu.Lock()
	assert.Equal(t, []uuid.UUID{leadID}, local.leads)
	local.mu.Unlock()

	cancel()
	require.NoError(t, <-done)
}

type fakeChannel struct {
	declared  []string
	published []amqp.Publishing
	keys      []string
}

func (c *fakeChannel) ExchangeDeclare(name, kind string, _, _, _, _ bool, _ amqp.Table) error {
	c.declared = append(c.declared, name+":"+kind)
	return nil
}

func (c *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	c.keys = append(c.keys, exchange+"/"+key)
	c.published = append(c.published, msg)
	return nil
}

func (c *fakeChannel) Close() error { return nil }

func TestAMQPPublisherPublishesPersistentJSON(t *testing.T) {
	ch := &fakeChannel{}
	pub, err := newAMQPPublisher(ch, "")
	require.NoError(t, err)
	assert.Equal(t, []string{DefaultExchange + ":topic"}, ch.declared)

	msg := Message{TenantID: uuid.New(), LeadID: uuid.New(), At: time.Now().UTC()}
	require.NoError(t, pub.Publish(context.Background(), msg))

	require.Len(t, ch.published, 1)
	assert.Equal(t, DefaultExchange+"/"+RoutingKey, ch.keys[0])
	assert.Equal(t, amqp.Persistent, ch.published[0].DeliveryMode)
	assert.Equal(t, "application/json", ch.published[0].ContentType)

	var decoded Message
	require.NoError(t, json.Unmarshal(ch.published[0].Body, &decoded))
	assert.Equal(t, msg.LeadID, decoded.LeadID)
}
