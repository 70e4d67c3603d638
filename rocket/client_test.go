package rocket

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/wgdzlh/mqdispatch"

	rocketmq "github.com/apache/rocketmq-client-go/v2"
	"github.com/apache/rocketmq-client-go/v2/primitive"
	"github.com/apache/rocketmq-client-go/v2/producer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProducer 只实现客户端用到的方法
type fakeProducer struct {
	rocketmq.Producer

	mu       sync.Mutex
	startErr error
	status   primitive.SendStatus
	sent     []*primitive.Message
	oneway   []*primitive.Message
	started  bool
	shutdown bool
}

func (p *fakeProducer) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.startErr != nil {
		return p.startErr
	}
	p.started = true
	return nil
}

func (p *fakeProducer) Shutdown() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shutdown = true
	return nil
}

func (p *fakeProducer) SendSync(_ context.Context, msgs ...*primitive.Message) (*primitive.SendResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, msgs...)
	return &primitive.SendResult{Status: p.status, MsgID: "msg-" + msgs[0].Topic}, nil
}

func (p *fakeProducer) SendOneWay(_ context.Context, msgs ...*primitive.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.oneway = append(p.oneway, msgs...)
	return nil
}

func testConfig() *mqdispatch.Config {
	cfg := mqdispatch.DefaultConfig()
	cfg.NameServer = "127.0.0.1:9876"
	cfg.Name = "orders"
	cfg.Timeout = 2
	return cfg
}

func newTestClient(t *testing.T, producers ...*fakeProducer) *Client {
	t.Helper()
	cfg := testConfig()
	f := newProducerFactory(cfg)
	var n int
	f.newProducer = func(...producer.Option) (rocketmq.Producer, error) {
		p := producers[n]
		if n < len(producers)-1 {
			n++
		}
		return p, nil
	}
	c, err := newClient(cfg, f)
	require.NoError(t, err)
	t.Cleanup(c.Shutdown)
	return c
}

func TestNewClientRequiresNameServer(t *testing.T) {
	_, err := NewClient(mqdispatch.DefaultConfig())
	assert.ErrorIs(t, err, mqdispatch.ErrInvalidConfig)
	_, err = NewClient(nil)
	assert.ErrorIs(t, err, mqdispatch.ErrInvalidConfig)
}

func TestProducerGroupDefaultsToName(t *testing.T) {
	cfg := testConfig()
	assert.Equal(t, "orders-pub-gp", newProducerFactory(cfg).groupName)
	cfg.GroupName = "billing"
	assert.Equal(t, "billing", newProducerFactory(cfg).groupName)
}

func TestSendMessage(t *testing.T) {
	p := &fakeProducer{status: primitive.SendOK}
	c := newTestClient(t, p)

	msg := &mqdispatch.Message{
		Topic:   "order-created",
		Tag:     "v1",
		Keys:    []string{"o-1"},
		Headers: map[string]interface{}{"attempt": 2},
		Body:    []byte(`{"id":1}`),
	}
	id, err := c.SendMessage(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, "msg-order-created", id)

	require.Len(t, p.sent, 1)
	sent := p.sent[0]
	assert.Equal(t, "v1", sent.GetTags())
	assert.Equal(t, "o-1", sent.GetKeys())
	assert.Equal(t, "2", sent.GetProperty("attempt"))
	assert.True(t, p.started)
}

func TestSendMessageAsync(t *testing.T) {
	c := newTestClient(t, &fakeProducer{status: primitive.SendOK})

	fut, err := c.SendMessageAsync(context.Background(), &mqdispatch.Message{Topic: "audit"})
	require.NoError(t, err)
	id, err := fut.Get()
	require.NoError(t, err)
	assert.Equal(t, "msg-audit", id)
}

func TestSendMessageRejectedByBroker(t *testing.T) {
	c := newTestClient(t, &fakeProducer{status: primitive.SendFlushDiskTimeout})

	_, err := c.SendMessage(context.Background(), &mqdispatch.Message{Topic: "audit"})
	assert.ErrorIs(t, err, ErrSendFailed)

	// 失败不影响后续命令
	err = c.SendOneWay(context.Background(), &mqdispatch.Message{Topic: "audit"})
	assert.NoError(t, err)
}

func TestMisformedMessage(t *testing.T) {
	c := newTestClient(t, &fakeProducer{status: primitive.SendOK})

	_, err := c.SendMessage(context.Background(), nil)
	assert.ErrorIs(t, err, ErrMisformedMsg)
	_, err = c.SendMessageAsync(context.Background(), &mqdispatch.Message{})
	assert.ErrorIs(t, err, ErrMisformedMsg)
	assert.ErrorIs(t, c.SendOneWay(context.Background(), &mqdispatch.Message{}), ErrMisformedMsg)
}

func TestSendOneWay(t *testing.T) {
	p := &fakeProducer{}
	c := newTestClient(t, p)

	require.NoError(t, c.SendOneWay(context.Background(), &mqdispatch.Message{Topic: "metrics", Body: []byte("x")}))
	require.Len(t, p.oneway, 1)
	assert.Equal(t, "metrics", p.oneway[0].Topic)
}

func TestRestartAfterFailedStart(t *testing.T) {
	broken := &fakeProducer{startErr: errors.New("name server unreachable")}
	healthy := &fakeProducer{status: primitive.SendOK}
	c := newTestClient(t, broken, healthy)

	id, err := c.SendMessage(context.Background(), &mqdispatch.Message{Topic: "audit"})
	require.NoError(t, err)
	assert.Equal(t, "msg-audit", id)
	assert.False(t, broken.started)
	assert.True(t, healthy.started)

	c.Shutdown()
	assert.True(t, healthy.shutdown)
}

func TestProducerRecoverable(t *testing.T) {
	f := newProducerFactory(testConfig())
	assert.True(t, f.Recoverable(ErrStartFailed))
	assert.True(t, f.Recoverable(&net.OpError{Op: "dial", Err: errors.New("refused")}))
	assert.False(t, f.Recoverable(ErrSendFailed))
	assert.False(t, f.Recoverable(errors.New("topic not exist")))
	assert.False(t, f.Recoverable(context.DeadlineExceeded))
}

func TestSendWithExpiredContext(t *testing.T) {
	p := &fakeProducer{status: primitive.SendOK}
	c := newTestClient(t, p)

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	time.Sleep(5 * time.Millisecond)

	_, err := c.SendMessage(ctx, &mqdispatch.Message{Topic: "audit"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorIs(t, c.SendOneWay(ctx, &mqdispatch.Message{Topic: "audit"}), context.DeadlineExceeded)
	assert.Empty(t, p.sent)
	assert.Empty(t, p.oneway)
}
