package rabbit

import (
	"context"
	"errors"
	"net"
	"sync"

	"github.com/wgdzlh/mqdispatch"
	"github.com/wgdzlh/mqdispatch/log"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

var ErrConnectionClosed = errors.New("amqp connection closed by client")

// dialer is swapped in tests
type dialer func(url string, cfg amqp.Config) (*amqp.Connection, error)

// Connection 懒加载的AMQP连接，断开后在下次取channel时按主机顺序重连
type Connection struct {
	mu     sync.Mutex
	cfg    *mqdispatch.Config
	dial   dialer
	conn   *amqp.Connection
	next   int
	closed bool
	logger *zap.Logger
}

func NewConnection(cfg *mqdispatch.Config) (c *Connection, err error) {
	if cfg == nil {
		return nil, mqdispatch.ErrInvalidConfig
	}
	if err = cfg.Validate(); err != nil {
		return
	}
	if len(cfg.Hosts) == 0 {
		return nil, mqdispatch.ErrInvalidConfig
	}
	c = &Connection{
		cfg:    cfg,
		dial:   amqp.DialConfig,
		logger: log.Named("amqp-connection"),
	}
	return
}

// Channel 打开新的channel，必要时先(重新)建立连接
func (c *Connection) Channel() (*amqp.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrConnectionClosed
	}
	if c.conn == nil || c.conn.IsClosed() {
		if err := c.connect(); err != nil {
			return nil, err
		}
	}
	return c.conn.Channel()
}

func (c *Connection) connect() (err error) {
	amqpCfg := amqp.Config{
		Heartbeat:  c.cfg.HeartbeatInterval(),
		Properties: amqp.Table(c.cfg.ClientProperties()),
		Locale:     "en_US",
	}
	n := len(c.cfg.Hosts)
	for i := 0; i < n; i++ {
		host := c.cfg.Hosts[(c.next+i)%n]
		var conn *amqp.Connection
		if conn, err = c.dial(c.cfg.HostURL(host), amqpCfg); err != nil {
			c.logger.Warn("connect to broker failed", zap.String("host", host.Host),
				zap.Uint16("port", host.Port), zap.Error(err))
			continue
		}
		c.conn = conn
		c.next = (c.next + i + 1) % n
		c.logger.Info("connected to broker", zap.String("host", host.Host), zap.Uint16("port", host.Port))
		return nil
	}
	return
}

func (c *Connection) Close() (err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.conn != nil && !c.conn.IsClosed() {
		err = c.conn.Close()
	}
	c.conn = nil
	return
}

// channelFactory 为持久channel提供*amqp.Channel
type channelFactory struct {
	conn     *Connection
	prefetch int
	confirm  bool
}

func newChannelFactory(conn *Connection, cfg *mqdispatch.Config) *channelFactory {
	return &channelFactory{
		conn:     conn,
		prefetch: int(cfg.PrefetchCount),
		confirm:  cfg.PublisherConfirms,
	}
}

func (f *channelFactory) Open() (ch *amqp.Channel, err error) {
	if ch, err = f.conn.Channel(); err != nil {
		return
	}
	if err = ch.Qos(f.prefetch, 0, false); err == nil && f.confirm {
		err = ch.Confirm(false)
	}
	if err != nil {
		_ = ch.Close()
		return nil, err
	}
	return
}

func (f *channelFactory) Close(ch *amqp.Channel) error {
	if ch == nil || ch.IsClosed() {
		return nil
	}
	return ch.Close()
}

func (f *channelFactory) Recoverable(err error) bool {
	return isRecoverable(err)
}

// isRecoverable 连接/通道断开类错误可在新channel上重试，协议错误（如声明参数冲突）不重试
func isRecoverable(err error) bool {
	if err == nil || errors.Is(err, ErrConnectionClosed) ||
		errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, amqp.ErrClosed) {
		return true
	}
	var ae *amqp.Error
	if errors.As(err, &ae) {
		return ae.Recover || ae.Code == amqp.ConnectionForced
	}
	var ne net.Error
	return errors.As(err, &ne)
}
