// Package rocket 通过mqdispatch.Dispatcher串行地使用单个RocketMQ生产者发送消息
package rocket

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/wgdzlh/mqdispatch"
	"github.com/wgdzlh/mqdispatch/log"

	rocketmq "github.com/apache/rocketmq-client-go/v2"
	"github.com/apache/rocketmq-client-go/v2/primitive"
	"github.com/apache/rocketmq-client-go/v2/rlog"
	"go.uber.org/zap"
)

var (
	ErrSendFailed   = errors.New("failed to send msg")
	ErrMisformedMsg = errors.New("input msg is invalid")

	rlogOnce sync.Once
)

type Client struct {
	Name       string // 客户端名称（即本服务名称）
	nameServer string
	cfg        *mqdispatch.Config
	dispatcher *mqdispatch.Dispatcher[rocketmq.Producer]
}

func NewClient(cfg *mqdispatch.Config, opts ...mqdispatch.Option) (c *Client, err error) {
	if cfg == nil || cfg.NameServer == "" {
		return nil, fmt.Errorf("%w: nameServer is required", mqdispatch.ErrInvalidConfig)
	}
	rlogOnce.Do(func() {
		rlog.SetLogger(log.NewRlogAdapter())
	})
	return newClient(cfg, newProducerFactory(cfg), opts...)
}

func newClient(cfg *mqdispatch.Config, f *producerFactory, opts ...mqdispatch.Option) (c *Client, err error) {
	pc := mqdispatch.NewPersistentChannel[rocketmq.Producer](f, cfg)
	d, err := mqdispatch.NewDispatcher[rocketmq.Producer](cfg, pc, opts...)
	if err != nil {
		return
	}
	c = &Client{
		Name:       cfg.Name,
		nameServer: cfg.NameServer,
		cfg:        cfg,
		dispatcher: d,
	}
	log.Info("rocketmq client created", zap.String("name", c.Name),
		zap.String("nameServer", c.nameServer), zap.String("group", f.groupName))
	return
}

func checkMsg(msg *mqdispatch.Message) error {
	if msg == nil || msg.Topic == "" {
		return ErrMisformedMsg
	}
	return nil
}

func toRkMessage(msg *mqdispatch.Message) *primitive.Message {
	m := primitive.NewMessage(msg.Topic, msg.Body).WithTag(msg.Tag).WithKeys(msg.Keys)
	for k, v := range msg.Headers {
		m.WithProperty(k, fmt.Sprint(v))
	}
	return m
}

func (c *Client) sendAction(ctx context.Context, msg *mqdispatch.Message) func(p rocketmq.Producer) (string, error) {
	rkMsg := toRkMessage(msg)
	return func(p rocketmq.Producer) (msgID string, err error) {
		ctx, cancel := mqdispatch.WithDefaultTimeout(ctx, c.cfg.OperationTimeout())
		defer cancel()
		if err = mqdispatch.CheckTTL(ctx); err != nil {
			return
		}
		ret, err := p.SendSync(ctx, rkMsg)
		if err != nil {
			return
		}
		if ret.Status != primitive.SendOK {
			err = ErrSendFailed
			log.Error(err.Error(), zap.String("ret", ret.String()), zap.String("msg", msg.ToString()))
			return
		}
		return ret.MsgID, nil
	}
}

// SendMessage 同步发送，返回broker分配的消息ID
func (c *Client) SendMessage(ctx context.Context, msg *mqdispatch.Message) (msgID string, err error) {
	if err = checkMsg(msg); err != nil {
		return
	}
	return mqdispatch.Invoke(c.dispatcher, c.sendAction(ctx, msg))
}

func (c *Client) SendMessageAsync(ctx context.Context, msg *mqdispatch.Message) (*mqdispatch.Future[string], error) {
	if err := checkMsg(msg); err != nil {
		return nil, err
	}
	return mqdispatch.InvokeAsync(c.dispatcher, c.sendAction(ctx, msg))
}

// SendOneWay 不等待broker确认
func (c *Client) SendOneWay(ctx context.Context, msg *mqdispatch.Message) error {
	if err := checkMsg(msg); err != nil {
		return err
	}
	rkMsg := toRkMessage(msg)
	return c.dispatcher.Do(func(p rocketmq.Producer) error {
		if err := mqdispatch.CheckTTL(ctx); err != nil {
			return err
		}
		return p.SendOneWay(ctx, rkMsg)
	})
}

func (c *Client) Dispatcher() *mqdispatch.Dispatcher[rocketmq.Producer] {
	return c.dispatcher
}

func (c *Client) Shutdown() {
	c.dispatcher.Shutdown()
}
