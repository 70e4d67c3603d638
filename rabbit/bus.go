// Package rabbit runs AMQP 0-9-1 commands (publish, declare, bind, delete)
// through a mqdispatch.Dispatcher, so that any number of goroutines can share
// one channel.
package rabbit

import (
	"context"
	"errors"
	"time"

	"github.com/wgdzlh/mqdispatch"

	amqp "github.com/rabbitmq/amqp091-go"
)

var ErrPublishNacked = errors.New("broker nacked the published message")

type Bus struct {
	cfg        *mqdispatch.Config
	conn       *Connection
	dispatcher *mqdispatch.Dispatcher[*amqp.Channel]
}

func NewBus(cfg *mqdispatch.Config, opts ...mqdispatch.Option) (b *Bus, err error) {
	conn, err := NewConnection(cfg)
	if err != nil {
		return
	}
	pc := mqdispatch.NewPersistentChannel[*amqp.Channel](newChannelFactory(conn, cfg), cfg)
	d, err := mqdispatch.NewDispatcher[*amqp.Channel](cfg, pc, opts...)
	if err != nil {
		_ = conn.Close()
		return
	}
	b = &Bus{cfg: cfg, conn: conn, dispatcher: d}
	return
}

// Dispatcher gives direct access for commands the Bus does not wrap.
func (b *Bus) Dispatcher() *mqdispatch.Dispatcher[*amqp.Channel] {
	return b.dispatcher
}

func (b *Bus) publishing(msg *mqdispatch.Message) amqp.Publishing {
	p := amqp.Publishing{
		Headers:     amqp.Table(msg.Headers),
		ContentType: msg.ContentType,
		MessageId:   msg.Key(),
		Timestamp:   time.Now(),
		Body:        msg.Body,
	}
	if b.cfg.PersistentMessages {
		p.DeliveryMode = amqp.Persistent
	}
	return p
}

func (b *Bus) publishAction(ctx context.Context, msg *mqdispatch.Message) func(ch *amqp.Channel) error {
	p := b.publishing(msg)
	return func(ch *amqp.Channel) error {
		ctx, cancel := mqdispatch.WithDefaultTimeout(ctx, b.cfg.OperationTimeout())
		defer cancel()
		if err := mqdispatch.CheckTTL(ctx); err != nil {
			return err
		}
		if !b.cfg.PublisherConfirms {
			return ch.PublishWithContext(ctx, msg.Topic, msg.Tag, false, false, p)
		}
		dc, err := ch.PublishWithDeferredConfirmWithContext(ctx, msg.Topic, msg.Tag, false, false, p)
		if err != nil {
			return err
		}
		ok, err := dc.WaitContext(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return ErrPublishNacked
		}
		return nil
	}
}

// Publish 发布消息到exchange msg.Topic，routing key为msg.Tag
func (b *Bus) Publish(ctx context.Context, msg *mqdispatch.Message) error {
	return b.dispatcher.Do(b.publishAction(ctx, msg))
}

func (b *Bus) PublishAsync(ctx context.Context, msg *mqdispatch.Message) (*mqdispatch.Future[struct{}], error) {
	return b.dispatcher.DoAsync(b.publishAction(ctx, msg))
}

func (b *Bus) ExchangeDeclare(ex Exchange) error {
	if ex.Name == "" {
		return ErrBlankName
	}
	return b.dispatcher.Do(func(ch *amqp.Channel) error {
		return ch.ExchangeDeclare(ex.Name, ex.kind(), ex.Durable, ex.AutoDelete, ex.Internal, false, ex.Arguments)
	})
}

func (b *Bus) ExchangeDelete(name string) error {
	return b.dispatcher.Do(func(ch *amqp.Channel) error {
		return ch.ExchangeDelete(name, false, false)
	})
}

// QueueDeclare 返回的Queue带有broker确认（或生成）的名称
func (b *Bus) QueueDeclare(q Queue) (Queue, error) {
	declared, err := mqdispatch.Invoke(b.dispatcher, func(ch *amqp.Channel) (amqp.Queue, error) {
		return ch.QueueDeclare(q.Name, q.Durable, q.AutoDelete, q.Exclusive, false, q.Arguments)
	})
	if err != nil {
		return q, err
	}
	q.Name = declared.Name
	return q, nil
}

func (b *Bus) Bind(bd Binding) error {
	if err := bd.validate(); err != nil {
		return err
	}
	return b.dispatcher.Do(func(ch *amqp.Channel) error {
		return ch.QueueBind(bd.Queue, bd.RoutingKey, bd.Exchange, false, bd.Arguments)
	})
}

// BindQueue 绑定并记录队列最近绑定的exchange
func (b *Bus) BindQueue(q *Queue, exchange, routingKey string) error {
	if err := b.Bind(Binding{Queue: q.Name, Exchange: exchange, RoutingKey: routingKey}); err != nil {
		return err
	}
	q.BoundExchange = exchange
	return nil
}

func (b *Bus) Unbind(bd Binding) error {
	if err := bd.validate(); err != nil {
		return err
	}
	return b.dispatcher.Do(func(ch *amqp.Channel) error {
		return ch.QueueUnbind(bd.Queue, bd.RoutingKey, bd.Exchange, bd.Arguments)
	})
}

// QueueDelete 返回删除时队列中的消息数
func (b *Bus) QueueDelete(name string) (int, error) {
	return mqdispatch.Invoke(b.dispatcher, func(ch *amqp.Channel) (int, error) {
		return ch.QueueDelete(name, false, false, false)
	})
}

func (b *Bus) QueuePurge(name string) (int, error) {
	return mqdispatch.Invoke(b.dispatcher, func(ch *amqp.Channel) (int, error) {
		return ch.QueuePurge(name, false)
	})
}

// Shutdown 先停止命令分发（释放channel），再关闭连接
func (b *Bus) Shutdown() {
	b.dispatcher.Shutdown()
	_ = b.conn.Close()
}
