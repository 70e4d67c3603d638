package rabbit

import (
	"errors"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	ExchangeDirect  = amqp.ExchangeDirect
	ExchangeTopic   = amqp.ExchangeTopic
	ExchangeFanout  = amqp.ExchangeFanout
	ExchangeHeaders = amqp.ExchangeHeaders
)

var ErrBlankName = errors.New("topology name must not be blank")

type Exchange struct {
	Name       string
	Type       string // 默认为topic
	Durable    bool
	AutoDelete bool
	Internal   bool
	Arguments  amqp.Table
}

func (e Exchange) kind() string {
	if e.Type == "" {
		return ExchangeTopic
	}
	return e.Type
}

// Queue 名称留空时由broker生成，声明后回填
type Queue struct {
	Name          string
	Durable       bool
	Exclusive     bool
	AutoDelete    bool
	Arguments     amqp.Table
	BoundExchange string // 最近一次绑定的exchange
}

// Binding 把队列绑定到exchange
type Binding struct {
	Queue      string
	Exchange   string
	RoutingKey string
	Arguments  amqp.Table
}

func (b Binding) validate() error {
	if b.Queue == "" || b.Exchange == "" {
		return ErrBlankName
	}
	return nil
}
