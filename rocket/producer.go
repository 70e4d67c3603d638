package rocket

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/wgdzlh/mqdispatch"

	rocketmq "github.com/apache/rocketmq-client-go/v2"
	"github.com/apache/rocketmq-client-go/v2/primitive"
	"github.com/apache/rocketmq-client-go/v2/producer"
)

const (
	DefaultRetry = 3
	pubGpSuffix  = "-pub-gp"
)

var ErrStartFailed = errors.New("failed to start rocketmq producer")

// producerFactory 把rocketmq生产者作为dispatcher的传输channel
type producerFactory struct {
	groupName   string
	nameServer  string
	newProducer func(opts ...producer.Option) (rocketmq.Producer, error)
}

func newProducerFactory(cfg *mqdispatch.Config) *producerFactory {
	gp := cfg.GroupName
	if gp == "" {
		gp = cfg.Name + pubGpSuffix
	}
	return &producerFactory{
		groupName:   gp,
		nameServer:  cfg.NameServer,
		newProducer: rocketmq.NewProducer,
	}
}

func (f *producerFactory) Open() (p rocketmq.Producer, err error) {
	if p, err = f.newProducer(
		producer.WithNsResolver(primitive.NewPassthroughResolver([]string{f.nameServer})),
		producer.WithGroupName(f.groupName),
		producer.WithRetry(DefaultRetry),
	); err != nil {
		return
	}
	if err = p.Start(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStartFailed, err)
	}
	return
}

func (f *producerFactory) Close(p rocketmq.Producer) error {
	if p == nil {
		return nil
	}
	return p.Shutdown()
}

// Recoverable 只有启动失败与网络错误需要重建生产者，发送失败由客户端自身重试
func (f *producerFactory) Recoverable(err error) bool {
	if errors.Is(err, ErrStartFailed) {
		return true
	}
	// 调用方的ctx到期或取消，重建生产者也无济于事
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	var ne net.Error
	return errors.As(err, &ne)
}
