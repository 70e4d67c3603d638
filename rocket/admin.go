package rocket

import (
	"context"

	"github.com/wgdzlh/mqdispatch/log"

	"github.com/apache/rocketmq-client-go/v2/admin"
	"github.com/apache/rocketmq-client-go/v2/primitive"
	"go.uber.org/zap"
)

const (
	DefaultBrokerAddr = "broker-a.rocketmq.svc.cluster.local:10911"
	defaultQueueNums  = 4
)

// CreateTopics 在broker上创建不存在的topic，遇到第一个失败即返回
func CreateTopics(ctx context.Context, nameServer, brokerAddr string, topics ...string) (err error) {
	if len(topics) == 0 {
		return
	}
	if brokerAddr == "" {
		brokerAddr = DefaultBrokerAddr
	}
	log.Info("creating topics if not exist", zap.String("brokerAddr", brokerAddr), zap.Strings("topics", topics))
	mqAdmin, err := admin.NewAdmin(
		admin.WithResolver(primitive.NewPassthroughResolver([]string{nameServer})),
	)
	if err != nil {
		log.Error("create admin instance failed", zap.Error(err))
		return
	}
	defer mqAdmin.Close()
	for _, topic := range topics {
		if err = mqAdmin.CreateTopic(
			ctx,
			admin.WithTopicCreate(topic),
			admin.WithReadQueueNums(defaultQueueNums),
			admin.WithWriteQueueNums(defaultQueueNums),
			admin.WithBrokerAddrCreate(brokerAddr),
		); err != nil {
			log.Warn("create topic failed", zap.String("topic", topic), zap.Error(err))
			return
		}
	}
	return
}
