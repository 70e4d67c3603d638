package mqdispatch

import (
	jsoniter "github.com/json-iterator/go"
)

// Message 与传输层无关的消息，由各传输层转换为各自的格式
type Message struct {
	Topic       string                 `json:"topic,omitempty"` // AMQP中为exchange
	Tag         string                 `json:"tag,omitempty"`   // AMQP中为routing key
	Keys        []string               `json:"keys,omitempty"`  // 业务KEY，AMQP中第一个作为MessageId
	Headers     map[string]interface{} `json:"headers,omitempty"`
	ContentType string                 `json:"content_type,omitempty"`
	Body        []byte                 `json:"-"`
}

func (m *Message) ToString() string {
	out, _ := jsoniter.MarshalToString(m)
	return out
}

// Key 返回第一个业务KEY，没有则新生成一个
func (m *Message) Key() string {
	if len(m.Keys) == 0 {
		m.Keys = []string{GetUniqKey()}
	} else if m.Keys[0] == "" {
		m.Keys[0] = GetUniqKey()
	}
	return m.Keys[0]
}
