package mqdispatch

import (
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageToStringOmitsBody(t *testing.T) {
	m := &Message{
		Topic:   "orders",
		Tag:     "created",
		Keys:    []string{"o-1"},
		Headers: map[string]interface{}{"tenant": "acme"},
		Body:    []byte("secret payload"),
	}
	s := m.ToString()
	assert.NotContains(t, s, "secret payload")

	var got map[string]interface{}
	require.NoError(t, jsoniter.UnmarshalFromString(s, &got))
	assert.Equal(t, "orders", got["topic"])
	assert.Equal(t, "created", got["tag"])
	assert.Equal(t, []interface{}{"o-1"}, got["keys"])
}

func TestMessageKey(t *testing.T) {
	m := &Message{Keys: []string{"o-1", "o-2"}}
	assert.Equal(t, "o-1", m.Key())

	m = &Message{}
	k := m.Key()
	assert.NotEmpty(t, k)
	assert.Equal(t, k, m.Key(), "generated key is kept")

	m = &Message{Keys: []string{"", "o-2"}}
	k = m.Key()
	assert.NotEmpty(t, k)
	assert.Equal(t, []string{k, "o-2"}, m.Keys)
}
