package mqdispatch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEnvelope(id string) *envelope[*fakeConn] {
	e, _ := newEnvelope(func(*fakeConn) (int, error) { return 0, nil })
	e.id = id
	return e
}

func TestQueueIsFIFO(t *testing.T) {
	q := newDispatchQueue[*fakeConn](3)
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, q.push(testEnvelope(id)))
	}
	assert.Equal(t, 3, q.depth())
	for _, id := range []string{"a", "b", "c"} {
		e, ok := q.pop()
		require.True(t, ok)
		assert.Equal(t, id, e.id)
	}
}

func TestQueuePushBlocksWhenFull(t *testing.T) {
	q := newDispatchQueue[*fakeConn](QueueSize)
	require.NoError(t, q.push(testEnvelope("a")))

	pushed := make(chan error, 1)
	go func() { pushed <- q.push(testEnvelope("b")) }()

	select {
	case <-pushed:
		t.Fatal("push on a full queue returned")
	case <-time.After(50 * time.Millisecond):
	}

	e, ok := q.pop()
	require.True(t, ok)
	assert.Equal(t, "a", e.id)
	select {
	case err := <-pushed:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("push not released by pop")
	}
}

func TestQueueShutdownReleasesBothSides(t *testing.T) {
	q := newDispatchQueue[*fakeConn](QueueSize)

	popped := make(chan bool, 1)
	go func() {
		_, ok := q.pop()
		popped <- ok
	}()
	time.Sleep(20 * time.Millisecond)
	q.shutdown()

	select {
	case ok := <-popped:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("pop not released by shutdown")
	}

	assert.ErrorIs(t, q.push(testEnvelope("late")), ErrCancelled)
}

func TestQueueShutdownReleasesBlockedPush(t *testing.T) {
	q := newDispatchQueue[*fakeConn](QueueSize)
	require.NoError(t, q.push(testEnvelope("a")))

	pushed := make(chan error, 1)
	go func() { pushed <- q.push(testEnvelope("b")) }()
	time.Sleep(20 * time.Millisecond)

	q.shutdown()
	q.seal()
	select {
	case err := <-pushed:
		assert.ErrorIs(t, err, ErrCancelled)
	case <-time.After(time.Second):
		t.Fatal("push not released by shutdown")
	}

	left := q.drain()
	require.Len(t, left, 1)
	assert.Equal(t, "a", left[0].id)
	assert.ErrorIs(t, q.push(testEnvelope("c")), ErrCancelled)
}

func TestQueuePopRacingSealNeverYieldsNil(t *testing.T) {
	for i := 0; i < 20000; i++ {
		q := newDispatchQueue[*fakeConn](QueueSize)
		popped := make(chan bool, 1)
		go func() {
			e, ok := q.pop()
			popped <- ok || e != nil
		}()
		q.shutdown()
		q.seal()
		if <-popped {
			t.Fatalf("round %d: pop returned a command from an empty sealed queue", i)
		}
	}
}
