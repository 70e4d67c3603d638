package mqdispatch

import "sync"

// QueueSize bounds the commands waiting for the worker. Producers block
// beyond it.
const QueueSize = 1

type dispatchQueue[C any] struct {
	items  chan *envelope[C]
	done   chan struct{}
	mu     sync.RWMutex // RLock held by producers while sending, Lock by seal
	sealed bool
}

func newDispatchQueue[C any](size int) *dispatchQueue[C] {
	return &dispatchQueue[C]{
		items: make(chan *envelope[C], size),
		done:  make(chan struct{}),
	}
}

// push blocks while the queue is full. It fails with ErrCancelled once
// shutdown has been signalled, whether or not it was already waiting.
func (q *dispatchQueue[C]) push(e *envelope[C]) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.sealed || q.isShutdown() {
		return ErrCancelled
	}
	select {
	case q.items <- e:
		return nil
	case <-q.done:
		return ErrCancelled
	}
}

// pop blocks while the queue is empty; ok is false after shutdown or seal.
func (q *dispatchQueue[C]) pop() (e *envelope[C], ok bool) {
	if q.isShutdown() {
		return
	}
	select {
	case e, ok = <-q.items:
		// ok is false once seal has closed items
		return
	case <-q.done:
		return
	}
}

func (q *dispatchQueue[C]) isShutdown() bool {
	select {
	case <-q.done:
		return true
	default:
		return false
	}
}

func (q *dispatchQueue[C]) shutdown() {
	close(q.done)
}

// seal waits for in-flight producers to give up and closes items so that
// drain terminates. Must follow shutdown.
func (q *dispatchQueue[C]) seal() {
	q.mu.Lock()
	q.sealed = true
	close(q.items)
	q.mu.Unlock()
}

// drain returns everything left behind by shutdown. Blocks until seal.
func (q *dispatchQueue[C]) drain() (left []*envelope[C]) {
	for e := range q.items {
		left = append(left, e)
	}
	return
}

func (q *dispatchQueue[C]) depth() int {
	return len(q.items)
}
