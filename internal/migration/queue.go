package migration

import "sync"

// idQueue is an unbounded, ordered channel of item ids. Closing the input
// is the end-of-stream sentinel: the output closes once every queued id has
// been delivered.
type idQueue struct {
	in     chan int64
	out    chan int64
	closer sync.Once
}

func newIDQueue() *idQueue {
	q := &idQueue{
		in:  make(chan int64),
		out: make(chan int64),
	}
	go q.forward()
	return q
}

func (q *idQueue) forward() {
	defer close(q.out)
	var pending []int64
	in := q.in
	for in != nil || len(pending) > 0 {
		var out chan int64
		var next int64
		if len(pending) > 0 {
			out = q.out
			next = pending[0]
		}
		select {
		case id, ok := <-in:
			if !ok {
				in = nil
				continue
			}
			pending = append(pending, id)
		case out <- next:
			pending = pending[1:]
		}
	}
}

// Send queues id. It never blocks on the consumer.
func (q *idQueue) Send(id int64) {
	q.in <- id
}

// Close sends the sentinel. Later calls are no-ops.
func (q *idQueue) Close() {
	q.closer.Do(func() { close(q.in) })
}

// Receive returns the delivery side.
func (q *idQueue) Receive() <-chan int64 {
	return q.out
}
