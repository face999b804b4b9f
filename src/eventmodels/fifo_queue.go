package eventmodels

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

type FIFOQueue[T any] struct {
	caller  string
	queue   chan T
	wg      *sync.WaitGroup
	counter uint
	mutex   *sync.Mutex
}

func NewFIFOQueue[T any](caller string, size int) *FIFOQueue[T] {
	return &FIFOQueue[T]{
		queue:   make(chan T, size),
		wg:      &sync.WaitGroup{},
		counter: 0,
		mutex:   &sync.Mutex{},
		caller:  caller,
	}
}

func (q *FIFOQueue[T]) Len() uint {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	return q.counter
}

func (q *FIFOQueue[T]) Enqueue(item T) {
	q.mutex.Lock()
	q.counter++
	counter := q.counter
	q.mutex.Unlock()

	log.Tracef("%v (%p): Enqueueing item: %v, count=%v", q.caller, q, item, counter)
	q.wg.Add(1)
	q.queue <- item
}

func (q *FIFOQueue[T]) Dequeue() (T, bool) {
	select {
	case item := <-q.queue:
		q.wg.Done()

		q.mutex.Lock()
		q.counter--
		counter := q.counter
		q.mutex.Unlock()

		log.Tracef("%v (%p): Dequeued item: %v, count=%v", q.caller, q, item, counter)

		return item, true
	default:
		var zero T
		return zero, false
	}
}

func (q *FIFOQueue[T]) Close() {
	q.wg.Wait()
	close(q.queue)
}
