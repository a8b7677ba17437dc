package settlement

import (
	"context"
	"runtime"
	"sync/atomic"
)

// EventHandler consumes events in publish order on a single goroutine. The
// pointer refers to a ring slot and must not be retained after OnEvent returns.
type EventHandler[T any] interface {
	OnEvent(event *T)
}

// RingBuffer is a multi-producer single-consumer ring buffer.
type RingBuffer[T any] struct {
	_                [56]byte
	producerSequence atomic.Int64
	_                [56]byte
	consumerSequence atomic.Int64
	_                [56]byte

	buffer     []T
	bufferMask int64
	capacity   int64

	// published[i] holds the sequence last committed into slot i
	published []int64

	handler    EventHandler[T]
	isShutdown atomic.Bool
	isRunning  atomic.Bool
	stopped    chan struct{}
}

// NewRingBuffer creates a ring buffer. capacity must be a power of 2.
func NewRingBuffer[T any](capacity int64, handler EventHandler[T]) *RingBuffer[T] {
	if capacity <= 0 || (capacity&(capacity-1)) != 0 {
		panic("size must be a power of 2")
	}

	rb := &RingBuffer[T]{
		buffer:     make([]T, capacity),
		published:  make([]int64, capacity),
		capacity:   capacity,
		bufferMask: capacity - 1,
		handler:    handler,
		stopped:    make(chan struct{}),
	}

	rb.producerSequence.Store(-1)
	rb.consumerSequence.Store(-1)
	for i := range rb.published {
		atomic.StoreInt64(&rb.published[i], -1)
	}

	return rb
}

// Claim reserves the next slot and returns its sequence and a pointer to it.
// The caller fills the slot and then calls Commit. After Shutdown it returns
// (-1, nil).
func (rb *RingBuffer[T]) Claim() (int64, *T) {
	if rb.isShutdown.Load() {
		return -1, nil
	}

	for {
		current := rb.producerSequence.Load()
		next := current + 1

		// never lap the consumer
		if next-rb.capacity > rb.consumerSequence.Load() {
			runtime.Gosched()
			continue
		}

		if rb.producerSequence.CompareAndSwap(current, next) {
			return next, &rb.buffer[next&rb.bufferMask]
		}
		runtime.Gosched()
	}
}

// Commit makes a claimed slot visible to the consumer.
func (rb *RingBuffer[T]) Commit(seq int64) {
	atomic.StoreInt64(&rb.published[seq&rb.bufferMask], seq)
}

// Publish copies event into the next slot. It is safe for concurrent
// producers and returns false once Shutdown has been called.
func (rb *RingBuffer[T]) Publish(event T) bool {
	seq, slot := rb.Claim()
	if slot == nil {
		return false
	}
	*slot = event
	rb.Commit(seq)
	return true
}

// Run consumes events on the calling goroutine until Shutdown. Events claimed
// before Shutdown are still handled.
func (rb *RingBuffer[T]) Run() {
	if !rb.isRunning.CompareAndSwap(false, true) {
		return
	}
	defer close(rb.stopped)

	next := rb.consumerSequence.Load() + 1
	for {
		available := rb.producerSequence.Load()

		if rb.isShutdown.Load() {
			// claims racing with the flag may land after the first load
			for available = rb.producerSequence.Load(); next <= available; next++ {
				rb.consume(next)
			}
			return
		}

		processed := false
		for next <= available {
			rb.consume(next)
			next++
			processed = true
		}

		if !processed {
			runtime.Gosched()
		}
	}
}

// Shutdown stops accepting events and waits until every claimed event has
// been handled, or ctx is done.
func (rb *RingBuffer[T]) Shutdown(ctx context.Context) error {
	rb.isShutdown.Store(true)

	for {
		if rb.isRunning.Load() {
			select {
			case <-rb.stopped:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if rb.ConsumerSequence() >= rb.ProducerSequence() {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			runtime.Gosched()
		}
	}
}

func (rb *RingBuffer[T]) consume(seq int64) {
	index := seq & rb.bufferMask

	// the slot may be claimed but not committed yet
	for atomic.LoadInt64(&rb.published[index]) != seq {
		runtime.Gosched()
	}

	rb.handler.OnEvent(&rb.buffer[index])

	var zero T
	rb.buffer[index] = zero
	rb.consumerSequence.Store(seq)
}

// ConsumerSequence returns the last handled sequence.
func (rb *RingBuffer[T]) ConsumerSequence() int64 {
	return rb.consumerSequence.Load()
}

// ProducerSequence returns the last claimed sequence.
func (rb *RingBuffer[T]) ProducerSequence() int64 {
	return rb.producerSequence.Load()
}

// GetPendingEvents returns the number of claimed but unhandled events.
func (rb *RingBuffer[T]) GetPendingEvents() int64 {
	return rb.producerSequence.Load() - rb.consumerSequence.Load()
}
