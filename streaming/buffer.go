// Copyright (c) 2025 Neomantra Corp

package streaming

import (
	"sync"

	rangebar "github.com/rangebar-go/rangebar"
)

// tickOrErr is one slot in the bounded tick buffer: either a successfully
// pulled tick, or a producer error (including the io.EOF/ErrCircuitOpen
// stream-end sentinels) for the consumer to interpret.
type tickOrErr struct {
	tick rangebar.Tick
	err  error
}

// tickBuffer is C4's bounded tick queue with hysteresis-based backpressure
// (§4.4: "when the tick buffer reaches capacity the engine applies
// backpressure to the producer... until the state machine drains below a
// low-water mark"), grounded on download_manager.go's buffered-channel
// producer/consumer shape, generalized with an explicit low-water-mark
// resume condition a bare channel's capacity-minus-one resume point can't
// express.
type tickBuffer struct {
	mu           sync.Mutex
	cond         *sync.Cond
	items        []tickOrErr
	capacity     int
	lowWaterMark int
	closed       bool
}

func newTickBuffer(capacity, lowWaterMark int) *tickBuffer {
	b := &tickBuffer{capacity: capacity, lowWaterMark: lowWaterMark}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// push enqueues item, blocking the producer once the buffer is at capacity.
// It only wakes once a consumer has drained the buffer down to lowWaterMark
// or fewer items, not merely below capacity.
func (b *tickBuffer) push(item tickOrErr) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for len(b.items) >= b.capacity {
		b.cond.Wait()
	}
	b.items = append(b.items, item)
	b.cond.Broadcast()
}

// pop dequeues the next item, blocking the consumer while the buffer is
// empty. ok is false once the buffer has been closed and fully drained.
func (b *tickBuffer) pop() (tickOrErr, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for len(b.items) == 0 && !b.closed {
		b.cond.Wait()
	}
	if len(b.items) == 0 && b.closed {
		return tickOrErr{}, false
	}
	item := b.items[0]
	b.items = b.items[1:]
	if len(b.items) <= b.lowWaterMark {
		b.cond.Broadcast()
	}
	return item, true
}

// close marks the buffer done; a producer calls this once it has pushed its
// final item (EOF, circuit-open, or cancellation) and will push no more.
func (b *tickBuffer) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.cond.Broadcast()
}
