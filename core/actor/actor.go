// Package actor wires the core into the message-passing scheduling model
// from spec section 5: one long-lived actor per subsystem, each draining a
// bounded mailbox on its own goroutine, with parallelism across actors but
// single-threaded mutation within each. It generalizes the teacher's
// core/messages.go MessageQueue (a mutex-guarded FIFO shared by callers)
// into typed Go channels owned by a single actor apiece, and
// core/finalization_management.go's FinalizationManager into the
// block-applied subscription fan-out.
package actor

import (
	"sync"

	"github.com/shardflow/flownode/core/chain"
)

// blockFanout distributes newly-applied blocks to subscribers (spec section
// 6, "Subscription stream of newly-applied blocks"). Each subscriber owns
// its channel; a slow subscriber's full channel is skipped rather than
// blocking the publishing actor, mirroring the block-acceptor's own
// mailbox-drops-when-full backpressure rule.
type blockFanout struct {
	mu   sync.Mutex
	subs map[int]chan chain.Block
	next int
}

func newBlockFanout() *blockFanout {
	return &blockFanout{subs: make(map[int]chan chain.Block)}
}

// Subscribe registers a new subscriber and returns its channel and a cancel
// function to unregister it.
func (f *blockFanout) Subscribe(buffer int) (<-chan chain.Block, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.next
	f.next++
	ch := make(chan chain.Block, buffer)
	f.subs[id] = ch
	return ch, func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if ch, ok := f.subs[id]; ok {
			delete(f.subs, id)
			close(ch)
		}
	}
}

// publish fans block out to every current subscriber without blocking.
func (f *blockFanout) publish(block chain.Block) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs {
		select {
		case ch <- block:
		default:
		}
	}
}
