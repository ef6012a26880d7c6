package stream

import (
	"sync"

	"github.com/rxtech-lab/kline-sentinel/internal/protocol"
)

// pendingTable maps correlation ids to the waiter of the response.
type pendingTable struct {
	mu      sync.Mutex
	entries map[uint64]chan protocol.Frame
}

func newPendingTable() *pendingTable {
	return &pendingTable{
		mu:      sync.Mutex{},
		entries: make(map[uint64]chan protocol.Frame),
	}
}

func (p *pendingTable) register(id uint64) <-chan protocol.Frame {
	ch := make(chan protocol.Frame, 1)

	p.mu.Lock()
	p.entries[id] = ch
	p.mu.Unlock()

	return ch
}

// resolve hands the frame to its waiter and removes the entry. It returns
// false when no request with the frame's id is pending.
func (p *pendingTable) resolve(frame protocol.Frame) bool {
	p.mu.Lock()
	ch, ok := p.entries[frame.ID]
	delete(p.entries, frame.ID)
	p.mu.Unlock()

	if ok {
		ch <- frame
	}

	return ok
}

func (p *pendingTable) has(id uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, ok := p.entries[id]

	return ok
}

func (p *pendingTable) remove(id uint64) {
	p.mu.Lock()
	delete(p.entries, id)
	p.mu.Unlock()
}

func (p *pendingTable) clear() {
	p.mu.Lock()
	clear(p.entries)
	p.mu.Unlock()
}

func (p *pendingTable) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.entries)
}
