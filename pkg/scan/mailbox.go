package scan

import "sync"

// mailbox is an unbounded multi-producer single-consumer queue. Producers
// never block, which allows platform callbacks to be delivered from within
// the consuming goroutine.
type mailbox struct {
	items  []any
	signal chan struct{}
	closed bool
	mutex  sync.Mutex
}

func newMailbox() *mailbox {
	return &mailbox{
		signal: make(chan struct{}, 1),
	}
}

func (m *mailbox) push(item any) bool {
	// acquire mutex
	m.mutex.Lock()
	defer m.mutex.Unlock()

	// check state
	if m.closed {
		return false
	}

	// add item
	m.items = append(m.items, item)

	// signal consumer
	select {
	case m.signal <- struct{}{}:
	default:
	}

	return true
}

func (m *mailbox) drain() []any {
	// acquire mutex
	m.mutex.Lock()
	defer m.mutex.Unlock()

	// take items
	items := m.items
	m.items = nil

	return items
}

func (m *mailbox) close() {
	// acquire mutex
	m.mutex.Lock()
	defer m.mutex.Unlock()

	// set flag and drop items
	m.closed = true
	m.items = nil
}
