package orchestrator

import (
	"sync"

	"github.com/yllada/ncconnect/common"
)

// item is one mailbox entry: an event or a task result.
type item struct {
	event  common.Event
	result *TaskResult
}

// Mailbox serializes events from every producer into the dispatcher.
// Post is safe from any goroutine except the dispatch goroutine itself.
type Mailbox struct {
	ch        chan item
	done      chan struct{}
	closeOnce sync.Once
}

// NewMailbox creates a mailbox buffering up to size items.
func NewMailbox(size int) *Mailbox {
	if size <= 0 {
		size = common.MailboxSize
	}
	return &Mailbox{
		ch:   make(chan item, size),
		done: make(chan struct{}),
	}
}

// Post enqueues ev. After Close it is discarded.
func (m *Mailbox) Post(ev common.Event) {
	m.send(item{event: ev})
}

func (m *Mailbox) complete(r TaskResult) {
	m.send(item{result: &r})
}

func (m *Mailbox) send(it item) {
	select {
	case <-m.done:
		return
	default:
	}

	select {
	case m.ch <- it:
	case <-m.done:
	}
}

// Close stops accepting items. It is safe to call more than once.
func (m *Mailbox) Close() {
	m.closeOnce.Do(func() { close(m.done) })
}
