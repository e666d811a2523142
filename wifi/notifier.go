package wifi

import "sync"

// Notifier delivers notifications to subscribers in emission order on a
// single goroutine. Providers without a native event source use it to
// publish the notifications they synthesize.
type Notifier struct {
	mu       sync.Mutex
	handlers map[int]NotificationHandler
	nextID   int

	queue     chan Notification
	pending   sync.WaitGroup
	closeOnce sync.Once
	done      chan struct{}

	// sendMu is held for reading while Emit queues, so Close can wait out
	// in-flight sends before draining.
	sendMu sync.RWMutex
	closed bool
}

// NewNotifier starts a Notifier's delivery goroutine.
func NewNotifier() *Notifier {
	n := &Notifier{
		handlers: make(map[int]NotificationHandler),
		queue:    make(chan Notification, 64),
		done:     make(chan struct{}),
	}
	go n.deliver()
	return n
}

// Subscribe registers h. The returned function detaches it.
func (n *Notifier) Subscribe(h NotificationHandler) func() {
	n.mu.Lock()
	defer n.mu.Unlock()
	id := n.nextID
	n.nextID++
	n.handlers[id] = h
	return func() {
		n.mu.Lock()
		delete(n.handlers, id)
		n.mu.Unlock()
	}
}

// Emit queues a notification. It is dropped once the Notifier is closed.
func (n *Notifier) Emit(note Notification) {
	n.sendMu.RLock()
	defer n.sendMu.RUnlock()
	if n.closed {
		return
	}
	n.pending.Add(1)
	select {
	case n.queue <- note:
	case <-n.done:
		n.pending.Done()
	}
}

// Flush blocks until every emitted notification has been delivered.
func (n *Notifier) Flush() {
	n.pending.Wait()
}

// Close stops the delivery goroutine. Notifications still queued are
// dropped.
func (n *Notifier) Close() {
	n.closeOnce.Do(func() {
		close(n.done)

		n.sendMu.Lock()
		n.closed = true
		n.sendMu.Unlock()

		for {
			select {
			case <-n.queue:
				n.pending.Done()
			default:
				return
			}
		}
	})
}

func (n *Notifier) deliver() {
	for {
		select {
		case note := <-n.queue:
			n.mu.Lock()
			handlers := make([]NotificationHandler, 0, len(n.handlers))
			for _, h := range n.handlers {
				handlers = append(handlers, h)
			}
			n.mu.Unlock()
			for _, h := range handlers {
				h(note)
			}
			n.pending.Done()
		case <-n.done:
			return
		}
	}
}
