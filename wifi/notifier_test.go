package wifi

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNotifierOrder(t *testing.T) {
	n := NewNotifier()
	defer n.Close()

	var mu sync.Mutex
	var got []string
	detach := n.Subscribe(func(note Notification) {
		mu.Lock()
		got = append(got, note.String())
		mu.Unlock()
	})

	n.Emit(ACMNotification("a", ACMConnectionStart))
	n.Emit(MSMNotification("a", MSMConnected))
	n.Emit(ACMNotification("a", ACMConnectionComplete))
	n.Flush()

	detach()
	n.Emit(ACMNotification("a", ACMDisconnected))
	n.Flush()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"acm:connection_start", "msm:connected", "acm:connection_complete"}, got)
}

func TestNotifierClosed(t *testing.T) {
	n := NewNotifier()
	n.Close()
	n.Close()

	// Emitting after Close must not block, and nothing is left to flush.
	for i := 0; i < 50; i++ {
		n.Emit(ACMNotification("a", ACMScanComplete))
	}
	assertFlushes(t, n)
}

func TestNotifierCloseDropsQueued(t *testing.T) {
	n := NewNotifier()
	release := make(chan struct{})
	n.Subscribe(func(Notification) { <-release })

	for i := 0; i < 10; i++ {
		n.Emit(ACMNotification("a", ACMScanComplete))
	}
	n.Close()
	close(release)

	assertFlushes(t, n)
}

func assertFlushes(t *testing.T, n *Notifier) {
	t.Helper()
	flushed := make(chan struct{})
	go func() {
		n.Flush()
		close(flushed)
	}()
	select {
	case <-flushed:
	case <-time.After(time.Second):
		t.Fatal("Flush did not return")
	}
}
