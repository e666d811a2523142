package wifi

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// DefaultScanInterval is the minimum time between automatic rescans.
const DefaultScanInterval = 60 * time.Second

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger used for swallowed adapter errors.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithScanInterval sets how stale scan results may get before
// GetAccessPoints rescans.
func WithScanInterval(d time.Duration) Option {
	return func(c *Client) { c.scanInterval = d }
}

// WithWorkers sets how many ConnectAsync calls may run at once.
func WithWorkers(n int) Option {
	return func(c *Client) { c.workers = n }
}

// Client owns the adapters of one provider. It schedules scans, lists access
// points, tracks a coarse connection status and republishes native
// notifications.
//
// A Client whose provider has no adapters is unavailable: every operation is
// a no-op that returns empty results, and ConnectionStatus is Disconnected.
type Client struct {
	adapters  []Adapter
	available bool

	logger       *slog.Logger
	now          func() time.Time
	scanInterval time.Duration
	workers      int
	pool         *workerPool
	unsubscribe  []func()

	mu          sync.Mutex
	lastScanned time.Time
	status      Status
	statusSet   bool

	handlersMu           sync.RWMutex
	nextHandlerID        uint64
	notificationHandlers map[uint64]NotificationHandler
	statusHandlers       map[uint64]func(StatusEvent)
}

// New discovers p's adapters, subscribes to their notifications and runs an
// initial scan.
func New(p Provider, opts ...Option) *Client {
	c := &Client{
		logger:               slog.Default(),
		now:                  time.Now,
		scanInterval:         DefaultScanInterval,
		workers:              DefaultWorkers,
		notificationHandlers: make(map[uint64]NotificationHandler),
		statusHandlers:       make(map[uint64]func(StatusEvent)),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.pool = newWorkerPool(c.workers)

	adapters, err := p.Adapters()
	if err != nil {
		c.logger.Warn("no wifi available", "error", err)
		return c
	}
	if len(adapters) == 0 {
		c.logger.Warn("no wifi available", "error", "no adapters")
		return c
	}
	c.adapters = adapters
	c.available = true

	for _, a := range adapters {
		unsubscribe, err := a.Subscribe(c.handleNotification)
		if err != nil {
			c.logger.Warn("failed to subscribe to notifications", "adapter", a.ID(), "error", err)
			continue
		}
		c.unsubscribe = append(c.unsubscribe, unsubscribe)
	}

	c.Scan()
	return c
}

// Available reports whether the provider had any adapters at construction.
func (c *Client) Available() bool {
	return c.available
}

// Close detaches from adapter notifications and waits for background
// connects to finish.
func (c *Client) Close() {
	for _, unsubscribe := range c.unsubscribe {
		unsubscribe()
	}
	c.unsubscribe = nil
	c.pool.Wait()
}

// Scan asks every adapter to rescan. Adapters that fail are skipped.
func (c *Client) Scan() {
	for _, a := range c.adapters {
		if err := a.Scan(); err != nil {
			c.logger.Debug("scan failed", "adapter", a.ID(), "error", err)
		}
	}
	c.mu.Lock()
	c.lastScanned = c.now()
	c.mu.Unlock()
}

func (c *Client) scanDue() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now().Sub(c.lastScanned) > c.scanInterval
}

// GetAccessPoints lists the networks visible to every adapter, in adapter
// order. If rescan is set and the last scan is older than the scan interval,
// a scan runs first.
//
// Observations without a profile name are dropped when the same adapter also
// reports a structurally identical observation that has one.
func (c *Client) GetAccessPoints(rescan bool) []*AccessPoint {
	if !c.available {
		return nil
	}
	if rescan && c.scanDue() {
		c.Scan()
	}

	var accessPoints []*AccessPoint
	for _, a := range c.adapters {
		networks, err := a.AvailableNetworks()
		if err != nil {
			c.logger.Debug("failed to list networks", "adapter", a.ID(), "error", err)
			continue
		}
		for _, n := range dedupeNetworks(networks) {
			accessPoints = append(accessPoints, &AccessPoint{
				adapter: a,
				network: n,
				pool:    c.pool,
				logger:  c.logger,
			})
		}
	}
	return accessPoints
}

func dedupeNetworks(raw []DiscoveredNetwork) []DiscoveredNetwork {
	withProfile := make(map[NetworkIdentity]bool)
	for _, n := range raw {
		if n.ProfileName != "" {
			withProfile[n.Identity()] = true
		}
	}
	networks := make([]DiscoveredNetwork, 0, len(raw))
	for _, n := range raw {
		if n.ProfileName == "" && withProfile[n.Identity()] {
			continue
		}
		networks = append(networks, n)
	}
	return networks
}

// ConnectionStatus returns the cached connection status. The first call polls
// the adapters; afterwards the value only changes in response to
// notifications.
func (c *Client) ConnectionStatus() Status {
	c.mu.Lock()
	if c.statusSet {
		s := c.status
		c.mu.Unlock()
		return s
	}
	c.mu.Unlock()

	polled := c.pollStatus()

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.statusSet {
		c.status = polled
		c.statusSet = true
	}
	return c.status
}

func (c *Client) pollStatus() Status {
	if !c.available {
		return Disconnected
	}
	status := Disconnected
	for _, a := range c.adapters {
		assoc, err := QueryConnection(a)
		if err != nil {
			c.logger.Debug("failed to query connection", "adapter", a.ID(), "error", err)
			continue
		}
		if assoc.Connected {
			status = Connected
		}
	}
	return status
}

// Disconnect disconnects every adapter. All adapters are attempted; their
// errors are joined.
func (c *Client) Disconnect() error {
	if !c.available {
		return nil
	}
	var errs []error
	for _, a := range c.adapters {
		if err := a.Disconnect(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// InterfacesScan triggers a scan on every adapter without touching the scan
// timestamp. All adapters are attempted; their errors are joined.
func (c *Client) InterfacesScan() error {
	var errs []error
	for _, a := range c.adapters {
		if err := a.Scan(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// InterfacesCount returns the number of adapters.
func (c *Client) InterfacesCount() int {
	return len(c.adapters)
}

// Interfaces returns the adapters.
func (c *Client) Interfaces() []Adapter {
	return c.adapters
}

// OnNotification registers h for every native notification. The returned
// function detaches it.
func (c *Client) OnNotification(h NotificationHandler) (detach func()) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	id := c.nextHandlerID
	c.nextHandlerID++
	c.notificationHandlers[id] = h
	return func() {
		c.handlersMu.Lock()
		delete(c.notificationHandlers, id)
		c.handlersMu.Unlock()
	}
}

// OnStatusChange registers h for connection status changes. The returned
// function detaches it.
func (c *Client) OnStatusChange(h func(StatusEvent)) (detach func()) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	id := c.nextHandlerID
	c.nextHandlerID++
	c.statusHandlers[id] = h
	return func() {
		c.handlersMu.Lock()
		delete(c.statusHandlers, id)
		c.handlersMu.Unlock()
	}
}

// Notifications streams native notifications until ctx is done. Slow
// readers lose notifications rather than block delivery.
func (c *Client) Notifications(ctx context.Context) <-chan Notification {
	ch := make(chan Notification, 32)
	var mu sync.Mutex
	closed := false

	detach := c.OnNotification(func(n Notification) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- n:
		default:
			c.logger.Debug("dropped notification", "adapter", n.AdapterID, "notification", n.String())
		}
	})

	go func() {
		<-ctx.Done()
		detach()
		mu.Lock()
		closed = true
		close(ch)
		mu.Unlock()
	}()
	return ch
}

func (c *Client) handleNotification(n Notification) {
	c.handlersMu.RLock()
	handlers := make([]NotificationHandler, 0, len(c.notificationHandlers))
	for _, h := range c.notificationHandlers {
		handlers = append(handlers, h)
	}
	c.handlersMu.RUnlock()

	for _, h := range handlers {
		h(n)
	}

	switch {
	case n.Is(SourceACM, uint32(ACMDisconnected)):
		c.setStatus(Disconnected)
	case n.Is(SourceMSM, uint32(MSMConnected)):
		c.setStatus(Connected)
	}
}

func (c *Client) setStatus(s Status) {
	c.mu.Lock()
	c.status = s
	c.statusSet = true
	c.mu.Unlock()

	c.handlersMu.RLock()
	handlers := make([]func(StatusEvent), 0, len(c.statusHandlers))
	for _, h := range c.statusHandlers {
		handlers = append(handlers, h)
	}
	c.handlersMu.RUnlock()

	ev := StatusEvent{Status: s}
	for _, h := range handlers {
		h(ev)
	}
}
