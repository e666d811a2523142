//go:build linux

// Package nl80211 is a read-only wifi provider for systems without a
// connection manager. It reads association state over nl80211 and scans
// with iwlist; profiles and connecting are not supported.
package nl80211

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	mdwifi "github.com/mdlayher/wifi"

	"github.com/shazow/simplewifi/wifi"
)

// DefaultPollInterval is how often subscribed adapters check their
// association state.
const DefaultPollInterval = 2 * time.Second

// Runner runs a command and returns its stdout.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	c := exec.CommandContext(ctx, name, args...)
	var stderr strings.Builder
	c.Stderr = &stderr
	out, err := c.Output()
	if err != nil {
		return out, fmt.Errorf("failed to run command: %s: %w: %s", c.String(), err, stderr.String())
	}
	return out, nil
}

// client is the subset of *mdwifi.Client the provider uses.
type client interface {
	Interfaces() ([]*mdwifi.Interface, error)
	BSS(ifi *mdwifi.Interface) (*mdwifi.BSS, error)
	StationInfo(ifi *mdwifi.Interface) ([]*mdwifi.StationInfo, error)
	Close() error
}

// Provider lists nl80211 station interfaces.
type Provider struct {
	Logger       *slog.Logger
	Run          Runner
	PollInterval time.Duration

	client client

	mu       sync.Mutex
	adapters map[string]*Adapter
}

// New opens a generic netlink connection to nl80211.
func New(logger *slog.Logger) (*Provider, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c, err := mdwifi.New()
	if err != nil {
		return nil, fmt.Errorf("nl80211: %w: %w", wifi.ErrNotAvailable, err)
	}
	return &Provider{
		Logger:       logger,
		Run:          execRunner,
		PollInterval: DefaultPollInterval,
		client:       c,
	}, nil
}

// Close stops every adapter's polling and releases the netlink connection.
func (p *Provider) Close() error {
	p.mu.Lock()
	for name, a := range p.adapters {
		a.close()
		delete(p.adapters, name)
	}
	p.mu.Unlock()
	return p.client.Close()
}

func (p *Provider) Adapters() ([]wifi.Adapter, error) {
	ifis, err := p.client.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("failed to list interfaces: %w: %w", wifi.ErrNotAvailable, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.adapters == nil {
		p.adapters = make(map[string]*Adapter)
	}
	present := make(map[string]bool)
	var adapters []wifi.Adapter
	for _, ifi := range ifis {
		if ifi.Name == "" || ifi.Type != mdwifi.InterfaceTypeStation {
			continue
		}
		present[ifi.Name] = true
		a, ok := p.adapters[ifi.Name]
		if !ok {
			a = &Adapter{
				client:       p.client,
				ifi:          ifi,
				run:          p.Run,
				pollInterval: p.PollInterval,
				logger:       p.Logger.With("adapter", ifi.Name),
				notifier:     wifi.NewNotifier(),
			}
			p.adapters[ifi.Name] = a
		}
		adapters = append(adapters, a)
	}
	for name, a := range p.adapters {
		if !present[name] {
			a.close()
			delete(p.adapters, name)
		}
	}
	return adapters, nil
}

// Adapter is one nl80211 station interface.
type Adapter struct {
	client       client
	ifi          *mdwifi.Interface
	run          Runner
	pollInterval time.Duration
	logger       *slog.Logger
	notifier     *wifi.Notifier

	mu          sync.Mutex
	cells       []cell
	subscribers int
	stopPoll    chan struct{}
	associated  bool
}

var _ wifi.Adapter = (*Adapter)(nil)

func (a *Adapter) ID() string   { return a.ifi.Name }
func (a *Adapter) Name() string { return a.ifi.Name }

func (a *Adapter) Scan() error {
	out, err := a.run(context.Background(), "iwlist", a.ifi.Name, "scan")
	if err != nil {
		a.notifier.Emit(wifi.ACMNotification(a.ID(), wifi.ACMScanFail))
		return fmt.Errorf("failed to scan: %w: %w", wifi.ErrOperationFailed, err)
	}
	cells := parseIWListOutput(string(out))

	a.mu.Lock()
	a.cells = cells
	a.mu.Unlock()

	a.notifier.Emit(wifi.ACMNotification(a.ID(), wifi.ACMScanComplete))
	return nil
}

func (a *Adapter) AvailableNetworks() ([]wifi.DiscoveredNetwork, error) {
	a.mu.Lock()
	cells := a.cells
	a.mu.Unlock()
	if cells == nil {
		if err := a.Scan(); err != nil {
			return nil, err
		}
		a.mu.Lock()
		cells = a.cells
		a.mu.Unlock()
	}

	var connected string
	if bss, err := a.bss(); err == nil {
		connected = bss.SSID
	}
	return discoveredNetworks(cells, connected), nil
}

// bss returns the BSS the interface is associated with.
func (a *Adapter) bss() (*mdwifi.BSS, error) {
	bss, err := a.client.BSS(a.ifi)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", a.ifi.Name, wifi.ErrNotConnected, err)
	}
	switch bss.Status {
	case mdwifi.BSSStatusAssociated, mdwifi.BSSStatusIBSSJoined:
		return bss, nil
	}
	return nil, fmt.Errorf("%s: %w", a.ifi.Name, wifi.ErrNotConnected)
}

// CurrentConnection reports the associated BSS. The SSID doubles as the
// profile name since nl80211 keeps no profiles.
func (a *Adapter) CurrentConnection() (wifi.ConnectionInfo, error) {
	bss, err := a.bss()
	if err != nil {
		return wifi.ConnectionInfo{}, err
	}
	info := wifi.ConnectionInfo{
		State:       wifi.StateConnected,
		Mode:        wifi.ModeProfile,
		ProfileName: bss.SSID,
		SSID:        wifi.NewSSID(bss.SSID),
		BSSID:       bss.BSSID.String(),
		BSSType:     wifi.BSSTypeInfrastructure,
	}
	if bss.Status == mdwifi.BSSStatusIBSSJoined {
		info.BSSType = wifi.BSSTypeIndependent
		info.State = wifi.StateAdHocNetworkFormed
	}

	stations, err := a.client.StationInfo(a.ifi)
	if err != nil {
		a.logger.Debug("failed to get station info", "error", err)
		return info, nil
	}
	for _, s := range stations {
		if s.HardwareAddr.String() == info.BSSID || len(stations) == 1 {
			info.SignalQuality = qualityFromSignal(s.Signal)
			break
		}
	}
	return info, nil
}

func (a *Adapter) Profiles() ([]wifi.ProfileInfo, error) {
	return nil, nil
}

func (a *Adapter) DeleteProfile(name string) error {
	return fmt.Errorf("delete profile: %w", wifi.ErrNotSupported)
}

func (a *Adapter) ProfileXML(name string) (string, error) {
	return "", fmt.Errorf("profile %s: %w", name, wifi.ErrNotSupported)
}

func (a *Adapter) SetProfile(xml string, overwrite bool) error {
	return fmt.Errorf("set profile: %w", wifi.ErrNotSupported)
}

func (a *Adapter) Connect(mode wifi.ConnectionMode, bss wifi.BSSType, profile string, timeout time.Duration) (bool, error) {
	return false, fmt.Errorf("connect: %w", wifi.ErrNotSupported)
}

func (a *Adapter) Disconnect() error {
	return fmt.Errorf("disconnect: %w", wifi.ErrNotSupported)
}

// Subscribe starts polling the association state while at least one
// handler is attached.
func (a *Adapter) Subscribe(h wifi.NotificationHandler) (func(), error) {
	detach := a.notifier.Subscribe(h)

	a.mu.Lock()
	a.subscribers++
	if a.subscribers == 1 {
		_, err := a.bss()
		a.associated = err == nil
		a.stopPoll = make(chan struct{})
		go a.poll(a.stopPoll)
	}
	a.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			detach()
			a.mu.Lock()
			defer a.mu.Unlock()
			a.subscribers--
			if a.subscribers == 0 && a.stopPoll != nil {
				close(a.stopPoll)
				a.stopPoll = nil
			}
		})
	}, nil
}

// close stops polling regardless of subscribers and drops further
// notifications.
func (a *Adapter) close() {
	a.mu.Lock()
	if a.stopPoll != nil {
		close(a.stopPoll)
		a.stopPoll = nil
	}
	a.mu.Unlock()
	a.notifier.Close()
}

// polling reports whether the association poller is running.
func (a *Adapter) polling() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stopPoll != nil
}

func (a *Adapter) poll(stop <-chan struct{}) {
	interval := a.pollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			a.checkAssociation()
		case <-stop:
			return
		}
	}
}

// checkAssociation emits a notification when the association state
// changed since the last check.
func (a *Adapter) checkAssociation() {
	_, err := a.bss()
	associated := err == nil
	if err != nil && !errors.Is(err, wifi.ErrNotConnected) {
		a.logger.Debug("failed to poll association", "error", err)
	}

	a.mu.Lock()
	changed := associated != a.associated
	a.associated = associated
	a.mu.Unlock()
	if !changed {
		return
	}
	if associated {
		a.notifier.Emit(wifi.MSMNotification(a.ID(), wifi.MSMConnected))
	} else {
		a.notifier.Emit(wifi.ACMNotification(a.ID(), wifi.ACMDisconnected))
	}
}
