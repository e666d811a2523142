package mock

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shazow/simplewifi/wifi"
)

var DefaultActionSleep = 500 * time.Millisecond

// Provider is a mock implementation of wifi.Provider backed by in-memory
// adapters.
type Provider struct {
	AdapterList []*Adapter
	// AdaptersError is returned from Adapters when set.
	AdaptersError error
}

// NewProvider creates a Provider exposing the given adapters.
func NewProvider(adapters ...*Adapter) *Provider {
	return &Provider{AdapterList: adapters}
}

func (p *Provider) Adapters() ([]wifi.Adapter, error) {
	if p.AdaptersError != nil {
		return nil, p.AdaptersError
	}
	adapters := make([]wifi.Adapter, 0, len(p.AdapterList))
	for _, a := range p.AdapterList {
		adapters = append(adapters, a)
	}
	return adapters, nil
}

// Close stops notification delivery on every adapter.
func (p *Provider) Close() {
	for _, a := range p.AdapterList {
		a.Close()
	}
}

// Network builds a discovered network for use in fixtures.
func Network(ssid string, quality uint32, auth wifi.AuthAlgorithm, cipher wifi.CipherAlgorithm) wifi.DiscoveredNetwork {
	return wifi.DiscoveredNetwork{
		SSID:            wifi.NewSSID(ssid),
		BSSType:         wifi.BSSTypeInfrastructure,
		BSSIDCount:      1,
		Connectable:     true,
		SignalQuality:   quality,
		SecurityEnabled: auth != wifi.AuthOpen || cipher != wifi.CipherNone,
		AuthAlgorithm:   auth,
		CipherAlgorithm: cipher,
	}
}

// ConnectCall records the arguments of one Adapter.Connect call.
type ConnectCall struct {
	Mode    wifi.ConnectionMode
	BSSType wifi.BSSType
	Profile string
	Timeout time.Duration
}

type storedProfile struct {
	name string
	xml  string
}

// Adapter is an in-memory wifi.Adapter.
type Adapter struct {
	id   string
	name string

	mu       sync.Mutex
	networks []wifi.DiscoveredNetwork
	profiles []storedProfile
	current  *wifi.ConnectionInfo
	notifier *wifi.Notifier

	ScanCount       int
	SetProfileCount int
	DeleteCount     int
	Connects        []ConnectCall

	ScanError              error
	NetworksError          error
	CurrentConnectionError error
	ProfilesError          error
	DeleteError            error
	SetProfileError        error
	ConnectError           error
	DisconnectError        error
	SubscribeError         error
	// ConnectFails makes Connect report an unsuccessful association.
	ConnectFails bool

	// ActionSleep is a delay before every action, to better emulate a real-world backend. Set to 0 during testing.
	ActionSleep time.Duration
}

// NewAdapter creates an adapter that reports the given networks.
func NewAdapter(name string, networks ...wifi.DiscoveredNetwork) *Adapter {
	return &Adapter{
		id:          "{" + uuid.New().String() + "}",
		name:        name,
		networks:    networks,
		notifier:    wifi.NewNotifier(),
		ActionSleep: DefaultActionSleep,
	}
}

func (a *Adapter) ID() string   { return a.id }
func (a *Adapter) Name() string { return a.name }

// SetNetworks replaces the networks reported by AvailableNetworks.
func (a *Adapter) SetNetworks(networks ...wifi.DiscoveredNetwork) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.networks = networks
}

// SetCurrentConnection sets the association reported by CurrentConnection.
// A nil info means disconnected.
func (a *Adapter) SetCurrentConnection(info *wifi.ConnectionInfo) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.current = info
}

// AddProfile stores a profile document under name without validating it.
func (a *Adapter) AddProfile(name, xml string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.profiles = append(a.profiles, storedProfile{name: name, xml: xml})
}

func (a *Adapter) Scan() error {
	time.Sleep(a.ActionSleep)

	a.mu.Lock()
	a.ScanCount++
	err := a.ScanError
	a.mu.Unlock()
	if err != nil {
		return err
	}
	a.Emit(wifi.ACMNotification(a.id, wifi.ACMScanComplete))
	return nil
}

func (a *Adapter) AvailableNetworks() ([]wifi.DiscoveredNetwork, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.NetworksError != nil {
		return nil, a.NetworksError
	}
	networks := make([]wifi.DiscoveredNetwork, len(a.networks))
	copy(networks, a.networks)
	for i := range networks {
		if a.findProfile(networks[i].SSID.String()) >= 0 {
			networks[i].Flags |= wifi.FlagHasProfile
		}
		if a.current != nil && a.current.SSID.Equal(networks[i].SSID) {
			networks[i].Flags |= wifi.FlagConnected
		}
	}
	return networks, nil
}

func (a *Adapter) CurrentConnection() (wifi.ConnectionInfo, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.CurrentConnectionError != nil {
		return wifi.ConnectionInfo{}, a.CurrentConnectionError
	}
	if a.current == nil {
		return wifi.ConnectionInfo{}, fmt.Errorf("adapter %s: %w", a.id, wifi.ErrNotConnected)
	}
	return *a.current, nil
}

func (a *Adapter) Profiles() ([]wifi.ProfileInfo, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ProfilesError != nil {
		return nil, a.ProfilesError
	}
	profiles := make([]wifi.ProfileInfo, 0, len(a.profiles))
	for _, p := range a.profiles {
		profiles = append(profiles, wifi.ProfileInfo{Name: p.name})
	}
	return profiles, nil
}

// findProfile returns the index of the named profile, or -1. Callers hold mu.
func (a *Adapter) findProfile(name string) int {
	for i, p := range a.profiles {
		if p.name == name {
			return i
		}
	}
	return -1
}

func (a *Adapter) DeleteProfile(name string) error {
	time.Sleep(a.ActionSleep)

	a.mu.Lock()
	a.DeleteCount++
	if a.DeleteError != nil {
		a.mu.Unlock()
		return a.DeleteError
	}
	i := a.findProfile(name)
	if i < 0 {
		a.mu.Unlock()
		return fmt.Errorf("profile %q: %w", name, wifi.ErrNotFound)
	}
	a.profiles = append(a.profiles[:i], a.profiles[i+1:]...)
	a.mu.Unlock()

	a.Emit(wifi.ACMNotification(a.id, wifi.ACMProfileChange))
	return nil
}

func (a *Adapter) ProfileXML(name string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	i := a.findProfile(name)
	if i < 0 {
		return "", fmt.Errorf("profile %q: %w", name, wifi.ErrNotFound)
	}
	return a.profiles[i].xml, nil
}

func (a *Adapter) SetProfile(xml string, overwrite bool) error {
	time.Sleep(a.ActionSleep)

	profile, err := wifi.ParseProfile(xml)
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.SetProfileCount++
	if a.SetProfileError != nil {
		a.mu.Unlock()
		return a.SetProfileError
	}
	if i := a.findProfile(profile.Name); i >= 0 {
		if !overwrite {
			a.mu.Unlock()
			return fmt.Errorf("profile %q already exists: %w", profile.Name, wifi.ErrOperationFailed)
		}
		a.profiles[i].xml = xml
	} else {
		a.profiles = append(a.profiles, storedProfile{name: profile.Name, xml: xml})
	}
	a.mu.Unlock()

	a.Emit(wifi.ACMNotification(a.id, wifi.ACMProfileChange))
	return nil
}

func (a *Adapter) Connect(mode wifi.ConnectionMode, bss wifi.BSSType, profile string, timeout time.Duration) (bool, error) {
	time.Sleep(a.ActionSleep)

	a.mu.Lock()
	a.Connects = append(a.Connects, ConnectCall{Mode: mode, BSSType: bss, Profile: profile, Timeout: timeout})
	if a.ConnectError != nil {
		a.mu.Unlock()
		return false, a.ConnectError
	}
	i := a.findProfile(profile)
	if i < 0 {
		a.mu.Unlock()
		return false, fmt.Errorf("profile %q: %w", profile, wifi.ErrNotFound)
	}
	ssid := wifi.NewSSID(profile)
	if p, err := wifi.ParseProfile(a.profiles[i].xml); err == nil {
		raw := p.SSIDBytes()
		ssid = wifi.SSID{Length: uint32(len(raw)), Bytes: raw}
	}
	fails := a.ConnectFails
	if !fails {
		a.current = &wifi.ConnectionInfo{
			State:         wifi.StateConnected,
			Mode:          mode,
			ProfileName:   profile,
			SSID:          ssid,
			BSSType:       bss,
			SignalQuality: a.signalFor(ssid),
		}
	}
	a.mu.Unlock()

	a.Emit(wifi.ACMNotification(a.id, wifi.ACMConnectionStart))
	if fails {
		a.Emit(wifi.ACMNotification(a.id, wifi.ACMConnectionAttemptFail))
		return false, nil
	}
	a.Emit(wifi.MSMNotification(a.id, wifi.MSMAssociating))
	a.Emit(wifi.MSMNotification(a.id, wifi.MSMConnected))
	a.Emit(wifi.ACMNotification(a.id, wifi.ACMConnectionComplete))
	return true, nil
}

// signalFor returns the quality of the visible network with the given SSID.
// Callers hold mu.
func (a *Adapter) signalFor(ssid wifi.SSID) uint32 {
	for _, n := range a.networks {
		if n.SSID.Equal(ssid) {
			return n.SignalQuality
		}
	}
	return 0
}

func (a *Adapter) Disconnect() error {
	time.Sleep(a.ActionSleep)

	a.mu.Lock()
	if a.DisconnectError != nil {
		a.mu.Unlock()
		return a.DisconnectError
	}
	wasConnected := a.current != nil
	a.current = nil
	a.mu.Unlock()

	if wasConnected {
		a.Emit(wifi.ACMNotification(a.id, wifi.ACMDisconnecting))
		a.Emit(wifi.MSMNotification(a.id, wifi.MSMDisconnected))
		a.Emit(wifi.ACMNotification(a.id, wifi.ACMDisconnected))
	}
	return nil
}

func (a *Adapter) Subscribe(h wifi.NotificationHandler) (func(), error) {
	a.mu.Lock()
	err := a.SubscribeError
	a.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return a.notifier.Subscribe(h), nil
}

// Emit queues a notification for in-order delivery to subscribers.
func (a *Adapter) Emit(n wifi.Notification) {
	if n.AdapterID == "" {
		n.AdapterID = a.id
	}
	a.notifier.Emit(n)
}

// Flush blocks until every emitted notification has been delivered.
func (a *Adapter) Flush() {
	a.notifier.Flush()
}

// Close stops notification delivery.
func (a *Adapter) Close() {
	a.notifier.Close()
}
