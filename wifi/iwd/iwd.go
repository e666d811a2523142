//go:build linux

package iwd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/shazow/simplewifi/wifi"
)

// IWD constants
const (
	iwdDest              = "net.connman.iwd"
	iwdPath              = "/"
	iwdDeviceIface       = "net.connman.iwd.Device"
	iwdNetworkIface      = "net.connman.iwd.Network"
	iwdStationIface      = "net.connman.iwd.Station"
	iwdKnownNetworkIface = "net.connman.iwd.KnownNetwork"

	objectManagerIface = "org.freedesktop.DBus.ObjectManager"
	propertiesIface    = "org.freedesktop.DBus.Properties"
)

// DefaultStateDir is where iwd keeps its network configuration files.
const DefaultStateDir = "/var/lib/iwd"

type managedObjects map[dbus.ObjectPath]map[string]map[string]dbus.Variant

// Provider implements wifi.Provider using iwd.
type Provider struct {
	Conn     *dbus.Conn
	Logger   *slog.Logger
	StateDir string

	// Dial opens the bus connection used for notifications.
	Dial func() (*dbus.Conn, error)
}

// New creates a Provider on the system bus, failing if iwd is not running.
func New(logger *slog.Logger) (*Provider, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to system bus: %w", wifi.ErrNotAvailable)
	}
	p := &Provider{
		Conn:     conn,
		Logger:   logger,
		StateDir: DefaultStateDir,
		Dial:     func() (*dbus.Conn, error) { return dbus.ConnectSystemBus() },
	}
	if _, err := p.objects(); err != nil {
		return nil, fmt.Errorf("iwd is not available: %w", wifi.ErrNotAvailable)
	}
	return p, nil
}

func (p *Provider) objects() (managedObjects, error) {
	var objects managedObjects
	err := p.Conn.Object(iwdDest, iwdPath).Call(objectManagerIface+".GetManagedObjects", 0).Store(&objects)
	return objects, err
}

// Adapters returns one adapter per iwd station.
func (p *Provider) Adapters() ([]wifi.Adapter, error) {
	objects, err := p.objects()
	if err != nil {
		return nil, err
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var adapters []wifi.Adapter
	for path, ifaces := range objects {
		if _, ok := ifaces[iwdStationIface]; !ok {
			continue
		}
		name := stringProp(ifaces[iwdDeviceIface], "Name")
		if powered, ok := ifaces[iwdDeviceIface]["Powered"].Value().(bool); ok && !powered {
			logger.Debug("skipping powered off device", "device", name)
			continue
		}
		adapters = append(adapters, &Adapter{
			provider: p,
			path:     path,
			name:     name,
			logger:   logger.With("adapter", name),
		})
	}
	if len(adapters) == 0 {
		return nil, wifi.ErrWirelessDisabled
	}
	sortAdapters(adapters)
	return adapters, nil
}

// Adapter is one iwd station device.
type Adapter struct {
	provider *Provider
	path     dbus.ObjectPath
	name     string
	logger   *slog.Logger
}

func (a *Adapter) ID() string   { return string(a.path) }
func (a *Adapter) Name() string { return a.name }

func (a *Adapter) station() dbus.BusObject {
	return a.provider.Conn.Object(iwdDest, a.path)
}

func (a *Adapter) Scan() error {
	err := a.station().Call(iwdStationIface+".Scan", 0).Err
	if name, ok := dbusErrorName(err); ok && name == "net.connman.iwd.Busy" {
		// A scan is already running.
		return nil
	}
	return err
}

type orderedNetwork struct {
	Path   dbus.ObjectPath
	Signal int16
}

func (a *Adapter) orderedNetworks() ([]orderedNetwork, error) {
	var networks []orderedNetwork
	err := a.station().Call(iwdStationIface+".GetOrderedNetworks", 0).Store(&networks)
	return networks, err
}

func (a *Adapter) AvailableNetworks() ([]wifi.DiscoveredNetwork, error) {
	ordered, err := a.orderedNetworks()
	if err != nil {
		return nil, err
	}
	objects, err := a.provider.objects()
	if err != nil {
		return nil, err
	}

	networks := make([]wifi.DiscoveredNetwork, 0, len(ordered))
	for _, on := range ordered {
		props, ok := objects[on.Path][iwdNetworkIface]
		if !ok {
			continue
		}
		networks = append(networks, discoveredNetwork(props, on.Signal))
	}
	return networks, nil
}

func discoveredNetwork(props map[string]dbus.Variant, signal int16) wifi.DiscoveredNetwork {
	name := stringProp(props, "Name")
	auth, cipher := securityFromType(stringProp(props, "Type"))
	n := wifi.DiscoveredNetwork{
		SSID:            wifi.NewSSID(name),
		BSSType:         wifi.BSSTypeInfrastructure,
		BSSIDCount:      1,
		Connectable:     true,
		SignalQuality:   qualityFromSignal(signal),
		SecurityEnabled: auth != wifi.AuthOpen || cipher != wifi.CipherNone,
		AuthAlgorithm:   auth,
		CipherAlgorithm: cipher,
	}
	if _, known := props["KnownNetwork"]; known {
		n.ProfileName = name
		n.Flags |= wifi.FlagHasProfile
	}
	if connected, _ := props["Connected"].Value().(bool); connected {
		n.Flags |= wifi.FlagConnected
	}
	return n
}

func (a *Adapter) CurrentConnection() (wifi.ConnectionInfo, error) {
	objects, err := a.provider.objects()
	if err != nil {
		return wifi.ConnectionInfo{}, err
	}
	station, ok := objects[a.path][iwdStationIface]
	if !ok {
		return wifi.ConnectionInfo{}, fmt.Errorf("station %s: %w", a.name, wifi.ErrNotFound)
	}
	state, ok := interfaceState(stringProp(station, "State"))
	if !ok {
		return wifi.ConnectionInfo{}, fmt.Errorf("station %s: %w", a.name, wifi.ErrNotConnected)
	}

	info := wifi.ConnectionInfo{
		State:   state,
		Mode:    wifi.ModeProfile,
		BSSType: wifi.BSSTypeInfrastructure,
	}
	networkPath, _ := station["ConnectedNetwork"].Value().(dbus.ObjectPath)
	if network, ok := objects[networkPath][iwdNetworkIface]; ok {
		name := stringProp(network, "Name")
		info.ProfileName = name
		info.SSID = wifi.NewSSID(name)
	}

	if ordered, err := a.orderedNetworks(); err == nil {
		for _, on := range ordered {
			if on.Path == networkPath {
				info.SignalQuality = qualityFromSignal(on.Signal)
			}
		}
	}
	return info, nil
}

func (a *Adapter) knownNetworks() (map[string]knownNetwork, error) {
	objects, err := a.provider.objects()
	if err != nil {
		return nil, err
	}
	known := make(map[string]knownNetwork)
	for path, ifaces := range objects {
		props, ok := ifaces[iwdKnownNetworkIface]
		if !ok {
			continue
		}
		kn := knownNetwork{
			path:        path,
			name:        stringProp(props, "Name"),
			typ:         stringProp(props, "Type"),
			autoConnect: true,
		}
		if hidden, ok := props["Hidden"].Value().(bool); ok {
			kn.hidden = hidden
		}
		if autoConnect, ok := props["AutoConnect"].Value().(bool); ok {
			kn.autoConnect = autoConnect
		}
		known[kn.name] = kn
	}
	return known, nil
}

func (a *Adapter) Profiles() ([]wifi.ProfileInfo, error) {
	known, err := a.knownNetworks()
	if err != nil {
		return nil, err
	}
	profiles := make([]wifi.ProfileInfo, 0, len(known))
	for name := range known {
		profiles = append(profiles, wifi.ProfileInfo{Name: name})
	}
	sortProfiles(profiles)
	return profiles, nil
}

func (a *Adapter) DeleteProfile(name string) error {
	known, err := a.knownNetworks()
	if err != nil {
		return err
	}
	kn, ok := known[name]
	if !ok {
		return fmt.Errorf("cannot forget: network %s is not known: %w", name, wifi.ErrNotFound)
	}
	return a.provider.Conn.Object(iwdDest, kn.path).Call(iwdKnownNetworkIface+".Forget", 0).Err
}

func (a *Adapter) ProfileXML(name string) (string, error) {
	known, err := a.knownNetworks()
	if err != nil {
		return "", err
	}
	kn, ok := known[name]
	if !ok {
		return "", fmt.Errorf("network %s is not known: %w", name, wifi.ErrNotFound)
	}

	cfg, err := readNetworkConfig(a.provider.StateDir, name, kn.typ)
	if err != nil {
		// The passphrase is only readable by root.
		a.logger.Debug("failed to read network config", "network", name, "error", err)
	}
	p, err := kn.profile(cfg)
	if err != nil {
		return "", err
	}
	return p.Marshal()
}

func (a *Adapter) SetProfile(xml string, overwrite bool) error {
	p, err := wifi.ParseProfile(xml)
	if err != nil {
		return err
	}
	return writeNetworkConfig(a.provider.StateDir, p, overwrite)
}

func (a *Adapter) findNetwork(name string) (dbus.ObjectPath, error) {
	ordered, err := a.orderedNetworks()
	if err != nil {
		return "", err
	}
	objects, err := a.provider.objects()
	if err != nil {
		return "", err
	}
	for _, on := range ordered {
		if stringProp(objects[on.Path][iwdNetworkIface], "Name") == name {
			return on.Path, nil
		}
	}
	return "", fmt.Errorf("network %s is not visible: %w", name, wifi.ErrNotFound)
}

// Connect asks iwd to connect to the named network. iwd only replies once the
// attempt has finished, so the call itself is bounded by timeout.
func (a *Adapter) Connect(mode wifi.ConnectionMode, bss wifi.BSSType, profile string, timeout time.Duration) (bool, error) {
	path, err := a.findNetwork(profile)
	if err != nil {
		return false, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	err = a.provider.Conn.Object(iwdDest, path).CallWithContext(ctx, iwdNetworkIface+".Connect", 0).Err

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			a.logger.Debug("connection timed out", "network", profile, "timeout", timeout)
			return false, nil
		}
		if name, ok := dbusErrorName(err); ok {
			a.logger.Debug("connection failed", "network", profile, "error", name)
			return false, nil
		}
		return false, err
	}

	info, err := a.CurrentConnection()
	if err != nil {
		return false, nil
	}
	return info.State == wifi.StateConnected && info.ProfileName == profile, nil
}

func (a *Adapter) Disconnect() error {
	if _, err := a.CurrentConnection(); errors.Is(err, wifi.ErrNotConnected) {
		return nil
	}
	return a.station().Call(iwdStationIface+".Disconnect", 0).Err
}

// Subscribe listens for station property changes on a private bus
// connection.
func (a *Adapter) Subscribe(h wifi.NotificationHandler) (func(), error) {
	if a.provider.Dial == nil {
		return nil, fmt.Errorf("no bus to subscribe on: %w", wifi.ErrNotSupported)
	}
	conn, err := a.provider.Dial()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to system bus: %w", err)
	}

	match := []dbus.MatchOption{
		dbus.WithMatchObjectPath(a.path),
		dbus.WithMatchInterface(propertiesIface),
		dbus.WithMatchMember("PropertiesChanged"),
	}
	if err := conn.AddMatchSignal(match...); err != nil {
		conn.Close()
		return nil, err
	}

	signals := make(chan *dbus.Signal, 16)
	conn.Signal(signals)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for sig := range signals {
			for _, n := range notificationsForSignal(a.ID(), sig) {
				h(n)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			conn.Close()
			<-done
		})
	}, nil
}

func notificationsForSignal(adapterID string, sig *dbus.Signal) []wifi.Notification {
	if sig.Name != propertiesIface+".PropertiesChanged" || len(sig.Body) < 2 {
		return nil
	}
	iface, _ := sig.Body[0].(string)
	props, _ := sig.Body[1].(map[string]dbus.Variant)
	if iface != iwdStationIface {
		return nil
	}

	var out []wifi.Notification
	if state, ok := props["State"].Value().(string); ok {
		if n, ok := stateNotification(adapterID, state); ok {
			out = append(out, n)
		}
	}
	if scanning, ok := props["Scanning"].Value().(bool); ok && !scanning {
		out = append(out, wifi.ACMNotification(adapterID, wifi.ACMScanComplete))
	}
	return out
}
