//go:build linux

package networkmanager

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	gonetworkmanager "github.com/Wifx/gonetworkmanager/v3"
	"github.com/godbus/dbus/v5"
	"github.com/google/uuid"
	"github.com/shazow/simplewifi/wifi"
)

const (
	deviceIface     = "org.freedesktop.NetworkManager.Device"
	wirelessIface   = "org.freedesktop.NetworkManager.Device.Wireless"
	propertiesIface = "org.freedesktop.DBus.Properties"
)

// NMDeviceState values carried by Device.StateChanged.
const (
	deviceStateDisconnected uint32 = 30
	deviceStatePrepare      uint32 = 40
	deviceStateConfig       uint32 = 50
	deviceStateNeedAuth     uint32 = 60
	deviceStateIPConfig     uint32 = 70
	deviceStateIPCheck      uint32 = 80
	deviceStateSecondaries  uint32 = 90
	deviceStateActivated    uint32 = 100
	deviceStateDeactivating uint32 = 110
	deviceStateFailed       uint32 = 120
)

// Provider implements wifi.Provider using D-Bus to communicate with NetworkManager.
type Provider struct {
	NM       gonetworkmanager.NetworkManager
	Settings gonetworkmanager.Settings
	Logger   *slog.Logger

	// Dial opens the bus connection used for notifications.
	Dial func() (*dbus.Conn, error)
}

// New creates a Provider connected to the system NetworkManager.
func New(logger *slog.Logger) (*Provider, error) {
	nm, err := gonetworkmanager.NewNetworkManager()
	if err != nil {
		return nil, fmt.Errorf("failed to create network manager client: %w", wifi.ErrNotAvailable)
	}

	settings, err := gonetworkmanager.NewSettings()
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", wifi.ErrOperationFailed)
	}

	return &Provider{
		NM:       nm,
		Settings: settings,
		Logger:   logger,
		Dial:     func() (*dbus.Conn, error) { return dbus.ConnectSystemBus() },
	}, nil
}

// Adapters returns one adapter per wireless device.
func (p *Provider) Adapters() ([]wifi.Adapter, error) {
	enabled, err := p.NM.GetPropertyWirelessEnabled()
	if err != nil {
		return nil, err
	}
	if !enabled {
		return nil, wifi.ErrWirelessDisabled
	}

	devices, err := p.NM.GetDevices()
	if err != nil {
		return nil, err
	}

	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var adapters []wifi.Adapter
	for _, device := range devices {
		dev, ok := device.(gonetworkmanager.DeviceWireless)
		if !ok {
			continue
		}
		iface, err := dev.GetPropertyInterface()
		if err != nil {
			logger.Debug("skipping device without interface", "path", dev.GetPath(), "error", err)
			continue
		}
		adapters = append(adapters, &Adapter{
			nm:       p.NM,
			settings: p.Settings,
			device:   dev,
			iface:    iface,
			dial:     p.Dial,
			logger:   logger.With("adapter", iface),
		})
	}
	return adapters, nil
}

// Adapter is one NetworkManager wireless device.
type Adapter struct {
	nm       gonetworkmanager.NetworkManager
	settings gonetworkmanager.Settings
	device   gonetworkmanager.DeviceWireless
	iface    string
	dial     func() (*dbus.Conn, error)
	logger   *slog.Logger
}

func (a *Adapter) ID() string   { return string(a.device.GetPath()) }
func (a *Adapter) Name() string { return a.iface }

func (a *Adapter) Scan() error {
	return a.device.RequestScan()
}

// AvailableNetworks folds the device's access points into one entry per
// SSID and security signature, keeping the strongest signal.
func (a *Adapter) AvailableNetworks() ([]wifi.DiscoveredNetwork, error) {
	accessPoints, err := a.device.GetAccessPoints()
	if err != nil {
		return nil, err
	}

	known, err := a.wirelessConnections()
	if err != nil {
		a.logger.Debug("failed to list connections", "error", err)
	}
	profileForSSID := make(map[string]string, len(known))
	for _, kc := range known {
		profileForSSID[string(kc.ssid)] = kc.id
	}

	var activePath dbus.ObjectPath
	if active, err := a.device.GetPropertyActiveAccessPoint(); err == nil && active != nil {
		activePath = active.GetPath()
	}

	var networks []wifi.DiscoveredNetwork
	index := make(map[wifi.NetworkIdentity]int)
	for _, ap := range accessPoints {
		ssid, err := ap.GetPropertySSID()
		if err != nil || ssid == "" {
			continue
		}
		strength, _ := ap.GetPropertyStrength()
		flags, _ := ap.GetPropertyFlags()
		wpaFlags, _ := ap.GetPropertyWPAFlags()
		rsnFlags, _ := ap.GetPropertyRSNFlags()
		auth, cipher := securityFromFlags(uint32(flags), uint32(wpaFlags), uint32(rsnFlags))

		bss := wifi.BSSTypeInfrastructure
		if mode, err := ap.GetPropertyMode(); err == nil && uint32(mode) == nm80211ModeAdhoc {
			bss = wifi.BSSTypeIndependent
		}

		n := wifi.DiscoveredNetwork{
			SSID:            wifi.NewSSID(ssid),
			BSSType:         bss,
			BSSIDCount:      1,
			Connectable:     true,
			SignalQuality:   uint32(strength),
			SecurityEnabled: auth != wifi.AuthOpen || cipher != wifi.CipherNone,
			AuthAlgorithm:   auth,
			CipherAlgorithm: cipher,
		}
		if name, ok := profileForSSID[ssid]; ok {
			n.ProfileName = name
			n.Flags |= wifi.FlagHasProfile
		}
		if activePath != "" && activePath != "/" && ap.GetPath() == activePath {
			n.Flags |= wifi.FlagConnected
		}

		key := n.Identity()
		if i, ok := index[key]; ok {
			existing := &networks[i]
			existing.BSSIDCount++
			existing.Flags |= n.Flags
			if n.SignalQuality > existing.SignalQuality {
				existing.SignalQuality = n.SignalQuality
			}
			continue
		}
		index[key] = len(networks)
		networks = append(networks, n)
	}
	return networks, nil
}

func interfaceState(deviceState uint32) (wifi.InterfaceState, bool) {
	switch deviceState {
	case deviceStateActivated:
		return wifi.StateConnected, true
	case deviceStatePrepare, deviceStateConfig, deviceStateIPConfig, deviceStateIPCheck, deviceStateSecondaries:
		return wifi.StateAssociating, true
	case deviceStateNeedAuth:
		return wifi.StateAuthenticating, true
	case deviceStateDeactivating:
		return wifi.StateDisconnecting, true
	}
	return wifi.StateDisconnected, false
}

func (a *Adapter) CurrentConnection() (wifi.ConnectionInfo, error) {
	state, err := a.device.GetPropertyState()
	if err != nil {
		return wifi.ConnectionInfo{}, err
	}
	ifState, ok := interfaceState(uint32(state))
	if !ok {
		return wifi.ConnectionInfo{}, fmt.Errorf("device %s: %w", a.iface, wifi.ErrNotConnected)
	}

	info := wifi.ConnectionInfo{
		State:   ifState,
		Mode:    wifi.ModeProfile,
		BSSType: wifi.BSSTypeInfrastructure,
	}
	if id, err := a.activeConnectionID(); err == nil {
		info.ProfileName = id
	} else {
		a.logger.Debug("failed to resolve active connection", "error", err)
	}

	ap, err := a.device.GetPropertyActiveAccessPoint()
	if err != nil || ap == nil || ap.GetPath() == "/" {
		return info, nil
	}
	if ssid, err := ap.GetPropertySSID(); err == nil {
		info.SSID = wifi.NewSSID(ssid)
	}
	if bssid, err := ap.GetPropertyHWAddress(); err == nil {
		info.BSSID = bssid
	}
	if strength, err := ap.GetPropertyStrength(); err == nil {
		info.SignalQuality = uint32(strength)
	}
	if mode, err := ap.GetPropertyMode(); err == nil && uint32(mode) == nm80211ModeAdhoc {
		info.BSSType = wifi.BSSTypeIndependent
	}
	return info, nil
}

// activeConnectionID returns the id of the wireless connection active on
// this device.
func (a *Adapter) activeConnectionID() (string, error) {
	activeConnections, err := a.nm.GetPropertyActiveConnections()
	if err != nil {
		return "", err
	}
	path := a.device.GetPath()
	for _, activeConn := range activeConnections {
		typ, err := activeConn.GetPropertyType()
		if err != nil || typ != connectionTypeWireless {
			continue
		}
		devices, err := activeConn.GetPropertyDevices()
		if err != nil {
			continue
		}
		for _, d := range devices {
			if d.GetPath() == path {
				return activeConn.GetPropertyID()
			}
		}
	}
	return "", fmt.Errorf("no active connection on %s: %w", a.iface, wifi.ErrNotFound)
}

type knownConnection struct {
	id       string
	ssid     []byte
	conn     gonetworkmanager.Connection
	settings connectionSettings
}

func (a *Adapter) wirelessConnections() ([]knownConnection, error) {
	connections, err := a.settings.ListConnections()
	if err != nil {
		return nil, err
	}
	var known []knownConnection
	for _, conn := range connections {
		s, err := conn.GetSettings()
		if err != nil {
			continue
		}
		id, ok := connectionID(s)
		if !ok {
			continue
		}
		known = append(known, knownConnection{id: id, ssid: connectionSSID(s), conn: conn, settings: s})
	}
	return known, nil
}

func (a *Adapter) findConnection(name string) (knownConnection, error) {
	known, err := a.wirelessConnections()
	if err != nil {
		return knownConnection{}, err
	}
	for _, kc := range known {
		if kc.id == name {
			return kc, nil
		}
	}
	return knownConnection{}, fmt.Errorf("connection not found for %s: %w", name, wifi.ErrNotFound)
}

func (a *Adapter) Profiles() ([]wifi.ProfileInfo, error) {
	known, err := a.wirelessConnections()
	if err != nil {
		return nil, err
	}
	profiles := make([]wifi.ProfileInfo, 0, len(known))
	for _, kc := range known {
		profiles = append(profiles, wifi.ProfileInfo{Name: kc.id})
	}
	return profiles, nil
}

func (a *Adapter) DeleteProfile(name string) error {
	kc, err := a.findConnection(name)
	if err != nil {
		return err
	}
	return kc.conn.Delete()
}

func (a *Adapter) ProfileXML(name string) (string, error) {
	kc, err := a.findConnection(name)
	if err != nil {
		return "", err
	}

	var secrets connectionSettings
	if _, ok := kc.settings[settingSecurity]; ok {
		secrets, err = kc.conn.GetSecrets(settingSecurity)
		if err != nil {
			a.logger.Debug("failed to get secrets", "connection", name, "error", err)
		}
	}

	p, err := profileFromSettings(kc.settings, secrets)
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

	existing, err := a.findConnection(p.Name)
	switch {
	case err == nil:
		if !overwrite {
			return fmt.Errorf("connection %s already exists: %w", p.Name, wifi.ErrOperationFailed)
		}
		id, _ := existing.settings[settingConnection]["uuid"].(string)
		s, err := settingsFromProfile(p, id, a.iface)
		if err != nil {
			return err
		}
		applyUpdateWorkaround(s)
		return existing.conn.Update(s)
	case !errors.Is(err, wifi.ErrNotFound):
		return err
	}

	s, err := settingsFromProfile(p, uuid.New().String(), a.iface)
	if err != nil {
		return err
	}
	_, err = a.settings.AddConnection(s)
	return err
}

func (a *Adapter) Connect(mode wifi.ConnectionMode, bss wifi.BSSType, profile string, timeout time.Duration) (bool, error) {
	kc, err := a.findConnection(profile)
	if err != nil {
		return false, err
	}

	accessPoints, err := a.device.GetAccessPoints()
	if err != nil {
		return false, err
	}
	var target gonetworkmanager.AccessPoint
	for _, ap := range accessPoints {
		if ssid, err := ap.GetPropertySSID(); err == nil && ssid == string(kc.ssid) {
			target = ap
			break
		}
	}
	if target == nil {
		return false, fmt.Errorf("access point not found for %s: %w", profile, wifi.ErrNotFound)
	}

	activeConn, err := a.nm.ActivateWirelessConnection(kc.conn, a.device, target)
	if err != nil {
		return false, err
	}

	// Block until the connection is fully activated.
	stateChanges := make(chan gonetworkmanager.StateChange, 1)
	done := make(chan struct{})
	defer close(done)
	err = activeConn.SubscribeState(stateChanges, done)
	if err != nil {
		return false, err
	}

	// Check the initial state first
	initialState, err := activeConn.GetPropertyState()
	if err != nil {
		return false, err
	}
	if initialState == gonetworkmanager.NmActiveConnectionStateActivated {
		return true, nil
	}

	deadline := time.After(timeout)
	for {
		select {
		case change := <-stateChanges:
			if change.State == gonetworkmanager.NmActiveConnectionStateActivated {
				return true, nil
			}
			if change.State == gonetworkmanager.NmActiveConnectionStateDeactivated {
				a.logger.Debug("connection deactivated", "connection", profile)
				return false, nil
			}
		case <-deadline:
			a.logger.Debug("connection timed out", "connection", profile, "timeout", timeout)
			return false, nil
		}
	}
}

func (a *Adapter) Disconnect() error {
	state, err := a.device.GetPropertyState()
	if err != nil {
		return err
	}
	if _, active := interfaceState(uint32(state)); !active {
		return nil
	}
	return a.device.Disconnect()
}

// Subscribe listens for device state changes and scan completions on a
// private bus connection.
func (a *Adapter) Subscribe(h wifi.NotificationHandler) (func(), error) {
	if a.dial == nil {
		return nil, fmt.Errorf("no bus to subscribe on: %w", wifi.ErrNotSupported)
	}
	conn, err := a.dial()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to system bus: %w", err)
	}

	path := a.device.GetPath()
	matches := [][]dbus.MatchOption{
		{dbus.WithMatchObjectPath(path), dbus.WithMatchInterface(deviceIface), dbus.WithMatchMember("StateChanged")},
		{dbus.WithMatchObjectPath(path), dbus.WithMatchInterface(propertiesIface), dbus.WithMatchMember("PropertiesChanged")},
	}
	for _, match := range matches {
		if err := conn.AddMatchSignal(match...); err != nil {
			conn.Close()
			return nil, err
		}
	}

	signals := make(chan *dbus.Signal, 16)
	conn.Signal(signals)

	done := make(chan struct{})
	go func() {
		defer close(done)
		// The channel is closed when conn is.
		for sig := range signals {
			if n, ok := notificationForSignal(a.ID(), sig); ok {
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

func notificationForSignal(adapterID string, sig *dbus.Signal) (wifi.Notification, bool) {
	switch sig.Name {
	case deviceIface + ".StateChanged":
		if len(sig.Body) < 1 {
			return wifi.Notification{}, false
		}
		state, ok := sig.Body[0].(uint32)
		if !ok {
			return wifi.Notification{}, false
		}
		return stateNotification(adapterID, state)
	case propertiesIface + ".PropertiesChanged":
		if len(sig.Body) < 2 {
			return wifi.Notification{}, false
		}
		iface, _ := sig.Body[0].(string)
		props, _ := sig.Body[1].(map[string]dbus.Variant)
		if iface != wirelessIface {
			return wifi.Notification{}, false
		}
		if _, ok := props["LastScan"]; ok {
			return wifi.ACMNotification(adapterID, wifi.ACMScanComplete), true
		}
	}
	return wifi.Notification{}, false
}

// stateNotification maps a device state to the closest native notification.
func stateNotification(adapterID string, state uint32) (wifi.Notification, bool) {
	switch state {
	case deviceStateActivated:
		return wifi.MSMNotification(adapterID, wifi.MSMConnected), true
	case deviceStateDisconnected:
		return wifi.ACMNotification(adapterID, wifi.ACMDisconnected), true
	case deviceStatePrepare:
		return wifi.ACMNotification(adapterID, wifi.ACMConnectionStart), true
	case deviceStateConfig:
		return wifi.MSMNotification(adapterID, wifi.MSMAssociating), true
	case deviceStateNeedAuth:
		return wifi.MSMNotification(adapterID, wifi.MSMAuthenticating), true
	case deviceStateDeactivating:
		return wifi.ACMNotification(adapterID, wifi.ACMDisconnecting), true
	case deviceStateFailed:
		return wifi.ACMNotification(adapterID, wifi.ACMConnectionAttemptFail), true
	}
	return wifi.Notification{}, false
}
