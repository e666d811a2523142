//go:build linux

package networkmanager

import (
	"errors"
	"testing"

	gonetworkmanager "github.com/Wifx/gonetworkmanager/v3"
	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shazow/simplewifi/wifi"
)

type mockNM struct {
	gonetworkmanager.NetworkManager
	getDevicesFunc                 func() ([]gonetworkmanager.Device, error)
	getPropertyWirelessEnabledFunc func() (bool, error)
}

func (m *mockNM) GetDevices() ([]gonetworkmanager.Device, error) {
	if m.getDevicesFunc != nil {
		return m.getDevicesFunc()
	}
	return nil, nil
}

func (m *mockNM) GetPropertyWirelessEnabled() (bool, error) {
	if m.getPropertyWirelessEnabledFunc != nil {
		return m.getPropertyWirelessEnabledFunc()
	}
	return true, nil
}

type mockDevice struct {
	gonetworkmanager.Device
}

type mockDeviceWireless struct {
	gonetworkmanager.DeviceWireless
	path  dbus.ObjectPath
	iface string
}

func (m *mockDeviceWireless) GetPath() dbus.ObjectPath              { return m.path }
func (m *mockDeviceWireless) GetPropertyInterface() (string, error) { return m.iface, nil }

type mockSettings struct {
	gonetworkmanager.Settings
	connections []gonetworkmanager.Connection
	added       []gonetworkmanager.ConnectionSettings
}

func (m *mockSettings) ListConnections() ([]gonetworkmanager.Connection, error) {
	return m.connections, nil
}

func (m *mockSettings) AddConnection(settings gonetworkmanager.ConnectionSettings) (gonetworkmanager.Connection, error) {
	m.added = append(m.added, settings)
	return &mockConnection{settings: settings}, nil
}

type mockConnection struct {
	gonetworkmanager.Connection
	settings gonetworkmanager.ConnectionSettings
	updated  gonetworkmanager.ConnectionSettings
	deleted  bool
}

func (m *mockConnection) GetSettings() (gonetworkmanager.ConnectionSettings, error) {
	return m.settings, nil
}

func (m *mockConnection) Update(settings gonetworkmanager.ConnectionSettings) error {
	m.updated = settings
	return nil
}

func (m *mockConnection) Delete() error {
	m.deleted = true
	return nil
}

func wirelessConnection(id, ssid string) *mockConnection {
	return &mockConnection{settings: gonetworkmanager.ConnectionSettings{
		settingConnection: {"id": id, "type": connectionTypeWireless, "uuid": "1234"},
		settingWireless:   {"ssid": []byte(ssid)},
	}}
}

func TestAdapters(t *testing.T) {
	wlan := &mockDeviceWireless{path: "/org/freedesktop/NetworkManager/Devices/3", iface: "wlan0"}
	nm := &mockNM{
		getDevicesFunc: func() ([]gonetworkmanager.Device, error) {
			return []gonetworkmanager.Device{&mockDevice{}, wlan}, nil
		},
	}
	p := &Provider{NM: nm}

	adapters, err := p.Adapters()
	require.NoError(t, err)
	require.Len(t, adapters, 1)
	assert.Equal(t, "wlan0", adapters[0].Name())
	assert.Equal(t, "/org/freedesktop/NetworkManager/Devices/3", adapters[0].ID())
}

func TestAdapters_WirelessDisabled(t *testing.T) {
	p := &Provider{NM: &mockNM{
		getPropertyWirelessEnabledFunc: func() (bool, error) { return false, nil },
	}}
	_, err := p.Adapters()
	assert.ErrorIs(t, err, wifi.ErrWirelessDisabled)

	expectedErr := errors.New("dbus error")
	p = &Provider{NM: &mockNM{
		getPropertyWirelessEnabledFunc: func() (bool, error) { return false, expectedErr },
	}}
	_, err = p.Adapters()
	assert.ErrorIs(t, err, expectedErr)
}

func TestProfiles(t *testing.T) {
	ethernet := &mockConnection{settings: gonetworkmanager.ConnectionSettings{
		settingConnection: {"id": "Wired", "type": "802-3-ethernet"},
	}}
	settings := &mockSettings{connections: []gonetworkmanager.Connection{
		wirelessConnection("Home", "Home"),
		ethernet,
		wirelessConnection("Office", "corp-wifi"),
	}}
	a := &Adapter{settings: settings}

	profiles, err := a.Profiles()
	require.NoError(t, err)
	assert.Equal(t, []wifi.ProfileInfo{{Name: "Home"}, {Name: "Office"}}, profiles)

	require.NoError(t, a.DeleteProfile("Office"))
	assert.True(t, settings.connections[2].(*mockConnection).deleted)

	assert.ErrorIs(t, a.DeleteProfile("Missing"), wifi.ErrNotFound)
}

func TestSetProfile(t *testing.T) {
	existing := wirelessConnection("Home", "Home")
	settings := &mockSettings{connections: []gonetworkmanager.Connection{existing}}
	a := &Adapter{settings: settings, iface: "wlan0"}

	doc := func(name string) string {
		n := wifi.DiscoveredNetwork{
			SSID:            wifi.NewSSID(name),
			BSSType:         wifi.BSSTypeInfrastructure,
			AuthAlgorithm:   wifi.AuthRSNAPSK,
			CipherAlgorithm: wifi.CipherCCMP,
		}
		p, err := wifi.BuildProfile(name, n, "password")
		require.NoError(t, err)
		out, err := p.Marshal()
		require.NoError(t, err)
		return out
	}

	err := a.SetProfile(doc("Home"), false)
	assert.ErrorIs(t, err, wifi.ErrOperationFailed)

	require.NoError(t, a.SetProfile(doc("Home"), true))
	require.NotNil(t, existing.updated)
	assert.Equal(t, "1234", existing.updated[settingConnection]["uuid"], "update keeps the connection uuid")
	assert.Equal(t, "password", existing.updated[settingSecurity]["psk"])

	require.NoError(t, a.SetProfile(doc("Cafe"), false))
	require.Len(t, settings.added, 1)
	added := settings.added[0]
	assert.Equal(t, "Cafe", added[settingConnection]["id"])
	assert.NotEmpty(t, added[settingConnection]["uuid"])
	assert.Equal(t, "wlan0", added[settingConnection]["interface-name"])
	assert.Equal(t, []byte("Cafe"), added[settingWireless]["ssid"])
}

func TestSecurityFromFlags(t *testing.T) {
	tests := []struct {
		name       string
		flags      uint32
		wpa, rsn   uint32
		wantAuth   wifi.AuthAlgorithm
		wantCipher wifi.CipherAlgorithm
	}{
		{"open", 0, 0, 0, wifi.AuthOpen, wifi.CipherNone},
		{"wep", apFlagPrivacy, 0, 0, wifi.AuthOpen, wifi.CipherWEP},
		{"wpa2 psk", apFlagPrivacy, 0, apSecPairCCMP | apSecKeyMgmtPSK, wifi.AuthRSNAPSK, wifi.CipherCCMP},
		{"wpa3 sae", apFlagPrivacy, 0, apSecPairCCMP | apSecKeyMgmtSAE, wifi.AuthRSNAPSK, wifi.CipherCCMP},
		{"wpa2 enterprise", apFlagPrivacy, 0, apSecPairCCMP | apSecKeyMgmt8021X, wifi.AuthRSNA, wifi.CipherCCMP},
		{"wpa psk tkip", apFlagPrivacy, apSecPairTKIP | apSecKeyMgmtPSK, 0, wifi.AuthWPAPSK, wifi.CipherTKIP},
		{"wpa enterprise", apFlagPrivacy, apSecPairTKIP | apSecKeyMgmt8021X, 0, wifi.AuthWPA, wifi.CipherTKIP},
		{"mixed prefers rsn", apFlagPrivacy, apSecPairTKIP | apSecKeyMgmtPSK, apSecPairCCMP | apSecKeyMgmtPSK, wifi.AuthRSNAPSK, wifi.CipherCCMP},
		{"group cipher only", apFlagPrivacy, 0, apSecKeyMgmtPSK, wifi.AuthRSNAPSK, wifi.CipherUseGroup},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth, cipher := securityFromFlags(tt.flags, tt.wpa, tt.rsn)
			assert.Equal(t, tt.wantAuth, auth)
			assert.Equal(t, tt.wantCipher, cipher)
		})
	}
}

func TestStateNotification(t *testing.T) {
	tests := []struct {
		state uint32
		want  string
	}{
		{deviceStateActivated, "msm:connected"},
		{deviceStateDisconnected, "acm:disconnected"},
		{deviceStatePrepare, "acm:connection_start"},
		{deviceStateConfig, "msm:associating"},
		{deviceStateNeedAuth, "msm:authenticating"},
		{deviceStateDeactivating, "acm:disconnecting"},
		{deviceStateFailed, "acm:connection_attempt_fail"},
	}
	for _, tt := range tests {
		n, ok := stateNotification("dev", tt.state)
		require.True(t, ok, "state %d", tt.state)
		assert.Equal(t, tt.want, n.String())
		assert.Equal(t, "dev", n.AdapterID)
	}

	_, ok := stateNotification("dev", deviceStateIPConfig)
	assert.False(t, ok)
}

func TestNotificationForSignal(t *testing.T) {
	n, ok := notificationForSignal("dev", &dbus.Signal{
		Name: deviceIface + ".StateChanged",
		Body: []interface{}{deviceStateActivated, deviceStateSecondaries, uint32(0)},
	})
	require.True(t, ok)
	assert.True(t, n.Is(wifi.SourceMSM, uint32(wifi.MSMConnected)))

	n, ok = notificationForSignal("dev", &dbus.Signal{
		Name: propertiesIface + ".PropertiesChanged",
		Body: []interface{}{wirelessIface, map[string]dbus.Variant{"LastScan": dbus.MakeVariant(int64(1234))}, []string{}},
	})
	require.True(t, ok)
	assert.True(t, n.Is(wifi.SourceACM, uint32(wifi.ACMScanComplete)))

	_, ok = notificationForSignal("dev", &dbus.Signal{
		Name: propertiesIface + ".PropertiesChanged",
		Body: []interface{}{deviceIface, map[string]dbus.Variant{"State": dbus.MakeVariant(uint32(100))}, []string{}},
	})
	assert.False(t, ok)
}

func TestProfileSettingsRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		auth   wifi.AuthAlgorithm
		cipher wifi.CipherAlgorithm
		key    string
	}{
		{"open", wifi.AuthOpen, wifi.CipherNone, ""},
		{"wep", wifi.AuthOpen, wifi.CipherWEP, "abcde"},
		{"shared wep", wifi.AuthSharedKey, wifi.CipherWEP104, "abcdefghijklm"},
		{"wpa2", wifi.AuthRSNAPSK, wifi.CipherCCMP, "correct horse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			network := wifi.DiscoveredNetwork{
				SSID:            wifi.NewSSID("Home"),
				BSSType:         wifi.BSSTypeInfrastructure,
				AuthAlgorithm:   tt.auth,
				CipherAlgorithm: tt.cipher,
			}
			want, err := wifi.BuildProfile("Home", network, tt.key)
			require.NoError(t, err)

			s, err := settingsFromProfile(want, "uuid", "")
			require.NoError(t, err)
			got, err := profileFromSettings(s, nil)
			require.NoError(t, err)

			assert.Equal(t, want.Name, got.Name)
			assert.Equal(t, want.SSIDBytes(), got.SSIDBytes())
			assert.Equal(t, want.Security.AuthEncryption.Authentication, got.Security.AuthEncryption.Authentication)
			assert.Equal(t, want.Key(), got.Key())
		})
	}
}

func TestProfileFromSettings_Secrets(t *testing.T) {
	s := gonetworkmanager.ConnectionSettings{
		settingConnection: {"id": "Home", "type": connectionTypeWireless, "autoconnect": false},
		settingWireless:   {"ssid": []byte("Home"), "hidden": true},
		settingSecurity:   {"key-mgmt": "wpa-psk"},
	}
	secrets := gonetworkmanager.ConnectionSettings{
		settingSecurity: {"psk": "from agent"},
	}

	p, err := profileFromSettings(s, secrets)
	require.NoError(t, err)
	assert.Equal(t, "from agent", p.Key())
	assert.Equal(t, "manual", p.ConnectionMode)
	assert.True(t, p.SSIDConfig.NonBroadcast)
	assert.Equal(t, "WPA2PSK", p.Security.AuthEncryption.Authentication)
}

func TestSettingsFromProfile_Enterprise(t *testing.T) {
	network := wifi.DiscoveredNetwork{
		SSID:            wifi.NewSSID("Corp"),
		AuthAlgorithm:   wifi.AuthRSNA,
		CipherAlgorithm: wifi.CipherCCMP,
	}
	p, err := wifi.BuildProfile("Corp", network, "")
	require.NoError(t, err)
	_, err = settingsFromProfile(p, "uuid", "")
	assert.ErrorIs(t, err, wifi.ErrNotSupported)
}

func TestApplyUpdateWorkaround(t *testing.T) {
	s := connectionSettings{
		"ipv6": {"method": "auto", "addresses": []interface{}{}, "routes": []interface{}{}},
	}
	applyUpdateWorkaround(s)
	assert.Equal(t, map[string]interface{}{"method": "auto"}, s["ipv6"])
}
