//go:build linux

package iwd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shazow/simplewifi/wifi"
)

func TestQualityFromSignal(t *testing.T) {
	tests := []struct {
		signal int16
		want   uint32
	}{
		{-10000, 0},
		{-9500, 10},
		{-7000, 60},
		{-5000, 100},
		{-3000, 100},
		{-12000, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, qualityFromSignal(tt.signal), "signal %d", tt.signal)
	}
}

func TestSecurityFromType(t *testing.T) {
	tests := []struct {
		typ    string
		auth   wifi.AuthAlgorithm
		cipher wifi.CipherAlgorithm
	}{
		{"open", wifi.AuthOpen, wifi.CipherNone},
		{"psk", wifi.AuthRSNAPSK, wifi.CipherCCMP},
		{"8021x", wifi.AuthRSNA, wifi.CipherCCMP},
		{"wep", wifi.AuthOpen, wifi.CipherWEP},
	}
	for _, tt := range tests {
		auth, cipher := securityFromType(tt.typ)
		assert.Equal(t, tt.auth, auth, tt.typ)
		assert.Equal(t, tt.cipher, cipher, tt.typ)
	}
}

func TestConfigFileName(t *testing.T) {
	assert.Equal(t, "My Home_Net-5.psk", configFileName("My Home_Net-5", "psk"))
	assert.Equal(t, "=436166c3a9.open", configFileName("Café", "open"))
	assert.Equal(t, "=612e62.psk", configFileName("a.b", "psk"))
}

func TestDiscoveredNetwork(t *testing.T) {
	props := map[string]dbus.Variant{
		"Name":         dbus.MakeVariant("Home"),
		"Type":         dbus.MakeVariant("psk"),
		"Connected":    dbus.MakeVariant(true),
		"KnownNetwork": dbus.MakeVariant(dbus.ObjectPath("/net/connman/iwd/486f6d65_psk")),
	}
	n := discoveredNetwork(props, -6000)
	assert.Equal(t, "Home", n.SSID.String())
	assert.Equal(t, "Home", n.ProfileName)
	assert.Equal(t, uint32(80), n.SignalQuality)
	assert.True(t, n.SecurityEnabled)
	assert.Equal(t, wifi.FlagConnected|wifi.FlagHasProfile, n.Flags)

	open := discoveredNetwork(map[string]dbus.Variant{
		"Name": dbus.MakeVariant("Cafe"),
		"Type": dbus.MakeVariant("open"),
	}, -9000)
	assert.Empty(t, open.ProfileName)
	assert.False(t, open.SecurityEnabled)
	assert.Zero(t, open.Flags)
}

func TestNotificationsForSignal(t *testing.T) {
	sig := &dbus.Signal{
		Name: propertiesIface + ".PropertiesChanged",
		Body: []interface{}{
			iwdStationIface,
			map[string]dbus.Variant{
				"State":    dbus.MakeVariant("connected"),
				"Scanning": dbus.MakeVariant(false),
			},
			[]string{},
		},
	}
	var got []string
	for _, n := range notificationsForSignal("/net/connman/iwd/0/4", sig) {
		got = append(got, n.String())
	}
	assert.Equal(t, []string{"msm:connected", "acm:scan_complete"}, got)

	sig.Body[0] = iwdDeviceIface
	assert.Empty(t, notificationsForSignal("/net/connman/iwd/0/4", sig))
}

func TestDBusErrorName(t *testing.T) {
	name, ok := dbusErrorName(dbus.Error{Name: "net.connman.iwd.Busy"})
	assert.True(t, ok)
	assert.Equal(t, "net.connman.iwd.Busy", name)

	_, ok = dbusErrorName(fmt.Errorf("plain"))
	assert.False(t, ok)
}

func buildProfile(t *testing.T, name string, auth wifi.AuthAlgorithm, cipher wifi.CipherAlgorithm, key string) wifi.Profile {
	t.Helper()
	p, err := wifi.BuildProfile(name, wifi.DiscoveredNetwork{
		SSID:            wifi.NewSSID(name),
		BSSType:         wifi.BSSTypeInfrastructure,
		AuthAlgorithm:   auth,
		CipherAlgorithm: cipher,
	}, key)
	require.NoError(t, err)
	return p
}

func TestWriteNetworkConfig(t *testing.T) {
	dir := t.TempDir()
	p := buildProfile(t, "Home", wifi.AuthRSNAPSK, wifi.CipherCCMP, "correct horse")

	require.NoError(t, writeNetworkConfig(dir, p, false))
	data, err := os.ReadFile(filepath.Join(dir, "Home.psk"))
	require.NoError(t, err)
	assert.Equal(t, "[Security]\nPassphrase=correct horse", strings.TrimSpace(string(data)))
	info, err := os.Stat(filepath.Join(dir, "Home.psk"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	err = writeNetworkConfig(dir, p, false)
	assert.ErrorIs(t, err, wifi.ErrOperationFailed)

	p.Security.SharedKey.KeyMaterial = "battery staple"
	require.NoError(t, writeNetworkConfig(dir, p, true))

	cfg, err := readNetworkConfig(dir, "Home", "psk")
	require.NoError(t, err)
	assert.Equal(t, "battery staple", configValue(cfg, "Security", "Passphrase"))
}

func TestNetworkConfigPassphraseRoundTrip(t *testing.T) {
	for _, passphrase := range []string{"hunter 2", "pass#word;1", "a=b=c", "caf\u00e9 12345"} {
		t.Run(passphrase, func(t *testing.T) {
			dir := t.TempDir()
			p := buildProfile(t, "Home", wifi.AuthRSNAPSK, wifi.CipherCCMP, passphrase)
			require.NoError(t, writeNetworkConfig(dir, p, false))

			cfg, err := readNetworkConfig(dir, "Home", "psk")
			require.NoError(t, err)
			assert.Equal(t, passphrase, configValue(cfg, "Security", "Passphrase"))
		})
	}
}

func TestWriteNetworkConfig_Unsupported(t *testing.T) {
	dir := t.TempDir()
	p := buildProfile(t, "Old", wifi.AuthOpen, wifi.CipherWEP, "abcde")
	assert.ErrorIs(t, writeNetworkConfig(dir, p, false), wifi.ErrNotSupported)
}

func TestRenderNetworkConfig_Settings(t *testing.T) {
	p := buildProfile(t, "Cafe", wifi.AuthOpen, wifi.CipherNone, "")
	p.ConnectionMode = "manual"
	p.SSIDConfig.NonBroadcast = true

	typ, contents, err := renderNetworkConfig(p)
	require.NoError(t, err)
	assert.Equal(t, "open", typ)
	assert.Equal(t, "[Settings]\nAutoConnect=false\nHidden=true", strings.TrimSpace(contents))

	cfg, err := parseNetworkConfig(contents)
	require.NoError(t, err)
	assert.Equal(t, "false", configValue(cfg, "Settings", "AutoConnect"))
	assert.Equal(t, "true", configValue(cfg, "Settings", "Hidden"))
	assert.Empty(t, configValue(cfg, "Security", "Passphrase"))
}

func TestKnownNetworkProfile(t *testing.T) {
	cfg, err := parseNetworkConfig("# comment\n[Security]\nPassphrase = hunter22\n")
	require.NoError(t, err)
	kn := knownNetwork{name: "Home", typ: "psk", autoConnect: false, hidden: true}

	p, err := kn.profile(cfg)
	require.NoError(t, err)
	assert.Equal(t, "Home", p.Name)
	assert.Equal(t, "hunter22", p.Key())
	assert.Equal(t, "manual", p.ConnectionMode)
	assert.True(t, p.SSIDConfig.NonBroadcast)
	assert.Equal(t, []byte("Home"), p.SSIDBytes())

	// Unreadable config still yields a profile, without the key.
	p, err = kn.profile(nil)
	require.NoError(t, err)
	assert.Empty(t, p.Key())

	_, err = knownNetwork{name: "x", typ: "wep"}.profile(nil)
	assert.ErrorIs(t, err, wifi.ErrNotSupported)
}
