package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shazow/simplewifi/internal/config"
	"github.com/shazow/simplewifi/wifi"
	"github.com/shazow/simplewifi/wifi/mock"
)

func init() {
	mock.DefaultActionSleep = 0
}

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func newTestClient(t *testing.T) (*wifi.Client, *mock.Adapter) {
	t.Helper()
	p, err := mock.New()
	require.NoError(t, err)
	provider := p.(*mock.Provider)
	t.Cleanup(provider.Close)

	client := wifi.New(provider, wifi.WithLogger(discard))
	t.Cleanup(client.Close)
	return client, provider.AdapterList[0]
}

func lines(s string) []string {
	return strings.Split(strings.TrimSpace(s), "\n")
}

func TestRunList(t *testing.T) {
	client, _ := newTestClient(t)
	var buf bytes.Buffer

	require.NoError(t, runList(&buf, client, false, true, config.Default().Colors))

	got := lines(buf.String())
	// The nameless duplicate of the known network is dropped.
	require.Len(t, got, 10)
	assert.True(t, strings.HasPrefix(got[0], "TacoBoutAGoodSignal\t"), got[0])
	assert.True(t, strings.HasPrefix(got[1], "Unencrypted_Honeypot\t"), got[1])
	assert.True(t, strings.HasPrefix(got[2], "Password is password\t"), got[2])
	assert.Contains(t, got[2], "secure, known")
	assert.Contains(t, got[0], "WPA2-Personal (AES)")
}

func TestRunList_JSON(t *testing.T) {
	client, _ := newTestClient(t)
	var buf bytes.Buffer

	require.NoError(t, runList(&buf, client, true, true, config.Default().Colors))

	var entries []listEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entries))
	require.Len(t, entries, 10)
	assert.Equal(t, "TacoBoutAGoodSignal", entries[0].SSID)
	assert.Equal(t, uint32(99), entries[0].Signal)
	assert.True(t, entries[2].HasProfile)
	assert.Equal(t, "Mock Wireless Adapter", entries[2].Adapter)
}

func TestRunList_Unavailable(t *testing.T) {
	client := wifi.New(mock.NewProvider(), wifi.WithLogger(discard))
	defer client.Close()
	err := runList(&bytes.Buffer{}, client, false, false, config.Default().Colors)
	assert.ErrorIs(t, err, wifi.ErrNotAvailable)
}

// closingProvider records whether the backend was closed.
type closingProvider struct {
	wifi.Provider
	closed bool
}

func (p *closingProvider) Close() error {
	p.closed = true
	return nil
}

func TestOpenClient_BackendFails(t *testing.T) {
	client, closeClient := openClient(discard, config.Default(), func(*slog.Logger, string) (wifi.Provider, error) {
		return nil, errors.New("no system bus")
	})
	defer closeClient()

	assert.False(t, client.Available())
	err := runList(&bytes.Buffer{}, client, false, false, config.Default().Colors)
	assert.ErrorIs(t, err, wifi.ErrNotAvailable)
	err = runWatch(context.Background(), &bytes.Buffer{}, client, nil)
	assert.ErrorIs(t, err, wifi.ErrNotAvailable)

	var buf bytes.Buffer
	require.NoError(t, runStatus(&buf, client))
	assert.Equal(t, "disconnected\n", buf.String())
}

func TestOpenClient_ClosesBackend(t *testing.T) {
	p, err := mock.New()
	require.NoError(t, err)
	defer p.(*mock.Provider).Close()
	backend := &closingProvider{Provider: p}

	cfg := config.Default()
	cfg.Backend = "mock"
	var gotName string
	client, closeClient := openClient(discard, cfg, func(_ *slog.Logger, name string) (wifi.Provider, error) {
		gotName = name
		return backend, nil
	})
	assert.Equal(t, "mock", gotName)
	assert.True(t, client.Available())

	closeClient()
	assert.True(t, backend.closed)
}

func TestRunShow(t *testing.T) {
	client, _ := newTestClient(t)
	var buf bytes.Buffer

	require.NoError(t, runShow(&buf, client, "Password is password"))
	out := buf.String()
	assert.Contains(t, out, "SSID: Password is password")
	assert.Contains(t, out, "Known: true")
	assert.Contains(t, out, "Passphrase: password")
	assert.Contains(t, out, "Auth algorithm: RSNA_PSK")

	buf.Reset()
	require.NoError(t, runShow(&buf, client, "Unencrypted_Honeypot"))
	assert.Contains(t, buf.String(), "Known: false")
	assert.NotContains(t, buf.String(), "Passphrase")

	err := runShow(&buf, client, "NotFound")
	assert.ErrorIs(t, err, wifi.ErrNotFound)
}

func TestRunConnect(t *testing.T) {
	client, adapter := newTestClient(t)
	var buf bytes.Buffer

	err := runConnect(&buf, client, "Dunder MiffLAN", "short", false)
	assert.ErrorContains(t, err, "invalid password")

	require.NoError(t, runConnect(&buf, client, "Dunder MiffLAN", "that's what she said", false))
	assert.Equal(t, "Connected to Dunder MiffLAN\n", buf.String())
	assert.Equal(t, 1, adapter.SetProfileCount)

	// The stored profile is reused without a password.
	buf.Reset()
	require.NoError(t, runConnect(&buf, client, "Dunder MiffLAN", "", false))
	assert.Equal(t, 1, adapter.SetProfileCount)

	buf.Reset()
	require.NoError(t, runStatus(&buf, client))
	out := lines(buf.String())
	assert.Equal(t, "connected", out[0])
	assert.Contains(t, out[1], "Mock Wireless Adapter\tConnected\tDunder MiffLAN\t64%")
}

func TestRunConnect_Fails(t *testing.T) {
	client, adapter := newTestClient(t)
	adapter.ConnectFails = true

	err := runConnect(&bytes.Buffer{}, client, "Password is password", "", false)
	assert.ErrorContains(t, err, "failed to connect")
}

func TestRunDisconnect(t *testing.T) {
	client, adapter := newTestClient(t)
	require.NoError(t, runConnect(&bytes.Buffer{}, client, "Password is password", "", false))

	var buf bytes.Buffer
	require.NoError(t, runDisconnect(&buf, client))
	assert.Equal(t, "Disconnected\n", buf.String())

	_, err := adapter.CurrentConnection()
	assert.ErrorIs(t, err, wifi.ErrNotConnected)
}

func TestRunForget(t *testing.T) {
	client, adapter := newTestClient(t)
	var buf bytes.Buffer

	require.NoError(t, runForget(&buf, client, "HideYoKidsHideYoWiFi"))
	assert.Equal(t, "Forgot HideYoKidsHideYoWiFi\n", buf.String())
	assert.Equal(t, 1, adapter.DeleteCount)

	err := runForget(&buf, client, "HideYoKidsHideYoWiFi")
	assert.ErrorIs(t, err, wifi.ErrNotFound)
}

func TestRunProfile(t *testing.T) {
	client, _ := newTestClient(t)
	var buf bytes.Buffer

	require.NoError(t, runProfile(&buf, client, "Password is password"))
	p, err := wifi.ParseProfile(strings.TrimSpace(buf.String()))
	require.NoError(t, err)
	assert.Equal(t, "Password is password", p.Name)

	err = runProfile(&buf, client, "Dunder MiffLAN")
	assert.ErrorIs(t, err, wifi.ErrNotFound)
}

func TestRunQR(t *testing.T) {
	client, _ := newTestClient(t)
	var buf bytes.Buffer

	require.NoError(t, runQR(&buf, client, "Password is password", ""))
	assert.NotEmpty(t, buf.String())

	err := runQR(&buf, client, "Police Surveillance 2", "")
	assert.ErrorIs(t, err, wifi.ErrNotSupported)
}

func TestWifiQRString(t *testing.T) {
	tests := []struct {
		name     string
		ssid     string
		password string
		security string
		hidden   bool
		want     string
	}{
		{"wpa", "Home", "hunter22", qrSecurityWPA, false, "WIFI:S:Home;T:WPA;P:hunter22;;"},
		{"open", "Cafe", "", qrSecurityOpen, false, "WIFI:S:Cafe;T:nopass;;"},
		{"hidden wep", "Old", "abcde", qrSecurityWEP, true, "WIFI:S:Old;T:WEP;P:abcde;H:true;;"},
		{"escaped", `a;b,c:d"e\`, `p;w`, qrSecurityWPA, false, `WIFI:S:a\;b\,c\:d\"e\\;T:WPA;P:p\;w;;`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, wifiQRString(tt.ssid, tt.password, tt.security, tt.hidden))
		})
	}
}

func TestQRSecurity(t *testing.T) {
	tests := []struct {
		network wifi.DiscoveredNetwork
		want    string
		wantErr bool
	}{
		{mock.Network("a", 0, wifi.AuthOpen, wifi.CipherNone), qrSecurityOpen, false},
		{mock.Network("a", 0, wifi.AuthOpen, wifi.CipherWEP), qrSecurityWEP, false},
		{mock.Network("a", 0, wifi.AuthSharedKey, wifi.CipherWEP104), qrSecurityWEP, false},
		{mock.Network("a", 0, wifi.AuthRSNAPSK, wifi.CipherCCMP), qrSecurityWPA, false},
		{mock.Network("a", 0, wifi.AuthWPAPSK, wifi.CipherTKIP), qrSecurityWPA, false},
		{mock.Network("a", 0, wifi.AuthRSNA, wifi.CipherCCMP), "", true},
	}
	for _, tt := range tests {
		got, err := qrSecurity(tt.network)
		if tt.wantErr {
			assert.Error(t, err)
			continue
		}
		assert.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

// syncBuffer is a bytes.Buffer safe for a writer and a reader goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRunWatch(t *testing.T) {
	client, adapter := newTestClient(t)
	ctx, cancel := context.WithCancel(context.Background())

	var out syncBuffer
	logs := make(chan slog.Record, 1)
	done := make(chan error, 1)
	go func() { done <- runWatch(ctx, &out, client, logs) }()

	// Give runWatch a moment to attach its handlers.
	assert.Eventually(t, func() bool {
		adapter.Emit(wifi.ACMNotification("", wifi.ACMScanComplete))
		adapter.Flush()
		return strings.Contains(out.String(), "acm:scan_complete")
	}, time.Second, 10*time.Millisecond)

	adapter.Emit(wifi.MSMNotification("", wifi.MSMConnected))
	logs <- slog.NewRecord(time.Now(), slog.LevelWarn, "backend hiccup", 0)

	assert.Eventually(t, func() bool {
		s := out.String()
		return strings.Contains(s, "status\tconnected") && strings.Contains(s, "WARN\tbackend hiccup")
	}, time.Second, 10*time.Millisecond)
	assert.Contains(t, out.String(), adapter.ID())

	cancel()
	assert.NoError(t, <-done)
}
