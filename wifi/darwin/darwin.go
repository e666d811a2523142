package darwin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shazow/simplewifi/wifi"
)

// Runner runs a command and returns its stdout.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// execRunner wraps exec.CommandContext to capture stderr and wrap errors.
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

// Provider drives the macOS wireless stack through networksetup,
// system_profiler and the keychain.
type Provider struct {
	Run    Runner
	Logger *slog.Logger

	mu      sync.Mutex
	adapter *Adapter
}

// New creates a Provider that shells out to the system tools.
func New(logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{Run: execRunner, Logger: logger}
}

func (p *Provider) run(args ...string) (string, error) {
	out, err := p.Run(context.Background(), args[0], args[1:]...)
	return string(out), err
}

// Adapters returns the Wi-Fi hardware port, if it is powered on.
func (p *Provider) Adapters() ([]wifi.Adapter, error) {
	out, err := p.run("networksetup", "-listallhardwareports")
	if err != nil {
		return nil, fmt.Errorf("failed to list hardware ports: %w: %w", wifi.ErrNotAvailable, err)
	}
	device, err := findWifiDevice(out)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", wifi.ErrNotAvailable, err)
	}

	out, err = p.run("networksetup", "-getairportpower", device)
	if err != nil {
		return nil, err
	}
	if !strings.Contains(out, ": On") {
		return nil, wifi.ErrWirelessDisabled
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.adapter == nil || p.adapter.device != device {
		if p.adapter != nil {
			p.adapter.notifier.Close()
		}
		p.adapter = &Adapter{
			run:      p.Run,
			device:   device,
			logger:   p.Logger.With("adapter", device),
			notifier: wifi.NewNotifier(),
		}
	}
	return []wifi.Adapter{p.adapter}, nil
}

// Close stops notification delivery for the adapter handed out by Adapters.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.adapter != nil {
		p.adapter.notifier.Close()
		p.adapter = nil
	}
	return nil
}

// Adapter is a macOS Wi-Fi interface such as en0. macOS has no event
// source for the command line tools, so the adapter emits notifications for
// the operations it performs itself.
type Adapter struct {
	run      Runner
	device   string
	logger   *slog.Logger
	notifier *wifi.Notifier

	mu      sync.Mutex
	scanned []scannedNetwork
}

var _ wifi.Adapter = (*Adapter)(nil)

func (a *Adapter) command(ctx context.Context, args ...string) (string, error) {
	out, err := a.run(ctx, args[0], args[1:]...)
	return string(out), err
}

func (a *Adapter) ID() string   { return a.device }
func (a *Adapter) Name() string { return "Wi-Fi (" + a.device + ")" }

// Scan runs system_profiler, which scans as a side effect, and caches the
// result for AvailableNetworks.
func (a *Adapter) Scan() error {
	out, err := a.command(context.Background(), "system_profiler", "SPAirPortDataType")
	if err != nil {
		a.notifier.Emit(wifi.ACMNotification(a.device, wifi.ACMScanFail))
		return fmt.Errorf("failed to scan for networks: %w: %w", wifi.ErrOperationFailed, err)
	}
	scanned := parseSystemProfilerOutput(out)

	a.mu.Lock()
	a.scanned = scanned
	a.mu.Unlock()

	a.notifier.Emit(wifi.ACMNotification(a.device, wifi.ACMScanComplete))
	return nil
}

func (a *Adapter) cachedScan() ([]scannedNetwork, error) {
	a.mu.Lock()
	scanned := a.scanned
	a.mu.Unlock()
	if scanned != nil {
		return scanned, nil
	}
	if err := a.Scan(); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.scanned, nil
}

func (a *Adapter) preferred() ([]string, error) {
	out, err := a.command(context.Background(), "networksetup", "-listpreferredwirelessnetworks", a.device)
	if err != nil {
		return nil, fmt.Errorf("failed to list preferred networks: %w: %w", wifi.ErrOperationFailed, err)
	}
	return parsePreferredNetworks(out), nil
}

func (a *Adapter) currentSSID() (string, bool) {
	out, err := a.command(context.Background(), "networksetup", "-getairportnetwork", a.device)
	if err != nil {
		a.logger.Debug("failed to get current network", "error", err)
		return "", false
	}
	return parseCurrentNetwork(out)
}

func (a *Adapter) AvailableNetworks() ([]wifi.DiscoveredNetwork, error) {
	scanned, err := a.cachedScan()
	if err != nil {
		return nil, err
	}
	preferred, err := a.preferred()
	if err != nil {
		return nil, err
	}
	current, _ := a.currentSSID()
	return discoveredNetworks(scanned, preferred, current), nil
}

func (a *Adapter) CurrentConnection() (wifi.ConnectionInfo, error) {
	ssid, ok := a.currentSSID()
	if !ok {
		return wifi.ConnectionInfo{}, wifi.ErrNotConnected
	}
	info := wifi.ConnectionInfo{
		State:       wifi.StateConnected,
		Mode:        wifi.ModeProfile,
		ProfileName: ssid,
		SSID:        wifi.NewSSID(ssid),
		BSSType:     wifi.BSSTypeInfrastructure,
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	for _, s := range a.scanned {
		if s.ssid == ssid {
			info.SignalQuality = rssiToStrength(s.rssi)
			if s.adhoc {
				info.BSSType = wifi.BSSTypeIndependent
			}
			break
		}
	}
	return info, nil
}

func (a *Adapter) Profiles() ([]wifi.ProfileInfo, error) {
	preferred, err := a.preferred()
	if err != nil {
		return nil, err
	}
	profiles := make([]wifi.ProfileInfo, 0, len(preferred))
	for _, ssid := range preferred {
		profiles = append(profiles, wifi.ProfileInfo{Name: ssid})
	}
	return profiles, nil
}

func (a *Adapter) hasProfile(name string) (bool, error) {
	preferred, err := a.preferred()
	if err != nil {
		return false, err
	}
	return slices.Contains(preferred, name), nil
}

func (a *Adapter) DeleteProfile(name string) error {
	_, err := a.command(context.Background(), "networksetup", "-removepreferredwirelessnetwork", a.device, name)
	if err != nil {
		return err
	}
	a.notifier.Emit(wifi.ACMNotification(a.device, wifi.ACMProfileChange))
	return nil
}

// ProfileXML reconstructs a profile from the preferred network list. The
// preferred list does not record security, so it is taken from the latest
// scan and assumed to be WPA2 for networks out of range.
func (a *Adapter) ProfileXML(name string) (string, error) {
	ok, err := a.hasProfile(name)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("profile %s: %w", name, wifi.ErrNotFound)
	}

	network := wifi.DiscoveredNetwork{
		SSID:            wifi.NewSSID(name),
		BSSType:         wifi.BSSTypeInfrastructure,
		AuthAlgorithm:   wifi.AuthRSNAPSK,
		CipherAlgorithm: wifi.CipherCCMP,
	}
	a.mu.Lock()
	for _, s := range a.scanned {
		if s.ssid == name {
			network.AuthAlgorithm, network.CipherAlgorithm = securityFromDescription(s.security)
			if s.adhoc {
				network.BSSType = wifi.BSSTypeIndependent
			}
			break
		}
	}
	a.mu.Unlock()

	var password string
	if network.AuthAlgorithm != wifi.AuthOpen || network.CipherAlgorithm.IsWEP() {
		// For known networks, the password lives in the keychain.
		out, err := a.command(context.Background(), "security", "find-generic-password", "-wa", name)
		if err != nil {
			a.logger.Debug("failed to read keychain password", "profile", name, "error", err)
		}
		password = strings.TrimSpace(out)
	}

	p, err := wifi.BuildProfile(name, network, password)
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
	securityType, err := preferredSecurityType(p)
	if err != nil {
		return err
	}
	ssid := string(p.SSIDBytes())

	exists, err := a.hasProfile(ssid)
	if err != nil {
		return err
	}
	if exists {
		if !overwrite {
			return fmt.Errorf("network %s already exists: %w", ssid, wifi.ErrOperationFailed)
		}
		if _, err := a.command(context.Background(), "networksetup", "-removepreferredwirelessnetwork", a.device, ssid); err != nil {
			return err
		}
	}

	args := []string{"networksetup", "-addpreferredwirelessnetworkatindex", a.device, ssid, "0", securityType}
	if key := p.Key(); key != "" {
		args = append(args, key)
	}
	if _, err := a.command(context.Background(), args...); err != nil {
		return err
	}
	a.notifier.Emit(wifi.ACMNotification(a.device, wifi.ACMProfileChange))
	return nil
}

// Connect joins the preferred network named profile. networksetup reads the
// password from the keychain itself.
func (a *Adapter) Connect(mode wifi.ConnectionMode, bss wifi.BSSType, profile string, timeout time.Duration) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	a.notifier.Emit(wifi.ACMNotification(a.device, wifi.ACMConnectionStart))
	out, err := a.command(ctx, "networksetup", "-setairportnetwork", a.device, profile)
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		a.logger.Debug("timed out joining network", "profile", profile, "timeout", timeout)
		a.notifier.Emit(wifi.ACMNotification(a.device, wifi.ACMConnectionAttemptFail))
		return false, nil
	case err != nil:
		a.notifier.Emit(wifi.ACMNotification(a.device, wifi.ACMConnectionAttemptFail))
		return false, err
	case joinFailed(out):
		a.logger.Debug("failed to join network", "profile", profile, "output", strings.TrimSpace(out))
		a.notifier.Emit(wifi.ACMNotification(a.device, wifi.ACMConnectionAttemptFail))
		return false, nil
	}

	a.notifier.Emit(wifi.MSMNotification(a.device, wifi.MSMConnected))
	a.notifier.Emit(wifi.ACMNotification(a.device, wifi.ACMConnectionComplete))
	return true, nil
}

// Disconnect is unavailable: networksetup can only drop an association by
// powering the radio off.
func (a *Adapter) Disconnect() error {
	return fmt.Errorf("disconnect on darwin: %w", wifi.ErrNotSupported)
}

func (a *Adapter) Subscribe(h wifi.NotificationHandler) (func(), error) {
	return a.notifier.Subscribe(h), nil
}
