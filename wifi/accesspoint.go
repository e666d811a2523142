package wifi

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// ConnectTimeout bounds how long Connect waits for the adapter to associate.
const ConnectTimeout = 6000 * time.Millisecond

// AccessPoint is one network observation bound to the adapter that saw it.
// It is created fresh by every Client.GetAccessPoints call; everything other
// than the adapter and the observation is derived on demand.
type AccessPoint struct {
	adapter Adapter
	network DiscoveredNetwork

	pool   *workerPool
	logger *slog.Logger
}

// NewAccessPoint binds network to adapter.
func NewAccessPoint(adapter Adapter, network DiscoveredNetwork) *AccessPoint {
	return &AccessPoint{
		adapter: adapter,
		network: network,
		logger:  slog.Default(),
	}
}

// Name is the network's SSID decoded as UTF-8.
func (ap *AccessPoint) Name() string {
	return ap.network.SSID.String()
}

// SignalStrength is the signal quality in the range 0-100.
func (ap *AccessPoint) SignalStrength() uint32 {
	return ap.network.SignalQuality
}

// IsSecure reports whether the network has security enabled.
func (ap *AccessPoint) IsSecure() bool {
	return ap.network.SecurityEnabled
}

// Network returns the underlying observation.
func (ap *AccessPoint) Network() DiscoveredNetwork {
	return ap.network
}

// Adapter returns the adapter the network was seen on.
func (ap *AccessPoint) Adapter() Adapter {
	return ap.adapter
}

// HasProfile reports whether the adapter stores a profile named after this
// access point. Failures to list profiles are treated as no profile.
func (ap *AccessPoint) HasProfile() bool {
	profiles, err := ap.adapter.Profiles()
	if err != nil {
		ap.logger.Debug("failed to list profiles", "adapter", ap.adapter.ID(), "error", err)
		return false
	}
	name := ap.Name()
	for _, p := range profiles {
		if p.Name == name {
			return true
		}
	}
	return false
}

// IsConnected reports whether the adapter is connected using this access
// point's profile.
func (ap *AccessPoint) IsConnected() bool {
	assoc, err := QueryConnection(ap.adapter)
	if err != nil {
		ap.logger.Debug("failed to query connection", "adapter", ap.adapter.ID(), "error", err)
		return false
	}
	if !assoc.Connected {
		return false
	}
	return assoc.Info.ProfileName == ap.Name() && assoc.Info.State == StateConnected
}

// SecurityMethod describes the network's authentication and cipher, such as
// "WPA2-Personal (AES)".
func (ap *AccessPoint) SecurityMethod() string {
	return FormatSecurityMethod(ap.network.AuthAlgorithm, ap.network.CipherAlgorithm)
}

// IsValidPassword checks password against the network's cipher requirements.
func (ap *AccessPoint) IsValidPassword(password string) bool {
	return IsValidPassword(password, ap.network.CipherAlgorithm)
}

// Connect connects to the access point and blocks until the adapter reports
// the outcome.
//
// When no profile exists, or overwrite is set, req must carry a valid
// password; the old profile is deleted and req writes a new one. Errors from
// deleting or writing the profile are returned. A failed association is
// reported as false with a nil error.
func (ap *AccessPoint) Connect(req AuthRequest, overwrite bool) (bool, error) {
	hasProfile := ap.HasProfile()
	writeProfile := !hasProfile || overwrite

	if writeProfile && (req == nil || !req.IsPasswordValid()) {
		return false, nil
	}

	name := ap.Name()
	if writeProfile {
		if hasProfile {
			if err := ap.adapter.DeleteProfile(name); err != nil {
				return false, fmt.Errorf("failed to delete profile %q: %w", name, err)
			}
		}
		if err := req.Process(); err != nil {
			return false, fmt.Errorf("failed to write profile %q: %w", name, err)
		}
	}

	return ap.adapter.Connect(ModeProfile, ap.network.BSSType, name, ConnectTimeout)
}

// ConnectAsync runs Connect in the background. onComplete, if set, is called
// exactly once from the worker goroutine; errors are reported as false.
func (ap *AccessPoint) ConnectAsync(req AuthRequest, overwrite bool, onComplete func(bool)) {
	task := func() {
		ok, err := ap.Connect(req, overwrite)
		if err != nil {
			ap.logger.Warn("connect failed", "adapter", ap.adapter.ID(), "ssid", ap.Name(), "error", err)
			ok = false
		}
		if onComplete != nil {
			onComplete(ok)
		}
	}
	if ap.pool == nil {
		go task()
		return
	}
	ap.pool.Go(task)
}

// ProfileXML returns the stored profile for this access point, or "" if there
// is none.
func (ap *AccessPoint) ProfileXML() string {
	if !ap.HasProfile() {
		return ""
	}
	doc, err := ap.adapter.ProfileXML(ap.Name())
	if err != nil {
		ap.logger.Debug("failed to read profile", "adapter", ap.adapter.ID(), "error", err)
		return ""
	}
	return doc
}

// DeleteProfile removes the stored profile for this access point, if any.
func (ap *AccessPoint) DeleteProfile() {
	if !ap.HasProfile() {
		return
	}
	if err := ap.adapter.DeleteProfile(ap.Name()); err != nil {
		ap.logger.Debug("failed to delete profile", "adapter", ap.adapter.ID(), "error", err)
	}
}

func (ap *AccessPoint) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Interface: %s\n", ap.adapter.Name())
	fmt.Fprintf(&b, "Auth algorithm: %s\n", ap.network.AuthAlgorithm)
	fmt.Fprintf(&b, "Cipher algorithm: %s\n", ap.network.CipherAlgorithm)
	fmt.Fprintf(&b, "BSS type: %s\n", ap.network.BSSType)
	fmt.Fprintf(&b, "Connectable: %t\n", ap.network.Connectable)
	if !ap.network.Connectable {
		fmt.Fprintf(&b, "Reason to false: %s\n", ap.network.NotConnectableReason)
	}
	return b.String()
}
