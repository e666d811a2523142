package wifi

import (
	"errors"
	"fmt"
	"time"
)

// Provider enumerates the wireless adapters of one native wireless stack.
type Provider interface {
	// Adapters returns the adapters currently present. It returns an error
	// wrapping ErrNotAvailable if the wireless subsystem is absent.
	Adapters() ([]Adapter, error)
}

// UnavailableProvider returns a Provider for a wireless subsystem that could
// not be opened. Its Adapters returns cause wrapped with ErrNotAvailable.
func UnavailableProvider(cause error) Provider {
	return unavailableProvider{cause: cause}
}

type unavailableProvider struct {
	cause error
}

func (p unavailableProvider) Adapters() ([]Adapter, error) {
	if p.cause == nil {
		return nil, ErrNotAvailable
	}
	return nil, fmt.Errorf("%w: %w", ErrNotAvailable, p.cause)
}

// NotificationHandler receives native notifications from an adapter.
type NotificationHandler func(Notification)

// Adapter exposes the per-radio primitives of the native wireless stack.
type Adapter interface {
	// ID is a stable identifier for the adapter (a GUID, D-Bus path, or ifname).
	ID() string
	// Name is a human-readable description of the adapter.
	Name() string

	// Scan asks the adapter to refresh its list of visible networks.
	Scan() error
	// AvailableNetworks returns the adapter's latest scan results.
	AvailableNetworks() ([]DiscoveredNetwork, error)
	// CurrentConnection returns the active association, or an error wrapping
	// ErrNotConnected when nothing is connected.
	CurrentConnection() (ConnectionInfo, error)

	// Profiles lists stored connection profiles.
	Profiles() ([]ProfileInfo, error)
	// DeleteProfile removes the stored profile with the given name.
	DeleteProfile(name string) error
	// ProfileXML returns the stored profile document for name.
	ProfileXML(name string) (string, error)
	// SetProfile stores a profile document, replacing a profile of the same
	// name when overwrite is true.
	SetProfile(xml string, overwrite bool) error

	// Connect connects using the named profile and blocks until the adapter
	// reports success, failure, or the timeout elapses.
	Connect(mode ConnectionMode, bss BSSType, profile string, timeout time.Duration) (bool, error)
	// Disconnect drops the current association.
	Disconnect() error

	// Subscribe registers h for native notifications. Notifications are
	// delivered in order on a goroutine owned by the adapter. The returned
	// function unsubscribes h.
	Subscribe(h NotificationHandler) (func(), error)
}

// Association is the result of querying an adapter's current connection.
type Association struct {
	Connected bool
	Info      ConnectionInfo
}

// QueryConnection asks a for its current connection and folds the
// fail-when-disconnected contract into an Association. Errors other than
// ErrNotConnected are returned alongside a disconnected Association.
func QueryConnection(a Adapter) (Association, error) {
	info, err := a.CurrentConnection()
	if err != nil {
		if errors.Is(err, ErrNotConnected) {
			return Association{}, nil
		}
		return Association{}, err
	}
	return Association{Connected: true, Info: info}, nil
}
