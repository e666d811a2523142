//go:build linux

package iwd

import (
	"errors"
	"slices"
	"strings"

	"github.com/godbus/dbus/v5"
	"github.com/shazow/simplewifi/wifi"
)

func stringProp(props map[string]dbus.Variant, name string) string {
	s, _ := props[name].Value().(string)
	return s
}

// ObjectManager returns objects in map order.
func sortAdapters(adapters []wifi.Adapter) {
	slices.SortFunc(adapters, func(a, b wifi.Adapter) int {
		return strings.Compare(a.ID(), b.ID())
	})
}

func sortProfiles(profiles []wifi.ProfileInfo) {
	slices.SortFunc(profiles, func(a, b wifi.ProfileInfo) int {
		return strings.Compare(a.Name, b.Name)
	})
}

// securityFromType maps an iwd network type to auth and cipher algorithms.
// iwd does not report ciphers, so secured networks are assumed to use CCMP.
func securityFromType(typ string) (wifi.AuthAlgorithm, wifi.CipherAlgorithm) {
	switch typ {
	case "psk":
		return wifi.AuthRSNAPSK, wifi.CipherCCMP
	case "8021x":
		return wifi.AuthRSNA, wifi.CipherCCMP
	case "wep":
		return wifi.AuthOpen, wifi.CipherWEP
	}
	return wifi.AuthOpen, wifi.CipherNone
}

// qualityFromSignal converts iwd's signal strength, in 100 * dBm, to a 0-100
// quality where -100 dBm is 0 and -50 dBm or better is 100.
func qualityFromSignal(signal int16) uint32 {
	dbm := int(signal) / 100
	q := 2 * (dbm + 100)
	switch {
	case q < 0:
		return 0
	case q > 100:
		return 100
	}
	return uint32(q)
}

// interfaceState maps a Station.State value, reporting false when the
// station has no association.
func interfaceState(state string) (wifi.InterfaceState, bool) {
	switch state {
	case "connected", "roaming":
		return wifi.StateConnected, true
	case "connecting":
		return wifi.StateAssociating, true
	case "disconnecting":
		return wifi.StateDisconnecting, true
	}
	return wifi.StateDisconnected, false
}

func stateNotification(adapterID, state string) (wifi.Notification, bool) {
	switch state {
	case "connected":
		return wifi.MSMNotification(adapterID, wifi.MSMConnected), true
	case "disconnected":
		return wifi.ACMNotification(adapterID, wifi.ACMDisconnected), true
	case "connecting":
		return wifi.ACMNotification(adapterID, wifi.ACMConnectionStart), true
	case "disconnecting":
		return wifi.ACMNotification(adapterID, wifi.ACMDisconnecting), true
	case "roaming":
		return wifi.MSMNotification(adapterID, wifi.MSMRoamingStart), true
	}
	return wifi.Notification{}, false
}

func dbusErrorName(err error) (string, bool) {
	var e dbus.Error
	if errors.As(err, &e) {
		return e.Name, true
	}
	var pe *dbus.Error
	if errors.As(err, &pe) {
		return pe.Name, true
	}
	return "", false
}
