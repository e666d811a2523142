//go:build linux

package networkmanager

import (
	"fmt"
	"slices"

	"github.com/shazow/simplewifi/wifi"
)

// Setting names and values of NetworkManager connection settings.
const (
	settingConnection = "connection"
	settingWireless   = "802-11-wireless"
	settingSecurity   = "802-11-wireless-security"

	connectionTypeWireless = "802-11-wireless"
)

// 802.11 AP flags, see NM80211ApFlags and NM80211ApSecurityFlags.
const (
	apFlagPrivacy uint32 = 0x1

	apSecPairWEP40    uint32 = 0x1
	apSecPairWEP104   uint32 = 0x2
	apSecPairTKIP     uint32 = 0x4
	apSecPairCCMP     uint32 = 0x8
	apSecKeyMgmtPSK   uint32 = 0x100
	apSecKeyMgmt8021X uint32 = 0x200
	apSecKeyMgmtSAE   uint32 = 0x400
)

// nm80211ModeAdhoc is NM_802_11_MODE_ADHOC.
const nm80211ModeAdhoc uint32 = 1

type connectionSettings = map[string]map[string]interface{}

// securityFromFlags derives the auth and cipher algorithms advertised by an
// access point.
func securityFromFlags(flags, wpaFlags, rsnFlags uint32) (wifi.AuthAlgorithm, wifi.CipherAlgorithm) {
	cipher := func(sec uint32) wifi.CipherAlgorithm {
		switch {
		case sec&apSecPairCCMP != 0:
			return wifi.CipherCCMP
		case sec&apSecPairTKIP != 0:
			return wifi.CipherTKIP
		case sec&apSecPairWEP104 != 0:
			return wifi.CipherWEP104
		case sec&apSecPairWEP40 != 0:
			return wifi.CipherWEP40
		}
		return wifi.CipherUseGroup
	}

	switch {
	case rsnFlags != 0:
		if rsnFlags&(apSecKeyMgmtPSK|apSecKeyMgmtSAE) != 0 || rsnFlags&apSecKeyMgmt8021X == 0 {
			return wifi.AuthRSNAPSK, cipher(rsnFlags)
		}
		return wifi.AuthRSNA, cipher(rsnFlags)
	case wpaFlags != 0:
		if wpaFlags&apSecKeyMgmt8021X != 0 && wpaFlags&apSecKeyMgmtPSK == 0 {
			return wifi.AuthWPA, cipher(wpaFlags)
		}
		return wifi.AuthWPAPSK, cipher(wpaFlags)
	case flags&apFlagPrivacy != 0:
		return wifi.AuthOpen, wifi.CipherWEP
	}
	return wifi.AuthOpen, wifi.CipherNone
}

// connectionID returns the id of a wireless connection, or false for other
// connection types.
func connectionID(s connectionSettings) (string, bool) {
	c, ok := s[settingConnection]
	if !ok {
		return "", false
	}
	if typ, _ := c["type"].(string); typ != connectionTypeWireless {
		return "", false
	}
	id, _ := c["id"].(string)
	return id, id != ""
}

func connectionSSID(s connectionSettings) []byte {
	if wireless, ok := s[settingWireless]; ok {
		if ssid, ok := wireless["ssid"].([]byte); ok {
			return ssid
		}
	}
	return nil
}

// profileFromSettings renders a wireless connection as a WLANProfile. secrets
// holds the result of GetSecrets for the security setting and may be nil.
func profileFromSettings(s, secrets connectionSettings) (wifi.Profile, error) {
	name, ok := connectionID(s)
	if !ok {
		return wifi.Profile{}, fmt.Errorf("not a wireless connection: %w", wifi.ErrNotSupported)
	}
	ssid := connectionSSID(s)
	p := wifi.Profile{
		Name:           name,
		ConnectionType: "ESS",
		ConnectionMode: "auto",
	}
	p.SSIDConfig.SSID.Hex = fmt.Sprintf("%X", ssid)
	p.SSIDConfig.SSID.Name = wifi.SSID{Length: uint32(len(ssid)), Bytes: ssid}.String()

	wireless := s[settingWireless]
	if hidden, ok := wireless["hidden"].(bool); ok {
		p.SSIDConfig.NonBroadcast = hidden
	}
	if autoconnect, ok := s[settingConnection]["autoconnect"].(bool); ok && !autoconnect {
		p.ConnectionMode = "manual"
	}
	if mode, _ := wireless["mode"].(string); mode == "adhoc" {
		p.ConnectionType = "IBSS"
		p.ConnectionMode = "manual"
	}

	sec, ok := s[settingSecurity]
	if !ok {
		p.Security.AuthEncryption.Authentication = "open"
		p.Security.AuthEncryption.Encryption = "none"
		return p, nil
	}
	secret := func(key string) string {
		if v, ok := secrets[settingSecurity][key].(string); ok {
			return v
		}
		v, _ := sec[key].(string)
		return v
	}

	ae := &p.Security.AuthEncryption
	keyMgmt, _ := sec["key-mgmt"].(string)
	switch keyMgmt {
	case "none":
		ae.Authentication = "open"
		if alg, _ := sec["auth-alg"].(string); alg == "shared" {
			ae.Authentication = "shared"
		}
		ae.Encryption = "WEP"
		p.Security.SharedKey = &wifi.SharedKey{KeyType: "networkKey", KeyMaterial: secret("wep-key0")}
	case "wpa-psk", "sae":
		ae.Authentication = "WPA2PSK"
		ae.Encryption = "AES"
		if proto, ok := sec["proto"].([]string); ok && slices.Equal(proto, []string{"wpa"}) {
			ae.Authentication = "WPAPSK"
			ae.Encryption = "TKIP"
		}
		p.Security.SharedKey = &wifi.SharedKey{KeyType: "passPhrase", KeyMaterial: secret("psk")}
	case "wpa-eap":
		ae.Authentication = "WPA2"
		ae.Encryption = "AES"
		ae.UseOneX = true
	default:
		return wifi.Profile{}, fmt.Errorf("key management %q: %w", keyMgmt, wifi.ErrNotSupported)
	}
	return p, nil
}

// settingsFromProfile builds the settings for a new or updated wireless
// connection. iface pins the connection to one device when set.
func settingsFromProfile(p wifi.Profile, uuid, iface string) (connectionSettings, error) {
	s := connectionSettings{
		settingConnection: {
			"id":          p.Name,
			"uuid":        uuid,
			"type":        connectionTypeWireless,
			"autoconnect": p.ConnectionMode != "manual",
		},
		settingWireless: {
			"mode": "infrastructure",
			"ssid": p.SSIDBytes(),
		},
		"ipv4": {"method": "auto"},
		"ipv6": {"method": "auto"},
	}
	if iface != "" {
		s[settingConnection]["interface-name"] = iface
	}
	if p.ConnectionType == "IBSS" {
		s[settingWireless]["mode"] = "adhoc"
	}
	if p.SSIDConfig.NonBroadcast {
		s[settingWireless]["hidden"] = true
	}

	ae := p.Security.AuthEncryption
	var sec map[string]interface{}
	switch ae.Authentication {
	case "open":
		if ae.Encryption != "WEP" {
			break
		}
		sec = map[string]interface{}{
			"key-mgmt": "none",
			"wep-key0": p.Key(),
		}
	case "shared":
		sec = map[string]interface{}{
			"key-mgmt": "none",
			"auth-alg": "shared",
			"wep-key0": p.Key(),
		}
	case "WPAPSK", "WPA2PSK":
		sec = map[string]interface{}{
			"key-mgmt": "wpa-psk",
			"psk":      p.Key(),
		}
	default:
		return nil, fmt.Errorf("authentication %q: %w", ae.Authentication, wifi.ErrNotSupported)
	}
	if sec != nil {
		s[settingWireless]["security"] = settingSecurity
		s[settingSecurity] = sec
	}
	return s, nil
}

// applyUpdateWorkaround modifies the settings map to workaround D-Bus type errors.
//
// NetworkManager's D-Bus API can return ipv6.addresses and ipv6.routes as an
// array of array of variants ('aav'), but expects them as an array of structs
// on update ('a(ayuay)' for addresses and 'a(ayuayu)' for routes). Updating a
// connection with settings previously fetched from the API then fails with a
// type mismatch, so these properties are dropped before an update.
//
// See: https://github.com/Wifx/gonetworkmanager/issues/13 and https://github.com/godbus/dbus/issues/400
func applyUpdateWorkaround(settings connectionSettings) {
	if ipv6Settings, ok := settings["ipv6"]; ok {
		delete(ipv6Settings, "addresses")
		delete(ipv6Settings, "routes")
	}
}
