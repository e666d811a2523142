package mock

import (
	"github.com/shazow/simplewifi/wifi"
)

// New creates a mock provider with one adapter and a list of fun wifi networks.
func New() (wifi.Provider, error) {
	wpa2 := func(ssid string, quality uint32) wifi.DiscoveredNetwork {
		return Network(ssid, quality, wifi.AuthRSNAPSK, wifi.CipherCCMP)
	}
	networks := []wifi.DiscoveredNetwork{
		wpa2("HideYoKidsHideYoWiFi", 72),
		wpa2("GET off my LAN", 35),
		Network("NeverGonnaGiveYouIP", 51, wifi.AuthOpen, wifi.CipherWEP),
		Network("Unencrypted_Honeypot", 93, wifi.AuthOpen, wifi.CipherNone),
		Network("YourWiFi.exe", 22, wifi.AuthWPAPSK, wifi.CipherTKIP),
		wpa2("Dunder MiffLAN", 64),
		Network("Police Surveillance 2", 48, wifi.AuthRSNA, wifi.CipherCCMP),
		Network("I Believe Wi Can Fi", 40, wifi.AuthSharedKey, wifi.CipherWEP104),
		wpa2("Password is password", 87),
		wpa2("TacoBoutAGoodSignal", 99),
	}

	// A second observation of a known network, without its profile name.
	known := wpa2("Password is password", 87)
	known.ProfileName = "Password is password"
	networks = append(networks, known)

	adapter := NewAdapter("Mock Wireless Adapter", networks...)
	for _, ssid := range []string{"Password is password", "HideYoKidsHideYoWiFi"} {
		profile, err := wifi.BuildProfile(ssid, wpa2(ssid, 0), "password")
		if err != nil {
			return nil, err
		}
		doc, err := profile.Marshal()
		if err != nil {
			return nil, err
		}
		adapter.AddProfile(ssid, doc)
	}

	return NewProvider(adapter), nil
}
