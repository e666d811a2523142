//go:build linux

package nl80211

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shazow/simplewifi/wifi"
)

// cell is one BSS from `iwlist <iface> scan`.
type cell struct {
	ssid       string
	bssid      string
	quality    uint32
	encrypted  bool
	wpa        bool
	wpa2       bool
	enterprise bool
	tkipOnly   bool
	adhoc      bool
}

var (
	essidRe      = regexp.MustCompile(`ESSID:"(.*?)"`)
	addressRe    = regexp.MustCompile(`Address: ([0-9A-Fa-f:]+)`)
	encryptionRe = regexp.MustCompile(`Encryption key:(on|off)`)
	qualityRe    = regexp.MustCompile(`Quality=(\d+)/(\d+)`)
	signalRe     = regexp.MustCompile(`Signal level=(-?\d+) dBm`)
	modeRe       = regexp.MustCompile(`Mode:(\S+)`)
	wpa2Re       = regexp.MustCompile(`IE: IEEE 802.11i/WPA2 Version`)
	wpaRe        = regexp.MustCompile(`IE: WPA Version 1`)
	groupRe      = regexp.MustCompile(`Group Cipher : (\S+)`)
	authSuiteRe  = regexp.MustCompile(`Authentication Suites \(\d+\) : (.+)`)
)

func parseIWListOutput(output string) []cell {
	var cells []cell
	for _, chunk := range strings.Split(output, "Cell ") {
		ssid := essidRe.FindStringSubmatch(chunk)
		address := addressRe.FindStringSubmatch(chunk)
		encryption := encryptionRe.FindStringSubmatch(chunk)
		if len(ssid) < 2 || len(address) < 2 || len(encryption) < 2 {
			continue
		}

		c := cell{
			ssid:      ssid[1],
			bssid:     strings.ToLower(address[1]),
			encrypted: encryption[1] == "on",
			wpa2:      wpa2Re.MatchString(chunk),
			wpa:       wpaRe.MatchString(chunk),
		}
		if m := qualityRe.FindStringSubmatch(chunk); len(m) == 3 {
			q, _ := strconv.Atoi(m[1])
			limit, _ := strconv.Atoi(m[2])
			if limit > 0 {
				c.quality = uint32(q * 100 / limit)
			}
		} else if m := signalRe.FindStringSubmatch(chunk); len(m) == 2 {
			dbm, _ := strconv.Atoi(m[1])
			c.quality = qualityFromSignal(dbm)
		}
		if m := modeRe.FindStringSubmatch(chunk); len(m) == 2 {
			c.adhoc = strings.EqualFold(m[1], "Ad-Hoc")
		}
		if m := authSuiteRe.FindStringSubmatch(chunk); len(m) == 2 {
			c.enterprise = strings.Contains(m[1], "802.1x")
		}
		if m := groupRe.FindAllStringSubmatch(chunk, -1); len(m) > 0 {
			c.tkipOnly = true
			for _, g := range m {
				if g[1] != "TKIP" {
					c.tkipOnly = false
				}
			}
		}
		cells = append(cells, c)
	}
	return cells
}

// security maps the information elements of a cell to auth and cipher
// algorithms. WPA2 wins over WPA when an AP advertises both.
func (c cell) security() (wifi.AuthAlgorithm, wifi.CipherAlgorithm) {
	cipher := wifi.CipherCCMP
	if c.tkipOnly {
		cipher = wifi.CipherTKIP
	}
	switch {
	case c.wpa2 && c.enterprise:
		return wifi.AuthRSNA, cipher
	case c.wpa2:
		return wifi.AuthRSNAPSK, cipher
	case c.wpa && c.enterprise:
		return wifi.AuthWPA, wifi.CipherTKIP
	case c.wpa:
		return wifi.AuthWPAPSK, wifi.CipherTKIP
	case c.encrypted:
		return wifi.AuthOpen, wifi.CipherWEP
	}
	return wifi.AuthOpen, wifi.CipherNone
}

// qualityFromSignal converts dBm to a 0-100 quality where -100 dBm is 0
// and -50 dBm or better is 100.
func qualityFromSignal(dbm int) uint32 {
	q := 2 * (dbm + 100)
	switch {
	case q < 0:
		return 0
	case q > 100:
		return 100
	}
	return uint32(q)
}

// discoveredNetworks groups cells by network identity, keeping the strongest
// signal. connectedSSID marks the network the interface is associated with.
func discoveredNetworks(cells []cell, connectedSSID string) []wifi.DiscoveredNetwork {
	var networks []wifi.DiscoveredNetwork
	index := make(map[wifi.NetworkIdentity]int)
	for _, c := range cells {
		auth, cipher := c.security()
		n := wifi.DiscoveredNetwork{
			SSID:            wifi.NewSSID(c.ssid),
			BSSType:         wifi.BSSTypeInfrastructure,
			BSSIDCount:      1,
			Connectable:     true,
			SignalQuality:   c.quality,
			SecurityEnabled: c.encrypted,
			AuthAlgorithm:   auth,
			CipherAlgorithm: cipher,
		}
		if c.adhoc {
			n.BSSType = wifi.BSSTypeIndependent
		}
		if connectedSSID != "" && c.ssid == connectedSSID {
			n.ProfileName = c.ssid
			n.Flags |= wifi.FlagConnected
		}

		id := n.Identity()
		if i, ok := index[id]; ok {
			existing := &networks[i]
			existing.BSSIDCount++
			existing.SignalQuality = max(existing.SignalQuality, n.SignalQuality)
			existing.Flags |= n.Flags
			if n.ProfileName != "" {
				existing.ProfileName = n.ProfileName
			}
			continue
		}
		index[id] = len(networks)
		networks = append(networks, n)
	}
	return networks
}
