package darwin

import (
	"bufio"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/shazow/simplewifi/wifi"
)

type scannedNetwork struct {
	ssid     string
	security string
	rssi     int
	isActive bool
	adhoc    bool
}

var (
	signalRe         = regexp.MustCompile(`Signal / Noise:\s*(-?\d+)\s*dBm`)
	securityRe       = regexp.MustCompile(`Security:\s*(.+)`)
	networkTypeRe    = regexp.MustCompile(`Network Type:\s*(.+)`)
	currentNetworkRe = regexp.MustCompile(`Current Wi-Fi Network: (.+)`)
)

// parseSystemProfilerOutput parses the output of `system_profiler SPAirPortDataType`
// to extract visible Wi-Fi networks with their signal strength and security.
func parseSystemProfilerOutput(output string) []scannedNetwork {
	var networks []scannedNetwork
	seen := make(map[string]int)

	flush := func(n *scannedNetwork) {
		if n == nil || n.ssid == "" {
			return
		}
		i, ok := seen[n.ssid]
		if !ok {
			seen[n.ssid] = len(networks)
			networks = append(networks, *n)
			return
		}
		// Keep the observation that carries signal strength.
		if networks[i].rssi == 0 && n.rssi != 0 {
			networks[i].rssi = n.rssi
		}
	}

	scanner := bufio.NewScanner(strings.NewReader(output))
	inCurrentNetwork := false
	inOtherNetworks := false
	var current *scannedNetwork

	for scanner.Scan() {
		line := scanner.Text()

		// Detect section headers
		if strings.Contains(line, "Current Network Information:") {
			inCurrentNetwork, inOtherNetworks = true, false
			continue
		}
		if strings.Contains(line, "Other Local Wi-Fi Networks:") {
			inCurrentNetwork, inOtherNetworks = false, true
			continue
		}

		// Stop parsing if we hit another interface (like awdl0)
		if strings.HasPrefix(strings.TrimSpace(line), "awdl") {
			break
		}
		if !inCurrentNetwork && !inOtherNetworks {
			continue
		}

		trimmed := strings.TrimSpace(line)
		leadingSpaces := len(line) - len(strings.TrimLeft(line, " "))

		// Network names are at 12-space indent (under Current/Other sections)
		if leadingSpaces == 12 && strings.HasSuffix(trimmed, ":") && !strings.Contains(trimmed, ": ") {
			flush(current)
			current = &scannedNetwork{
				ssid:     strings.TrimSuffix(trimmed, ":"),
				isActive: inCurrentNetwork,
			}
			continue
		}

		if current == nil {
			continue
		}
		if m := signalRe.FindStringSubmatch(line); len(m) > 1 {
			current.rssi, _ = strconv.Atoi(m[1])
		}
		if m := securityRe.FindStringSubmatch(line); len(m) > 1 {
			current.security = strings.TrimSpace(m[1])
		}
		if m := networkTypeRe.FindStringSubmatch(line); len(m) > 1 {
			current.adhoc = strings.Contains(strings.ToLower(m[1]), "ibss") || strings.Contains(strings.ToLower(m[1]), "ad-hoc")
		}
	}
	flush(current)

	return networks
}

// securityFromDescription maps a system_profiler security label such as
// "WPA2 Personal" to auth and cipher algorithms.
func securityFromDescription(s string) (wifi.AuthAlgorithm, wifi.CipherAlgorithm) {
	s = strings.ToLower(s)
	enterprise := strings.Contains(s, "enterprise")
	switch {
	case strings.Contains(s, "wpa3") || strings.Contains(s, "wpa2"):
		if enterprise {
			return wifi.AuthRSNA, wifi.CipherCCMP
		}
		return wifi.AuthRSNAPSK, wifi.CipherCCMP
	case strings.Contains(s, "wpa"):
		if enterprise {
			return wifi.AuthWPA, wifi.CipherTKIP
		}
		return wifi.AuthWPAPSK, wifi.CipherTKIP
	case strings.Contains(s, "wep"):
		return wifi.AuthOpen, wifi.CipherWEP
	}
	return wifi.AuthOpen, wifi.CipherNone
}

func rssiToStrength(rssi int) uint32 {
	if rssi >= 0 || rssi <= -100 {
		return 0
	}
	strength := 2 * (rssi + 100)
	if strength > 100 {
		strength = 100
	}
	return uint32(strength)
}

// discoveredNetworks converts scan results, marking networks that have a
// preferred network entry or are currently joined.
func discoveredNetworks(scanned []scannedNetwork, preferred []string, currentSSID string) []wifi.DiscoveredNetwork {
	known := make(map[string]bool, len(preferred))
	for _, ssid := range preferred {
		known[ssid] = true
	}

	networks := make([]wifi.DiscoveredNetwork, 0, len(scanned))
	for _, s := range scanned {
		auth, cipher := securityFromDescription(s.security)
		n := wifi.DiscoveredNetwork{
			SSID:            wifi.NewSSID(s.ssid),
			BSSType:         wifi.BSSTypeInfrastructure,
			BSSIDCount:      1,
			Connectable:     true,
			SignalQuality:   rssiToStrength(s.rssi),
			SecurityEnabled: auth != wifi.AuthOpen || cipher != wifi.CipherNone,
			AuthAlgorithm:   auth,
			CipherAlgorithm: cipher,
		}
		if s.adhoc {
			n.BSSType = wifi.BSSTypeIndependent
		}
		if known[s.ssid] {
			n.ProfileName = s.ssid
			n.Flags |= wifi.FlagHasProfile
		}
		if s.isActive || (currentSSID != "" && s.ssid == currentSSID) {
			n.Flags |= wifi.FlagConnected
		}
		networks = append(networks, n)
	}
	return networks
}

// findWifiDevice parses the output of `networksetup -listallhardwareports` to find the Wi-Fi device.
func findWifiDevice(output string) (string, error) {
	// The output is a series of stanzas, separated by blank lines.
	// Each stanza describes a hardware port.
	stanzas := strings.Split(output, "\n\n")
	for _, stanza := range stanzas {
		var device string
		isWifiPort := false
		for _, line := range strings.Split(stanza, "\n") {
			if port, ok := strings.CutPrefix(line, "Hardware Port: "); ok {
				isWifiPort = strings.Contains(port, "Wi-Fi") || strings.Contains(port, "AirPort")
			}
			if d, ok := strings.CutPrefix(line, "Device: "); ok {
				device = d
			}
		}
		if isWifiPort && device != "" {
			return device, nil
		}
	}
	return "", fmt.Errorf("no Wi-Fi interface found: %w", wifi.ErrNotFound)
}

// parseCurrentNetwork parses `networksetup -getairportnetwork`.
func parseCurrentNetwork(output string) (string, bool) {
	m := currentNetworkRe.FindStringSubmatch(output)
	if len(m) < 2 {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

// parsePreferredNetworks parses `networksetup -listpreferredwirelessnetworks`.
func parsePreferredNetworks(output string) []string {
	var ssids []string
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasPrefix(line, "Preferred") {
			ssids = append(ssids, line)
		}
	}
	return ssids
}

// preferredSecurityType returns the networksetup security keyword for p.
func preferredSecurityType(p wifi.Profile) (string, error) {
	ae := p.Security.AuthEncryption
	switch ae.Authentication {
	case "open":
		if ae.Encryption == "WEP" {
			return "WEP", nil
		}
		return "OPEN", nil
	case "shared":
		return "WEP", nil
	case "WPAPSK":
		return "WPA", nil
	case "WPA2PSK":
		return "WPA2", nil
	case "WPA":
		return "WPAE", nil
	case "WPA2":
		return "WPA2E", nil
	}
	return "", fmt.Errorf("authentication %q: %w", ae.Authentication, wifi.ErrNotSupported)
}

// joinFailed reports whether `networksetup -setairportnetwork` printed an
// error. The command exits zero on failure.
func joinFailed(output string) bool {
	out := strings.ToLower(output)
	return strings.Contains(out, "could not") || strings.Contains(out, "failed") || strings.Contains(out, "error")
}
