//go:build linux

package iwd

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/godbus/dbus/v5"
	"gopkg.in/ini.v1"

	"github.com/shazow/simplewifi/wifi"
)

func init() {
	// iwd expects "Key=value" without padding around the delimiter.
	ini.PrettyFormat = false
}

// iniOptions match how iwd reads network files: values run to the end of
// the line, so passphrases may contain '#' and ';'.
var iniOptions = ini.LoadOptions{
	IgnoreInlineComment: true,
	KeyValueDelimiters:  "=",
}

type knownNetwork struct {
	path        dbus.ObjectPath
	name        string
	typ         string
	hidden      bool
	autoConnect bool
}

// configValue returns a key from a parsed network file, or "" when cfg is
// nil or the key is missing.
func configValue(cfg *ini.File, section, key string) string {
	if cfg == nil {
		return ""
	}
	return cfg.Section(section).Key(key).String()
}

// configFileName returns the file iwd reads for a network. Names made of
// alphanumerics, spaces, underscores and dashes are used verbatim; anything
// else is hex encoded behind a "=".
func configFileName(name, typ string) string {
	base := name
	for _, r := range name {
		ok := r == ' ' || r == '_' || r == '-' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if !ok {
			base = "=" + hex.EncodeToString([]byte(name))
			break
		}
	}
	return base + "." + typ
}

func parseNetworkConfig(data string) (*ini.File, error) {
	return ini.LoadSources(iniOptions, []byte(data))
}

func readNetworkConfig(dir, name, typ string) (*ini.File, error) {
	return ini.LoadSources(iniOptions, filepath.Join(dir, configFileName(name, typ)))
}

// profile renders a known network as a WLANProfile. cfg may be nil when the
// network file could not be read.
func (kn knownNetwork) profile(cfg *ini.File) (wifi.Profile, error) {
	p := wifi.Profile{
		Name:           kn.name,
		ConnectionType: "ESS",
		ConnectionMode: "auto",
	}
	if !kn.autoConnect {
		p.ConnectionMode = "manual"
	}
	p.SSIDConfig.SSID.Hex = fmt.Sprintf("%X", []byte(kn.name))
	p.SSIDConfig.SSID.Name = kn.name
	p.SSIDConfig.NonBroadcast = kn.hidden

	ae := &p.Security.AuthEncryption
	switch kn.typ {
	case "open":
		ae.Authentication = "open"
		ae.Encryption = "none"
	case "psk":
		ae.Authentication = "WPA2PSK"
		ae.Encryption = "AES"
		p.Security.SharedKey = &wifi.SharedKey{KeyType: "passPhrase", KeyMaterial: configValue(cfg, "Security", "Passphrase")}
	case "8021x":
		ae.Authentication = "WPA2"
		ae.Encryption = "AES"
		ae.UseOneX = true
	default:
		return wifi.Profile{}, fmt.Errorf("network type %q: %w", kn.typ, wifi.ErrNotSupported)
	}
	return p, nil
}

// renderNetworkConfig returns the iwd network type and file contents for p.
func renderNetworkConfig(p wifi.Profile) (string, string, error) {
	cfg := ini.Empty(iniOptions)
	var typ string
	ae := p.Security.AuthEncryption
	switch {
	case ae.Authentication == "open" && ae.Encryption == "none":
		typ = "open"
	case ae.Authentication == "WPAPSK" || ae.Authentication == "WPA2PSK":
		typ = "psk"
		cfg.Section("Security").Key("Passphrase").SetValue(p.Key())
	default:
		return "", "", fmt.Errorf("authentication %q with %q: %w", ae.Authentication, ae.Encryption, wifi.ErrNotSupported)
	}

	if p.ConnectionMode == "manual" {
		cfg.Section("Settings").Key("AutoConnect").SetValue("false")
	}
	if p.SSIDConfig.NonBroadcast {
		cfg.Section("Settings").Key("Hidden").SetValue("true")
	}

	var b strings.Builder
	if _, err := cfg.WriteTo(&b); err != nil {
		return "", "", err
	}
	return typ, b.String(), nil
}

// writeNetworkConfig provisions p as an iwd network file. iwd watches the
// directory and registers the known network on its own.
func writeNetworkConfig(dir string, p wifi.Profile, overwrite bool) error {
	name := string(p.SSIDBytes())
	typ, contents, err := renderNetworkConfig(p)
	if err != nil {
		return err
	}
	path := filepath.Join(dir, configFileName(name, typ))

	_, err = os.Stat(path)
	switch {
	case err == nil && !overwrite:
		return fmt.Errorf("network %s already exists: %w", name, wifi.ErrOperationFailed)
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		return err
	}
	return os.WriteFile(path, []byte(contents), 0o600)
}
