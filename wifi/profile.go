package wifi

import (
	"encoding/hex"
	"encoding/xml"
	"fmt"
)

const profileNamespace = "http://www.microsoft.com/networking/WLAN/profile/v1"

// Profile is a stored connection configuration in the WLANProfile XML format.
// Only the subset of the schema needed for personal and open networks is
// modelled; unknown elements are dropped when parsing.
type Profile struct {
	XMLName        xml.Name   `xml:"http://www.microsoft.com/networking/WLAN/profile/v1 WLANProfile"`
	Name           string     `xml:"name"`
	SSIDConfig     SSIDConfig `xml:"SSIDConfig"`
	ConnectionType string     `xml:"connectionType"`
	ConnectionMode string     `xml:"connectionMode"`
	Security       Security   `xml:"MSM>security"`
}

type SSIDConfig struct {
	SSID struct {
		Hex  string `xml:"hex"`
		Name string `xml:"name"`
	} `xml:"SSID"`
	NonBroadcast bool `xml:"nonBroadcast"`
}

type Security struct {
	AuthEncryption struct {
		Authentication string `xml:"authentication"`
		Encryption     string `xml:"encryption"`
		UseOneX        bool   `xml:"useOneX"`
	} `xml:"authEncryption"`
	SharedKey *SharedKey `xml:"sharedKey,omitempty"`
}

type SharedKey struct {
	KeyType     string `xml:"keyType"`
	Protected   bool   `xml:"protected"`
	KeyMaterial string `xml:"keyMaterial"`
}

// BuildProfile renders a profile for network under the given name, storing
// password as its shared key when the network is secured by one.
func BuildProfile(name string, network DiscoveredNetwork, password string) (Profile, error) {
	p := Profile{
		Name:           name,
		ConnectionType: "ESS",
		ConnectionMode: "auto",
	}
	if network.BSSType == BSSTypeIndependent {
		p.ConnectionType = "IBSS"
		p.ConnectionMode = "manual"
	}
	p.SSIDConfig.SSID.Hex = fmt.Sprintf("%X", network.SSID.Raw())
	p.SSIDConfig.SSID.Name = network.SSID.String()

	auth, err := profileAuthentication(network.AuthAlgorithm)
	if err != nil {
		return Profile{}, err
	}
	enc, err := profileEncryption(network.CipherAlgorithm)
	if err != nil {
		return Profile{}, err
	}
	p.Security.AuthEncryption.Authentication = auth
	p.Security.AuthEncryption.Encryption = enc

	switch network.AuthAlgorithm {
	case AuthRSNA, AuthWPA:
		p.Security.AuthEncryption.UseOneX = true
	case AuthOpen:
		if network.CipherAlgorithm.IsWEP() {
			p.Security.SharedKey = &SharedKey{KeyType: "networkKey", KeyMaterial: password}
		}
	case AuthSharedKey:
		p.Security.SharedKey = &SharedKey{KeyType: "networkKey", KeyMaterial: password}
	default:
		p.Security.SharedKey = &SharedKey{KeyType: "passPhrase", KeyMaterial: password}
	}
	return p, nil
}

func profileAuthentication(a AuthAlgorithm) (string, error) {
	switch a {
	case AuthOpen:
		return "open", nil
	case AuthSharedKey:
		return "shared", nil
	case AuthWPA:
		return "WPA", nil
	case AuthWPAPSK:
		return "WPAPSK", nil
	case AuthRSNA:
		return "WPA2", nil
	case AuthRSNAPSK:
		return "WPA2PSK", nil
	}
	return "", fmt.Errorf("no profile authentication for %s: %w", a, ErrNotSupported)
}

func profileEncryption(c CipherAlgorithm) (string, error) {
	switch {
	case c == CipherNone:
		return "none", nil
	case c.IsWEP():
		return "WEP", nil
	case c == CipherTKIP:
		return "TKIP", nil
	case c == CipherCCMP, c == CipherUseGroup:
		return "AES", nil
	}
	return "", fmt.Errorf("no profile encryption for %s: %w", c, ErrNotSupported)
}

// SSIDBytes returns the profile's SSID, preferring the hex form.
func (p Profile) SSIDBytes() []byte {
	if p.SSIDConfig.SSID.Hex != "" {
		if b, err := hex.DecodeString(p.SSIDConfig.SSID.Hex); err == nil {
			return b
		}
	}
	return []byte(p.SSIDConfig.SSID.Name)
}

// Key returns the stored shared key, if any.
func (p Profile) Key() string {
	if p.Security.SharedKey == nil {
		return ""
	}
	return p.Security.SharedKey.KeyMaterial
}

// Marshal renders the profile as an XML document.
func (p Profile) Marshal() (string, error) {
	out, err := xml.MarshalIndent(p, "", "\t")
	if err != nil {
		return "", err
	}
	return xml.Header + string(out), nil
}

// ParseProfile decodes a WLANProfile XML document.
func ParseProfile(doc string) (Profile, error) {
	var p Profile
	if err := xml.Unmarshal([]byte(doc), &p); err != nil {
		return Profile{}, fmt.Errorf("failed to parse profile: %w", err)
	}
	if p.Name == "" {
		return Profile{}, fmt.Errorf("profile has no name: %w", ErrOperationFailed)
	}
	return p, nil
}
