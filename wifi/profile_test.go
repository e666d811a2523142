package wifi

import (
	"errors"
	"strings"
	"testing"
)

func TestBuildProfileRoundTrip(t *testing.T) {
	network := DiscoveredNetwork{
		SSID:            NewSSID("Café"),
		BSSType:         BSSTypeInfrastructure,
		SecurityEnabled: true,
		AuthAlgorithm:   AuthRSNAPSK,
		CipherAlgorithm: CipherCCMP,
	}
	p, err := BuildProfile("Café", network, "correct horse")
	if err != nil {
		t.Fatalf("BuildProfile() failed: %v", err)
	}
	doc, err := p.Marshal()
	if err != nil {
		t.Fatalf("Marshal() failed: %v", err)
	}
	for _, want := range []string{
		`xmlns="http://www.microsoft.com/networking/WLAN/profile/v1"`,
		"<hex>436166C3A9</hex>",
		"<authentication>WPA2PSK</authentication>",
		"<encryption>AES</encryption>",
		"<keyType>passPhrase</keyType>",
		"<connectionType>ESS</connectionType>",
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("profile missing %q:\n%s", want, doc)
		}
	}

	parsed, err := ParseProfile(doc)
	if err != nil {
		t.Fatalf("ParseProfile() failed: %v", err)
	}
	if parsed.Name != "Café" {
		t.Errorf("Name = %q", parsed.Name)
	}
	if string(parsed.SSIDBytes()) != "Café" {
		t.Errorf("SSIDBytes() = %q", parsed.SSIDBytes())
	}
	if parsed.Key() != "correct horse" {
		t.Errorf("Key() = %q", parsed.Key())
	}
}

func TestBuildProfileSecurity(t *testing.T) {
	tests := []struct {
		name    string
		auth    AuthAlgorithm
		cipher  CipherAlgorithm
		keyType string
		oneX    bool
	}{
		{"open", AuthOpen, CipherNone, "", false},
		{"open wep", AuthOpen, CipherWEP, "networkKey", false},
		{"shared wep", AuthSharedKey, CipherWEP104, "networkKey", false},
		{"wpa psk", AuthWPAPSK, CipherTKIP, "passPhrase", false},
		{"enterprise", AuthRSNA, CipherCCMP, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := BuildProfile("net", DiscoveredNetwork{SSID: NewSSID("net"), AuthAlgorithm: tt.auth, CipherAlgorithm: tt.cipher}, "secret")
			if err != nil {
				t.Fatalf("BuildProfile() failed: %v", err)
			}
			var keyType string
			if p.Security.SharedKey != nil {
				keyType = p.Security.SharedKey.KeyType
			}
			if keyType != tt.keyType {
				t.Errorf("keyType = %q, want %q", keyType, tt.keyType)
			}
			if p.Security.AuthEncryption.UseOneX != tt.oneX {
				t.Errorf("useOneX = %t, want %t", p.Security.AuthEncryption.UseOneX, tt.oneX)
			}
		})
	}
}

func TestBuildProfileUnsupported(t *testing.T) {
	_, err := BuildProfile("net", DiscoveredNetwork{AuthAlgorithm: AuthIHVStart}, "")
	if !errors.Is(err, ErrNotSupported) {
		t.Errorf("expected ErrNotSupported, got %v", err)
	}
}

func TestParseProfileErrors(t *testing.T) {
	if _, err := ParseProfile("not xml"); err == nil {
		t.Error("expected an error for malformed xml")
	}
	doc := `<WLANProfile xmlns="http://www.microsoft.com/networking/WLAN/profile/v1"></WLANProfile>`
	if _, err := ParseProfile(doc); !errors.Is(err, ErrOperationFailed) {
		t.Errorf("expected ErrOperationFailed for a nameless profile, got %v", err)
	}
}
