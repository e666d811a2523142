package wifi

import (
	"strings"
	"testing"
)

func TestIsValidPassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		cipher   CipherAlgorithm
		want     bool
	}{
		{"open accepts empty", "", CipherNone, true},
		{"open accepts anything", "whatever", CipherNone, true},

		{"wep 10 hex", "0123456789", CipherWEP40, true},
		{"wep 26 hex", "0123456789abcdefABCDEF0123", CipherWEP104, true},
		{"wep 58 hex", strings.Repeat("a1", 29), CipherWEP, true},
		{"wep 10 non-hex", "012345678g", CipherWEP40, false},
		{"wep 5 ascii", "abcde", CipherWEP40, true},
		{"wep 13 ascii", "abcdefghijklm", CipherWEP104, true},
		{"wep 29 ascii", strings.Repeat("x", 29), CipherWEP, true},
		{"wep wrong length", "abcdef", CipherWEP, false},
		{"wep empty", "", CipherWEP, false},
		{"wep 40 hex is not a length", strings.Repeat("a", 40), CipherWEP, false},

		{"wpa too short", "1234567", CipherTKIP, false},
		{"wpa min", "12345678", CipherTKIP, true},
		{"wpa2 max", strings.Repeat("p", 63), CipherCCMP, true},
		{"wpa2 too long", strings.Repeat("p", 64), CipherCCMP, false},
		{"wpa2 non-ascii", "pässwörd1", CipherCCMP, false},
		{"group cipher", "password", CipherUseGroup, true},

		{"ihv accepts anything", "", CipherIHVStart, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidPassword(tt.password, tt.cipher); got != tt.want {
				t.Errorf("IsValidPassword(%q, %s) = %t, want %t", tt.password, tt.cipher, got, tt.want)
			}
		})
	}
}
