package wifi

import (
	"fmt"
	"strconv"
)

// AuthAlgorithm is an 802.11 authentication algorithm code.
type AuthAlgorithm uint32

const (
	AuthOpen      AuthAlgorithm = 1
	AuthSharedKey AuthAlgorithm = 2
	AuthWPA       AuthAlgorithm = 3
	AuthWPAPSK    AuthAlgorithm = 4
	AuthWPANone   AuthAlgorithm = 5
	AuthRSNA      AuthAlgorithm = 6
	AuthRSNAPSK   AuthAlgorithm = 7

	AuthIHVStart AuthAlgorithm = 0x80000000
	AuthIHVEnd   AuthAlgorithm = 0xffffffff
)

// IsIHV reports whether a is in the vendor extension range.
func (a AuthAlgorithm) IsIHV() bool {
	return a >= AuthIHVStart && a <= AuthIHVEnd
}

// Label returns the human label used in SecurityMethod.
func (a AuthAlgorithm) Label() string {
	switch a {
	case AuthOpen:
		return "Open"
	case AuthSharedKey:
		return "WEP"
	case AuthWPA:
		return "WPA"
	case AuthWPAPSK:
		return "WPA-Personal"
	case AuthWPANone:
		return "WPA-None"
	case AuthRSNA:
		return "WPA2-Enterprise"
	case AuthRSNAPSK:
		return "WPA2-Personal"
	}
	if a.IsIHV() {
		return "IHV" + strconv.FormatUint(uint64(a), 10)
	}
	return "Unknown"
}

func (a AuthAlgorithm) String() string {
	switch a {
	case AuthOpen:
		return "IEEE80211_Open"
	case AuthSharedKey:
		return "IEEE80211_SharedKey"
	case AuthWPA:
		return "WPA"
	case AuthWPAPSK:
		return "WPA_PSK"
	case AuthWPANone:
		return "WPA_None"
	case AuthRSNA:
		return "RSNA"
	case AuthRSNAPSK:
		return "RSNA_PSK"
	}
	return fmt.Sprintf("AuthAlgorithm(%d)", uint32(a))
}

// CipherAlgorithm is an 802.11 cipher algorithm code.
type CipherAlgorithm uint32

const (
	CipherNone     CipherAlgorithm = 0x00
	CipherWEP40    CipherAlgorithm = 0x01
	CipherTKIP     CipherAlgorithm = 0x02
	CipherCCMP     CipherAlgorithm = 0x04
	CipherWEP104   CipherAlgorithm = 0x05
	CipherUseGroup CipherAlgorithm = 0x100
	CipherWEP      CipherAlgorithm = 0x101

	CipherIHVStart CipherAlgorithm = 0x80000000
	CipherIHVEnd   CipherAlgorithm = 0xffffffff
)

// IsIHV reports whether c is in the vendor extension range.
func (c CipherAlgorithm) IsIHV() bool {
	return c >= CipherIHVStart && c <= CipherIHVEnd
}

// IsWEP reports whether c is one of the WEP ciphers.
func (c CipherAlgorithm) IsWEP() bool {
	return c == CipherWEP || c == CipherWEP40 || c == CipherWEP104
}

// Label returns the human label used in SecurityMethod.
func (c CipherAlgorithm) Label() string {
	switch c {
	case CipherNone:
		return "None"
	case CipherWEP40:
		return "WEP40"
	case CipherTKIP:
		return "TKIP"
	case CipherCCMP:
		return "AES"
	case CipherWEP104:
		return "WEP104"
	case CipherUseGroup:
		return "WPA-Group"
	case CipherWEP:
		return "WEP"
	}
	if c.IsIHV() {
		return "IHV" + strconv.FormatUint(uint64(c), 10)
	}
	return "Unknown"
}

func (c CipherAlgorithm) String() string {
	switch c {
	case CipherNone:
		return "None"
	case CipherWEP40:
		return "WEP40"
	case CipherTKIP:
		return "TKIP"
	case CipherCCMP:
		return "CCMP"
	case CipherWEP104:
		return "WEP104"
	case CipherUseGroup:
		return "RSN_UseGroup"
	case CipherWEP:
		return "WEP"
	}
	return fmt.Sprintf("CipherAlgorithm(%d)", uint32(c))
}

// FormatSecurityMethod renders an auth/cipher pair as "<auth> (<cipher>)".
func FormatSecurityMethod(auth AuthAlgorithm, cipher CipherAlgorithm) string {
	return fmt.Sprintf("%s (%s)", auth.Label(), cipher.Label())
}
