package wifi

import (
	"bytes"
	"fmt"
	"unicode/utf8"
)

// MaxSSIDLength is the longest SSID allowed by 802.11.
const MaxSSIDLength = 32

// SSID is a length-prefixed network name as reported by the wireless stack.
// Bytes may be longer than Length (fixed-size buffers); only the first Length
// bytes are meaningful.
type SSID struct {
	Length uint32
	Bytes  []byte
}

// NewSSID builds an SSID from a display name. Names longer than
// MaxSSIDLength bytes are cut at the last whole character that fits.
func NewSSID(name string) SSID {
	if len(name) > MaxSSIDLength {
		cut := MaxSSIDLength
		for cut > MaxSSIDLength-utf8.UTFMax+1 && !utf8.RuneStart(name[cut]) {
			cut--
		}
		name = name[:cut]
	}
	b := []byte(name)
	return SSID{Length: uint32(len(b)), Bytes: b}
}

// Raw returns the declared-length slice of the SSID bytes.
func (s SSID) Raw() []byte {
	n := int(s.Length)
	if n > len(s.Bytes) {
		n = len(s.Bytes)
	}
	return s.Bytes[:n]
}

// String decodes the SSID as UTF-8, or returns "" if the bytes are malformed.
func (s SSID) String() string {
	raw := s.Raw()
	if !utf8.Valid(raw) {
		return ""
	}
	return string(raw)
}

// Equal reports whether both SSIDs carry the same declared bytes.
func (s SSID) Equal(other SSID) bool {
	return bytes.Equal(s.Raw(), other.Raw())
}

// BSSType is the basic service set type of a network.
type BSSType uint32

const (
	BSSTypeInfrastructure BSSType = 1
	BSSTypeIndependent    BSSType = 2
	BSSTypeAny            BSSType = 3
)

func (t BSSType) String() string {
	switch t {
	case BSSTypeInfrastructure:
		return "Infrastructure"
	case BSSTypeIndependent:
		return "Independent"
	case BSSTypeAny:
		return "Any"
	}
	return fmt.Sprintf("BSSType(%d)", uint32(t))
}

// InterfaceState is the connection state of an adapter.
type InterfaceState uint32

const (
	StateNotReady InterfaceState = iota
	StateConnected
	StateAdHocNetworkFormed
	StateDisconnecting
	StateDisconnected
	StateAssociating
	StateDiscovering
	StateAuthenticating
)

var interfaceStateNames = [...]string{
	StateNotReady:           "NotReady",
	StateConnected:          "Connected",
	StateAdHocNetworkFormed: "AdHocNetworkFormed",
	StateDisconnecting:      "Disconnecting",
	StateDisconnected:       "Disconnected",
	StateAssociating:        "Associating",
	StateDiscovering:        "Discovering",
	StateAuthenticating:     "Authenticating",
}

func (s InterfaceState) String() string {
	if int(s) < len(interfaceStateNames) {
		return interfaceStateNames[s]
	}
	return fmt.Sprintf("InterfaceState(%d)", uint32(s))
}

// ConnectionMode selects how a connect request locates its configuration.
type ConnectionMode uint32

const (
	ModeProfile ConnectionMode = iota
	ModeTemporaryProfile
	ModeDiscoverySecure
	ModeDiscoveryUnsecure
	ModeAuto
)

func (m ConnectionMode) String() string {
	switch m {
	case ModeProfile:
		return "Profile"
	case ModeTemporaryProfile:
		return "TemporaryProfile"
	case ModeDiscoverySecure:
		return "DiscoverySecure"
	case ModeDiscoveryUnsecure:
		return "DiscoveryUnsecure"
	case ModeAuto:
		return "Auto"
	}
	return fmt.Sprintf("ConnectionMode(%d)", uint32(m))
}

// ReasonCode explains why a network is not connectable.
type ReasonCode uint32

const (
	ReasonSuccess              ReasonCode = 0
	ReasonUnknown              ReasonCode = 0x10001
	ReasonNetworkNotCompatible ReasonCode = 0x20001
	ReasonProfileNotCompatible ReasonCode = 0x20002
	ReasonNoAutoConnection     ReasonCode = 0x20003
	ReasonNotVisible           ReasonCode = 0x20004
	ReasonGPDenied             ReasonCode = 0x20005
	ReasonUserDenied           ReasonCode = 0x20006
	ReasonBSSTypeNotAllowed    ReasonCode = 0x20007
	ReasonInFailedList         ReasonCode = 0x20008
	ReasonInBlockedList        ReasonCode = 0x20009
	ReasonSSIDListTooLong      ReasonCode = 0x2000a
)

var reasonNames = map[ReasonCode]string{
	ReasonSuccess:              "Success",
	ReasonUnknown:              "Unknown",
	ReasonNetworkNotCompatible: "NetworkNotCompatible",
	ReasonProfileNotCompatible: "ProfileNotCompatible",
	ReasonNoAutoConnection:     "NoAutoConnection",
	ReasonNotVisible:           "NotVisible",
	ReasonGPDenied:             "GPDenied",
	ReasonUserDenied:           "UserDenied",
	ReasonBSSTypeNotAllowed:    "BSSTypeNotAllowed",
	ReasonInFailedList:         "InFailedList",
	ReasonInBlockedList:        "InBlockedList",
	ReasonSSIDListTooLong:      "SSIDListTooLong",
}

func (r ReasonCode) String() string {
	if name, ok := reasonNames[r]; ok {
		return name
	}
	return fmt.Sprintf("ReasonCode(0x%x)", uint32(r))
}

// NetworkFlags are per-observation flags reported alongside a network.
type NetworkFlags uint32

const (
	FlagConnected  NetworkFlags = 0x1
	FlagHasProfile NetworkFlags = 0x2
)

// DiscoveredNetwork is one network observation from one adapter's scan.
type DiscoveredNetwork struct {
	ProfileName          string
	SSID                 SSID
	BSSType              BSSType
	BSSIDCount           uint32
	Connectable          bool
	NotConnectableReason ReasonCode
	SignalQuality        uint32 // 0-100
	SecurityEnabled      bool
	AuthAlgorithm        AuthAlgorithm
	CipherAlgorithm      CipherAlgorithm
	Flags                NetworkFlags
}

// NetworkIdentity is the structural key of a network observation. It is only
// meant for deduplicating observations within one scan result; distinct
// networks sharing the same SSID and security signature compare equal.
type NetworkIdentity struct {
	SSID            string
	BSSType         BSSType
	SecurityEnabled bool
	AuthAlgorithm   AuthAlgorithm
	CipherAlgorithm CipherAlgorithm
}

// Identity returns the structural deduplication key for n.
func (n DiscoveredNetwork) Identity() NetworkIdentity {
	return NetworkIdentity{
		SSID:            string(n.SSID.Raw()),
		BSSType:         n.BSSType,
		SecurityEnabled: n.SecurityEnabled,
		AuthAlgorithm:   n.AuthAlgorithm,
		CipherAlgorithm: n.CipherAlgorithm,
	}
}

// ConnectionInfo describes an adapter's current association.
type ConnectionInfo struct {
	State         InterfaceState
	Mode          ConnectionMode
	ProfileName   string
	SSID          SSID
	BSSID         string
	BSSType       BSSType
	SignalQuality uint32
}

// ProfileInfo is an entry in an adapter's stored profile list.
type ProfileInfo struct {
	Name  string
	Flags uint32
}
