package wifi

import "fmt"

// Status is the coarse connection status tracked by the Client.
type Status int

const (
	Disconnected Status = iota
	Connected
)

func (s Status) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connected:
		return "connected"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// StatusEvent is published when the cached connection status changes.
type StatusEvent struct {
	Status Status
}

// NotificationSource identifies which part of the wireless stack raised a
// notification.
type NotificationSource uint32

const (
	SourceNone     NotificationSource = 0
	SourceOneX     NotificationSource = 0x04
	SourceACM      NotificationSource = 0x08
	SourceMSM      NotificationSource = 0x10
	SourceSecurity NotificationSource = 0x20
	SourceIHV      NotificationSource = 0x40
)

func (s NotificationSource) String() string {
	switch s {
	case SourceNone:
		return "none"
	case SourceOneX:
		return "onex"
	case SourceACM:
		return "acm"
	case SourceMSM:
		return "msm"
	case SourceSecurity:
		return "security"
	case SourceIHV:
		return "ihv"
	}
	return fmt.Sprintf("source(0x%x)", uint32(s))
}

// ACMCode is a notification code from the auto configuration module.
type ACMCode uint32

const (
	ACMAutoconfEnabled ACMCode = iota + 1
	ACMAutoconfDisabled
	ACMBackgroundScanEnabled
	ACMBackgroundScanDisabled
	ACMBSSTypeChange
	ACMPowerSettingChange
	ACMScanComplete
	ACMScanFail
	ACMConnectionStart
	ACMConnectionComplete
	ACMConnectionAttemptFail
	ACMFilterListChange
	ACMInterfaceArrival
	ACMInterfaceRemoval
	ACMProfileChange
	ACMProfileNameChange
	ACMProfilesExhausted
	ACMNetworkNotAvailable
	ACMNetworkAvailable
	ACMDisconnecting
	ACMDisconnected
	ACMAdhocNetworkStateChange
)

var acmNames = [...]string{
	ACMAutoconfEnabled:         "autoconf_enabled",
	ACMAutoconfDisabled:        "autoconf_disabled",
	ACMBackgroundScanEnabled:   "background_scan_enabled",
	ACMBackgroundScanDisabled:  "background_scan_disabled",
	ACMBSSTypeChange:           "bss_type_change",
	ACMPowerSettingChange:      "power_setting_change",
	ACMScanComplete:            "scan_complete",
	ACMScanFail:                "scan_fail",
	ACMConnectionStart:         "connection_start",
	ACMConnectionComplete:      "connection_complete",
	ACMConnectionAttemptFail:   "connection_attempt_fail",
	ACMFilterListChange:        "filter_list_change",
	ACMInterfaceArrival:        "interface_arrival",
	ACMInterfaceRemoval:        "interface_removal",
	ACMProfileChange:           "profile_change",
	ACMProfileNameChange:       "profile_name_change",
	ACMProfilesExhausted:       "profiles_exhausted",
	ACMNetworkNotAvailable:     "network_not_available",
	ACMNetworkAvailable:        "network_available",
	ACMDisconnecting:           "disconnecting",
	ACMDisconnected:            "disconnected",
	ACMAdhocNetworkStateChange: "adhoc_network_state_change",
}

func (c ACMCode) String() string {
	if c > 0 && int(c) < len(acmNames) {
		return acmNames[c]
	}
	return fmt.Sprintf("acm(%d)", uint32(c))
}

// MSMCode is a notification code from the media specific module.
type MSMCode uint32

const (
	MSMAssociating MSMCode = iota + 1
	MSMAssociated
	MSMAuthenticating
	MSMConnected
	MSMRoamingStart
	MSMRoamingEnd
	MSMRadioStateChange
	MSMSignalQualityChange
	MSMDisassociating
	MSMDisconnected
	MSMPeerJoin
	MSMPeerLeave
	MSMAdapterRemoval
	MSMAdapterOperationModeChange
)

var msmNames = [...]string{
	MSMAssociating:                "associating",
	MSMAssociated:                 "associated",
	MSMAuthenticating:             "authenticating",
	MSMConnected:                  "connected",
	MSMRoamingStart:               "roaming_start",
	MSMRoamingEnd:                 "roaming_end",
	MSMRadioStateChange:           "radio_state_change",
	MSMSignalQualityChange:        "signal_quality_change",
	MSMDisassociating:             "disassociating",
	MSMDisconnected:               "disconnected",
	MSMPeerJoin:                   "peer_join",
	MSMPeerLeave:                  "peer_leave",
	MSMAdapterRemoval:             "adapter_removal",
	MSMAdapterOperationModeChange: "adapter_operation_mode_change",
}

func (c MSMCode) String() string {
	if c > 0 && int(c) < len(msmNames) {
		return msmNames[c]
	}
	return fmt.Sprintf("msm(%d)", uint32(c))
}

// Notification is a native event raised by an adapter.
type Notification struct {
	AdapterID string
	Source    NotificationSource
	Code      uint32
	Data      any
}

// ACMNotification builds an ACM-sourced notification.
func ACMNotification(adapterID string, code ACMCode) Notification {
	return Notification{AdapterID: adapterID, Source: SourceACM, Code: uint32(code)}
}

// MSMNotification builds an MSM-sourced notification.
func MSMNotification(adapterID string, code MSMCode) Notification {
	return Notification{AdapterID: adapterID, Source: SourceMSM, Code: uint32(code)}
}

// Is reports whether n carries the given source and code.
func (n Notification) Is(source NotificationSource, code uint32) bool {
	return n.Source == source && n.Code == code
}

func (n Notification) String() string {
	switch n.Source {
	case SourceACM:
		return "acm:" + ACMCode(n.Code).String()
	case SourceMSM:
		return "msm:" + MSMCode(n.Code).String()
	}
	return fmt.Sprintf("%s:%d", n.Source, n.Code)
}
