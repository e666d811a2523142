package main

import (
	"fmt"
	"strings"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/shazow/simplewifi/wifi"
)

// The T: values of a WIFI: QR payload.
const (
	qrSecurityOpen = "nopass"
	qrSecurityWEP  = "WEP"
	qrSecurityWPA  = "WPA"
)

// qrSecurity returns the QR authentication type for n. Enterprise networks
// cannot be shared this way.
func qrSecurity(n wifi.DiscoveredNetwork) (string, error) {
	switch {
	case n.AuthAlgorithm == wifi.AuthRSNA || n.AuthAlgorithm == wifi.AuthWPA:
		return "", fmt.Errorf("%s: %w", wifi.FormatSecurityMethod(n.AuthAlgorithm, n.CipherAlgorithm), wifi.ErrNotSupported)
	case n.CipherAlgorithm.IsWEP():
		return qrSecurityWEP, nil
	case !n.SecurityEnabled:
		return qrSecurityOpen, nil
	}
	return qrSecurityWPA, nil
}

// EscapeWifiString handles the special character escaping for SSID and Password.
func EscapeWifiString(s string) string {
	// A replacer is more efficient than calling strings.Replace multiple times.
	r := strings.NewReplacer(
		`\`, `\\`,
		`;`, `\;`,
		`,`, `\,`,
		`:`, `\:`,
		`"`, `\"`,
	)
	return r.Replace(s)
}

// wifiQRString builds the WIFI: payload understood by phone cameras.
func wifiQRString(ssid, password, security string, isHidden bool) string {
	var b strings.Builder

	// Start with the required prefix and SSID
	b.WriteString("WIFI:S:")
	b.WriteString(EscapeWifiString(ssid))
	b.WriteString(";")

	switch security {
	case qrSecurityWPA, qrSecurityWEP:
		b.WriteString("T:" + security + ";P:")
		b.WriteString(EscapeWifiString(password))
		b.WriteString(";")
	case qrSecurityOpen:
		b.WriteString("T:nopass;")
	default:
		// Don't set T if security is unknown, most readers will assume WPA.
	}

	if isHidden {
		b.WriteString("H:true;")
	}

	b.WriteString(";")
	return b.String()
}

// GenerateWifiQRCode renders the network's WIFI: payload as a terminal QR code.
func GenerateWifiQRCode(ssid, password, security string, isHidden bool) (string, error) {
	q, err := qrcode.New(wifiQRString(ssid, password, security, isHidden), qrcode.Medium)
	if err != nil {
		return "", err
	}
	return q.ToSmallString(false), nil
}
