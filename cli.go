package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/shazow/simplewifi/internal/config"
	"github.com/shazow/simplewifi/wifi"
)

// listEntry is the JSON form of an access point in `list -json`.
type listEntry struct {
	SSID       string `json:"ssid"`
	Adapter    string `json:"adapter"`
	Signal     uint32 `json:"signal"`
	Security   string `json:"security"`
	Secure     bool   `json:"secure"`
	Connected  bool   `json:"connected"`
	HasProfile bool   `json:"has_profile"`
	BSSIDs     uint32 `json:"bssids"`
}

func formatAccessPoint(ap *wifi.AccessPoint) string {
	var parts []string
	if ap.IsSecure() {
		parts = append(parts, "secure")
	}
	if ap.HasProfile() {
		parts = append(parts, "known")
	}
	if ap.IsConnected() {
		parts = append(parts, "active")
	}
	return strings.Join(parts, ", ")
}

func runList(w io.Writer, client *wifi.Client, asJSON bool, sorted bool, colors config.Colors) error {
	if !client.Available() {
		return fmt.Errorf("failed to list networks: %w", wifi.ErrNotAvailable)
	}
	aps := client.GetAccessPoints(true)
	if sorted {
		wifi.SortAccessPoints(aps)
	}

	if asJSON {
		entries := make([]listEntry, 0, len(aps))
		for _, ap := range aps {
			entries = append(entries, listEntry{
				SSID:       ap.Name(),
				Adapter:    ap.Adapter().Name(),
				Signal:     ap.SignalStrength(),
				Security:   ap.SecurityMethod(),
				Secure:     ap.IsSecure(),
				Connected:  ap.IsConnected(),
				HasProfile: ap.HasProfile(),
				BSSIDs:     ap.Network().BSSIDCount,
			})
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	for _, ap := range aps {
		line := fmt.Sprintf("%s\t%s\t%s", ap.Name(), formatSignal(ap.SignalStrength(), colors), ap.SecurityMethod())
		if flags := formatAccessPoint(ap); flags != "" {
			line += "\t" + flags
		}
		fmt.Fprintln(w, line)
	}
	return nil
}

// findAccessPoint returns the access point named ssid, preferring the
// connected observation, then one with a stored profile.
func findAccessPoint(client *wifi.Client, ssid string) (*wifi.AccessPoint, error) {
	var found *wifi.AccessPoint
	for _, ap := range client.GetAccessPoints(true) {
		if ap.Name() != ssid {
			continue
		}
		switch {
		case ap.IsConnected():
			return ap, nil
		case found == nil, !found.HasProfile() && ap.HasProfile():
			found = ap
		}
	}
	if found == nil {
		return nil, fmt.Errorf("network not found: %s: %w", ssid, wifi.ErrNotFound)
	}
	return found, nil
}

// storedPassword returns the key of the access point's stored profile, or
// "" if it has none.
func storedPassword(ap *wifi.AccessPoint) string {
	doc := ap.ProfileXML()
	if doc == "" {
		return ""
	}
	p, err := wifi.ParseProfile(doc)
	if err != nil {
		slog.Debug("failed to parse profile", "ssid", ap.Name(), "error", err)
		return ""
	}
	return p.Key()
}

func runShow(w io.Writer, client *wifi.Client, ssid string) error {
	ap, err := findAccessPoint(client, ssid)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "SSID: %s\n", ap.Name())
	fmt.Fprintf(w, "Signal: %d%%\n", ap.SignalStrength())
	fmt.Fprintf(w, "Security: %s\n", ap.SecurityMethod())
	fmt.Fprintf(w, "Secure: %t\n", ap.IsSecure())
	fmt.Fprintf(w, "Known: %t\n", ap.HasProfile())
	fmt.Fprintf(w, "Active: %t\n", ap.IsConnected())
	if ap.HasProfile() {
		fmt.Fprintf(w, "Passphrase: %s\n", storedPassword(ap))
	}
	fmt.Fprint(w, ap.String())
	return nil
}

func runConnect(w io.Writer, client *wifi.Client, ssid, password string, overwrite bool) error {
	ap, err := findAccessPoint(client, ssid)
	if err != nil {
		return err
	}

	req := wifi.NewAuthRequest(ap, password)
	if (!ap.HasProfile() || overwrite) && !req.IsPasswordValid() {
		return fmt.Errorf("invalid password for %s (%s)", ssid, ap.SecurityMethod())
	}

	ok, err := ap.Connect(req, overwrite)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("failed to connect to %s", ssid)
	}
	fmt.Fprintf(w, "Connected to %s\n", ssid)
	return nil
}

func runDisconnect(w io.Writer, client *wifi.Client) error {
	if err := client.Disconnect(); err != nil {
		return fmt.Errorf("failed to disconnect: %w", err)
	}
	fmt.Fprintln(w, "Disconnected")
	return nil
}

func runStatus(w io.Writer, client *wifi.Client) error {
	fmt.Fprintln(w, client.ConnectionStatus())
	for _, a := range client.Interfaces() {
		assoc, err := wifi.QueryConnection(a)
		if err != nil {
			fmt.Fprintf(w, "%s\terror: %v\n", a.Name(), err)
			continue
		}
		if !assoc.Connected {
			fmt.Fprintf(w, "%s\t%s\n", a.Name(), wifi.StateDisconnected)
			continue
		}
		info := assoc.Info
		fmt.Fprintf(w, "%s\t%s\t%s\t%d%%\n", a.Name(), info.State, info.SSID, info.SignalQuality)
	}
	return nil
}

func runForget(w io.Writer, client *wifi.Client, ssid string) error {
	ap, err := findAccessPoint(client, ssid)
	if err != nil {
		return err
	}
	if !ap.HasProfile() {
		return fmt.Errorf("no stored profile for %s: %w", ssid, wifi.ErrNotFound)
	}
	ap.DeleteProfile()
	if ap.HasProfile() {
		return fmt.Errorf("failed to forget %s", ssid)
	}
	fmt.Fprintf(w, "Forgot %s\n", ssid)
	return nil
}

func runProfile(w io.Writer, client *wifi.Client, ssid string) error {
	ap, err := findAccessPoint(client, ssid)
	if err != nil {
		return err
	}
	doc := ap.ProfileXML()
	if doc == "" {
		return fmt.Errorf("no stored profile for %s: %w", ssid, wifi.ErrNotFound)
	}
	fmt.Fprintln(w, doc)
	return nil
}

func runQR(w io.Writer, client *wifi.Client, ssid, password string) error {
	ap, err := findAccessPoint(client, ssid)
	if err != nil {
		return err
	}
	security, err := qrSecurity(ap.Network())
	if err != nil {
		return err
	}
	if password == "" && security != qrSecurityOpen {
		password = storedPassword(ap)
	}
	hidden := false
	if doc := ap.ProfileXML(); doc != "" {
		if p, err := wifi.ParseProfile(doc); err == nil {
			hidden = p.SSIDConfig.NonBroadcast
		}
	}

	code, err := GenerateWifiQRCode(ap.Name(), password, security, hidden)
	if err != nil {
		return err
	}
	fmt.Fprint(w, code)
	return nil
}

// runWatch prints notifications, status changes and warnings until ctx is
// done.
func runWatch(ctx context.Context, w io.Writer, client *wifi.Client, logs <-chan slog.Record) error {
	if !client.Available() {
		return fmt.Errorf("nothing to watch: %w", wifi.ErrNotAvailable)
	}

	statuses := make(chan wifi.StatusEvent, 8)
	detach := client.OnStatusChange(func(e wifi.StatusEvent) {
		select {
		case statuses <- e:
		default:
		}
	})
	defer detach()

	notifications := client.Notifications(ctx)
	for {
		select {
		case n, ok := <-notifications:
			if !ok {
				return nil
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", time.Now().Format(time.TimeOnly), n.AdapterID, n)
		case e := <-statuses:
			fmt.Fprintf(w, "%s\tstatus\t%s\n", time.Now().Format(time.TimeOnly), e.Status)
		case r := <-logs:
			fmt.Fprintf(w, "%s\t%s\t%s\n", r.Time.Format(time.TimeOnly), r.Level, r.Message)
		case <-ctx.Done():
			return nil
		}
	}
}
