//go:build linux && !mock

package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/shazow/simplewifi/wifi"
	"github.com/shazow/simplewifi/wifi/iwd"
	"github.com/shazow/simplewifi/wifi/networkmanager"
	"github.com/shazow/simplewifi/wifi/nl80211"
)

// GetProvider returns the named provider. "auto" tries NetworkManager, then
// iwd, then the read-only nl80211 provider, taking the first one that can
// list adapters.
func GetProvider(logger *slog.Logger, name string) (wifi.Provider, error) {
	switch name {
	case "networkmanager":
		return networkmanager.New(logger)
	case "iwd":
		return iwd.New(logger)
	case "nl80211":
		return nl80211.New(logger)
	case "auto", "":
	default:
		return nil, fmt.Errorf("backend %q is not available on linux: %w", name, wifi.ErrNotSupported)
	}

	candidates := []struct {
		name string
		open func(*slog.Logger) (wifi.Provider, error)
	}{
		{"networkmanager", func(l *slog.Logger) (wifi.Provider, error) { return networkmanager.New(l) }},
		{"iwd", func(l *slog.Logger) (wifi.Provider, error) { return iwd.New(l) }},
		{"nl80211", func(l *slog.Logger) (wifi.Provider, error) { return nl80211.New(l) }},
	}
	var lastErr error
	for _, c := range candidates {
		p, err := c.open(logger)
		if err != nil {
			logger.Debug("backend unavailable, falling back", "backend", c.name, "error", err)
			lastErr = err
			continue
		}
		if _, err := p.Adapters(); err != nil {
			logger.Debug("backend has no adapters, falling back", "backend", c.name, "error", err)
			if closer, ok := p.(io.Closer); ok {
				closer.Close()
			}
			lastErr = err
			continue
		}
		logger.Debug("selected backend", "backend", c.name)
		return p, nil
	}
	return nil, fmt.Errorf("no usable wifi backend: %w", lastErr)
}
