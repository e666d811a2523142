//go:build darwin && !mock

package main

import (
	"fmt"
	"log/slog"

	"github.com/shazow/simplewifi/wifi"
	"github.com/shazow/simplewifi/wifi/darwin"
)

func GetProvider(logger *slog.Logger, name string) (wifi.Provider, error) {
	switch name {
	case "auto", "", "darwin":
		return darwin.New(logger), nil
	}
	return nil, fmt.Errorf("backend %q is not available on darwin: %w", name, wifi.ErrNotSupported)
}
