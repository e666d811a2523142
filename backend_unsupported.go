//go:build !linux && !darwin && !mock

package main

import (
	"fmt"
	"log/slog"
	"runtime"

	"github.com/shazow/simplewifi/wifi"
)

// GetProvider returns an error for unsupported operating systems.
func GetProvider(logger *slog.Logger, name string) (wifi.Provider, error) {
	return nil, fmt.Errorf("%s: %w", runtime.GOOS, wifi.ErrNotSupported)
}
