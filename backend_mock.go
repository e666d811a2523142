//go:build mock

package main

import (
	"log/slog"

	"github.com/shazow/simplewifi/wifi"
	"github.com/shazow/simplewifi/wifi/mock"
)

func GetProvider(logger *slog.Logger, name string) (wifi.Provider, error) {
	return mock.New()
}
