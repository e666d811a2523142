package wifi_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shazow/simplewifi/wifi"
	"github.com/shazow/simplewifi/wifi/mock"
)

func TestSortAccessPoints(t *testing.T) {
	tests := []struct {
		name      string
		networks  []wifi.DiscoveredNetwork
		connected string
		expected  []string
	}{
		{
			name: "Sort by connected",
			networks: []wifi.DiscoveredNetwork{
				mock.Network("Idle", 90, wifi.AuthRSNAPSK, wifi.CipherCCMP),
				mock.Network("Active", 10, wifi.AuthRSNAPSK, wifi.CipherCCMP),
			},
			connected: "Active",
			expected:  []string{"Active", "Idle"},
		},
		{
			name: "Sort by strength",
			networks: []wifi.DiscoveredNetwork{
				mock.Network("Weak", 10, wifi.AuthOpen, wifi.CipherNone),
				mock.Network("Strong", 90, wifi.AuthOpen, wifi.CipherNone),
			},
			expected: []string{"Strong", "Weak"},
		},
		{
			name: "Sort by name",
			networks: []wifi.DiscoveredNetwork{
				mock.Network("Bravo", 50, wifi.AuthOpen, wifi.CipherNone),
				mock.Network("Alpha", 50, wifi.AuthOpen, wifi.CipherNone),
			},
			expected: []string{"Alpha", "Bravo"},
		},
		{
			name: "Complex sort",
			networks: []wifi.DiscoveredNetwork{
				mock.Network("C", 40, wifi.AuthOpen, wifi.CipherNone),
				mock.Network("B", 80, wifi.AuthOpen, wifi.CipherNone),
				mock.Network("D", 20, wifi.AuthOpen, wifi.CipherNone),
				mock.Network("A", 80, wifi.AuthOpen, wifi.CipherNone),
			},
			connected: "D",
			expected:  []string{"D", "A", "B", "C"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter := mock.NewAdapter("wlan0")
			if tt.connected != "" {
				adapter.SetCurrentConnection(&wifi.ConnectionInfo{
					State:       wifi.StateConnected,
					ProfileName: tt.connected,
					SSID:        wifi.NewSSID(tt.connected),
				})
			}
			var aps []*wifi.AccessPoint
			for _, n := range tt.networks {
				aps = append(aps, wifi.NewAccessPoint(adapter, n))
			}

			wifi.SortAccessPoints(aps)
			assert.Equal(t, tt.expected, names(aps))
		})
	}
}
