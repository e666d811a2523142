package wifi

import "sort"

// SortAccessPoints sorts access points in place for display.
// The sorting order is:
// 1. Connected access points first.
// 2. Stronger signal first.
// 3. Fallback to name alphabetically.
func SortAccessPoints(accessPoints []*AccessPoint) {
	// IsConnected queries the adapter, so resolve it once per entry.
	connected := make(map[*AccessPoint]bool, len(accessPoints))
	for _, ap := range accessPoints {
		connected[ap] = ap.IsConnected()
	}

	sort.SliceStable(accessPoints, func(i, j int) bool {
		a := accessPoints[i]
		b := accessPoints[j]

		if connected[a] != connected[b] {
			return connected[a]
		}
		if a.SignalStrength() != b.SignalStrength() {
			return a.SignalStrength() > b.SignalStrength()
		}
		return a.Name() < b.Name()
	})
}
