// SPDX-License-Identifier: GPL-3.0-or-later

package merger

import "github.com/bassosimone/pathspider/internal/record"

// CombineConnectivity is the generic helper every plugin's combine
// function reuses instead of re-deriving a connectivity summary from
// raw connection states.
//
//   - works: both configurations connected.
//   - broken: the baseline connected but the feature configuration did
//     not — the feature itself (or a device on the path) broke the
//     connection.
//   - transient: the baseline failed but the feature configuration
//     connected — an inconsistent result, usually a flaky path rather
//     than a feature interaction.
//   - offline: neither configuration connected.
func CombineConnectivity(baselineOK, testOK bool) string {
	switch {
	case baselineOK && testOK:
		return "connectivity.works"
	case baselineOK && !testOK:
		return "connectivity.broken"
	case !baselineOK && testOK:
		return "connectivity.transient"
	default:
		return "connectivity.offline"
	}
}

// StateOK reports whether a slot's active record connected, the input
// [CombineConnectivity] expects.
func StateOK(s Slot) bool {
	return s.Active.State == record.StateOK
}
