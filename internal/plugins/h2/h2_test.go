// SPDX-License-Identifier: GPL-3.0-or-later

package h2

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bassosimone/pathspider/internal/merger"
	"github.com/bassosimone/pathspider/internal/record"
)

// Baseline succeeds, H2-forcing request succeeds but the server reports
// HTTP/1.1: the upgrade failed even though the path works.
func TestCombineUpgradeFailed(t *testing.T) {
	slots := make([]merger.Slot, 2)
	slots[ConfigNoH2] = merger.Slot{Active: record.Active{State: record.StateOK}}
	slots[ConfigH2] = merger.Slot{Active: record.Active{
		State:  record.StateOK,
		Fields: map[string]any{"http_proto": "HTTP/1.1"},
	}}

	tags := combine(slots)
	assert.ElementsMatch(t, []string{"connectivity.works", "h2.upgrade.failed"}, tags)
}

func TestCombineUpgradeSuccess(t *testing.T) {
	slots := make([]merger.Slot, 2)
	slots[ConfigNoH2] = merger.Slot{Active: record.Active{State: record.StateOK}}
	slots[ConfigH2] = merger.Slot{Active: record.Active{
		State:  record.StateOK,
		Fields: map[string]any{"http_proto": "HTTP/2.0"},
	}}

	tags := combine(slots)
	assert.ElementsMatch(t, []string{"connectivity.works", "h2.upgrade.success"}, tags)
}

func TestCombineBroken(t *testing.T) {
	slots := make([]merger.Slot, 2)
	slots[ConfigNoH2] = merger.Slot{Active: record.Active{State: record.StateOK}}
	slots[ConfigH2] = merger.Slot{Active: record.Active{State: record.StateFailed}}

	tags := combine(slots)
	assert.Equal(t, []string{"connectivity.broken"}, tags)
}
