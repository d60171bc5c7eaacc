// SPDX-License-Identifier: GPL-3.0-or-later

package ecn

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bassosimone/pathspider/internal/flow"
	"github.com/bassosimone/pathspider/internal/merger"
	"github.com/bassosimone/pathspider/internal/record"
)

// A clean negotiation: the SYN-ACK echoes SAE, ECT0 rides on data in
// both directions, CE shows up on the reverse direction, ECT1 never
// appears.
func TestCombineECNSuccess(t *testing.T) {
	slots := make([]merger.Slot, 2)
	slots[ConfigBaseline] = merger.Slot{Active: record.Active{State: record.StateOK}}
	slots[ConfigECN] = merger.Slot{
		Active: record.Active{State: record.StateOK},
		Flow: &flow.Record{
			TCP: &flow.TCPFields{SynFlags: [2]flow.TCPSynFlags{flow.TCPSec, flow.TCPSae}, Connected: true},
			ECN: &flow.ECNFields{
				Ect0Data: [2]bool{true, true},
				CeData:   [2]bool{false, true},
			},
		},
	}

	tags := combine(slots)
	assert.ElementsMatch(t, []string{
		"connectivity.works",
		"ecn.negotiation.succeeded",
		"ecn.ipmark.ect0.seen",
		"ecn.ipmark.ect1.not_seen",
		"ecn.ipmark.ce.seen",
	}, tags)
}

// A bystander flow: all ECT/CE booleans false and no succeeded
// negotiation tag because the reverse SYN-ACK never set ECE.
func TestCombineECNBystander(t *testing.T) {
	slots := make([]merger.Slot, 2)
	slots[ConfigBaseline] = merger.Slot{Active: record.Active{State: record.StateOK}}
	slots[ConfigECN] = merger.Slot{
		Active: record.Active{State: record.StateOK},
		Flow: &flow.Record{
			TCP: &flow.TCPFields{SynFlags: [2]flow.TCPSynFlags{flow.TCPSec, flow.TCPAck | flow.TCPSyn}, Connected: true},
			ECN: &flow.ECNFields{},
		},
	}

	tags := combine(slots)
	assert.Contains(t, tags, "connectivity.works")
	assert.NotContains(t, tags, "ecn.negotiation.succeeded")
	assert.Contains(t, tags, "ecn.ipmark.ect0.not_seen")
}

func TestCombineReflected(t *testing.T) {
	slots := make([]merger.Slot, 2)
	slots[ConfigBaseline] = merger.Slot{Active: record.Active{State: record.StateOK}}
	slots[ConfigECN] = merger.Slot{
		Active: record.Active{State: record.StateOK},
		Flow: &flow.Record{
			TCP: &flow.TCPFields{SynFlags: [2]flow.TCPSynFlags{flow.TCPSec, flow.TCPSaec}, Connected: true},
		},
	}
	tags := combine(slots)
	assert.Contains(t, tags, "ecn.negotiation.reflected")
}

func TestCombineOffline(t *testing.T) {
	slots := make([]merger.Slot, 2)
	slots[ConfigBaseline] = merger.Slot{Active: record.Active{State: record.StateFailed}}
	slots[ConfigECN] = merger.Slot{Active: record.Active{State: record.StateFailed}}
	tags := combine(slots)
	assert.Equal(t, []string{"connectivity.offline"}, tags)
}

// A flow that was captured but never completed its handshake (e.g. a
// RST before the SYN-ACK reached the vantage point) must not produce
// any negotiation/ipmark tags, even though SynFlags and ECN fields are
// technically present in the record.
func TestCombineObservedButNotConnected(t *testing.T) {
	slots := make([]merger.Slot, 2)
	slots[ConfigBaseline] = merger.Slot{Active: record.Active{State: record.StateOK}}
	slots[ConfigECN] = merger.Slot{
		Active: record.Active{State: record.StateOK},
		Flow: &flow.Record{
			TCP: &flow.TCPFields{SynFlags: [2]flow.TCPSynFlags{flow.TCPSec, flow.TCPSae}, Connected: false},
			ECN: &flow.ECNFields{Ect0Data: [2]bool{true, true}},
		},
	}

	tags := combine(slots)
	assert.Equal(t, []string{"connectivity.works"}, tags)
}
