// SPDX-License-Identifier: GPL-3.0-or-later

package dns

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bassosimone/pathspider/internal/merger"
	"github.com/bassosimone/pathspider/internal/record"
)

func slotWithRecords(records []string) merger.Slot {
	return merger.Slot{Active: record.Active{
		State:  record.StateOK,
		Fields: map[string]any{"dns_a_records": records},
	}}
}

func TestCombineAllConsistent(t *testing.T) {
	slots := make([]merger.Slot, 3)
	slots[ConfigUDP] = slotWithRecords([]string{"1.2.3.4"})
	slots[ConfigTLS] = slotWithRecords([]string{"1.2.3.4"})
	slots[ConfigDoH] = slotWithRecords([]string{"1.2.3.4"})

	tags := combine(slots)
	assert.ElementsMatch(t, []string{"connectivity.works", "dns.tls.consistent", "dns.https.consistent"}, tags)
}

func TestCombineTLSDiverges(t *testing.T) {
	slots := make([]merger.Slot, 3)
	slots[ConfigUDP] = slotWithRecords([]string{"1.2.3.4"})
	slots[ConfigTLS] = slotWithRecords([]string{"5.6.7.8"})
	slots[ConfigDoH] = slotWithRecords([]string{"1.2.3.4"})

	tags := combine(slots)
	assert.ElementsMatch(t, []string{"connectivity.works", "dns.tls.diverges", "dns.https.consistent"}, tags)
}

func TestCombineDoHFailed(t *testing.T) {
	slots := make([]merger.Slot, 3)
	slots[ConfigUDP] = slotWithRecords([]string{"1.2.3.4"})
	slots[ConfigTLS] = slotWithRecords([]string{"1.2.3.4"})
	slots[ConfigDoH] = merger.Slot{Active: record.Active{State: record.StateFailed}}

	tags := combine(slots)
	assert.ElementsMatch(t, []string{"connectivity.works", "dns.tls.consistent"}, tags)
}

func TestCombineUDPBroken(t *testing.T) {
	slots := make([]merger.Slot, 3)
	slots[ConfigUDP] = merger.Slot{Active: record.Active{State: record.StateFailed}}
	slots[ConfigTLS] = slotWithRecords([]string{"1.2.3.4"})
	slots[ConfigDoH] = slotWithRecords([]string{"1.2.3.4"})

	tags := combine(slots)
	assert.Equal(t, []string{"connectivity.transient"}, tags)
}
