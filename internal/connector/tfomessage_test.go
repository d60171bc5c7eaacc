// SPDX-License-Identifier: GPL-3.0-or-later

package connector

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bassosimone/pathspider/internal/job"
)

func TestMessageForPort80IsHTTPGet(t *testing.T) {
	req := job.Request{Job: job.Job{Domain: "example.org", Path: "/"}}
	msg := messageFor(req, 80, 0)
	assert.Contains(t, string(msg), "GET / HTTP/1.1")
	assert.Contains(t, string(msg), "Host: example.org")
}

func TestMessageForPort53IsDNSQuery(t *testing.T) {
	req := job.Request{Job: job.Job{Domain: "example.org"}}

	m0 := messageFor(req, 53, 0)
	m1 := messageFor(req, 53, 1)

	assert.Equal(t, byte(0x0a), m0[0])
	assert.Equal(t, byte(0x75), m0[1])
	assert.Equal(t, byte(0x0a), m1[0])
	assert.Equal(t, byte(0x76), m1[1])

	// Same question section regardless of phase.
	assert.Equal(t, m0[12:], m1[12:])
}

func TestMessageForOtherPortIsEmpty(t *testing.T) {
	req := job.Request{Job: job.Job{Domain: "example.org"}}
	assert.Empty(t, messageFor(req, 443, 0))
}

func TestEncodeDNSQuestion(t *testing.T) {
	q := encodeDNSQuestion("example.org")
	assert.Equal(t, byte(7), q[0])
	assert.Equal(t, "example", string(q[1:8]))
	assert.Equal(t, byte(3), q[8])
	assert.Equal(t, "org", string(q[9:12]))
	assert.Equal(t, byte(0), q[12])
	assert.Equal(t, []byte{0x00, 0x01, 0x00, 0x01}, q[13:17])
}
