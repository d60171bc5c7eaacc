// SPDX-License-Identifier: GPL-3.0-or-later

package connector

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/bassosimone/pathspider/internal/job"
)

// messageFor builds the application payload the tfo connector sends on
// a Fast Open SYN: an HTTP GET for port 80, a minimal DNS query for
// port 53 whose QNAME is the job's domain, and an empty payload
// otherwise. phase distinguishes the cookie-priming send (0) from the
// cookie-reuse send (1); both sends happen within configuration 1's
// single probe.
func messageFor(req job.Request, port uint16, phase int) []byte {
	switch port {
	case 80:
		return []byte(fmt.Sprintf("GET %s HTTP/1.1\r\nHost: %s\r\nConnection: close\r\n\r\n",
			req.Job.URL(), req.Job.Domain))
	case 53:
		return encodeDNSQuery(req, phase)
	default:
		return nil
	}
}

// dnsQueryHeaderPhase0 and dnsQueryHeaderPhase1 are the transaction IDs
// the priming and reuse sends use, distinguishing the two queries on the
// wire.
const (
	dnsQueryHeaderPhase0 = 0x0a75
	dnsQueryHeaderPhase1 = 0x0a76
)

// encodeDNSQuery builds a minimal single-question DNS query: a 12-byte
// header (id, RD set, QDCOUNT=1, all other counts zero) followed by an
// encoded question section.
func encodeDNSQuery(req job.Request, phase int) []byte {
	id := uint16(dnsQueryHeaderPhase0)
	if phase == 1 {
		id = dnsQueryHeaderPhase1
	}
	header := make([]byte, 12)
	binary.BigEndian.PutUint16(header[0:2], id)
	binary.BigEndian.PutUint16(header[2:4], 0x0100) // RD=1
	binary.BigEndian.PutUint16(header[4:6], 1)       // QDCOUNT=1
	return append(header, encodeDNSQuestion(req.Job.Domain)...)
}

// encodeDNSQuestion encodes domain as a QNAME followed by QTYPE=A,
// QCLASS=IN.
func encodeDNSQuestion(domain string) []byte {
	var buf []byte
	for _, label := range strings.Split(domain, ".") {
		if label == "" {
			continue
		}
		buf = append(buf, byte(len(label)))
		buf = append(buf, label...)
	}
	buf = append(buf, 0x00)       // root label
	buf = append(buf, 0x00, 0x01) // QTYPE A
	buf = append(buf, 0x00, 0x01) // QCLASS IN
	return buf
}
