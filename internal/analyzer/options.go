// SPDX-License-Identifier: GPL-3.0-or-later

package analyzer

// TCPOption is one parsed option from a TCP header's option space.
type TCPOption struct {
	Kind uint8
	Data []byte // excludes the kind and length bytes
}

// ParseTCPOptions parses raw TCP option bytes: options are
// length-prefixed, kind 0 (EOL) stops parsing immediately, kind 1 (NOP)
// is skipped, and a malformed trailing option (truncated length byte, or
// a length that would overrun the buffer) ends parsing without error
// rather than panicking. Duplicate kinds keep the last occurrence, and
// parsing is idempotent: calling it twice on the same bytes yields an
// equal map.
func ParseTCPOptions(raw []byte) map[uint8]TCPOption {
	out := make(map[uint8]TCPOption)
	i := 0
	for i < len(raw) {
		kind := raw[i]
		switch kind {
		case 0: // end of option list
			return out
		case 1: // no-op padding
			i++
			continue
		}
		if i+1 >= len(raw) {
			return out
		}
		length := int(raw[i+1])
		if length < 2 || i+length > len(raw) {
			return out
		}
		out[kind] = TCPOption{Kind: kind, Data: raw[i+2 : i+length]}
		i += length
	}
	return out
}

// fastOpenMagic is the two-byte prefix (0xF9, 0x89) that identifies a Fast
// Open cookie carried in an experimental TCP option (kind 254 or 255),
// per RFC 7413.
var fastOpenMagic = [2]byte{0xF9, 0x89}

// fastOpenCookieKind is the IANA-assigned kind for TCP Fast Open.
const fastOpenCookieKind = 34

// fastOpenCookie extracts a Fast Open cookie from a parsed option set,
// checking kind 34 first, then the experimental kinds 254/255 gated on
// the magic prefix. ok is false, with kind 0 and a nil cookie, iff none
// of those three shapes is present.
func fastOpenCookie(opts map[uint8]TCPOption) (kind uint8, cookie []byte, ok bool) {
	if opt, present := opts[fastOpenCookieKind]; present {
		return fastOpenCookieKind, opt.Data, true
	}
	for _, k := range [...]uint8{254, 255} {
		opt, present := opts[k]
		if !present || len(opt.Data) < 2 {
			continue
		}
		if opt.Data[0] == fastOpenMagic[0] && opt.Data[1] == fastOpenMagic[1] {
			return k, opt.Data[2:], true
		}
	}
	return 0, nil, false
}
