// Copyright 2023 Sneller, Inc.
//
//  Licensed under the Apache License, Version 2.0 (the "License");
//  you may not use this file except in compliance with the License.
//  You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.

// Package utf8 implements the UTF-8 codec used by the runtime:
// a table-driven decoder (after Bjoern Hoehrmann's DFA, see
// http://bjoern.hoehrmann.de/utf-8/decoder/dfa/), an encoder,
// codepoint counting and escape-sequence handling.
package utf8

import (
	"encoding/binary"
	"unicode"
)

const (
	// Accept is the decoder state after a complete codepoint.
	Accept uint32 = 0
	// Reject is the decoder state after malformed input.
	// It is sticky: feeding more bytes does not leave it.
	Reject uint32 = 12
)

// Replacement is the codepoint of the Unicode replacement character.
const Replacement uint32 = 0xFFFD

// ReplacementBytes is the UTF-8 encoded form of Replacement.
var ReplacementBytes = [3]byte{0xEF, 0xBF, 0xBD}

// Malformed and Truncated are the error results of Count.
const (
	Malformed = ^uint64(0)
	Truncated = ^uint64(1)
)

// utf8d maps bytes to character classes (first 256 entries)
// and (state, class) pairs to successor states (remaining entries).
var utf8d = [364]uint8{
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, // 00..1f
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, // 20..3f
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, // 40..5f
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, // 60..7f
	1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1,
	9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, // 80..9f
	7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7,
	7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, // a0..bf
	8, 8, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2,
	2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, // c0..df
	0xa, 0x3, 0x3, 0x3, 0x3, 0x3, 0x3, 0x3, 0x3, 0x3, 0x3, 0x3, 0x3, 0x4, 0x3, 0x3, // e0..ef
	0xb, 0x6, 0x6, 0x6, 0x5, 0x8, 0x8, 0x8, 0x8, 0x8, 0x8, 0x8, 0x8, 0x8, 0x8, 0x8, // f0..ff

	0, 12, 24, 36, 60, 96, 84, 12, 12, 12, 48, 72,
	12, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12,
	12, 0, 12, 12, 12, 12, 12, 0, 12, 0, 12, 12,
	12, 24, 12, 12, 12, 12, 12, 24, 12, 24, 12, 12,
	12, 12, 12, 12, 12, 12, 12, 24, 12, 12, 12, 12,
	12, 24, 12, 12, 12, 12, 12, 12, 12, 24, 12, 12,
	12, 12, 12, 12, 12, 12, 12, 36, 12, 36, 12, 12,
	12, 36, 12, 12, 12, 12, 12, 36, 12, 36, 12, 12,
	12, 36, 12, 12, 12, 12, 12, 12, 12, 12, 12, 12,
}

// DecodeByte feeds one byte into the decoder. It returns the new
// state and the updated codepoint accumulator. When the returned
// state is Accept, the returned codepoint is complete; when it is
// Reject, the input is malformed and the state is sticky.
func DecodeByte(state, codepoint uint32, b byte) (uint32, uint32) {
	t := uint32(utf8d[b])
	if state != Accept {
		codepoint = uint32(b)&0x3f | codepoint<<6
	} else {
		codepoint = (0xff >> t) & uint32(b)
	}
	if state == Reject {
		return Reject, codepoint
	}
	return uint32(utf8d[256+state+t]), codepoint
}

// DecodeCodepoint decodes a single codepoint from the front of b.
// It returns the codepoint, the number of bytes consumed and the
// final decoder state: Accept on success, Reject on malformed input,
// and any other state if b ends in the middle of a sequence.
func DecodeCodepoint(b []byte) (uint32, int, uint32) {
	var cp uint32
	state := Accept
	for i, c := range b {
		state, cp = DecodeByte(state, cp, c)
		if state == Accept {
			return cp, i + 1, state
		}
		if state == Reject {
			return cp, i + 1, state
		}
	}
	return cp, len(b), state
}

// Encode writes the UTF-8 encoding of codepoint into dst, which must
// hold at least 4 bytes, and returns the number of bytes written.
// If the codepoint cannot be represented it returns 0 and writes the
// three-byte replacement character instead.
func Encode(codepoint uint32, dst []byte) int {
	switch {
	case codepoint < 0x80:
		dst[0] = byte(codepoint)
		return 1
	case codepoint < 0x800:
		dst[0] = 0xc0 | byte(codepoint>>6)
		dst[1] = 0x80 | byte(codepoint)&0x3f
		return 2
	case codepoint < 0x10000:
		dst[0] = 0xe0 | byte(codepoint>>12)
		dst[1] = 0x80 | byte(codepoint>>6)&0x3f
		dst[2] = 0x80 | byte(codepoint)&0x3f
		return 3
	case codepoint <= 0x10FFFF:
		dst[0] = 0xf0 | byte(codepoint>>18)
		dst[1] = 0x80 | byte(codepoint>>12)&0x3f
		dst[2] = 0x80 | byte(codepoint>>6)&0x3f
		dst[3] = 0x80 | byte(codepoint)&0x3f
		return 4
	default:
		copy(dst, ReplacementBytes[:])
		return 0
	}
}

// Count returns the number of codepoints in b, Malformed if b is not
// valid UTF-8, or Truncated if b ends in the middle of a sequence.
func Count(b []byte) uint64 {
	var cp uint32
	var n uint64
	state := Accept
	for len(b) > 0 {
		// process 8 ASCII bytes at once using a SWAR check
		for state == Accept && len(b) >= 8 {
			qword := binary.LittleEndian.Uint64(b)
			if qword&0x8080808080808080 != 0 {
				break
			}
			b = b[8:]
			n += 8
		}
		if len(b) == 0 {
			break
		}
		state, cp = DecodeByte(state, cp, b[0])
		b = b[1:]
		if state == Accept {
			n++
		} else if state == Reject {
			return Malformed
		}
	}
	if state != Accept {
		return Truncated
	}
	return n
}

// IsSpace reports whether the codepoint belongs to the Unicode
// whitespace class.
func IsSpace(codepoint uint32) bool {
	return unicode.IsSpace(rune(codepoint))
}

// FromString decodes the string into a slice of codepoints.
// Malformed input decodes to the replacement character.
func FromString(s string) []uint32 {
	out := make([]uint32, 0, len(s))
	for _, r := range s {
		out = append(out, uint32(r))
	}
	return out
}

// ToString encodes the codepoints back into a UTF-8 string.
func ToString(codepoints []uint32) string {
	var buf [4]byte
	out := make([]byte, 0, len(codepoints))
	for _, cp := range codepoints {
		n := Encode(cp, buf[:])
		if n == 0 {
			n = len(ReplacementBytes)
		}
		out = append(out, buf[:n]...)
	}
	return string(out)
}
