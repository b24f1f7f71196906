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

package utf8

import (
	"bytes"
	"testing"
)

func TestDecodeCodepoint(t *testing.T) {
	cases := []struct {
		input []byte
		cp    uint32
		n     int
		state uint32
	}{
		{[]byte("a"), 'a', 1, Accept},
		{[]byte("é"), 0xE9, 2, Accept},
		{[]byte("€"), 0x20AC, 3, Accept},
		{[]byte("😀"), 0x1F600, 4, Accept},
		{[]byte{0xC3}, 0, 1, 24}, // truncated two-byte sequence
		{[]byte{0x80}, 0, 1, Reject},
		{[]byte{0xC0, 0xAF}, 0, 1, Reject}, // overlong
	}
	for i := range cases {
		cp, n, state := DecodeCodepoint(cases[i].input)
		if state != cases[i].state || n != cases[i].n {
			t.Fatalf("case %d: got state %d after %d bytes, want %d after %d",
				i, state, n, cases[i].state, cases[i].n)
		}
		if state == Accept && cp != cases[i].cp {
			t.Fatalf("case %d: got codepoint %#x, want %#x", i, cp, cases[i].cp)
		}
	}
}

func TestRejectSticky(t *testing.T) {
	state, cp := DecodeByte(Accept, 0, 0x80)
	if state != Reject {
		t.Fatalf("expected reject, got %d", state)
	}
	// feeding valid bytes must not leave the reject state
	state, _ = DecodeByte(state, cp, 'a')
	if state != Reject {
		t.Fatalf("reject state is not sticky: %d", state)
	}
}

func TestEncode(t *testing.T) {
	var buf [4]byte
	cases := []struct {
		cp  uint32
		out []byte
	}{
		{'a', []byte("a")},
		{0xE9, []byte("é")},
		{0x20AC, []byte("€")},
		{0x1F600, []byte("😀")},
	}
	for i := range cases {
		n := Encode(cases[i].cp, buf[:])
		if !bytes.Equal(buf[:n], cases[i].out) {
			t.Fatalf("case %d: got %x, want %x", i, buf[:n], cases[i].out)
		}
	}
	// out of range: 0 bytes reported, replacement written
	n := Encode(0x110000, buf[:])
	if n != 0 || !bytes.Equal(buf[:3], ReplacementBytes[:]) {
		t.Fatalf("out-of-range encode: n=%d buf=%x", n, buf[:3])
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	var buf [4]byte
	for _, cp := range []uint32{0, 0x7F, 0x80, 0x7FF, 0x800, 0xFFFF, 0x10000, 0x10FFFF} {
		n := Encode(cp, buf[:])
		got, m, state := DecodeCodepoint(buf[:n])
		if state != Accept || m != n || got != cp {
			t.Fatalf("codepoint %#x: encode %d bytes, decode %#x after %d (state %d)",
				cp, n, got, m, state)
		}
	}
}

func TestCount(t *testing.T) {
	cases := []struct {
		input string
		want  uint64
	}{
		{"", 0},
		{"hello", 5},
		{"hello, world: a long ascii run", 30},
		{"héllo", 5},
		{"€€€", 3},
		{"a😀b", 3},
	}
	for i := range cases {
		if got := Count([]byte(cases[i].input)); got != cases[i].want {
			t.Fatalf("case %d: got %d, want %d", i, got, cases[i].want)
		}
	}
	if got := Count([]byte{'a', 0x80}); got != Malformed {
		t.Fatalf("malformed: got %#x", got)
	}
	if got := Count([]byte{'a', 0xC3}); got != Truncated {
		t.Fatalf("truncated: got %#x", got)
	}
	// the malformed byte must be detected past the SWAR fast path
	long := append(bytes.Repeat([]byte{'x'}, 64), 0xFF)
	if got := Count(long); got != Malformed {
		t.Fatalf("malformed after ascii run: got %#x", got)
	}
}

func TestIsSpace(t *testing.T) {
	for _, cp := range []uint32{' ', '\t', '\n', '\r', 0xA0, 0x2028} {
		if !IsSpace(cp) {
			t.Fatalf("%#x should be a space", cp)
		}
	}
	for _, cp := range []uint32{'a', '0', 0x1F600} {
		if IsSpace(cp) {
			t.Fatalf("%#x should not be a space", cp)
		}
	}
}

func TestEscapeSequence(t *testing.T) {
	cases := []struct {
		input string
		cp    uint32
		n     int
	}{
		{"", 0, 0},
		{"a", 'a', 1},
		{"é", 0xE9, 2},
		{`\n`, '\n', 2},
		{`\r`, '\r', 2},
		{`\t`, '\t', 2},
		{`\\`, '\\', 2},
		{`\"`, '"', 2},
		{`\'`, '\'', 2},
		{`\0`, 0, 2},
		{`\x41`, 'A', 4},
		{`\u00E9`, 0xE9, 6},
		{`\U0001F600`, 0x1F600, 10},
		{`\q`, Replacement, 2},
		{`\x4`, Replacement, 3},
		{`\xzz`, Replacement, 2},
	}
	for i := range cases {
		cp, n := EscapeSequence([]byte(cases[i].input))
		if cp != cases[i].cp || n != cases[i].n {
			t.Fatalf("case %d (%q): got (%#x, %d), want (%#x, %d)",
				i, cases[i].input, cp, n, cases[i].cp, cases[i].n)
		}
	}
}

func TestEscapeCodepoints(t *testing.T) {
	cases := []struct {
		input string
		cp    uint32
		n     int
	}{
		{"", 0, 0},
		{"é", 0xE9, 1},
		{`\n`, '\n', 2},
		{`\u00E9`, 0xE9, 6},
		{`\q`, Replacement, 2},
	}
	for i := range cases {
		cp, n := EscapeCodepoints(FromString(cases[i].input))
		if cp != cases[i].cp || n != cases[i].n {
			t.Fatalf("case %d (%q): got (%#x, %d), want (%#x, %d)",
				i, cases[i].input, cp, n, cases[i].cp, cases[i].n)
		}
	}
}

func TestStringConversion(t *testing.T) {
	for _, s := range []string{"", "ascii", "héllo €", "😀"} {
		if got := ToString(FromString(s)); got != s {
			t.Fatalf("round trip of %q yielded %q", s, got)
		}
	}
}
