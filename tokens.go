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

package bowl

import (
	"github.com/bowl-project/bowl-api/utf8"
)

// Tokens splits a string value into a list of string values at runs
// of Unicode whitespace. Escape sequences are decoded while
// scanning, so an escaped whitespace character does not end a token.
// Empty input yields the empty list.
func (h *Heap) Tokens(s *Frame, str Value) (Value, Value) {
	if exc := s.AssertType(str, StringType, "tokens"); exc != Null {
		return Null, exc
	}
	// the scan works on a private copy: the value may move during
	// the allocations below
	data := h.Bytes(str)

	f := s.NewFrame(Null, Null, Null)
	var token []byte
	var scratch [4]byte
	flush := func() Value {
		if len(token) == 0 {
			return Null
		}
		sv, exc := h.String(f, token)
		if exc != Null {
			return exc
		}
		cons, exc := h.List(f, sv, f.Registers[0])
		if exc != Null {
			return exc
		}
		f.Registers[0] = cons
		token = token[:0]
		return Null
	}
	emit := func(cp uint32) {
		n := utf8.Encode(cp, scratch[:])
		if n == 0 {
			token = append(token, utf8.ReplacementBytes[:]...)
			return
		}
		token = append(token, scratch[:n]...)
	}

	for i := 0; i < len(data); {
		if data[i] == '\\' {
			cp, n := utf8.EscapeSequence(data[i:])
			if n == 0 {
				n = 1
			}
			i += n
			emit(cp)
			continue
		}
		cp, n, state := utf8.DecodeCodepoint(data[i:])
		if n == 0 {
			break
		}
		i += n
		if state != utf8.Accept {
			emit(utf8.Replacement)
			continue
		}
		if utf8.IsSpace(cp) {
			if exc := flush(); exc != Null {
				return Null, exc
			}
			continue
		}
		emit(cp)
	}
	if exc := flush(); exc != Null {
		return Null, exc
	}
	return h.ListReverse(f, f.Registers[0])
}
