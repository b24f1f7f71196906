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

// ListReverse returns a fresh list with the elements in reverse
// order. The cost is one cons per element.
func (h *Heap) ListReverse(s *Frame, list Value) (Value, Value) {
	if exc := s.AssertType(list, ListType, "reverse"); exc != Null {
		return Null, exc
	}
	f := s.NewFrame(list, Null, Null)
	for f.Registers[0] != Null {
		cons, exc := h.List(f, h.Head(f.Registers[0]), f.Registers[1])
		if exc != Null {
			return Null, exc
		}
		f.Registers[1] = cons
		f.Registers[0] = h.Tail(f.Registers[0])
	}
	return f.Registers[1], Null
}
