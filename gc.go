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
	"encoding/binary"

	"github.com/bowl-project/bowl-api/ints"
)

// Collect runs a full collection cycle with the given stack as the
// root set. Every live value is copied into the inactive semispace
// (Cheney's algorithm); root slots and intra-value handles are
// rewritten to the new locations. Libraries that did not survive
// have their finalize hook run before the semispaces swap; a failing
// hook is substituted by the preallocated finalization-failure
// exception, which is returned. On success Collect returns Null.
func (h *Heap) Collect(s *Frame) Value {
	to := h.other
	tptr := uint32(valueAlign)

	// Gather root slots over the whole frame chain. The dictionary,
	// callstack and datastack pointers of nested frames usually alias
	// slots of an enclosing scope, so slots are deduplicated by
	// identity: offsets, unlike C pointers, cannot be range-checked
	// to tell a handle that has already been rewritten.
	seen := make(map[*Value]struct{})
	var slots []*Value
	add := func(p *Value) {
		if p == nil {
			return
		}
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		slots = append(slots, p)
	}
	for f := s; f != nil; f = f.previous {
		for i := range f.Registers {
			add(&f.Registers[i])
		}
		add(f.Dictionary)
		add(f.Callstack)
		add(f.Datastack)
	}
	for _, p := range slots {
		*p = h.evacuate(*p, to, &tptr)
	}

	// Scan the to-space until the scan pointer catches up with the
	// allocation pointer, evacuating every handle field.
	scan := uint32(valueAlign)
	for scan < tptr {
		h.scanValue(to, scan, &tptr)
		scan += ints.AlignUp(sizeAt(to, scan), valueAlign)
	}

	// Sweep the from-space for library values that did not survive
	// and run their finalize hooks exactly once. The swap has not
	// happened yet, so the dead value's bytes are still addressable
	// by the hook; allocations are rejected until the sweep is done.
	var exc Value
	h.collecting = true
	off := uint32(valueAlign)
	for off < h.ptr {
		if Type(h.space[off]) == LibraryType &&
			binary.LittleEndian.Uint32(h.space[off+offForward:]) == 0 {
			index := binary.LittleEndian.Uint32(h.space[off+offPayload:])
			if m := h.libs[index].module; m != nil {
				h.libs[index].module = nil
				if e := m.Finalize(s, Value(off)); e != Null {
					exc = h.finalizationFailure
				}
			}
		}
		off += ints.AlignUp(sizeAt(h.space, off), valueAlign)
	}
	h.collecting = false

	h.space, h.other = to, h.space
	h.ptr = tptr
	return exc
}

// evacuate copies the value into the to-space unless it has been
// copied already, records the forwarding address in the from-space
// header, and returns the new handle. Null and static handles are
// returned unchanged.
func (h *Heap) evacuate(v Value, to []byte, tptr *uint32) Value {
	if v == Null || v&staticBit != 0 {
		return v
	}
	if fwd := binary.LittleEndian.Uint32(h.space[uint32(v)+offForward:]); fwd != 0 {
		return Value(fwd)
	}
	size := ints.AlignUp(sizeAt(h.space, uint32(v)), valueAlign)
	copy(to[*tptr:*tptr+size], h.space[v:uint32(v)+size])
	binary.LittleEndian.PutUint32(h.space[uint32(v)+offForward:], *tptr)
	nv := Value(*tptr)
	*tptr += size
	return nv
}

// scanValue evacuates the handle fields of the value at offset off
// in the to-space. Symbols, strings, numbers, booleans and libraries
// carry no handles; a library's handle is an OS resource, not a value.
func (h *Heap) scanValue(to []byte, off uint32, tptr *uint32) {
	fix := func(fieldOff uint32) {
		old := Value(binary.LittleEndian.Uint32(to[off+fieldOff:]))
		binary.LittleEndian.PutUint32(to[off+fieldOff:], uint32(h.evacuate(old, to, tptr)))
	}
	switch Type(to[off]) {
	case ListType:
		fix(offPayload + 4) // head
		fix(offPayload + 8) // tail
	case MapType:
		capacity := binary.LittleEndian.Uint32(to[off+offPayload+4:])
		for i := uint32(0); i < capacity; i++ {
			fix(offPayload + 8 + 4*i)
		}
	case VectorType:
		length := binary.LittleEndian.Uint32(to[off+offPayload:])
		for i := uint32(0); i < length; i++ {
			fix(offPayload + 4 + 4*i)
		}
	case FunctionType:
		fix(offPayload) // library
	case ExceptionType:
		fix(offPayload)     // cause
		fix(offPayload + 4) // message
	}
}
