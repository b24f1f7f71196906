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
	"math"
	"reflect"

	"github.com/bowl-project/bowl-api/ints"
)

// DefaultHeapSize is the initial size of each semispace.
const DefaultHeapSize = 1 << 20

// valueAlign is the allocation granularity; offsets and sizes are
// multiples of it, and offset 0 is reserved for the null handle.
const valueAlign = 8

// Heap owns the two semispaces, the static region and the side
// tables for native functions and loaded modules. It is not safe
// for concurrent use; the runtime is single-threaded.
type Heap struct {
	space []byte // active semispace
	other []byte // inactive semispace
	ptr   uint32 // bump pointer into space

	static              []byte
	sentinel            Value
	outOfHeap           Value
	finalizationFailure Value

	funcs     []Native
	funcIndex map[uintptr]uint32
	libs      []librarySlot

	collecting bool

	// Growth is the factor by which the semispaces grow when a
	// collection does not free enough memory for an allocation.
	Growth int
}

type librarySlot struct {
	module Module
}

// NewHeap creates a heap with the given semispace size in bytes,
// or DefaultHeapSize if size is zero.
func NewHeap(size uint32) *Heap {
	if size == 0 {
		size = DefaultHeapSize
	}
	size = ints.AlignUp(size, valueAlign)
	h := &Heap{
		space:     make([]byte, size),
		other:     make([]byte, size),
		ptr:       valueAlign,
		funcIndex: make(map[uintptr]uint32),
		Growth:    2,
	}
	h.buildStatic()
	return h
}

// Sentinel returns the preallocated sentinel value: a unique marker
// that can be passed as the default of MapGetOrElse to distinguish
// an absent binding from a present one.
func (h *Heap) Sentinel() Value { return h.sentinel }

// OutOfHeap returns the preallocated exception reported when an
// allocation fails even after growing the heap.
func (h *Heap) OutOfHeap() Value { return h.outOfHeap }

// FinalizationFailure returns the preallocated exception substituted
// when a module's finalize hook fails during collection.
func (h *Heap) FinalizationFailure() Value { return h.finalizationFailure }

// staticValue appends a value header to the static region and
// returns its handle.
func staticValue(region *[]byte, t Type, extra uint32) (Value, []byte) {
	off := uint32(len(*region))
	size := ints.AlignUp(headerSize+payloadSize[t]+extra, valueAlign)
	*region = append(*region, make([]byte, size)...)
	buf := (*region)[off : off+size]
	buf[offTag] = byte(t)
	return Value(off) | staticBit, buf
}

func staticString(region *[]byte, t Type, s string) Value {
	v, buf := staticValue(region, t, uint32(len(s)))
	putU32At(buf, offPayload, uint32(len(s)))
	copy(buf[offPayload+4:], s)
	return v
}

func staticException(region *[]byte, message Value) Value {
	v, buf := staticValue(region, ExceptionType, 0)
	putU32At(buf, offPayload, uint32(Null))
	putU32At(buf, offPayload+4, uint32(message))
	return v
}

func (h *Heap) buildStatic() {
	region := make([]byte, valueAlign)
	h.sentinel = staticString(&region, SymbolType, "sentinel")
	msg := staticString(&region, StringType, "out of heap memory")
	h.outOfHeap = staticException(&region, msg)
	msg = staticString(&region, StringType, "failed to finalize library")
	h.finalizationFailure = staticException(&region, msg)
	h.static = region
}

// Alloc carves a fresh value of the given type with `additional`
// trailing payload bytes out of the active semispace. The payload
// is zeroed; the caller must fill every variant field before the
// next allocation so the collector always sees a valid header.
//
// When the allocation does not fit, the collector runs; if it still
// does not fit the semispaces grow by the Growth factor and the
// collector runs again; if it still does not fit, the preallocated
// out-of-heap exception is returned.
func (h *Heap) Alloc(s *Frame, t Type, additional uint32) (Value, Value) {
	if h.collecting {
		// inside a finalize hook
		return Null, h.outOfHeap
	}
	size := ints.AlignUp(headerSize+payloadSize[t]+additional, valueAlign)
	for attempt := 0; ; attempt++ {
		if uint64(h.ptr)+uint64(size) <= uint64(len(h.space)) {
			v := Value(h.ptr)
			h.ptr += size
			region := h.space[v : uint32(v)+size]
			for i := range region {
				region[i] = 0
			}
			region[offTag] = byte(t)
			return v, Null
		}
		switch attempt {
		case 0:
			if exc := h.Collect(s); exc != Null {
				return Null, exc
			}
		case 1:
			if exc := h.growAndCollect(s); exc != Null {
				return Null, exc
			}
		default:
			return Null, h.outOfHeap
		}
	}
}

func (h *Heap) growAndCollect(s *Frame) Value {
	g := h.Growth
	if g < 2 {
		g = 2
	}
	size := len(h.space) * g
	h.other = make([]byte, size)
	exc := h.Collect(s)
	// the old, smaller semispace became inactive on the swap;
	// replace it so both halves stay equally sized
	h.other = make([]byte, size)
	return exc
}

// Symbol allocates a symbol value from the given bytes.
func (h *Heap) Symbol(s *Frame, bytes []byte) (Value, Value) {
	return h.newBytes(s, SymbolType, bytes)
}

// String allocates a string value from the given bytes.
func (h *Heap) String(s *Frame, bytes []byte) (Value, Value) {
	return h.newBytes(s, StringType, bytes)
}

func (h *Heap) newBytes(s *Frame, t Type, bytes []byte) (Value, Value) {
	v, exc := h.Alloc(s, t, uint32(len(bytes)))
	if exc != Null {
		return Null, exc
	}
	h.putU32(v, offPayload, uint32(len(bytes)))
	copy(h.at(v)[offPayload+4:], bytes)
	return v, Null
}

// Number allocates a number value.
func (h *Heap) Number(s *Frame, value float64) (Value, Value) {
	v, exc := h.Alloc(s, NumberType, 0)
	if exc != Null {
		return Null, exc
	}
	h.putU64(v, offPayload, math.Float64bits(value))
	return v, Null
}

// Boolean allocates a boolean value.
func (h *Heap) Boolean(s *Frame, value bool) (Value, Value) {
	v, exc := h.Alloc(s, BooleanType, 0)
	if exc != Null {
		return Null, exc
	}
	if value {
		h.at(v)[offPayload] = 1
	}
	return v, Null
}

// List allocates a cons cell. The tail may be Null for the end of
// the list; the cached length is one more than the tail's.
func (h *Heap) List(s *Frame, head, tail Value) (Value, Value) {
	f := s.NewFrame(head, tail, Null)
	v, exc := h.Alloc(f, ListType, 0)
	if exc != Null {
		return Null, exc
	}
	length := uint32(1)
	if f.Registers[1] != Null {
		length += h.u32(f.Registers[1], offPayload)
	}
	h.putU32(v, offPayload, length)
	h.putU32(v, offPayload+4, uint32(f.Registers[0]))
	h.putU32(v, offPayload+8, uint32(f.Registers[1]))
	return v, Null
}

// Map allocates an empty map with the given bucket count.
func (h *Heap) Map(s *Frame, capacity uint32) (Value, Value) {
	v, exc := h.Alloc(s, MapType, 4*capacity)
	if exc != Null {
		return Null, exc
	}
	h.putU32(v, offPayload+4, capacity)
	return v, Null
}

// Vector allocates a vector of the given length with every element
// set to fill. Vector contents are fixed at construction.
func (h *Heap) Vector(s *Frame, fill Value, length uint32) (Value, Value) {
	f := s.NewFrame(fill, Null, Null)
	v, exc := h.Alloc(f, VectorType, 4*length)
	if exc != Null {
		return Null, exc
	}
	h.putU32(v, offPayload, length)
	for i := uint32(0); i < length; i++ {
		h.putU32(v, offPayload+4+4*i, uint32(f.Registers[0]))
	}
	return v, Null
}

// Function allocates a function value wrapping a native function.
// The library may be Null if the function belongs to no library.
// Registering the same native function twice yields values that
// compare equal.
func (h *Heap) Function(s *Frame, library Value, function Native) (Value, Value) {
	key := reflect.ValueOf(function).Pointer()
	index, ok := h.funcIndex[key]
	if !ok {
		index = uint32(len(h.funcs))
		h.funcs = append(h.funcs, function)
		h.funcIndex[key] = index
	}
	f := s.NewFrame(library, Null, Null)
	v, exc := h.Alloc(f, FunctionType, 0)
	if exc != Null {
		return Null, exc
	}
	h.putU32(v, offPayload, uint32(f.Registers[0]))
	h.putU32(v, offPayload+4, index)
	return v, Null
}

// Library allocates a library value that owns the module. The
// module's finalize hook runs exactly once, when the collector
// finds the value unreachable.
func (h *Heap) Library(s *Frame, path string, module Module) (Value, Value) {
	v, exc := h.Alloc(s, LibraryType, uint32(len(path)))
	if exc != Null {
		return Null, exc
	}
	index := uint32(len(h.libs))
	h.libs = append(h.libs, librarySlot{module: module})
	h.putU32(v, offPayload, index)
	h.putU32(v, offPayload+4, uint32(len(path)))
	copy(h.at(v)[offPayload+8:], path)
	return v, Null
}

// Exception allocates an exception value chaining an optional cause.
func (h *Heap) Exception(s *Frame, cause, message Value) (Value, Value) {
	f := s.NewFrame(cause, message, Null)
	v, exc := h.Alloc(f, ExceptionType, 0)
	if exc != Null {
		return Null, exc
	}
	h.putU32(v, offPayload, uint32(f.Registers[0]))
	h.putU32(v, offPayload+4, uint32(f.Registers[1]))
	return v, Null
}

// Clone allocates an exact copy of the value.
func (h *Heap) Clone(s *Frame, v Value) (Value, Value) {
	if v == Null {
		return Null, Null
	}
	f := s.NewFrame(v, Null, Null)
	t := h.TypeOf(v)
	extra := uint32(sizeAt(h.at(v), 0)) - headerSize - payloadSize[t]
	nv, exc := h.Alloc(f, t, extra)
	if exc != Null {
		return Null, exc
	}
	src := h.at(f.Registers[0])
	size := sizeAt(src, 0)
	copy(h.at(nv)[offPayload:size], src[offPayload:size])
	h.putU64(nv, offHash, h.u64(f.Registers[0], offHash))
	return nv, Null
}

// Call invokes a function value on a fresh frame inheriting the
// caller's dictionary, callstack and datastack. It returns the
// function's exception, or Null.
func (h *Heap) Call(s *Frame, function Value) Value {
	if exc := s.AssertType(function, FunctionType, "call"); exc != Null {
		return exc
	}
	fn := h.funcs[h.functionIndex(function)]
	return fn(s.NewFrame(Null, Null, Null))
}

// ReleaseLibrary detaches the module from a library value without
// running its finalize hook. The loader uses it to unload a module
// whose initialization failed.
func (h *Heap) ReleaseLibrary(v Value) {
	if h.TypeOf(v) != LibraryType {
		return
	}
	h.libs[h.libraryIndex(v)].module = nil
}
