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
	"math"
)

// Every value starts with a fixed header: the type tag, the
// forwarding slot used by the collector, and the cached hash.
// The variant payload follows the header; variable-length parts
// (symbol bytes, map buckets, vector elements, library name) are
// allocated contiguously with the header in a single allocation.
const (
	offTag     = 0
	offForward = 4
	offHash    = 8
	offPayload = 16

	headerSize = 16
)

// payloadSize is the fixed payload size of each variant,
// not counting the variable-length tail.
var payloadSize = [...]uint32{
	SymbolType:    4,  // length
	ListType:      12, // length, head, tail
	FunctionType:  8,  // library, function index
	MapType:       8,  // length, capacity
	BooleanType:   1,
	NumberType:    8,
	StringType:    4, // length
	LibraryType:   8, // module index, length
	VectorType:    4, // length
	ExceptionType: 8, // cause, message
}

// at resolves a handle to the bytes of its value header.
func (h *Heap) at(v Value) []byte {
	if v&staticBit != 0 {
		return h.static[v&^staticBit:]
	}
	return h.space[v:]
}

func (h *Heap) u32(v Value, off uint32) uint32 {
	return binary.LittleEndian.Uint32(h.at(v)[off:])
}

func (h *Heap) putU32(v Value, off, x uint32) {
	binary.LittleEndian.PutUint32(h.at(v)[off:], x)
}

func (h *Heap) u64(v Value, off uint32) uint64 {
	return binary.LittleEndian.Uint64(h.at(v)[off:])
}

func (h *Heap) putU64(v Value, off uint32, x uint64) {
	binary.LittleEndian.PutUint64(h.at(v)[off:], x)
}

func putU32At(buf []byte, off, x uint32) {
	binary.LittleEndian.PutUint32(buf[off:], x)
}

// sizeAt computes the byte size of the value at offset off in buf,
// including the variable-length tail.
func sizeAt(buf []byte, off uint32) uint32 {
	t := Type(buf[off])
	size := headerSize + payloadSize[t]
	switch t {
	case SymbolType, StringType:
		size += binary.LittleEndian.Uint32(buf[off+offPayload:])
	case LibraryType:
		size += binary.LittleEndian.Uint32(buf[off+offPayload+4:])
	case MapType:
		size += 4 * binary.LittleEndian.Uint32(buf[off+offPayload+4:])
	case VectorType:
		size += 4 * binary.LittleEndian.Uint32(buf[off+offPayload:])
	}
	return size
}

// TypeOf returns the type of the value. The null handle is the
// empty list and has list type.
func (h *Heap) TypeOf(v Value) Type {
	if v == Null {
		return ListType
	}
	return Type(h.at(v)[offTag])
}

// ByteSize returns the number of heap bytes the value occupies,
// including any variable-sized payload.
func (h *Heap) ByteSize(v Value) uint64 {
	if v == Null {
		return 0
	}
	return uint64(sizeAt(h.at(v), 0))
}

// Length returns the length of a symbol, string, list, map or
// vector: the byte count for symbols and strings, the element
// count for the containers. Other types have length 0.
func (h *Heap) Length(v Value) uint64 {
	if v == Null {
		return 0
	}
	switch h.TypeOf(v) {
	case SymbolType, StringType, ListType, MapType, VectorType:
		return uint64(h.u32(v, offPayload))
	default:
		return 0
	}
}

// Bytes returns a copy of the inline byte payload of a symbol,
// string or library (its name). The copy stays valid across
// collections.
func (h *Heap) Bytes(v Value) []byte {
	switch h.TypeOf(v) {
	case SymbolType, StringType:
		n := h.u32(v, offPayload)
		out := make([]byte, n)
		copy(out, h.at(v)[offPayload+4:])
		return out
	case LibraryType:
		n := h.u32(v, offPayload+4)
		out := make([]byte, n)
		copy(out, h.at(v)[offPayload+8:])
		return out
	default:
		return nil
	}
}

// StringToGo converts a string or symbol value into a Go string.
func (h *Heap) StringToGo(v Value) string {
	return string(h.Bytes(v))
}

// payloadBytes returns the inline byte payload without copying.
// The view is invalidated by the next allocation.
func (h *Heap) payloadBytes(v Value) []byte {
	switch h.TypeOf(v) {
	case SymbolType, StringType:
		n := h.u32(v, offPayload)
		return h.at(v)[offPayload+4 : offPayload+4+n]
	case LibraryType:
		n := h.u32(v, offPayload+4)
		return h.at(v)[offPayload+8 : offPayload+8+n]
	default:
		return nil
	}
}

// Head returns the head of a list value.
func (h *Heap) Head(v Value) Value {
	return Value(h.u32(v, offPayload+4))
}

// Tail returns the tail of a list value, Null at the end.
func (h *Heap) Tail(v Value) Value {
	return Value(h.u32(v, offPayload+8))
}

// NumberValue returns the payload of a number value.
func (h *Heap) NumberValue(v Value) float64 {
	return math.Float64frombits(h.u64(v, offPayload))
}

// BooleanValue returns the payload of a boolean value.
func (h *Heap) BooleanValue(v Value) bool {
	return h.at(v)[offPayload] != 0
}

// VectorElement returns the i-th element of a vector value.
func (h *Heap) VectorElement(v Value, i uint32) Value {
	return Value(h.u32(v, offPayload+4+4*i))
}

// ExceptionCause returns the cause of an exception, or Null.
func (h *Heap) ExceptionCause(v Value) Value {
	return Value(h.u32(v, offPayload))
}

// ExceptionMessage returns the message value of an exception.
func (h *Heap) ExceptionMessage(v Value) Value {
	return Value(h.u32(v, offPayload+4))
}

// LibraryName returns the name (typically the filesystem path)
// of a library value.
func (h *Heap) LibraryName(v Value) string {
	return string(h.Bytes(v))
}

func (h *Heap) mapLength(m Value) uint32 {
	return h.u32(m, offPayload)
}

func (h *Heap) mapCapacity(m Value) uint32 {
	return h.u32(m, offPayload+4)
}

func (h *Heap) mapBucket(m Value, i uint32) Value {
	return Value(h.u32(m, offPayload+8+4*i))
}

func (h *Heap) setMapBucket(m Value, i uint32, bucket Value) {
	h.putU32(m, offPayload+8+4*i, uint32(bucket))
}

func (h *Heap) functionIndex(v Value) uint32 {
	return h.u32(v, offPayload+4)
}

func (h *Heap) functionLibrary(v Value) Value {
	return Value(h.u32(v, offPayload))
}

func (h *Heap) libraryIndex(v Value) uint32 {
	return h.u32(v, offPayload)
}
