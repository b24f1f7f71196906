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
	"bytes"
	"encoding/binary"
	"math"

	"github.com/dchest/siphash"
)

// fixed siphash keys; hashes only need to be stable within a process
const (
	hashK0 = 0x736c6f74746564
	hashK1 = 0x64697370656e73
)

// hashZeroFold replaces a computed hash of 0, since 0 is reserved
// for "not yet computed" in the header.
const hashZeroFold = 0x9e3779b97f4a7c15

// Hash returns the hash of the value. Hashes depend only on the
// logical value, so they are stable across collections; equal
// values hash equal. The result is memoized in the value header.
func (h *Heap) Hash(v Value) uint64 {
	if v == Null {
		return siphash.Hash(hashK0, hashK1, []byte{byte(ListType)})
	}
	if cached := h.u64(v, offHash); cached != 0 {
		return cached
	}
	hash := h.computeHash(v)
	if hash == 0 {
		hash = hashZeroFold
	}
	h.putU64(v, offHash, hash)
	return hash
}

func (h *Heap) computeHash(v Value) uint64 {
	t := h.TypeOf(v)
	switch t {
	case SymbolType, StringType, LibraryType:
		payload := h.payloadBytes(v)
		buf := make([]byte, 1+len(payload))
		buf[0] = byte(t)
		copy(buf[1:], payload)
		return siphash.Hash(hashK0, hashK1, buf)
	case NumberType:
		value := h.NumberValue(v)
		if value == 0 {
			value = 0 // fold -0.0 into +0.0
		}
		var buf [9]byte
		buf[0] = byte(t)
		binary.LittleEndian.PutUint64(buf[1:], math.Float64bits(value))
		return siphash.Hash(hashK0, hashK1, buf[:])
	case BooleanType:
		var b byte
		if h.BooleanValue(v) {
			b = 1
		}
		return siphash.Hash(hashK0, hashK1, []byte{byte(t), b})
	case ListType:
		acc := siphash.Hash(hashK0, hashK1, []byte{byte(t)})
		for cur := v; cur != Null; cur = h.Tail(cur) {
			acc = mix(acc, h.Hash(h.Head(cur)))
		}
		return acc
	case VectorType:
		acc := siphash.Hash(hashK0, hashK1, []byte{byte(t)})
		length := uint32(h.Length(v))
		for i := uint32(0); i < length; i++ {
			acc = mix(acc, h.Hash(h.VectorElement(v, i)))
		}
		return acc
	case MapType:
		// pair hashes are combined with xor so that the result does
		// not depend on bucket layout or capacity
		var acc uint64
		capacity := h.mapCapacity(v)
		for i := uint32(0); i < capacity; i++ {
			for cur := h.mapBucket(v, i); cur != Null; cur = h.Tail(h.Tail(cur)) {
				acc ^= mix(h.Hash(h.Head(cur)), h.Hash(h.Head(h.Tail(cur))))
			}
		}
		var buf [17]byte
		buf[0] = byte(t)
		binary.LittleEndian.PutUint64(buf[1:], acc)
		binary.LittleEndian.PutUint64(buf[9:], uint64(h.mapLength(v)))
		return siphash.Hash(hashK0, hashK1, buf[:])
	case FunctionType:
		return mix(siphash.Hash(hashK0, hashK1, []byte{byte(t)}),
			mix(h.Hash(h.functionLibrary(v)), uint64(h.functionIndex(v))))
	case ExceptionType:
		return mix(siphash.Hash(hashK0, hashK1, []byte{byte(t)}),
			mix(h.Hash(h.ExceptionCause(v)), h.Hash(h.ExceptionMessage(v))))
	}
	return 0
}

// mix combines two hashes into one with siphash.
func mix(a, b uint64) uint64 {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[:], a)
	binary.LittleEndian.PutUint64(buf[8:], b)
	return siphash.Hash(hashK0, hashK1, buf[:])
}

// Equal reports structural equality of two values. Identical
// handles, including the preallocated sentinels, are always equal.
func (h *Heap) Equal(a, b Value) bool {
	if a == b {
		return true
	}
	if a == Null || b == Null {
		return false
	}
	t := h.TypeOf(a)
	if t != h.TypeOf(b) {
		return false
	}
	switch t {
	case SymbolType, StringType:
		return bytes.Equal(h.payloadBytes(a), h.payloadBytes(b))
	case NumberType:
		return h.NumberValue(a) == h.NumberValue(b)
	case BooleanType:
		return h.BooleanValue(a) == h.BooleanValue(b)
	case ListType:
		if h.Length(a) != h.Length(b) {
			return false
		}
		for a != Null {
			if !h.Equal(h.Head(a), h.Head(b)) {
				return false
			}
			a, b = h.Tail(a), h.Tail(b)
		}
		return true
	case VectorType:
		length := h.Length(a)
		if length != h.Length(b) {
			return false
		}
		for i := uint32(0); i < uint32(length); i++ {
			if !h.Equal(h.VectorElement(a, i), h.VectorElement(b, i)) {
				return false
			}
		}
		return true
	case MapType:
		return h.mapLength(a) == h.mapLength(b) && h.MapSubsetOf(a, b)
	case FunctionType:
		return h.functionIndex(a) == h.functionIndex(b) &&
			h.Equal(h.functionLibrary(a), h.functionLibrary(b))
	case LibraryType:
		return h.libraryIndex(a) == h.libraryIndex(b)
	case ExceptionType:
		return h.Equal(h.ExceptionCause(a), h.ExceptionCause(b)) &&
			h.Equal(h.ExceptionMessage(a), h.ExceptionMessage(b))
	}
	return false
}
