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

// Maps are open-hashed: a fixed array of buckets, each bucket a list
// whose even-indexed elements are keys and odd-indexed elements the
// associated values. All mutating operations return fresh maps and
// leave their input untouched; unmodified buckets are shared between
// the input and the result.

// maxLoadNum/maxLoadDen is the load factor beyond which a map is
// rehashed into twice the capacity.
const (
	maxLoadNum = 3
	maxLoadDen = 4
)

func (h *Heap) bucketIndex(m, key Value) uint32 {
	return uint32(h.Hash(key) % uint64(h.mapCapacity(m)))
}

// mapFind returns the pair position of key within its bucket,
// or -1 if the key is absent. It does not allocate.
func (h *Heap) mapFind(m, key Value) int {
	if h.mapCapacity(m) == 0 {
		return -1
	}
	pos := 0
	for cur := h.mapBucket(m, h.bucketIndex(m, key)); cur != Null; cur = h.Tail(h.Tail(cur)) {
		if h.Equal(h.Head(cur), key) {
			return pos
		}
		pos++
	}
	return -1
}

// MapGetOrElse returns the value associated with key, or otherwise
// if the key is absent. Passing the preallocated sentinel as the
// default lets callers distinguish an absent binding from a present
// one whose value equals their default. It does not allocate.
func (h *Heap) MapGetOrElse(m, key, otherwise Value) Value {
	if m == Null || h.TypeOf(m) != MapType || h.mapCapacity(m) == 0 {
		return otherwise
	}
	for cur := h.mapBucket(m, h.bucketIndex(m, key)); cur != Null; cur = h.Tail(h.Tail(cur)) {
		if h.Equal(h.Head(cur), key) {
			return h.Head(h.Tail(cur))
		}
	}
	return otherwise
}

// MapSubsetOf reports whether every key of subset is bound in
// superset to an equal value. It does not allocate.
func (h *Heap) MapSubsetOf(superset, subset Value) bool {
	if subset == Null || h.TypeOf(subset) != MapType {
		return false
	}
	capacity := h.mapCapacity(subset)
	for i := uint32(0); i < capacity; i++ {
		for cur := h.mapBucket(subset, i); cur != Null; cur = h.Tail(h.Tail(cur)) {
			got := h.MapGetOrElse(superset, h.Head(cur), h.sentinel)
			if !h.Equal(got, h.Head(h.Tail(cur))) {
				return false
			}
		}
	}
	return true
}

// MapPut returns a fresh map in which key is bound to value. An
// existing binding is replaced in place within its bucket; a new
// binding is prepended. The map is rehashed into twice the capacity
// when the insertion pushes it past the load factor.
func (h *Heap) MapPut(s *Frame, m, key, value Value) (Value, Value) {
	if exc := s.AssertType(m, MapType, "map-put"); exc != Null {
		return Null, exc
	}
	f := s.NewFrame(m, key, value)
	length := h.mapLength(m)
	capacity := h.mapCapacity(m)
	newLength := length
	if h.mapFind(m, key) < 0 {
		newLength++
	}
	if capacity == 0 || newLength*maxLoadDen > capacity*maxLoadNum {
		grown := capacity * 2
		if grown == 0 {
			grown = 4
		}
		gm, exc := h.mapGrow(f, f.Registers[0], grown)
		if exc != Null {
			return Null, exc
		}
		f.Registers[0] = gm
	}
	return h.mapInsert(f, f.Registers[0], f.Registers[1], f.Registers[2])
}

// mapGrow rehashes every binding of m into a fresh map with the
// given bucket count.
func (h *Heap) mapGrow(s *Frame, m Value, capacity uint32) (Value, Value) {
	f := s.NewFrame(m, Null, Null)
	nm, exc := h.Map(f, capacity)
	if exc != Null {
		return Null, exc
	}
	f.Registers[1] = nm
	buckets := h.mapCapacity(f.Registers[0])
	for i := uint32(0); i < buckets; i++ {
		f.Registers[2] = h.mapBucket(f.Registers[0], i)
		for f.Registers[2] != Null {
			key := h.Head(f.Registers[2])
			value := h.Head(h.Tail(f.Registers[2]))
			nm, exc := h.mapInsert(f, f.Registers[1], key, value)
			if exc != Null {
				return Null, exc
			}
			f.Registers[1] = nm
			f.Registers[2] = h.Tail(h.Tail(f.Registers[2]))
		}
	}
	return f.Registers[1], Null
}

// mapInsert binds key to value in a fresh copy of m without
// checking the load factor.
func (h *Heap) mapInsert(s *Frame, m, key, value Value) (Value, Value) {
	f := s.NewFrame(m, key, value)
	capacity := h.mapCapacity(m)
	length := h.mapLength(m)
	bucket := h.bucketIndex(m, key)
	pos := h.mapFind(m, key)

	nm, exc := h.Alloc(f, MapType, 4*capacity)
	if exc != Null {
		return Null, exc
	}
	newLength := length
	if pos < 0 {
		newLength++
	}
	h.putU32(nm, offPayload, newLength)
	h.putU32(nm, offPayload+4, capacity)
	for i := uint32(0); i < capacity; i++ {
		h.setMapBucket(nm, i, h.mapBucket(f.Registers[0], i))
	}

	// rebuild the target bucket; g roots the fresh map, the reversed
	// prefix accumulator and the walk cursor
	g := f.NewFrame(nm, Null, h.mapBucket(f.Registers[0], bucket))
	for i := 0; i < pos; i++ {
		t, exc := h.List(g, h.Head(h.Tail(g.Registers[2])), g.Registers[1])
		if exc != Null {
			return Null, exc
		}
		g.Registers[1] = t
		t, exc = h.List(g, h.Head(g.Registers[2]), g.Registers[1])
		if exc != Null {
			return Null, exc
		}
		g.Registers[1] = t
		g.Registers[2] = h.Tail(h.Tail(g.Registers[2]))
	}
	rest := g.Registers[2]
	if pos >= 0 {
		rest = h.Tail(h.Tail(rest)) // drop the replaced pair
	}
	t, exc := h.List(g, f.Registers[2], rest)
	if exc != Null {
		return Null, exc
	}
	t, exc = h.List(g, f.Registers[1], t)
	if exc != Null {
		return Null, exc
	}
	g.Registers[2] = t
	for g.Registers[1] != Null {
		t, exc := h.List(g, h.Head(h.Tail(g.Registers[1])), g.Registers[2])
		if exc != Null {
			return Null, exc
		}
		g.Registers[2] = t
		t, exc = h.List(g, h.Head(g.Registers[1]), g.Registers[2])
		if exc != Null {
			return Null, exc
		}
		g.Registers[2] = t
		g.Registers[1] = h.Tail(h.Tail(g.Registers[1]))
	}
	h.setMapBucket(g.Registers[0], bucket, g.Registers[2])
	return g.Registers[0], Null
}

// MapDelete returns a map in which key is unbound. If the key is
// absent the input map itself is returned.
func (h *Heap) MapDelete(s *Frame, m, key Value) (Value, Value) {
	if exc := s.AssertType(m, MapType, "map-delete"); exc != Null {
		return Null, exc
	}
	pos := h.mapFind(m, key)
	if pos < 0 {
		return m, Null
	}
	f := s.NewFrame(m, key, Null)
	capacity := h.mapCapacity(m)
	bucket := h.bucketIndex(m, key)

	nm, exc := h.Alloc(f, MapType, 4*capacity)
	if exc != Null {
		return Null, exc
	}
	h.putU32(nm, offPayload, h.mapLength(f.Registers[0])-1)
	h.putU32(nm, offPayload+4, capacity)
	for i := uint32(0); i < capacity; i++ {
		h.setMapBucket(nm, i, h.mapBucket(f.Registers[0], i))
	}

	g := f.NewFrame(nm, Null, h.mapBucket(f.Registers[0], bucket))
	for i := 0; i < pos; i++ {
		t, exc := h.List(g, h.Head(h.Tail(g.Registers[2])), g.Registers[1])
		if exc != Null {
			return Null, exc
		}
		g.Registers[1] = t
		t, exc = h.List(g, h.Head(g.Registers[2]), g.Registers[1])
		if exc != Null {
			return Null, exc
		}
		g.Registers[1] = t
		g.Registers[2] = h.Tail(h.Tail(g.Registers[2]))
	}
	g.Registers[2] = h.Tail(h.Tail(g.Registers[2])) // drop the pair
	for g.Registers[1] != Null {
		t, exc := h.List(g, h.Head(h.Tail(g.Registers[1])), g.Registers[2])
		if exc != Null {
			return Null, exc
		}
		g.Registers[2] = t
		t, exc = h.List(g, h.Head(g.Registers[1]), g.Registers[2])
		if exc != Null {
			return Null, exc
		}
		g.Registers[2] = t
		g.Registers[1] = h.Tail(h.Tail(g.Registers[1]))
	}
	h.setMapBucket(g.Registers[0], bucket, g.Registers[2])
	return g.Registers[0], Null
}

// MapMerge folds the bindings of b into a; on key collisions the
// binding from b wins.
func (h *Heap) MapMerge(s *Frame, a, b Value) (Value, Value) {
	if exc := s.AssertType(a, MapType, "map-merge"); exc != Null {
		return Null, exc
	}
	if exc := s.AssertType(b, MapType, "map-merge"); exc != Null {
		return Null, exc
	}
	f := s.NewFrame(a, b, Null)
	capacity := h.mapCapacity(b)
	for i := uint32(0); i < capacity; i++ {
		f.Registers[2] = h.mapBucket(f.Registers[1], i)
		for f.Registers[2] != Null {
			key := h.Head(f.Registers[2])
			value := h.Head(h.Tail(f.Registers[2]))
			nm, exc := h.MapPut(f, f.Registers[0], key, value)
			if exc != Null {
				return Null, exc
			}
			f.Registers[0] = nm
			f.Registers[2] = h.Tail(h.Tail(f.Registers[2]))
		}
	}
	return f.Registers[0], Null
}
