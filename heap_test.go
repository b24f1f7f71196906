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
	"testing"

	"github.com/bowl-project/bowl-api/ints"
)

func newTestStack(h *Heap) *Frame {
	return h.NewStack(&Environment{})
}

// must fails the test on a non-null exception.
func must(t *testing.T, h *Heap, exc Value) {
	t.Helper()
	if exc != Null {
		t.Fatalf("unexpected exception: %s", h.Show(exc))
	}
}

func TestCollectSurvival(t *testing.T) {
	h := NewHeap(0)
	s := newTestStack(h)
	f := s.NewFrame(Null, Null, Null)
	str, exc := h.String(f, []byte("hello"))
	must(t, h, exc)
	f.Registers[0] = str
	must(t, h, h.Collect(f))
	if got := h.StringToGo(f.Registers[0]); got != "hello" {
		t.Fatalf("string did not survive collection: %q", got)
	}
}

func TestAllocationSoundness(t *testing.T) {
	h := NewHeap(0)
	s := newTestStack(h)
	f := s.NewFrame(Null, Null, Null)
	const n = 200
	// build the list 199, ..., 1, 0 with a forced collection after
	// each element is consed on
	for i := 0; i < n; i++ {
		num, exc := h.Number(f, float64(i))
		must(t, h, exc)
		cons, exc := h.List(f, num, f.Registers[0])
		must(t, h, exc)
		f.Registers[0] = cons
		must(t, h, h.Collect(f))
	}
	if got := h.Length(f.Registers[0]); got != n {
		t.Fatalf("length %d, want %d", got, n)
	}
	cur := f.Registers[0]
	for i := n - 1; i >= 0; i-- {
		if got := h.NumberValue(h.Head(cur)); got != float64(i) {
			t.Fatalf("element %d is %v", i, got)
		}
		cur = h.Tail(cur)
	}
}

func TestForwardingDiscipline(t *testing.T) {
	h := NewHeap(0)
	s := newTestStack(h)
	f := s.NewFrame(Null, Null, Null)
	for i := 0; i < 32; i++ {
		sym, exc := h.Symbol(f, []byte("name"))
		must(t, h, exc)
		cons, exc := h.List(f, sym, f.Registers[0])
		must(t, h, exc)
		f.Registers[0] = cons
	}
	must(t, h, h.Collect(f))
	// every survivor in the active semispace has a clear forwarding
	// slot, and the live region is exactly the survivors
	count := 0
	for off := uint32(valueAlign); off < h.ptr; {
		if fwd := binary.LittleEndian.Uint32(h.space[off+offForward:]); fwd != 0 {
			t.Fatalf("survivor at %d carries forwarding %d", off, fwd)
		}
		off += ints.AlignUp(sizeAt(h.space, off), valueAlign)
		count++
	}
	// 32 symbols and 32 conses
	if count != 64 {
		t.Fatalf("%d values in the active semispace, want 64", count)
	}
}

func TestExactFitAllocation(t *testing.T) {
	h := NewHeap(4096)
	s := newTestStack(h)
	f := s.NewFrame(Null, Null, Null)
	sym, exc := h.Symbol(f, []byte("witness"))
	must(t, h, exc)
	f.Registers[0] = sym
	// a string whose record exactly fills the remaining bytes must
	// be carved out without a collection
	remaining := uint32(len(h.space)) - h.ptr
	str, exc := h.String(f, make([]byte, remaining-headerSize-4))
	must(t, h, exc)
	if f.Registers[0] != sym {
		t.Fatal("unexpected collection moved the witness")
	}
	if h.ptr != uint32(len(h.space)) {
		t.Fatalf("heap not exactly full: %d of %d", h.ptr, len(h.space))
	}
	if h.Length(str) != uint64(remaining-headerSize-4) {
		t.Fatal("string truncated")
	}
}

func TestHeapGrowth(t *testing.T) {
	h := NewHeap(256)
	s := newTestStack(h)
	f := s.NewFrame(Null, Null, Null)
	str, exc := h.String(f, make([]byte, 300))
	must(t, h, exc)
	if h.Length(str) != 300 {
		t.Fatalf("length %d", h.Length(str))
	}
	if len(h.space) != 512 || len(h.other) != 512 {
		t.Fatalf("semispaces %d/%d, want 512/512", len(h.space), len(h.other))
	}
}

func TestOutOfHeap(t *testing.T) {
	h := NewHeap(256)
	s := newTestStack(h)
	_, exc := h.String(s, make([]byte, 1<<16))
	if exc != h.OutOfHeap() {
		t.Fatalf("expected the out-of-heap exception, got %s", h.Show(exc))
	}
}

func TestDatastackSharedAcrossFrames(t *testing.T) {
	h := NewHeap(0)
	env := &Environment{}
	s := h.NewStack(env)
	num, exc := h.Number(s, 42)
	must(t, h, exc)
	callee := s.NewFrame(Null, Null, Null)
	must(t, h, callee.Push(num))
	// the push through the callee's indirect slot is visible in the
	// caller's environment, across a collection
	must(t, h, h.Collect(callee))
	if env.Datastack == Null {
		t.Fatal("datastack empty in the caller")
	}
	if got := h.NumberValue(h.Head(env.Datastack)); got != 42 {
		t.Fatalf("top of datastack is %v", got)
	}
}

func TestCloneValue(t *testing.T) {
	h := NewHeap(0)
	s := newTestStack(h)
	f := s.NewFrame(Null, Null, Null)
	str, exc := h.String(f, []byte("payload"))
	must(t, h, exc)
	f.Registers[0] = str
	clone, exc := h.Clone(f, f.Registers[0])
	must(t, h, exc)
	if clone == f.Registers[0] {
		t.Fatal("clone aliases the original")
	}
	if !h.Equal(clone, f.Registers[0]) {
		t.Fatal("clone differs from the original")
	}
}

type countingModule struct {
	finalized int
	fail      bool
	heap      *Heap
}

func (m *countingModule) Initialize(s *Frame, library Value) Value { return Null }

func (m *countingModule) Finalize(s *Frame, library Value) Value {
	m.finalized++
	if m.fail {
		return m.heap.OutOfHeap()
	}
	return Null
}

func TestLibraryFinalization(t *testing.T) {
	h := NewHeap(0)
	s := newTestStack(h)
	f := s.NewFrame(Null, Null, Null)
	m := &countingModule{heap: h}
	lib, exc := h.Library(f, "kernel.so", m)
	must(t, h, exc)
	f.Registers[0] = lib
	must(t, h, h.Collect(f))
	if m.finalized != 0 {
		t.Fatal("live library was finalized")
	}
	f.Registers[0] = Null
	must(t, h, h.Collect(f))
	if m.finalized != 1 {
		t.Fatalf("finalized %d times, want 1", m.finalized)
	}
	must(t, h, h.Collect(f))
	if m.finalized != 1 {
		t.Fatalf("finalize ran again: %d", m.finalized)
	}
}

func TestLibraryFinalizationFailure(t *testing.T) {
	h := NewHeap(0)
	s := newTestStack(h)
	f := s.NewFrame(Null, Null, Null)
	m := &countingModule{heap: h, fail: true}
	lib, exc := h.Library(f, "broken.so", m)
	must(t, h, exc)
	f.Registers[0] = lib
	f.Registers[0] = Null
	if exc := h.Collect(f); exc != h.FinalizationFailure() {
		t.Fatalf("expected the finalization-failure exception, got %s", h.Show(exc))
	}
	if m.finalized != 1 {
		t.Fatalf("finalized %d times, want 1", m.finalized)
	}
}

func TestSentinelsSurviveCollection(t *testing.T) {
	h := NewHeap(0)
	s := newTestStack(h)
	sentinel := h.Sentinel()
	outOfHeap := h.OutOfHeap()
	must(t, h, h.Collect(s))
	if h.Sentinel() != sentinel || h.OutOfHeap() != outOfHeap {
		t.Fatal("static handles changed across collection")
	}
	if h.TypeOf(h.OutOfHeap()) != ExceptionType {
		t.Fatal("out-of-heap sentinel is not an exception")
	}
	if got := h.StringToGo(h.ExceptionMessage(h.OutOfHeap())); got != "out of heap memory" {
		t.Fatalf("unexpected message %q", got)
	}
}
