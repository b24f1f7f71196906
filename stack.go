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
	"fmt"
)

// Frame is a single stack frame. Frames form a chain through their
// previous pointer; the collector walks the chain and treats the
// three registers and the three indirect slots of every frame as
// roots. The dictionary, callstack and datastack slots point into
// an enclosing scope, so a callee that pushes onto the datastack is
// observed by the caller.
type Frame struct {
	previous *Frame
	heap     *Heap

	// Registers are general-purpose rooted temporaries. A value held
	// only in a plain variable is invisible to the collector and may
	// be relocated by the next allocation.
	Registers [3]Value

	Dictionary *Value
	Callstack  *Value
	Datastack  *Value
}

// Environment owns the dictionary, callstack and datastack slots
// that the frames of a stack borrow.
type Environment struct {
	Dictionary Value
	Callstack  Value
	Datastack  Value
}

// NewStack creates the root frame of a fresh stack whose indirect
// slots borrow the environment's.
func (h *Heap) NewStack(env *Environment) *Frame {
	return &Frame{
		heap:       h,
		Dictionary: &env.Dictionary,
		Callstack:  &env.Callstack,
		Datastack:  &env.Datastack,
	}
}

// NewFrame pushes a frame that inherits the caller's indirect slots.
// The arguments become the initial register contents.
func (f *Frame) NewFrame(a, b, c Value) *Frame {
	return &Frame{
		previous:   f,
		heap:       f.heap,
		Registers:  [3]Value{a, b, c},
		Dictionary: f.Dictionary,
		Callstack:  f.Callstack,
		Datastack:  f.Datastack,
	}
}

// EmptyFrame pushes a frame whose indirect slots are unset, for
// contexts where dictionary, callstack and datastack do not exist
// yet.
func (f *Frame) EmptyFrame() *Frame {
	return &Frame{previous: f, heap: f.heap}
}

// Heap returns the heap this frame allocates from.
func (f *Frame) Heap() *Heap { return f.heap }

// Previous returns the caller's frame, or nil for the root.
func (f *Frame) Previous() *Frame { return f.previous }

// Pop removes the top of the datastack. If the datastack is empty
// it returns a stack-underflow exception naming the caller.
func (f *Frame) Pop(caller string) (Value, Value) {
	if f.Datastack == nil || *f.Datastack == Null {
		return Null, f.heap.FormatException(f, "stack underflow in function '%s'", caller)
	}
	v := f.heap.Head(*f.Datastack)
	*f.Datastack = f.heap.Tail(*f.Datastack)
	return v, Null
}

// Push puts a value on top of the datastack. It returns an
// exception value, or Null on success.
func (f *Frame) Push(v Value) Value {
	if f.Datastack == nil {
		return f.heap.FormatException(f, "no datastack in the current scope")
	}
	cons, exc := f.heap.List(f, v, *f.Datastack)
	if exc != Null {
		return exc
	}
	*f.Datastack = cons
	return Null
}

// AssertType checks that the value has the expected type, with the
// convention that the null handle satisfies the list type and
// nothing else. On mismatch it returns a type-error exception
// naming the caller.
func (f *Frame) AssertType(v Value, expected Type, caller string) Value {
	if (v == Null && expected != ListType) || (v != Null && f.heap.TypeOf(v) != expected) {
		return f.heap.FormatException(f,
			"argument of illegal type '%s' in function '%s' (expected type '%s')",
			f.heap.TypeOf(v), caller, expected)
	}
	return Null
}

// FormatException builds an exception whose message is the formatted
// string and whose cause is Null. If even that allocation fails, the
// allocator's exception (the preallocated out-of-heap or
// finalization-failure exception) is returned, so the result is
// always an exception value.
func (h *Heap) FormatException(s *Frame, format string, args ...any) Value {
	message := fmt.Sprintf(format, args...)
	f := s.NewFrame(Null, Null, Null)
	str, exc := h.String(f, []byte(message))
	if exc != Null {
		return exc
	}
	e, exc := h.Exception(f, Null, str)
	if exc != Null {
		return exc
	}
	return e
}
