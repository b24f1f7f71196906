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

// Package bowl implements the core of the bowl runtime:
// the value system, the relocating garbage collector,
// the stack-frame rooting protocol and the native-function ABI.
//
// Values live in a byte-addressed semispace heap and are referred
// to by handles (offsets into the active semispace). Any allocation
// may trigger a collection that relocates every live value; a handle
// is only stable across allocations if it is reachable from a stack
// frame. Native code therefore keeps temporaries in frame registers
// or on the datastack, never in plain variables across an allocation.
package bowl

// Type enumerates the value types of the runtime.
type Type uint8

const (
	SymbolType Type = iota
	ListType
	FunctionType
	MapType
	BooleanType
	NumberType
	StringType
	LibraryType
	VectorType
	ExceptionType
)

var typeNames = [...]string{
	SymbolType:    "symbol",
	ListType:      "list",
	FunctionType:  "function",
	MapType:       "map",
	BooleanType:   "boolean",
	NumberType:    "number",
	StringType:    "string",
	LibraryType:   "library",
	VectorType:    "vector",
	ExceptionType: "exception",
}

// String returns the name of the type as it appears
// in type errors and in the textual form of values.
func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "unknown"
}

// Value is a handle to a heap value: an offset into the active
// semispace, or into the static region if the top bit is set.
// The zero handle, Null, denotes the empty list and nothing else.
type Value uint32

// Null is the empty list.
const Null Value = 0

// staticBit marks handles into the read-only static region,
// which the collector never moves or frees.
const staticBit Value = 1 << 31

// Native is the calling convention of native functions. A native
// function reads its arguments off the datastack of the provided
// frame, pushes its results back, and returns an exception value,
// or Null on success.
type Native func(s *Frame) Value

// Module is the behavior attached to a Library value. Initialize
// runs when the library is loaded; Finalize runs exactly once, when
// the collector finds the library value unreachable. Finalize must
// not allocate: the heap rejects allocations during the sweep.
type Module interface {
	Initialize(s *Frame, library Value) Value
	Finalize(s *Frame, library Value) Value
}
