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

// FunctionEntry pairs a dictionary name with a native function,
// for bulk registration by modules.
type FunctionEntry struct {
	Name     string
	Function Native
}

// RegisterFunction binds a native function in the dictionary of the
// current scope under the given name. The library may be Null if the
// function belongs to no library. An existing binding of the same
// name is overwritten. It returns an exception value, or Null.
func RegisterFunction(s *Frame, name string, library Value, function Native) Value {
	if s.Dictionary == nil {
		return s.heap.FormatException(s, "no dictionary in the current scope to register '%s' in", name)
	}
	h := s.heap
	f := s.NewFrame(library, Null, Null)
	symbol, exc := h.Symbol(f, []byte(name))
	if exc != Null {
		return exc
	}
	f.Registers[1] = symbol
	value, exc := h.Function(f, f.Registers[0], function)
	if exc != Null {
		return exc
	}
	f.Registers[2] = value
	dictionary, exc := h.MapPut(f, *f.Dictionary, f.Registers[1], f.Registers[2])
	if exc != Null {
		return exc
	}
	*f.Dictionary = dictionary
	return Null
}

// Register binds a single entry on behalf of a library.
func Register(s *Frame, library Value, entry FunctionEntry) Value {
	return RegisterFunction(s, entry.Name, library, entry.Function)
}

// RegisterAll binds every entry on behalf of a library, stopping at
// the first exception.
func RegisterAll(s *Frame, library Value, entries []FunctionEntry) Value {
	f := s.NewFrame(library, Null, Null)
	for _, entry := range entries {
		if exc := RegisterFunction(f, entry.Name, f.Registers[0], entry.Function); exc != Null {
			return exc
		}
	}
	return Null
}
