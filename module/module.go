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

// Package module loads native modules into the runtime. A module
// exposes an initialize hook, run when the module is loaded, and a
// finalize hook, run exactly once when the collector finds the
// owning library value unreachable.
//
// Two resolvers are provided: Plugins resolves filesystem paths to
// Go plugins, and Registry resolves names to modules linked into
// the process.
package module

import (
	"fmt"
	"plugin"

	bowl "github.com/bowl-project/bowl-api"
)

// Hook is the signature of the two functions a module exports.
type Hook func(s *bowl.Frame, library bowl.Value) bowl.Value

// Resolver turns a path into a module implementation.
type Resolver interface {
	Resolve(path string) (bowl.Module, error)
}

// Loader tracks which modules are loaded and owns their lifecycle.
// Loading yields a library value; when that value dies, the module
// is finalized and the loader forgets the path, so IsLoaded turns
// false again.
type Loader struct {
	resolver Resolver
	loaded   map[string]bool
}

// NewLoader creates a loader using the given resolver.
func NewLoader(r Resolver) *Loader {
	return &Loader{resolver: r, loaded: make(map[string]bool)}
}

// IsLoaded reports whether the module at path is currently loaded.
func (l *Loader) IsLoaded(path string) bool {
	return l.loaded[path]
}

// Load resolves the module, creates the library value that owns it
// and runs the initialize hook. If initialization raises, the module
// is unloaded again and the exception propagates. The module stays
// alive while the returned library value is reachable, directly or
// through the function values it registered; once it is unreachable
// the next collection finalizes it.
func (l *Loader) Load(s *bowl.Frame, path string) (bowl.Value, bowl.Value) {
	h := s.Heap()
	if l.loaded[path] {
		return bowl.Null, h.FormatException(s, "module '%s' is already loaded", path)
	}
	m, err := l.resolver.Resolve(path)
	if err != nil {
		return bowl.Null, h.FormatException(s, "failed to load module '%s': %v", path, err)
	}
	f := s.NewFrame(bowl.Null, bowl.Null, bowl.Null)
	library, exc := h.Library(f, path, &loaded{Module: m, loader: l, path: path})
	if exc != bowl.Null {
		return bowl.Null, exc
	}
	f.Registers[0] = library
	l.loaded[path] = true
	if exc := m.Initialize(f, f.Registers[0]); exc != bowl.Null {
		// unload immediately; the finalize hook is not run for a
		// module that never finished initializing
		h.ReleaseLibrary(f.Registers[0])
		delete(l.loaded, path)
		return bowl.Null, exc
	}
	return f.Registers[0], bowl.Null
}

// loaded wraps a module so that the loader's bookkeeping is dropped
// when the collector finalizes it.
type loaded struct {
	bowl.Module
	loader *Loader
	path   string
}

func (m *loaded) Finalize(s *bowl.Frame, library bowl.Value) bowl.Value {
	delete(m.loader.loaded, m.path)
	return m.Module.Finalize(s, library)
}

// Funcs is a Module built from two plain hooks.
type Funcs struct {
	Init Hook
	Fini Hook
}

func (m Funcs) Initialize(s *bowl.Frame, library bowl.Value) bowl.Value {
	if m.Init == nil {
		return bowl.Null
	}
	return m.Init(s, library)
}

func (m Funcs) Finalize(s *bowl.Frame, library bowl.Value) bowl.Value {
	if m.Fini == nil {
		return bowl.Null
	}
	return m.Fini(s, library)
}

// Registry resolves module names to implementations linked into the
// process, for statically built kernels and for tests.
type Registry struct {
	modules map[string]bowl.Module
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{modules: make(map[string]bowl.Module)}
}

// Add registers a module under a name. An existing entry is
// overwritten.
func (r *Registry) Add(name string, m bowl.Module) {
	r.modules[name] = m
}

// Resolve implements Resolver.
func (r *Registry) Resolve(path string) (bowl.Module, error) {
	m, ok := r.modules[path]
	if !ok {
		return nil, fmt.Errorf("unknown module %q", path)
	}
	return m, nil
}

// Plugins resolves paths to Go plugins exporting ModuleInitialize
// and ModuleFinalize. Plugins cannot be unmapped from the process;
// unloading a plugin-backed module runs its finalize hook and drops
// the loader's bookkeeping, but the object stays mapped.
type Plugins struct{}

// Resolve implements Resolver.
func (Plugins) Resolve(path string) (bowl.Module, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, err
	}
	init, err := lookupHook(p, "ModuleInitialize")
	if err != nil {
		return nil, err
	}
	fini, err := lookupHook(p, "ModuleFinalize")
	if err != nil {
		return nil, err
	}
	return Funcs{Init: init, Fini: fini}, nil
}

func lookupHook(p *plugin.Plugin, name string) (Hook, error) {
	sym, err := p.Lookup(name)
	if err != nil {
		return nil, err
	}
	hook, ok := sym.(func(*bowl.Frame, bowl.Value) bowl.Value)
	if !ok {
		return nil, fmt.Errorf("symbol %s has type %T, not a module hook", name, sym)
	}
	return hook, nil
}
