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

// Package ints provides small integer helpers
// used by the allocator and the collector.
package ints

import (
	"golang.org/x/exp/constraints"
)

// IsAligned returns true if and only if v is an integer multiple of alignment
func IsAligned[T constraints.Unsigned](v, alignment T) bool {
	return v%alignment == 0
}

// AlignDown returns v aligned down to a given alignment.
func AlignDown[T constraints.Unsigned](v, alignment T) T {
	return (v / alignment) * alignment
}

// AlignUp returns v aligned up to a given alignment.
func AlignUp[T constraints.Unsigned](v, alignment T) T {
	return ((v + alignment - 1) / alignment) * alignment
}

// ChunkCount returns the number of chunkSize-sized chunks needed to store n units
func ChunkCount[T constraints.Unsigned](n, chunkSize T) T {
	return (n + chunkSize - 1) / chunkSize
}
