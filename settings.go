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

// Process-wide settings. They are written once at startup by the
// CLI front-end and read thereafter.
var (
	// BootPath is the path to the boot image.
	BootPath string

	// KernelPath is the path to the kernel library.
	KernelPath string

	// Verbosity is the diagnostic verbosity level; zero is silent.
	Verbosity uint64
)
