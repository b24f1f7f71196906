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

package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"runtime"

	"github.com/google/uuid"
	"golang.org/x/sys/cpu"
	"sigs.k8s.io/yaml"

	bowl "github.com/bowl-project/bowl-api"
	"github.com/bowl-project/bowl-api/module"
)

var (
	dashboot    string
	dashkernel  string
	dashverbose uint64
	dashconfig  string
	dashheap    uint64
)

func init() {
	flag.StringVar(&dashboot, "boot", "", "path to the boot image")
	flag.StringVar(&dashkernel, "kernel", "", "path to the kernel library")
	flag.Uint64Var(&dashverbose, "verbose", 0, "verbosity level")
	flag.StringVar(&dashconfig, "config", "", "path to a settings file (YAML)")
	flag.Uint64Var(&dashheap, "heap", 0, "initial semispace size in bytes")
}

// config mirrors the CLI settings for the -config file.
type config struct {
	Boot      string `json:"boot"`
	Kernel    string `json:"kernel"`
	Verbosity uint64 `json:"verbosity"`
}

func loadConfig(path string) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var c config
	if err := yaml.Unmarshal(buf, &c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	if dashboot == "" {
		dashboot = c.Boot
	}
	if dashkernel == "" {
		dashkernel = c.Kernel
	}
	if dashverbose == 0 {
		dashverbose = c.Verbosity
	}
	return nil
}

func diagnostics() {
	log.Printf("session %s", uuid.New())
	log.Printf("host %s/%s, %d cpus", runtime.GOOS, runtime.GOARCH, runtime.NumCPU())
	if runtime.GOARCH == "amd64" {
		log.Printf("avx512: %v, avx2: %v", cpu.X86.HasAVX512F, cpu.X86.HasAVX2)
	}
}

// die reports an unhandled exception and exits nonzero.
func die(h *bowl.Heap, exc bowl.Value) {
	fmt.Fprintf(os.Stderr, "unhandled exception: %s\n", h.Show(exc))
	os.Exit(1)
}

func main() {
	log.SetPrefix("bowl: ")
	log.SetFlags(0)
	flag.Parse()
	if dashconfig != "" {
		if err := loadConfig(dashconfig); err != nil {
			log.Fatalf("cannot read config: %v", err)
		}
	}
	bowl.BootPath = dashboot
	bowl.KernelPath = dashkernel
	bowl.Verbosity = dashverbose
	if bowl.Verbosity >= 2 {
		diagnostics()
	}

	h := bowl.NewHeap(uint32(dashheap))
	env := &bowl.Environment{}
	s := h.NewStack(env)

	dictionary, exc := h.Map(s, 16)
	if exc != bowl.Null {
		die(h, exc)
	}
	env.Dictionary = dictionary

	loader := module.NewLoader(module.Plugins{})
	if bowl.KernelPath != "" {
		library, exc := loader.Load(s, bowl.KernelPath)
		if exc != bowl.Null {
			die(h, exc)
		}
		// the kernel stays loaded for the lifetime of the process
		s.Registers[0] = library
		if bowl.Verbosity >= 1 {
			log.Printf("kernel %s loaded", bowl.KernelPath)
		}
	}

	if bowl.BootPath != "" {
		data, err := readImage(bowl.BootPath)
		if err != nil {
			log.Fatalf("cannot read boot image: %v", err)
		}
		image, exc := h.String(s, data)
		if exc != bowl.Null {
			die(h, exc)
		}
		tokens, exc := h.Tokens(s, image)
		if exc != bowl.Null {
			die(h, exc)
		}
		env.Callstack = tokens
		if bowl.Verbosity >= 1 {
			log.Printf("boot image %s: %d tokens", bowl.BootPath, h.Length(env.Callstack))
		}
	}

	// hand control to the kernel's boot word, if it registered one
	name, exc := h.Symbol(s, []byte("boot"))
	if exc != bowl.Null {
		die(h, exc)
	}
	boot := h.MapGetOrElse(env.Dictionary, name, h.Sentinel())
	if boot != h.Sentinel() {
		if exc := h.Call(s, boot); exc != bowl.Null {
			die(h, exc)
		}
	} else if bowl.Verbosity >= 1 {
		log.Printf("no boot word registered, exiting")
	}
}
