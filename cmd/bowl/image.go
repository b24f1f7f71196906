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
	"bytes"
	"log"
	"os"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/crypto/blake2b"

	bowl "github.com/bowl-project/bowl-api"
)

// zstdMagic is the frame magic of zstd-compressed boot images.
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// readImage reads a boot image from disk, transparently
// decompressing zstd-compressed images.
func readImage(path string) ([]byte, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	if bowl.Verbosity >= 2 {
		digest := blake2b.Sum256(data)
		log.Printf("boot image %s: %d bytes, blake2b %x", path, len(data), digest[:8])
	}
	return data, nil
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !bytes.HasPrefix(data, zstdMagic) {
		return data, nil
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(data, nil)
}
