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
	"math"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeNames(t *testing.T) {
	h := NewHeap(0)
	s := newTestStack(h)
	f := s.NewFrame(Null, Null, Null)

	assert.Equal(t, "list", h.TypeOf(Null).String(), "the null handle is the empty list")
	v := sym(t, f, "name")
	assert.Equal(t, "symbol", h.TypeOf(v).String())
	v, exc := h.Boolean(f, true)
	must(t, h, exc)
	assert.Equal(t, "boolean", h.TypeOf(v).String())
	v, exc = h.String(f, []byte("text"))
	must(t, h, exc)
	assert.Equal(t, "string", h.TypeOf(v).String())
}

func TestEqualityBasics(t *testing.T) {
	h := NewHeap(0)
	s := newTestStack(h)
	f := s.NewFrame(Null, Null, Null)

	f.Registers[0] = sym(t, f, "abc")
	f.Registers[1] = sym(t, f, "abc")
	assert.True(t, h.Equal(f.Registers[0], f.Registers[1]))

	// a string never equals a symbol with the same bytes
	str, exc := h.String(f, []byte("abc"))
	must(t, h, exc)
	assert.False(t, h.Equal(f.Registers[0], str))

	f.Registers[0] = num(t, f, 2.5)
	f.Registers[1] = num(t, f, 2.5)
	assert.True(t, h.Equal(f.Registers[0], f.Registers[1]))
	// two distinct NaN values are not equal
	f.Registers[0] = num(t, f, math.NaN())
	f.Registers[1] = num(t, f, math.NaN())
	assert.False(t, h.Equal(f.Registers[0], f.Registers[1]))
}

func TestHashEqualityConsistency(t *testing.T) {
	h := NewHeap(0)
	s := newTestStack(h)
	f := s.NewFrame(Null, Null, Null)

	f.Registers[0] = sym(t, f, "same")
	f.Registers[1] = sym(t, f, "same")
	require.True(t, h.Equal(f.Registers[0], f.Registers[1]))
	assert.Equal(t, h.Hash(f.Registers[0]), h.Hash(f.Registers[1]))

	// negative zero and positive zero are equal, so they hash equal
	f.Registers[0] = num(t, f, 0.0)
	f.Registers[1] = num(t, f, math.Copysign(0, -1))
	require.True(t, h.Equal(f.Registers[0], f.Registers[1]))
	assert.Equal(t, h.Hash(f.Registers[0]), h.Hash(f.Registers[1]))

	// maps with equal contents but different shape hash equal
	m, exc := h.Map(f, 2)
	must(t, h, exc)
	f.Registers[0] = m
	m, exc = h.Map(f, 8)
	must(t, h, exc)
	f.Registers[1] = m
	f.Registers[2] = sym(t, f, "k")
	m, exc = h.MapPut(f, f.Registers[0], f.Registers[2], num(t, f, 1))
	must(t, h, exc)
	f.Registers[0] = m
	m, exc = h.MapPut(f, f.Registers[1], f.Registers[2], num(t, f, 1))
	must(t, h, exc)
	f.Registers[1] = m
	require.True(t, h.Equal(f.Registers[0], f.Registers[1]))
	assert.Equal(t, h.Hash(f.Registers[0]), h.Hash(f.Registers[1]))
}

func TestHashStableAcrossCollection(t *testing.T) {
	h := NewHeap(0)
	s := newTestStack(h)
	f := s.NewFrame(Null, Null, Null)

	f.Registers[0] = sym(t, f, "stable")
	before := h.Hash(f.Registers[0])
	must(t, h, h.Collect(f))
	assert.Equal(t, before, h.Hash(f.Registers[0]))

	// also for a value whose hash was never computed before the move
	f.Registers[1] = sym(t, f, "lazy")
	f.Registers[2] = sym(t, f, "lazy")
	lazy := h.Hash(f.Registers[2])
	must(t, h, h.Collect(f))
	assert.Equal(t, lazy, h.Hash(f.Registers[1]))
}

func TestShow(t *testing.T) {
	h := NewHeap(0)
	s := newTestStack(h)
	f := s.NewFrame(Null, Null, Null)

	assert.Equal(t, "[ ]", h.Show(Null))

	v := sym(t, f, "word")
	assert.Equal(t, "word", h.Show(v))

	v, exc := h.String(f, []byte("a\tb\"c"))
	must(t, h, exc)
	assert.Equal(t, `"a\tb\"c"`, h.Show(v))

	v = num(t, f, 1)
	assert.Equal(t, "1", h.Show(v))
	v = num(t, f, 2.5)
	assert.Equal(t, "2.5", h.Show(v))

	v, exc = h.Boolean(f, false)
	must(t, h, exc)
	assert.Equal(t, "false", h.Show(v))

	// [ a b ]
	f.Registers[0] = Null
	for _, name := range []string{"b", "a"} {
		cons, exc := h.List(f, sym(t, f, name), f.Registers[0])
		must(t, h, exc)
		f.Registers[0] = cons
	}
	assert.Equal(t, "[ a b ]", h.Show(f.Registers[0]))

	// numbers parse back (the round-trip domain of the tokenizer)
	for _, x := range []float64{0, 1, -3.25, 1e100, math.MaxFloat64} {
		v = num(t, f, x)
		parsed, err := strconv.ParseFloat(h.Show(v), 64)
		require.NoError(t, err)
		assert.Equal(t, x, parsed)
	}
}

func TestShowException(t *testing.T) {
	h := NewHeap(0)
	s := newTestStack(h)
	f := s.NewFrame(Null, Null, Null)

	str, exc := h.String(f, []byte("boom"))
	must(t, h, exc)
	f.Registers[0] = str
	e, exc := h.Exception(f, Null, f.Registers[0])
	must(t, h, exc)
	f.Registers[1] = e
	assert.Equal(t, `exception "boom"`, h.Show(f.Registers[1]))

	str, exc = h.String(f, []byte("outer"))
	must(t, h, exc)
	f.Registers[2] = str
	chained, exc := h.Exception(f, f.Registers[1], f.Registers[2])
	must(t, h, exc)
	assert.Equal(t, `exception "outer" caused by exception "boom"`, h.Show(chained))
}

func TestVectorFill(t *testing.T) {
	h := NewHeap(0)
	s := newTestStack(h)
	f := s.NewFrame(Null, Null, Null)

	f.Registers[0] = num(t, f, 9)
	v, exc := h.Vector(f, f.Registers[0], 5)
	must(t, h, exc)
	f.Registers[1] = v
	assert.Equal(t, uint64(5), h.Length(f.Registers[1]))
	for i := uint32(0); i < 5; i++ {
		assert.Equal(t, 9.0, h.NumberValue(h.VectorElement(f.Registers[1], i)))
	}
	must(t, h, h.Collect(f))
	for i := uint32(0); i < 5; i++ {
		assert.Equal(t, 9.0, h.NumberValue(h.VectorElement(f.Registers[1], i)))
	}
}

func TestByteSize(t *testing.T) {
	h := NewHeap(0)
	s := newTestStack(h)
	f := s.NewFrame(Null, Null, Null)

	v, exc := h.String(f, []byte("12345"))
	must(t, h, exc)
	assert.Equal(t, uint64(headerSize+4+5), h.ByteSize(v))
	v = num(t, f, 0)
	assert.Equal(t, uint64(headerSize+8), h.ByteSize(v))
	assert.Equal(t, uint64(0), h.ByteSize(Null))
}

func TestFunctionEquality(t *testing.T) {
	h := NewHeap(0)
	s := newTestStack(h)
	f := s.NewFrame(Null, Null, Null)

	native := func(s *Frame) Value { return Null }
	a, exc := h.Function(f, Null, native)
	must(t, h, exc)
	f.Registers[0] = a
	b, exc := h.Function(f, Null, native)
	must(t, h, exc)
	f.Registers[1] = b
	assert.True(t, h.Equal(f.Registers[0], f.Registers[1]),
		"the same native function wrapped twice compares equal")

	other, exc := h.Function(f, Null, func(s *Frame) Value { return Null })
	must(t, h, exc)
	assert.False(t, h.Equal(f.Registers[0], other))
}
