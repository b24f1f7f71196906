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
	"io"
	"os"
	"strconv"
	"strings"
)

// Show returns the textual form of a value. Symbols print as their
// bytes, strings quoted with their escape sequences re-encoded, and
// containers print their elements space-separated, so the output of
// a list of tokens can be tokenized back.
func (h *Heap) Show(v Value) string {
	var b strings.Builder
	h.show(&b, v)
	return b.String()
}

// Dump writes the textual form of the value to the stream.
func (h *Heap) Dump(w io.Writer, v Value) {
	io.WriteString(w, h.Show(v))
}

// Debug prints the value after the formatted message to stderr.
// It is silent unless the verbosity setting is nonzero.
func (h *Heap) Debug(v Value, format string, args ...any) {
	if Verbosity == 0 {
		return
	}
	fmt.Fprintf(os.Stderr, format, args...)
	fmt.Fprintf(os.Stderr, " %s\n", h.Show(v))
}

func (h *Heap) show(b *strings.Builder, v Value) {
	switch h.TypeOf(v) {
	case SymbolType:
		b.Write(h.payloadBytes(v))
	case StringType:
		quoteString(b, h.payloadBytes(v))
	case NumberType:
		b.WriteString(strconv.FormatFloat(h.NumberValue(v), 'g', -1, 64))
	case BooleanType:
		if h.BooleanValue(v) {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case ListType:
		b.WriteString("[")
		for cur := v; cur != Null; cur = h.Tail(cur) {
			b.WriteString(" ")
			h.show(b, h.Head(cur))
		}
		b.WriteString(" ]")
	case VectorType:
		b.WriteString("#[")
		length := uint32(h.Length(v))
		for i := uint32(0); i < length; i++ {
			b.WriteString(" ")
			h.show(b, h.VectorElement(v, i))
		}
		b.WriteString(" ]")
	case MapType:
		b.WriteString("{")
		capacity := h.mapCapacity(v)
		for i := uint32(0); i < capacity; i++ {
			for cur := h.mapBucket(v, i); cur != Null; cur = h.Tail(h.Tail(cur)) {
				b.WriteString(" ")
				h.show(b, h.Head(cur))
				b.WriteString(" ")
				h.show(b, h.Head(h.Tail(cur)))
			}
		}
		b.WriteString(" }")
	case FunctionType:
		fmt.Fprintf(b, "function@%d", h.functionIndex(v))
	case LibraryType:
		fmt.Fprintf(b, "library@%s", h.LibraryName(v))
	case ExceptionType:
		b.WriteString("exception ")
		h.show(b, h.ExceptionMessage(v))
		if cause := h.ExceptionCause(v); cause != Null {
			b.WriteString(" caused by ")
			h.show(b, cause)
		}
	}
}

func quoteString(b *strings.Builder, s []byte) {
	b.WriteByte('"')
	for _, c := range s {
		switch c {
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case 0:
			b.WriteString(`\0`)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
}
