// MIT License
//
// # Copyright (c) 2023 Jimmy Fjällid
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package encoder implements the byte level NDR (Network Data Representation)
// codec used by the DCE/RPC message types in this module.
//
// The codec is split in two layers. PrimitiveInput and PrimitiveOutput read
// and write little-endian scalars over a stream while keeping track of the
// number of bytes transferred, which is what NDR alignment is computed from.
// PacketInput and PacketOutput add the NDR constructs on top: referent ids,
// conformant and varying arrays and counted UTF-16 strings.
//
// A codec instance belongs to a single marshal or unmarshal call and must not
// be shared between goroutines.
package encoder

import (
	"errors"

	"github.com/jfjallid/golog"
)

var log = golog.Get("github.com/jfjallid/go-msrpc/dcerpc/encoder")

var (
	// ErrEndOfStream is wrapped by every error caused by input that ended
	// before a value could be read completely.
	ErrEndOfStream = errors.New("unexpected end of NDR stream")
	// ErrNilStream is returned when a codec is constructed without a stream.
	ErrNilStream = errors.New("nil stream")
	// ErrInvalidCount is returned when a count field claims more elements
	// than the remaining input can hold.
	ErrInvalidCount = errors.New("count field exceeds remaining data")
)

// AlignOffset returns count rounded up to the next multiple of 4.
func AlignOffset(count int64) int64 {
	return (count + 3) &^ 3
}
