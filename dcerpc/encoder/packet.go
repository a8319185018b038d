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

package encoder

import (
	"fmt"
	"io"
	"slices"
	"strings"
)

// First referent id handed out by a PacketOutput
const ReferentIDBase uint32 = 0x00020000

// Largest buffer allocated ahead of the data when the input length is unknown
const readChunkSize = 64 * 1024

/*
PacketInput decodes NDR constructs from a stub.

Pointers are represented on the wire by 4 byte referent ids. This decoder
only distinguishes null from non-null referents. It does not keep a table of
referent ids, so aliased pointers are decoded as independent values. Arrays of
per-element referent ids are skipped as a block by the message types that
contain them.
*/
type PacketInput struct {
	*PrimitiveInput
}

func NewPacketInput(r io.Reader) (*PacketInput, error) {
	p, err := NewPrimitiveInput(r)
	if err != nil {
		return nil, err
	}
	return &PacketInput{PrimitiveInput: p}, nil
}

// ensure verifies that n more bytes can be read when the input length is
// known.
func (self *PacketInput) ensure(n int64) error {
	if n < 0 {
		err := fmt.Errorf("%w: negative length %d at offset %d", ErrInvalidCount, n, self.count)
		log.Errorln(err)
		return err
	}
	remaining, known := self.Remaining()
	if known && n > remaining {
		err := fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrInvalidCount, n, self.count, remaining)
		log.Errorln(err)
		return err
	}
	return nil
}

// ReadRawBytes reads exactly n bytes. No alignment is performed. Unless the
// input is known to hold n bytes the buffer grows with the data actually read.
func (self *PacketInput) ReadRawBytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, self.ensure(int64(n))
	}
	if remaining, known := self.Remaining(); (known && int64(n) <= remaining) || n <= readChunkSize {
		b := make([]byte, n)
		if err := self.ReadFully(b); err != nil {
			return nil, err
		}
		return b, nil
	}
	var b []byte
	for len(b) < n {
		start := len(b)
		size := min(n-start, readChunkSize)
		b = slices.Grow(b, size)[:start+size]
		if err := self.ReadFully(b[start:]); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// ReadRemaining consumes everything up to the end of the input. It is used to
// hand a stub over to the reflective NDR decoder.
func (self *PacketInput) ReadRemaining() ([]byte, error) {
	b, err := io.ReadAll(self.r)
	self.count += int64(len(b))
	if err != nil {
		err = fmt.Errorf("read failed at offset %d: %w", self.count, err)
		log.Errorln(err)
		return nil, err
	}
	return b, nil
}

// ReadReferentID reads a pointer slot. Zero means a null pointer.
func (self *PacketInput) ReadReferentID() (uint32, error) {
	return self.ReadUint32()
}

// ReadCount reads a 4 byte element count and checks that count elements of
// elemSize bytes fit in what is left of the input. The check is skipped when
// the input length is unknown, so callers must not allocate from the count.
func (self *PacketInput) ReadCount(elemSize int) (int, error) {
	c, err := self.ReadUint32()
	if err != nil {
		return 0, err
	}
	if err = self.ensure(int64(c) * int64(elemSize)); err != nil {
		return 0, err
	}
	return int(c), nil
}

/*
ReadString reads a conformant and varying UTF-16LE string:

	MaxCount    uint32
	Offset      uint32
	ActualCount uint32
	Buffer      [ActualCount]uint16

If nullTerminated is set the trailing null character is stripped. The cursor
is aligned to 4 bytes afterwards.
*/
func (self *PacketInput) ReadString(nullTerminated bool) (s string, err error) {
	maxCount, err := self.ReadUint32()
	if err != nil {
		return
	}
	// Elements before Offset are not transmitted
	_, err = self.ReadUint32()
	if err != nil {
		return
	}
	actualCount, err := self.ReadUint32()
	if err != nil {
		return
	}
	if actualCount > maxCount {
		err = fmt.Errorf("%w: actual count %d is larger than max count %d", ErrInvalidCount, actualCount, maxCount)
		log.Errorln(err)
		return
	}
	if err = self.ensure(int64(actualCount) * 2); err != nil {
		return
	}
	buf, err := self.ReadRawBytes(int(actualCount) * 2)
	if err != nil {
		return
	}
	s, err = FromUnicode(buf)
	if err != nil {
		log.Errorln(err)
		return
	}
	if nullTerminated {
		s = strings.TrimSuffix(s, "\x00")
	}
	err = self.Align()
	return
}

/*
ReadStringBuf reads an RPC_UNICODE_STRING (also known as winreg_String):

	Length        uint16 // in bytes
	MaximumLength uint16 // in bytes
	Buffer        referent id

followed by the deferred conformant varying string when Buffer is not null.
A null Buffer decodes as the empty string.
*/
func (self *PacketInput) ReadStringBuf(nullTerminated bool) (s string, err error) {
	// Length and MaximumLength are implied by the deferred array headers
	err = self.FullySkipBytes(4)
	if err != nil {
		return
	}
	ptr, err := self.ReadReferentID()
	if err != nil || ptr == 0 {
		return
	}
	return self.ReadString(nullTerminated)
}

// ReadConformantBytes reads a conformant byte array (MaxCount followed by the
// data) and aligns the cursor afterwards.
func (self *PacketInput) ReadConformantBytes() (b []byte, err error) {
	count, err := self.ReadCount(1)
	if err != nil {
		return
	}
	b, err = self.ReadRawBytes(count)
	if err != nil {
		return
	}
	err = self.Align()
	return
}

// PacketOutput encodes NDR constructs to a stub.
type PacketOutput struct {
	*PrimitiveOutput
	nextRefId uint32
}

func NewPacketOutput(w io.Writer) (*PacketOutput, error) {
	p, err := NewPrimitiveOutput(w)
	if err != nil {
		return nil, err
	}
	return &PacketOutput{PrimitiveOutput: p, nextRefId: ReferentIDBase}, nil
}

// WriteReferentID writes a non-null pointer with a fresh referent id.
func (self *PacketOutput) WriteReferentID() error {
	id := self.nextRefId
	self.nextRefId += 4
	return self.WriteUint32(id)
}

// WriteNull writes a null pointer.
func (self *PacketOutput) WriteNull() error {
	return self.WriteUint32(0)
}

// WriteString writes s as a conformant and varying UTF-16LE string and aligns
// the cursor afterwards.
func (self *PacketOutput) WriteString(s string, nullTerminate bool) error {
	buf, count, err := codeUnits(s, nullTerminate)
	if err != nil {
		log.Errorln(err)
		return err
	}
	return self.writeVaryingChars(buf, count, count)
}

func (self *PacketOutput) writeVaryingChars(buf []byte, maxCount, actualCount uint32) (err error) {
	if err = self.WriteUint32(maxCount); err != nil {
		return
	}
	if err = self.WriteUint32(0); err != nil { // Offset
		return
	}
	if err = self.WriteUint32(actualCount); err != nil {
		return
	}
	if _, err = self.Write(buf); err != nil {
		return
	}
	return self.Align()
}

// WriteStringRef writes a unique pointer to a conformant and varying string.
// The empty string is encoded as a null pointer.
func (self *PacketOutput) WriteStringRef(s string, nullTerminate bool) error {
	if s == "" {
		return self.WriteNull()
	}
	if err := self.WriteReferentID(); err != nil {
		return err
	}
	return self.WriteString(s, nullTerminate)
}

/*
WriteStringBuf writes an RPC_UNICODE_STRING followed directly by its deferred
buffer. maxLength is the MaximumLength in bytes announced to the server; it is
raised to the encoded length when smaller. The deferred buffer is written
immediately, so this must only be used when no other pointer of the enclosing
structure precedes the string's referent.
*/
func (self *PacketOutput) WriteStringBuf(s string, maxLength uint16, nullTerminate bool) (err error) {
	buf, count, err := codeUnits(s, nullTerminate)
	if err != nil {
		log.Errorln(err)
		return
	}
	if len(buf) > 0xffff {
		err = fmt.Errorf("string of %d bytes does not fit an RPC_UNICODE_STRING", len(buf))
		log.Errorln(err)
		return
	}
	length := uint16(len(buf))
	if maxLength < length {
		maxLength = length
	}
	if err = self.WriteUint16(length); err != nil {
		return
	}
	if err = self.WriteUint16(maxLength); err != nil {
		return
	}
	if err = self.WriteReferentID(); err != nil {
		return
	}
	return self.writeVaryingChars(buf, uint32(maxLength/2), count)
}

// WriteEmptyStringBuf writes an RPC_UNICODE_STRING with a zero length and a
// null buffer pointer.
func (self *PacketOutput) WriteEmptyStringBuf(maxLength uint16) (err error) {
	if err = self.WriteUint16(0); err != nil {
		return
	}
	if err = self.WriteUint16(maxLength); err != nil {
		return
	}
	return self.WriteNull()
}

// WriteConformantBytes writes MaxCount followed by b and aligns the cursor.
func (self *PacketOutput) WriteConformantBytes(b []byte) error {
	if err := self.WriteUint32(uint32(len(b))); err != nil {
		return err
	}
	if _, err := self.Write(b); err != nil {
		return err
	}
	return self.Align()
}
