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
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

var le = binary.LittleEndian

type lengther interface {
	Len() int
}

// PrimitiveInput reads little-endian scalars from a stream and counts every
// byte it consumes.
type PrimitiveInput struct {
	r     io.Reader
	count int64
	// Number of bytes left in r at construction time, -1 if unknown
	limit int64
	buf   [8]byte
}

func NewPrimitiveInput(r io.Reader) (*PrimitiveInput, error) {
	if r == nil {
		log.Errorln(ErrNilStream)
		return nil, fmt.Errorf("invalid input stream: %w", ErrNilStream)
	}
	p := &PrimitiveInput{r: r, limit: -1}
	if l, ok := r.(lengther); ok {
		p.limit = int64(l.Len())
	}
	return p, nil
}

// Count returns the number of bytes consumed since the stream was wrapped.
func (self *PrimitiveInput) Count() int64 {
	return self.count
}

// Remaining reports how many unread bytes are left when the underlying
// reader exposes its length. The boolean is false when it is unknown.
func (self *PrimitiveInput) Remaining() (int64, bool) {
	if self.limit < 0 {
		return 0, false
	}
	return self.limit - self.count, true
}

func (self *PrimitiveInput) eofError(want, got int) error {
	return fmt.Errorf("%w: need %d bytes at offset %d, got %d: %w", ErrEndOfStream, want, self.count-int64(got), got, io.ErrUnexpectedEOF)
}

// ReadFully fills b completely or fails.
func (self *PrimitiveInput) ReadFully(b []byte) error {
	n, err := io.ReadFull(self.r, b)
	self.count += int64(n)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			err = self.eofError(len(b), n)
		} else {
			err = fmt.Errorf("read failed at offset %d: %w", self.count, err)
		}
		log.Errorln(err)
		return err
	}
	return nil
}

// ReadFullyRange fills b[off:off+length].
func (self *PrimitiveInput) ReadFullyRange(b []byte, off, length int) error {
	if off < 0 || length < 0 || off+length > len(b) {
		err := fmt.Errorf("invalid range [%d:%d] for buffer of length %d", off, off+length, len(b))
		log.Errorln(err)
		return err
	}
	return self.ReadFully(b[off : off+length])
}

// FullySkipBytes discards exactly n bytes. A partial skip is an error.
func (self *PrimitiveInput) FullySkipBytes(n int) error {
	if n < 0 {
		err := fmt.Errorf("cannot skip a negative number of bytes (%d)", n)
		log.Errorln(err)
		return err
	}
	if n == 0 {
		return nil
	}
	skipped, err := io.CopyN(io.Discard, self.r, int64(n))
	self.count += skipped
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = self.eofError(n, int(skipped))
		} else {
			err = fmt.Errorf("skip failed at offset %d: %w", self.count, err)
		}
		log.Errorln(err)
		return err
	}
	return nil
}

// Align consumes and discards bytes until the byte count is a multiple of 4.
func (self *PrimitiveInput) Align() error {
	return self.FullySkipBytes(int(AlignOffset(self.count) - self.count))
}

func (self *PrimitiveInput) read(n int) ([]byte, error) {
	b := self.buf[:n]
	if err := self.ReadFully(b); err != nil {
		return nil, err
	}
	return b, nil
}

func (self *PrimitiveInput) ReadBoolean() (bool, error) {
	b, err := self.read(1)
	if err != nil {
		return false, err
	}
	return b[0] != 0, nil
}

func (self *PrimitiveInput) ReadInt8() (int8, error) {
	v, err := self.ReadUint8()
	return int8(v), err
}

func (self *PrimitiveInput) ReadUint8() (uint8, error) {
	b, err := self.read(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (self *PrimitiveInput) ReadInt16() (int16, error) {
	v, err := self.ReadUint16()
	return int16(v), err
}

func (self *PrimitiveInput) ReadUint16() (uint16, error) {
	b, err := self.read(2)
	if err != nil {
		return 0, err
	}
	return le.Uint16(b), nil
}

// ReadChar reads a single UTF-16 code unit.
func (self *PrimitiveInput) ReadChar() (uint16, error) {
	return self.ReadUint16()
}

func (self *PrimitiveInput) ReadInt32() (int32, error) {
	v, err := self.ReadUint32()
	return int32(v), err
}

func (self *PrimitiveInput) ReadUint32() (uint32, error) {
	b, err := self.read(4)
	if err != nil {
		return 0, err
	}
	return le.Uint32(b), nil
}

func (self *PrimitiveInput) ReadInt64() (int64, error) {
	v, err := self.ReadUint64()
	return int64(v), err
}

func (self *PrimitiveInput) ReadUint64() (uint64, error) {
	b, err := self.read(8)
	if err != nil {
		return 0, err
	}
	return le.Uint64(b), nil
}

// PrimitiveOutput writes little-endian scalars to a stream and counts every
// byte it emits.
type PrimitiveOutput struct {
	w     io.Writer
	count int64
	buf   [8]byte
}

func NewPrimitiveOutput(w io.Writer) (*PrimitiveOutput, error) {
	if w == nil {
		log.Errorln(ErrNilStream)
		return nil, fmt.Errorf("invalid output stream: %w", ErrNilStream)
	}
	return &PrimitiveOutput{w: w}, nil
}

// Count returns the number of bytes written since the stream was wrapped.
func (self *PrimitiveOutput) Count() int64 {
	return self.count
}

// Write implements io.Writer and keeps the byte count current.
func (self *PrimitiveOutput) Write(b []byte) (n int, err error) {
	n, err = self.w.Write(b)
	self.count += int64(n)
	if err == nil && n < len(b) {
		err = io.ErrShortWrite
	}
	if err != nil {
		err = fmt.Errorf("write failed at offset %d: %w", self.count, err)
		log.Errorln(err)
	}
	return
}

// WriteRange writes b[off:off+length].
func (self *PrimitiveOutput) WriteRange(b []byte, off, length int) error {
	if off < 0 || length < 0 || off+length > len(b) {
		err := fmt.Errorf("invalid range [%d:%d] for buffer of length %d", off, off+length, len(b))
		log.Errorln(err)
		return err
	}
	_, err := self.Write(b[off : off+length])
	return err
}

// Align writes zero bytes until the byte count is a multiple of 4.
func (self *PrimitiveOutput) Align() error {
	pad := AlignOffset(self.count) - self.count
	if pad == 0 {
		return nil
	}
	_, err := self.Write(make([]byte, pad))
	return err
}

func (self *PrimitiveOutput) WriteBoolean(v bool) error {
	if v {
		return self.WriteUint8(1)
	}
	return self.WriteUint8(0)
}

func (self *PrimitiveOutput) WriteUint8(v uint8) error {
	self.buf[0] = v
	_, err := self.Write(self.buf[:1])
	return err
}

func (self *PrimitiveOutput) WriteUint16(v uint16) error {
	le.PutUint16(self.buf[:2], v)
	_, err := self.Write(self.buf[:2])
	return err
}

// WriteChar writes a single UTF-16 code unit.
func (self *PrimitiveOutput) WriteChar(v uint16) error {
	return self.WriteUint16(v)
}

func (self *PrimitiveOutput) WriteUint32(v uint32) error {
	le.PutUint32(self.buf[:4], v)
	_, err := self.Write(self.buf[:4])
	return err
}

func (self *PrimitiveOutput) WriteInt32(v int32) error {
	return self.WriteUint32(uint32(v))
}

func (self *PrimitiveOutput) WriteUint64(v uint64) error {
	le.PutUint64(self.buf[:8], v)
	_, err := self.Write(self.buf[:8])
	return err
}

// WriteBytes writes the low byte of every character in s.
func (self *PrimitiveOutput) WriteBytes(s string) error {
	b := make([]byte, 0, len(s))
	for _, r := range s {
		b = append(b, byte(r))
	}
	_, err := self.Write(b)
	return err
}

// WriteChars writes s as UTF-16LE code units without a terminator.
func (self *PrimitiveOutput) WriteChars(s string) error {
	buf, err := ToUnicode(s)
	if err != nil {
		log.Errorln(err)
		return err
	}
	_, err = self.Write(buf)
	return err
}
