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

package msdtyp

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/jfjallid/go-msrpc/dcerpc/encoder"
)

const ContextHandleSize = 20

var ErrInvalidHandle = errors.New("invalid context handle")

// ContextHandle is the opaque RPC context handle returned by open calls and
// passed back unchanged on later calls. Handles compare byte-wise and can be
// used as map keys.
type ContextHandle [ContextHandleSize]byte

// NewContextHandle returns the all-zero handle.
func NewContextHandle() ContextHandle {
	return ContextHandle{}
}

// ParseContextHandle decodes a hex encoded handle of at most 40 characters.
// Leading zero bytes may have been elided from s. The bytes following the
// last zero byte are placed at the end of the handle, everything before them
// is left zero.
func ParseContextHandle(s string) (h ContextHandle, err error) {
	if len(s) > 2*ContextHandleSize {
		err = fmt.Errorf("%w: %q is longer than %d hex characters", ErrInvalidHandle, s, 2*ContextHandleSize)
		log.Errorln(err)
		return
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		log.Errorln(err)
		err = fmt.Errorf("%w: %w", ErrInvalidHandle, err)
		return
	}
	start := 0
	for i, b := range raw {
		if b == 0 {
			start = i + 1
		}
	}
	copy(h[ContextHandleSize-len(raw)+start:], raw[start:])
	return
}

// Bytes returns a copy of the handle.
func (self ContextHandle) Bytes() []byte {
	b := make([]byte, ContextHandleSize)
	copy(b, self[:])
	return b
}

// SetBytes overwrites the handle with the first 20 bytes of b.
func (self *ContextHandle) SetBytes(b []byte) error {
	if len(b) < ContextHandleSize {
		err := fmt.Errorf("%w: need %d bytes, got %d", ErrInvalidHandle, ContextHandleSize, len(b))
		log.Errorln(err)
		return err
	}
	copy(self[:], b)
	return nil
}

func (self ContextHandle) Len() int {
	return ContextHandleSize
}

func (self ContextHandle) IsZero() bool {
	return self == ContextHandle{}
}

// String returns the handle as upper case hex.
func (self ContextHandle) String() string {
	return strings.ToUpper(hex.EncodeToString(self[:]))
}

func (self ContextHandle) MarshalText() ([]byte, error) {
	return []byte(self.String()), nil
}

// UnmarshalText accepts only the full 40 character form produced by
// MarshalText.
func (self *ContextHandle) UnmarshalText(text []byte) error {
	b, err := hex.DecodeString(string(text))
	if err != nil {
		log.Errorln(err)
		return fmt.Errorf("%w: %w", ErrInvalidHandle, err)
	}
	if len(b) != ContextHandleSize {
		err = fmt.Errorf("%w: need %d bytes, got %d", ErrInvalidHandle, ContextHandleSize, len(b))
		log.Errorln(err)
		return err
	}
	return self.SetBytes(b)
}

func ReadContextHandle(in *encoder.PacketInput) (h ContextHandle, err error) {
	err = in.ReadFully(h[:])
	return
}

func (self ContextHandle) Write(out *encoder.PacketOutput) error {
	_, err := out.Write(self[:])
	return err
}
