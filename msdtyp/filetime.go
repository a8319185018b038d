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
	"time"

	"github.com/jfjallid/go-msrpc/dcerpc/encoder"
)

// Number of 100ns intervals between 1601-01-01 and 1970-01-01
const filetimeEpochDelta = 116444736000000000

// MS-DTYP Section 2.3.3 FILETIME
type Filetime struct {
	LowDateTime  uint32
	HighDateTime uint32
}

func NewFiletime(t time.Time) Filetime {
	v := uint64(t.UnixNano()/100 + filetimeEpochDelta)
	return Filetime{LowDateTime: uint32(v), HighDateTime: uint32(v >> 32)}
}

func (self Filetime) Uint64() uint64 {
	return uint64(self.HighDateTime)<<32 | uint64(self.LowDateTime)
}

func (self Filetime) IsZero() bool {
	return self.LowDateTime == 0 && self.HighDateTime == 0
}

// ToTime converts the timestamp to UTC. The zero FILETIME maps to the zero
// time.Time.
func (self Filetime) ToTime() time.Time {
	if self.IsZero() {
		return time.Time{}
	}
	ticks := int64(self.Uint64()) - filetimeEpochDelta
	return time.Unix(ticks/10000000, (ticks%10000000)*100).UTC()
}

func (self Filetime) String() string {
	return self.ToTime().String()
}

func (self Filetime) MarshalText() ([]byte, error) {
	return self.ToTime().MarshalText()
}

func ReadFiletime(in *encoder.PacketInput) (ft Filetime, err error) {
	ft.LowDateTime, err = in.ReadUint32()
	if err != nil {
		return
	}
	ft.HighDateTime, err = in.ReadUint32()
	return
}

func (self Filetime) Write(out *encoder.PacketOutput) (err error) {
	if err = out.WriteUint32(self.LowDateTime); err != nil {
		return
	}
	return out.WriteUint32(self.HighDateTime)
}
