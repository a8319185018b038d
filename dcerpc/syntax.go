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

package dcerpc

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// SyntaxId identifies an RPC interface or transfer syntax by UUID and version
// as carried in a bind request.
type SyntaxId struct {
	UUID         uuid.UUID
	MajorVersion uint16
	MinorVersion uint16
}

var NDRSyntax = MustSyntaxId("8a885d04-1ceb-11c9-9fe8-08002b104860", 2, 0)

func NewSyntaxId(s string, major, minor uint16) (SyntaxId, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		log.Errorln(err)
		return SyntaxId{}, fmt.Errorf("invalid interface uuid %q: %w", s, err)
	}
	return SyntaxId{UUID: u, MajorVersion: major, MinorVersion: minor}, nil
}

func MustSyntaxId(s string, major, minor uint16) SyntaxId {
	id, err := NewSyntaxId(s, major, minor)
	if err != nil {
		panic(err)
	}
	return id
}

// MarshalBinary returns the 20 byte p_syntax_id_t. The first three UUID
// fields are little-endian on the wire.
func (self SyntaxId) MarshalBinary() ([]byte, error) {
	b := make([]byte, 0, 20)
	b = binary.LittleEndian.AppendUint32(b, binary.BigEndian.Uint32(self.UUID[0:4]))
	b = binary.LittleEndian.AppendUint16(b, binary.BigEndian.Uint16(self.UUID[4:6]))
	b = binary.LittleEndian.AppendUint16(b, binary.BigEndian.Uint16(self.UUID[6:8]))
	b = append(b, self.UUID[8:]...)
	b = binary.LittleEndian.AppendUint16(b, self.MajorVersion)
	b = binary.LittleEndian.AppendUint16(b, self.MinorVersion)
	return b, nil
}

func (self *SyntaxId) UnmarshalBinary(b []byte) error {
	if len(b) != 20 {
		err := fmt.Errorf("p_syntax_id_t must be 20 bytes, got %d", len(b))
		log.Errorln(err)
		return err
	}
	binary.BigEndian.PutUint32(self.UUID[0:4], binary.LittleEndian.Uint32(b[0:4]))
	binary.BigEndian.PutUint16(self.UUID[4:6], binary.LittleEndian.Uint16(b[4:6]))
	binary.BigEndian.PutUint16(self.UUID[6:8], binary.LittleEndian.Uint16(b[6:8]))
	copy(self.UUID[8:], b[8:16])
	self.MajorVersion = binary.LittleEndian.Uint16(b[16:18])
	self.MinorVersion = binary.LittleEndian.Uint16(b[18:20])
	return nil
}

func (self SyntaxId) String() string {
	return fmt.Sprintf("%s v%d.%d", self.UUID, self.MajorVersion, self.MinorVersion)
}
