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

// Package msdtyp holds the MS-DTYP data types that are shared between the
// DCE/RPC interfaces: security identifiers, context handles and FILETIME
// values, together with their NDR representation.
package msdtyp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jfjallid/go-msrpc/dcerpc/encoder"
	"github.com/jfjallid/golog"
)

var (
	le  = binary.LittleEndian
	be  = binary.BigEndian
	log = golog.Get("github.com/jfjallid/go-msrpc/msdtyp")
)

// MaxSubAuthorities is the largest number of sub authorities a SID can hold.
const MaxSubAuthorities = 15

var ErrInvalidSID = errors.New("invalid SID")

// MS-DTYP Section 2.4.2.3 RPC_SID
//
// Sub authorities are unsigned on the wire and in the string form. Decoding
// them as int32 would give the same bits.
type SID struct {
	Revision       byte
	NumAuth        byte
	Authority      []byte // 6 bytes, big-endian
	SubAuthorities []uint32
}

// Well known SIDs used when querying account rights
var (
	SIDEveryone       = MustParseSID("S-1-1-0")
	SIDAdministrators = MustParseSID("S-1-5-32-544")
	SIDUsers          = MustParseSID("S-1-5-32-545")
	SIDLocalSystem    = MustParseSID("S-1-5-18")
)

func (self *SID) validate() error {
	if len(self.Authority) != 6 {
		return fmt.Errorf("%w: identifier authority must be 6 bytes, got %d", ErrInvalidSID, len(self.Authority))
	}
	if int(self.NumAuth) != len(self.SubAuthorities) {
		return fmt.Errorf("%w: sub authority count %d does not match %d sub authorities", ErrInvalidSID, self.NumAuth, len(self.SubAuthorities))
	}
	if len(self.SubAuthorities) > MaxSubAuthorities {
		return fmt.Errorf("%w: %d sub authorities", ErrInvalidSID, len(self.SubAuthorities))
	}
	return nil
}

// GetAuthority returns the 48 bit identifier authority.
func (self *SID) GetAuthority() uint64 {
	if len(self.Authority) != 6 {
		return 0
	}
	var b [8]byte
	copy(b[2:], self.Authority)
	return be.Uint64(b[:])
}

// String returns the SDDL form, e.g. S-1-5-32-544. Authorities that do not
// fit in 32 bits are printed in hex.
func (self *SID) String() string {
	if self == nil {
		return ""
	}
	var sb strings.Builder
	auth := self.GetAuthority()
	if auth >= 1<<32 {
		fmt.Fprintf(&sb, "S-%d-0x%012X", self.Revision, auth)
	} else {
		fmt.Fprintf(&sb, "S-%d-%d", self.Revision, auth)
	}
	for _, sub := range self.SubAuthorities {
		sb.WriteByte('-')
		sb.WriteString(strconv.FormatUint(uint64(sub), 10))
	}
	return sb.String()
}

func (self *SID) MarshalText() ([]byte, error) {
	if err := self.validate(); err != nil {
		return nil, err
	}
	return []byte(self.String()), nil
}

func (self *SID) UnmarshalText(text []byte) error {
	sid, err := ConvertStrToSID(string(text))
	if err != nil {
		return err
	}
	*self = *sid
	return nil
}

// Equal compares two SIDs field by field.
func (self *SID) Equal(other *SID) bool {
	if self == nil || other == nil {
		return self == other
	}
	if self.Revision != other.Revision || self.NumAuth != other.NumAuth {
		return false
	}
	if !bytes.Equal(self.Authority, other.Authority) || len(self.SubAuthorities) != len(other.SubAuthorities) {
		return false
	}
	for i := range self.SubAuthorities {
		if self.SubAuthorities[i] != other.SubAuthorities[i] {
			return false
		}
	}
	return true
}

// MarshalBinary encodes the SID in its self-relative form without the NDR
// conformance count.
func (self *SID) MarshalBinary() ([]byte, error) {
	if err := self.validate(); err != nil {
		log.Errorln(err)
		return nil, err
	}
	buf := make([]byte, 0, 8+4*len(self.SubAuthorities))
	buf = append(buf, self.Revision, self.NumAuth)
	buf = append(buf, self.Authority...)
	for _, sub := range self.SubAuthorities {
		buf = le.AppendUint32(buf, sub)
	}
	return buf, nil
}

func (self *SID) UnmarshalBinary(buf []byte) error {
	in, err := encoder.NewPacketInput(bytes.NewReader(buf))
	if err != nil {
		return err
	}
	sid, err := readSIDBody(in)
	if err != nil {
		return err
	}
	if int(in.Count()) != len(buf) {
		err = fmt.Errorf("%w: %d trailing bytes", ErrInvalidSID, len(buf)-int(in.Count()))
		log.Errorln(err)
		return err
	}
	*self = *sid
	return nil
}

func readSIDBody(in *encoder.PacketInput) (sid *SID, err error) {
	sid = &SID{}
	sid.Revision, err = in.ReadUint8()
	if err != nil {
		return nil, err
	}
	sid.NumAuth, err = in.ReadUint8()
	if err != nil {
		return nil, err
	}
	sid.Authority, err = in.ReadRawBytes(6)
	if err != nil {
		return nil, err
	}
	if remaining, known := in.Remaining(); known && int64(sid.NumAuth)*4 > remaining {
		err = fmt.Errorf("%w: SID claims %d sub authorities but only %d bytes remain", encoder.ErrInvalidCount, sid.NumAuth, remaining)
		log.Errorln(err)
		return nil, err
	}
	sid.SubAuthorities = make([]uint32, sid.NumAuth)
	for i := range sid.SubAuthorities {
		sid.SubAuthorities[i], err = in.ReadUint32()
		if err != nil {
			return nil, err
		}
	}
	return
}

// ReadNDRSID decodes an RPC_SID as it appears in a stub: the conformance
// count of the sub authority array followed by the SID itself. The count is
// skipped; the SID's own sub authority count is what sizes the array.
func ReadNDRSID(in *encoder.PacketInput) (*SID, error) {
	if err := in.FullySkipBytes(4); err != nil {
		return nil, err
	}
	return readSIDBody(in)
}

// WriteNDRSID encodes sid as an RPC_SID including the leading conformance
// count.
func WriteNDRSID(out *encoder.PacketOutput, sid *SID) error {
	buf, err := sid.MarshalBinary()
	if err != nil {
		return err
	}
	if err = out.WriteUint32(uint32(len(sid.SubAuthorities))); err != nil {
		return err
	}
	_, err = out.Write(buf)
	return err
}

// ConvertStrToSID parses the SDDL form of a SID. The authority may be given
// in decimal or, as printed for values above 32 bits, in 0x prefixed hex.
func ConvertStrToSID(s string) (sid *SID, err error) {
	parts := strings.Split(s, "-")
	if len(parts) < 3 || !strings.EqualFold(parts[0], "S") {
		err = fmt.Errorf("%w: %q", ErrInvalidSID, s)
		log.Errorln(err)
		return nil, err
	}
	rev, err := strconv.ParseUint(parts[1], 10, 8)
	if err != nil {
		log.Errorln(err)
		return nil, fmt.Errorf("%w: revision: %w", ErrInvalidSID, err)
	}
	var auth uint64
	if strings.HasPrefix(parts[2], "0x") || strings.HasPrefix(parts[2], "0X") {
		auth, err = strconv.ParseUint(parts[2][2:], 16, 48)
	} else {
		auth, err = strconv.ParseUint(parts[2], 10, 48)
	}
	if err != nil {
		log.Errorln(err)
		return nil, fmt.Errorf("%w: authority: %w", ErrInvalidSID, err)
	}
	subs := parts[3:]
	if len(subs) > MaxSubAuthorities {
		err = fmt.Errorf("%w: %d sub authorities in %q", ErrInvalidSID, len(subs), s)
		log.Errorln(err)
		return nil, err
	}
	var authBuf [8]byte
	be.PutUint64(authBuf[:], auth)
	sid = &SID{
		Revision:       byte(rev),
		NumAuth:        byte(len(subs)),
		Authority:      append([]byte{}, authBuf[2:]...),
		SubAuthorities: make([]uint32, len(subs)),
	}
	for i, part := range subs {
		v, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			log.Errorln(err)
			return nil, fmt.Errorf("%w: sub authority %d: %w", ErrInvalidSID, i, err)
		}
		sid.SubAuthorities[i] = uint32(v)
	}
	return
}

// MustParseSID is like ConvertStrToSID but panics on error.
func MustParseSID(s string) *SID {
	sid, err := ConvertStrToSID(s)
	if err != nil {
		panic(err)
	}
	return sid
}
