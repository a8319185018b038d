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

package mslsad

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/jfjallid/go-msrpc/dcerpc/encoder"
	"github.com/jfjallid/mstypes"
	"github.com/jfjallid/ndr"
)

// MS-LSAT opnum 45
type LsarGetUserNameReq struct {
	SystemName string
}

// MS-LSAT opnum 45
type LsarGetUserNameRes struct {
	UserName   string
	DomainName string
	ReturnCode uint32
}

//[in, unique, string] wchar_t* SystemName,
//[in, out] PRPC_UNICODE_STRING* UserName,
//[in, out, unique] PRPC_UNICODE_STRING* DomainName

// PRPC_UNICODE_STRING
type prpcUnicodeString struct {
	Data *mstypes.RPCUnicodeString `ndr:"pointer"`
}

// DomainName is a unique pointer to a PRPC_UNICODE_STRING
type domainNameParam struct {
	Name *prpcUnicodeString `ndr:"pointer"`
}

type returnCodeParam struct {
	ReturnCode uint32
}

func (self *prpcUnicodeString) String() string {
	if self == nil || self.Data == nil {
		return ""
	}
	return self.Data.String()
}

func (self *LsarGetUserNameReq) Opnum() uint16 {
	return LsarGetUserName
}

// The UserName pointee goes out as a null PRPC_UNICODE_STRING and DomainName
// as a non-null pointer to one.
func (self *LsarGetUserNameReq) MarshalNDR(out *encoder.PacketOutput) (err error) {
	log.Debugln("In MarshalNDR for LsarGetUserNameReq")
	if err = out.WriteStringRef(self.SystemName, true); err != nil {
		return
	}
	if err = out.WriteNull(); err != nil {
		return
	}
	if err = out.WriteReferentID(); err != nil {
		return
	}
	return out.WriteNull()
}

// UnmarshalNDR hands the remainder of the stub to the reflective decoder, so
// the response must be the last element of the stream. Each top-level
// parameter is decoded on its own since its referents follow it directly.
func (self *LsarGetUserNameRes) UnmarshalNDR(in *encoder.PacketInput) error {
	log.Debugln("In UnmarshalNDR for LsarGetUserNameRes")
	b, err := in.ReadRemaining()
	if err != nil {
		return err
	}
	if len(b) < 12 {
		err = fmt.Errorf("%w: LsarGetUserName response of %d bytes, expected at least 12", encoder.ErrEndOfStream, len(b))
		log.Errorln(err)
		return err
	}
	var userName prpcUnicodeString
	var domainName domainNameParam
	var status returnCodeParam
	dec := ndr.NewDecoder(bytes.NewReader(b), false)
	dec.SetEndianness(binary.LittleEndian)
	for _, param := range []interface{}{&userName, &domainName, &status} {
		if err = dec.Decode(param); err != nil {
			err = fmt.Errorf("error unmarshaling LsarGetUserNameRes: %w", err)
			log.Errorln(err)
			return err
		}
	}
	self.UserName = userName.String()
	self.DomainName = domainName.Name.String()
	self.ReturnCode = status.ReturnCode
	return nil
}
