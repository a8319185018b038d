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

package msrrp

import (
	"fmt"
	"strings"

	"github.com/jfjallid/go-msrpc/dcerpc"
	"github.com/jfjallid/go-msrpc/dcerpc/encoder"
	"github.com/jfjallid/go-msrpc/msdtyp"
)

// Opnums 0, 1, 2 and 4
type OpenRootKeyReq struct {
	RootKey       RootKey
	DesiredAccess uint32
}

// OpenKeyRes is returned by the root key opens and BaseRegOpenKey.
type OpenKeyRes struct {
	HKey       msdtyp.ContextHandle
	ReturnCode uint32
}

// Opnum 5
type BaseRegCloseKeyReq struct {
	HKey msdtyp.ContextHandle
}

// The server zeroes the handle it returns on success.
type BaseRegCloseKeyRes struct {
	HKey       msdtyp.ContextHandle
	ReturnCode uint32
}

// Opnum 9
type BaseRegEnumKeyReq struct {
	HKey           msdtyp.ContextHandle
	Index          uint32
	NameMaxLength  uint16 // bytes
	ClassMaxLength uint16 // bytes
	LastWriteTime  *msdtyp.Filetime
}

type BaseRegEnumKeyRes struct {
	Name          string
	Class         string
	LastWriteTime msdtyp.Filetime
	ReturnCode    uint32
}

// Opnum 15
type BaseRegOpenKeyReq struct {
	HKey          msdtyp.ContextHandle
	SubKey        string
	Options       uint32
	DesiredAccess uint32 // REGSAM
}

// Opnum 16
type BaseRegQueryInfoKeyReq struct {
	HKey           msdtyp.ContextHandle
	ClassMaxLength uint16 // bytes
}

type BaseRegQueryInfoKeyRes struct {
	Class              string
	SubKeys            uint32
	MaxSubKeyLen       uint32
	MaxClassLen        uint32
	Values             uint32
	MaxValueNameLen    uint32
	MaxValueLen        uint32
	SecurityDescriptor uint32 // size in bytes
	LastWriteTime      msdtyp.Filetime
	ReturnCode         uint32
}

// Opnum 26
type BaseRegGetVersionReq struct {
	HKey msdtyp.ContextHandle
}

type BaseRegGetVersionRes struct {
	Version    uint32
	ReturnCode uint32
}

// NewResponse returns an empty response for opnum.
func NewResponse(opnum uint16) (dcerpc.Response, error) {
	switch opnum {
	case OpenClassesRoot, OpenCurrentUser, OpenLocalMachine, OpenUsers, BaseRegOpenKey:
		return &OpenKeyRes{}, nil
	case BaseRegCloseKey:
		return &BaseRegCloseKeyRes{}, nil
	case BaseRegEnumKey:
		return &BaseRegEnumKeyRes{}, nil
	case BaseRegQueryInfoKey:
		return &BaseRegQueryInfoKeyRes{}, nil
	case BaseRegGetVersion:
		return &BaseRegGetVersionRes{}, nil
	}
	err := fmt.Errorf("%w: MS-RRP opnum %d", dcerpc.ErrUnknownOpnum, opnum)
	log.Errorln(err)
	return nil, err
}

func (self *OpenRootKeyReq) Opnum() uint16 {
	return uint16(self.RootKey)
}

func (self *OpenRootKeyReq) MarshalNDR(out *encoder.PacketOutput) (err error) {
	log.Debugf("In MarshalNDR for OpenRootKeyReq with access %s\n", strings.Join(AccessMaskNames(self.DesiredAccess), "|"))
	if _, ok := RootKeyNames[self.RootKey]; !ok {
		err = fmt.Errorf("unsupported root key %d", self.RootKey)
		log.Errorln(err)
		return
	}
	// ServerName is always sent as a null pointer
	if err = out.WriteNull(); err != nil {
		return
	}
	return out.WriteUint32(self.DesiredAccess)
}

func readHandleAndStatus(in *encoder.PacketInput, h *msdtyp.ContextHandle, rc *uint32) (err error) {
	*h, err = msdtyp.ReadContextHandle(in)
	if err != nil {
		return
	}
	*rc, err = in.ReadUint32()
	return
}

func (self *OpenKeyRes) UnmarshalNDR(in *encoder.PacketInput) error {
	log.Debugln("In UnmarshalNDR for OpenKeyRes")
	return readHandleAndStatus(in, &self.HKey, &self.ReturnCode)
}

func (self *BaseRegCloseKeyReq) Opnum() uint16 {
	return BaseRegCloseKey
}

func (self *BaseRegCloseKeyReq) MarshalNDR(out *encoder.PacketOutput) error {
	log.Debugln("In MarshalNDR for BaseRegCloseKeyReq")
	return self.HKey.Write(out)
}

func (self *BaseRegCloseKeyRes) UnmarshalNDR(in *encoder.PacketInput) error {
	log.Debugln("In UnmarshalNDR for BaseRegCloseKeyRes")
	return readHandleAndStatus(in, &self.HKey, &self.ReturnCode)
}

func (self *BaseRegEnumKeyReq) Opnum() uint16 {
	return BaseRegEnumKey
}

func (self *BaseRegEnumKeyReq) MarshalNDR(out *encoder.PacketOutput) (err error) {
	log.Debugln("In MarshalNDR for BaseRegEnumKeyReq")
	if err = self.HKey.Write(out); err != nil {
		return
	}
	if err = out.WriteUint32(self.Index); err != nil {
		return
	}
	// lpNameIn is a reference pointer, only the empty buffer is sent
	if err = out.WriteStringBuf("", self.NameMaxLength, false); err != nil {
		return
	}
	// lpClassIn is a unique pointer
	if err = out.WriteReferentID(); err != nil {
		return
	}
	if err = out.WriteStringBuf("", self.ClassMaxLength, false); err != nil {
		return
	}
	if self.LastWriteTime == nil {
		return out.WriteNull()
	}
	if err = out.WriteReferentID(); err != nil {
		return
	}
	return self.LastWriteTime.Write(out)
}

func (self *BaseRegEnumKeyRes) UnmarshalNDR(in *encoder.PacketInput) (err error) {
	log.Debugln("In UnmarshalNDR for BaseRegEnumKeyRes")
	self.Name, err = in.ReadStringBuf(true)
	if err != nil {
		return
	}
	ptr, err := in.ReadReferentID()
	if err != nil {
		return
	}
	if ptr != 0 {
		self.Class, err = in.ReadStringBuf(true)
		if err != nil {
			return
		}
	}
	ptr, err = in.ReadReferentID()
	if err != nil {
		return
	}
	if ptr != 0 {
		self.LastWriteTime, err = msdtyp.ReadFiletime(in)
		if err != nil {
			return
		}
	}
	self.ReturnCode, err = in.ReadUint32()
	return
}

func (self *BaseRegOpenKeyReq) Opnum() uint16 {
	return BaseRegOpenKey
}

func (self *BaseRegOpenKeyReq) MarshalNDR(out *encoder.PacketOutput) (err error) {
	log.Debugf("In MarshalNDR for BaseRegOpenKeyReq with access %s\n", strings.Join(AccessMaskNames(self.DesiredAccess), "|"))
	if err = self.HKey.Write(out); err != nil {
		return
	}
	if err = out.WriteStringBuf(self.SubKey, 0, true); err != nil {
		return
	}
	if err = out.WriteUint32(self.Options); err != nil {
		return
	}
	return out.WriteUint32(self.DesiredAccess)
}

func (self *BaseRegQueryInfoKeyReq) Opnum() uint16 {
	return BaseRegQueryInfoKey
}

func (self *BaseRegQueryInfoKeyReq) MarshalNDR(out *encoder.PacketOutput) (err error) {
	log.Debugln("In MarshalNDR for BaseRegQueryInfoKeyReq")
	if err = self.HKey.Write(out); err != nil {
		return
	}
	return out.WriteEmptyStringBuf(self.ClassMaxLength)
}

func (self *BaseRegQueryInfoKeyRes) UnmarshalNDR(in *encoder.PacketInput) (err error) {
	log.Debugln("In UnmarshalNDR for BaseRegQueryInfoKeyRes")
	self.Class, err = in.ReadStringBuf(true)
	if err != nil {
		return
	}
	for _, field := range []*uint32{
		&self.SubKeys,
		&self.MaxSubKeyLen,
		&self.MaxClassLen,
		&self.Values,
		&self.MaxValueNameLen,
		&self.MaxValueLen,
		&self.SecurityDescriptor,
	} {
		*field, err = in.ReadUint32()
		if err != nil {
			return
		}
	}
	self.LastWriteTime, err = msdtyp.ReadFiletime(in)
	if err != nil {
		return
	}
	self.ReturnCode, err = in.ReadUint32()
	return
}

func (self *BaseRegGetVersionReq) Opnum() uint16 {
	return BaseRegGetVersion
}

func (self *BaseRegGetVersionReq) MarshalNDR(out *encoder.PacketOutput) error {
	log.Debugln("In MarshalNDR for BaseRegGetVersionReq")
	return self.HKey.Write(out)
}

func (self *BaseRegGetVersionRes) UnmarshalNDR(in *encoder.PacketInput) (err error) {
	log.Debugln("In UnmarshalNDR for BaseRegGetVersionRes")
	self.Version, err = in.ReadUint32()
	if err != nil {
		return
	}
	self.ReturnCode, err = in.ReadUint32()
	return
}
