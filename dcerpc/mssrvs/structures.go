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

package mssrvs

import (
	"fmt"

	"github.com/jfjallid/go-msrpc/dcerpc"
	"github.com/jfjallid/go-msrpc/dcerpc/encoder"
)

type NetServerInfo100 struct {
	PlatformId uint32
	Name       string
}

type NetServerInfo101 struct {
	NetServerInfo100
	VersionMajor uint32
	VersionMinor uint32
	SvType       uint32
	Comment      string
}

type NetServerInfo102 struct {
	NetServerInfo101
	Users    uint32
	Disc     int32
	Hidden   uint32
	Announce uint32
	Anndelta uint32
	Licences uint32
	Userpath string
}

type NetServerInfo struct {
	Level   uint32
	Pointer interface{}
}

// NET_API_STATUS
// NetrServerGetInfo (
// [in,string,unique] SRVSVC_HANDLE ServerName,
// [in] DWORD Level,
// [out, switch_is(Level)] LPSERVER_INFO InfoStruct
// );
type NetServerGetInfoReq struct {
	ServerName string
	Level      uint32
}

type NetServerGetInfoRes struct {
	Info         *NetServerInfo
	WindowsError uint32
}

// NET_API_STATUS
// NetprPathCanonicalize (
// [in,string,unique] SRVSVC_HANDLE ServerName,
// [in,string] WCHAR* PathName,
// [out,size_is(OutbufLen)] unsigned char* Outbuf,
// [in,range(0,64000)] DWORD OutbufLen,
// [in,string] WCHAR* Prefix,
// [in,out] DWORD* PathType,
// [in] DWORD Flags
// );
type NetprPathCanonicalizeReq struct {
	ServerName string
	PathName   string
	OutBufLen  uint32
	Prefix     string
	PathType   NetprPathType
	Flags      uint32
}

type NetprPathCanonicalizeRes struct {
	CanonicalizedPath string
	PathType          NetprPathType
	ReturnCode        uint32
}

// NewResponse returns an empty response for opnum.
func NewResponse(opnum uint16) (dcerpc.Response, error) {
	switch opnum {
	case NetrServerGetInfo:
		return &NetServerGetInfoRes{}, nil
	case NetprPathCanonicalize:
		return &NetprPathCanonicalizeRes{}, nil
	}
	err := fmt.Errorf("%w: MS-SRVS opnum %d", dcerpc.ErrUnknownOpnum, opnum)
	log.Errorln(err)
	return nil, err
}

func (self *NetServerGetInfoReq) Opnum() uint16 {
	return NetrServerGetInfo
}

func (self *NetServerGetInfoReq) MarshalNDR(out *encoder.PacketOutput) (err error) {
	log.Debugln("In MarshalNDR for NetServerGetInfoReq")
	if err = out.WriteStringRef(self.ServerName, true); err != nil {
		return
	}
	return out.WriteUint32(self.Level)
}

// readDeferredString reads the conformant varying string of a pointer that
// was read earlier in the structure. A null pointer yields "".
func readDeferredString(in *encoder.PacketInput, ref uint32) (string, error) {
	if ref == 0 {
		return "", nil
	}
	return in.ReadString(true)
}

func readUint32s(in *encoder.PacketInput, fields ...*uint32) (err error) {
	for _, f := range fields {
		if *f, err = in.ReadUint32(); err != nil {
			return
		}
	}
	return
}

/*
Order of serialization for level 102:
platformId
ReferentId Ptr from name struct
versionMajor
versionMinor
svType
ReferentId Ptr from comment struct
Users
disc
hidden
announce
anndelta
licenses
ReferentId Ptr from UserPath struct

Then finally comes the content of the three strings. Levels 100 and 101 are
prefixes of the same layout.
*/
func readServerInfo(in *encoder.PacketInput, level uint32) (info interface{}, err error) {
	var nameRef, commentRef, userpathRef uint32
	si := NetServerInfo102{}
	if err = readUint32s(in, &si.PlatformId, &nameRef); err != nil {
		return
	}
	if level >= 101 {
		err = readUint32s(in, &si.VersionMajor, &si.VersionMinor, &si.SvType, &commentRef)
		if err != nil {
			return
		}
	}
	if level == 102 {
		var disc uint32
		err = readUint32s(in, &si.Users, &disc, &si.Hidden, &si.Announce, &si.Anndelta, &si.Licences, &userpathRef)
		if err != nil {
			return
		}
		si.Disc = int32(disc)
	}
	if si.Name, err = readDeferredString(in, nameRef); err != nil {
		return
	}
	if si.Comment, err = readDeferredString(in, commentRef); err != nil {
		return
	}
	if si.Userpath, err = readDeferredString(in, userpathRef); err != nil {
		return
	}
	switch level {
	case 100:
		return &si.NetServerInfo100, nil
	case 101:
		return &si.NetServerInfo101, nil
	}
	return &si, nil
}

func (self *NetServerGetInfoRes) UnmarshalNDR(in *encoder.PacketInput) (err error) {
	log.Debugln("In UnmarshalNDR for NetServerGetInfoRes")
	self.Info = &NetServerInfo{}
	if self.Info.Level, err = in.ReadUint32(); err != nil {
		return
	}
	ref, err := in.ReadReferentID()
	if err != nil {
		return
	}
	if ref != 0 {
		switch self.Info.Level {
		case 100, 101, 102:
			self.Info.Pointer, err = readServerInfo(in, self.Info.Level)
			if err != nil {
				return
			}
		default:
			err = fmt.Errorf("unsupported SERVER_INFO level %d", self.Info.Level)
			log.Errorln(err)
			return
		}
	}
	self.WindowsError, err = in.ReadUint32()
	return
}

func (self *NetprPathCanonicalizeReq) Opnum() uint16 {
	return NetprPathCanonicalize
}

func (self *NetprPathCanonicalizeReq) MarshalNDR(out *encoder.PacketOutput) (err error) {
	log.Debugln("In MarshalNDR for NetprPathCanonicalizeReq")
	if err = out.WriteStringRef(self.ServerName, true); err != nil {
		return
	}
	if err = out.WriteString(self.PathName, true); err != nil {
		return
	}
	if err = out.WriteUint32(self.OutBufLen); err != nil {
		return
	}
	if err = out.WriteString(self.Prefix, true); err != nil {
		return
	}
	if err = out.WriteUint32(uint32(self.PathType)); err != nil {
		return
	}
	return out.WriteUint32(self.Flags)
}

// The output buffer holds a null terminated UTF-16LE path padded with zeros
// up to OutbufLen.
func (self *NetprPathCanonicalizeRes) UnmarshalNDR(in *encoder.PacketInput) (err error) {
	log.Debugln("In UnmarshalNDR for NetprPathCanonicalizeRes")
	buf, err := in.ReadConformantBytes()
	if err != nil {
		return
	}
	for i := 0; i+1 < len(buf); i += 2 {
		if buf[i] == 0 && buf[i+1] == 0 {
			buf = buf[:i]
			break
		}
	}
	if len(buf)%2 != 0 {
		buf = buf[:len(buf)-1]
	}
	if self.CanonicalizedPath, err = encoder.FromUnicode(buf); err != nil {
		log.Errorln(err)
		return
	}
	pathType, err := in.ReadUint32()
	if err != nil {
		return
	}
	self.PathType = NetprPathType(pathType)
	self.ReturnCode, err = in.ReadUint32()
	return
}
