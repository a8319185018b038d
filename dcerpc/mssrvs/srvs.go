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

// Package mssrvs implements messages of the Server Service Remote Protocol
// (MS-SRVS).
package mssrvs

import (
	"fmt"

	"github.com/jfjallid/go-msrpc/dcerpc"
	"github.com/jfjallid/go-msrpc/dcerpc/mserref"
	"github.com/jfjallid/golog"
)

var log = golog.Get("github.com/jfjallid/go-msrpc/dcerpc/mssrvs")

var (
	MSRPCSrvSvcPipe   = "srvsvc"
	MSRPCSrvSvcSyntax = dcerpc.MustSyntaxId("4B324FC8-1670-01D3-1278-5A47BF6EE188", 3, 0)
)

// MSRPC Server Service (srvsvc) Operations
const (
	NetrServerGetInfo     uint16 = 21
	NetprPathCanonicalize uint16 = 31
)

// MS-SRVS Section 2.2.2.9 Path Types
type NetprPathType uint32

const (
	ITypePathAbsND   NetprPathType = 0x2005
	ITypePathAbsD    NetprPathType = 0x2006
	ITypePathRelND   NetprPathType = 0x2007
	ITypePathRelD    NetprPathType = 0x2008
	ITypePathAbsNDWC NetprPathType = 0x2009
	ITypePathAbsDWC  NetprPathType = 0x200A
	ITypePathRelNDWC NetprPathType = 0x200B
	ITypePathRelDWC  NetprPathType = 0x200C
)

var PathTypeNames = map[NetprPathType]string{
	ITypePathAbsND:   "ITYPE_PATH_ABSND",
	ITypePathAbsD:    "ITYPE_PATH_ABSD",
	ITypePathRelND:   "ITYPE_PATH_RELND",
	ITypePathRelD:    "ITYPE_PATH_RELD",
	ITypePathAbsNDWC: "ITYPE_PATH_ABSND_WC",
	ITypePathAbsDWC:  "ITYPE_PATH_ABSD_WC",
	ITypePathRelNDWC: "ITYPE_PATH_RELND_WC",
	ITypePathRelDWC:  "ITYPE_PATH_RELD_WC",
}

func (self NetprPathType) String() string {
	if name, ok := PathTypeNames[self]; ok {
		return name
	}
	return fmt.Sprintf("0x%x", uint32(self))
}

// MS-SRVS Section 2.2.2.6 Platform IDs
const (
	PlatformIdDOS uint32 = 300
	PlatformIdOS2 uint32 = 400
	PlatformIdNT  uint32 = 500
	PlatformIdOSF uint32 = 600
	PlatformIdVMS uint32 = 700
)

// MS-SRVS Section 2.2.2.7 Software Type Flags (subset)
const (
	SvTypeWorkstation      uint32 = 0x00000001
	SvTypeServer           uint32 = 0x00000002
	SvTypeDomainCtrl       uint32 = 0x00000008
	SvTypeDomainBakCtrl    uint32 = 0x00000010
	SvTypePrintqServer     uint32 = 0x00000200
	SvTypeNT               uint32 = 0x00001000
	SvTypePotentialBrowser uint32 = 0x00010000
	SvTypeMasterBrowser    uint32 = 0x00040000
	SvTypeServerNT         uint32 = 0x00008000
)

type RPCCon struct {
	dcerpc.Requestor
}

func NewRPCCon(rq dcerpc.Requestor) *RPCCon {
	return &RPCCon{rq}
}

func (sb *RPCCon) call(req dcerpc.Request, res dcerpc.Response) error {
	err := dcerpc.Invoke(sb.Requestor, req, res)
	if err != nil {
		log.Errorln(err)
	}
	return err
}

func returnCodeError(code uint32) error {
	err := mserref.WErrorFromCode(code)
	if err != nil {
		log.Errorln(err)
	}
	return err
}

// NetServerGetInfo retrieves the server information of the given level (100,
// 101 or 102). The returned value is a *NetServerInfo100, *NetServerInfo101
// or *NetServerInfo102.
func (sb *RPCCon) NetServerGetInfo(host string, level uint32) (info interface{}, err error) {
	log.Debugln("In NetServerGetInfo")
	if level != 100 && level != 101 && level != 102 {
		err = fmt.Errorf("invalid level %d for NetrServerGetInfo, valid levels are 100, 101 and 102", level)
		log.Errorln(err)
		return
	}
	req := NetServerGetInfoReq{ServerName: host, Level: level}
	res := NetServerGetInfoRes{}
	if err = sb.call(&req, &res); err != nil {
		return
	}
	if err = returnCodeError(res.WindowsError); err != nil {
		return
	}
	if res.Info == nil || res.Info.Pointer == nil {
		err = fmt.Errorf("NetrServerGetInfo returned no server info")
		log.Errorln(err)
		return
	}
	return res.Info.Pointer, nil
}

// NetprPathCanonicalize asks the server to canonicalize pathName. outBufLen
// is the size in bytes of the buffer the server may use for the result.
func (sb *RPCCon) NetprPathCanonicalize(serverName, pathName string, outBufLen uint32, prefix string) (path string, pathType NetprPathType, err error) {
	log.Debugln("In NetprPathCanonicalize")
	req := NetprPathCanonicalizeReq{
		ServerName: serverName,
		PathName:   pathName,
		OutBufLen:  outBufLen,
		Prefix:     prefix,
	}
	res := NetprPathCanonicalizeRes{}
	if err = sb.call(&req, &res); err != nil {
		return
	}
	if err = returnCodeError(res.ReturnCode); err != nil {
		return
	}
	return res.CanonicalizedPath, res.PathType, nil
}
