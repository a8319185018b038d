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
	"bytes"
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/jfjallid/go-msrpc/dcerpc"
	"github.com/jfjallid/go-msrpc/dcerpc/encoder"
	"github.com/jfjallid/go-msrpc/dcerpc/mserref"
)

const (
	serverInfo102Trace   = "6600000000000200f4010000040002000a000000000000000390000008000200000000010f000000000000003c000000b80b0000000000000c000200080000000000000008000000570049004e0032004b003100390000000100000000000000010000000000000004000000000000000400000063003a005c00000000000000"
	canonicalizeReqTrace = "00000200060000000000000006000000640075006d006d007900000021000000000000002100000043003a005c004c0069006e00750078005c002e002e005c00570069006e0064006f00770073005c0053006f006d0065007400680069006e0067005c002e002e00000000001900000004000000000000000400000043003a005c0000000000000000000000"
)

// 200 byte output buffer holding C:\Something, ITYPE_PATH_ABSD, ERROR_SUCCESS
var canonicalizeResTrace = "c8000000" + "43003a005c0053006f006d0065007400680069006e006700" +
	strings.Repeat("00", 176) + "06200000" + "00000000"

func checkRequest(t *testing.T, req dcerpc.Request, expected string) {
	t.Helper()
	pkt, err := hex.DecodeString(expected)
	if err != nil {
		t.Fatal(err)
	}
	buf, err := dcerpc.MarshalBinary(req)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf, pkt) {
		t.Fatalf("Fail: got %x", buf)
	}
}

func TestNetServerGetInfoReq(t *testing.T) {
	checkRequest(t, &NetServerGetInfoReq{Level: 102}, "0000000066000000")
	checkRequest(t, &NetServerGetInfoReq{ServerName: "DC01", Level: 101},
		"00000200"+"050000000000000005000000"+"44004300300031000000"+"0000"+"65000000")
}

func TestNetServerGetInfoRes102(t *testing.T) {
	var resp NetServerGetInfoRes
	err := dcerpc.FromHexString(serverInfo102Trace, &resp)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Info.Level != 102 || resp.WindowsError != 0 {
		t.Fatal("Fail")
	}
	si, ok := resp.Info.Pointer.(*NetServerInfo102)
	if !ok {
		t.Fatalf("Fail: got %T", resp.Info.Pointer)
	}
	if si.PlatformId != PlatformIdNT || si.Name != "WIN2K19" {
		t.Fatalf("Fail: %+v", si)
	}
	if si.VersionMajor != 10 || si.VersionMinor != 0 || si.Comment != "" {
		t.Fatalf("Fail: %+v", si)
	}
	expectedType := SvTypeWorkstation | SvTypeServer | SvTypeNT | SvTypeServerNT
	if si.SvType != expectedType {
		t.Fatalf("Fail: type 0x%x", si.SvType)
	}
	if si.Users != 16777216 || si.Disc != 15 || si.Hidden != 0 {
		t.Fatalf("Fail: %+v", si)
	}
	if si.Announce != 60 || si.Anndelta != 3000 || si.Licences != 0 {
		t.Fatalf("Fail: %+v", si)
	}
	if si.Userpath != "c:\\" {
		t.Fatalf("Fail: userpath %q", si.Userpath)
	}
}

func TestNetServerGetInfoRes100(t *testing.T) {
	var resp NetServerGetInfoRes
	pkt := "64000000" + "00000200" + "f4010000" + "04000200" +
		"080000000000000008000000" + "570049004e0032004b0031003900000000000000"
	err := dcerpc.FromHexString(pkt, &resp)
	if err != nil {
		t.Fatal(err)
	}
	si, ok := resp.Info.Pointer.(*NetServerInfo100)
	if !ok || si.Name != "WIN2K19" || si.PlatformId != PlatformIdNT {
		t.Fatalf("Fail: %+v", resp.Info.Pointer)
	}
}

func TestNetServerGetInfoResTruncated(t *testing.T) {
	var resp NetServerGetInfoRes
	err := dcerpc.FromHexString(serverInfo102Trace[:len(serverInfo102Trace)-8], &resp)
	if !errors.Is(err, encoder.ErrEndOfStream) {
		t.Fatalf("Fail: expected end of stream, got %v", err)
	}
}

func TestNetServerGetInfoResUnknownLevel(t *testing.T) {
	var resp NetServerGetInfoRes
	if err := dcerpc.FromHexString("f6010000"+"00000200"+"00000000", &resp); err == nil {
		t.Fatal("Fail: expected error for level 502")
	}
}

func TestNetprPathCanonicalizeReq(t *testing.T) {
	req := NetprPathCanonicalizeReq{
		ServerName: "dummy",
		PathName:   "C:\\Linux\\..\\Windows\\Something\\..",
		OutBufLen:  25,
		Prefix:     "C:\\",
	}
	checkRequest(t, &req, canonicalizeReqTrace)
}

func TestNetprPathCanonicalizeRes(t *testing.T) {
	var resp NetprPathCanonicalizeRes
	err := dcerpc.FromHexString(canonicalizeResTrace, &resp)
	if err != nil {
		t.Fatal(err)
	}
	if resp.CanonicalizedPath != "C:\\Something" {
		t.Fatalf("Fail: path %q", resp.CanonicalizedPath)
	}
	if resp.PathType != ITypePathAbsD || resp.PathType.String() != "ITYPE_PATH_ABSD" {
		t.Fatalf("Fail: path type %s", resp.PathType)
	}
	if resp.ReturnCode != uint32(mserref.ErrorSuccess) {
		t.Fatal("Fail")
	}
}

func TestNetprPathTypeString(t *testing.T) {
	if NetprPathType(0x1234).String() != "0x1234" {
		t.Fatal("Fail")
	}
}

func TestNewResponse(t *testing.T) {
	if _, err := NewResponse(NetprPathCanonicalize); err != nil {
		t.Fatal(err)
	}
	if _, err := NewResponse(15); !errors.Is(err, dcerpc.ErrUnknownOpnum) {
		t.Fatalf("Fail: got %v", err)
	}
}

type fakeSrvsvc struct {
	response string
}

func (self fakeSrvsvc) MakeIoCtlRequest(opnum uint16, stub []byte) ([]byte, error) {
	return hex.DecodeString(self.response)
}

func TestRPCConNetServerGetInfo(t *testing.T) {
	rpccon := NewRPCCon(fakeSrvsvc{serverInfo102Trace})
	info, err := rpccon.NetServerGetInfo("", 102)
	if err != nil {
		t.Fatal(err)
	}
	if info.(*NetServerInfo102).Name != "WIN2K19" {
		t.Fatal("Fail")
	}
	if _, err = rpccon.NetServerGetInfo("", 503); err == nil {
		t.Fatal("Fail: expected error for level 503")
	}
}

func TestRPCConNetprPathCanonicalize(t *testing.T) {
	rpccon := NewRPCCon(fakeSrvsvc{canonicalizeResTrace})
	path, pathType, err := rpccon.NetprPathCanonicalize("dummy", "C:\\Linux\\..\\Windows\\Something\\..", 200, "C:\\")
	if err != nil {
		t.Fatal(err)
	}
	if path != "C:\\Something" || pathType != ITypePathAbsD {
		t.Fatal("Fail")
	}

	rpccon = NewRPCCon(fakeSrvsvc{"00000000" + "00000000" + "2f090000"})
	_, _, err = rpccon.NetprPathCanonicalize("bad", "x", 0, "")
	if !errors.Is(err, mserref.NerrInvalidComputer) {
		t.Fatalf("Fail: expected NERR_InvalidComputer, got %v", err)
	}
}
