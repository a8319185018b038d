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
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jfjallid/go-msrpc/dcerpc"
	"github.com/jfjallid/go-msrpc/dcerpc/encoder"
	"github.com/jfjallid/go-msrpc/dcerpc/mserref"
	"github.com/jfjallid/go-msrpc/msdtyp"
)

func mustHandle(t *testing.T, s string) msdtyp.ContextHandle {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatal(err)
	}
	var h msdtyp.ContextHandle
	if err = h.SetBytes(b); err != nil {
		t.Fatal(err)
	}
	return h
}

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

func TestAccessMaskNames(t *testing.T) {
	names := AccessMaskNames(PermKeyQueryValue | PermKeyEnumerateSubKeys | PermReadControl | 0x00000400)
	expected := []string{"KEY_QUERY_VALUE", "KEY_ENUMERATE_SUB_KEYS", "READ_CONTROL", "0x00000400"}
	if strings.Join(names, "|") != strings.Join(expected, "|") {
		t.Fatalf("Fail: %v", names)
	}
	if names = AccessMaskNames(0); names != nil {
		t.Fatalf("Fail: %v", names)
	}
}

func TestOpenRootKeyReq(t *testing.T) {
	req := OpenRootKeyReq{RootKey: HKEYLocalMachine, DesiredAccess: PermMaximumAllowed}
	if req.Opnum() != OpenLocalMachine {
		t.Fatalf("Fail: opnum %d", req.Opnum())
	}
	checkRequest(t, &req, "0000000000000002")

	req.RootKey = RootKey(3)
	if _, err := dcerpc.MarshalBinary(&req); err == nil {
		t.Fatal("Fail: expected error for unsupported root key")
	}
}

func TestOpenKeyReq(t *testing.T) {
	req := BaseRegOpenKeyReq{
		HKey:          mustHandle(t, "000000007660be608d829f419adebc8ce2558570"),
		SubKey:        "SAM\\SAM",
		DesiredAccess: PermMaximumAllowed,
	}
	checkRequest(t, &req, "000000007660be608d829f419adebc8ce2558570"+
		"10001000"+"00000200"+"08000000"+"00000000"+"08000000"+
		"530041004d005c00530041004d000000"+
		"00000000"+"00000002")
}

func TestOpenKeyRes(t *testing.T) {
	res := OpenKeyRes{}
	err := dcerpc.FromHexString("000000003faff080d6ef374da4be978119becfdc00000000", &res)
	if err != nil {
		t.Fatal(err)
	}
	if res.HKey != mustHandle(t, "000000003faff080d6ef374da4be978119becfdc") {
		t.Fatalf("Fail: handle %s", res.HKey)
	}
	if res.ReturnCode != 0 {
		t.Fatalf("Fail: return code %d", res.ReturnCode)
	}
}

func TestCloseKey(t *testing.T) {
	h := mustHandle(t, "000000003faff080d6ef374da4be978119becfdc")
	checkRequest(t, &BaseRegCloseKeyReq{HKey: h}, "000000003faff080d6ef374da4be978119becfdc")

	res := BaseRegCloseKeyRes{}
	err := dcerpc.FromHexString("0000000000000000000000000000000000000000"+"00000000", &res)
	if err != nil {
		t.Fatal(err)
	}
	if !res.HKey.IsZero() || res.ReturnCode != 0 {
		t.Fatalf("Fail: %+v", res)
	}
}

func TestEnumKeyReq(t *testing.T) {
	req := BaseRegEnumKeyReq{
		HKey:           mustHandle(t, "00000000d2f002b5b16cf04baf78ccd08d590a03"),
		Index:          1,
		NameMaxLength:  MaxKeyNameSize,
		ClassMaxLength: MaxClassNameSize,
		LastWriteTime:  &msdtyp.Filetime{LowDateTime: 1, HighDateTime: 2},
	}
	checkRequest(t, &req, "00000000d2f002b5b16cf04baf78ccd08d590a03"+"01000000"+
		"00000004"+"00000200"+"00020000"+"00000000"+"00000000"+
		"04000200"+
		"00000004"+"08000200"+"00020000"+"00000000"+"00000000"+
		"0c000200"+"01000000"+"02000000")

	req.LastWriteTime = nil
	buf, err := dcerpc.MarshalBinary(&req)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasSuffix(buf, []byte{0, 0, 0, 0}) || len(buf) != 72 {
		t.Fatalf("Fail: got %x", buf)
	}
}

func TestEnumKeyRes(t *testing.T) {
	res := BaseRegEnumKeyRes{}
	err := dcerpc.FromHexString("12000004000002000002000000000000090000003000300030003000300031004600340000000000040002000200000408000200000200000000000001000000000000000c000200197aca0a703cd90100000000", &res)
	if err != nil {
		t.Fatal(err)
	}
	if res.Name != "000001F4" {
		t.Fatalf("Fail: name %q", res.Name)
	}
	if res.Class != "" {
		t.Fatalf("Fail: class %q", res.Class)
	}
	if res.LastWriteTime.Uint64() != 0x01d93c700aca7a19 {
		t.Fatalf("Fail: last write time %x", res.LastWriteTime.Uint64())
	}
	if res.ReturnCode != 0 {
		t.Fatalf("Fail: return code %d", res.ReturnCode)
	}
}

func TestQueryInfoKeyReq(t *testing.T) {
	req := BaseRegQueryInfoKeyReq{
		HKey:           mustHandle(t, "00000000e7f89e2120fd0d4cb4ba7d1714ee1405"),
		ClassMaxLength: 18,
	}
	checkRequest(t, &req, "00000000e7f89e2120fd0d4cb4ba7d1714ee1405"+"0000120000000000")
}

func TestQueryInfoKeyResWithClass(t *testing.T) {
	res := BaseRegQueryInfoKeyRes{}
	err := dcerpc.FromHexString("12001200000002000900000000000000090000003000310034003800330032003200630000000000000000000000000000000000010000000c00000006000000f00000007d5ca5a29bcdd80100000000", &res)
	if err != nil {
		t.Fatal(err)
	}
	if res.Class != "0148322c" {
		t.Fatalf("Fail: class %q", res.Class)
	}
	if res.SubKeys != 0 || res.MaxSubKeyLen != 0 || res.MaxClassLen != 0 {
		t.Fatalf("Fail: %+v", res)
	}
	if res.Values != 1 || res.MaxValueNameLen != 12 || res.MaxValueLen != 6 {
		t.Fatalf("Fail: %+v", res)
	}
	if res.SecurityDescriptor != 240 || res.ReturnCode != 0 {
		t.Fatalf("Fail: %+v", res)
	}
}

const queryInfoKeyTrace = "0200000000000000" +
	"06000000" + "16000000" + "00000000" + "00000000" + "00000000" + "00000000" + "a4000000" +
	"9e8b087eaeead201" +
	"00000000"

func TestQueryInfoKeyRes(t *testing.T) {
	res := BaseRegQueryInfoKeyRes{}
	if err := dcerpc.FromHexString(queryInfoKeyTrace, &res); err != nil {
		t.Fatal(err)
	}
	if res.Class != "" {
		t.Fatalf("Fail: class %q", res.Class)
	}
	if res.SubKeys != 6 || res.MaxSubKeyLen != 22 || res.MaxClassLen != 0 {
		t.Fatalf("Fail: %+v", res)
	}
	if res.Values != 0 || res.MaxValueNameLen != 0 || res.MaxValueLen != 0 {
		t.Fatalf("Fail: %+v", res)
	}
	if res.SecurityDescriptor != 164 {
		t.Fatalf("Fail: security descriptor size %d", res.SecurityDescriptor)
	}
	if res.LastWriteTime.Uint64() != 0x01d2eaae7e088b9e {
		t.Fatalf("Fail: last write time %x", res.LastWriteTime.Uint64())
	}
	expected := time.Date(2017, time.June, 21, 16, 50, 30, 686403000, time.UTC)
	if !res.LastWriteTime.ToTime().Equal(expected) {
		t.Fatalf("Fail: last write time %s", res.LastWriteTime)
	}
	if res.ReturnCode != 0 {
		t.Fatalf("Fail: return code %d", res.ReturnCode)
	}
}

func TestQueryInfoKeyResTruncated(t *testing.T) {
	res := BaseRegQueryInfoKeyRes{}
	err := dcerpc.FromHexString(queryInfoKeyTrace[:len(queryInfoKeyTrace)-2], &res)
	if !errors.Is(err, encoder.ErrEndOfStream) {
		t.Fatalf("Fail: expected end of stream, got %v", err)
	}
}

func TestQueryInfoKeyResTrailing(t *testing.T) {
	res := BaseRegQueryInfoKeyRes{}
	err := dcerpc.FromHexString(queryInfoKeyTrace+"00000000", &res)
	if !errors.Is(err, dcerpc.ErrTrailingData) {
		t.Fatalf("Fail: expected trailing data error, got %v", err)
	}
}

func TestGetVersion(t *testing.T) {
	h := mustHandle(t, "00000000e7f89e2120fd0d4cb4ba7d1714ee1405")
	checkRequest(t, &BaseRegGetVersionReq{HKey: h}, "00000000e7f89e2120fd0d4cb4ba7d1714ee1405")
	res := BaseRegGetVersionRes{}
	if err := dcerpc.FromHexString("0600000000000000", &res); err != nil {
		t.Fatal(err)
	}
	if res.Version != 6 {
		t.Fatalf("Fail: version %d", res.Version)
	}
}

func TestNewResponse(t *testing.T) {
	for _, opnum := range []uint16{OpenClassesRoot, OpenCurrentUser, OpenLocalMachine, OpenUsers, BaseRegCloseKey, BaseRegEnumKey, BaseRegOpenKey, BaseRegQueryInfoKey, BaseRegGetVersion} {
		if _, err := NewResponse(opnum); err != nil {
			t.Fatalf("Fail: opnum %d: %v", opnum, err)
		}
	}
	if _, err := NewResponse(3); !errors.Is(err, dcerpc.ErrUnknownOpnum) {
		t.Fatalf("Fail: expected unknown opnum, got %v", err)
	}
}

// fakeRegistry serves a key with two subkeys.
type fakeRegistry struct {
	calls []uint16
}

func (self *fakeRegistry) MakeIoCtlRequest(opnum uint16, stub []byte) ([]byte, error) {
	self.calls = append(self.calls, opnum)
	handle := "000000003faff080d6ef374da4be978119becfdc"
	switch opnum {
	case OpenLocalMachine, BaseRegOpenKey:
		return hex.DecodeString(handle + "00000000")
	case BaseRegCloseKey:
		return make([]byte, 24), nil
	case BaseRegQueryInfoKey:
		return hex.DecodeString("0000000000000000" + "02000000" + "10000000" + "0000000000000000000000000000000000000000" + "0000000000000000" + "00000000")
	case BaseRegEnumKey:
		index := binary.LittleEndian.Uint32(stub[20:24])
		names := []string{"Policy", "RXACT"}
		if int(index) >= len(names) {
			// Name buffer with no characters, ERROR_NO_MORE_ITEMS
			return hex.DecodeString("0000000400000000" + "00000000" + "00000000" + "03010000")
		}
		var buf bytes.Buffer
		out, err := encoder.NewPacketOutput(&buf)
		if err != nil {
			return nil, err
		}
		if err = out.WriteStringBuf(names[index], MaxKeyNameSize, true); err != nil {
			return nil, err
		}
		out.WriteNull()
		out.WriteNull()
		out.WriteUint32(0)
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("unexpected opnum %d", opnum)
}

func TestRPCConGetSubKeyNames(t *testing.T) {
	fake := &fakeRegistry{}
	rpccon := NewRPCCon(fake)
	hklm, err := rpccon.OpenBaseKey(HKEYLocalMachine)
	if err != nil {
		t.Fatal(err)
	}
	names, err := rpccon.GetSubKeyNames(hklm, "SAM\\SAM")
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 || names[0] != "Policy" || names[1] != "RXACT" {
		t.Fatalf("Fail: names %v", names)
	}
	expected := []uint16{OpenLocalMachine, BaseRegOpenKey, BaseRegQueryInfoKey, BaseRegEnumKey, BaseRegEnumKey, BaseRegEnumKey, BaseRegCloseKey}
	if fmt.Sprint(fake.calls) != fmt.Sprint(expected) {
		t.Fatalf("Fail: calls %v", fake.calls)
	}
}

type deniedRegistry struct{}

func (deniedRegistry) MakeIoCtlRequest(opnum uint16, stub []byte) ([]byte, error) {
	return hex.DecodeString("0000000000000000000000000000000000000000" + "05000000")
}

func TestRPCConReturnCode(t *testing.T) {
	rpccon := NewRPCCon(deniedRegistry{})
	_, err := rpccon.OpenBaseKey(HKEYUsers)
	if !errors.Is(err, mserref.ErrorAccessDenied) {
		t.Fatalf("Fail: expected ERROR_ACCESS_DENIED, got %v", err)
	}
}
