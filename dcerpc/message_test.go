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
	"bytes"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/jfjallid/go-msrpc/dcerpc/encoder"
)

type echoReq struct {
	Name  string
	Value uint32
}

func (self *echoReq) Opnum() uint16 {
	return 7
}

func (self *echoReq) MarshalNDR(out *encoder.PacketOutput) error {
	if err := out.WriteStringRef(self.Name, true); err != nil {
		return err
	}
	return out.WriteUint32(self.Value)
}

type echoRes struct {
	Name       string
	ReturnCode uint32
}

func (self *echoRes) UnmarshalNDR(in *encoder.PacketInput) (err error) {
	ptr, err := in.ReadReferentID()
	if err != nil {
		return
	}
	if ptr != 0 {
		self.Name, err = in.ReadString(true)
		if err != nil {
			return
		}
	}
	self.ReturnCode, err = in.ReadUint32()
	return
}

type loopback struct {
	opnum uint16
	reply []byte
	err   error
}

func (self *loopback) MakeIoCtlRequest(opnum uint16, stub []byte) ([]byte, error) {
	self.opnum = opnum
	if self.err != nil {
		return nil, self.err
	}
	if self.reply != nil {
		return self.reply, nil
	}
	return stub, nil
}

const echoTrace = "00000200030000000000000003000000610062000000000005000000"

func TestMarshalBinary(t *testing.T) {
	s, err := ToHexString(&echoReq{Name: "ab", Value: 5})
	if err != nil {
		t.Fatal(err)
	}
	if s != echoTrace {
		t.Fatalf("Fail: got %s", s)
	}
	b, err := MarshalBinary(&echoReq{Name: "ab", Value: 5})
	if err != nil {
		t.Fatal(err)
	}
	b2, err := MarshalBinary(&echoReq{Name: "ab", Value: 5})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(b, b2) {
		t.Fatal("Fail: encoding is not deterministic")
	}
}

func TestUnmarshalBinary(t *testing.T) {
	res := echoRes{}
	if err := FromHexString(echoTrace, &res); err != nil {
		t.Fatal(err)
	}
	if res.Name != "ab" || res.ReturnCode != 5 {
		t.Fatalf("Fail: %+v", res)
	}
}

func TestUnmarshalTrailingData(t *testing.T) {
	res := echoRes{}
	err := FromHexString(echoTrace+"00", &res)
	if !errors.Is(err, ErrTrailingData) {
		t.Fatalf("Fail: expected ErrTrailingData, got %v", err)
	}
}

func TestUnmarshalTruncated(t *testing.T) {
	res := echoRes{}
	err := FromHexString(echoTrace[:len(echoTrace)-2], &res)
	if !errors.Is(err, encoder.ErrEndOfStream) {
		t.Fatalf("Fail: expected ErrEndOfStream, got %v", err)
	}
}

func TestInvoke(t *testing.T) {
	rq := &loopback{}
	res := echoRes{}
	if err := Invoke(rq, &echoReq{Name: "ab", Value: 5}, &res); err != nil {
		t.Fatal(err)
	}
	if rq.opnum != 7 {
		t.Fatalf("Fail: sent opnum %d", rq.opnum)
	}
	if res.Name != "ab" || res.ReturnCode != 5 {
		t.Fatalf("Fail: %+v", res)
	}

	broken := errors.New("pipe closed")
	err := Invoke(&loopback{err: broken}, &echoReq{}, &echoRes{})
	if !errors.Is(err, broken) {
		t.Fatalf("Fail: expected transport error, got %v", err)
	}
}

func TestSyntaxId(t *testing.T) {
	id, err := NewSyntaxId("338CD001-2244-31F1-AAAA-900038001003", 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	b, err := id.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	expected, _ := hex.DecodeString("01d08c334422f131aaaa9000380010030100" + "0000")
	if !bytes.Equal(b, expected) {
		t.Fatalf("Fail: got %x", b)
	}

	b, _ = NDRSyntax.MarshalBinary()
	expected, _ = hex.DecodeString("045d888aeb1cc9119fe808002b10486002000000")
	if !bytes.Equal(b, expected) {
		t.Fatalf("Fail: got %x", b)
	}

	if _, err = NewSyntaxId("not-a-uuid", 1, 0); err == nil {
		t.Fatal("Fail: expected error for invalid uuid")
	}
}
