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

// Package dcerpc defines the contract between DCE/RPC operation messages and
// the NDR codec, and the minimal interface a transport has to provide to carry
// them.
package dcerpc

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/jfjallid/go-msrpc/dcerpc/encoder"
	"github.com/jfjallid/golog"
)

var log = golog.Get("github.com/jfjallid/go-msrpc/dcerpc")

var (
	ErrTrailingData = errors.New("trailing data after NDR stub")
	ErrUnknownOpnum = errors.New("unknown opnum")
)

// Request is the client side input of an operation. MarshalNDR writes the
// stub without PDU header.
type Request interface {
	Opnum() uint16
	MarshalNDR(out *encoder.PacketOutput) error
}

// Response is the client side output of an operation. UnmarshalNDR populates
// the receiver from the stub. The receiver is undefined after a failure.
type Response interface {
	UnmarshalNDR(in *encoder.PacketInput) error
}

// Requestor sends a request stub for opnum over an already bound interface
// and returns the response stub. Implemented by the transport.
type Requestor interface {
	MakeIoCtlRequest(opnum uint16, stub []byte) ([]byte, error)
}

func MarshalBinary(req Request) ([]byte, error) {
	var buf bytes.Buffer
	out, err := encoder.NewPacketOutput(&buf)
	if err != nil {
		return nil, err
	}
	if err = req.MarshalNDR(out); err != nil {
		log.Errorln(err)
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes buf into res. All of buf must be consumed.
func UnmarshalBinary(buf []byte, res Response) error {
	in, err := encoder.NewPacketInput(bytes.NewReader(buf))
	if err != nil {
		return err
	}
	if err = res.UnmarshalNDR(in); err != nil {
		log.Errorln(err)
		return err
	}
	if int(in.Count()) != len(buf) {
		err = fmt.Errorf("%w: consumed %d of %d bytes", ErrTrailingData, in.Count(), len(buf))
		log.Errorln(err)
		return err
	}
	return nil
}

func ToHexString(req Request) (string, error) {
	b, err := MarshalBinary(req)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func FromHexString(s string, res Response) error {
	b, err := hex.DecodeString(s)
	if err != nil {
		log.Errorln(err)
		return err
	}
	return UnmarshalBinary(b, res)
}

// Invoke marshals req, sends it with rq and decodes the reply into res.
// Return codes carried in res are left for the caller to check.
func Invoke(rq Requestor, req Request, res Response) error {
	log.Debugf("Invoking opnum %d\n", req.Opnum())
	stub, err := MarshalBinary(req)
	if err != nil {
		return err
	}
	reply, err := rq.MakeIoCtlRequest(req.Opnum(), stub)
	if err != nil {
		log.Errorln(err)
		return err
	}
	return UnmarshalBinary(reply, res)
}
