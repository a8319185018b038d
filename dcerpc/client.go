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
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/jfjallid/go-msrpc/dcerpc/mserref"
)

// Client carries request stubs of one bound interface over a connection
// oriented transport, e.g. an SMB named pipe opened on the interface's pipe
// or an ncacn_ip_tcp connection. Authentication is not supported.
type Client struct {
	rw     io.ReadWriter
	closer io.Closer
	mu     sync.Mutex
	callId atomic.Uint32 // Last used value, so call Add(1) first
	syntax SyntaxId
	// Negotiated in the bind
	maxSendFragSize uint16
}

// Bind negotiates the NDR transfer syntax for abstractSyntax on rw and
// returns a client that implements Requestor.
func Bind(rw io.ReadWriter, abstractSyntax SyntaxId) (client *Client, err error) {
	log.Debugf("In Bind for %s\n", abstractSyntax)
	client = &Client{rw: rw, syntax: abstractSyntax}
	req := NewBindReq(client.callId.Add(1), abstractSyntax)
	buf, err := req.MarshalBinary()
	if err != nil {
		return nil, err
	}
	if _, err = rw.Write(buf); err != nil {
		log.Errorln(err)
		return nil, err
	}

	h, in, err := readPDU(rw)
	if err != nil {
		return nil, err
	}
	if h.CallId != req.CallId {
		err = fmt.Errorf("%w: received callId %d, expected %d", ErrBadPDU, h.CallId, req.CallId)
		log.Errorln(err)
		return nil, err
	}
	if h.Type == PacketTypeBindNak {
		reason, _ := in.ReadUint16()
		err = fmt.Errorf("%w: bind_nak with reason %d", ErrBindRejected, reason)
		log.Errorln(err)
		return nil, err
	}
	if h.Type != PacketTypeBindAck {
		err = fmt.Errorf("%w: unexpected packet type %d in response to bind", ErrBadPDU, h.Type)
		log.Errorln(err)
		return nil, err
	}
	res := BindRes{Header: h}
	if err = res.read(in); err != nil {
		log.Errorln(err)
		return nil, err
	}
	if len(res.Results) == 0 || res.Results[0].Result != contextResultAccept {
		err = fmt.Errorf("%w: server did not accept %s: %+v", ErrBindRejected, abstractSyntax, res.Results)
		log.Errorln(err)
		return nil, err
	}
	client.maxSendFragSize = res.MaxSendFragSize
	log.Debugf("Bound to %s on %q, max fragment size %d\n", abstractSyntax, res.SecAddr, res.MaxSendFragSize)
	return client, nil
}

// Close closes the underlying connection when the client owns it.
func (self *Client) Close() error {
	if self.closer == nil {
		return nil
	}
	return self.closer.Close()
}

func (self *Client) Syntax() SyntaxId {
	return self.syntax
}

// MakeIoCtlRequest sends stub as one or more request fragments and returns
// the reassembled response stub. A fault PDU is returned as an error wrapping
// ErrFault and, when the status is a known Win32 code, the mserref.WError.
func (self *Client) MakeIoCtlRequest(opnum uint16, stub []byte) (result []byte, err error) {
	log.Debugf("In MakeIoCtlRequest for opnum %d\n", opnum)
	self.mu.Lock()
	defer self.mu.Unlock()

	callId := self.callId.Add(1)
	maxStub := int(self.maxSendFragSize) - requestHeaderSize
	if maxStub <= 0 {
		maxStub = defaultMaxFragSize - requestHeaderSize
	}
	offset := 0
	for first := true; first || offset < len(stub); first = false {
		end := min(offset+maxStub, len(stub))
		req := RequestReq{
			Header:    newHeader(PacketTypeRequest, callId),
			AllocHint: uint32(len(stub) - offset),
			Opnum:     opnum,
			Buffer:    stub[offset:end],
		}
		req.Flags = 0
		if first {
			req.Flags |= PfcFirstFrag
		}
		if end == len(stub) {
			req.Flags |= PfcLastFrag
		}
		var buf []byte
		if buf, err = req.MarshalBinary(); err != nil {
			return
		}
		if _, err = self.rw.Write(buf); err != nil {
			log.Errorln(err)
			return
		}
		offset = end
	}

	for {
		h, in, err := readPDU(self.rw)
		if err != nil {
			return nil, err
		}
		if h.CallId != callId {
			err = fmt.Errorf("%w: incorrect callId on response. Sent %d and received %d", ErrBadPDU, callId, h.CallId)
			log.Errorln(err)
			return nil, err
		}
		res := RequestRes{Header: h}
		if err = res.read(in); err != nil {
			log.Errorln(err)
			return nil, err
		}
		switch h.Type {
		case PacketTypeFault:
			if werr := mserref.WError(res.Status); werr.IsKnown() {
				err = fmt.Errorf("%w: %w", ErrFault, werr)
			} else {
				err = fmt.Errorf("%w: %s", ErrFault, FaultName(res.Status))
			}
			log.Errorln(err)
			return nil, err
		case PacketTypeResponse:
		default:
			err = fmt.Errorf("%w: unexpected packet type %d in response to request", ErrBadPDU, h.Type)
			log.Errorln(err)
			return nil, err
		}
		if result == nil {
			result = make([]byte, 0, min(int(res.AllocHint), maxAllocHint))
		}
		result = append(result, res.Buffer...)
		if h.Flags&PfcLastFrag != 0 {
			return result, nil
		}
	}
}
