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
	"errors"
	"fmt"
	"io"

	"github.com/jfjallid/go-msrpc/dcerpc/encoder"
)

// MSRPC Packet Types
const (
	PacketTypeRequest  uint8 = 0
	PacketTypeResponse uint8 = 2
	PacketTypeFault    uint8 = 3
	PacketTypeBind     uint8 = 11
	PacketTypeBindAck  uint8 = 12
	PacketTypeBindNak  uint8 = 13
)

// C706 Section 12.6.3.1 pfc_flags
const (
	PfcFirstFrag uint8 = 0x01
	PfcLastFrag  uint8 = 0x02
)

const (
	headerSize          = 16
	requestHeaderSize   = 24
	defaultMaxFragSize  = 4280
	dataRepresentation  = 0x00000010 // Little-endian, ASCII, IEEE floats
	contextResultAccept = 0
	maxAllocHint        = 1 << 20
)

var (
	ErrBindRejected = errors.New("bind rejected")
	ErrFault        = errors.New("rpc fault")
	ErrBadPDU       = errors.New("malformed PDU")
)

// C706 Appendix E reject status codes seen in fault PDUs
const (
	NcaSOpRangeError     uint32 = 0x1c010002
	NcaSUnknownIf        uint32 = 0x1c010003
	NcaSProtoError       uint32 = 0x1c01000b
	NcaSFaultNDR         uint32 = 0x000006f7
	NcaSFaultCantPerform uint32 = 0x000006d8
)

var faultNames = map[uint32]string{
	NcaSOpRangeError:     "nca_s_op_rng_error",
	NcaSUnknownIf:        "nca_s_unk_if",
	NcaSProtoError:       "nca_s_proto_error",
	NcaSFaultNDR:         "nca_s_fault_ndr",
	NcaSFaultCantPerform: "nca_s_fault_cant_perform",
}

func FaultName(status uint32) string {
	if name, ok := faultNames[status]; ok {
		return name
	}
	return fmt.Sprintf("0x%08x", status)
}

// Defined in C706 (DCE 1.1: Remote Procedure Call) section 12.6.3.1 as "common fields"
type Header struct {
	MajorVersion   byte // rpc_vers
	MinorVersion   byte // rpc_vers_minor
	Type           byte
	Flags          byte
	Representation uint32 // NDR data representation
	FragLength     uint16
	AuthLength     uint16
	CallId         uint32
}

func newHeader(packetType uint8, callId uint32) Header {
	return Header{
		MajorVersion:   5,
		MinorVersion:   0,
		Type:           packetType,
		Flags:          PfcFirstFrag | PfcLastFrag,
		Representation: dataRepresentation,
		CallId:         callId,
	}
}

func (self *Header) write(out *encoder.PrimitiveOutput) (err error) {
	for _, b := range []byte{self.MajorVersion, self.MinorVersion, self.Type, self.Flags} {
		if err = out.WriteUint8(b); err != nil {
			return
		}
	}
	if err = out.WriteUint32(self.Representation); err != nil {
		return
	}
	if err = out.WriteUint16(self.FragLength); err != nil {
		return
	}
	if err = out.WriteUint16(self.AuthLength); err != nil {
		return
	}
	return out.WriteUint32(self.CallId)
}

func (self *Header) read(in *encoder.PrimitiveInput) (err error) {
	for _, b := range []*byte{&self.MajorVersion, &self.MinorVersion, &self.Type, &self.Flags} {
		if *b, err = in.ReadUint8(); err != nil {
			return
		}
	}
	if self.Representation, err = in.ReadUint32(); err != nil {
		return
	}
	if self.FragLength, err = in.ReadUint16(); err != nil {
		return
	}
	if self.AuthLength, err = in.ReadUint16(); err != nil {
		return
	}
	self.CallId, err = in.ReadUint32()
	return
}

/*
C706 Section 12.6.3.1

	typedef struct {
	  p_context_id_t p_cont_id;
	  u_int8 n_transfer_syn;               // number of items
	  u_int8 reserved;                     // alignment pad, m.b.z.
	  p_syntax_id_t abstract_syntax;       // transfer syntax list
	  p_syntax_id_t [size_is(n_transfer_syn)] transfer_syntaxes[];
	} p_cont_elem_t;
*/
type ContextItem struct {
	Id             uint16
	AbstractSyntax SyntaxId
	TransferSyntax []SyntaxId
}

// C706 Section 12.6.4.3
type BindReq struct {
	Header          // 16 Bytes
	MaxSendFragSize uint16
	MaxRecvFragSize uint16
	Association     uint32 // A value of 0 means a request for a new Association group
	Contexts        []ContextItem
}

/*
C706 12.6.3.1

	typedef struct {
	  p_cont_def_result_t result;
	  p_provider_reason_t reason; // only relevant if result != acceptance
	  p_syntax_id_t transfer_syntax; // tr syntax selected 0 if result not accepted
	} p_result_t;
*/
type ContextResItem struct {
	Result         uint16
	Reason         uint16
	TransferSyntax SyntaxId
}

// C706 Section 12.6.4.4 (bind_ack)
type BindRes struct {
	Header          // 16 Bytes
	MaxSendFragSize uint16
	MaxRecvFragSize uint16
	Association     uint32
	SecAddr         string
	Results         []ContextResItem
}

// C706 Section 12.6.4.9
type RequestReq struct { // 24 + len of Buffer
	Header
	AllocHint uint32
	ContextId uint16
	Opnum     uint16
	Buffer    []byte
}

// C706 Section 12.6.4.10 and 12.6.4.7 (fault). Status is only set for faults.
type RequestRes struct {
	Header
	AllocHint   uint32
	ContextId   uint16
	CancelCount byte
	Buffer      []byte
	Status      uint32
}

func NewBindReq(callId uint32, abstractSyntax SyntaxId) *BindReq {
	return &BindReq{
		Header:          newHeader(PacketTypeBind, callId),
		MaxSendFragSize: defaultMaxFragSize,
		MaxRecvFragSize: defaultMaxFragSize,
		Contexts: []ContextItem{
			{Id: 0, AbstractSyntax: abstractSyntax, TransferSyntax: []SyntaxId{NDRSyntax}},
		},
	}
}

func writeSyntaxId(out *encoder.PrimitiveOutput, id SyntaxId) error {
	b, err := id.MarshalBinary()
	if err != nil {
		return err
	}
	_, err = out.Write(b)
	return err
}

func readSyntaxId(in *encoder.PrimitiveInput) (id SyntaxId, err error) {
	b := make([]byte, 20)
	if err = in.ReadFully(b); err != nil {
		return
	}
	err = id.UnmarshalBinary(b)
	return
}

// marshalPDU encodes body after a header with the final FragLength.
func marshalPDU(h *Header, body func(out *encoder.PrimitiveOutput) error) ([]byte, error) {
	var payload bytes.Buffer
	out, err := encoder.NewPrimitiveOutput(&payload)
	if err != nil {
		return nil, err
	}
	if err = body(out); err != nil {
		log.Errorln(err)
		return nil, err
	}
	if payload.Len()+headerSize+int(h.AuthLength) > 0xffff {
		err = fmt.Errorf("PDU of %d bytes exceeds the maximum fragment length", payload.Len()+headerSize)
		log.Errorln(err)
		return nil, err
	}
	h.FragLength = uint16(headerSize + payload.Len())

	var buf bytes.Buffer
	out, err = encoder.NewPrimitiveOutput(&buf)
	if err != nil {
		return nil, err
	}
	if err = h.write(out); err != nil {
		log.Errorln(err)
		return nil, err
	}
	buf.Write(payload.Bytes())
	return buf.Bytes(), nil
}

func (self *BindReq) MarshalBinary() ([]byte, error) {
	log.Debugln("In MarshalBinary for BindReq")
	return marshalPDU(&self.Header, func(out *encoder.PrimitiveOutput) (err error) {
		if err = out.WriteUint16(self.MaxSendFragSize); err != nil {
			return
		}
		if err = out.WriteUint16(self.MaxRecvFragSize); err != nil {
			return
		}
		if err = out.WriteUint32(self.Association); err != nil {
			return
		}
		// p_cont_list_t: n_context_elem, reserved, reserved2
		if err = out.WriteUint32(uint32(uint8(len(self.Contexts)))); err != nil {
			return
		}
		for _, item := range self.Contexts {
			if err = out.WriteUint16(item.Id); err != nil {
				return
			}
			if err = out.WriteUint8(uint8(len(item.TransferSyntax))); err != nil {
				return
			}
			if err = out.WriteUint8(0); err != nil {
				return
			}
			if err = writeSyntaxId(out, item.AbstractSyntax); err != nil {
				return
			}
			for _, ts := range item.TransferSyntax {
				if err = writeSyntaxId(out, ts); err != nil {
					return
				}
			}
		}
		return
	})
}

func (self *RequestReq) MarshalBinary() ([]byte, error) {
	log.Debugln("In MarshalBinary for RequestReq")
	return marshalPDU(&self.Header, func(out *encoder.PrimitiveOutput) (err error) {
		if err = out.WriteUint32(self.AllocHint); err != nil {
			return
		}
		if err = out.WriteUint16(self.ContextId); err != nil {
			return
		}
		if err = out.WriteUint16(self.Opnum); err != nil {
			return
		}
		_, err = out.Write(self.Buffer)
		return
	})
}

// readPDU reads one complete fragment from r and returns its header together
// with an input positioned after the header.
func readPDU(r io.Reader) (h Header, in *encoder.PrimitiveInput, err error) {
	buf := make([]byte, headerSize)
	if _, err = io.ReadFull(r, buf); err != nil {
		log.Errorln(err)
		return
	}
	in, err = encoder.NewPrimitiveInput(bytes.NewReader(buf))
	if err != nil {
		return
	}
	if err = h.read(in); err != nil {
		return
	}
	if h.MajorVersion != 5 || h.FragLength < headerSize {
		err = fmt.Errorf("%w: version %d.%d, fragment length %d", ErrBadPDU, h.MajorVersion, h.MinorVersion, h.FragLength)
		log.Errorln(err)
		return
	}
	buf = append(buf, make([]byte, int(h.FragLength)-headerSize)...)
	if _, err = io.ReadFull(r, buf[headerSize:]); err != nil {
		log.Errorln(err)
		return
	}
	in, err = encoder.NewPrimitiveInput(bytes.NewReader(buf))
	if err != nil {
		return
	}
	err = in.FullySkipBytes(headerSize)
	return
}

func (self *BindRes) read(in *encoder.PrimitiveInput) (err error) {
	log.Debugln("In read for BindRes")
	if self.MaxSendFragSize, err = in.ReadUint16(); err != nil {
		return
	}
	if self.MaxRecvFragSize, err = in.ReadUint16(); err != nil {
		return
	}
	if self.Association, err = in.ReadUint32(); err != nil {
		return
	}
	secAddrLen, err := in.ReadUint16()
	if err != nil {
		return
	}
	secAddr := make([]byte, secAddrLen)
	if err = in.ReadFully(secAddr); err != nil {
		return
	}
	// Secondary address is a null terminated ASCII port string
	self.SecAddr = string(bytes.TrimRight(secAddr, "\x00"))
	// Align to 4-byte boundary
	if err = in.Align(); err != nil {
		return
	}
	count, err := in.ReadUint8()
	if err != nil {
		return
	}
	if err = in.FullySkipBytes(3); err != nil {
		return
	}
	self.Results = make([]ContextResItem, count)
	for i := range self.Results {
		item := &self.Results[i]
		if item.Result, err = in.ReadUint16(); err != nil {
			return
		}
		if item.Reason, err = in.ReadUint16(); err != nil {
			return
		}
		if item.TransferSyntax, err = readSyntaxId(in); err != nil {
			return
		}
	}
	return
}

func (self *RequestRes) read(in *encoder.PrimitiveInput) (err error) {
	log.Debugln("In read for RequestRes")
	if self.AllocHint, err = in.ReadUint32(); err != nil {
		return
	}
	if self.ContextId, err = in.ReadUint16(); err != nil {
		return
	}
	if self.CancelCount, err = in.ReadUint8(); err != nil {
		return
	}
	// Reserved
	if _, err = in.ReadUint8(); err != nil {
		return
	}
	if self.Type == PacketTypeFault {
		self.Status, err = in.ReadUint32()
		return
	}
	if int(self.FragLength) < requestHeaderSize+int(self.AuthLength) {
		err = fmt.Errorf("%w: response fragment length %d", ErrBadPDU, self.FragLength)
		log.Errorln(err)
		return
	}
	self.Buffer = make([]byte, int(self.FragLength)-requestHeaderSize-int(self.AuthLength))
	err = in.ReadFully(self.Buffer)
	return
}
