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
	"fmt"

	"github.com/jfjallid/go-msrpc/dcerpc"
	"github.com/jfjallid/go-msrpc/dcerpc/encoder"
	"github.com/jfjallid/go-msrpc/msdtyp"
)

// MS-LSAD Section 2.2.2.1 LSAPR_OBJECT_ATTRIBUTES
type LsaprObjectAttributes struct {
	Length                   uint32
	SecurityQualityOfService *SecurityQualityOfService
}

// MS-LSAD Section 2.2.3.5 SECURITY_QUALITY_OF_SERVICE
type SecurityQualityOfService struct {
	Length              uint32
	ImpersonationLevel  uint16
	ContextTrackingMode uint8
	EffectiveOnly       uint8
}

// Opnum 44
type LsarOpenPolicy2Req struct {
	SystemName       string
	ObjectAttributes LsaprObjectAttributes
	DesiredAccess    uint32
}

type LsarOpenPolicy2Res struct {
	PolicyHandle msdtyp.ContextHandle
	ReturnCode   uint32
}

// Opnum 0
type LsarCloseReq struct {
	Handle msdtyp.ContextHandle
}

type LsarCloseRes struct {
	Handle     msdtyp.ContextHandle
	ReturnCode uint32
}

// Opnum 11
type LsarEnumerateAccountsReq struct {
	PolicyHandle       msdtyp.ContextHandle
	EnumerationContext uint32
	PreferredMaxLength uint32
}

type LsarEnumerateAccountsRes struct {
	EnumerationContext uint32
	Accounts           []*msdtyp.SID
	ReturnCode         uint32
}

// Opnum 17
type LsarOpenAccountReq struct {
	PolicyHandle  msdtyp.ContextHandle
	AccountSid    *msdtyp.SID
	DesiredAccess uint32
}

type LsarOpenAccountRes struct {
	AccountHandle msdtyp.ContextHandle
	ReturnCode    uint32
}

// Opnum 35
type LsarEnumerateAccountsWithUserRightReq struct {
	PolicyHandle msdtyp.ContextHandle
	UserRight    string // Sent as a null pointer when empty
}

type LsarEnumerateAccountsWithUserRightRes struct {
	Accounts   []*msdtyp.SID
	ReturnCode uint32
}

// Opnum 36
type LsarEnumerateAccountRightsReq struct {
	PolicyHandle msdtyp.ContextHandle
	AccountSid   *msdtyp.SID
}

type LsarEnumerateAccountRightsRes struct {
	UserRights []string
	ReturnCode uint32
}

// NewLsarOpenPolicy2Req returns a request with the object attributes Windows
// clients send: impersonation level Impersonation with dynamic context
// tracking.
func NewLsarOpenPolicy2Req(systemName string, desiredAccess uint32) *LsarOpenPolicy2Req {
	return &LsarOpenPolicy2Req{
		SystemName: systemName,
		ObjectAttributes: LsaprObjectAttributes{
			Length: 24,
			SecurityQualityOfService: &SecurityQualityOfService{
				Length:              12,
				ImpersonationLevel:  LsaSecurityImpersonation,
				ContextTrackingMode: 1,
			},
		},
		DesiredAccess: desiredAccess,
	}
}

// NewResponse returns an empty response for opnum.
func NewResponse(opnum uint16) (dcerpc.Response, error) {
	switch opnum {
	case LsarClose:
		return &LsarCloseRes{}, nil
	case LsarEnumerateAccounts:
		return &LsarEnumerateAccountsRes{}, nil
	case LsarOpenAccount:
		return &LsarOpenAccountRes{}, nil
	case LsarEnumerateAccountsWithUserRight:
		return &LsarEnumerateAccountsWithUserRightRes{}, nil
	case LsarEnumerateAccountRights:
		return &LsarEnumerateAccountRightsRes{}, nil
	case LsarOpenPolicy2:
		return &LsarOpenPolicy2Res{}, nil
	case LsarGetUserName:
		return &LsarGetUserNameRes{}, nil
	}
	err := fmt.Errorf("%w: MS-LSAD opnum %d", dcerpc.ErrUnknownOpnum, opnum)
	log.Errorln(err)
	return nil, err
}

func readHandleAndStatus(in *encoder.PacketInput, h *msdtyp.ContextHandle, rc *uint32) (err error) {
	*h, err = msdtyp.ReadContextHandle(in)
	if err != nil {
		return
	}
	*rc, err = in.ReadUint32()
	return
}

/*
readAccountEnumBuffer decodes an LSAPR_ACCOUNT_ENUM_BUFFER:

	EntriesRead  uint32
	Information  referent id
	MaxCount     uint32            (when EntriesRead is at least 1)
	Sid          [MaxCount]referent id
	             [EntriesRead]RPC_SID
*/
func readAccountEnumBuffer(in *encoder.PacketInput) (sids []*msdtyp.SID, err error) {
	count, err := in.ReadCount(4)
	if err != nil {
		return
	}
	// Information pointer
	if _, err = in.ReadReferentID(); err != nil || count == 0 {
		return
	}
	maxCount, err := in.ReadCount(4)
	if err != nil {
		return
	}
	if maxCount < count {
		err = fmt.Errorf("%w: %d entries in an array of %d", encoder.ErrInvalidCount, count, maxCount)
		log.Errorln(err)
		return
	}
	for range maxCount {
		if _, err = in.ReadReferentID(); err != nil {
			return
		}
	}
	for range count {
		var sid *msdtyp.SID
		sid, err = msdtyp.ReadNDRSID(in)
		if err != nil {
			return nil, err
		}
		sids = append(sids, sid)
	}
	return
}

func writeSIDRequest(out *encoder.PacketOutput, h msdtyp.ContextHandle, sid *msdtyp.SID) error {
	if sid == nil {
		err := fmt.Errorf("missing account SID")
		log.Errorln(err)
		return err
	}
	if err := h.Write(out); err != nil {
		return err
	}
	return msdtyp.WriteNDRSID(out, sid)
}

func (self *LsarOpenPolicy2Req) Opnum() uint16 {
	return LsarOpenPolicy2
}

func (self *LsarOpenPolicy2Req) MarshalNDR(out *encoder.PacketOutput) (err error) {
	log.Debugln("In MarshalNDR for LsarOpenPolicy2Req")
	if err = out.WriteStringRef(self.SystemName, true); err != nil {
		return
	}
	attrs := &self.ObjectAttributes
	if err = out.WriteUint32(attrs.Length); err != nil {
		return
	}
	// RootDirectory, ObjectName, Attributes and SecurityDescriptor are not used
	for i := 0; i < 4; i++ {
		if err = out.WriteUint32(0); err != nil {
			return
		}
	}
	qos := attrs.SecurityQualityOfService
	if qos == nil {
		if err = out.WriteNull(); err != nil {
			return
		}
	} else {
		if err = out.WriteReferentID(); err != nil {
			return
		}
		if err = out.WriteUint32(qos.Length); err != nil {
			return
		}
		if err = out.WriteUint16(qos.ImpersonationLevel); err != nil {
			return
		}
		if err = out.WriteUint8(qos.ContextTrackingMode); err != nil {
			return
		}
		if err = out.WriteUint8(qos.EffectiveOnly); err != nil {
			return
		}
	}
	return out.WriteUint32(self.DesiredAccess)
}

func (self *LsarOpenPolicy2Res) UnmarshalNDR(in *encoder.PacketInput) error {
	log.Debugln("In UnmarshalNDR for LsarOpenPolicy2Res")
	return readHandleAndStatus(in, &self.PolicyHandle, &self.ReturnCode)
}

func (self *LsarCloseReq) Opnum() uint16 {
	return LsarClose
}

func (self *LsarCloseReq) MarshalNDR(out *encoder.PacketOutput) error {
	log.Debugln("In MarshalNDR for LsarCloseReq")
	return self.Handle.Write(out)
}

func (self *LsarCloseRes) UnmarshalNDR(in *encoder.PacketInput) error {
	log.Debugln("In UnmarshalNDR for LsarCloseRes")
	return readHandleAndStatus(in, &self.Handle, &self.ReturnCode)
}

func (self *LsarEnumerateAccountsReq) Opnum() uint16 {
	return LsarEnumerateAccounts
}

func (self *LsarEnumerateAccountsReq) MarshalNDR(out *encoder.PacketOutput) (err error) {
	log.Debugln("In MarshalNDR for LsarEnumerateAccountsReq")
	if err = self.PolicyHandle.Write(out); err != nil {
		return
	}
	if err = out.WriteUint32(self.EnumerationContext); err != nil {
		return
	}
	return out.WriteUint32(self.PreferredMaxLength)
}

func (self *LsarEnumerateAccountsRes) UnmarshalNDR(in *encoder.PacketInput) (err error) {
	log.Debugln("In UnmarshalNDR for LsarEnumerateAccountsRes")
	self.EnumerationContext, err = in.ReadUint32()
	if err != nil {
		return
	}
	self.Accounts, err = readAccountEnumBuffer(in)
	if err != nil {
		return
	}
	self.ReturnCode, err = in.ReadUint32()
	return
}

func (self *LsarOpenAccountReq) Opnum() uint16 {
	return LsarOpenAccount
}

func (self *LsarOpenAccountReq) MarshalNDR(out *encoder.PacketOutput) (err error) {
	log.Debugln("In MarshalNDR for LsarOpenAccountReq")
	if err = writeSIDRequest(out, self.PolicyHandle, self.AccountSid); err != nil {
		return
	}
	return out.WriteUint32(self.DesiredAccess)
}

func (self *LsarOpenAccountRes) UnmarshalNDR(in *encoder.PacketInput) error {
	log.Debugln("In UnmarshalNDR for LsarOpenAccountRes")
	return readHandleAndStatus(in, &self.AccountHandle, &self.ReturnCode)
}

func (self *LsarEnumerateAccountsWithUserRightReq) Opnum() uint16 {
	return LsarEnumerateAccountsWithUserRight
}

func (self *LsarEnumerateAccountsWithUserRightReq) MarshalNDR(out *encoder.PacketOutput) (err error) {
	log.Debugln("In MarshalNDR for LsarEnumerateAccountsWithUserRightReq")
	if err = self.PolicyHandle.Write(out); err != nil {
		return
	}
	if self.UserRight == "" {
		return out.WriteNull()
	}
	if err = out.WriteReferentID(); err != nil {
		return
	}
	return out.WriteStringBuf(self.UserRight, 0, false)
}

func (self *LsarEnumerateAccountsWithUserRightRes) UnmarshalNDR(in *encoder.PacketInput) (err error) {
	log.Debugln("In UnmarshalNDR for LsarEnumerateAccountsWithUserRightRes")
	self.Accounts, err = readAccountEnumBuffer(in)
	if err != nil {
		return
	}
	self.ReturnCode, err = in.ReadUint32()
	return
}

func (self *LsarEnumerateAccountRightsReq) Opnum() uint16 {
	return LsarEnumerateAccountRights
}

func (self *LsarEnumerateAccountRightsReq) MarshalNDR(out *encoder.PacketOutput) error {
	log.Debugln("In MarshalNDR for LsarEnumerateAccountRightsReq")
	return writeSIDRequest(out, self.PolicyHandle, self.AccountSid)
}

// The LSAPR_USER_RIGHT_SET carries all RPC_UNICODE_STRING headers before the
// deferred string buffers.
func (self *LsarEnumerateAccountRightsRes) UnmarshalNDR(in *encoder.PacketInput) (err error) {
	log.Debugln("In UnmarshalNDR for LsarEnumerateAccountRightsRes")
	count, err := in.ReadCount(8)
	if err != nil {
		return
	}
	ptr, err := in.ReadReferentID()
	if err != nil {
		return
	}
	if ptr != 0 {
		var maxCount int
		maxCount, err = in.ReadCount(8)
		if err != nil {
			return
		}
		if maxCount < count {
			err = fmt.Errorf("%w: %d entries in an array of %d", encoder.ErrInvalidCount, count, maxCount)
			log.Errorln(err)
			return
		}
		var refs []uint32
		for range maxCount {
			// Length and MaximumLength
			if err = in.FullySkipBytes(4); err != nil {
				return
			}
			var ref uint32
			ref, err = in.ReadReferentID()
			if err != nil {
				return
			}
			refs = append(refs, ref)
		}
		for _, ref := range refs {
			if ref == 0 {
				continue
			}
			var right string
			right, err = in.ReadString(true)
			if err != nil {
				return
			}
			self.UserRights = append(self.UserRights, right)
		}
	}
	self.ReturnCode, err = in.ReadUint32()
	return
}
