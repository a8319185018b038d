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

// Package mslsad implements messages of the Local Security Authority (Domain
// Policy) Remote Protocol (MS-LSAD) together with LsarGetUserName from
// MS-LSAT, which is served over the same lsarpc interface.
package mslsad

import (
	"errors"

	"github.com/jfjallid/go-msrpc/dcerpc"
	"github.com/jfjallid/go-msrpc/dcerpc/mserref"
	"github.com/jfjallid/go-msrpc/msdtyp"
	"github.com/jfjallid/golog"
)

var log = golog.Get("github.com/jfjallid/go-msrpc/dcerpc/mslsad")

var (
	MSRPCLsaRpcPipe   = "lsarpc"
	MSRPCLsaRpcSyntax = dcerpc.MustSyntaxId("12345778-1234-ABCD-EF00-0123456789AB", 0, 0)
)

// Local Security Authority (Domain Policy) Remote Protocol (lsarpc) Operations
const (
	LsarClose                          uint16 = 0  // This method closes an open handle.
	LsarEnumerateAccounts              uint16 = 11 // This method is invoked to request a list of account objects in the server's database.
	LsarOpenAccount                    uint16 = 17 // This method is invoked to obtain a handle to an account object.
	LsarEnumerateAccountsWithUserRight uint16 = 35 // This method returns a list of account objects that have the specified right.
	LsarEnumerateAccountRights         uint16 = 36 // This method is invoked to retrieve a list of rights that are associated with an existing account.
	LsarOpenPolicy2                    uint16 = 44 // This method opens a context handle to the RPC server.
	LsarGetUserName                    uint16 = 45 // MS-LSAT. Returns the name and domain of the security principal calling the method.
)

// MS-LSAD Section 2.2.3.5
const (
	LsaSecurityAnonymous      uint16 = 0
	LsaSecurityIdentification uint16 = 1
	LsaSecurityImpersonation  uint16 = 2
	LsaSecurityDelegation     uint16 = 3
)

// MS-LSAD Section 2.2.1.1 ACCESS_MASK for all objects
const (
	Delete         uint32 = 0x00010000
	ReadControl    uint32 = 0x00020000
	WriteDac       uint32 = 0x00040000
	WriteOwner     uint32 = 0x00080000
	MaximumAllowed uint32 = 0x02000000
	GenericAll     uint32 = 0x10000000
	GenericExecute uint32 = 0x20000000
)

// MS-LSAD Section 2.2.1.1.2 ACCESS_MASK for policy objects
const (
	PolicyViewLocalInformation  uint32 = 0x00000001
	PolicyViewAuditInformation  uint32 = 0x00000002
	PolicyGetPrivateInformation uint32 = 0x00000004
	PolicyTrustAdmin            uint32 = 0x00000008
	PolicyCreateAccount         uint32 = 0x00000010
	PolicyCreateSecret          uint32 = 0x00000020
	PolicyCreatePrivilege       uint32 = 0x00000040
	PolicyLookupNames           uint32 = 0x00000800
)

// PreferredMaxLength sent by LsarEnumerateAccounts calls from ListAccounts
const DefaultPreferredMaxLength uint32 = 0x1000

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

func statusError(code uint32) error {
	err := mserref.NTStatusFromCode(code)
	if err != nil {
		log.Errorln(err)
	}
	return err
}

func (sb *RPCCon) LsarOpenPolicy2(systemName string, desiredAccess uint32) (policyHandle msdtyp.ContextHandle, err error) {
	log.Debugln("In LsarOpenPolicy2")
	req := NewLsarOpenPolicy2Req(systemName, desiredAccess)
	res := LsarOpenPolicy2Res{}
	if err = sb.call(req, &res); err != nil {
		return
	}
	if err = statusError(res.ReturnCode); err != nil {
		return
	}
	return res.PolicyHandle, nil
}

func (sb *RPCCon) LsarCloseHandle(handle msdtyp.ContextHandle) (err error) {
	log.Debugln("In LsarCloseHandle")
	res := LsarCloseRes{}
	if err = sb.call(&LsarCloseReq{Handle: handle}, &res); err != nil {
		return
	}
	return statusError(res.ReturnCode)
}

// LsarEnumerateAccounts lists the SIDs of all account objects. The
// enumeration is continued until the server reports STATUS_NO_MORE_ENTRIES.
func (sb *RPCCon) LsarEnumerateAccounts(policyHandle msdtyp.ContextHandle) (accounts []*msdtyp.SID, err error) {
	log.Debugln("In LsarEnumerateAccounts")
	req := LsarEnumerateAccountsReq{
		PolicyHandle:       policyHandle,
		PreferredMaxLength: DefaultPreferredMaxLength,
	}
	for {
		res := LsarEnumerateAccountsRes{}
		if err = sb.call(&req, &res); err != nil {
			return
		}
		if mserref.NTStatus(res.ReturnCode) == mserref.StatusNoMoreEntries {
			return
		}
		if err = statusError(res.ReturnCode); err != nil {
			return
		}
		accounts = append(accounts, res.Accounts...)
		if mserref.NTStatus(res.ReturnCode) != mserref.StatusMoreEntries || len(res.Accounts) == 0 {
			return
		}
		req.EnumerationContext = res.EnumerationContext
	}
}

func (sb *RPCCon) LsarOpenAccount(policyHandle msdtyp.ContextHandle, sid *msdtyp.SID, desiredAccess uint32) (accountHandle msdtyp.ContextHandle, err error) {
	log.Debugln("In LsarOpenAccount")
	res := LsarOpenAccountRes{}
	req := LsarOpenAccountReq{PolicyHandle: policyHandle, AccountSid: sid, DesiredAccess: desiredAccess}
	if err = sb.call(&req, &res); err != nil {
		return
	}
	if err = statusError(res.ReturnCode); err != nil {
		return
	}
	return res.AccountHandle, nil
}

// LsarEnumerateAccountsWithUserRight returns the accounts holding userRight,
// e.g. SeBackupPrivilege. An empty userRight lists every account holding any
// right. No matching account is not an error.
func (sb *RPCCon) LsarEnumerateAccountsWithUserRight(policyHandle msdtyp.ContextHandle, userRight string) (accounts []*msdtyp.SID, err error) {
	log.Debugln("In LsarEnumerateAccountsWithUserRight")
	res := LsarEnumerateAccountsWithUserRightRes{}
	req := LsarEnumerateAccountsWithUserRightReq{PolicyHandle: policyHandle, UserRight: userRight}
	if err = sb.call(&req, &res); err != nil {
		return
	}
	if mserref.NTStatus(res.ReturnCode) == mserref.StatusNoMoreEntries {
		return nil, nil
	}
	if err = statusError(res.ReturnCode); err != nil {
		return
	}
	return res.Accounts, nil
}

func (sb *RPCCon) LsarEnumerateAccountRights(policyHandle msdtyp.ContextHandle, sid *msdtyp.SID) (rights []string, err error) {
	log.Debugln("In LsarEnumerateAccountRights")
	res := LsarEnumerateAccountRightsRes{}
	req := LsarEnumerateAccountRightsReq{PolicyHandle: policyHandle, AccountSid: sid}
	if err = sb.call(&req, &res); err != nil {
		return
	}
	if mserref.NTStatus(res.ReturnCode) == mserref.StatusObjectNameNotFound {
		return nil, nil
	}
	if err = statusError(res.ReturnCode); err != nil {
		return
	}
	return res.UserRights, nil
}

func (sb *RPCCon) LsarGetUserName() (username, domain string, err error) {
	log.Debugln("In LsarGetUserName")
	res := LsarGetUserNameRes{}
	if err = sb.call(&LsarGetUserNameReq{}, &res); err != nil {
		return
	}
	if err = statusError(res.ReturnCode); err != nil {
		return
	}
	return res.UserName, res.DomainName, nil
}

// ListAccounts opens the local policy, lists all account SIDs and closes the
// policy again.
func (sb *RPCCon) ListAccounts() (accounts []*msdtyp.SID, err error) {
	log.Debugln("In ListAccounts")
	policyHandle, err := sb.LsarOpenPolicy2("", MaximumAllowed)
	if err != nil {
		return
	}
	defer func() {
		err = errors.Join(err, sb.LsarCloseHandle(policyHandle))
	}()
	return sb.LsarEnumerateAccounts(policyHandle)
}

// ListAccountsWithUserRight opens the local policy and lists the SIDs holding
// userRight.
func (sb *RPCCon) ListAccountsWithUserRight(userRight string) (accounts []*msdtyp.SID, err error) {
	log.Debugln("In ListAccountsWithUserRight")
	policyHandle, err := sb.LsarOpenPolicy2("", PolicyLookupNames|PolicyViewLocalInformation)
	if err != nil {
		return
	}
	defer func() {
		err = errors.Join(err, sb.LsarCloseHandle(policyHandle))
	}()
	return sb.LsarEnumerateAccountsWithUserRight(policyHandle, userRight)
}

// ListAccountRights returns the rights of the account identified by the SID
// string sid.
func (sb *RPCCon) ListAccountRights(sid string) (rights []string, err error) {
	log.Debugln("In ListAccountRights")
	accountSid, err := msdtyp.ConvertStrToSID(sid)
	if err != nil {
		return
	}
	policyHandle, err := sb.LsarOpenPolicy2("", MaximumAllowed)
	if err != nil {
		return
	}
	defer func() {
		err = errors.Join(err, sb.LsarCloseHandle(policyHandle))
	}()
	return sb.LsarEnumerateAccountRights(policyHandle, accountSid)
}
