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

// Package msrrp implements the messages of the Windows Remote Registry
// Protocol (MS-RRP) used to walk registry keys.
package msrrp

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/jfjallid/go-msrpc/dcerpc"
	"github.com/jfjallid/go-msrpc/dcerpc/mserref"
	"github.com/jfjallid/go-msrpc/msdtyp"
	"github.com/jfjallid/golog"
)

var log = golog.Get("github.com/jfjallid/go-msrpc/dcerpc/msrrp")

var (
	MSRRPPipe   = "winreg"
	MSRRPSyntax = dcerpc.MustSyntaxId("338CD001-2244-31F1-AAAA-900038001003", 1, 0)
)

// MS-RRP Section 2.2.3 REGSAM
const (
	PermKeyQueryValue       uint32 = 0x00000001
	PermKeySetValue         uint32 = 0x00000002
	PermKeyCreateSubKey     uint32 = 0x00000004
	PermKeyEnumerateSubKeys uint32 = 0x00000008
	PermKeyNotify           uint32 = 0x00000010
	PermKeyCreateLink       uint32 = 0x00000020
	PermKeyWow6464Key       uint32 = 0x00000100
	PermKeyWow6432Key       uint32 = 0x00000200
)

// MS-DTYP Section 2.4.3 ACCESS_MASK
const (
	PermGenericRead          uint32 = 0x80000000
	PermGenericWrite         uint32 = 0x40000000
	PermGenericExecute       uint32 = 0x20000000
	PermGenericAll           uint32 = 0x10000000
	PermMaximumAllowed       uint32 = 0x02000000
	PermAccessSystemSecurity uint32 = 0x01000000
	PermSynchronize          uint32 = 0x00100000
	PermWriteOwner           uint32 = 0x00080000
	PermWriteDacl            uint32 = 0x00040000
	PermReadControl          uint32 = 0x00020000
	PermDelete               uint32 = 0x00010000
)

var PermMap = map[uint32]string{
	PermKeyQueryValue:        "KEY_QUERY_VALUE",
	PermKeySetValue:          "KEY_SET_VALUE",
	PermKeyCreateSubKey:      "KEY_CREATE_SUB_KEY",
	PermKeyEnumerateSubKeys:  "KEY_ENUMERATE_SUB_KEYS",
	PermKeyNotify:            "KEY_NOTIFY",
	PermKeyCreateLink:        "KEY_CREATE_LINK",
	PermKeyWow6464Key:        "KEY_WOW64_64KEY",
	PermKeyWow6432Key:        "KEY_WOW64_32KEY",
	PermGenericRead:          "GENERIC_READ",
	PermGenericWrite:         "GENERIC_WRITE",
	PermGenericExecute:       "GENERIC_EXECUTE",
	PermGenericAll:           "GENERIC_ALL",
	PermMaximumAllowed:       "MAXIMUM_ALLOWED",
	PermAccessSystemSecurity: "ACCESS_SYSTEM_SECURITY",
	PermSynchronize:          "SYNCHRONIZE",
	PermWriteOwner:           "WRITE_OWNER",
	PermWriteDacl:            "WRITE_DACL",
	PermReadControl:          "READ_CONTROL",
	PermDelete:               "DELETE",
}

// AccessMaskNames lists the names of the bits set in mask, lowest bit first.
// Bits without a name are reported as one hex value at the end.
func AccessMaskNames(mask uint32) (names []string) {
	for _, bit := range slices.Sorted(maps.Keys(PermMap)) {
		if mask&bit != 0 {
			names = append(names, PermMap[bit])
			mask &^= bit
		}
	}
	if mask != 0 {
		names = append(names, fmt.Sprintf("0x%08x", mask))
	}
	return
}

// MS-RRP Section 3.1.5 Opnums
const (
	OpenClassesRoot     uint16 = 0
	OpenCurrentUser     uint16 = 1
	OpenLocalMachine    uint16 = 2
	OpenUsers           uint16 = 4
	BaseRegCloseKey     uint16 = 5
	BaseRegEnumKey      uint16 = 9
	BaseRegOpenKey      uint16 = 15
	BaseRegQueryInfoKey uint16 = 16
	BaseRegGetVersion   uint16 = 26
)

// RootKey selects one of the predefined keys. The value is the opnum of the
// operation that opens it.
type RootKey uint16

const (
	HKEYClassesRoot  = RootKey(OpenClassesRoot)
	HKEYCurrentUser  = RootKey(OpenCurrentUser)
	HKEYLocalMachine = RootKey(OpenLocalMachine)
	HKEYUsers        = RootKey(OpenUsers)
)

var RootKeyNames = map[RootKey]string{
	HKEYClassesRoot:  "HKEY_CLASSES_ROOT",
	HKEYCurrentUser:  "HKEY_CURRENT_USER",
	HKEYLocalMachine: "HKEY_LOCAL_MACHINE",
	HKEYUsers:        "HKEY_USERS",
}

// Buffer sizes in bytes announced for names returned by BaseRegEnumKey
const (
	MaxKeyNameSize   uint16 = 1024
	MaxClassNameSize uint16 = 1024
)

type KeyInfo struct {
	KeyName         string
	ClassName       string
	SubKeys         uint32
	MaxSubKeyLen    uint32
	MaxClassLen     uint32
	Values          uint32
	MaxValueNameLen uint32
	MaxValueLen     uint32
	LastWriteTime   time.Time
}

// RPCCon issues MS-RRP calls over a transport that is bound to the winreg
// interface.
type RPCCon struct {
	dcerpc.Requestor
}

func NewRPCCon(rq dcerpc.Requestor) *RPCCon {
	return &RPCCon{rq}
}

func (r *RPCCon) call(req dcerpc.Request, res dcerpc.Response) error {
	err := dcerpc.Invoke(r.Requestor, req, res)
	if err != nil {
		log.Errorln(err)
	}
	return err
}

func (r *RPCCon) OpenBaseKey(key RootKey) (handle msdtyp.ContextHandle, err error) {
	log.Debugf("Trying to open base key %s\n", RootKeyNames[key])
	res := OpenKeyRes{}
	err = r.call(&OpenRootKeyReq{RootKey: key, DesiredAccess: PermMaximumAllowed}, &res)
	if err != nil {
		return
	}
	if err = mserref.WErrorFromCode(res.ReturnCode); err != nil {
		log.Errorln(err)
		return
	}
	return res.HKey, nil
}

func (r *RPCCon) CloseKeyHandle(hKey msdtyp.ContextHandle) (err error) {
	log.Debugf("Trying to close key handle %s\n", hKey)
	res := BaseRegCloseKeyRes{}
	err = r.call(&BaseRegCloseKeyReq{HKey: hKey}, &res)
	if err != nil {
		return
	}
	if err = mserref.WErrorFromCode(res.ReturnCode); err != nil {
		log.Errorln(err)
	}
	return
}

// EnumKey returns the name and class of the subkey at index. The
// ERROR_NO_MORE_ITEMS status is returned as an mserref.WError.
func (r *RPCCon) EnumKey(hKey msdtyp.ContextHandle, index uint32) (info *KeyInfo, err error) {
	log.Debugf("Trying to enumerate subkey %d of key handle %s\n", index, hKey)
	req := BaseRegEnumKeyReq{
		HKey:           hKey,
		Index:          index,
		NameMaxLength:  MaxKeyNameSize,
		ClassMaxLength: MaxClassNameSize,
		LastWriteTime:  &msdtyp.Filetime{},
	}
	res := BaseRegEnumKeyRes{}
	err = r.call(&req, &res)
	if err != nil {
		return
	}
	if err = mserref.WErrorFromCode(res.ReturnCode); err != nil {
		log.Errorln(err)
		return
	}
	info = &KeyInfo{
		KeyName:       res.Name,
		ClassName:     res.Class,
		LastWriteTime: res.LastWriteTime.ToTime(),
	}
	return
}

func (r *RPCCon) OpenSubKey(hKey msdtyp.ContextHandle, subkey string) (handle msdtyp.ContextHandle, err error) {
	log.Debugf("Trying to open subkey %s\n", subkey)
	req := BaseRegOpenKeyReq{
		HKey:          hKey,
		SubKey:        subkey,
		DesiredAccess: PermMaximumAllowed,
	}
	res := OpenKeyRes{}
	err = r.call(&req, &res)
	if err != nil {
		return
	}
	if err = mserref.WErrorFromCode(res.ReturnCode); err != nil {
		log.Errorln(err)
		return
	}
	return res.HKey, nil
}

func (r *RPCCon) QueryKeyInfo(hKey msdtyp.ContextHandle) (info *KeyInfo, err error) {
	log.Debugf("Trying to query key info for handle %s\n", hKey)
	res := BaseRegQueryInfoKeyRes{}
	err = r.call(&BaseRegQueryInfoKeyReq{HKey: hKey, ClassMaxLength: MaxClassNameSize}, &res)
	if err != nil {
		return
	}
	if err = mserref.WErrorFromCode(res.ReturnCode); err != nil {
		log.Errorln(err)
		return
	}
	info = &KeyInfo{
		ClassName:       res.Class,
		SubKeys:         res.SubKeys,
		MaxSubKeyLen:    res.MaxSubKeyLen,
		MaxClassLen:     res.MaxClassLen,
		Values:          res.Values,
		MaxValueNameLen: res.MaxValueNameLen,
		MaxValueLen:     res.MaxValueLen,
		LastWriteTime:   res.LastWriteTime.ToTime(),
	}
	return
}

func (r *RPCCon) GetVersion(hKey msdtyp.ContextHandle) (version uint32, err error) {
	res := BaseRegGetVersionRes{}
	err = r.call(&BaseRegGetVersionReq{HKey: hKey}, &res)
	if err != nil {
		return
	}
	if err = mserref.WErrorFromCode(res.ReturnCode); err != nil {
		log.Errorln(err)
		return
	}
	return res.Version, nil
}

// GetSubKeyNames opens subkey below hKey and lists the names of its direct
// children.
func (r *RPCCon) GetSubKeyNames(hKey msdtyp.ContextHandle, subkey string) (names []string, err error) {
	hSubKey, err := r.OpenSubKey(hKey, subkey)
	if err != nil {
		return
	}
	defer func() {
		if closeErr := r.CloseKeyHandle(hSubKey); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	info, err := r.QueryKeyInfo(hSubKey)
	if err != nil {
		return
	}
	names = make([]string, 0, min(info.SubKeys, 1024))
	for i := uint32(0); ; i++ {
		var sub *KeyInfo
		sub, err = r.EnumKey(hSubKey, i)
		if errors.Is(err, mserref.ErrorNoMoreItems) {
			err = nil
			break
		}
		if err != nil {
			return nil, fmt.Errorf("enumerating subkey %d of %s: %w", i, subkey, err)
		}
		names = append(names, sub.KeyName)
	}
	return
}
