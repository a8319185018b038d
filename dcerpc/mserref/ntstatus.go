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

package mserref

import "fmt"

// NTStatus is an NTSTATUS value as returned by MS-LSAD operations.
type NTStatus uint32

const (
	StatusSuccess               NTStatus = 0x00000000
	StatusMoreEntries           NTStatus = 0x00000105
	StatusSomeNotMapped         NTStatus = 0x00000107
	StatusNoMoreEntries         NTStatus = 0x8000001A
	StatusInvalidHandle         NTStatus = 0xC0000008
	StatusInvalidParameter      NTStatus = 0xC000000D
	StatusAccessDenied          NTStatus = 0xC0000022
	StatusBufferTooSmall        NTStatus = 0xC0000023
	StatusObjectNameNotFound    NTStatus = 0xC0000034
	StatusObjectNameCollision   NTStatus = 0xC0000035
	StatusNoSuchPrivilege       NTStatus = 0xC0000060
	StatusNoneMapped            NTStatus = 0xC0000073
	StatusInvalidSID            NTStatus = 0xC0000078
	StatusInsufficientResources NTStatus = 0xC000009A
	StatusNotSupported          NTStatus = 0xC00000BB
)

var ntStatusNames = map[NTStatus]string{
	StatusSuccess:               "STATUS_SUCCESS",
	StatusMoreEntries:           "STATUS_MORE_ENTRIES",
	StatusSomeNotMapped:         "STATUS_SOME_NOT_MAPPED",
	StatusNoMoreEntries:         "STATUS_NO_MORE_ENTRIES",
	StatusInvalidHandle:         "STATUS_INVALID_HANDLE",
	StatusInvalidParameter:      "STATUS_INVALID_PARAMETER",
	StatusAccessDenied:          "STATUS_ACCESS_DENIED",
	StatusBufferTooSmall:        "STATUS_BUFFER_TOO_SMALL",
	StatusObjectNameNotFound:    "STATUS_OBJECT_NAME_NOT_FOUND",
	StatusObjectNameCollision:   "STATUS_OBJECT_NAME_COLLISION",
	StatusNoSuchPrivilege:       "STATUS_NO_SUCH_PRIVILEGE",
	StatusNoneMapped:            "STATUS_NONE_MAPPED",
	StatusInvalidSID:            "STATUS_INVALID_SID",
	StatusInsufficientResources: "STATUS_INSUFFICIENT_RESOURCES",
	StatusNotSupported:          "STATUS_NOT_SUPPORTED",
}

func (self NTStatus) Name() string {
	if name, ok := ntStatusNames[self]; ok {
		return name
	}
	return fmt.Sprintf("0x%08x", uint32(self))
}

func (self NTStatus) Error() string {
	return self.Name()
}

// IsError is true for the error severity (top two bits set). Success,
// informational and warning values are not errors.
func (self NTStatus) IsError() bool {
	return uint32(self)>>30 == 3
}

// NTStatusFromCode returns nil for values that are not of error severity,
// e.g. STATUS_MORE_ENTRIES, and the NTStatus otherwise.
func NTStatusFromCode(code uint32) error {
	if !NTStatus(code).IsError() {
		return nil
	}
	return NTStatus(code)
}
