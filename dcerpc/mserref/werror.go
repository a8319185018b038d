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

// Package mserref maps the status values returned by MS-RPC operations to
// errors. WERROR values come from the Win32 system error codes, NTSTATUS
// values from MS-ERREF Section 2.3.
package mserref

import "fmt"

// WError is a Win32 error code as returned by MS-RRP and MS-SRVS operations.
type WError uint32

const (
	ErrorSuccess            WError = 0x00000000
	ErrorFileNotFound       WError = 0x00000002
	ErrorPathNotFound       WError = 0x00000003
	ErrorAccessDenied       WError = 0x00000005
	ErrorInvalidHandle      WError = 0x00000006
	ErrorNotEnoughMemory    WError = 0x00000008
	ErrorOutOfMemory        WError = 0x0000000E
	ErrorWriteProtect       WError = 0x00000013
	ErrorNotReady           WError = 0x00000015
	ErrorNotSupported       WError = 0x00000032
	ErrorBadNetpath         WError = 0x00000035
	ErrorInvalidParameter   WError = 0x00000057
	ErrorCallNotImplemented WError = 0x00000078
	ErrorInsufficientBuffer WError = 0x0000007A
	ErrorInvalidName        WError = 0x0000007B
	ErrorInvalidLevel       WError = 0x0000007C
	ErrorBusy               WError = 0x000000AA
	ErrorAlreadyExists      WError = 0x000000B7
	ErrorMoreData           WError = 0x000000EA
	WaitTimeout             WError = 0x00000102
	ErrorNoMoreItems        WError = 0x00000103
	ErrorKeyDeleted         WError = 0x000003FA
	NerrBufTooSmall         WError = 0x0000084B
	NerrInvalidComputer     WError = 0x0000092F
)

var wErrorNames = map[WError]string{
	ErrorSuccess:            "ERROR_SUCCESS",
	ErrorFileNotFound:       "ERROR_FILE_NOT_FOUND",
	ErrorPathNotFound:       "ERROR_PATH_NOT_FOUND",
	ErrorAccessDenied:       "ERROR_ACCESS_DENIED",
	ErrorInvalidHandle:      "ERROR_INVALID_HANDLE",
	ErrorNotEnoughMemory:    "ERROR_NOT_ENOUGH_MEMORY",
	ErrorOutOfMemory:        "ERROR_OUTOFMEMORY",
	ErrorWriteProtect:       "ERROR_WRITE_PROTECT",
	ErrorNotReady:           "ERROR_NOT_READY",
	ErrorNotSupported:       "ERROR_NOT_SUPPORTED",
	ErrorBadNetpath:         "ERROR_BAD_NETPATH",
	ErrorInvalidParameter:   "ERROR_INVALID_PARAMETER",
	ErrorCallNotImplemented: "ERROR_CALL_NOT_IMPLEMENTED",
	ErrorInsufficientBuffer: "ERROR_INSUFFICIENT_BUFFER",
	ErrorInvalidName:        "ERROR_INVALID_NAME",
	ErrorInvalidLevel:       "ERROR_INVALID_LEVEL",
	ErrorBusy:               "ERROR_BUSY",
	ErrorAlreadyExists:      "ERROR_ALREADY_EXISTS",
	ErrorMoreData:           "ERROR_MORE_DATA",
	WaitTimeout:             "WAIT_TIMEOUT",
	ErrorNoMoreItems:        "ERROR_NO_MORE_ITEMS",
	ErrorKeyDeleted:         "ERROR_KEY_DELETED",
	NerrBufTooSmall:         "NERR_BufTooSmall",
	NerrInvalidComputer:     "NERR_InvalidComputer",
}

// Name returns the symbolic name of the code, or its hex value when unknown.
func (self WError) Name() string {
	if name, ok := wErrorNames[self]; ok {
		return name
	}
	return fmt.Sprintf("0x%08x", uint32(self))
}

func (self WError) Error() string {
	return self.Name()
}

// IsKnown reports whether the code has a name in this package.
func (self WError) IsKnown() bool {
	_, ok := wErrorNames[self]
	return ok
}

// IsSuccess is true for ERROR_SUCCESS only.
func (self WError) IsSuccess() bool {
	return self == ErrorSuccess
}

// WErrorFromCode returns nil for ERROR_SUCCESS and the WError otherwise.
func WErrorFromCode(code uint32) error {
	if code == uint32(ErrorSuccess) {
		return nil
	}
	return WError(code)
}
