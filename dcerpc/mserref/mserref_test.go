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

import (
	"errors"
	"testing"
)

func TestWErrorFromCode(t *testing.T) {
	if err := WErrorFromCode(0); err != nil {
		t.Fatalf("Fail: expected nil, got %v", err)
	}
	err := WErrorFromCode(5)
	if !errors.Is(err, ErrorAccessDenied) {
		t.Fatalf("Fail: got %v", err)
	}
	if err.Error() != "ERROR_ACCESS_DENIED" {
		t.Fatalf("Fail: got %s", err.Error())
	}
	if WError(0x1234).Error() != "0x00001234" {
		t.Fatalf("Fail: got %s", WError(0x1234).Error())
	}
}

func TestNTStatusFromCode(t *testing.T) {
	for _, code := range []uint32{0, 0x105, 0x8000001A} {
		if err := NTStatusFromCode(code); err != nil {
			t.Fatalf("Fail: 0x%x should not be an error, got %v", code, err)
		}
	}
	err := NTStatusFromCode(0xC0000034)
	var status NTStatus
	if !errors.As(err, &status) || status != StatusObjectNameNotFound {
		t.Fatalf("Fail: got %v", err)
	}
	if status.Name() != "STATUS_OBJECT_NAME_NOT_FOUND" {
		t.Fatalf("Fail: got %s", status.Name())
	}
}
