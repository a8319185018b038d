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

package encoder

import (
	"fmt"

	"golang.org/x/text/encoding/unicode"
)

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// ToUnicode encodes s as UTF-16LE without a terminating null character.
func ToUnicode(s string) ([]byte, error) {
	return utf16le.NewEncoder().Bytes([]byte(s))
}

// FromUnicode decodes a UTF-16LE buffer.
func FromUnicode(buf []byte) (string, error) {
	if len(buf)%2 != 0 {
		return "", fmt.Errorf("invalid UTF-16LE string of odd length %d", len(buf))
	}
	b, err := utf16le.NewDecoder().Bytes(buf)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// codeUnits returns the UTF-16LE form of s, optionally followed by a null
// character, together with the number of code units it holds.
func codeUnits(s string, nullTerminate bool) (buf []byte, count uint32, err error) {
	buf, err = ToUnicode(s)
	if err != nil {
		return
	}
	if nullTerminate {
		buf = append(buf, 0, 0)
	}
	count = uint32(len(buf) / 2)
	return
}
