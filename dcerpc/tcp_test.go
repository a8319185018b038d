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
	"encoding/hex"
	"net"
	"testing"
	"time"
)

// serveOnce answers a bind and one request on the first accepted connection.
func serveOnce(ln net.Listener, replies ...string) <-chan error {
	done := make(chan error, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			done <- err
			return
		}
		defer conn.Close()
		for _, r := range replies {
			if _, _, err = readPDU(conn); err != nil {
				done <- err
				return
			}
			b, _ := hex.DecodeString(r)
			if _, err = conn.Write(b); err != nil {
				done <- err
				return
			}
		}
		done <- nil
	}()
	return done
}

type recordingDialer struct {
	addresses []string
}

func (self *recordingDialer) Dial(network, addr string) (net.Conn, error) {
	self.addresses = append(self.addresses, addr)
	return net.Dial(network, addr)
}

func TestDialTCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	response := "05000203100000002000000002000000" + "0800000000000000" + "0600000000000000"
	done := serveOnce(ln, bindAckTrace, response)

	port := ln.Addr().(*net.TCPAddr).Port
	dialer := &recordingDialer{}
	client, err := DialTCP(TCPOptions{Host: "127.0.0.1", Port: port, ProxyDialer: dialer}, winregSyntax)
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()
	res, err := client.MakeIoCtlRequest(26, make([]byte, 20))
	if err != nil {
		t.Fatal(err)
	}
	if hex.EncodeToString(res) != "0600000000000000" {
		t.Fatalf("Fail: response %x", res)
	}
	if err = <-done; err != nil {
		t.Fatal(err)
	}
	if len(dialer.addresses) != 1 || dialer.addresses[0] != ln.Addr().String() {
		t.Fatalf("Fail: dialed %v", dialer.addresses)
	}
}

func TestDialTCPErrors(t *testing.T) {
	if _, err := DialTCP(TCPOptions{Host: "127.0.0.1"}, winregSyntax); err == nil {
		t.Fatal("Fail: expected error for missing port")
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	nak := "05000d03100000001400000001000000" + "02000000"
	done := serveOnce(ln, nak)
	port := ln.Addr().(*net.TCPAddr).Port
	_, err = DialTCP(TCPOptions{Host: "127.0.0.1", Port: port, DialTimeout: time.Second}, winregSyntax)
	if err == nil {
		t.Fatal("Fail: expected bind to be rejected")
	}
	<-done
}
