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
	"net"
	"time"

	"golang.org/x/net/proxy"
)

type TCPOptions struct {
	Host        string
	Port        int
	DialTimeout time.Duration
	// Optional, e.g. a SOCKS5 dialer from proxy.SOCKS5
	ProxyDialer proxy.Dialer
}

// DialTCP connects to an ncacn_ip_tcp endpoint and binds abstractSyntax on
// it. Closing the returned client closes the connection.
func DialTCP(opt TCPOptions, abstractSyntax SyntaxId) (client *Client, err error) {
	log.Debugf("In DialTCP for %s:%d\n", opt.Host, opt.Port)
	if opt.Host == "" || opt.Port <= 0 || opt.Port > 0xffff {
		err = fmt.Errorf("invalid endpoint %s:%d", opt.Host, opt.Port)
		log.Errorln(err)
		return
	}
	address := net.JoinHostPort(opt.Host, fmt.Sprint(opt.Port))
	var conn net.Conn
	if opt.ProxyDialer != nil {
		// No DialTimeout supported
		conn, err = opt.ProxyDialer.Dial("tcp", address)
	} else {
		conn, err = net.DialTimeout("tcp", address, opt.DialTimeout)
	}
	if err != nil {
		log.Errorln(err)
		return
	}
	client, err = Bind(conn, abstractSyntax)
	if err != nil {
		conn.Close()
		return nil, err
	}
	client.closer = conn
	return client, nil
}
