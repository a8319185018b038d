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

// rpcdecode decodes a hex encoded NDR response stub of an MS-RRP, MS-LSAD or
// MS-SRVS operation and prints the result as YAML.
//
//	rpcdecode --service srvs --opnum 21 --hex 66000000...
//	echo 0000... | rpcdecode --service rrp --opnum 16
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/jfjallid/go-msrpc/dcerpc"
	"github.com/jfjallid/go-msrpc/dcerpc/mslsad"
	"github.com/jfjallid/go-msrpc/dcerpc/msrrp"
	"github.com/jfjallid/go-msrpc/dcerpc/mssrvs"
	"github.com/jfjallid/golog"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

var log = golog.Get("github.com/jfjallid/go-msrpc/cmd/rpcdecode")

var services = map[string]func(opnum uint16) (dcerpc.Response, error){
	"rrp":  msrrp.NewResponse,
	"lsad": mslsad.NewResponse,
	"srvs": mssrvs.NewResponse,
}

var debugPackages = []string{
	"github.com/jfjallid/go-msrpc/dcerpc",
	"github.com/jfjallid/go-msrpc/dcerpc/encoder",
	"github.com/jfjallid/go-msrpc/dcerpc/mslsad",
	"github.com/jfjallid/go-msrpc/dcerpc/msrrp",
	"github.com/jfjallid/go-msrpc/dcerpc/mssrvs",
	"github.com/jfjallid/go-msrpc/msdtyp",
	"github.com/jfjallid/go-msrpc/cmd/rpcdecode",
}

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func serviceNames() string {
	names := make([]string, 0, len(services))
	for name := range services {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	var service, hexStub string
	var opnum uint16
	var debug bool

	flagSet := pflag.NewFlagSet("rpcdecode", pflag.ContinueOnError)
	flagSet.StringVarP(&service, "service", "s", "", "interface of the response: "+serviceNames())
	flagSet.Uint16VarP(&opnum, "opnum", "o", 0, "operation number of the response")
	flagSet.StringVar(&hexStub, "hex", "", "hex encoded response stub (read from stdin when empty)")
	flagSet.BoolVar(&debug, "debug", false, "enable debug logging")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if flagSet.NArg() > 0 {
		return fmt.Errorf("unexpected argument: %s", flagSet.Arg(0))
	}
	if debug {
		for _, pkg := range debugPackages {
			golog.Set(pkg, pkg[strings.LastIndex(pkg, "/")+1:], golog.LevelDebug, golog.LstdFlags|golog.Lshortfile, golog.DefaultOutput, golog.DefaultErrOutput)
		}
	}

	newResponse, ok := services[service]
	if !ok {
		return fmt.Errorf("unknown service %q, expected one of %s", service, serviceNames())
	}
	res, err := newResponse(opnum)
	if err != nil {
		return err
	}

	if hexStub == "" {
		b, err := io.ReadAll(stdin)
		if err != nil {
			log.Errorln(err)
			return err
		}
		hexStub = string(b)
	}
	hexStub = strings.Join(strings.Fields(hexStub), "")
	log.Debugf("Decoding %d bytes as %s opnum %d\n", len(hexStub)/2, service, opnum)
	if err = dcerpc.FromHexString(hexStub, res); err != nil {
		return err
	}

	enc := yaml.NewEncoder(stdout)
	enc.SetIndent(2)
	if err = enc.Encode(map[string]interface{}{
		"service":  service,
		"opnum":    opnum,
		"response": res,
	}); err != nil {
		log.Errorln(err)
		return err
	}
	return enc.Close()
}
