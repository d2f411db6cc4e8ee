// Copyright 2026 The SNI Proxy Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package handshake

import (
	"io"
	"net"
	"strconv"
	"strings"
)

const (
	httpOKReply = "HTTP/1.1 200 Connection established\r\nProxy-agent: MyProxy/1.0\r\n\r\n"
	httpBadReq  = "HTTP/1.1 400 Bad Request\r\nProxy-agent: MyProxy/1.0\r\n\r\n"

	maxHeaderLineLen = 8192
)

// runHTTPConnect reads CRLF-terminated header lines after the already
// consumed "CONNECT" verb, until the blank line that ends the request,
// looking for the Host header to derive the remote address from. It reads
// byte by byte rather than through a buffered reader so it never consumes
// bytes belonging to the TLS record that follows the request.
func runHTTPConnect(rw io.ReadWriter) (host string, port uint16, err error) {
	// Discard the rest of the request line (the target and HTTP version);
	// only the Host header is used to derive the remote address.
	if _, err := readLine(rw); err != nil {
		return "", 0, err
	}

	var hostHeader string
	for {
		line, err := readLine(rw)
		if err != nil {
			return "", 0, err
		}
		if line == "" {
			break
		}
		if name, value, ok := splitHeader(line); ok && strings.EqualFold(name, "Host") {
			hostHeader = value
		}
	}

	if hostHeader == "" {
		io.WriteString(rw, httpBadReq)
		return "", 0, ErrHttpMissingHost
	}

	h, portStr, err := net.SplitHostPort(hostHeader)
	if err != nil {
		// No explicit port in the Host header; default to 443 as this
		// proxy only ever relays TLS.
		h, portStr = hostHeader, "443"
	}
	p, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		io.WriteString(rw, httpBadReq)
		return "", 0, ErrHttpMissingHost
	}

	if _, err := io.WriteString(rw, httpOKReply); err != nil {
		return "", 0, err
	}
	return h, uint16(p), nil
}

// readLine reads a single CRLF- or LF-terminated line from r, one byte at
// a time, and returns it without the trailing newline.
func readLine(r io.Reader) (string, error) {
	var line []byte
	var b [1]byte
	for {
		if len(line) > maxHeaderLineLen {
			return "", io.ErrShortBuffer
		}
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return "", err
		}
		if b[0] == '\n' {
			break
		}
		if b[0] != '\r' {
			line = append(line, b[0])
		}
	}
	return string(line), nil
}

// splitHeader splits a "Name: value" header line.
func splitHeader(line string) (name, value string, ok bool) {
	i := strings.IndexByte(line, ':')
	if i < 0 {
		return "", "", false
	}
	return line[:i], strings.TrimSpace(line[i+1:]), true
}
