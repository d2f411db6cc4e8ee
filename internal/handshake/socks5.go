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
	"encoding/binary"
	"fmt"
	"io"
	"net"
)

// SOCKS5 address types, per https://datatracker.ietf.org/doc/html/rfc1928#section-5.
const (
	addrTypeIPv4       = 0x01
	addrTypeDomainName = 0x03
	addrTypeIPv6       = 0x04
)

const (
	socks5Version   = 0x05
	socks5CmdConn   = 0x01
	socks5NoAuth    = 0x00
	replyOK         = 0x00
	replyCmdNotSup  = 0x07
	replyAddrNotSup = 0x08
)

// runSocks5 completes the SOCKS5 handshake (method negotiation, CONNECT
// request, address parsing) after the version byte 0x05 has already been
// consumed by Run, per RFC 1928, accepting only the no-authentication
// method and the CONNECT command.
func runSocks5(rw io.ReadWriter) (host string, port uint16, err error) {
	var nauth [1]byte
	if _, err := io.ReadFull(rw, nauth[:]); err != nil {
		return "", 0, err
	}
	methods := make([]byte, nauth[0])
	if _, err := io.ReadFull(rw, methods); err != nil {
		return "", 0, err
	}
	if _, err := rw.Write([]byte{socks5Version, socks5NoAuth}); err != nil {
		return "", 0, err
	}

	var reqHeader [3]byte
	if _, err := io.ReadFull(rw, reqHeader[:]); err != nil {
		return "", 0, err
	}
	cmd := reqHeader[1]
	if cmd != socks5CmdConn {
		rw.Write(failureReply(replyCmdNotSup))
		return "", 0, &Socks5UnsupportedCommandError{Cmd: cmd}
	}

	host, port, err = readSocks5Address(rw)
	if err != nil {
		rw.Write(failureReply(replyAddrNotSup))
		return "", 0, err
	}

	if _, err := rw.Write(successReply()); err != nil {
		return "", 0, err
	}
	return host, port, nil
}

// readSocks5Address reads the address-type byte and the address/port that
// follow it, per RFC 1928 section 5.
func readSocks5Address(r io.Reader) (string, uint16, error) {
	var atyp [1]byte
	if _, err := io.ReadFull(r, atyp[:]); err != nil {
		return "", 0, err
	}

	switch atyp[0] {
	case addrTypeIPv4:
		var buf [4 + 2]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return "", 0, err
		}
		ip := net.IP(buf[:4])
		port := binary.BigEndian.Uint16(buf[4:6])
		return ip.String(), port, nil

	case addrTypeDomainName:
		var lenByte [1]byte
		if _, err := io.ReadFull(r, lenByte[:]); err != nil {
			return "", 0, err
		}
		buf := make([]byte, int(lenByte[0])+2)
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", 0, err
		}
		name := string(buf[:lenByte[0]])
		port := binary.BigEndian.Uint16(buf[lenByte[0]:])
		return name, port, nil

	case addrTypeIPv6:
		var buf [16 + 2]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return "", 0, err
		}
		ip := net.IP(buf[:16])
		port := binary.BigEndian.Uint16(buf[16:18])
		return ip.String(), port, nil

	default:
		return "", 0, fmt.Errorf("%w: %#x", ErrSocks5BadAddrType, atyp[0])
	}
}

// successReply builds the SOCKS5 success reply carrying a zero BND.ADDR /
// BND.PORT, matching the literal 10-byte reply named in §4.D step 4; the
// bound address is meaningless for a CONNECT proxy that never listens on
// the client's behalf.
func successReply() []byte {
	return []byte{socks5Version, replyOK, 0x00, addrTypeIPv4, 0, 0, 0, 0, 0, 0}
}

func failureReply(code byte) []byte {
	return []byte{socks5Version, code, 0x00, addrTypeIPv4, 0, 0, 0, 0, 0, 0}
}
