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

//go:build !unix

package server

import "net"

// listenTCP falls back to the stock net.Listen on platforms without
// SO_REUSEPORT and raw-socket construction via golang.org/x/sys/unix; the
// listener still binds, just without multi-process port sharing or a
// caller-chosen backlog (the Go runtime's default is used instead).
func listenTCP(addr string, _ int) (net.Listener, error) {
	return net.Listen("tcp", addr)
}
