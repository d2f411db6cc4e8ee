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

package pipeline

import (
	"errors"
	"fmt"
)

// ErrNotTLS13 is returned when a parsed ClientHello lacks a key_share
// extension, or has no SNI — both are required by the pipeline even
// though the parser itself accepts such a ClientHello as well-formed.
var ErrNotTLS13 = errors.New("pipeline: ClientHello is not TLS 1.3 or carries no SNI")

// ErrConnectFailed wraps an upstream dial failure.
var ErrConnectFailed = errors.New("pipeline: upstream connect failed")

// ErrBenignBadFD marks a copier observing a closed descriptor because the
// opposite direction's copier already closed both sockets. It is never
// logged (§4.F step 8, §7).
var ErrBenignBadFD = errors.New("pipeline: benign bad file descriptor")

// connectError wraps a dial failure with the address that was attempted.
type connectError struct {
	addr string
	err  error
}

func (e *connectError) Error() string {
	return fmt.Sprintf("pipeline: connect to %s: %v", e.addr, e.err)
}

func (e *connectError) Unwrap() []error { return []error{ErrConnectFailed, e.err} }

func wrapConnectError(addr string, err error) error {
	return &connectError{addr: addr, err: err}
}
