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

// Package policy gives the opaque get_policy(host) collaborator named in
// the external interface a concrete shape, backed by a domain trie over
// the static configuration.
package policy

import "strings"

// Policy is a read-only view of the per-host overrides named in the
// external configuration. Any field may be the zero value, meaning
// "unspecified": an empty IP means "resolve via DoH", a zero Port means
// "use 443", and an empty IPType means "ipv4".
type Policy struct {
	IP     string
	Port   uint16
	IPType string // "ipv4" | "ipv6" | ""
}

// Entry is one row of the static policy table, as loaded from config.
type Entry struct {
	Match  string // exact host, "*.suffix", or ".suffix"
	IP     string
	Port   uint16
	IPType string
}

// Provider resolves a host to its effective Policy.
type Provider interface {
	Lookup(host string) Policy
}

type trieNode struct {
	children map[string]*trieNode
	exact    *Policy
	wildcard *Policy
}

// Trie is a Provider backed by a domain trie accepting exact hostnames,
// "*.suffix" wildcards (subdomains of suffix only, never the bare suffix
// itself), and a ".suffix" leading-dot form (subdomains of suffix AND the
// bare suffix) — the same three forms recognized by one of the DNS
// proxies this proxy's policy layer is modeled on. A host with no match
// yields the zero Policy.
type Trie struct {
	root *trieNode
}

// NewTrie builds a Trie from a list of configuration entries.
func NewTrie(entries []Entry) *Trie {
	t := &Trie{root: &trieNode{}}
	for _, e := range entries {
		t.insert(e)
	}
	return t
}

func (t *Trie) insert(e Entry) {
	pol := &Policy{IP: e.IP, Port: e.Port, IPType: e.IPType}

	domain := e.Match
	wildcard := false
	alsoExact := false
	switch {
	case strings.HasPrefix(domain, "*."):
		wildcard = true
		domain = domain[2:]
	case strings.HasPrefix(domain, "."):
		wildcard = true
		alsoExact = true
		domain = domain[1:]
	}

	node := t.root
	parts := strings.Split(domain, ".")
	for i := len(parts) - 1; i >= 0; i-- {
		part := parts[i]
		if part == "" {
			continue
		}
		if node.children == nil {
			node.children = make(map[string]*trieNode)
		}
		if node.children[part] == nil {
			node.children[part] = &trieNode{}
		}
		node = node.children[part]
	}

	if wildcard {
		node.wildcard = pol
		if alsoExact {
			node.exact = pol
		}
	} else {
		node.exact = pol
	}
}

// Lookup returns the most specific Policy matching host: an exact match
// wins over a wildcard match at the same or a less specific level.
func (t *Trie) Lookup(host string) Policy {
	node := t.root
	var lastWildcard *Policy

	end := len(host)
	for end > 0 {
		start := strings.LastIndexByte(host[:end], '.')
		part := host[start+1 : end]

		if node.wildcard != nil {
			lastWildcard = node.wildcard
		}
		if node.children == nil {
			break
		}
		next, ok := node.children[part]
		if !ok {
			break
		}
		node = next
		if start == -1 {
			// The terminal node's own wildcard is deliberately not
			// consulted here: a "*.suffix" entry matches subdomains of
			// suffix, never suffix itself. Only a lastWildcard
			// accumulated from an ancestor node (i.e. a match on a
			// shorter domain that host is a subdomain of) applies.
			if node.exact != nil {
				return *node.exact
			}
			if lastWildcard != nil {
				return *lastWildcard
			}
			return Policy{}
		}
		end = start
	}

	if lastWildcard != nil {
		return *lastWildcard
	}
	return Policy{}
}

var _ Provider = (*Trie)(nil)
