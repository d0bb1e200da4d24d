// Fleetindex - Ship Reference Data Synchronization and Query Service
// Copyright 2026 Hangarbay Systems
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hangarbay/fleetindex

package store

import (
	"errors"
	"strings"
	"sync"
)

// errIndexStale signals that the in-memory index cannot serve a query
// and the caller must take the substring scan path instead.
var errIndexStale = errors.New("name index is stale")

// nameIndex is an in-memory inverted index over ship names, keyed by
// lowercased name tokens. It accelerates the common case of text search
// (single-term queries); queries it cannot answer authoritatively fall
// back to a full substring scan with the same result contract.
type nameIndex struct {
	mu     sync.RWMutex
	tokens map[string]map[string]struct{}
	stale  bool
}

func newNameIndex() *nameIndex {
	return &nameIndex{
		tokens: make(map[string]map[string]struct{}),
	}
}

// add indexes one ship name under its tokens. Called on every upsert so
// the index tracks writes incrementally between full rebuilds.
func (n *nameIndex) add(externalID, name string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for _, tok := range tokenize(name) {
		ids, ok := n.tokens[tok]
		if !ok {
			ids = make(map[string]struct{})
			n.tokens[tok] = ids
		}
		ids[externalID] = struct{}{}
	}
}

// remove drops one ship id from the token sets of a name it was
// previously indexed under. Called on rename so the old name's tokens
// stop matching the ship.
func (n *nameIndex) remove(externalID, name string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for _, tok := range tokenize(name) {
		ids, ok := n.tokens[tok]
		if !ok {
			continue
		}
		delete(ids, externalID)
		if len(ids) == 0 {
			delete(n.tokens, tok)
		}
	}
}

// replace swaps in a freshly built index and clears the stale flag.
func (n *nameIndex) replace(fresh *nameIndex) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.tokens = fresh.tokens
	n.stale = false
}

// markStale disables index lookups until the next successful rebuild.
func (n *nameIndex) markStale() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stale = true
}

// lookup returns the external ids whose names match every token of the
// query. A query token matches an index token by substring, so "aur"
// finds "Aurora". Queries spanning a word boundary ("ra mk") cannot be
// answered from tokens and defer to the scan path via errIndexStale.
func (n *nameIndex) lookup(query string) (map[string]struct{}, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if n.stale {
		return nil, errIndexStale
	}

	queryTokens := tokenize(query)
	if len(queryTokens) != 1 {
		return nil, errIndexStale
	}

	result := make(map[string]struct{})
	for tok, ids := range n.tokens {
		if !strings.Contains(tok, queryTokens[0]) {
			continue
		}
		for id := range ids {
			result[id] = struct{}{}
		}
	}
	return result, nil
}

// tokenize lowercases and splits a name on non-alphanumeric runes.
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
}
