// Octoka - Token-Authorized Static File Server for Opencast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/octoka

package keys

import (
	"sort"
	"time"
)

// keySet is the immutable snapshot of one source's keys.
type keySet struct {
	byID      map[string]*Key
	withoutID []*Key
	fetchedAt time.Time
}

var emptySet = &keySet{byID: map[string]*Key{}}

func newKeySet(keys []*Key, fetchedAt time.Time) *keySet {
	s := &keySet{byID: make(map[string]*Key, len(keys)), fetchedAt: fetchedAt}
	for _, k := range keys {
		if k.ID == "" {
			s.withoutID = append(s.withoutID, k)
			continue
		}
		// First key wins on duplicate kids within one document.
		if _, dup := s.byID[k.ID]; !dup {
			s.byID[k.ID] = k
		}
	}
	return s
}

func (s *keySet) len() int {
	return len(s.byID) + len(s.withoutID)
}

// match describes the keys of one set usable for a token.
type match struct {
	exact      *Key
	candidates []*Key
	mismatch   bool
}

// lookup selects keys for (kid, alg):
//   - kid names a key: that key alone, or a mismatch if its alg differs
//   - kid set but unknown: the kid-less keys of alg
//   - no kid: every key of alg
func (s *keySet) lookup(kid, alg string) match {
	if kid != "" {
		if k, ok := s.byID[kid]; ok {
			if k.Algorithm != alg {
				return match{mismatch: true}
			}
			return match{exact: k}
		}
	}

	var m match
	for _, k := range s.withoutID {
		if k.Algorithm == alg {
			m.candidates = append(m.candidates, k)
		}
	}
	if kid == "" {
		for _, k := range s.byID {
			if k.Algorithm == alg {
				m.candidates = append(m.candidates, k)
			}
		}
	}
	return m
}

// ids returns the sorted key IDs, for rotation diffs.
func (s *keySet) ids() []string {
	out := make([]string, 0, len(s.byID))
	for id := range s.byID {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// diffIDs returns the IDs only in next (added) and only in prev (removed).
func diffIDs(prev, next *keySet) (added, removed []string) {
	for id := range next.byID {
		if _, ok := prev.byID[id]; !ok {
			added = append(added, id)
		}
	}
	for id := range prev.byID {
		if _, ok := next.byID[id]; !ok {
			removed = append(removed, id)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)
	return added, removed
}
