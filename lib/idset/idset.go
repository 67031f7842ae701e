// Package idset is a small set of employee ids. It replaces the
// comma-joined id lists older records were stored with.
package idset

import (
	"sort"
	"strings"
)

type Set map[string]struct{}

// New builds a set from ids, skipping blanks.
func New(ids ...string) Set {
	var s = make(Set, len(ids))
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Parse reads a legacy comma-joined list such as "1400, 1722,,12345".
func Parse(joined string) Set {
	return New(strings.Split(joined, ",")...)
}

// Add inserts id and reports whether it was not already present.
func (s Set) Add(id string) bool {
	id = strings.TrimSpace(id)
	if id == "" {
		return false
	}
	if _, ok := s[id]; ok {
		return false
	}
	s[id] = struct{}{}
	return true
}

func (s Set) Has(id string) bool {
	_, ok := s[strings.TrimSpace(id)]
	return ok
}

func (s Set) Len() int {
	return len(s)
}

// Union returns a new set with the members of both.
func (s Set) Union(other Set) Set {
	var out = make(Set, len(s)+len(other))
	for id := range s {
		out[id] = struct{}{}
	}
	for id := range other {
		out[id] = struct{}{}
	}
	return out
}

// Difference returns the members of s that are not in other.
func (s Set) Difference(other Set) Set {
	var out = make(Set)
	for id := range s {
		if _, ok := other[id]; !ok {
			out[id] = struct{}{}
		}
	}
	return out
}

// Intersect returns the members present in both sets.
func (s Set) Intersect(other Set) Set {
	var out = make(Set)
	for id := range s {
		if _, ok := other[id]; ok {
			out[id] = struct{}{}
		}
	}
	return out
}

// Sorted returns the members in ascending order.
func (s Set) Sorted() []string {
	var out = make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// String formats the set in the legacy comma-joined form.
func (s Set) String() string {
	return strings.Join(s.Sorted(), ",")
}
