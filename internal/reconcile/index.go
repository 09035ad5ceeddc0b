package reconcile

import (
	"clinicreport/internal/util"
)

// contactIndex maps clean phones and name keys to row positions. Every phone
// of a multi-phone row is indexed.
type contactIndex struct {
	byPhone map[string][]int
	byName  map[string][]int
}

func newContactIndex() *contactIndex {
	return &contactIndex{byPhone: map[string][]int{}, byName: map[string][]int{}}
}

func (x *contactIndex) add(pos int, phones []string, name string) {
	seen := map[string]bool{}
	for _, p := range phones {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		x.byPhone[p] = append(x.byPhone[p], pos)
	}
	if key := util.NameKey(name); key != "" {
		x.byName[key] = append(x.byName[key], pos)
	}
}

// lookup returns phone matches, or name matches when the phone found none.
func (x *contactIndex) lookup(phone, name string) []int {
	if phone != "" {
		if hits := x.byPhone[phone]; len(hits) > 0 {
			return hits
		}
	}
	if key := util.NameKey(name); key != "" {
		return x.byName[key]
	}
	return nil
}

type set map[string]struct{}

func newSet(values []string) set {
	s := set{}
	for _, v := range values {
		s[util.Fold(v)] = struct{}{}
	}
	return s
}

func (s set) has(v string) bool {
	_, ok := s[util.Fold(v)]
	return ok
}
