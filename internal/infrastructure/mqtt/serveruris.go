package mqtt

import (
	"fmt"
	"strings"
)

// ServerURIList is an owned, ordered copy of fallback broker URIs.
//
// The engine tries the entries in order, first entry first. A list is valid
// for one connect call; the call releases it on every exit path.
type ServerURIList struct {
	uris     []string
	released bool
}

// NewServerURIList copies uris into a new list. An empty input yields an
// empty list; an empty element is a configuration error.
func NewServerURIList(uris []string) (*ServerURIList, error) {
	list, err := marshalServerURIs(uris)
	if err != nil {
		return nil, fmt.Errorf("%w: serverURIs%v", ErrInvalidConfig, err)
	}
	return list, nil
}

func marshalServerURIs(uris []string) (*ServerURIList, error) {
	owned := make([]string, len(uris))
	for i, uri := range uris {
		if strings.TrimSpace(uri) == "" {
			return nil, fmt.Errorf("[%d]: empty broker URI", i)
		}
		owned[i] = strings.Clone(uri)
	}
	return &ServerURIList{uris: owned}, nil
}

// Len returns the number of URIs. A nil or released list has length zero.
func (l *ServerURIList) Len() int {
	if l == nil {
		return 0
	}
	return len(l.uris)
}

// URIs returns a copy of the URIs in order.
func (l *ServerURIList) URIs() []string {
	if l == nil || l.uris == nil {
		return nil
	}
	out := make([]string, len(l.uris))
	copy(out, l.uris)
	return out
}

// Released reports whether Release has been called.
func (l *ServerURIList) Released() bool {
	return l != nil && l.released
}

// Release drops every owned string and the backing array. Safe to call more than once.
func (l *ServerURIList) Release() {
	if l == nil || l.released {
		return
	}
	clear(l.uris)
	l.uris = nil
	l.released = true
}
