// Package search implements substring search over the gene identifiers of a
// dataset.
package search

import (
	"strings"
)

// Index is an immutable, ordered set of identifiers with optional display
// labels. It is safe for concurrent use.
type Index struct {
	ids             []string
	haystacks       []string
	caseInsensitive bool
}

// Option configures an Index.
type Option func(*indexOptions)

type indexOptions struct {
	labels          map[string]string
	caseInsensitive bool
}

// WithLabels makes display labels searchable alongside the identifiers.
func WithLabels(labels map[string]string) Option {
	return func(o *indexOptions) { o.labels = labels }
}

// WithCaseInsensitive matches terms regardless of case.
func WithCaseInsensitive() Option {
	return func(o *indexOptions) { o.caseInsensitive = true }
}

// NewIndex builds an index over ids. Order is kept; duplicates are kept once.
func NewIndex(ids []string, opts ...Option) *Index {
	var o indexOptions
	for _, opt := range opts {
		opt(&o)
	}

	idx := &Index{
		ids:             make([]string, 0, len(ids)),
		haystacks:       make([]string, 0, len(ids)),
		caseInsensitive: o.caseInsensitive,
	}
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		hay := id
		if label, ok := o.labels[id]; ok && label != "" && label != id {
			// newline never appears in a term, so it cannot bridge a match
			hay = id + "\n" + label
		}
		if o.caseInsensitive {
			hay = strings.ToLower(hay)
		}
		idx.ids = append(idx.ids, id)
		idx.haystacks = append(idx.haystacks, hay)
	}
	return idx
}

// Len returns the number of identifiers.
func (x *Index) Len() int { return len(x.ids) }

// IDs returns every identifier in index order.
func (x *Index) IDs() []string { return append([]string(nil), x.ids...) }

// Search returns identifiers containing any whitespace-separated term of
// query, in index order. An empty or blank query returns every identifier.
func (x *Index) Search(query string) []string {
	terms := strings.Fields(query)
	if len(terms) == 0 {
		return x.IDs()
	}
	if x.caseInsensitive {
		for i, t := range terms {
			terms[i] = strings.ToLower(t)
		}
	}

	out := make([]string, 0)
	for i, hay := range x.haystacks {
		for _, term := range terms {
			if strings.Contains(hay, term) {
				out = append(out, x.ids[i])
				break
			}
		}
	}
	return out
}
