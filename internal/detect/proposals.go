package detect

import (
	"sort"
	"strings"
	"sync"

	"github.com/promdata/mtr-cli/internal/fingerprint"
)

// Proposal is a candidate new category surfaced when the same unknown
// name pattern keeps recurring in the input.
type Proposal struct {
	Pattern string `json:"pattern"`
	Count   int    `json:"count"`
	Example string `json:"example"`
}

// ProposalTracker counts unknown name patterns across a run. Safe for
// concurrent use by pipeline workers.
type ProposalTracker struct {
	mu        sync.Mutex
	threshold int
	counts    map[string]int
	examples  map[string]string
}

// NewProposalTracker reports patterns seen at least threshold times.
func NewProposalTracker(threshold int) *ProposalTracker {
	if threshold < 1 {
		threshold = 1
	}
	return &ProposalTracker{
		threshold: threshold,
		counts:    make(map[string]int),
		examples:  make(map[string]string),
	}
}

// Observe records one unknown description.
func (t *ProposalTracker) Observe(desc string) {
	pattern := leadingPattern(desc)
	if pattern == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts[pattern]++
	if _, ok := t.examples[pattern]; !ok {
		t.examples[pattern] = desc
	}
}

// Snapshot returns patterns over the threshold, most frequent first.
func (t *ProposalTracker) Snapshot() []Proposal {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []Proposal
	for pattern, n := range t.counts {
		if n >= t.threshold {
			out = append(out, Proposal{Pattern: pattern, Count: n, Example: t.examples[pattern]})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Pattern < out[j].Pattern
	})
	return out
}

// leadingPattern keys unknowns by the first two normalized words, which
// is usually the product noun plus its qualifier.
func leadingPattern(desc string) string {
	words := strings.Fields(fingerprint.Normalize(desc))
	if len(words) == 0 {
		return ""
	}
	if len(words) > 2 {
		words = words[:2]
	}
	return strings.Join(words, " ")
}
