// Package matcher decides which registered identity, if any, a live face
// encoding belongs to.
package matcher

import (
	"fmt"

	"github.com/coder/hnsw"

	"github.com/kozaktomas/attendance-kiosk/internal/faceenc"
)

// Policy selects how a match is picked among the known encodings that
// fall within tolerance.
type Policy string

const (
	// PolicyFirstMatch picks the first registry index within tolerance,
	// in registry order, even when a later index is strictly closer.
	// This pins the historical behavior of the kiosk.
	PolicyFirstMatch Policy = "first"
	// PolicyNearest picks the closest registry index within tolerance.
	PolicyNearest Policy = "nearest"
)

// ParsePolicy maps a config string to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicyFirstMatch, PolicyNearest:
		return Policy(s), nil
	case "":
		return PolicyFirstMatch, nil
	default:
		return "", fmt.Errorf("unknown match policy %q (want %q or %q)", s, PolicyFirstMatch, PolicyNearest)
	}
}

// maxNeighbors (M) is the maximum number of neighbors per HNSW node.
const maxNeighbors = 16

// Matcher matches live encodings against a fixed set of known encodings
// under a distance tolerance. Safe for concurrent use after construction.
type Matcher struct {
	known     []faceenc.Encoding
	tolerance float64
	policy    Policy
	graph     *hnsw.Graph[int] // built only for PolicyNearest
}

// New creates a matcher over the known encodings. The slice index is the
// registry index; the caller must keep it in registry order.
func New(known []faceenc.Encoding, tolerance float64, policy Policy) *Matcher {
	if tolerance <= 0 {
		tolerance = faceenc.DefaultTolerance
	}
	m := &Matcher{
		known:     known,
		tolerance: tolerance,
		policy:    policy,
	}

	if policy == PolicyNearest && len(known) > 0 {
		g := hnsw.NewGraph[int]()
		g.M = maxNeighbors
		g.Ml = 1.0 / float64(maxNeighbors)
		g.Distance = hnsw.EuclideanDistance
		for i, enc := range known {
			if len(enc) == 0 {
				continue
			}
			g.Add(hnsw.MakeNode(i, enc))
		}
		m.graph = g
	}

	return m
}

// Tolerance returns the configured distance tolerance.
func (m *Matcher) Tolerance() float64 {
	return m.tolerance
}

// Match returns the registry index matching the probe encoding, or
// ok == false when no known encoding is within tolerance.
func (m *Matcher) Match(probe faceenc.Encoding) (int, bool) {
	switch m.policy {
	case PolicyNearest:
		return m.matchNearest(probe)
	default:
		return m.matchFirst(probe)
	}
}

// MatchDistance is Match plus the distance to the selected encoding.
func (m *Matcher) MatchDistance(probe faceenc.Encoding) (int, float64, bool) {
	idx, ok := m.Match(probe)
	if !ok {
		return -1, 0, false
	}
	return idx, faceenc.Distance(m.known[idx], probe), true
}

func (m *Matcher) matchFirst(probe faceenc.Encoding) (int, bool) {
	for i, ok := range faceenc.CompareFaces(m.known, probe, m.tolerance) {
		if ok {
			return i, true
		}
	}
	return -1, false
}

func (m *Matcher) matchNearest(probe faceenc.Encoding) (int, bool) {
	if m.graph == nil {
		return -1, false
	}
	neighbors := m.graph.Search(probe, 1)
	if len(neighbors) == 0 {
		return -1, false
	}
	n := neighbors[0]
	if faceenc.Distance(n.Value, probe) > m.tolerance {
		return -1, false
	}
	return n.Key, true
}
