// Package lineindex implements the B-tree line index of spec §4.3: a
// balanced tree of per-line byte-length summaries, branching factor at most
// MaxChildren, that tracks line/byte-offset correspondence incrementally as
// the piece table mutates.
package lineindex

// MaxChildren is the B-tree's branching factor (spec §3, §4.3.1).
const MaxChildren = 16

// LineSummary is the additive (line_count, byte_len) label cached on every
// tree node.
type LineSummary struct {
	LineCount int
	ByteLen   uint64
}

// Add accumulates other into s.
func (s *LineSummary) Add(other LineSummary) {
	s.LineCount += other.LineCount
	s.ByteLen += other.ByteLen
}
