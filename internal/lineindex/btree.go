package lineindex

import (
	"bytes"
	"fmt"

	"github.com/dshills/vellum/internal/coreerr"
)

// BTreeLineIndex is the line↔byte-offset index described in spec §4.3. It
// is not safe for concurrent use; spec §5 places that responsibility on an
// external single-mutator wrapper.
type BTreeLineIndex struct {
	root  *node
	cache searchCache
}

// Build packs data into leaves of up to MaxChildren lines, then repeatedly
// packs levels into internal nodes of up to MaxChildren children until a
// single root remains (spec §4.3.1). Empty input yields a single leaf with
// line length [0].
func Build(data []byte) (*BTreeLineIndex, error) {
	if len(data) == 0 {
		return &BTreeLineIndex{root: newEmptyLeaf()}, nil
	}

	leaves, err := buildLeaves(data)
	if err != nil {
		return nil, err
	}

	var root *node
	if len(leaves) == 0 {
		root = newEmptyLeaf()
	} else {
		root = buildTree(leaves)
	}

	return &BTreeLineIndex{root: root}, nil
}

func buildLeaves(data []byte) ([]*node, error) {
	var leaves []*node
	var current []uint64
	var summary LineSummary
	lastPos := 0

	pos := 0
	for {
		i := bytes.IndexByte(data[pos:], '\n')
		if i < 0 {
			break
		}
		lineEnd := pos + i + 1
		length := uint64(lineEnd - lastPos)

		current = append(current, length)
		summary.LineCount++
		summary.ByteLen += length
		lastPos = lineEnd
		pos = lineEnd

		if len(current) == MaxChildren {
			leaves = append(leaves, &node{height: 0, summary: summary, lineLengths: current})
			current = nil
			summary = LineSummary{}
		}
	}

	// A trailing line always exists, even if zero-length: spec §3 requires
	// a sentinel line of length 0 when data ends in '\n', so the last line
	// is flushed unconditionally rather than only when bytes remain.
	length := uint64(len(data) - lastPos)
	current = append(current, length)
	summary.LineCount++
	summary.ByteLen += length

	if len(current) > 0 {
		leaves = append(leaves, &node{height: 0, summary: summary, lineLengths: current})
	}

	return leaves, nil
}

func buildTree(level []*node) *node {
	for len(level) > 1 {
		chunkCount := (len(level) + MaxChildren - 1) / MaxChildren
		next := make([]*node, 0, chunkCount)

		for i := 0; i < len(level); i += MaxChildren {
			end := i + MaxChildren
			if end > len(level) {
				end = len(level)
			}
			chunk := level[i:end]

			var summary LineSummary
			for _, c := range chunk {
				summary.Add(c.summary)
			}

			next = append(next, &node{
				height:   chunk[0].height + 1,
				summary:  summary,
				children: chunk,
			})
		}

		level = next
	}

	return level[0]
}

// Insert splices bytes into the document at byteOffset, updating line
// lengths and splitting nodes that overflow MaxChildren, propagating splits
// to the root if needed (spec §4.3.3 "insert").
func (b *BTreeLineIndex) Insert(byteOffset uint64, data []byte) error {
	if len(data) == 0 {
		return nil
	}

	sibling, err := b.root.addChild(byteOffset, data)
	if err != nil {
		return err
	}

	if sibling != nil {
		oldRoot := b.root
		var newSummary LineSummary
		newSummary.Add(oldRoot.summary)
		newSummary.Add(sibling.summary)

		b.root = &node{
			height:   oldRoot.height + 1,
			summary:  newSummary,
			children: []*node{oldRoot, sibling},
		}
	}

	b.cache = searchCache{}
	return nil
}

// Remove deletes length bytes starting at byteOffset, merging the
// surviving start line with its suffix and culling emptied nodes (spec
// §4.3.3 "remove").
func (b *BTreeLineIndex) Remove(byteOffset, length uint64) error {
	if length == 0 {
		return nil
	}

	deletionEnd := byteOffset + length
	if deletionEnd < byteOffset {
		return fmt.Errorf("lineindex: remove range: %w", coreerr.ErrOverflow)
	}

	startLine, ok := b.root.absIdxToLineIdx(byteOffset)
	if !ok {
		return fmt.Errorf("lineindex: remove start: %w", coreerr.ErrOutOfBounds)
	}
	endLine, ok := b.root.absIdxToLineIdx(deletionEnd)
	if !ok {
		// Deletion reaches exactly the end of the document: the last line
		// is the final one.
		endLine = b.root.summary.LineCount - 1
	}

	startLineByte, ok := b.root.lineIdxToAbsIdx(startLine)
	if !ok {
		return fmt.Errorf("lineindex: remove start byte: %w", coreerr.ErrOutOfBounds)
	}
	endLineByte, ok := b.root.lineIdxToAbsIdx(endLine)
	if !ok {
		return fmt.Errorf("lineindex: remove end byte: %w", coreerr.ErrOutOfBounds)
	}
	endLineLen, ok := b.root.getLineLengthAt(endLine)
	if !ok {
		return fmt.Errorf("lineindex: remove end line length: %w", coreerr.ErrOutOfBounds)
	}

	if byteOffset < startLineByte {
		return fmt.Errorf("lineindex: remove prefix: %w", coreerr.ErrOverflow)
	}
	prefixLen := byteOffset - startLineByte

	endLineTotalBytes := endLineByte + endLineLen
	if deletionEnd > endLineTotalBytes {
		return fmt.Errorf("lineindex: remove suffix: %w", coreerr.ErrOverflow)
	}
	suffixLen := endLineTotalBytes - deletionEnd

	newMergedLen := prefixLen + suffixLen

	if _, err := b.root.setLineLength(startLine, newMergedLen); err != nil {
		return err
	}

	if startLine < endLine {
		b.root.removeLineRange(startLine+1, endLine)
	}

	b.cache = searchCache{}
	return nil
}

// LineCount returns the root summary's line count.
func (b *BTreeLineIndex) LineCount() int {
	return b.root.summary.LineCount
}

// ByteLen returns the root summary's byte length.
func (b *BTreeLineIndex) ByteLen() uint64 {
	return b.root.summary.ByteLen
}

// GetLineLengthAt returns the byte length of lineIdx, including its
// trailing newline if any.
func (b *BTreeLineIndex) GetLineLengthAt(lineIdx int) (uint64, bool) {
	return b.root.getLineLengthAt(lineIdx)
}

// LineToByteOffset returns the byte offset at which lineIdx starts,
// summing all preceding lines. The result is cached for a subsequent
// identical query.
func (b *BTreeLineIndex) LineToByteOffset(lineIdx int) (uint64, bool) {
	if b.cache.valid && b.cache.lineIdx == lineIdx {
		return b.cache.byteOffset, true
	}

	offset, ok := b.root.lineIdxToAbsIdx(lineIdx)
	if !ok {
		return 0, false
	}

	b.cache = searchCache{valid: true, lineIdx: lineIdx, byteOffset: offset}
	return offset, true
}

// ByteOffsetToLine descends choosing the child whose cumulative byte_len
// first exceeds the remaining offset, returning false when offset is at or
// past ByteLen().
func (b *BTreeLineIndex) ByteOffsetToLine(offset uint64) (int, bool) {
	if offset >= b.root.summary.ByteLen {
		return 0, false
	}
	// The cache holds (line, line start) pairs only, so it is read here but
	// not written: offset need not be the start of its line.
	if b.cache.valid && b.cache.byteOffset == offset {
		return b.cache.lineIdx, true
	}

	line, ok := b.root.absIdxToLineIdx(offset)
	if !ok {
		return 0, false
	}

	return line, true
}

// Lines seeds a DFS positioned at startLine and returns an iterator
// yielding (lineIdx, byteRange) pairs up to endLine (exclusive).
func (b *BTreeLineIndex) Lines(startLine, endLine int) *LineRangeIter {
	stack := make([]stackFrame, 0, 8)
	var currentAbsIdx uint64
	target := startLine

	b.root.seedLines(&target, &currentAbsIdx, &stack)

	return &LineRangeIter{
		stack:          stack,
		currentLineIdx: target,
		endLineIdx:     endLine,
		currentAbsIdx:  currentAbsIdx,
	}
}
