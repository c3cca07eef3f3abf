package lineindex

import (
	"bytes"
	"fmt"

	"github.com/dshills/vellum/internal/coreerr"
)

// node is one node of the B-tree. Leaves (height == 0) hold per-line byte
// lengths directly; internal nodes (height > 0) hold child nodes. This
// single-struct-with-height-discriminant shape mirrors the rope tree this
// module was adapted from rather than a tagged union, since Go has no sum
// types.
type node struct {
	height  int
	summary LineSummary

	children []*node // internal node fields (height > 0)

	lineLengths []uint64 // leaf node fields (height == 0)
}

func newEmptyLeaf() *node {
	return &node{
		height:      0,
		summary:     LineSummary{LineCount: 1, ByteLen: 0},
		lineLengths: []uint64{0},
	}
}

func (n *node) isLeaf() bool {
	return n.height == 0
}

func recomputeLeafSummary(n *node) {
	var sum uint64
	for _, l := range n.lineLengths {
		sum += l
	}
	n.summary = LineSummary{LineCount: len(n.lineLengths), ByteLen: sum}
}

func recomputeInternalSummary(n *node) {
	var s LineSummary
	for _, c := range n.children {
		s.Add(c.summary)
	}
	n.summary = s
}

// addChild inserts bytes at abs_byte_offset into this subtree, splitting
// into a new right sibling and returning it when the node overflows
// MaxChildren (spec §4.3.3 steps 1-5).
func (n *node) addChild(absByteOffset uint64, data []byte) (*node, error) {
	if n.isLeaf() {
		return n.addChildLeaf(absByteOffset, data)
	}
	return n.addChildInternal(absByteOffset, data)
}

func (n *node) addChildLeaf(absByteOffset uint64, data []byte) (*node, error) {
	if len(n.lineLengths) == 0 {
		n.lineLengths = []uint64{0}
	}

	targetIdx := -1
	remaining := absByteOffset
	for i, ll := range n.lineLengths {
		if remaining < ll {
			targetIdx = i
			break
		}
		remaining -= ll
	}
	if targetIdx < 0 {
		// The offset is at the end of this leaf: the insert extends its last
		// line, so that whole line is the prefix.
		targetIdx = len(n.lineLengths) - 1
		remaining += n.lineLengths[targetIdx]
	}
	linePrefixLen := remaining
	lineSuffixLen := n.lineLengths[targetIdx] - remaining

	var newLines []uint64
	lastIdx := 0
	for {
		i := bytes.IndexByte(data[lastIdx:], '\n')
		if i < 0 {
			break
		}
		newLines = append(newLines, uint64(i+1))
		lastIdx += i + 1
	}

	bytesLen := uint64(len(data))

	if len(newLines) == 0 {
		n.lineLengths[targetIdx] += bytesLen
		n.summary.ByteLen += bytesLen
		return n.splitIfNeeded(), nil
	}

	remainingTextLen := bytesLen - uint64(lastIdx)
	n.lineLengths[targetIdx] = linePrefixLen + newLines[0]

	var toInsert []uint64
	if len(newLines) > 1 {
		toInsert = append(toInsert, newLines[1:]...)
	}
	toInsert = append(toInsert, remainingTextLen+lineSuffixLen)

	tail := append([]uint64{}, n.lineLengths[targetIdx+1:]...)
	n.lineLengths = append(n.lineLengths[:targetIdx+1], toInsert...)
	n.lineLengths = append(n.lineLengths, tail...)

	n.summary.LineCount = len(n.lineLengths)
	n.summary.ByteLen += bytesLen

	return n.splitIfNeeded(), nil
}

func (n *node) splitIfNeeded() *node {
	if n.isLeaf() {
		if len(n.lineLengths) <= MaxChildren {
			return nil
		}
		mid := len(n.lineLengths) / 2
		right := append([]uint64{}, n.lineLengths[mid:]...)
		n.lineLengths = n.lineLengths[:mid]
		recomputeLeafSummary(n)

		rightNode := &node{height: 0, lineLengths: right}
		recomputeLeafSummary(rightNode)
		return rightNode
	}

	if len(n.children) <= MaxChildren {
		return nil
	}
	mid := len(n.children) / 2
	right := append([]*node{}, n.children[mid:]...)
	n.children = n.children[:mid]
	recomputeInternalSummary(n)

	rightNode := &node{height: n.height, children: right}
	recomputeInternalSummary(rightNode)
	return rightNode
}

func (n *node) addChildInternal(absByteOffset uint64, data []byte) (*node, error) {
	for idx, child := range n.children {
		childLen := child.summary.ByteLen
		if absByteOffset < childLen || idx == len(n.children)-1 {
			newNode, err := child.addChild(absByteOffset, data)
			if err != nil {
				return nil, err
			}
			if newNode != nil {
				n.children = append(n.children, nil)
				copy(n.children[idx+2:], n.children[idx+1:])
				n.children[idx+1] = newNode
			}
			break
		}
		absByteOffset -= childLen
	}

	n.summary.ByteLen += uint64(len(data))
	n.summary.LineCount = 0
	for _, c := range n.children {
		n.summary.LineCount += c.summary.LineCount
	}

	return n.splitIfNeeded(), nil
}

// setLineLength overwrites the length of targetLineIdx and returns the
// signed byte delta to bubble up to ancestors (spec §4.3.3 step 3).
func (n *node) setLineLength(targetLineIdx int, newLen uint64) (int64, error) {
	if n.isLeaf() {
		if targetLineIdx >= len(n.lineLengths) {
			return 0, fmt.Errorf("lineindex: set line %d: %w", targetLineIdx, coreerr.ErrOutOfBounds)
		}
		diff := int64(newLen) - int64(n.lineLengths[targetLineIdx])
		n.lineLengths[targetLineIdx] = newLen
		n.summary.ByteLen = addSigned(n.summary.ByteLen, diff)
		return diff, nil
	}

	var diff int64
	for _, c := range n.children {
		lc := c.summary.LineCount
		if targetLineIdx < lc {
			d, err := c.setLineLength(targetLineIdx, newLen)
			if err != nil {
				return 0, err
			}
			diff = d
			break
		}
		targetLineIdx -= lc
	}
	n.summary.ByteLen = addSigned(n.summary.ByteLen, diff)
	return diff, nil
}

func addSigned(u uint64, diff int64) uint64 {
	if diff >= 0 {
		return u + uint64(diff)
	}
	return u - uint64(-diff)
}

// removeLineRange removes lines [start, end] inclusive and culls any node
// whose resulting line count drops to zero, returning the total bytes
// removed (spec §4.3.3 "remove").
func (n *node) removeLineRange(start, end int) uint64 {
	if n.isLeaf() {
		lineLen := len(n.lineLengths)
		removeStart := min(start, lineLen)
		removeEnd := min(end+1, lineLen)
		if removeStart >= removeEnd {
			return 0
		}
		var removedBytes uint64
		for _, l := range n.lineLengths[removeStart:removeEnd] {
			removedBytes += l
		}
		n.lineLengths = append(n.lineLengths[:removeStart], n.lineLengths[removeEnd:]...)
		n.summary.LineCount = len(n.lineLengths)
		n.summary.ByteLen -= removedBytes
		return removedBytes
	}

	idx := 0
	var bytesRemoved uint64
	for idx < len(n.children) && start <= end {
		childLineCount := n.children[idx].summary.LineCount

		if start < childLineCount {
			endForChild := end
			if childLineCount-1 < endForChild {
				endForChild = childLineCount - 1
			}
			bytesRemoved += n.children[idx].removeLineRange(start, endForChild)

			if n.children[idx].summary.LineCount == 0 {
				n.children = append(n.children[:idx], n.children[idx+1:]...)
			} else {
				idx++
			}

			if end < childLineCount {
				break
			}
			start = 0
		} else {
			start -= childLineCount
			idx++
		}

		end -= childLineCount
	}

	n.summary.LineCount = 0
	for _, c := range n.children {
		n.summary.LineCount += c.summary.LineCount
	}
	n.summary.ByteLen -= bytesRemoved

	return bytesRemoved
}

func (n *node) getLineLengthAt(lineIdx int) (uint64, bool) {
	if n.isLeaf() {
		if lineIdx < 0 || lineIdx >= len(n.lineLengths) {
			return 0, false
		}
		return n.lineLengths[lineIdx], true
	}

	if lineIdx >= n.summary.LineCount || lineIdx < 0 {
		return 0, false
	}
	for _, c := range n.children {
		lc := c.summary.LineCount
		if lineIdx < lc {
			return c.getLineLengthAt(lineIdx)
		}
		lineIdx -= lc
	}
	return 0, false
}

func (n *node) lineIdxToAbsIdx(lineIdx int) (uint64, bool) {
	if n.isLeaf() {
		if lineIdx < 0 || lineIdx >= len(n.lineLengths) {
			return 0, false
		}
		var sum uint64
		for _, l := range n.lineLengths[:lineIdx] {
			sum += l
		}
		return sum, true
	}

	if lineIdx >= n.summary.LineCount || lineIdx < 0 {
		return 0, false
	}
	var absIdx uint64
	for _, c := range n.children {
		lc := c.summary.LineCount
		if lineIdx < lc {
			if idx, ok := c.lineIdxToAbsIdx(lineIdx); ok {
				absIdx += idx
			}
			break
		}
		lineIdx -= lc
		absIdx += c.summary.ByteLen
	}
	return absIdx, true
}

func (n *node) absIdxToLineIdx(absIdx uint64) (int, bool) {
	if n.isLeaf() {
		for i, l := range n.lineLengths {
			if absIdx < l {
				return i, true
			}
			absIdx -= l
		}
		return 0, false
	}

	if absIdx >= n.summary.ByteLen {
		return 0, false
	}
	var lineIdx int
	for _, c := range n.children {
		if absIdx < c.summary.ByteLen {
			if idx, ok := c.absIdxToLineIdx(absIdx); ok {
				lineIdx += idx
			}
			break
		}
		absIdx -= c.summary.ByteLen
		lineIdx += c.summary.LineCount
	}
	return lineIdx, true
}
