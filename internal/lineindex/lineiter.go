package lineindex

// stackFrame tracks a node visited during the seed descent and the index
// of the next child/line within it still to be yielded.
type stackFrame struct {
	n   *node
	idx int
}

// LineRangeIter yields (lineIdx, byteRange) pairs for lines [startLine,
// endLine) in order. The seed descent to startLine is O(log n); every
// subsequent Next call is amortized O(1) (spec §4.3.2 "lines").
type LineRangeIter struct {
	stack          []stackFrame
	currentLineIdx int
	endLineIdx     int
	currentAbsIdx  uint64
}

// seedLines descends to startLine, pushing the path onto the iterator's
// stack, mirroring node.rs's recursive `lines` seed descent.
func (n *node) seedLines(targetLine *int, currentAbsIdx *uint64, stack *[]stackFrame) {
	if n.isLeaf() {
		idx := *targetLine
		if idx > len(n.lineLengths) {
			idx = len(n.lineLengths)
		}
		var sum uint64
		for _, l := range n.lineLengths[:idx] {
			sum += l
		}
		*currentAbsIdx += sum
		*stack = append(*stack, stackFrame{n: n, idx: idx})
		return
	}

	for i, child := range n.children {
		childLineCount := child.summary.LineCount
		if *targetLine < childLineCount {
			*stack = append(*stack, stackFrame{n: n, idx: i})
			child.seedLines(targetLine, currentAbsIdx, stack)
			return
		}
		*targetLine -= childLineCount
		*currentAbsIdx += child.summary.ByteLen
	}

	*stack = append(*stack, stackFrame{n: n, idx: len(n.children)})
	last := n.children[len(n.children)-1]
	last.seedLines(targetLine, currentAbsIdx, stack)
}

// Next returns the next (lineIdx, [start,end)) pair, or ok == false once
// endLine is reached or the tree is exhausted.
func (it *LineRangeIter) Next() (lineIdx int, byteRange [2]uint64, ok bool) {
	if it.currentLineIdx >= it.endLineIdx || len(it.stack) == 0 {
		return 0, [2]uint64{}, false
	}

	var lineLen uint64
	for {
		if len(it.stack) == 0 {
			return 0, [2]uint64{}, false
		}
		top := &it.stack[len(it.stack)-1]

		if top.n.isLeaf() {
			if top.idx < len(top.n.lineLengths) {
				lineLen = top.n.lineLengths[top.idx]
				top.idx++
				break
			}
		} else {
			if top.idx < len(top.n.children) {
				child := top.n.children[top.idx]
				it.stack = append(it.stack, stackFrame{n: child, idx: 0})
				continue
			}
		}

		it.stack = it.stack[:len(it.stack)-1]
		if len(it.stack) > 0 {
			it.stack[len(it.stack)-1].idx++
		}
	}

	start := it.currentAbsIdx
	it.currentAbsIdx += lineLen
	it.currentLineIdx++

	return it.currentLineIdx - 1, [2]uint64{start, it.currentAbsIdx}, true
}
