package lineindex

// searchCache is the single-entry cache described in spec §4.3.2: it
// short-circuits a repeated identical line<->offset query and is never
// load-bearing for correctness (spec §9 "Search cache is advisory").
type searchCache struct {
	valid      bool
	lineIdx    int
	byteOffset uint64
}
