package vellum

// Option configures a Document during construction.
type Option func(*Document)

// WithCursor sets the document's initial cursor position.
func WithCursor(row, col uint32) Option {
	return func(d *Document) {
		d.cursor = Cursor{Anchor: Position{Row: row, Column: col}, Head: Position{Row: row, Column: col}}
	}
}
