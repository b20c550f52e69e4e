package domain

// QueryOption configures a [Query] through the functional options pattern.
type QueryOption func(*Query)

// WithQuery replaces the whole query.
func WithQuery(q Query) QueryOption {
	return func(dst *Query) {
		*dst = q
	}
}

// WithFilter sets the filter document.
func WithFilter(f Document) QueryOption {
	return func(q *Query) {
		q.Filter = f
	}
}

// WithSort orders results by field.
func WithSort(field string, descending bool) QueryOption {
	return func(q *Query) {
		q.Sort = &SortField{Field: field, Descending: descending}
	}
}

// WithSector restricts results to the offset/limit window.
func WithSector(offset, limit int64) QueryOption {
	return func(q *Query) {
		q.Sector = Sector{Offset: offset, Limit: limit}
	}
}

// WithProjection keeps only the given fields, plus _id.
func WithProjection(fields ...string) QueryOption {
	return func(q *Query) {
		q.Projection = Projection{Fields: fields}
	}
}

// WithOmit removes the given fields from results.
func WithOmit(fields ...string) QueryOption {
	return func(q *Query) {
		q.Projection = Projection{Fields: fields, Omit: true}
	}
}

// NewQuery applies opts to an empty query.
func NewQuery(opts ...QueryOption) Query {
	var q Query
	for _, opt := range opts {
		opt(&q)
	}
	return q
}

// CursorOption configures a [Cursor] through the functional options pattern.
type CursorOption func(*CursorOptions)

// CursorOptions contains parameters for customizing cursors.
type CursorOptions struct {
	// Decoder decodes documents on Scan.
	Decoder Decoder
	// Projector applies Projection to every produced document.
	Projector Projector
	// Projection restricts the fields of produced documents.
	Projection Projection
	// OnClose runs once when the cursor is closed or exhausted.
	OnClose func()
}

// WithCursorDecoder sets the decoder used by Scan.
func WithCursorDecoder(d Decoder) CursorOption {
	return func(co *CursorOptions) {
		co.Decoder = d
	}
}

// WithCursorProjection sets the projection applied to produced documents.
func WithCursorProjection(p Projector, proj Projection) CursorOption {
	return func(co *CursorOptions) {
		co.Projector = p
		co.Projection = proj
	}
}

// WithCursorOnClose registers a function run once when the cursor closes.
func WithCursorOnClose(f func()) CursorOption {
	return func(co *CursorOptions) {
		co.OnClose = f
	}
}
