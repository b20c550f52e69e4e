package querier

import (
	"errors"
	"fmt"

	"github.com/vinicius-lino-figueiredo/albedo/domain"
)

// ErrInvalidQuery is returned when a query document does not have the
// expected shape.
var ErrInvalidQuery = errors.New("invalid query")

// ParseQuery decodes the plain-data form of a query:
//
//	{query: {...}, sort: {asc|desc: field}, sector: {offset, limit},
//	 projection: {include|omit: [fields]}}
//
// Every key is optional.
func ParseQuery(doc domain.Document) (domain.Query, error) {
	var q domain.Query
	if doc == nil {
		return q, nil
	}
	for k, v := range doc.Iter() {
		var err error
		switch k {
		case "query":
			if v == nil {
				continue
			}
			filter, ok := v.(domain.Document)
			if !ok {
				return q, fmt.Errorf("%w: query must be a document, got %T", ErrInvalidQuery, v)
			}
			q.Filter = filter
		case "sort":
			q.Sort, err = parseSort(v)
		case "sector":
			q.Sector, err = parseSector(v)
		case "projection":
			q.Projection, err = parseProjection(v)
		default:
			err = fmt.Errorf("%w: unknown key %q", ErrInvalidQuery, k)
		}
		if err != nil {
			return domain.Query{}, err
		}
	}
	return q, nil
}

func parseSort(v any) (*domain.SortField, error) {
	d, ok := v.(domain.Document)
	if !ok || d.Len() != 1 {
		return nil, fmt.Errorf("%w: sort must have exactly one of asc or desc", ErrInvalidQuery)
	}
	for dir, field := range d.Iter() {
		name, ok := field.(string)
		if !ok || name == "" {
			return nil, fmt.Errorf("%w: sort field must be a non-empty string", ErrInvalidQuery)
		}
		switch dir {
		case "asc":
			return &domain.SortField{Field: name}, nil
		case "desc":
			return &domain.SortField{Field: name, Descending: true}, nil
		}
		return nil, fmt.Errorf("%w: unknown sort direction %q", ErrInvalidQuery, dir)
	}
	return nil, nil
}

func parseSector(v any) (domain.Sector, error) {
	var s domain.Sector
	d, ok := v.(domain.Document)
	if !ok {
		return s, fmt.Errorf("%w: sector must be a document", ErrInvalidQuery)
	}
	for k, val := range d.Iter() {
		n, ok := val.(int64)
		if !ok || n < 0 {
			return s, fmt.Errorf("%w: sector %s must be a non-negative integer", ErrInvalidQuery, k)
		}
		switch k {
		case "offset":
			s.Offset = n
		case "limit":
			s.Limit = n
		default:
			return s, fmt.Errorf("%w: unknown sector key %q", ErrInvalidQuery, k)
		}
	}
	return s, nil
}

func parseProjection(v any) (domain.Projection, error) {
	var p domain.Projection
	d, ok := v.(domain.Document)
	if !ok || d.Len() != 1 {
		return p, fmt.Errorf("%w: projection must have exactly one of include or omit", ErrInvalidQuery)
	}
	for mode, list := range d.Iter() {
		switch mode {
		case "include":
		case "omit":
			p.Omit = true
		default:
			return p, fmt.Errorf("%w: unknown projection mode %q", ErrInvalidQuery, mode)
		}
		fields, ok := list.([]any)
		if !ok {
			return p, fmt.Errorf("%w: projection %s must be a list", ErrInvalidQuery, mode)
		}
		for _, f := range fields {
			name, ok := f.(string)
			if !ok {
				return p, fmt.Errorf("%w: projection fields must be strings", ErrInvalidQuery)
			}
			p.Fields = append(p.Fields, name)
		}
	}
	return p, nil
}
