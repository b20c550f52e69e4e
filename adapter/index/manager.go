package index

import (
	"errors"
	"iter"
	"maps"
	"slices"

	"github.com/vinicius-lino-figueiredo/albedo/domain"
)

// Manager keeps the secondary indexes of a bucket. The primary index is owned
// by the document store and is only exposed here for planning.
type Manager struct {
	primary   domain.Index
	secondary map[string]domain.Index
	options   []Option
}

// NewManager returns a manager with no secondary index. primary is the _id
// index maintained by the store.
func NewManager(primary domain.Index, options ...Option) *Manager {
	return &Manager{
		primary:   primary,
		secondary: make(map[string]domain.Index),
		options:   options,
	}
}

// Index returns the index over field.
func (m *Manager) Index(field string) (domain.Index, bool) {
	if field == domain.PrimaryIndex {
		return m.primary, true
	}
	idx, ok := m.secondary[field]
	return idx, ok
}

// Primary returns the _id index.
func (m *Manager) Primary() domain.Index {
	return m.primary
}

// ListIndexes returns every index definition by name, the _id index
// included.
func (m *Manager) ListIndexes() map[string]domain.IndexInfo {
	res := make(map[string]domain.IndexInfo, len(m.secondary)+1)
	res[domain.PrimaryIndex] = m.primary.Info()
	for name, idx := range m.secondary {
		res[name] = idx.Info()
	}
	return res
}

// EnsureIndex builds the index described by info over docs and installs it,
// replacing any previous definition over the same field. The previous index
// is returned so callers can roll back. On error nothing changes.
func (m *Manager) EnsureIndex(info domain.IndexInfo, docs iter.Seq[domain.Document]) (prev domain.Index, err error) {
	if info.Name == "" {
		return nil, domain.ErrNoFieldName
	}
	if info.Name == domain.PrimaryIndex {
		return nil, nil
	}
	idx, err := NewIndex(info, m.options...)
	if err != nil {
		return nil, err
	}
	if err := idx.Reset(docs); err != nil {
		return nil, err
	}
	prev = m.secondary[info.Name]
	m.secondary[info.Name] = idx
	return prev, nil
}

// Restore puts idx back under name, or removes name if idx is nil.
func (m *Manager) Restore(name string, idx domain.Index) {
	if idx == nil {
		delete(m.secondary, name)
		return
	}
	m.secondary[name] = idx
}

// DropIndex removes the index over field and returns it. Dropping an absent
// index is not an error.
func (m *Manager) DropIndex(field string) (domain.Index, error) {
	if field == domain.PrimaryIndex {
		return nil, domain.ErrPrimaryIndex
	}
	idx, ok := m.secondary[field]
	if !ok {
		return nil, nil
	}
	delete(m.secondary, field)
	return idx, nil
}

func (m *Manager) ordered() []domain.Index {
	names := slices.Sorted(maps.Keys(m.secondary))
	res := make([]domain.Index, len(names))
	for n, name := range names {
		res[n] = m.secondary[name]
	}
	return res
}

// OnInsert adds docs to every secondary index. On error, no index keeps any
// of them.
func (m *Manager) OnInsert(docs ...domain.Document) error {
	done := make([]domain.Index, 0, len(m.secondary))
	for _, idx := range m.ordered() {
		if err := idx.Insert(docs...); err != nil {
			errs := []error{err}
			for _, d := range done {
				if err := d.Remove(docs...); err != nil {
					errs = append(errs, err)
				}
			}
			return errors.Join(errs...)
		}
		done = append(done, idx)
	}
	return nil
}

// OnUpdate replaces oldDoc by newDoc in every secondary index. On error, every
// index is left as before.
func (m *Manager) OnUpdate(oldDoc, newDoc domain.Document) error {
	done := make([]domain.Index, 0, len(m.secondary))
	for _, idx := range m.ordered() {
		if err := idx.Update(oldDoc, newDoc); err != nil {
			errs := []error{err}
			for _, d := range done {
				if err := d.Update(newDoc, oldDoc); err != nil {
					errs = append(errs, err)
				}
			}
			return errors.Join(errs...)
		}
		done = append(done, idx)
	}
	return nil
}

// OnDelete removes docs from every secondary index.
func (m *Manager) OnDelete(docs ...domain.Document) error {
	errs := make([]error, 0)
	for _, idx := range m.ordered() {
		if err := idx.Remove(docs...); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
