package catalog

import (
	"context"
	"errors"
	"fmt"
)

// Mapper persists entities of one kind through a DocumentStore, keyed by
// their unique key. An entity is mapped when exactly one stored document
// carries its unique key.
type Mapper[E Entity] struct {
	store     DocumentStore
	logger    Logger
	clock     Clock
	kind      string
	prototype func() E
}

// NewMapper creates a mapper. prototype returns an empty entity used to
// decode stored documents.
func NewMapper[E Entity](store DocumentStore, logger Logger, clock Clock, prototype func() E) *Mapper[E] {
	return &Mapper[E]{
		store:     store,
		logger:    logger,
		clock:     clock,
		kind:      prototype().Kind(),
		prototype: prototype,
	}
}

// Kind returns the store collection this mapper works on.
func (m *Mapper[E]) Kind() string { return m.kind }

// lookup returns the single stored document carrying e's unique key,
// nil if there is none.
func (m *Mapper[E]) lookup(ctx context.Context, e E) (Document, error) {
	docs, err := m.store.Find(ctx, m.kind, []Predicate{{Field: KeyField, Value: e.UniqueKey()}})
	if err != nil {
		return nil, fmt.Errorf("looking up %s %s: %w", m.kind, e.UniqueKey(), err)
	}
	switch len(docs) {
	case 0:
		return nil, nil
	case 1:
		return docs[0], nil
	default:
		m.logger.Error("unique key shared by several records", "kind", m.kind, "key", e.UniqueKey(), "count", len(docs))
		return nil, fmt.Errorf("%s %s matches %d records: %w", m.kind, e.UniqueKey(), len(docs), ErrIntegrity)
	}
}

// IsMapped reports whether exactly one stored record carries e's unique key.
func (m *Mapper[E]) IsMapped(ctx context.Context, e E) (bool, error) {
	doc, err := m.lookup(ctx, e)
	if err != nil {
		return false, err
	}
	return doc != nil, nil
}

// Map reloads e from the store. Stored values overwrite in-memory ones.
// Returns the zero E, leaving e untouched, when e is not mapped.
func (m *Mapper[E]) Map(ctx context.Context, e E) (E, error) {
	var zero E
	doc, err := m.lookup(ctx, e)
	if err != nil {
		return zero, err
	}
	if doc == nil {
		m.logger.Debug("not mapped", "kind", m.kind, "key", e.UniqueKey())
		return zero, nil
	}
	if err := e.Decode(doc); err != nil {
		return zero, err
	}
	return e, nil
}

// Save inserts e. When a record with the same unique key exists, Save fails
// with ErrConflict unless force is set, in which case the record is replaced.
func (m *Mapper[E]) Save(ctx context.Context, e E, force bool) error {
	e.stamp(m.clock.Now())
	doc, err := e.Encode()
	if err != nil {
		return err
	}

	pk, err := m.store.Insert(ctx, m.kind, doc)
	if errors.Is(err, ErrDuplicateKey) {
		if force {
			updated, err := m.Update(ctx, e)
			if err != nil {
				return err
			}
			if !updated {
				return fmt.Errorf("replacing %s %s: %w", m.kind, e.UniqueKey(), ErrNotFound)
			}
			m.logger.Warn("already exists, replaced", "kind", m.kind, "key", e.UniqueKey())
			return nil
		}
		m.logger.Error("already exists", "kind", m.kind, "key", e.UniqueKey())
		return fmt.Errorf("saving %s %s: %w", m.kind, e.UniqueKey(), ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("saving %s %s: %w", m.kind, e.UniqueKey(), err)
	}

	e.setPK(pk)
	m.logger.Info("saved", "kind", m.kind, "key", e.UniqueKey(), "pk", pk)
	return nil
}

// Update replaces the stored record of e with e's in-memory state.
// Returns false without touching the store when e is not mapped.
func (m *Mapper[E]) Update(ctx context.Context, e E) (bool, error) {
	doc, err := m.lookup(ctx, e)
	if err != nil {
		return false, err
	}
	if doc == nil {
		m.logger.Debug("not mapped, nothing to update", "kind", m.kind, "key", e.UniqueKey())
		return false, nil
	}

	if err := m.replace(ctx, e, doc.ID()); err != nil {
		if errors.Is(err, ErrNotFound) {
			m.logger.Warn("record vanished before update", "kind", m.kind, "key", e.UniqueKey())
			return false, nil
		}
		return false, err
	}
	m.logger.Info("modified", "kind", m.kind, "key", e.UniqueKey(), "pk", doc.ID())
	return true, nil
}

// Rename applies a change to e's identity fields and moves the stored record
// to the new unique key. Fails with ErrNotFound when e is not mapped and
// ErrConflict when the new key is taken. On failure e keeps its old identity.
func (m *Mapper[E]) Rename(ctx context.Context, e E, apply func(E) error) error {
	doc, err := m.lookup(ctx, e)
	if err != nil {
		return err
	}
	if doc == nil {
		return fmt.Errorf("renaming %s %s: %w", m.kind, e.UniqueKey(), ErrNotFound)
	}

	oldKey := e.UniqueKey()
	before, err := e.Encode()
	if err != nil {
		return err
	}
	before[IDField] = e.PK()
	undo := func() {
		if err := e.Decode(before); err != nil {
			m.logger.Error("restoring after failed rename", "kind", m.kind, "key", oldKey, "error", err)
		}
	}

	if err := apply(e); err != nil {
		undo()
		return err
	}

	err = m.replace(ctx, e, doc.ID())
	if errors.Is(err, ErrDuplicateKey) {
		m.logger.Error("already exists", "kind", m.kind, "key", e.UniqueKey())
		err = fmt.Errorf("renaming %s %s to %s: %w", m.kind, oldKey, e.UniqueKey(), ErrConflict)
	}
	if err != nil {
		undo()
		return err
	}
	m.logger.Info("renamed", "kind", m.kind, "from", oldKey, "to", e.UniqueKey())
	return nil
}

// replace writes e over the record pk. e's pk and modification time only
// change once the store accepts the write.
func (m *Mapper[E]) replace(ctx context.Context, e E, pk string) error {
	saved := e.bookkeeping()
	e.setPK(pk)
	e.touch(m.clock.Now())
	body, err := e.Encode()
	if err == nil {
		err = m.store.Replace(ctx, m.kind, pk, body)
		if err != nil {
			err = fmt.Errorf("replacing %s %s: %w", m.kind, pk, err)
		}
	}
	if err != nil {
		e.restore(saved)
		return err
	}
	return nil
}

// Delete removes the stored record of e and clears its pk.
// Returns false with a warning when e is not mapped.
func (m *Mapper[E]) Delete(ctx context.Context, e E) (bool, error) {
	doc, err := m.lookup(ctx, e)
	if err != nil {
		return false, err
	}
	if doc == nil {
		m.logger.Warn("not mapped, nothing to delete", "kind", m.kind, "key", e.UniqueKey())
		return false, nil
	}
	if err := m.store.Delete(ctx, m.kind, doc.ID()); err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("deleting %s %s: %w", m.kind, doc.ID(), err)
	}
	e.setPK("")
	m.logger.Info("deleted", "kind", m.kind, "key", e.UniqueKey())
	return true, nil
}

// Get loads the entity with primary key pk. Returns the zero E if absent.
func (m *Mapper[E]) Get(ctx context.Context, pk string) (E, error) {
	var zero E
	doc, err := m.store.Get(ctx, m.kind, pk)
	if err != nil {
		return zero, fmt.Errorf("getting %s %s: %w", m.kind, pk, err)
	}
	if doc == nil {
		return zero, nil
	}
	return m.decode(doc)
}

// All loads every stored entity of this kind.
func (m *Mapper[E]) All(ctx context.Context) ([]E, error) {
	docs, err := m.store.Find(ctx, m.kind, nil)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", m.kind, err)
	}
	return m.decodeAll(docs)
}

func (m *Mapper[E]) decode(doc Document) (E, error) {
	e := m.prototype()
	if err := e.Decode(doc); err != nil {
		var zero E
		return zero, err
	}
	return e, nil
}

func (m *Mapper[E]) decodeAll(docs []Document) ([]E, error) {
	out := make([]E, 0, len(docs))
	for _, doc := range docs {
		e, err := m.decode(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}
