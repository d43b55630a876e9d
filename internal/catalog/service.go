package catalog

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"

	"omnia/internal/hashing"
	"omnia/internal/jsonval"
)

// Service is the catalog: collections, registered files and the operation log.
type Service struct {
	store  DocumentStore
	hasher *hashing.Hasher
	meta   MetadataComputer
	files  FileMatcher
	logger Logger
	clock  Clock
	idgen  IDGenerator
	host   string

	collections *Mapper[*Collection]
	objects     *Mapper[*FileObject]
	operations  *Mapper[*Operation]
}

// NewService wires a catalog over store. meta and files may be nil when the
// caller never registers files. A nil logger, clock or idgen falls back to
// NopLogger, RealClock and UUIDGenerator; an empty host to the OS hostname.
func NewService(store DocumentStore, hasher *hashing.Hasher, meta MetadataComputer, files FileMatcher, logger Logger, clock Clock, idgen IDGenerator, host string) *Service {
	if hasher == nil {
		hasher = hashing.Default()
	}
	if logger == nil {
		logger = NewNopLogger()
	}
	if clock == nil {
		clock = RealClock{}
	}
	if idgen == nil {
		idgen = UUIDGenerator{}
	}
	if host == "" {
		host = localHost()
	}
	return &Service{
		store:       store,
		hasher:      hasher,
		meta:        meta,
		files:       files,
		logger:      logger,
		clock:       clock,
		idgen:       idgen,
		host:        host,
		collections: NewMapper(store, logger, clock, newCollectionPrototype(hasher)),
		objects:     NewMapper(store, logger, clock, newFileObjectPrototype),
		operations:  NewMapper(store, logger, clock, newOperationPrototype),
	}
}

func (s *Service) Hasher() *hashing.Hasher { return s.hasher }

func (s *Service) Collections() *Mapper[*Collection] { return s.collections }

func (s *Service) FileObjects() *Mapper[*FileObject] { return s.objects }

// Ping checks the store connection.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// CreateCollection saves a new collection. An existing name yields ErrConflict.
func (s *Service) CreateCollection(ctx context.Context, name string, opts ...CollectionOption) (*Collection, error) {
	c, err := NewCollection(s.hasher, name, opts...)
	if err != nil {
		return nil, err
	}
	if err := s.collections.Save(ctx, c, false); err != nil {
		return nil, err
	}
	return c, nil
}

// FindCollection returns the collection with name, or nil if there is none.
func (s *Service) FindCollection(ctx context.Context, name string) (*Collection, error) {
	c, err := NewCollection(s.hasher, name)
	if err != nil {
		return nil, err
	}
	return s.collections.Map(ctx, c)
}

func (s *Service) requireCollection(ctx context.Context, name string) (*Collection, error) {
	c, err := s.FindCollection(ctx, name)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("collection %q: %w", name, ErrNotFound)
	}
	return c, nil
}

// CollectionEdit lists the attributes to change. Nil fields are left alone.
type CollectionEdit struct {
	Description *string
	Tags        []string
	Notes       *jsonval.Value
	Provider    *Provider
}

func (e CollectionEdit) empty() bool {
	return e.Description == nil && e.Tags == nil && e.Notes == nil && e.Provider == nil
}

// EditCollection applies edit and reports whether anything was written.
func (s *Service) EditCollection(ctx context.Context, name string, edit CollectionEdit) (bool, error) {
	c, err := s.requireCollection(ctx, name)
	if err != nil {
		return false, err
	}
	if edit.empty() {
		s.logger.Info("collection unchanged", "name", name)
		return false, nil
	}
	if edit.Description != nil {
		c.Description = *edit.Description
	}
	if edit.Tags != nil {
		c.Tags = edit.Tags
	}
	if edit.Notes != nil {
		c.Notes = *edit.Notes
	}
	if edit.Provider != nil {
		c.Provider = edit.Provider
	}
	return s.collections.Update(ctx, c)
}

// RenameCollection moves a collection to a new name. Memberships are kept
// since they reference the collection pk.
func (s *Service) RenameCollection(ctx context.Context, oldName, newName string) (*Collection, error) {
	c, err := s.requireCollection(ctx, oldName)
	if err != nil {
		return nil, err
	}
	err = s.collections.Rename(ctx, c, func(c *Collection) error {
		return c.Rename(newName)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// DeleteCollection removes a collection. File memberships are not touched;
// readers treat them as dangling references.
func (s *Service) DeleteCollection(ctx context.Context, name string) error {
	c, err := s.requireCollection(ctx, name)
	if err != nil {
		return err
	}
	deleted, err := s.collections.Delete(ctx, c)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("collection %q: %w", name, ErrNotFound)
	}
	return nil
}

// ListCollections returns every collection sorted by name.
func (s *Service) ListCollections(ctx context.Context) ([]*Collection, error) {
	all, err := s.collections.All(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name() < all[j].Name() })
	return all, nil
}

// CollectionFiles returns the files that belong to the named collection, sorted by path.
func (s *Service) CollectionFiles(ctx context.Context, name string) (*Collection, []*FileObject, error) {
	c, err := s.requireCollection(ctx, name)
	if err != nil {
		return nil, nil, err
	}
	files, err := s.objects.QueryEntities(ctx, Filter{"collections": c.PK()}, true)
	if err != nil {
		return nil, nil, err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path() < files[j].Path() })
	return c, files, nil
}

// CountCollectionFiles counts the files that belong to c.
func (s *Service) CountCollectionFiles(ctx context.Context, c *Collection) (int, error) {
	n, err := s.store.Count(ctx, KindFileObject, []Predicate{{Field: "collections", Value: c.PK()}})
	if err != nil {
		return 0, fmt.Errorf("counting files of %q: %w", c.Name(), err)
	}
	return n, nil
}

// FileDetail is a registered file with its memberships resolved.
type FileDetail struct {
	File        *FileObject
	Collections []*Collection
	// Missing holds membership pks whose collection no longer exists.
	Missing []string
}

// DescribeFile returns every record registered at path.
func (s *Service) DescribeFile(ctx context.Context, path string) ([]FileDetail, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%w: resolving %s: %v", ErrValidation, path, err)
	}
	files, err := s.objects.QueryEntities(ctx, Filter{"path": abs}, true)
	if err != nil {
		return nil, err
	}

	details := make([]FileDetail, 0, len(files))
	for _, f := range files {
		d := FileDetail{File: f}
		for _, pk := range f.Collections() {
			c, err := s.collections.Get(ctx, pk)
			if err != nil {
				return nil, err
			}
			if c == nil {
				s.logger.Warn("dangling collection reference", "path", f.Path(), "collection", pk)
				d.Missing = append(d.Missing, pk)
				continue
			}
			d.Collections = append(d.Collections, c)
		}
		details = append(details, d)
	}
	return details, nil
}

// ExportPaths writes the path of every file in the named collection to w,
// one per line, and returns how many were written.
func (s *Service) ExportPaths(ctx context.Context, name string, w io.Writer) (int, error) {
	_, files, err := s.CollectionFiles(ctx, name)
	if err != nil {
		return 0, err
	}
	bw := bufio.NewWriter(w)
	for _, f := range files {
		if _, err := fmt.Fprintln(bw, f.Path()); err != nil {
			return 0, fmt.Errorf("writing paths: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return 0, fmt.Errorf("writing paths: %w", err)
	}
	return len(files), nil
}

// Query runs a filter against the documents of kind.
func (s *Service) Query(ctx context.Context, kind string, filter Filter, caseSensitive bool) ([]Document, error) {
	switch kind {
	case KindCollection:
		return s.collections.Query(ctx, filter, caseSensitive)
	case KindFileObject:
		return s.objects.Query(ctx, filter, caseSensitive)
	case KindOperation:
		return s.operations.Query(ctx, filter, caseSensitive)
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrValidation, kind)
	}
}

// Kinds lists the document kinds the catalog stores.
func Kinds() []string {
	return []string{KindCollection, KindFileObject, KindOperation}
}
