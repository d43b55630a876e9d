package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"omnia/internal/hashing"
	"omnia/internal/jsonval"
)

const (
	KindFileObject = "file_objects"

	PrefixPOSIX = "posix"
)

// Metadata is the computed description of a file's content.
type Metadata struct {
	Checksum string
	Size     int64
	MimeType string
}

// FileObject is a registered file. Its unique key binds the file name to its
// content, so renaming the file or changing its bytes yields a new identity.
type FileObject struct {
	record
	path        string
	collections []string

	Host        string
	Prefix      string
	Checksum    *string
	Size        *int64
	MimeType    *string
	Description string
	Tags        []string
	Notes       jsonval.Value
}

var _ Entity = (*FileObject)(nil)

type FileObjectOption func(*FileObject)

// WithHost sets the host identifier instead of the local hostname.
func WithHost(host string) FileObjectOption {
	return func(f *FileObject) { f.Host = host }
}

// WithCollections pre-populates collection membership.
func WithCollections(pks ...string) FileObjectOption {
	return func(f *FileObject) {
		for _, pk := range pks {
			f.AddCollection(pk)
		}
	}
}

func WithFileDescription(description string) FileObjectOption {
	return func(f *FileObject) { f.Description = description }
}

func WithFileTags(tags ...string) FileObjectOption {
	return func(f *FileObject) { f.Tags = tags }
}

func WithFileNotes(notes jsonval.Value) FileObjectOption {
	return func(f *FileObject) { f.Notes = notes }
}

// NewFileObject builds an unsaved file object for the file at path. The file
// is read to derive its identity; an unreadable file yields an error wrapping ErrIO.
func NewFileObject(h *hashing.Hasher, path string, opts ...FileObjectOption) (*FileObject, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: file path is required", ErrValidation)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%w: resolving %s: %v", ErrValidation, path, err)
	}

	key, err := h.FileIdentity(abs)
	if err != nil {
		return nil, fmt.Errorf("deriving identity of %s: %w", abs, err)
	}

	f := &FileObject{
		record: record{uniqueKey: key},
		path:   abs,
		Prefix: PrefixPOSIX,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.Host == "" {
		f.Host = localHost()
	}
	f.Tags = normalizeTags(f.Tags)
	if err := f.validate(); err != nil {
		return nil, err
	}
	return f, nil
}

func newFileObjectPrototype() *FileObject { return &FileObject{} }

func localHost() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "localhost"
	}
	return host
}

func (f *FileObject) Kind() string { return KindFileObject }

func (f *FileObject) Path() string { return f.path }

func (f *FileObject) JSONFields() []string { return []string{"notes"} }

// Collections returns the pks of the collections the file belongs to.
func (f *FileObject) Collections() []string {
	return slices.Clone(f.collections)
}

func (f *FileObject) HasCollection(pk string) bool {
	return slices.Contains(f.collections, pk)
}

// AddCollection adds pk to the membership set and reports whether it was new.
func (f *FileObject) AddCollection(pk string) bool {
	if pk == "" || f.HasCollection(pk) {
		return false
	}
	f.collections = append(f.collections, pk)
	return true
}

// RemoveCollection drops pk from the membership set and reports whether it was present.
func (f *FileObject) RemoveCollection(pk string) bool {
	i := slices.Index(f.collections, pk)
	if i < 0 {
		return false
	}
	f.collections = slices.Delete(f.collections, i, i+1)
	return true
}

// SetMetadata records computed content metadata.
func (f *FileObject) SetMetadata(m Metadata) {
	f.Checksum = &m.Checksum
	f.Size = &m.Size
	f.MimeType = &m.MimeType
}

func (f *FileObject) validate() error {
	if f.path == "" {
		return fmt.Errorf("%w: file path is required", ErrValidation)
	}
	if f.uniqueKey == "" {
		return fmt.Errorf("%w: file object has no identity", ErrValidation)
	}
	if len([]rune(f.Description)) > MaxDescriptionLength {
		return fmt.Errorf("%w: description longer than %d characters", ErrValidation, MaxDescriptionLength)
	}
	for _, t := range f.Tags {
		if len([]rune(t)) > MaxTagLength {
			return fmt.Errorf("%w: tag %q longer than %d characters", ErrValidation, t, MaxTagLength)
		}
	}
	return nil
}

type fileObjectDocument struct {
	UniqueKey   string     `json:"uk"`
	Path        string     `json:"path"`
	Host        string     `json:"host"`
	Prefix      string     `json:"prefix"`
	Checksum    *string    `json:"checksum"`
	Size        *int64     `json:"size"`
	MimeType    *string    `json:"mimetype"`
	Collections []string   `json:"collections"`
	Description string     `json:"description"`
	Tags        []string   `json:"tags"`
	Notes       storedJSON `json:"notes"`
	CreatedAt   time.Time  `json:"created_at"`
	ModifiedAt  *time.Time `json:"modified_at,omitempty"`
}

func (f *FileObject) Encode() (Document, error) {
	f.Tags = normalizeTags(f.Tags)
	if err := f.validate(); err != nil {
		return nil, err
	}
	collections := f.collections
	if collections == nil {
		collections = []string{}
	}
	return toDocument(fileObjectDocument{
		UniqueKey:   f.uniqueKey,
		Path:        f.path,
		Host:        f.Host,
		Prefix:      f.Prefix,
		Checksum:    f.Checksum,
		Size:        f.Size,
		MimeType:    f.MimeType,
		Collections: collections,
		Description: f.Description,
		Tags:        f.Tags,
		Notes:       storedJSON{value: f.Notes},
		CreatedAt:   f.createdAt,
		ModifiedAt:  f.modifiedAt,
	})
}

func (f *FileObject) Decode(doc Document) error {
	var d fileObjectDocument
	if err := fromDocument(doc, &d); err != nil {
		return fmt.Errorf("decoding file object: %w", err)
	}
	f.pk = doc.ID()
	f.uniqueKey = d.UniqueKey
	f.path = d.Path
	f.Host = d.Host
	f.Prefix = d.Prefix
	f.Checksum = d.Checksum
	f.Size = d.Size
	f.MimeType = d.MimeType
	f.collections = nil
	for _, pk := range d.Collections {
		f.AddCollection(pk)
	}
	f.Description = d.Description
	f.Tags = normalizeTags(d.Tags)
	f.Notes = d.Notes.value
	f.createdAt = d.CreatedAt
	f.modifiedAt = d.ModifiedAt
	return nil
}
