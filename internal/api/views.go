package api

import (
	"time"

	"omnia/internal/catalog"
	"omnia/internal/jsonval"
)

// CollectionView is the JSON form of a collection.
type CollectionView struct {
	ID          string            `json:"id"`
	Key         string            `json:"key"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Tags        []string          `json:"tags,omitempty"`
	Notes       jsonval.Value     `json:"notes"`
	Provider    *catalog.Provider `json:"provider,omitempty"`
	Files       *int              `json:"files,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	ModifiedAt  *time.Time        `json:"modified_at,omitempty"`
}

func collectionView(c *catalog.Collection) CollectionView {
	return CollectionView{
		ID:          c.PK(),
		Key:         c.UniqueKey(),
		Name:        c.Name(),
		Description: c.Description,
		Tags:        c.Tags,
		Notes:       c.Notes,
		Provider:    c.Provider,
		CreatedAt:   c.CreatedAt(),
		ModifiedAt:  c.ModifiedAt(),
	}
}

// FileView is the JSON form of a file object.
type FileView struct {
	ID          string        `json:"id"`
	Key         string        `json:"key"`
	Path        string        `json:"path"`
	Host        string        `json:"host"`
	Checksum    *string       `json:"checksum,omitempty"`
	Size        *int64        `json:"size,omitempty"`
	MimeType    *string       `json:"mime_type,omitempty"`
	Description string        `json:"description,omitempty"`
	Tags        []string      `json:"tags,omitempty"`
	Notes       jsonval.Value `json:"notes"`
	Collections []string      `json:"collections"`
	Missing     []string      `json:"missing_collections,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	ModifiedAt  *time.Time    `json:"modified_at,omitempty"`
}

func fileView(f *catalog.FileObject) FileView {
	return FileView{
		ID:          f.PK(),
		Key:         f.UniqueKey(),
		Path:        f.Path(),
		Host:        f.Host,
		Checksum:    f.Checksum,
		Size:        f.Size,
		MimeType:    f.MimeType,
		Description: f.Description,
		Tags:        f.Tags,
		Notes:       f.Notes,
		Collections: append([]string{}, f.Collections()...),
		CreatedAt:   f.CreatedAt(),
		ModifiedAt:  f.ModifiedAt(),
	}
}

// fileDetailView lists collection names instead of pks.
func fileDetailView(d catalog.FileDetail) FileView {
	v := fileView(d.File)
	v.Collections = make([]string, 0, len(d.Collections))
	for _, c := range d.Collections {
		v.Collections = append(v.Collections, c.Name())
	}
	v.Missing = d.Missing
	return v
}
