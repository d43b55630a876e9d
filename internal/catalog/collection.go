package catalog

import (
	"fmt"
	"strings"
	"time"

	"omnia/internal/hashing"
	"omnia/internal/jsonval"
)

const (
	KindCollection = "collections"

	MaxDescriptionLength = 200
	MaxTagLength         = 50
)

// Provider records where a collection's data came from.
type Provider struct {
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

// Collection is a named grouping of file objects.
// Its unique key is the string identity of its name.
type Collection struct {
	record
	hasher *hashing.Hasher
	name   string

	Description string
	Tags        []string
	Notes       jsonval.Value
	Provider    *Provider
}

var _ Entity = (*Collection)(nil)

type CollectionOption func(*Collection)

func WithDescription(description string) CollectionOption {
	return func(c *Collection) { c.Description = description }
}

func WithTags(tags ...string) CollectionOption {
	return func(c *Collection) { c.Tags = tags }
}

func WithNotes(notes jsonval.Value) CollectionOption {
	return func(c *Collection) { c.Notes = notes }
}

func WithProvider(p Provider) CollectionOption {
	return func(c *Collection) { c.Provider = &p }
}

// NewCollection builds an unsaved collection. The name is required.
func NewCollection(h *hashing.Hasher, name string, opts ...CollectionOption) (*Collection, error) {
	c := &Collection{hasher: h}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.setName(name); err != nil {
		return nil, err
	}
	c.Tags = normalizeTags(c.Tags)
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// newCollectionPrototype returns an empty collection for decoding stored documents.
func newCollectionPrototype(h *hashing.Hasher) func() *Collection {
	return func() *Collection { return &Collection{hasher: h} }
}

func (c *Collection) Kind() string { return KindCollection }

func (c *Collection) Name() string { return c.name }

func (c *Collection) JSONFields() []string { return []string{"notes"} }

// Rename changes the name and with it the unique key.
// Persist the change with Mapper.Rename.
func (c *Collection) Rename(name string) error {
	return c.setName(name)
}

func (c *Collection) setName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: collection name is required", ErrValidation)
	}
	c.name = name
	c.uniqueKey = c.hasher.StringIdentity(name)
	return nil
}

func (c *Collection) validate() error {
	if c.name == "" || c.uniqueKey == "" {
		return fmt.Errorf("%w: collection name is required", ErrValidation)
	}
	if len([]rune(c.Description)) > MaxDescriptionLength {
		return fmt.Errorf("%w: description longer than %d characters", ErrValidation, MaxDescriptionLength)
	}
	for _, t := range c.Tags {
		if len([]rune(t)) > MaxTagLength {
			return fmt.Errorf("%w: tag %q longer than %d characters", ErrValidation, t, MaxTagLength)
		}
	}
	if c.Provider != nil && strings.TrimSpace(c.Provider.Name) == "" {
		return fmt.Errorf("%w: provider name is required", ErrValidation)
	}
	return nil
}

type collectionDocument struct {
	UniqueKey   string     `json:"uk"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Tags        []string   `json:"tags"`
	Notes       storedJSON `json:"notes"`
	Provider    *Provider  `json:"provider,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ModifiedAt  *time.Time `json:"modified_at,omitempty"`
}

func (c *Collection) Encode() (Document, error) {
	c.Tags = normalizeTags(c.Tags)
	if err := c.validate(); err != nil {
		return nil, err
	}
	return toDocument(collectionDocument{
		UniqueKey:   c.uniqueKey,
		Name:        c.name,
		Description: c.Description,
		Tags:        c.Tags,
		Notes:       storedJSON{value: c.Notes},
		Provider:    c.Provider,
		CreatedAt:   c.createdAt,
		ModifiedAt:  c.modifiedAt,
	})
}

func (c *Collection) Decode(doc Document) error {
	var d collectionDocument
	if err := fromDocument(doc, &d); err != nil {
		return fmt.Errorf("decoding collection: %w", err)
	}
	c.pk = doc.ID()
	c.uniqueKey = d.UniqueKey
	c.name = d.Name
	c.Description = d.Description
	c.Tags = normalizeTags(d.Tags)
	c.Notes = d.Notes.value
	c.Provider = d.Provider
	c.createdAt = d.CreatedAt
	c.modifiedAt = d.ModifiedAt
	return nil
}
