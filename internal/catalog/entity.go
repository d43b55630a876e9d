package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"omnia/internal/jsonval"
)

// Entity is a catalog record that can be persisted through a Mapper.
// Its unique key is derived from identity fields at construction and can
// only change by changing those fields.
type Entity interface {
	// Kind names the store collection that holds this entity.
	Kind() string
	// UniqueKey is the deterministic key derived from the identity fields.
	UniqueKey() string
	// PK is the store-assigned primary key, "" until persisted or mapped.
	PK() string
	// JSONFields lists the fields holding free-form JSON documents.
	JSONFields() []string
	// Encode validates the entity and renders it as a document without a primary key.
	Encode() (Document, error)
	// Decode replaces the entity state with the stored document.
	Decode(doc Document) error

	setPK(pk string)
	stamp(now time.Time)
	touch(now time.Time)
	bookkeeping() record
	restore(saved record)
}

// record carries the bookkeeping every entity shares.
type record struct {
	pk         string
	uniqueKey  string
	createdAt  time.Time
	modifiedAt *time.Time
}

func (r *record) UniqueKey() string { return r.uniqueKey }
func (r *record) PK() string        { return r.pk }

// CreatedAt is when the record was first saved.
func (r *record) CreatedAt() time.Time { return r.createdAt }

// ModifiedAt is when the record was last updated, nil if never.
func (r *record) ModifiedAt() *time.Time { return r.modifiedAt }

func (r *record) setPK(pk string) { r.pk = pk }

func (r *record) stamp(now time.Time) {
	if r.createdAt.IsZero() {
		r.createdAt = now
	}
}

func (r *record) touch(now time.Time) {
	r.modifiedAt = &now
}

func (r *record) bookkeeping() record { return *r }

func (r *record) restore(saved record) { *r = saved }

// toDocument renders a tagged struct as a Document. Numbers stay
// json.Number so integers beyond float64 precision survive.
func toDocument(v any) (Document, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding document: %w", err)
	}
	var doc Document
	if err := unmarshalNumbers(data, &doc); err != nil {
		return nil, fmt.Errorf("encoding document: %w", err)
	}
	return doc, nil
}

// fromDocument fills a tagged struct from a Document.
func fromDocument(doc Document, v any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("decoding document: %w", err)
	}
	if err := unmarshalNumbers(data, v); err != nil {
		return fmt.Errorf("decoding document: %w", err)
	}
	return nil
}

func unmarshalNumbers(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

// storedJSON is an embedded JSON attribute as it sits in a Document: its
// serialized text. Stores never see the structure, so member order and the
// spelling of numbers come back exactly as saved.
type storedJSON struct {
	value jsonval.Value
}

func (s storedJSON) MarshalJSON() ([]byte, error) {
	text, err := s.value.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return json.Marshal(string(text))
}

// UnmarshalJSON also accepts the attribute stored as a plain JSON value.
func (s *storedJSON) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		s.value = jsonval.NullValue()
		return nil
	}
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return s.value.UnmarshalJSON(data)
	}
	v, err := jsonval.Parse([]byte(text))
	if err != nil {
		v = jsonval.StringValue(text)
	}
	s.value = v
	return nil
}

// storedValue parses a JSON field as found in a stored document.
func storedValue(raw any) (jsonval.Value, error) {
	if text, ok := raw.(string); ok {
		if v, err := jsonval.Parse([]byte(text)); err == nil {
			return v, nil
		}
	}
	return jsonval.FromAny(raw)
}

// expandJSONFields replaces each JSON field of doc with its parsed Value,
// for callers that read documents directly.
func expandJSONFields(doc Document, fields []string) {
	for _, field := range fields {
		raw, ok := doc[field]
		if !ok {
			continue
		}
		if v, err := storedValue(raw); err == nil {
			doc[field] = v
		}
	}
}

// normalizeTags trims, drops empties and deduplicates. Tags are a set.
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		out = append(out, t)
	}
	slices.Sort(out)
	return slices.Compact(out)
}
