package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
)

// Filter selects documents by field. Plain fields take a scalar (equality)
// or a list of scalars (any of). JSON fields take a map from a nested key,
// searched at any depth, to a substring its value must contain.
type Filter map[string]any

type jsonClause struct {
	field  string
	key    string
	substr string
}

// compiledQuery is a union of conjunctive store clauses, each optionally
// narrowed by the JSON clauses.
type compiledQuery struct {
	clauses [][]Predicate
	json    []jsonClause
}

func (q *compiledQuery) empty() bool {
	return len(q.clauses) == 0
}

// compileFilter turns a filter into store predicates. An empty filter, or
// one with an empty any-of list, compiles to an empty query.
func compileFilter(filter Filter, jsonFields []string, caseSensitive bool) (*compiledQuery, error) {
	q := &compiledQuery{}
	if len(filter) == 0 {
		return q, nil
	}

	fields := make([]string, 0, len(filter))
	for field := range filter {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var scalars []Predicate
	var alternatives []Predicate
	for _, field := range fields {
		if !ValidField(field) {
			return nil, fmt.Errorf("%w: invalid field name %q", ErrValidation, field)
		}
		value := filter[field]

		if slices.Contains(jsonFields, field) {
			clauses, err := compileJSONField(field, value)
			if err != nil {
				return nil, err
			}
			q.json = append(q.json, clauses...)
			continue
		}

		switch v := value.(type) {
		case []any:
			if len(v) == 0 {
				return &compiledQuery{}, nil
			}
			for _, item := range v {
				p, err := predicate(field, item, caseSensitive)
				if err != nil {
					return nil, err
				}
				alternatives = append(alternatives, p)
			}
		case []string:
			if len(v) == 0 {
				return &compiledQuery{}, nil
			}
			for _, item := range v {
				alternatives = append(alternatives, Predicate{Field: field, Value: item, FoldCase: !caseSensitive})
			}
		default:
			p, err := predicate(field, value, caseSensitive)
			if err != nil {
				return nil, err
			}
			scalars = append(scalars, p)
		}
	}

	switch {
	case len(alternatives) > 0:
		for _, alt := range alternatives {
			clause := append(slices.Clone(scalars), alt)
			q.clauses = append(q.clauses, clause)
		}
	case len(scalars) > 0 || len(q.json) > 0:
		q.clauses = [][]Predicate{scalars}
	}
	return q, nil
}

func predicate(field string, value any, caseSensitive bool) (Predicate, error) {
	switch v := value.(type) {
	case nil, bool, float64, float32, int, int32, int64:
		return Predicate{Field: field, Value: v}, nil
	case json.Number:
		if _, err := v.Float64(); err != nil {
			return Predicate{}, fmt.Errorf("%w: field %s: %v", ErrValidation, field, err)
		}
		return Predicate{Field: field, Value: v}, nil
	case string:
		return Predicate{Field: field, Value: v, FoldCase: !caseSensitive}, nil
	default:
		return Predicate{}, fmt.Errorf("%w: field %s: unsupported filter value of type %T", ErrValidation, field, value)
	}
}

func compileJSONField(field string, value any) ([]jsonClause, error) {
	var clauses []jsonClause
	switch v := value.(type) {
	case map[string]string:
		for key, substr := range v {
			clauses = append(clauses, jsonClause{field: field, key: key, substr: substr})
		}
	case map[string]any:
		for key, raw := range v {
			substr, ok := raw.(string)
			if !ok {
				substr = fmt.Sprint(raw)
			}
			clauses = append(clauses, jsonClause{field: field, key: key, substr: substr})
		}
	default:
		return nil, fmt.Errorf("%w: json field %s takes a map of nested key to substring, got %T", ErrValidation, field, value)
	}
	sort.Slice(clauses, func(i, j int) bool { return clauses[i].key < clauses[j].key })
	return clauses, nil
}

// matchJSON reports whether doc satisfies any JSON clause of q.
func (q *compiledQuery) matchJSON(doc Document, caseSensitive bool) bool {
	for _, jc := range q.json {
		raw, ok := doc.Lookup(jc.field)
		if !ok {
			continue
		}
		value, err := storedValue(raw)
		if err != nil {
			continue
		}
		found, ok := value.Find(jc.key)
		if ok && found.Contains(jc.substr, caseSensitive) {
			return true
		}
	}
	return false
}

// Query returns the stored documents matching filter, deduplicated by pk.
// JSON fields are returned as parsed values.
func (m *Mapper[E]) Query(ctx context.Context, filter Filter, caseSensitive bool) ([]Document, error) {
	docs, err := m.query(ctx, filter, caseSensitive)
	if err != nil {
		return nil, err
	}
	jsonFields := m.prototype().JSONFields()
	for _, doc := range docs {
		expandJSONFields(doc, jsonFields)
	}
	return docs, nil
}

// QueryEntities is Query with decoded results.
func (m *Mapper[E]) QueryEntities(ctx context.Context, filter Filter, caseSensitive bool) ([]E, error) {
	docs, err := m.query(ctx, filter, caseSensitive)
	if err != nil {
		return nil, err
	}
	return m.decodeAll(docs)
}

func (m *Mapper[E]) query(ctx context.Context, filter Filter, caseSensitive bool) ([]Document, error) {
	q, err := compileFilter(filter, m.prototype().JSONFields(), caseSensitive)
	if err != nil {
		return nil, err
	}
	if q.empty() {
		return []Document{}, nil
	}

	seen := make(map[string]bool)
	results := []Document{}
	for _, clause := range q.clauses {
		docs, err := m.store.Find(ctx, m.kind, clause)
		if err != nil {
			return nil, fmt.Errorf("querying %s: %w", m.kind, err)
		}
		for _, doc := range docs {
			if len(q.json) > 0 && !q.matchJSON(doc, caseSensitive) {
				continue
			}
			if seen[doc.ID()] {
				continue
			}
			seen[doc.ID()] = true
			results = append(results, doc)
		}
	}
	m.logger.Debug("query", "kind", m.kind, "clauses", len(q.clauses), "results", len(results))
	return results, nil
}
