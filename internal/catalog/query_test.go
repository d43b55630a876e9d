package catalog_test

import (
	"context"
	"errors"
	"slices"
	"sort"
	"strings"
	"testing"

	"pgregory.net/rapid"

	"omnia/internal/catalog"
	"omnia/internal/jsonval"
	"omnia/internal/testutil"
)

func names(docs []catalog.Document) []string {
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		name, _ := d["name"].(string)
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func seedCollections(t *testing.T, svc *testutil.TestService) {
	t.Helper()
	ctx := context.Background()

	seed := []struct {
		name  string
		desc  string
		tags  []string
		notes string
	}{
		{name: "Height", desc: "GWAS", tags: []string{"gwas", "anthropometric"}, notes: `{"study": {"trait": "Body Height", "n": 5000}}`},
		{name: "BMI", desc: "GWAS", tags: []string{"gwas"}, notes: `{"study": {"trait": "Body mass index"}}`},
		{name: "Expression", desc: "eQTL", tags: []string{"eqtl"}, notes: `{"samples": [{"tissue": "Liver"}]}`},
	}
	for _, s := range seed {
		notes, err := jsonval.Parse([]byte(s.notes))
		if err != nil {
			t.Fatalf("Parse() error = %v", err)
		}
		_, err = svc.CreateCollection(ctx, s.name,
			catalog.WithDescription(s.desc), catalog.WithTags(s.tags...), catalog.WithNotes(notes))
		if err != nil {
			t.Fatalf("CreateCollection(%s) error = %v", s.name, err)
		}
	}
}

func TestMapper_Query(t *testing.T) {
	ctx := context.Background()
	svc := testutil.NewTestService(t)
	seedCollections(t, svc)

	tests := []struct {
		name          string
		filter        catalog.Filter
		caseSensitive bool
		want          []string
	}{
		{name: "empty filter returns nothing", filter: catalog.Filter{}, want: []string{}},
		{name: "nil filter returns nothing", filter: nil, want: []string{}},
		{name: "scalar equality", filter: catalog.Filter{"description": "GWAS"}, want: []string{"BMI", "Height"}},
		{name: "case-insensitive by default", filter: catalog.Filter{"name": "height"}, want: []string{"Height"}},
		{name: "case-sensitive", filter: catalog.Filter{"name": "height"}, caseSensitive: true, want: []string{}},
		{name: "conjunction", filter: catalog.Filter{"description": "gwas", "name": "BMI"}, want: []string{"BMI"}},
		{name: "array field contains", filter: catalog.Filter{"tags": "anthropometric"}, want: []string{"Height"}},
		{name: "list is a union", filter: catalog.Filter{"name": []any{"BMI", "Expression"}}, want: []string{"BMI", "Expression"}},
		{name: "union deduplicates", filter: catalog.Filter{"tags": []string{"gwas", "anthropometric"}}, want: []string{"BMI", "Height"}},
		{name: "empty list matches nothing", filter: catalog.Filter{"name": []any{}}, want: []string{}},
		{name: "empty list and scalar", filter: catalog.Filter{"description": "GWAS", "tags": []any{}}, want: []string{}},
		{name: "empty string list and scalar", filter: catalog.Filter{"description": "GWAS", "name": []string{}}, want: []string{}},
		{name: "list and scalar", filter: catalog.Filter{"tags": []any{"gwas", "eqtl"}, "description": "eQTL"}, want: []string{"Expression"}},
		{name: "json nested substring", filter: catalog.Filter{"notes": map[string]any{"trait": "body"}}, want: []string{"BMI", "Height"}},
		{name: "json case-sensitive", filter: catalog.Filter{"notes": map[string]string{"trait": "body"}}, caseSensitive: true, want: []string{}},
		{name: "json inside array", filter: catalog.Filter{"notes": map[string]any{"tissue": "liv"}}, want: []string{"Expression"}},
		{name: "json number as text", filter: catalog.Filter{"notes": map[string]any{"n": "500"}}, want: []string{"Height"}},
		{name: "json absent key", filter: catalog.Filter{"notes": map[string]any{"doi": "10."}}, want: []string{}},
		{name: "json and scalar", filter: catalog.Filter{"notes": map[string]any{"trait": "body"}, "name": "bmi"}, want: []string{"BMI"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs, err := svc.Collections().Query(ctx, tt.filter, tt.caseSensitive)
			if err != nil {
				t.Fatalf("Query() error = %v", err)
			}
			if got := names(docs); !slices.Equal(got, tt.want) {
				t.Errorf("Query() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMapper_QueryValidation(t *testing.T) {
	ctx := context.Background()
	svc := testutil.NewTestService(t)

	tests := []struct {
		name   string
		filter catalog.Filter
	}{
		{name: "invalid field name", filter: catalog.Filter{"name; DROP": "x"}},
		{name: "object on plain field", filter: catalog.Filter{"name": map[string]any{"a": "b"}}},
		{name: "scalar on json field", filter: catalog.Filter{"notes": "text"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Collections().Query(ctx, tt.filter, false)
			if !errors.Is(err, catalog.ErrValidation) {
				t.Errorf("Query() error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestService_QueryKinds(t *testing.T) {
	ctx := context.Background()
	svc := testutil.NewTestService(t)
	seedCollections(t, svc)

	docs, err := svc.Query(ctx, catalog.KindCollection, catalog.Filter{"name": "BMI"}, false)
	if err != nil || len(docs) != 1 {
		t.Errorf("Query(collections) = %d docs, %v; want 1", len(docs), err)
	}
	if _, err := svc.Query(ctx, "widgets", catalog.Filter{"name": "x"}, false); !errors.Is(err, catalog.ErrValidation) {
		t.Errorf("Query(widgets) error = %v, want ErrValidation", err)
	}
}

// Every result satisfies the scalar predicate, and an unscoped query never
// returns anything.
func TestMapper_QueryProperties(t *testing.T) {
	ctx := context.Background()
	svc := testutil.NewTestService(t)
	seedCollections(t, svc)

	rapid.Check(t, func(rt *rapid.T) {
		desc := rapid.SampledFrom([]string{"GWAS", "gwas", "eQTL", "none"}).Draw(rt, "description")
		caseSensitive := rapid.Bool().Draw(rt, "caseSensitive")

		docs, err := svc.Collections().Query(ctx, catalog.Filter{"description": desc}, caseSensitive)
		if err != nil {
			rt.Fatalf("Query() error = %v", err)
		}
		for _, d := range docs {
			got, _ := d["description"].(string)
			if caseSensitive && got != desc {
				rt.Fatalf("result description %q != %q", got, desc)
			}
			if !caseSensitive && !strings.EqualFold(got, desc) {
				rt.Fatalf("result description %q does not fold to %q", got, desc)
			}
		}

		empty, err := svc.Collections().Query(ctx, catalog.Filter{}, caseSensitive)
		if err != nil || len(empty) != 0 {
			rt.Fatalf("Query({}) = %d docs, %v; want none", len(empty), err)
		}
	})
}
