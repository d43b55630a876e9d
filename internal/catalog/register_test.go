package catalog_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"omnia/internal/catalog"
	"omnia/internal/testutil"
)

func registerOne(t *testing.T, svc *testutil.TestService, path, collection string, opts catalog.RegisterOptions) catalog.RegisterResult {
	t.Helper()

	results, err := svc.Register(context.Background(), []string{path}, collection, opts)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Register() returned %d results, want 1", len(results))
	}
	return results[0]
}

func storedFile(t *testing.T, svc *testutil.TestService, path string) *catalog.FileObject {
	t.Helper()

	f, err := catalog.NewFileObject(svc.Hasher(), path)
	if err != nil {
		t.Fatalf("NewFileObject() error = %v", err)
	}
	got, err := svc.FileObjects().Map(context.Background(), f)
	if err != nil || got == nil {
		t.Fatalf("Map() = %v, %v; want stored file", got, err)
	}
	return got
}

func TestRegister_Scenario(t *testing.T) {
	ctx := context.Background()
	svc := testutil.NewTestService(t)
	path := testutil.WriteFile(t, t.TempDir(), "a/f.bin", "X")
	full := catalog.RegisterOptions{ComputeMetadata: true}

	r := registerOne(t, svc, path, "c1", full)
	if r.Outcome != catalog.OutcomeFailed || !errors.Is(r.Err, catalog.ErrNotFound) {
		t.Fatalf("register into missing collection = %s, %v; want failed, ErrNotFound", r.Outcome, r.Err)
	}
	if n, _ := svc.Store.Count(ctx, catalog.KindFileObject, nil); n != 0 {
		t.Fatalf("missing collection wrote %d file objects", n)
	}

	c1, err := svc.CreateCollection(ctx, "c1")
	if err != nil {
		t.Fatalf("CreateCollection(c1) error = %v", err)
	}

	r = registerOne(t, svc, path, "c1", full)
	if r.Outcome != catalog.OutcomeInserted || r.Err != nil {
		t.Fatalf("first register = %s, %v; want inserted", r.Outcome, r.Err)
	}
	f := storedFile(t, svc, path)
	if !slices.Equal(f.Collections(), []string{c1.PK()}) {
		t.Errorf("membership = %v, want [c1]", f.Collections())
	}
	if f.Checksum == nil || f.Size == nil || *f.Size != 1 || f.MimeType == nil {
		t.Fatalf("metadata not computed: %+v", f)
	}
	if *f.Checksum != testutil.SHA256Hex([]byte("X")) {
		t.Errorf("Checksum = %q, want full sha256 of content", *f.Checksum)
	}
	firstChecksum := *f.Checksum

	r = registerOne(t, svc, path, "c1", full)
	if r.Outcome != catalog.OutcomeSkipped {
		t.Fatalf("second register = %s, %v; want skipped", r.Outcome, r.Err)
	}
	if f2 := storedFile(t, svc, path); f2.ModifiedAt() != nil {
		t.Error("skipped registration mutated the stored record")
	}

	r = registerOne(t, svc, path, "c1", catalog.RegisterOptions{ComputeMetadata: true, Force: true})
	if r.Outcome != catalog.OutcomeOverwritten {
		t.Fatalf("forced register = %s, %v; want overwritten", r.Outcome, r.Err)
	}
	f = storedFile(t, svc, path)
	if f.ModifiedAt() == nil || *f.Checksum != firstChecksum {
		t.Errorf("forced register: modified=%v checksum=%q, want recomputed %q", f.ModifiedAt(), *f.Checksum, firstChecksum)
	}

	c2, _ := svc.CreateCollection(ctx, "c2")
	r = registerOne(t, svc, path, "c2", full)
	if r.Outcome != catalog.OutcomeLinked {
		t.Fatalf("register into c2 = %s, %v; want linked", r.Outcome, r.Err)
	}
	f = storedFile(t, svc, path)
	want := []string{c1.PK(), c2.PK()}
	if got := f.Collections(); !slices.Equal(got, want) {
		t.Errorf("membership = %v, want %v", got, want)
	}
	if n, _ := svc.Store.Count(ctx, catalog.KindFileObject, nil); n != 1 {
		t.Errorf("store holds %d file objects, want 1", n)
	}
}

func TestRegister_ForceRecomputesMetadata(t *testing.T) {
	ctx := context.Background()
	base := testutil.NewTestService(t)
	meta := &testutil.StubMetadataComputer{Result: catalog.Metadata{Checksum: "one", Size: 1, MimeType: "text/plain"}}
	svc := catalog.NewService(base.Store, nil, meta, nil, nil, base.Clock, nil, "host")
	svc.CreateCollection(ctx, "c")

	path := testutil.WriteFile(t, t.TempDir(), "f.txt", "X")

	// Inserted without metadata, then forced: force always recomputes.
	results, _ := svc.Register(ctx, []string{path}, "c", catalog.RegisterOptions{})
	if results[0].Outcome != catalog.OutcomeInserted || len(meta.Calls) != 0 {
		t.Fatalf("insert = %s with %d metadata calls", results[0].Outcome, len(meta.Calls))
	}

	meta.Result.Checksum = "two"
	results, _ = svc.Register(ctx, []string{path}, "c", catalog.RegisterOptions{Force: true})
	if results[0].Outcome != catalog.OutcomeOverwritten || len(meta.Calls) != 1 {
		t.Fatalf("force = %s with %d metadata calls", results[0].Outcome, len(meta.Calls))
	}

	f, _ := catalog.NewFileObject(svc.Hasher(), path)
	svc.FileObjects().Map(ctx, f)
	if f.Checksum == nil || *f.Checksum != "two" {
		t.Errorf("Checksum = %v, want two", f.Checksum)
	}
}

func TestRegister_LinkDoesNotComputeMetadata(t *testing.T) {
	ctx := context.Background()
	base := testutil.NewTestService(t)
	meta := &testutil.StubMetadataComputer{}
	svc := catalog.NewService(base.Store, nil, meta, nil, nil, base.Clock, nil, "host")
	svc.CreateCollection(ctx, "a")
	svc.CreateCollection(ctx, "b")
	path := testutil.WriteFile(t, t.TempDir(), "f.txt", "X")

	svc.Register(ctx, []string{path}, "a", catalog.RegisterOptions{ComputeMetadata: true})
	results, _ := svc.Register(ctx, []string{path}, "b", catalog.RegisterOptions{ComputeMetadata: true, Force: true})

	if results[0].Outcome != catalog.OutcomeLinked {
		t.Fatalf("outcome = %s, want linked", results[0].Outcome)
	}
	if len(meta.Calls) != 1 {
		t.Errorf("metadata computed %d times, want 1 (insert only)", len(meta.Calls))
	}
}

func TestRegister_MembershipIdempotence(t *testing.T) {
	ctx := context.Background()
	svc := testutil.NewTestService(t)
	c, _ := svc.CreateCollection(ctx, "c")
	path := testutil.WriteFile(t, t.TempDir(), "f.txt", "X")

	for i := 0; i < 5; i++ {
		registerOne(t, svc, path, "c", catalog.RegisterOptions{})
	}
	if got := storedFile(t, svc, path).Collections(); !slices.Equal(got, []string{c.PK()}) {
		t.Errorf("membership = %v, want one reference", got)
	}
}

func TestRegister_BatchContinuesPastFailures(t *testing.T) {
	ctx := context.Background()
	svc := testutil.NewTestService(t)
	svc.CreateCollection(ctx, "c")

	dir := t.TempDir()
	good1 := testutil.WriteFile(t, dir, "one.txt", "1")
	good2 := testutil.WriteFile(t, dir, "two.txt", "2")
	missing := filepath.Join(dir, "absent.txt")

	results, err := svc.Register(ctx, []string{good1, missing, "", good2}, "c", catalog.RegisterOptions{ComputeMetadata: true})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	want := []catalog.Outcome{catalog.OutcomeInserted, catalog.OutcomeFailed, catalog.OutcomeFailed, catalog.OutcomeInserted}
	for i, r := range results {
		if r.Outcome != want[i] {
			t.Errorf("results[%d] = %s (%v), want %s", i, r.Outcome, r.Err, want[i])
		}
	}
	if !errors.Is(results[1].Err, catalog.ErrIO) {
		t.Errorf("missing file error = %v, want ErrIO", results[1].Err)
	}
	if !errors.Is(results[2].Err, catalog.ErrValidation) {
		t.Errorf("empty path error = %v, want ErrValidation", results[2].Err)
	}

	counts := catalog.Summarize(results)
	if counts[catalog.OutcomeInserted] != 2 || counts[catalog.OutcomeFailed] != 2 {
		t.Errorf("Summarize() = %v", counts)
	}
}

func TestRegister_UnreadableFile(t *testing.T) {
	ctx := context.Background()
	svc := testutil.NewTestService(t)
	svc.CreateCollection(ctx, "c")

	path := testutil.Unreadable(t, t.TempDir(), "locked.txt")

	r := registerOne(t, svc, path, "c", catalog.RegisterOptions{})
	if r.Outcome != catalog.OutcomeFailed || !errors.Is(r.Err, catalog.ErrIO) {
		t.Errorf("Register() = %s (%v), want failed with ErrIO", r.Outcome, r.Err)
	}
}

func TestRegister_MetadataFailureIsPerFile(t *testing.T) {
	ctx := context.Background()
	base := testutil.NewTestService(t)
	meta := &testutil.StubMetadataComputer{Err: errors.New("boom")}
	svc := catalog.NewService(base.Store, nil, meta, nil, nil, base.Clock, nil, "host")
	svc.CreateCollection(ctx, "c")
	path := testutil.WriteFile(t, t.TempDir(), "f.txt", "X")

	results, _ := svc.Register(ctx, []string{path}, "c", catalog.RegisterOptions{ComputeMetadata: true})
	if results[0].Outcome != catalog.OutcomeFailed {
		t.Errorf("outcome = %s, want failed", results[0].Outcome)
	}
	if n, _ := base.Store.Count(ctx, catalog.KindFileObject, nil); n != 0 {
		t.Errorf("failed metadata still saved %d records", n)
	}
}

func TestRegister_SameContentDifferentDirectories(t *testing.T) {
	ctx := context.Background()
	svc := testutil.NewTestService(t)
	svc.CreateCollection(ctx, "c")

	first := testutil.WriteFile(t, t.TempDir(), "f.bin", "X")
	second := testutil.WriteFile(t, t.TempDir(), "f.bin", "X")

	registerOne(t, svc, first, "c", catalog.RegisterOptions{})
	r := registerOne(t, svc, second, "c", catalog.RegisterOptions{})
	if r.Outcome != catalog.OutcomeSkipped {
		t.Errorf("identical name and content = %s, want skipped", r.Outcome)
	}
}

func TestRegisterPattern(t *testing.T) {
	ctx := context.Background()
	svc := testutil.NewTestService(t)
	svc.CreateCollection(ctx, "vcf")

	dir := t.TempDir()
	testutil.WriteFile(t, dir, "a.vcf", "a")
	testutil.WriteFile(t, dir, "sub/b.vcf", "b")
	testutil.WriteFile(t, dir, "sub/c.txt", "c")

	results, err := svc.RegisterPattern(ctx, filepath.Join(dir, "**", "*.vcf"), "vcf", catalog.RegisterOptions{ComputeMetadata: true})
	if err != nil {
		t.Fatalf("RegisterPattern() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("RegisterPattern() = %d results, want 2", len(results))
	}
	for _, r := range results {
		if r.Outcome != catalog.OutcomeInserted {
			t.Errorf("%s = %s (%v)", r.Path, r.Outcome, r.Err)
		}
	}

	_, err = svc.RegisterPattern(ctx, filepath.Join(dir, "*.bam"), "vcf", catalog.RegisterOptions{})
	if !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("RegisterPattern() with no matches error = %v, want ErrNotFound", err)
	}
}

func TestRegister_ContentChangeIsNewIdentity(t *testing.T) {
	ctx := context.Background()
	svc := testutil.NewTestService(t)
	svc.CreateCollection(ctx, "c")
	path := testutil.WriteFile(t, t.TempDir(), "f.txt", "v1")

	registerOne(t, svc, path, "c", catalog.RegisterOptions{})
	if err := os.WriteFile(path, []byte("v2"), 0o644); err != nil {
		t.Fatal(err)
	}
	r := registerOne(t, svc, path, "c", catalog.RegisterOptions{})
	if r.Outcome != catalog.OutcomeInserted {
		t.Errorf("modified content = %s, want inserted", r.Outcome)
	}
}
