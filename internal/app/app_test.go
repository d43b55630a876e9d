package app

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"omnia/internal/catalog"
	"omnia/internal/config"
	"omnia/internal/testutil"
)

// testConfig returns a config rooted in a temp dir with a migrated SQLite
// catalog, a filesystem vault and no encryption.
func testConfig(t *testing.T) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.NewConfig("test-host", base)
	cfg.Encryption.Type = "none"

	a, err := New(context.Background(), cfg, "db migrate", Options{Console: &bytes.Buffer{}, SkipMigrationCheck: true})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := a.Migrate(); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := a.Close(context.Background()); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return cfg
}

// run opens an App for one command, calls fn and closes it, like a CLI invocation.
func run(t *testing.T, cfg *config.Config, command string, fn func(a *App)) {
	t.Helper()

	a, err := New(context.Background(), cfg, command, Options{Console: &bytes.Buffer{}})
	if err != nil {
		t.Fatalf("New(%q) error = %v", command, err)
	}
	fn(a)
	if err := a.Close(context.Background()); err != nil {
		t.Fatalf("Close(%q) error = %v", command, err)
	}
}

func TestNew_UnmigratedCatalog(t *testing.T) {
	cfg := config.NewConfig("h", t.TempDir())

	_, err := New(context.Background(), cfg, "ls", Options{Console: &bytes.Buffer{}})
	if err == nil || !strings.Contains(err.Error(), "schema out of date") {
		t.Fatalf("New() error = %v, want schema out of date", err)
	}
}

func TestNew_BadConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{name: "unknown algorithm", mutate: func(c *config.Config) { c.Identity.Algorithm = "crc32" }},
		{name: "unknown log level", mutate: func(c *config.Config) { c.LogLevel = "chatty" }},
		{name: "unknown store scheme", mutate: func(c *config.Config) { c.Store.URI = "redis://x" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.NewConfig("h", t.TempDir())
			tt.mutate(cfg)
			if _, err := New(context.Background(), cfg, "ls", Options{Console: &bytes.Buffer{}}); err == nil {
				t.Error("New() expected error")
			}
		})
	}
}

func TestNew_StoreOverride(t *testing.T) {
	cfg := config.NewConfig("h", t.TempDir())

	a, err := New(context.Background(), cfg, "ls", Options{StoreURI: "memory://", Console: &bytes.Buffer{}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Close(context.Background())

	if got := a.Info().Store; got != "memory://" {
		t.Errorf("Info().Store = %q, want memory://", got)
	}
}

func TestApp_CollectionLifecycle(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	data := t.TempDir()
	testutil.WriteFile(t, data, "a.vcf", "A")
	testutil.WriteFile(t, data, "b.vcf", "B")

	run(t, cfg, "co add", func(a *App) {
		if _, err := a.CreateCollection(ctx, "GWAS", catalog.WithDescription("height")); err != nil {
			t.Fatalf("CreateCollection() error = %v", err)
		}
	})

	run(t, cfg, "reg", func(a *App) {
		results, err := a.Register(ctx, "GWAS", []string{filepath.Join(data, "*.vcf"), filepath.Join(data, "none-*.txt")},
			catalog.RegisterOptions{ComputeMetadata: true})
		if err != nil {
			t.Fatalf("Register() error = %v", err)
		}
		counts := catalog.Summarize(results)
		if counts[catalog.OutcomeInserted] != 2 || counts[catalog.OutcomeFailed] != 1 {
			t.Errorf("Register() outcomes = %v, want 2 inserted and 1 failed", counts)
		}
	})

	run(t, cfg, "co mv", func(a *App) {
		if err := a.RenameCollection(ctx, "GWAS", "GWAS-2024"); err != nil {
			t.Fatalf("RenameCollection() error = %v", err)
		}
	})

	run(t, cfg, "ls", func(a *App) {
		list, err := a.ListCollections(ctx)
		if err != nil {
			t.Fatalf("ListCollections() error = %v", err)
		}
		if len(list) != 1 || list[0].Collection.Name() != "GWAS-2024" || list[0].Files != 2 {
			t.Fatalf("ListCollections() = %+v", list)
		}

		details, err := a.DescribeFile(ctx, filepath.Join(data, "a.vcf"))
		if err != nil {
			t.Fatalf("DescribeFile() error = %v", err)
		}
		if len(details) != 1 || len(details[0].Collections) != 1 {
			t.Fatalf("DescribeFile() = %+v", details)
		}

		docs, err := a.Query(ctx, catalog.KindCollection, catalog.Filter{"description": "HEIGHT"}, false)
		if err != nil {
			t.Fatalf("Query() error = %v", err)
		}
		if len(docs) != 1 {
			t.Errorf("Query() returned %d documents, want 1", len(docs))
		}
	})

	out := filepath.Join(t.TempDir(), "paths.txt")
	run(t, cfg, "dataset get", func(a *App) {
		written, n, err := a.ExportDataset(ctx, "GWAS-2024", out)
		if err != nil {
			t.Fatalf("ExportDataset() error = %v", err)
		}
		if written != out || n != 2 {
			t.Errorf("ExportDataset() = %q, %d", written, n)
		}
		if _, _, err := a.ExportDataset(ctx, "nope", filepath.Join(t.TempDir(), "x.txt")); !errors.Is(err, catalog.ErrNotFound) {
			t.Errorf("ExportDataset(missing) error = %v, want ErrNotFound", err)
		}
	})
	got, _ := os.ReadFile(out)
	want := filepath.Join(data, "a.vcf") + "\n" + filepath.Join(data, "b.vcf") + "\n"
	if string(got) != want {
		t.Errorf("exported paths = %q, want %q", got, want)
	}

	run(t, cfg, "co del", func(a *App) {
		if err := a.DeleteCollection(ctx, "missing"); !errors.Is(err, catalog.ErrNotFound) {
			t.Errorf("DeleteCollection(missing) error = %v, want ErrNotFound", err)
		}
	})

	run(t, cfg, "history", func(a *App) {
		ops, err := a.History(ctx, 0)
		if err != nil {
			t.Fatalf("History() error = %v", err)
		}
		status := map[string]string{}
		for _, op := range ops {
			status[op.Command] = op.Status
		}
		wantStatus := map[string]string{
			"co add": catalog.StatusSuccess,
			"reg":    catalog.StatusError,
			"co mv":  catalog.StatusSuccess,
			"co del": catalog.StatusError,
		}
		for cmd, s := range wantStatus {
			if status[cmd] != s {
				t.Errorf("history status of %q = %q, want %q", cmd, status[cmd], s)
			}
		}
		if _, ok := status["ls"]; ok {
			t.Error("read-only command recorded in history")
		}
	})
}

func TestApp_Snapshot(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	run(t, cfg, "co add", func(a *App) {
		if _, err := a.CreateCollection(ctx, "GWAS"); err != nil {
			t.Fatalf("CreateCollection() error = %v", err)
		}
	})

	run(t, cfg, "snapshot push", func(a *App) {
		version, err := a.SnapshotPush(ctx)
		if err != nil {
			t.Fatalf("SnapshotPush() error = %v", err)
		}
		if version != 1 {
			t.Errorf("SnapshotPush() version = %d, want 1", version)
		}
	})

	dest := filepath.Join(t.TempDir(), "restored.db")
	run(t, cfg, "snapshot pull", func(a *App) {
		asked := false
		info, err := a.SnapshotPull(ctx, dest, func() (string, error) {
			asked = true
			return "", nil
		})
		if err != nil {
			t.Fatalf("SnapshotPull() error = %v", err)
		}
		if info.Encrypted || asked {
			t.Errorf("plain snapshot: info = %+v, passphrase asked = %v", info, asked)
		}
	})

	restored := *cfg
	restored.Store.URI = "sqlite://" + dest
	run(t, &restored, "ls", func(a *App) {
		list, err := a.ListCollections(ctx)
		if err != nil {
			t.Fatalf("ListCollections() error = %v", err)
		}
		if len(list) != 1 || list[0].Collection.Name() != "GWAS" {
			t.Errorf("restored collections = %+v", list)
		}
	})
}

func TestApp_SnapshotNoVault(t *testing.T) {
	cfg := testConfig(t)
	cfg.Vault.Type = ""

	run(t, cfg, "snapshot push", func(a *App) {
		if _, err := a.SnapshotPush(context.Background()); err == nil {
			t.Error("SnapshotPush() without vault expected error")
		}
	})
}

func TestSetupKeys(t *testing.T) {
	cfg := config.NewConfig("h", t.TempDir())

	if err := SetupKeys(cfg, "correct horse"); err != nil {
		t.Fatalf("SetupKeys() error = %v", err)
	}
	if _, err := os.Stat(cfg.Encryption.PrivateKeyPath); err != nil {
		t.Errorf("private key not written: %v", err)
	}
	if err := SetupKeys(cfg, "correct horse"); err == nil {
		t.Error("second SetupKeys() expected error")
	}

	cfg.Encryption.Type = "none"
	if err := SetupKeys(cfg, "x"); err == nil {
		t.Error("SetupKeys() with encryption disabled expected error")
	}
}

func TestDatasetFileName(t *testing.T) {
	tests := map[string]string{
		"GWAS":      "dataset_paths_from_GWAS.txt",
		"my set":    "dataset_paths_from_my_set.txt",
		"team/gwas": "dataset_paths_from_team_gwas.txt",
	}
	for in, want := range tests {
		if got := DatasetFileName(in); got != want {
			t.Errorf("DatasetFileName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRedactURI(t *testing.T) {
	tests := map[string]string{
		"mongodb://user:pw@db:27017/omnia": "mongodb://***@db:27017/omnia",
		"sqlite:///tmp/c.db":               "sqlite:///tmp/c.db",
		"/tmp/c.db":                        "/tmp/c.db",
	}
	for in, want := range tests {
		if got := redactURI(in); got != want {
			t.Errorf("redactURI(%q) = %q, want %q", in, got, want)
		}
	}
}
