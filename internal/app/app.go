package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"omnia/internal/catalog"
	"omnia/internal/config"
	"omnia/internal/encryption"
	"omnia/internal/fs"
	"omnia/internal/hashing"
	"omnia/internal/metadata"
	"omnia/internal/snapshot"
	"omnia/internal/store"
	"omnia/internal/vault"
)

// Version is reported by `omnia info` and the API.
var Version = "0.4.0"

// Options adjust how an App is built from config.
type Options struct {
	// StoreURI overrides store.uri from the config file.
	StoreURI string
	// Verbose forces debug logging.
	Verbose bool
	// Console receives log output besides the log file. Defaults to stderr.
	Console io.Writer
	// SkipMigrationCheck opens a store whose schema is behind, for `omnia db migrate`.
	SkipMigrationCheck bool
}

// App sits between the CLI and the catalog service. It builds every
// dependency from config, takes raw strings from the command line, and
// records mutating commands in the operation history.
type App struct {
	cfg      *config.Config
	store    catalog.DocumentStore
	storeURI string
	service  *catalog.Service
	logger   *slog.Logger
	logFile  *os.File

	command string
	params  string
	op      *catalog.Operation
	opErr   error
}

// New creates a fully wired App. command names the CLI command being run
// (e.g. "co add"). The caller must call Close when done.
func New(ctx context.Context, cfg *config.Config, command string, opts Options) (*App, error) {
	hasher, err := hashing.New(hashing.Config{
		Algorithm: cfg.Identity.Algorithm,
		Length:    cfg.Identity.Length,
		ChunkSize: cfg.Identity.ChunkSize,
	})
	if err != nil {
		return nil, fmt.Errorf("configuring identity hasher: %w", err)
	}

	level, err := ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	if opts.Verbose {
		level = slog.LevelDebug
	}
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	opID := time.Now().UTC().Format("20060102T150405Z")
	logger, logFile, err := newLogger(cfg.LogDir, opID, level, console)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	uri := cfg.Store.URI
	if opts.StoreURI != "" {
		uri = opts.StoreURI
	}
	st, err := store.NewStoreFromURI(ctx, uri)
	if err != nil {
		closeFile(logFile)
		return nil, fmt.Errorf("opening store: %w", err)
	}

	if m, ok := st.(store.Migratable); ok && !opts.SkipMigrationCheck {
		if err := m.CheckMigrations(); err != nil {
			st.Close()
			closeFile(logFile)
			return nil, fmt.Errorf("catalog schema out of date: %w", err)
		}
	}

	matcher := fs.NewOSFileMatcher(cfg.Filesystem.Ignore)
	svc := catalog.NewService(st, hasher, metadata.NewComputer(hasher), matcher,
		&slogAdapter{l: logger}, catalog.RealClock{}, catalog.UUIDGenerator{}, "")

	logger.Debug("app started", "command", command, "store", redactURI(uri))

	return &App{
		cfg:      cfg,
		store:    st,
		storeURI: uri,
		service:  svc,
		logger:   logger,
		logFile:  logFile,
		command:  command,
	}, nil
}

func closeFile(f *os.File) {
	if f != nil {
		f.Close()
	}
}

// redactURI drops credentials from a store URI before it is logged.
func redactURI(uri string) string {
	scheme, rest, ok := strings.Cut(uri, "://")
	if !ok {
		return uri
	}
	if at := strings.LastIndex(rest, "@"); at >= 0 {
		return scheme + "://***@" + rest[at+1:]
	}
	return uri
}

// Service exposes the catalog service, e.g. to the HTTP API.
func (a *App) Service() *catalog.Service { return a.service }

// Config returns the config the App was built from.
func (a *App) Config() *config.Config { return a.cfg }

// Logger returns the App's structured logger.
func (a *App) Logger() *slog.Logger { return a.logger }

// CreateCollection creates a named collection.
func (a *App) CreateCollection(ctx context.Context, name string, opts ...catalog.CollectionOption) (*catalog.Collection, error) {
	if err := a.persistOperation(ctx, name); err != nil {
		return nil, err
	}
	c, err := a.service.CreateCollection(ctx, name, opts...)
	return c, a.record(err)
}

// EditCollection changes a collection's attributes and reports whether anything changed.
func (a *App) EditCollection(ctx context.Context, name string, edit catalog.CollectionEdit) (bool, error) {
	if err := a.persistOperation(ctx, name); err != nil {
		return false, err
	}
	changed, err := a.service.EditCollection(ctx, name, edit)
	return changed, a.record(err)
}

// RenameCollection renames a collection.
func (a *App) RenameCollection(ctx context.Context, oldName, newName string) error {
	if err := a.persistOperation(ctx, oldName, newName); err != nil {
		return err
	}
	_, err := a.service.RenameCollection(ctx, oldName, newName)
	return a.record(err)
}

// DeleteCollection deletes a collection. Member files keep their references.
func (a *App) DeleteCollection(ctx context.Context, name string) error {
	if err := a.persistOperation(ctx, name); err != nil {
		return err
	}
	return a.record(a.service.DeleteCollection(ctx, name))
}

// Register expands each pattern and registers the matches into collection.
// A pattern without matches is reported as a failed result so the rest of
// the batch still runs.
func (a *App) Register(ctx context.Context, collection string, patterns []string, opts catalog.RegisterOptions) ([]catalog.RegisterResult, error) {
	if err := a.persistOperation(ctx, append([]string{collection}, patterns...)...); err != nil {
		return nil, err
	}

	var all []catalog.RegisterResult
	for _, pattern := range patterns {
		results, err := a.service.RegisterPattern(ctx, pattern, collection, opts)
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				a.logger.Warn("pattern matched nothing", "pattern", pattern)
			}
			all = append(all, catalog.RegisterResult{Path: pattern, Outcome: catalog.OutcomeFailed, Err: err})
			continue
		}
		all = append(all, results...)
	}

	counts := catalog.Summarize(all)
	if counts[catalog.OutcomeFailed] > 0 {
		a.record(fmt.Errorf("%d of %d registrations failed", counts[catalog.OutcomeFailed], len(all)))
	}
	return all, nil
}

// CollectionSummary is a collection with its member count.
type CollectionSummary struct {
	Collection *catalog.Collection
	Files      int
}

// ListCollections returns every collection with its file count, sorted by name.
func (a *App) ListCollections(ctx context.Context) ([]CollectionSummary, error) {
	all, err := a.service.ListCollections(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]CollectionSummary, 0, len(all))
	for _, c := range all {
		n, err := a.service.CountCollectionFiles(ctx, c)
		if err != nil {
			return nil, err
		}
		out = append(out, CollectionSummary{Collection: c, Files: n})
	}
	return out, nil
}

// CollectionDetail returns a collection and its files.
func (a *App) CollectionDetail(ctx context.Context, name string) (*catalog.Collection, []*catalog.FileObject, error) {
	return a.service.CollectionFiles(ctx, name)
}

// DescribeFile returns the records registered at a raw path.
func (a *App) DescribeFile(ctx context.Context, rawPath string) ([]catalog.FileDetail, error) {
	return a.service.DescribeFile(ctx, rawPath)
}

// DatasetFileName is where `omnia dataset get` writes paths by default.
func DatasetFileName(collection string) string {
	safe := strings.Map(func(r rune) rune {
		if r == '/' || r == os.PathSeparator || r == ' ' {
			return '_'
		}
		return r
	}, collection)
	return "dataset_paths_from_" + safe + ".txt"
}

// ExportDataset writes the paths of a collection's files to out, or to
// DatasetFileName in the working directory when out is empty. It returns the
// file written and the number of paths.
func (a *App) ExportDataset(ctx context.Context, collection, out string) (string, int, error) {
	if out == "" {
		out = DatasetFileName(collection)
	}
	if _, _, err := a.service.CollectionFiles(ctx, collection); err != nil {
		return "", 0, err
	}

	f, err := os.Create(out)
	if err != nil {
		return "", 0, fmt.Errorf("creating %s: %w", out, err)
	}
	n, err := a.service.ExportPaths(ctx, collection, f)
	if err != nil {
		f.Close()
		os.Remove(out)
		return "", 0, err
	}
	if err := f.Close(); err != nil {
		return "", 0, fmt.Errorf("closing %s: %w", out, err)
	}
	abs, _ := filepath.Abs(out)
	return abs, n, nil
}

// Query runs a filter against one document kind.
func (a *App) Query(ctx context.Context, kind string, filter catalog.Filter, caseSensitive bool) ([]catalog.Document, error) {
	return a.service.Query(ctx, kind, filter, caseSensitive)
}

// History returns the most recent operations, newest first.
func (a *App) History(ctx context.Context, limit int) ([]*catalog.Operation, error) {
	return a.service.History(ctx, limit)
}

// Migrate applies pending schema migrations to the store.
func (a *App) Migrate() error {
	m, ok := a.store.(store.Migratable)
	if !ok {
		a.logger.Info("store has no schema to migrate", "store", redactURI(a.storeURI))
		return nil
	}
	if err := m.Migrate(); err != nil {
		return fmt.Errorf("migrating catalog: %w", err)
	}
	a.logger.Info("catalog migrated", "store", redactURI(a.storeURI))
	return nil
}

// Info describes the running installation.
type Info struct {
	Version    string
	HostID     string
	Store      string
	BaseDir    string
	LogFile    string
	Vault      string
	Encryption string
	Recipient  string
	Kinds      []string
}

// Info reports version and paths.
func (a *App) Info() Info {
	info := Info{
		Version:    Version,
		HostID:     a.cfg.HostID,
		Store:      redactURI(a.storeURI),
		BaseDir:    a.cfg.BaseDir,
		Vault:      a.cfg.Vault.Type,
		Encryption: a.cfg.Encryption.Type,
		Kinds:      catalog.Kinds(),
	}
	if a.cfg.LogDir != "" {
		info.LogFile = filepath.Join(a.cfg.LogDir, LogFileName)
	}
	if info.Vault == "" {
		info.Vault = "none"
	}
	if info.Encryption == "" {
		info.Encryption = "age"
	}
	info.Recipient = recipient(a.cfg.Encryption)
	return info
}

// recipient returns the public key snapshots are encrypted to, or "" when
// encryption is off or keys are not set up yet.
func recipient(cfg config.EncryptionConfig) string {
	enc, err := encryption.NewEncryptorFromConfig(cfg)
	if err != nil || enc == nil || !enc.IsConfigured() {
		return ""
	}
	keyed, ok := enc.(interface{ Recipient() (string, error) })
	if !ok {
		return ""
	}
	r, err := keyed.Recipient()
	if err != nil {
		return ""
	}
	return r
}

// snapshots builds the snapshot service from the vault and encryption config.
func (a *App) snapshots(ctx context.Context) (*snapshot.Service, snapshot.Encryptor, error) {
	v, err := vault.NewVaultFromConfig(ctx, a.cfg.Vault)
	if err != nil {
		return nil, nil, fmt.Errorf("creating vault: %w", err)
	}
	if v == nil {
		return nil, nil, fmt.Errorf("no vault configured")
	}
	if err := v.ValidateSetup(ctx); err != nil {
		return nil, nil, fmt.Errorf("vault not usable: %w", err)
	}

	enc, err := encryption.NewEncryptorFromConfig(a.cfg.Encryption)
	if err != nil {
		return nil, nil, fmt.Errorf("creating encryptor: %w", err)
	}
	if enc != nil && !enc.IsConfigured() {
		return nil, nil, fmt.Errorf("encryption keys not set up (run `omnia config keys`)")
	}
	return snapshot.NewService(v, enc, a.cfg.HostID, &slogAdapter{l: a.logger}), enc, nil
}

// SnapshotPush copies the catalog to the vault and returns the new version.
// The push is recorded in the history before the copy is taken, so the
// snapshot carries its own operation.
func (a *App) SnapshotPush(ctx context.Context) (int64, error) {
	src, ok := a.store.(snapshot.Source)
	if !ok {
		return 0, fmt.Errorf("store %s does not support snapshots", redactURI(a.storeURI))
	}
	svc, _, err := a.snapshots(ctx)
	if err != nil {
		return 0, err
	}
	if err := a.persistOperation(ctx); err != nil {
		return 0, err
	}
	version, err := svc.Push(ctx, src)
	return version, a.record(err)
}

// SnapshotPull writes the newest snapshot to dest. passphrase is asked for
// only when the snapshot is encrypted.
func (a *App) SnapshotPull(ctx context.Context, dest string, passphrase func() (string, error)) (snapshot.Info, error) {
	svc, enc, err := a.snapshots(ctx)
	if err != nil {
		return snapshot.Info{}, err
	}

	latest, err := svc.Latest(ctx)
	if err != nil {
		return snapshot.Info{}, err
	}

	var dec snapshot.DecryptionContext
	if latest.Encrypted {
		if enc == nil {
			return snapshot.Info{}, fmt.Errorf("snapshot is encrypted but encryption is disabled in config")
		}
		pass, err := passphrase()
		if err != nil {
			return snapshot.Info{}, err
		}
		dec, err = enc.Unlock(pass)
		if err != nil {
			return snapshot.Info{}, fmt.Errorf("unlocking private key: %w", err)
		}
	}
	return svc.Pull(ctx, dest, dec)
}

// Close finishes the recorded operation, if any, and releases the store and log file.
func (a *App) Close(ctx context.Context) error {
	var firstErr error

	if a.op != nil {
		if err := a.service.FinishOperation(ctx, a.op, a.opErr); err != nil {
			firstErr = fmt.Errorf("finishing operation: %w", err)
		}
	}

	if err := a.store.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing store: %w", err)
	}

	closeFile(a.logFile)
	return firstErr
}

// SetupKeys creates the snapshot encryption keys named in cfg, protecting the
// private key with passphrase. It needs no catalog, so it is not an App method.
func SetupKeys(cfg *config.Config, passphrase string) error {
	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return fmt.Errorf("creating encryptor: %w", err)
	}
	if enc == nil {
		return fmt.Errorf("encryption is disabled in config")
	}
	if enc.IsConfigured() {
		return fmt.Errorf("encryption keys already exist")
	}
	if err := enc.Setup(passphrase); err != nil {
		return fmt.Errorf("setting up keys: %w", err)
	}
	return nil
}
