package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for omnia.
type Config struct {
	HostID     string           `toml:"host_id"`
	BaseDir    string           `toml:"base_dir"`
	LogDir     string           `toml:"log_dir"`
	LogLevel   string           `toml:"log_level"` // "debug", "info" (default), "warn" or "error"
	Store      StoreConfig      `toml:"store"`
	Identity   IdentityConfig   `toml:"identity"`
	Filesystem FilesystemConfig `toml:"filesystem"`
	API        APIConfig        `toml:"api"`
	Vault      VaultConfig      `toml:"vault"`
	Encryption EncryptionConfig `toml:"encryption"`
}

// StoreConfig locates the document store.
// Accepted URIs: memory://, sqlite:///path/catalog.db, a bare file path,
// mongodb://host/db and mongodb+srv://host/db.
type StoreConfig struct {
	URI string `toml:"uri"`
}

// IdentityConfig tunes the hasher that derives record identities.
// Zero values select the hashing defaults; a negative length keeps full digests.
type IdentityConfig struct {
	Algorithm string `toml:"algorithm"` // sha256 (default), sha1, sha512, md5 or blake3
	Length    int    `toml:"length"`
	ChunkSize int    `toml:"chunk_size"`
}

// FilesystemConfig holds filesystem-related settings.
type FilesystemConfig struct {
	Ignore []string `toml:"ignore"`
}

// APIConfig configures the read-only HTTP API.
type APIConfig struct {
	Listen string `toml:"listen"`
}

// VaultConfig represents configuration for the snapshot vault.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type VaultConfig struct {
	Type string `toml:"type"` // "memory", "s3", "filesystem" or empty for none
	Name string `toml:"name"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket   string `toml:"s3_bucket,omitempty"`
	S3Prefix   string `toml:"s3_prefix,omitempty"`
	S3Region   string `toml:"s3_region,omitempty"`
	S3Endpoint string `toml:"s3_endpoint,omitempty"`

	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSVaultRoot string `toml:"fs_vault_root,omitempty"`
}

// EncryptionConfig holds paths to the age key pair used for snapshot encryption.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "age" (default) or "none"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// DefaultListen is the API address used when none is configured.
const DefaultListen = "127.0.0.1:8080"

// NewConfig creates a new Config with the provided values and defaults
// derived from baseDir.
func NewConfig(hostID, baseDir string) *Config {
	return &Config{
		HostID:   hostID,
		BaseDir:  baseDir,
		LogDir:   filepath.Join(baseDir, "log"),
		LogLevel: "info",
		Store: StoreConfig{
			URI: "sqlite://" + filepath.Join(baseDir, "catalog.db"),
		},
		Filesystem: FilesystemConfig{
			Ignore: []string{".git", "*.tmp"},
		},
		API: APIConfig{Listen: DefaultListen},
		Vault: VaultConfig{
			Type:        "filesystem",
			Name:        "local",
			FSVaultRoot: filepath.Join(baseDir, "vault"),
		},
		Encryption: EncryptionConfig{
			Type:           "age",
			PublicKeyPath:  filepath.Join(baseDir, "keys", "omnia.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "omnia.key"),
		},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init writes cfg to a new config file at path. An existing file is never overwritten.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}

// Entry is one flattened config setting.
type Entry struct {
	Key   string
	Value any
}

// Entries flattens cfg into dotted keys in file order, as shown by
// `omnia config list`.
func Entries(cfg *Config) ([]Entry, error) {
	var sb strings.Builder
	if err := toml.NewEncoder(&sb).Encode(cfg); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	var raw map[string]any
	md, err := toml.Decode(sb.String(), &raw)
	if err != nil {
		return nil, fmt.Errorf("flattening config: %w", err)
	}

	var out []Entry
	for _, key := range md.Keys() {
		v := lookup(raw, key)
		if _, table := v.(map[string]any); table {
			continue
		}
		out = append(out, Entry{Key: key.String(), Value: v})
	}
	return out, nil
}

func lookup(m map[string]any, key toml.Key) any {
	var cur any = m
	for _, part := range key {
		table, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = table[part]
	}
	return cur
}
