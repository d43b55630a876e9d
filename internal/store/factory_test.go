package store

import (
	"context"
	"path/filepath"
	"testing"
)

func TestNewStoreFromURI(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name     string
		uri      string
		wantErr  bool
		wantPath string
	}{
		{name: "memory", uri: "memory://", wantPath: memoryPath},
		{name: "sqlite scheme", uri: "sqlite://" + filepath.Join(dir, "a.db"), wantPath: filepath.Join(dir, "a.db")},
		{name: "bare path", uri: filepath.Join(dir, "b.db"), wantPath: filepath.Join(dir, "b.db")},
		{name: "empty", uri: "  ", wantErr: true},
		{name: "sqlite without path", uri: "sqlite://", wantErr: true},
		{name: "unknown scheme", uri: "redis://localhost", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewStoreFromURI(context.Background(), tt.uri)
			if tt.wantErr {
				if err == nil {
					got.Close()
					t.Fatal("NewStoreFromURI() expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewStoreFromURI() error = %v", err)
			}
			defer got.Close()

			s, ok := got.(*SQLiteStore)
			if !ok {
				t.Fatalf("NewStoreFromURI() = %T, want *SQLiteStore", got)
			}
			if s.Path() != tt.wantPath {
				t.Errorf("Path() = %q, want %q", s.Path(), tt.wantPath)
			}
		})
	}
}

func TestMongoDatabaseName(t *testing.T) {
	tests := []struct {
		uri  string
		want string
	}{
		{uri: "mongodb://localhost:27017", want: "omnia"},
		{uri: "mongodb://localhost:27017/", want: "omnia"},
		{uri: "mongodb://user:pw@db.example.com/catalog?authSource=admin", want: "catalog"},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			got, err := mongoDatabaseName(tt.uri)
			if err != nil {
				t.Fatalf("mongoDatabaseName() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("mongoDatabaseName() = %q, want %q", got, tt.want)
			}
		})
	}
}
