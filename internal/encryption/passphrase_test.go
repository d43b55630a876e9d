package encryption

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReadPassphraseFile(t *testing.T) {
	dir := t.TempDir()
	withNewline := filepath.Join(dir, "pass")
	os.WriteFile(withNewline, []byte("s3cret\r\n"), 0o600)
	empty := filepath.Join(dir, "empty")
	os.WriteFile(empty, []byte("\n"), 0o600)

	tests := []struct {
		name    string
		path    string
		stdin   string
		want    string
		wantErr bool
	}{
		{name: "file strips newline", path: withNewline, want: "s3cret"},
		{name: "stdin", path: "-", stdin: "from-stdin\n", want: "from-stdin"},
		{name: "empty file", path: empty, wantErr: true},
		{name: "missing file", path: filepath.Join(dir, "absent"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadPassphraseFile(tt.path, strings.NewReader(tt.stdin))
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
