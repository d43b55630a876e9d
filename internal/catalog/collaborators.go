package catalog

// MetadataComputer derives checksum, size and MIME type for a file.
type MetadataComputer interface {
	Compute(path string) (Metadata, error)
}

// FileMatcher expands a source pattern into the regular files it names.
type FileMatcher interface {
	// Match returns the absolute paths of the files matching pattern, sorted.
	Match(pattern string) ([]string, error)
}
