package catalog

import (
	"context"
	"errors"
	"fmt"
)

// Outcome is what registration did with one file.
type Outcome string

const (
	OutcomeInserted    Outcome = "inserted"
	OutcomeLinked      Outcome = "linked"
	OutcomeSkipped     Outcome = "skipped"
	OutcomeOverwritten Outcome = "overwritten"
	OutcomeFailed      Outcome = "failed"
)

type RegisterOptions struct {
	// ComputeMetadata fills checksum, size and MIME type for new records.
	ComputeMetadata bool
	// Force recomputes metadata for files already in the collection and
	// replaces their records.
	Force bool
}

// RegisterResult reports one file of a registration batch.
type RegisterResult struct {
	Path    string
	Key     string
	Outcome Outcome
	Err     error
}

// Register reconciles files against the catalog and links them to the named
// collection. Each file is reported individually and a failing file never
// stops the batch. The returned error is reserved for failures that prevent
// the batch from starting.
func (s *Service) Register(ctx context.Context, paths []string, collectionName string, opts RegisterOptions) ([]RegisterResult, error) {
	collection, err := s.FindCollection(ctx, collectionName)
	if err != nil {
		return nil, fmt.Errorf("resolving collection %q: %w", collectionName, err)
	}

	results := make([]RegisterResult, 0, len(paths))
	if collection == nil {
		notFound := fmt.Errorf("collection %q: %w", collectionName, ErrNotFound)
		s.logger.Error("collection not found, nothing registered", "collection", collectionName, "files", len(paths))
		for _, path := range paths {
			results = append(results, RegisterResult{Path: path, Outcome: OutcomeFailed, Err: notFound})
		}
		return results, nil
	}

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			results = append(results, RegisterResult{Path: path, Outcome: OutcomeFailed, Err: err})
			continue
		}
		result := s.registerFile(ctx, path, collection, opts)
		if result.Err != nil {
			s.logger.Error("registration failed", "path", path, "error", result.Err)
		} else {
			s.logger.Info("registered", "path", path, "key", result.Key, "outcome", string(result.Outcome))
		}
		results = append(results, result)
	}
	return results, nil
}

func (s *Service) registerFile(ctx context.Context, path string, collection *Collection, opts RegisterOptions) RegisterResult {
	result := RegisterResult{Path: path, Outcome: OutcomeFailed}

	candidate, err := NewFileObject(s.hasher, path, WithHost(s.host))
	if err != nil {
		result.Err = err
		return result
	}
	result.Path = candidate.Path()
	result.Key = candidate.UniqueKey()

	existing, err := s.objects.Map(ctx, candidate)
	if err != nil {
		result.Err = err
		return result
	}

	if existing == nil {
		candidate.AddCollection(collection.PK())
		if opts.ComputeMetadata {
			if err := s.computeMetadata(candidate, result.Path); err != nil {
				result.Err = err
				return result
			}
		}
		if err := s.objects.Save(ctx, candidate, false); err != nil {
			result.Err = err
			return result
		}
		result.Outcome = OutcomeInserted
		return result
	}

	if !existing.HasCollection(collection.PK()) {
		existing.AddCollection(collection.PK())
		if err := s.update(ctx, existing); err != nil {
			result.Err = err
			return result
		}
		result.Outcome = OutcomeLinked
		return result
	}

	if !opts.Force {
		result.Outcome = OutcomeSkipped
		return result
	}

	if err := s.computeMetadata(existing, result.Path); err != nil {
		result.Err = err
		return result
	}
	if err := s.update(ctx, existing); err != nil {
		result.Err = err
		return result
	}
	result.Outcome = OutcomeOverwritten
	return result
}

// computeMetadata reads the file at path, which may differ from the path
// stored on f when an identical file was registered from elsewhere.
func (s *Service) computeMetadata(f *FileObject, path string) error {
	if s.meta == nil {
		return errors.New("no metadata computer configured")
	}
	m, err := s.meta.Compute(path)
	if err != nil {
		return fmt.Errorf("computing metadata of %s: %w", path, err)
	}
	f.SetMetadata(m)
	return nil
}

func (s *Service) update(ctx context.Context, f *FileObject) error {
	updated, err := s.objects.Update(ctx, f)
	if err != nil {
		return err
	}
	if !updated {
		return fmt.Errorf("updating %s: %w", f.Path(), ErrNotFound)
	}
	return nil
}

// RegisterPattern expands pattern into files and registers them.
func (s *Service) RegisterPattern(ctx context.Context, pattern string, collectionName string, opts RegisterOptions) ([]RegisterResult, error) {
	if s.files == nil {
		return nil, errors.New("no file matcher configured")
	}
	paths, err := s.files.Match(pattern)
	if err != nil {
		return nil, fmt.Errorf("expanding %q: %w", pattern, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no files match %q: %w", pattern, ErrNotFound)
	}
	return s.Register(ctx, paths, collectionName, opts)
}

// Summarize counts results per outcome.
func Summarize(results []RegisterResult) map[Outcome]int {
	counts := make(map[Outcome]int)
	for _, r := range results {
		counts[r.Outcome]++
	}
	return counts
}
