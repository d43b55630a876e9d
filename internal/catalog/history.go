package catalog

import (
	"context"
	"sort"
)

// StartOperation persists a running operation.
func (s *Service) StartOperation(ctx context.Context, command, parameters string) (*Operation, error) {
	op, err := NewOperation(s.idgen.New(), command, parameters, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if err := s.operations.Save(ctx, op, false); err != nil {
		return nil, err
	}
	return op, nil
}

// FinishOperation records the outcome of op. Unpersisted operations are ignored.
func (s *Service) FinishOperation(ctx context.Context, op *Operation, opErr error) error {
	if op == nil || !op.Persisted() {
		return nil
	}
	op.Finish(s.clock.Now(), opErr)
	_, err := s.operations.Update(ctx, op)
	return err
}

// History returns the most recent operations, newest first.
// A limit of zero or less returns all of them.
func (s *Service) History(ctx context.Context, limit int) ([]*Operation, error) {
	ops, err := s.operations.All(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(ops, func(i, j int) bool { return ops[i].StartedAt.After(ops[j].StartedAt) })
	if limit > 0 && len(ops) > limit {
		ops = ops[:limit]
	}
	return ops, nil
}
