package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// formatParams joins command arguments for the operation history. Arguments
// that are empty or contain whitespace or quotes are quoted.
func formatParams(params []string) string {
	parts := make([]string, 0, len(params))
	for _, p := range params {
		if p == "" || strings.ContainsAny(p, " \t\n\"'") {
			p = strconv.Quote(p)
		}
		parts = append(parts, p)
	}
	return strings.Join(parts, " ")
}

// persistOperation records the command in the operation history. Only
// mutating commands call it, and only the first call per App has an effect.
// The record is finished on Close.
func (a *App) persistOperation(ctx context.Context, params ...string) error {
	if a.op != nil {
		return nil
	}
	a.params = formatParams(params)
	op, err := a.service.StartOperation(ctx, a.command, a.params)
	if err != nil {
		return fmt.Errorf("recording operation: %w", err)
	}
	a.op = op
	return nil
}

// record remembers the first failure of the running operation and returns err.
func (a *App) record(err error) error {
	if err != nil && a.opErr == nil {
		a.opErr = err
	}
	return err
}
