package catalog

import (
	"fmt"
	"strings"
	"time"
)

const KindOperation = "operations"

const (
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusError   = "error"
)

// Operation records one catalog-mutating command for the history log.
// Its unique key is a generated operation ID.
type Operation struct {
	record
	Command    string
	Parameters string
	Status     string
	Message    string
	StartedAt  time.Time
	FinishedAt *time.Time
}

var _ Entity = (*Operation)(nil)

// NewOperation creates an in-memory running operation.
func NewOperation(id, command, parameters string, startedAt time.Time) (*Operation, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: operation id is required", ErrValidation)
	}
	if strings.TrimSpace(command) == "" {
		return nil, fmt.Errorf("%w: operation command is required", ErrValidation)
	}
	return &Operation{
		record:     record{uniqueKey: id},
		Command:    command,
		Parameters: parameters,
		Status:     StatusRunning,
		StartedAt:  startedAt,
	}, nil
}

func newOperationPrototype() *Operation { return &Operation{} }

func (o *Operation) Kind() string { return KindOperation }

// ID is the generated operation identifier.
func (o *Operation) ID() string { return o.uniqueKey }

func (o *Operation) JSONFields() []string { return nil }

// Persisted reports whether the operation has been saved.
func (o *Operation) Persisted() bool { return o.pk != "" }

// Finish marks the operation done. A non-nil err marks it failed.
func (o *Operation) Finish(now time.Time, err error) {
	o.FinishedAt = &now
	if err != nil {
		o.Status = StatusError
		o.Message = err.Error()
		return
	}
	o.Status = StatusSuccess
}

type operationDocument struct {
	UniqueKey  string     `json:"uk"`
	Command    string     `json:"command"`
	Parameters string     `json:"parameters"`
	Status     string     `json:"status"`
	Message    string     `json:"message,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	ModifiedAt *time.Time `json:"modified_at,omitempty"`
}

func (o *Operation) Encode() (Document, error) {
	if o.uniqueKey == "" || o.Command == "" {
		return nil, fmt.Errorf("%w: operation id and command are required", ErrValidation)
	}
	return toDocument(operationDocument{
		UniqueKey:  o.uniqueKey,
		Command:    o.Command,
		Parameters: o.Parameters,
		Status:     o.Status,
		Message:    o.Message,
		StartedAt:  o.StartedAt,
		FinishedAt: o.FinishedAt,
		CreatedAt:  o.createdAt,
		ModifiedAt: o.modifiedAt,
	})
}

func (o *Operation) Decode(doc Document) error {
	var d operationDocument
	if err := fromDocument(doc, &d); err != nil {
		return fmt.Errorf("decoding operation: %w", err)
	}
	o.pk = doc.ID()
	o.uniqueKey = d.UniqueKey
	o.Command = d.Command
	o.Parameters = d.Parameters
	o.Status = d.Status
	o.Message = d.Message
	o.StartedAt = d.StartedAt
	o.FinishedAt = d.FinishedAt
	o.createdAt = d.CreatedAt
	o.modifiedAt = d.ModifiedAt
	return nil
}
