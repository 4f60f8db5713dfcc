package report

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	MalformedRow        Kind = "MalformedRow"
	DuplicateKey        Kind = "DuplicateKey"
	InventoryNotFound   Kind = "InventoryNotFound"
	InsufficientStock   Kind = "InsufficientStock"
	ForeignKeyViolation Kind = "ForeignKeyViolation"
	StorageError        Kind = "StorageError"
)

// Failure is one source row that could not be written.
type Failure struct {
	Row    string `json:"row"`
	Kind   Kind   `json:"kind"`
	Reason string `json:"reason"`
}

// EntityReport accumulates the outcome of one entity's batch.
//
// Inserted counts rows actually written. Existing counts rows whose natural
// key was already stored (the upsert was a no-op). Duplicates counts rows
// dropped because an earlier row in the same batch had the same key.
type EntityReport struct {
	Entity     string    `json:"entity"`
	Inserted   int       `json:"inserted"`
	Existing   int       `json:"existing"`
	Duplicates int       `json:"duplicates"`
	Failures   []Failure `json:"failures,omitempty"`

	mu sync.Mutex
}

func (e *EntityReport) AddInserted() {
	e.mu.Lock()
	e.Inserted++
	e.mu.Unlock()
}

func (e *EntityReport) AddExisting() {
	e.mu.Lock()
	e.Existing++
	e.mu.Unlock()
}

func (e *EntityReport) AddDuplicate() {
	e.mu.Lock()
	e.Duplicates++
	e.mu.Unlock()
}

func (e *EntityReport) Fail(row string, kind Kind, err error) {
	e.mu.Lock()
	e.Failures = append(e.Failures, Failure{Row: row, Kind: kind, Reason: err.Error()})
	e.mu.Unlock()
}

func (e *EntityReport) Failed() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.Failures)
}

// LoadReport is the single surface for every recoverable load failure.
type LoadReport struct {
	RunID      uuid.UUID       `json:"run_id"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Entities   []*EntityReport `json:"entities"`

	// ManagersAssigned counts stores given a manager by the post-employee pass.
	ManagersAssigned int64 `json:"managers_assigned"`

	mu    sync.Mutex
	index map[string]*EntityReport
}

func New() *LoadReport {
	return &LoadReport{
		RunID:     uuid.New(),
		StartedAt: time.Now().UTC(),
		index:     map[string]*EntityReport{},
	}
}

// Entity returns the report for name, registering it on first use. Entities
// are listed in first-registration order.
func (r *LoadReport) Entity(name string) *EntityReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.index[name]; ok {
		return e
	}
	e := &EntityReport{Entity: name}
	r.index[name] = e
	r.Entities = append(r.Entities, e)
	return e
}

// Lookup returns the report for name, or nil if it never ran.
func (r *LoadReport) Lookup(name string) *EntityReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.index[name]
}

func (r *LoadReport) Finish() {
	r.FinishedAt = time.Now().UTC()
}

func (r *LoadReport) TotalInserted() int {
	total := 0
	for _, e := range r.Entities {
		total += e.Inserted
	}
	return total
}

func (r *LoadReport) TotalFailed() int {
	total := 0
	for _, e := range r.Entities {
		total += e.Failed()
	}
	return total
}

// FailuresByKind counts failures across all entities.
func (r *LoadReport) FailuresByKind() map[Kind]int {
	out := map[Kind]int{}
	for _, e := range r.Entities {
		e.mu.Lock()
		for _, f := range e.Failures {
			out[f.Kind]++
		}
		e.mu.Unlock()
	}
	return out
}

// WriteText renders a human readable summary.
func (r *LoadReport) WriteText(w io.Writer, withFailures bool) error {
	if _, err := fmt.Fprintf(w, "run %s (%s)\n", r.RunID, r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond)); err != nil {
		return err
	}
	for _, e := range r.Entities {
		if _, err := fmt.Fprintf(w, "%-16s inserted=%d existing=%d duplicates=%d failed=%d\n",
			e.Entity, e.Inserted, e.Existing, e.Duplicates, len(e.Failures)); err != nil {
			return err
		}
		if !withFailures {
			continue
		}
		for _, f := range e.Failures {
			if _, err := fmt.Fprintf(w, "  %s %s: %s\n", f.Row, f.Kind, f.Reason); err != nil {
				return err
			}
		}
	}

	if _, err := fmt.Fprintf(w, "stores with manager=%d\n", r.ManagersAssigned); err != nil {
		return err
	}

	kinds := r.FailuresByKind()
	names := make([]string, 0, len(kinds))
	for k := range kinds {
		names = append(names, string(k))
	}
	sort.Strings(names)
	for _, k := range names {
		if _, err := fmt.Fprintf(w, "failures[%s]=%d\n", k, kinds[Kind(k)]); err != nil {
			return err
		}
	}
	return nil
}
