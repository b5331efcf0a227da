// Package runlog persists a record of every solve and answers queries over
// that history. Backends are an in-memory store, a rotating JSONL file and
// a SQLite database.
package runlog

import (
	"context"
	"sort"
	"time"

	"github.com/kilianp07/flownet/core/problem"
)

// Record captures one solve and its outcome.
type Record struct {
	RunID       string            `json:"run_id"`
	Timestamp   time.Time         `json:"timestamp"`
	Problem     string            `json:"problem"`
	Sense       problem.Sense     `json:"sense"`
	Status      problem.Status    `json:"status"`
	Objective   *float64          `json:"objective,omitempty"`
	Duration    time.Duration     `json:"duration"`
	Variables   int               `json:"variables"`
	Constraints int               `json:"constraints"`
	Nodes       int               `json:"nodes"`
	Solution    *problem.Solution `json:"solution,omitempty"`
	// Error is set when the solve failed before producing a status.
	Error string `json:"error,omitempty"`
}

// Query defines filters for retrieving records. Zero fields match
// everything.
type Query struct {
	Start   time.Time
	End     time.Time
	Problem string
	Status  problem.Status
	// Limit keeps only the most recent records when positive.
	Limit int
}

// Match reports whether r passes the filters of q, ignoring Limit.
func (q Query) Match(r Record) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.Problem != "" && r.Problem != q.Problem {
		return false
	}
	if q.Status != "" && r.Status != q.Status {
		return false
	}
	return true
}

// Store persists Records and supports querying.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}

// NopStore discards records.
type NopStore struct{}

func (NopStore) Append(context.Context, Record) error           { return nil }
func (NopStore) Query(context.Context, Query) ([]Record, error) { return nil, nil }
func (NopStore) Close() error                                   { return nil }

// finish orders records by time and applies q.Limit.
func finish(recs []Record, q Query) []Record {
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].Timestamp.Before(recs[j].Timestamp) })
	if q.Limit > 0 && len(recs) > q.Limit {
		recs = recs[len(recs)-q.Limit:]
	}
	return recs
}
