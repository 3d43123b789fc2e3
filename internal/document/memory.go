package document

import (
	"context"
	"fmt"
	"iter"
	"maps"
	"sync"

	"github.com/iliyamo/moviestore/internal/errs"
	"github.com/iliyamo/moviestore/internal/model"
	"github.com/iliyamo/moviestore/internal/query"
)

// MemoryBackend keeps documents in process.  It is used when no MongoDB
// URI is configured and in tests.
type MemoryBackend struct {
	mu    sync.RWMutex
	colls map[string][]model.Values
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{colls: make(map[string][]model.Values)}
}

func (m *MemoryBackend) Insert(_ context.Context, e *model.Entity, rec model.Values) error {
	pk := e.PrimaryKey().Field
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.colls[e.Name] {
		if d[pk] == rec[pk] {
			return &errs.ConstraintViolation{
				Backend: errs.BackendDocument, Op: "insert", Constraint: "unique",
				Err: fmt.Errorf("duplicate %s %v", pk, rec[pk]),
			}
		}
	}
	m.colls[e.Name] = append(m.colls[e.Name], maps.Clone(rec))
	return nil
}

// Find matches against a snapshot taken when the range starts.
func (m *MemoryBackend) Find(ctx context.Context, e *model.Entity, conds []query.Cond) iter.Seq2[model.Values, error] {
	return func(yield func(model.Values, error) bool) {
		m.mu.RLock()
		snapshot := make([]model.Values, 0, len(m.colls[e.Name]))
		for _, d := range m.colls[e.Name] {
			snapshot = append(snapshot, maps.Clone(d))
		}
		m.mu.RUnlock()

		where := make(query.And, 0, len(conds))
		for _, c := range conds {
			where = append(where, c)
		}
		for _, d := range snapshot {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			ok, err := query.Match(e, where, d)
			if err != nil {
				yield(nil, err)
				return
			}
			if ok && !yield(d, nil) {
				return
			}
		}
	}
}

func (m *MemoryBackend) Close(context.Context) error { return nil }
