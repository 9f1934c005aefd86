package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	paramount "github.com/fini-ai/paramount"
	"github.com/fini-ai/paramount/store"
	"github.com/sirupsen/logrus"
)

// fakeDB is an in-memory store.Database for service tests. It applies the
// recording filters the relational backend applies so service behavior can
// be asserted end to end.
type fakeDB struct {
	mu     sync.Mutex
	tables map[string][]paramount.Row
	err    error

	upserted [][]paramount.Row
}

func newFakeDB() *fakeDB {
	return &fakeDB{tables: make(map[string][]paramount.Row)}
}

func (f *fakeDB) seed(table string, rows ...paramount.Row) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tables[table] = append(f.tables[table], rows...)
}

func (f *fakeDB) CreateOrAppend(_ context.Context, table, _ string, rows []paramount.Row) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.tables[table] = append(f.tables[table], rows...)
	return nil
}

func (f *fakeDB) TableExists(_ context.Context, table string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	_, ok := f.tables[table]
	return ok, nil
}

func (f *fakeDB) UpdateGroundTruth(_ context.Context, table string, rows []paramount.Row) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.upserted = append(f.upserted, rows)
	existing := f.tables[table]
	for _, row := range rows {
		id, _ := row[paramount.ColRecordingID].(string)
		replaced := false
		for i, cur := range existing {
			if cur[paramount.ColRecordingID] == id {
				merged := cur.Clone()
				for col, v := range row {
					merged[col] = v
				}
				existing[i] = merged
				replaced = true
				break
			}
		}
		if !replaced {
			existing = append(existing, row.Clone())
		}
	}
	f.tables[table] = existing
	return nil
}

func (f *fakeDB) GetRecordings(_ context.Context, table string, flt store.RecordingFilter) ([]paramount.Row, []string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, nil, f.err
	}
	allow := make(map[string]bool, len(flt.RecordingIDs))
	for _, id := range flt.RecordingIDs {
		allow[id] = true
	}
	var out []paramount.Row
	for _, row := range f.tables[table] {
		if len(allow) > 0 {
			id, _ := row[paramount.ColRecordingID].(string)
			if !allow[id] {
				continue
			}
		}
		if flt.IdentifierColumn != "" && row[flt.IdentifierColumn] != flt.IdentifierValue {
			continue
		}
		if flt.EvaluatedOnly {
			ev, _ := row[paramount.ColEvaluation].(string)
			if ev == "" {
				continue
			}
		}
		out = append(out, row)
	}
	return out, store.ColumnUnion(out), nil
}

func (f *fakeDB) GetSessions(_ context.Context, table string, flt store.SessionFilter) ([]paramount.Row, []string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, nil, f.err
	}
	var out []paramount.Row
	for _, row := range f.tables[table] {
		if flt.IdentifierValue != "" && row[paramount.ColSessionSplitterID] != flt.IdentifierValue {
			continue
		}
		out = append(out, row)
	}
	return out, store.ColumnUnion(out), nil
}

var _ store.Database = (*fakeDB)(nil)

// fakeCache is an in-memory cache.Cache recording deletions.
type fakeCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	deleted []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string][]byte)}
}

func (f *fakeCache) GetJSON(_ context.Context, key string, dst any) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.entries[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (f *fakeCache) SetJSON(_ context.Context, key string, val any, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, err := json.Marshal(val)
	if err != nil {
		return err
	}
	f.entries[key] = b
	return nil
}

func (f *fakeCache) Del(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.entries, k)
		f.deleted = append(f.deleted, k)
	}
	return nil
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}
