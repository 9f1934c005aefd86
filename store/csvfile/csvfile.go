// Package csvfile is the flat-file storage backend: one CSV file per
// logical table. It assumes a single writer process and a local,
// single-tenant deployment; there is no cross-process locking.
package csvfile

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	paramount "github.com/fini-ai/paramount"
	"github.com/fini-ai/paramount/store"
	"github.com/sirupsen/logrus"
)

// Store persists rows as CSV files under a base directory.
type Store struct {
	dir string
	log *logrus.Logger
	mu  sync.Mutex
}

func New(dir string, log *logrus.Logger) *Store {
	if dir == "" {
		dir = "."
	}
	return &Store{dir: dir, log: log}
}

func (s *Store) path(table string) string {
	return filepath.Join(s.dir, table+".csv")
}

// CreateOrAppend writes the header on first write and appends rows without
// a header thereafter. Rows introducing columns the header has not seen
// trigger a full rewrite with the extended header, which is acceptable
// under the single-process assumption.
func (s *Store) CreateOrAppend(_ context.Context, table, _ string, rows []paramount.Row) error {
	if len(rows) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.path(table)
	header, existing, err := s.readAll(path)
	if os.IsNotExist(err) {
		return s.writeAll(path, store.ColumnUnion(rows), rows)
	}
	if err != nil {
		return err
	}

	var widened bool
	for _, col := range store.ColumnUnion(rows) {
		if !contains(header, col) {
			header = append(header, col)
			widened = true
		}
	}
	if widened {
		s.log.WithField("table", table).Info("csv header widened, rewriting file")
		return s.writeAll(path, header, append(existing, rows...))
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	for _, row := range rows {
		if err := w.Write(encodeRecord(header, row)); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func (s *Store) TableExists(_ context.Context, table string) (bool, error) {
	_, err := os.Stat(s.path(table))
	if os.IsNotExist(err) {
		return false, nil
	}
	return err == nil, err
}

// UpdateGroundTruth rewrites the whole file from the caller-supplied
// complete table. Acceptable only because this variant is local.
func (s *Store) UpdateGroundTruth(_ context.Context, table string, rows []paramount.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeAll(s.path(table), store.ColumnUnion(rows), rows)
}

// GetRecordings reads the whole file. Tenant and evaluated-only filtering
// are not implemented in this variant; callers must pre-filter.
func (s *Store) GetRecordings(_ context.Context, table string, _ store.RecordingFilter) ([]paramount.Row, []string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	header, rows, err := s.readAll(s.path(table))
	if os.IsNotExist(err) {
		return nil, nil, nil
	}
	return rows, header, err
}

// GetSessions reads the whole file; tenant filtering is not implemented in
// this variant.
func (s *Store) GetSessions(_ context.Context, table string, _ store.SessionFilter) ([]paramount.Row, []string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	header, rows, err := s.readAll(s.path(table))
	if os.IsNotExist(err) {
		return nil, nil, nil
	}
	return rows, header, err
}

func (s *Store) readAll(path string) ([]string, []paramount.Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, nil, nil
	}
	header := records[0]
	rows := make([]paramount.Row, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make(paramount.Row, len(header))
		for i, col := range header {
			if i < len(rec) {
				row[col] = decodeCell(rec[i])
			} else {
				row[col] = nil
			}
		}
		rows = append(rows, row)
	}
	return header, rows, nil
}

func (s *Store) writeAll(path string, header []string, rows []paramount.Row) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return err
	}
	for _, row := range rows {
		if err := w.Write(encodeRecord(header, row)); err != nil {
			f.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func encodeRecord(header []string, row paramount.Row) []string {
	rec := make([]string, len(header))
	for i, col := range header {
		rec[i] = encodeCell(row[col])
	}
	return rec
}

func encodeCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
}

// decodeCell makes a best-effort recovery of the cell's native type.
func decodeCell(cell string) any {
	if cell == "" {
		return nil
	}
	if cell == "true" || cell == "false" {
		return cell == "true"
	}
	if f, err := strconv.ParseFloat(cell, 64); err == nil {
		return f
	}
	if strings.HasPrefix(cell, "{") || strings.HasPrefix(cell, "[") {
		var out any
		if err := json.Unmarshal([]byte(cell), &out); err == nil {
			return out
		}
	}
	return cell
}

func contains(cols []string, col string) bool {
	for _, c := range cols {
		if c == col {
			return true
		}
	}
	return false
}

var _ store.Database = (*Store)(nil)
