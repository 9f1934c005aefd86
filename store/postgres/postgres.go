// Package postgres is the relational storage backend. The schema is never
// pre-declared: it is inferred from the first write and evolved whenever a
// later row introduces columns the table has not seen. Ground-truth writes
// are upserts keyed on the recording id; the table is never replaced.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	paramount "github.com/fini-ai/paramount"
	"github.com/fini-ai/paramount/store"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const readLimit = 100

// Store persists rows in Postgres through gorm.
type Store struct {
	db  *gorm.DB
	log *logrus.Logger

	// mu guards the column cache and DDL. Concurrent writers in other
	// processes racing on ADD COLUMN remain an accepted risk.
	mu     sync.Mutex
	tables map[string][]string
}

func New(db *gorm.DB, log *logrus.Logger) *Store {
	return &Store{db: db, log: log, tables: make(map[string][]string)}
}

// CreateOrAppend inserts rows, creating the table with inferred column
// types on first write and adding TEXT columns for any field the table
// has not seen. The schema diff happens before the insert, so the insert
// always proceeds once the columns exist.
func (s *Store) CreateOrAppend(ctx context.Context, table, primaryKey string, rows []paramount.Row) error {
	if len(rows) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cols := store.ColumnUnion(rows)
	if err := s.ensureSchema(ctx, table, primaryKey, cols, rows); err != nil {
		return err
	}

	records := make([]map[string]any, len(rows))
	for i, row := range rows {
		records[i] = toRecord(cols, row)
	}
	if err := s.db.WithContext(ctx).Table(table).Create(&records).Error; err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"table": table,
			"rows":  len(rows),
		}).Error("append failed")
		return fmt.Errorf("append to %s: %w", table, err)
	}
	return nil
}

// ensureSchema creates the table or adds missing columns, updating the
// cache. Caller holds mu.
func (s *Store) ensureSchema(ctx context.Context, table, primaryKey string, cols []string, rows []paramount.Row) error {
	known, exists, err := s.lookupColumns(ctx, table)
	if err != nil {
		return err
	}

	if !exists {
		defs := make([]string, 0, len(cols))
		for _, col := range cols {
			defs = append(defs, pq.QuoteIdentifier(col)+" "+inferType(col, primaryKey, rows))
		}
		ddl := fmt.Sprintf("CREATE TABLE %s (%s)", pq.QuoteIdentifier(table), strings.Join(defs, ", "))
		if err := s.db.WithContext(ctx).Exec(ddl).Error; err != nil {
			return fmt.Errorf("create table %s: %w", table, err)
		}
		// The constraint is added exactly once, on the write that
		// created the table.
		pkDDL := fmt.Sprintf("ALTER TABLE %s ADD PRIMARY KEY (%s)",
			pq.QuoteIdentifier(table), pq.QuoteIdentifier(primaryKey))
		if err := s.db.WithContext(ctx).Exec(pkDDL).Error; err != nil {
			return fmt.Errorf("add primary key on %s: %w", table, err)
		}
		s.log.WithField("table", table).Info("created table with primary key")
		s.tables[table] = cols
		return nil
	}

	for _, col := range missingColumns(cols, known) {
		ddl := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s TEXT",
			pq.QuoteIdentifier(table), pq.QuoteIdentifier(col))
		if err := s.db.WithContext(ctx).Exec(ddl).Error; err != nil {
			return fmt.Errorf("add column %s to %s: %w", col, table, err)
		}
		s.log.WithFields(logrus.Fields{"table": table, "column": col}).Info("added column")
		known = append(known, col)
	}
	s.tables[table] = known
	return nil
}

// UpdateGroundTruth bulk-upserts rows keyed on the recording id. On
// conflict every non-key column present in the incoming row overwrites the
// stored value. Failures are logged and re-raised; silent loss here would
// corrupt the evaluation record.
func (s *Store) UpdateGroundTruth(ctx context.Context, table string, rows []paramount.Row) error {
	if len(rows) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cleaned := make([]paramount.Row, len(rows))
	for i, row := range rows {
		cleaned[i] = normalizeSentinels(row)
	}

	cols := store.ColumnUnion(cleaned)
	if err := s.ensureSchema(ctx, table, paramount.ColRecordingID, cols, cleaned); err != nil {
		return err
	}

	// Rows are grouped by column signature so an upsert never overwrites
	// stored values with nulls for fields the incoming row did not carry.
	for _, group := range groupBySignature(cleaned) {
		groupCols := store.ColumnUnion(group)
		assign := make([]string, 0, len(groupCols))
		for _, col := range groupCols {
			if col != paramount.ColRecordingID {
				assign = append(assign, col)
			}
		}
		records := make([]map[string]any, len(group))
		for i, row := range group {
			records[i] = toRecord(groupCols, row)
		}
		err := s.db.WithContext(ctx).Table(table).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: paramount.ColRecordingID}},
			DoUpdates: clause.AssignmentColumns(assign),
		}).Create(&records).Error
		if err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{
				"table": table,
				"rows":  len(group),
			}).Error("ground truth upsert failed")
			return fmt.Errorf("upsert into %s: %w", table, err)
		}
	}
	return nil
}

func (s *Store) TableExists(ctx context.Context, table string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists, err := s.lookupColumns(ctx, table)
	return exists, err
}

// GetRecordings reads newest-first, capped at 100 rows. The cap is a
// deliberate bound, not pagination; callers needing specific rows use the
// id allow-list.
func (s *Store) GetRecordings(ctx context.Context, table string, f store.RecordingFilter) ([]paramount.Row, []string, error) {
	q := s.db.WithContext(ctx).Table(table)
	if len(f.RecordingIDs) > 0 {
		q = q.Where(pq.QuoteIdentifier(paramount.ColRecordingID)+" IN ?", f.RecordingIDs)
	}
	if f.IdentifierColumn != "" {
		q = q.Where(pq.QuoteIdentifier(f.IdentifierColumn)+" = ?", f.IdentifierValue)
	}
	if f.EvaluatedOnly {
		ev := pq.QuoteIdentifier(paramount.ColEvaluation)
		q = q.Where(ev + " IS NOT NULL AND " + ev + " <> ''")
	}

	var raw []map[string]any
	err := q.Order(pq.QuoteIdentifier(paramount.ColRecordedAt) + " DESC").Limit(readLimit).Find(&raw).Error
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", table, err)
	}
	cols, err := s.columnOrder(ctx, table)
	if err != nil {
		return nil, nil, err
	}
	return normalizeRows(raw), cols, nil
}

// GetSessions reads newest-first, unbounded, filtered by tenant when set.
func (s *Store) GetSessions(ctx context.Context, table string, f store.SessionFilter) ([]paramount.Row, []string, error) {
	q := s.db.WithContext(ctx).Table(table)
	if f.IdentifierValue != "" {
		q = q.Where(pq.QuoteIdentifier(paramount.ColSessionSplitterID)+" = ?", f.IdentifierValue)
	}
	var raw []map[string]any
	err := q.Order(pq.QuoteIdentifier(paramount.ColSessionTimestamp) + " DESC").Find(&raw).Error
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", table, err)
	}
	cols, err := s.columnOrder(ctx, table)
	if err != nil {
		return nil, nil, err
	}
	return normalizeRows(raw), cols, nil
}

func (s *Store) columnOrder(ctx context.Context, table string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cols, _, err := s.lookupColumns(ctx, table)
	return cols, err
}

// lookupColumns serves from the cache, falling back to the information
// schema. Caller holds mu.
func (s *Store) lookupColumns(ctx context.Context, table string) ([]string, bool, error) {
	if cols, ok := s.tables[table]; ok {
		return cols, true, nil
	}
	var cols []string
	err := s.db.WithContext(ctx).Raw(
		`SELECT column_name FROM information_schema.columns
		 WHERE table_schema = current_schema() AND table_name = ?
		 ORDER BY ordinal_position`, table).Scan(&cols).Error
	if err != nil {
		return nil, false, fmt.Errorf("inspect %s: %w", table, err)
	}
	if len(cols) == 0 {
		return nil, false, nil
	}
	s.tables[table] = cols
	return cols, true, nil
}

// inferType picks a column type from the first non-null observed value:
// text for strings, jsonb for lists and mappings, uuid for the primary
// key, text otherwise.
func inferType(col, primaryKey string, rows []paramount.Row) string {
	if col == primaryKey {
		return "UUID"
	}
	for _, row := range rows {
		v, ok := row[col]
		if !ok || v == nil {
			continue
		}
		switch v.(type) {
		case string:
			return "TEXT"
		case map[string]any, []any:
			return "JSONB"
		default:
			return "TEXT"
		}
	}
	return "TEXT"
}

func missingColumns(wanted, known []string) []string {
	have := make(map[string]bool, len(known))
	for _, c := range known {
		have[c] = true
	}
	var missing []string
	for _, c := range wanted {
		if !have[c] {
			missing = append(missing, c)
		}
	}
	return missing
}

// toRecord projects a row onto the column set, encoding structured values
// as jsonb and everything else in its text form.
func toRecord(cols []string, row paramount.Row) map[string]any {
	rec := make(map[string]any, len(cols))
	for _, col := range cols {
		rec[col] = toDBValue(row[col])
	}
	return rec
}

// toDBValue matches the value to the column types this backend creates:
// lists and mappings become jsonb, every other non-null value is sent as
// text. The driver has no encode plan from Go scalars to a TEXT column, so
// numbers and booleans must be formatted here, not passed through.
func toDBValue(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case time.Time:
		return x.UTC().Truncate(time.Second).Format(paramount.TimeFormat)
	case map[string]any, []any:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return datatypes.JSON(b)
	default:
		return fmt.Sprint(x)
	}
}

// normalizeSentinels maps null-like placeholder strings to true nulls so
// uuid and timestamp columns accept the write.
func normalizeSentinels(row paramount.Row) paramount.Row {
	out := row.Clone()
	for col, v := range out {
		s, ok := v.(string)
		if !ok {
			continue
		}
		switch s {
		case "NaT", "None", "nan", "NaN", "<NA>":
			out[col] = nil
		case "":
			// Empty evaluation labels are meaningful; empty ids and
			// timestamps are not.
			if col != paramount.ColEvaluation {
				out[col] = nil
			}
		}
	}
	return out
}

func groupBySignature(rows []paramount.Row) [][]paramount.Row {
	groups := make(map[string][]paramount.Row)
	var order []string
	for _, row := range rows {
		sig := strings.Join(store.ColumnUnion([]paramount.Row{row}), "\x00")
		if _, ok := groups[sig]; !ok {
			order = append(order, sig)
		}
		groups[sig] = append(groups[sig], row)
	}
	out := make([][]paramount.Row, 0, len(order))
	for _, sig := range order {
		out = append(out, groups[sig])
	}
	return out
}

// normalizeRows converts database-native values back to plain Go values:
// uuids to strings, jsonb bytes to native lists/maps, timestamps to the
// recording time format, and empty evaluation labels to nil.
func normalizeRows(raw []map[string]any) []paramount.Row {
	rows := make([]paramount.Row, len(raw))
	for i, rec := range raw {
		row := make(paramount.Row, len(rec))
		for col, v := range rec {
			row[col] = normalizeValue(v)
		}
		if s, ok := row[paramount.ColEvaluation].(string); ok && s == "" {
			row[paramount.ColEvaluation] = nil
		}
		rows[i] = row
	}
	return rows
}

func normalizeValue(v any) any {
	switch x := v.(type) {
	case []byte:
		var out any
		if err := json.Unmarshal(x, &out); err == nil {
			return out
		}
		return string(x)
	case string:
		return fromText(x)
	case [16]byte:
		return uuid.UUID(x).String()
	case uuid.UUID:
		return x.String()
	case time.Time:
		return x.UTC().Truncate(time.Second).Format(paramount.TimeFormat)
	case int64:
		return float64(x)
	case int32:
		return float64(x)
	default:
		return v
	}
}

// fromText recovers scalar and structured values written through toDBValue
// into TEXT columns, mirroring the flat-file backend's cell decoding.
func fromText(s string) any {
	if s == "true" || s == "false" {
		return s == "true"
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[") {
		var out any
		if err := json.Unmarshal([]byte(s), &out); err == nil {
			return out
		}
	}
	return s
}

var _ store.Database = (*Store)(nil)
