// Package store defines the storage contract shared by the flat-file and
// relational backends. Both persist the same flat Row shape; their filter
// capabilities deliberately differ (the flat-file variant assumes a local,
// single-tenant deployment and leaves filtering to callers).
package store

import (
	"context"
	"sort"
	"strings"

	paramount "github.com/fini-ai/paramount"
)

// RecordingFilter narrows a recordings read. The three filters are
// independent and composable.
type RecordingFilter struct {
	// RecordingIDs is an allow-list of paramount__recording_id values.
	RecordingIDs []string
	// IdentifierColumn / IdentifierValue filter on tenant equality.
	IdentifierColumn string
	IdentifierValue  string
	// EvaluatedOnly keeps rows whose evaluation label is non-empty.
	EvaluatedOnly bool
}

// SessionFilter narrows a sessions read by tenant.
type SessionFilter struct {
	IdentifierValue string
}

// Database is the capability set every storage backend exposes.
type Database interface {
	// CreateOrAppend persists rows to the table, creating it on first
	// write. The relational variant infers and evolves the schema here.
	CreateOrAppend(ctx context.Context, table, primaryKey string, rows []paramount.Row) error

	// TableExists reports whether the table has ever been written.
	TableExists(ctx context.Context, table string) (bool, error)

	// UpdateGroundTruth bulk-upserts rows keyed on the recording id.
	// Non-key columns present in an incoming row overwrite the stored row.
	UpdateGroundTruth(ctx context.Context, table string, rows []paramount.Row) error

	// GetRecordings reads recording rows plus the table's column order,
	// newest first, capped at 100 rows.
	GetRecordings(ctx context.Context, table string, f RecordingFilter) ([]paramount.Row, []string, error)

	// GetSessions reads session rows plus column order, newest first.
	GetSessions(ctx context.Context, table string, f SessionFilter) ([]paramount.Row, []string, error)
}

// ColumnUnion returns the union of column names across rows in a stable
// order: reserved metadata first, then inputs, outputs, and everything
// else, each group sorted.
func ColumnUnion(rows []paramount.Row) []string {
	seen := make(map[string]bool)
	var cols []string
	for _, row := range rows {
		for col := range row {
			if !seen[col] {
				seen[col] = true
				cols = append(cols, col)
			}
		}
	}
	sort.SliceStable(cols, func(i, j int) bool {
		gi, gj := columnGroup(cols[i]), columnGroup(cols[j])
		if gi != gj {
			return gi < gj
		}
		return cols[i] < cols[j]
	})
	return cols
}

func columnGroup(col string) int {
	switch {
	case col == paramount.ColRecordingID || col == paramount.ColSessionID:
		return -1
	case strings.HasPrefix(col, "paramount__"):
		return 0
	case strings.HasPrefix(col, paramount.PrefixArgs):
		return 1
	case strings.HasPrefix(col, paramount.PrefixKwargs):
		return 2
	case strings.HasPrefix(col, paramount.PrefixOutput):
		return 3
	default:
		return 4
	}
}
