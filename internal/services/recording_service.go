package services

import (
	"context"
	"time"

	paramount "github.com/fini-ai/paramount"
	"github.com/fini-ai/paramount/internal/cache"
	"github.com/fini-ai/paramount/internal/utils"
	"github.com/fini-ai/paramount/store"
	"github.com/sirupsen/logrus"
)

// LatestQuery narrows a latest-recordings read.
type LatestQuery struct {
	Identifier    string
	EvaluatedOnly bool
	RecordingIDs  []string
}

// LatestResult pairs the rows with the table's column order so the UI can
// render deterministically.
type LatestResult struct {
	Records     []paramount.Row `json:"result"`
	ColumnOrder []string        `json:"column_order"`
}

type RecordingService interface {
	Latest(ctx context.Context, q LatestQuery) (*LatestResult, error)
	SubmitEvaluations(ctx context.Context, rows []paramount.Row) error
}

type recordingService struct {
	db                store.Database
	cache             cache.Cache // nil disables caching
	log               *logrus.Logger
	table             string
	identifierColname string
	splitByID         bool
	cacheTTL          time.Duration
}

func NewRecordingService(db store.Database, c cache.Cache, log *logrus.Logger,
	identifierColname string, splitByID bool, cacheTTL time.Duration) RecordingService {
	return &recordingService{
		db:                db,
		cache:             c,
		log:               log,
		table:             paramount.TableRecordings,
		identifierColname: identifierColname,
		splitByID:         splitByID,
		cacheTTL:          cacheTTL,
	}
}

func (s *recordingService) Latest(ctx context.Context, q LatestQuery) (*LatestResult, error) {
	const op = "RecordingService.Latest"

	if s.splitByID {
		if !utils.IsValidUUIDv4(q.Identifier) {
			return nil, utils.E(utils.CodeInvalidArgument, op, "a valid tenant identifier is required", nil)
		}
	}

	cacheable := s.cache != nil && len(q.RecordingIDs) == 0
	key := cache.LatestKey(q.Identifier, q.EvaluatedOnly)
	if cacheable {
		var cached LatestResult
		if hit, err := s.cache.GetJSON(ctx, key, &cached); err != nil {
			s.log.WithError(err).Warn("latest cache read failed")
		} else if hit {
			return &cached, nil
		}
	}

	exists, err := s.db.TableExists(ctx, s.table)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to check recordings table", err)
	}
	if !exists {
		// No data yet is a valid state, not an error.
		return &LatestResult{Records: []paramount.Row{}, ColumnOrder: []string{}}, nil
	}

	filter := store.RecordingFilter{
		RecordingIDs:  q.RecordingIDs,
		EvaluatedOnly: q.EvaluatedOnly,
	}
	if q.Identifier != "" {
		filter.IdentifierColumn = s.identifierColname
		filter.IdentifierValue = q.Identifier
	}

	rows, cols, err := s.db.GetRecordings(ctx, s.table, filter)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to read recordings", err)
	}
	if rows == nil {
		rows = []paramount.Row{}
	}
	if cols == nil {
		cols = []string{}
	}
	res := &LatestResult{Records: rows, ColumnOrder: cols}

	if cacheable {
		if err := s.cache.SetJSON(ctx, key, res, s.cacheTTL); err != nil {
			s.log.WithError(err).Warn("latest cache write failed")
		}
	}
	return res, nil
}

func (s *recordingService) SubmitEvaluations(ctx context.Context, rows []paramount.Row) error {
	const op = "RecordingService.SubmitEvaluations"

	if len(rows) == 0 {
		return utils.E(utils.CodeInvalidArgument, op, "updated_records must not be empty", nil)
	}

	now := time.Now().UTC().Truncate(time.Second).Format(paramount.TimeFormat)
	prepared := make([]paramount.Row, len(rows))
	identifiers := map[string]bool{"": true}
	for i, row := range rows {
		id, _ := row[paramount.ColRecordingID].(string)
		if !utils.IsValidUUIDv4(id) {
			return utils.E(utils.CodeInvalidArgument, op, "every updated record needs a valid recording id", nil)
		}
		r := row.Clone()
		// A label change always refreshes evaluated_at.
		if ev, _ := r[paramount.ColEvaluation].(string); ev != "" && !hasValue(r, paramount.ColEvaluatedAt) {
			r[paramount.ColEvaluatedAt] = now
		}
		prepared[i] = r
		if s.identifierColname != "" {
			if ident, ok := r[s.identifierColname].(string); ok {
				identifiers[ident] = true
			}
		}
	}

	if err := s.db.UpdateGroundTruth(ctx, s.table, prepared); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to upsert evaluations", err)
	}

	if s.cache != nil {
		keys := make([]string, 0, len(identifiers)*2)
		for ident := range identifiers {
			keys = append(keys, cache.LatestKey(ident, true), cache.LatestKey(ident, false))
		}
		if err := s.cache.Del(ctx, keys...); err != nil {
			s.log.WithError(err).Warn("latest cache invalidation failed")
		}
	}
	return nil
}

func hasValue(row paramount.Row, col string) bool {
	v, ok := row[col]
	if !ok || v == nil {
		return false
	}
	s, isStr := v.(string)
	if !isStr {
		return true
	}
	switch s {
	case "", "NaT", "None", "nan":
		return false
	}
	return true
}
