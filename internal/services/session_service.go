package services

import (
	"context"
	"sync"
	"time"

	paramount "github.com/fini-ai/paramount"
	"github.com/fini-ai/paramount/internal/utils"
	"github.com/fini-ai/paramount/store"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// CreateSessionInput freezes a curated or replay-tested set of recordings.
type CreateSessionInput struct {
	Name        string
	RecordedIDs []string
	Accuracy    float64
	SplitterID  string
}

type SessionService interface {
	// Create validates the input, stamps id and timestamp, and persists
	// the session without blocking the caller.
	Create(ctx context.Context, in CreateSessionInput) (paramount.Row, error)
	List(ctx context.Context, identifier string) ([]paramount.Row, []string, error)
	// Drain waits for in-flight session writes. Used on shutdown and in
	// tests.
	Drain()
}

type sessionService struct {
	db        store.Database
	log       *logrus.Logger
	table     string
	splitByID bool

	// pending tracks in-flight background writes so shutdown and tests
	// can drain them.
	pending sync.WaitGroup
}

func NewSessionService(db store.Database, log *logrus.Logger, splitByID bool) SessionService {
	return &sessionService{
		db:        db,
		log:       log,
		table:     paramount.TableSessions,
		splitByID: splitByID,
	}
}

func (s *sessionService) Create(ctx context.Context, in CreateSessionInput) (paramount.Row, error) {
	const op = "SessionService.Create"

	if in.Name == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "session name is required", nil)
	}
	if in.Accuracy < 0 || in.Accuracy > 1 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "accuracy must be within [0, 1]", nil)
	}
	if len(in.RecordedIDs) == 0 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "recorded_ids must not be empty", nil)
	}
	if s.splitByID && !utils.IsValidUUIDv4(in.SplitterID) {
		return nil, utils.E(utils.CodeInvalidArgument, op, "a valid splitter identifier is required", nil)
	}
	if err := s.verifyRecordingsExist(ctx, in.RecordedIDs); err != nil {
		return nil, err
	}

	ids := make([]any, len(in.RecordedIDs))
	for i, id := range in.RecordedIDs {
		ids[i] = id
	}
	row := paramount.Row{
		paramount.ColSessionID:          uuid.NewString(),
		paramount.ColSessionName:        in.Name,
		paramount.ColSessionTimestamp:   time.Now().UTC().Truncate(time.Second).Format(paramount.TimeFormat),
		paramount.ColSessionRecordedIDs: ids,
		paramount.ColSessionAccuracy:    in.Accuracy,
		paramount.ColSessionSplitterID:  in.SplitterID,
	}

	// Fire and forget, same discipline as the recording path.
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		wctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.db.CreateOrAppend(wctx, s.table, paramount.ColSessionID, []paramount.Row{row}); err != nil {
			s.log.WithError(err).WithField("session", row[paramount.ColSessionID]).Error("failed to persist session")
		}
	}()

	return row, nil
}

// verifyRecordingsExist checks the referenced recordings are present at
// creation time. Sets larger than the backend's read cap are accepted
// unverified.
func (s *sessionService) verifyRecordingsExist(ctx context.Context, ids []string) error {
	const op = "SessionService.Create"
	if len(ids) > 100 {
		return nil
	}
	rows, _, err := s.db.GetRecordings(ctx, paramount.TableRecordings, store.RecordingFilter{RecordingIDs: ids})
	if err != nil {
		return utils.E(utils.CodeInternal, op, "failed to verify recorded ids", err)
	}
	found := make(map[string]bool, len(rows))
	for _, row := range rows {
		if id, ok := row[paramount.ColRecordingID].(string); ok {
			found[id] = true
		}
	}
	for _, id := range ids {
		if !found[id] {
			return utils.E(utils.CodeInvalidArgument, op, "recorded_ids reference unknown recording "+id, nil)
		}
	}
	return nil
}

func (s *sessionService) List(ctx context.Context, identifier string) ([]paramount.Row, []string, error) {
	const op = "SessionService.List"

	if s.splitByID && !utils.IsValidUUIDv4(identifier) {
		return nil, nil, utils.E(utils.CodeInvalidArgument, op, "a valid tenant identifier is required", nil)
	}

	exists, err := s.db.TableExists(ctx, s.table)
	if err != nil {
		return nil, nil, utils.E(utils.CodeInternal, op, "failed to check sessions table", err)
	}
	if !exists {
		return []paramount.Row{}, []string{}, nil
	}

	rows, cols, err := s.db.GetSessions(ctx, s.table, store.SessionFilter{IdentifierValue: identifier})
	if err != nil {
		return nil, nil, utils.E(utils.CodeInternal, op, "failed to read sessions", err)
	}
	if rows == nil {
		rows = []paramount.Row{}
	}
	if cols == nil {
		cols = []string{}
	}
	return rows, cols, nil
}

func (s *sessionService) Drain() { s.pending.Wait() }
