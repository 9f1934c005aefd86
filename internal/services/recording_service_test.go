package services

import (
	"context"
	"testing"
	"time"

	paramount "github.com/fini-ai/paramount"
	"github.com/fini-ai/paramount/internal/cache"
	"github.com/fini-ai/paramount/internal/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tenantCol = "input_args__company_uuid"

func recordingRow(id, tenant, evaluation string) paramount.Row {
	return paramount.Row{
		paramount.ColRecordingID:  id,
		paramount.ColFunctionName: "f",
		paramount.ColEvaluation:   evaluation,
		tenantCol:                 tenant,
		"output__1":               "ok",
	}
}

func TestLatestNoTableYet(t *testing.T) {
	svc := NewRecordingService(newFakeDB(), nil, testLogger(), "", false, time.Minute)

	res, err := svc.Latest(context.Background(), LatestQuery{})
	require.NoError(t, err)
	assert.Empty(t, res.Records)
	assert.Empty(t, res.ColumnOrder)
}

func TestLatestFilters(t *testing.T) {
	tenantA := uuid.NewString()
	tenantB := uuid.NewString()
	db := newFakeDB()
	db.seed(paramount.TableRecordings,
		recordingRow("r1", tenantA, "accurate"),
		recordingRow("r2", tenantA, ""),
		recordingRow("r3", tenantB, "inaccurate"),
	)
	svc := NewRecordingService(db, nil, testLogger(), tenantCol, false, time.Minute)
	ctx := context.Background()

	res, err := svc.Latest(ctx, LatestQuery{Identifier: tenantA})
	require.NoError(t, err)
	assert.Len(t, res.Records, 2)
	assert.Contains(t, res.ColumnOrder, paramount.ColRecordingID)

	res, err = svc.Latest(ctx, LatestQuery{Identifier: tenantA, EvaluatedOnly: true})
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "r1", res.Records[0][paramount.ColRecordingID])

	res, err = svc.Latest(ctx, LatestQuery{RecordingIDs: []string{"r3"}})
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "r3", res.Records[0][paramount.ColRecordingID])
}

func TestLatestRequiresTenantWhenSplit(t *testing.T) {
	svc := NewRecordingService(newFakeDB(), nil, testLogger(), tenantCol, true, time.Minute)

	_, err := svc.Latest(context.Background(), LatestQuery{Identifier: "not-a-uuid"})
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))

	_, err = svc.Latest(context.Background(), LatestQuery{})
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))
}

func TestLatestCaching(t *testing.T) {
	tenant := uuid.NewString()
	db := newFakeDB()
	db.seed(paramount.TableRecordings, recordingRow("r1", tenant, ""))
	c := newFakeCache()
	svc := NewRecordingService(db, c, testLogger(), tenantCol, false, time.Minute)
	ctx := context.Background()

	res, err := svc.Latest(ctx, LatestQuery{Identifier: tenant})
	require.NoError(t, err)
	require.Len(t, res.Records, 1)

	// a second read is served from the cache even after the table changes
	db.seed(paramount.TableRecordings, recordingRow("r2", tenant, ""))
	res, err = svc.Latest(ctx, LatestQuery{Identifier: tenant})
	require.NoError(t, err)
	assert.Len(t, res.Records, 1)

	// id allow-list reads bypass the cache
	res, err = svc.Latest(ctx, LatestQuery{RecordingIDs: []string{"r2"}})
	require.NoError(t, err)
	assert.Len(t, res.Records, 1)
}

func TestSubmitEvaluationsStampsEvaluatedAt(t *testing.T) {
	id := uuid.NewString()
	db := newFakeDB()
	db.seed(paramount.TableRecordings, recordingRow(id, "", ""))
	svc := NewRecordingService(db, nil, testLogger(), tenantCol, false, time.Minute)

	err := svc.SubmitEvaluations(context.Background(), []paramount.Row{{
		paramount.ColRecordingID: id,
		paramount.ColEvaluation:  "accurate",
		paramount.ColEvaluatedAt: "NaT",
	}})
	require.NoError(t, err)

	require.Len(t, db.upserted, 1)
	stamped, _ := db.upserted[0][0][paramount.ColEvaluatedAt].(string)
	ts, perr := time.Parse(paramount.TimeFormat, stamped)
	require.NoError(t, perr)
	assert.WithinDuration(t, time.Now().UTC(), ts, time.Minute)
}

func TestSubmitEvaluationsKeepsExplicitEvaluatedAt(t *testing.T) {
	id := uuid.NewString()
	db := newFakeDB()
	svc := NewRecordingService(db, nil, testLogger(), tenantCol, false, time.Minute)

	err := svc.SubmitEvaluations(context.Background(), []paramount.Row{{
		paramount.ColRecordingID: id,
		paramount.ColEvaluation:  "accurate",
		paramount.ColEvaluatedAt: "2026-03-01T12:00:00Z",
	}})
	require.NoError(t, err)
	require.Len(t, db.upserted, 1)
	assert.Equal(t, "2026-03-01T12:00:00Z", db.upserted[0][0][paramount.ColEvaluatedAt])
}

func TestSubmitEvaluationsValidation(t *testing.T) {
	svc := NewRecordingService(newFakeDB(), nil, testLogger(), tenantCol, false, time.Minute)
	ctx := context.Background()

	err := svc.SubmitEvaluations(ctx, nil)
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))

	err = svc.SubmitEvaluations(ctx, []paramount.Row{{
		paramount.ColRecordingID: "not-a-uuid",
		paramount.ColEvaluation:  "accurate",
	}})
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))
}

func TestSubmitEvaluationsInvalidatesCache(t *testing.T) {
	tenant := uuid.NewString()
	c := newFakeCache()
	svc := NewRecordingService(newFakeDB(), c, testLogger(), tenantCol, false, time.Minute)

	err := svc.SubmitEvaluations(context.Background(), []paramount.Row{{
		paramount.ColRecordingID: uuid.NewString(),
		paramount.ColEvaluation:  "accurate",
		tenantCol:                tenant,
	}})
	require.NoError(t, err)

	assert.Contains(t, c.deleted, cache.LatestKey(tenant, true))
	assert.Contains(t, c.deleted, cache.LatestKey(tenant, false))
	// the unscoped variant is cleared too
	assert.Contains(t, c.deleted, cache.LatestKey("", false))
}
