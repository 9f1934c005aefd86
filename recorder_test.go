package paramount

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu    sync.Mutex
	table string
	pk    string
	rows  []Row
	err   error
}

func (m *memStore) CreateOrAppend(_ context.Context, table, primaryKey string, rows []Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.table = table
	m.pk = primaryKey
	m.rows = append(m.rows, rows...)
	return nil
}

func (m *memStore) recorded() []Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Row, len(m.rows))
	copy(out, m.rows)
	return out
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func TestRecorderCapturesInvocation(t *testing.T) {
	st := &memStore{}
	rec := NewRecorder(st, WithLogger(quietLogger()))

	wrapped := rec.Record(Function{
		Name:   "f",
		Params: []string{"x"},
		Call: func(_ context.Context, args []any, _ map[string]any) (any, error) {
			return []any{args[0], map[string]any{"answer": "yes"}}, nil
		},
	})

	result, err := wrapped(context.Background(), []any{1}, nil)
	require.NoError(t, err)
	require.NoError(t, rec.Close())

	tuple, ok := result.([]any)
	require.True(t, ok)
	assert.Equal(t, 1, tuple[0])

	rows := st.recorded()
	require.Len(t, rows, 1)
	assert.Equal(t, TableRecordings, st.table)
	assert.Equal(t, ColRecordingID, st.pk)
	assert.Equal(t, "f", rows[0][ColFunctionName])
	assert.Equal(t, float64(1), rows[0][PrefixArgs+"x"])
	assert.Equal(t, float64(1), rows[0]["output__1"])
	assert.Equal(t, "yes", rows[0]["output__2_answer"])
}

func TestRecorderErrorNotRecorded(t *testing.T) {
	st := &memStore{}
	rec := NewRecorder(st, WithLogger(quietLogger()))

	sentinel := errors.New("model unavailable")
	wrapped := rec.Record(Function{
		Name: "flaky",
		Call: func(context.Context, []any, map[string]any) (any, error) {
			return nil, sentinel
		},
	})

	_, err := wrapped(context.Background(), nil, nil)
	assert.ErrorIs(t, err, sentinel)
	require.NoError(t, rec.Close())
	assert.Empty(t, st.recorded())
}

func TestRecorderDisabledPassesThrough(t *testing.T) {
	st := &memStore{}
	rec := NewRecorder(st, WithLogger(quietLogger()), WithEnabled(false))

	calls := 0
	wrapped := rec.Record(Function{
		Name: "f",
		Call: func(context.Context, []any, map[string]any) (any, error) {
			calls++
			return "ok", nil
		},
	})

	result, err := wrapped(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 1, calls)
	require.NoError(t, rec.Close())
	assert.Empty(t, st.recorded())
}

func TestRecorderStreamingResultUnrecorded(t *testing.T) {
	st := &memStore{}
	rec := NewRecorder(st, WithLogger(quietLogger()))

	ch := make(chan string)
	wrapped := rec.Record(Function{
		Name: "stream",
		Call: func(context.Context, []any, map[string]any) (any, error) {
			return ch, nil
		},
	})

	result, err := wrapped(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, ch, result)
	require.NoError(t, rec.Close())
	assert.Empty(t, st.recorded())
}

func TestRecorderPersistFailureDoesNotSurface(t *testing.T) {
	st := &memStore{err: errors.New("table gone")}
	rec := NewRecorder(st, WithLogger(quietLogger()))

	wrapped := rec.Record(Function{
		Name: "f",
		Call: func(context.Context, []any, map[string]any) (any, error) {
			return "ok", nil
		},
	})

	result, err := wrapped(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	require.NoError(t, rec.Close())
}

func TestRecorderUnserializableInputDegrades(t *testing.T) {
	st := &memStore{}
	rec := NewRecorder(st, WithLogger(quietLogger()))

	wrapped := rec.Record(Function{
		Name:   "f",
		Params: []string{"cb"},
		Call: func(context.Context, []any, map[string]any) (any, error) {
			return "ok", nil
		},
	})

	_, err := wrapped(context.Background(), []any{func() {}}, nil)
	require.NoError(t, err)
	require.NoError(t, rec.Close())

	rows := st.recorded()
	require.Len(t, rows, 1)
	assert.Equal(t, unrecordableInput, rows[0][PrefixArgs+"cb"])
}
