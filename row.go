package paramount

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Reserved metadata columns. These names are part of the wire contract with
// the evaluation UI and must not change.
const (
	ColRecordingID   = "paramount__recording_id"
	ColRecordedAt    = "paramount__recorded_at"
	ColEvaluatedAt   = "paramount__evaluated_at"
	ColFunctionName  = "paramount__function_name"
	ColExecutionTime = "paramount__execution_time"
	ColEvaluation    = "paramount__evaluation"
)

// Session columns.
const (
	ColSessionID          = "paramount__session_id"
	ColSessionTimestamp   = "paramount__session_timestamp"
	ColSessionRecordedIDs = "paramount__session_recorded_ids"
	ColSessionAccuracy    = "paramount__session_accuracy"
	ColSessionName        = "paramount__session_name"
	ColSessionSplitterID  = "paramount__session_splitter_id"
)

// Column name prefixes for input and output fields.
const (
	PrefixArgs   = "input_args__"
	PrefixKwargs = "input_kwargs__"
	PrefixOutput = "output__"
	PrefixTest   = "test_"
)

// Default table names.
const (
	TableRecordings = "paramount_data"
	TableSessions   = "paramount_ground_truth_sessions"
)

// TimeFormat is used for all recorded timestamps (UTC, second precision).
const TimeFormat = "2006-01-02T15:04:05Z07:00"

// Row is one flat recording or session row, keyed by column name.
type Row map[string]any

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// ValuesWithPrefix collects the row's values whose column carries the given
// prefix, keyed by the column name with the prefix stripped. Used to
// reconstruct call arguments from input_args__/input_kwargs__ columns.
func (r Row) ValuesWithPrefix(prefix string) map[string]any {
	vals := make(map[string]any)
	for col, v := range r {
		if strings.HasPrefix(col, prefix) {
			vals[strings.TrimPrefix(col, prefix)] = v
		}
	}
	return vals
}

// OutputAddress locates one value inside a structured function result:
// the 1-based position in the result tuple, plus the key within that
// element when the element is a mapping.
type OutputAddress struct {
	Position int
	Key      string
}

// Column renders the address as its flat column name, e.g. output__2_answer.
func (a OutputAddress) Column() string {
	if a.Key == "" {
		return PrefixOutput + strconv.Itoa(a.Position)
	}
	return PrefixOutput + strconv.Itoa(a.Position) + "_" + a.Key
}

// ParseOutputColumn parses a flat output column name back into its address.
// output__2_answer yields {Position: 2, Key: "answer"}; keys may themselves
// contain underscores.
func ParseOutputColumn(col string) (OutputAddress, error) {
	if !strings.HasPrefix(col, PrefixOutput) {
		return OutputAddress{}, fmt.Errorf("not an output column: %q", col)
	}
	rest := strings.TrimPrefix(col, PrefixOutput)
	posStr, key, _ := strings.Cut(rest, "_")
	pos, err := strconv.Atoi(posStr)
	if err != nil || pos < 1 {
		return OutputAddress{}, fmt.Errorf("invalid output column %q: bad position", col)
	}
	return OutputAddress{Position: pos, Key: key}, nil
}

// Extract resolves the address against a result tuple.
func (a OutputAddress) Extract(result []any) (any, error) {
	if a.Position < 1 || a.Position > len(result) {
		return nil, fmt.Errorf("output position %d out of range (result has %d elements)", a.Position, len(result))
	}
	item := result[a.Position-1]
	if a.Key == "" {
		return item, nil
	}
	m, ok := item.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("output position %d is not a mapping, cannot address key %q", a.Position, a.Key)
	}
	v, ok := m[a.Key]
	if !ok {
		return nil, fmt.Errorf("output position %d has no key %q", a.Position, a.Key)
	}
	return v, nil
}

// BuildRow assembles one Recording row from a captured invocation.
// Positional arguments are mapped to their declared parameter names and
// namespaced as input_args__; keyword arguments as input_kwargs__. Each
// output tuple element becomes output__<pos>, or output__<pos>_<key> per
// key when the element is a mapping. Output arity is free to differ
// between recordings of the same function.
func BuildRow(fn Function, args []any, kwargs map[string]any, outputs []any, start, end time.Time) (Row, error) {
	recordedAt := start.UTC().Truncate(time.Second).Format(TimeFormat)
	row := Row{
		ColRecordingID:   uuid.NewString(),
		ColRecordedAt:    recordedAt,
		ColEvaluatedAt:   recordedAt,
		ColFunctionName:  fn.Name,
		ColExecutionTime: end.Sub(start).Seconds(),
		ColEvaluation:    "",
	}

	for i, v := range args {
		name := fn.paramName(i)
		col := PrefixArgs + name
		if _, dup := row[col]; dup {
			return nil, fmt.Errorf("duplicate positional parameter name %q", name)
		}
		row[col] = v
	}
	for name, v := range kwargs {
		row[PrefixKwargs+name] = v
	}

	for i, item := range outputs {
		if m, ok := item.(map[string]any); ok {
			for k, v := range m {
				row[OutputAddress{Position: i + 1, Key: k}.Column()] = v
			}
			continue
		}
		row[OutputAddress{Position: i + 1}.Column()] = item
	}
	return row, nil
}

func (f Function) paramName(i int) string {
	if i < len(f.Params) {
		return f.Params[i]
	}
	return "arg" + strconv.Itoa(i+1)
}
