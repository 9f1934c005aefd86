package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	paramount "github.com/fini-ai/paramount"
	"github.com/fini-ai/paramount/internal/utils"
	"github.com/sirupsen/logrus"
)

// ReplayError is a structured replay failure: the remote status and body.
// It is a value, not a raised error, so one failed replay in a batch never
// aborts the rest.
type ReplayError struct {
	Status int    `json:"status"`
	Body   string `json:"body"`
}

// ReplayResult carries the remote result tuple plus the stringified value
// of every requested output column, keyed test_<output column>.
type ReplayResult struct {
	Result      []any             `json:"result"`
	TestColumns map[string]string `json:"test_columns"`
	Error       *ReplayError      `json:"error,omitempty"`
}

type ReplayService interface {
	// Infer re-invokes the recorded function at its remote endpoint with
	// the row's reconstructed arguments and re-aligns the result onto the
	// requested output columns.
	Infer(ctx context.Context, row paramount.Row, outputCols []string) (*ReplayResult, error)
}

type replayService struct {
	baseURL string
	client  *http.Client
	log     *logrus.Logger
}

func NewReplayService(baseURL string, timeout time.Duration, log *logrus.Logger) ReplayService {
	return &replayService{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		log:     log,
	}
}

func (s *replayService) Infer(ctx context.Context, row paramount.Row, outputCols []string) (*ReplayResult, error) {
	const op = "ReplayService.Infer"

	name, _ := row[paramount.ColFunctionName].(string)
	if name == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "record is missing "+paramount.ColFunctionName, nil)
	}
	addrs := make(map[string]paramount.OutputAddress, len(outputCols))
	for _, col := range outputCols {
		addr, err := paramount.ParseOutputColumn(col)
		if err != nil {
			return nil, utils.E(utils.CodeInvalidArgument, op, "invalid output column", err)
		}
		addrs[col] = addr
	}

	payload := paramount.InvokeRequest{
		Args:   row.ValuesWithPrefix(paramount.PrefixArgs),
		Kwargs: row.ValuesWithPrefix(paramount.PrefixKwargs),
	}
	result, replayErr := s.invoke(ctx, name, payload)
	if replayErr != nil {
		return &ReplayResult{Error: replayErr, TestColumns: map[string]string{}}, nil
	}

	test := make(map[string]string, len(outputCols))
	for col, addr := range addrs {
		v, err := addr.Extract(result)
		if err != nil {
			// A result narrower than the recording is scored as empty,
			// not fatal for the batch.
			s.log.WithError(err).WithFields(logrus.Fields{
				"function": name,
				"column":   col,
			}).Warn("replayed result does not cover output column")
			test[paramount.PrefixTest+col] = ""
			continue
		}
		test[paramount.PrefixTest+col] = Stringify(v)
	}
	return &ReplayResult{Result: result, TestColumns: test}, nil
}

// invoke performs the remote call. All transport-level failures come back
// as a ReplayError value.
func (s *replayService) invoke(ctx context.Context, name string, payload paramount.InvokeRequest) ([]any, *ReplayError) {
	endpoint := s.baseURL + "/paramount_functions/" + name
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &ReplayError{Status: 0, Body: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &ReplayError{Status: 0, Body: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.log.WithError(err).WithField("function", name).Warn("replay request failed")
		return nil, &ReplayError{Status: 0, Body: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ReplayError{Status: resp.StatusCode, Body: err.Error()}
	}
	if resp.StatusCode != http.StatusOK {
		s.log.WithFields(logrus.Fields{
			"function": name,
			"status":   resp.StatusCode,
		}).Warn("replay endpoint returned error")
		return nil, &ReplayError{Status: resp.StatusCode, Body: string(raw)}
	}

	var result []any
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, &ReplayError{Status: resp.StatusCode, Body: "unexpected response shape: " + err.Error()}
	}
	return result, nil
}

// Stringify coerces a replayed or recorded value to its string form for
// similarity comparison.
func Stringify(v any) string {
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
