package services

import (
	"context"
	"testing"

	paramount "github.com/fini-ai/paramount"
	"github.com/fini-ai/paramount/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimilarityScore(t *testing.T) {
	svc := NewSimilarityService()
	records := []paramount.Row{
		{"output__1": "the answer is yes", "test_output__1": "the answer is yes"},
		{"output__1": "alpha beta gamma", "test_output__1": "delta epsilon zeta"},
	}

	scores, err := svc.Score(context.Background(), records, "output__1")
	require.NoError(t, err)
	require.Len(t, scores, 2)
	assert.InDelta(t, 1.0, scores[0], 1e-9)
	assert.Zero(t, scores[1])
}

func TestSimilarityScoreStructuredValues(t *testing.T) {
	svc := NewSimilarityService()
	records := []paramount.Row{
		{"output__2_answer": map[string]any{"answer": "yes"}, "test_output__2_answer": `{"answer":"yes"}`},
	}

	scores, err := svc.Score(context.Background(), records, "output__2_answer")
	require.NoError(t, err)
	require.Len(t, scores, 1)
	assert.InDelta(t, 1.0, scores[0], 1e-9)
}

func TestSimilarityScoreValidation(t *testing.T) {
	svc := NewSimilarityService()
	ctx := context.Background()

	_, err := svc.Score(ctx, nil, "")
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))

	_, err = svc.Score(ctx, []paramount.Row{{"test_output__1": "x"}}, "output__1")
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument), "missing ground truth column")

	_, err = svc.Score(ctx, []paramount.Row{{"output__1": "x"}}, "output__1")
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument), "missing test column")
}
