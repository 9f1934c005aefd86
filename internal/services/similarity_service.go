package services

import (
	"context"

	paramount "github.com/fini-ai/paramount"
	"github.com/fini-ai/paramount/internal/similarity"
	"github.com/fini-ai/paramount/internal/utils"
)

type SimilarityService interface {
	// Score compares one output column against its test_ counterpart
	// across rows, returning cosine similarities aligned to row order.
	Score(ctx context.Context, records []paramount.Row, outputCol string) ([]float64, error)
}

type similarityService struct{}

func NewSimilarityService() SimilarityService {
	return similarityService{}
}

func (similarityService) Score(_ context.Context, records []paramount.Row, outputCol string) ([]float64, error) {
	const op = "SimilarityService.Score"

	if outputCol == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "output_col_to_be_tested is required", nil)
	}
	testCol := paramount.PrefixTest + outputCol

	groundTruth := make([]string, len(records))
	test := make([]string, len(records))
	for i, row := range records {
		gt, ok := row[outputCol]
		if !ok {
			return nil, utils.E(utils.CodeInvalidArgument, op, "record is missing column "+outputCol, nil)
		}
		tv, ok := row[testCol]
		if !ok {
			return nil, utils.E(utils.CodeInvalidArgument, op, "record is missing column "+testCol, nil)
		}
		// Outputs may be numeric or structured; comparison is on text.
		groundTruth[i] = Stringify(gt)
		test[i] = Stringify(tv)
	}

	return similarity.Scores(groundTruth, test), nil
}
