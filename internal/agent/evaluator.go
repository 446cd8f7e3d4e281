package agent

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kmalloy/sitejudge/api/schemas"
)

// Evaluator is the tool-less QualityEvaluator. It reads all site recordings
// for a feature and produces the markdown comparison.
type Evaluator struct {
	llm    schemas.LLMClient
	logger *zap.Logger
	now    func() time.Time
}

// NewEvaluator builds a comparison evaluator.
func NewEvaluator(llm schemas.LLMClient, logger *zap.Logger) *Evaluator {
	return &Evaluator{
		llm:    llm,
		logger: logger.Named("evaluator"),
		now:    time.Now,
	}
}

// Compare rates the feature across all recorded sites and renders the
// checks-by-websites table with the 1-7 rubric.
func (e *Evaluator) Compare(ctx context.Context, feature schemas.Feature, featureInstruction string, recordings []schemas.SiteRecording) (*schemas.ComparisonReport, error) {
	if len(recordings) == 0 {
		return nil, fmt.Errorf("no recordings to compare for feature %s", feature)
	}

	e.logger.Info("Generating comparison analysis.",
		zap.String("feature", string(feature)),
		zap.Int("recordings", len(recordings)),
	)

	markdown, err := e.llm.Generate(ctx, schemas.GenerationRequest{
		SystemPrompt: EvaluatorSystemPrompt(),
		UserPrompt:   ComparisonPrompt(feature, featureInstruction, recordings),
		Tier:         schemas.TierPowerful,
	})
	if err != nil {
		return nil, fmt.Errorf("comparison generation failed: %w", err)
	}

	websites := make([]string, 0, len(recordings))
	for _, rec := range recordings {
		websites = append(websites, rec.Website.Key)
	}

	return &schemas.ComparisonReport{
		Feature:     feature,
		Websites:    websites,
		Markdown:    markdown,
		GeneratedAt: e.now(),
	}, nil
}
