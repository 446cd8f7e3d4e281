package agent

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmalloy/sitejudge/api/schemas"
)

func TestRecorderSystemPromptTimestamp(t *testing.T) {
	now := time.Date(2026, 8, 29, 14, 30, 0, 0, time.UTC)
	prompt := RecorderSystemPrompt(now, "")

	assert.Contains(t, prompt, "Current time: 2026-08-29 14:30:00 UTC")
	assert.Contains(t, prompt, "store_observation")
	assert.Contains(t, prompt, "conclude")
	assert.NotContains(t, prompt, "CRITICAL HIGHEST PRIORITY")
}

func TestRecorderSystemPromptInstructionPriority(t *testing.T) {
	prompt := RecorderSystemPrompt(time.Now(), "Close the sign-in modal first.")

	assert.Contains(t, prompt, "CRITICAL HIGHEST PRIORITY INSTRUCTIONS")
	// Overrides come before the base protocol.
	assert.Less(t,
		strings.Index(prompt, "Close the sign-in modal first."),
		strings.Index(prompt, "Recording Protocol"),
	)
}

func TestWebsiteInstructionsOverride(t *testing.T) {
	assert.Contains(t, WebsiteInstructions("skyscanner", ""), "press_and_hold")
	assert.Equal(t, "custom", WebsiteInstructions("skyscanner", "custom"))
	assert.Empty(t, WebsiteInstructions("unknown_site", ""))
}

func TestRatingRubricCarriesEveryLabel(t *testing.T) {
	for r := schemas.RatingTerrible; r <= schemas.RatingExcellent; r++ {
		assert.Contains(t, ratingRubric, fmt.Sprintf("%d - %s", int(r), r))
	}
	assert.Contains(t, ratingRubric, "Very Bad")
	assert.Contains(t, ratingRubric, "Neutral")
}

func TestFeaturePrompts(t *testing.T) {
	cases := []struct {
		feature schemas.Feature
		want    []string
	}{
		{schemas.FeatureAutocomplete, []string{"auto-complete", "Zurich", "typo"}},
		{schemas.FeatureRelevanceOfTopListings, []string{"Zurich", "2026-09-20", "2026-09-23", "Intent Alignment Check"}},
		{schemas.FeatureFivePartnersPerHotel, []string{">= 5 partners", "first 10 hotels"}},
		{schemas.FeatureMapExperience, []string{"Hotel clustering", "expand button"}},
	}

	for _, tc := range cases {
		t.Run(string(tc.feature), func(t *testing.T) {
			prompt, err := FeaturePrompt(tc.feature, "Zurich", "2026-09-20", "2026-09-23")
			require.NoError(t, err)
			for _, want := range tc.want {
				assert.Contains(t, prompt, want)
			}
		})
	}
}

func TestFeaturePromptUnknown(t *testing.T) {
	_, err := FeaturePrompt(schemas.Feature("checkout_flow"), "Zurich", "", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown feature")
}

func TestComparisonPromptStructure(t *testing.T) {
	prompt := ComparisonPrompt(schemas.FeatureFivePartnersPerHotel, "the checks", sampleRecordings())

	assert.Contains(t, prompt, "Feature: Five Partners Per Hotel")
	assert.Contains(t, prompt, "Website 1: https://www.booking.com")
	assert.Contains(t, prompt, "Website 2: https://www.skyscanner.net/hotels")
	assert.Contains(t, prompt, "Results 2: Error:")
}

func TestRecordingTask(t *testing.T) {
	task := RecordingTask("https://www.agoda.com", "do the checks")
	assert.Contains(t, task, "Navigate to https://www.agoda.com")
	assert.Contains(t, task, "do the checks")
}
