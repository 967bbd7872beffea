package recordings

import (
	"time"

	"github.com/codebuildervaibhav/speech-coach/internal/types"
)

// SampleRecordings returns the demo recordings shown to new users.
func SampleRecordings() []*types.Recording {
	return []*types.Recording{
		{
			ID:       "rec123",
			Title:    "AI Presentation",
			Date:     time.Date(2023, 9, 15, 14, 30, 0, 0, time.UTC),
			Duration: 45,
			IsVideo:  true,
			Source:   types.SourceSample,
			Status:   types.StatusAnalyzed,
			Analysis: &types.SpeechAnalysisResult{
				FillerWordCount: 4,
				FillerWords:     []types.FillerWord{{Word: "um", Count: 2}, {Word: "like", Count: 1}, {Word: "you know", Count: 1}},
				PaceWPM:         125,
				PaceRating:      types.PaceGood,
				GrammarIssues:   []types.GrammarIssue{{Text: "like, you know,", Suggestion: "such as", Position: [2]int{91, 103}}},
				ConfidenceScore: 82,
				OverallScore:    80,
				Feedback:        "Your speech was well-structured with a clear introduction, body, and conclusion. Try to minimize filler words like 'um' and 'you know'.",
			},
		},
		{
			ID:       "rec456",
			Title:    "Team Meeting Introduction",
			Date:     time.Date(2023, 9, 10, 9, 15, 0, 0, time.UTC),
			Duration: 30,
			IsVideo:  true,
			Source:   types.SourceSample,
			Status:   types.StatusAnalyzed,
			Analysis: &types.SpeechAnalysisResult{
				FillerWordCount: 2,
				FillerWords:     []types.FillerWord{{Word: "um", Count: 1}, {Word: "so", Count: 1}},
				PaceWPM:         110,
				PaceRating:      types.PaceGood,
				GrammarIssues:   []types.GrammarIssue{},
				ConfidenceScore: 88,
				OverallScore:    85,
				Feedback:        "Great job on your team introduction! Your pace was appropriate and you maintained good clarity throughout.",
			},
		},
		{
			ID:       "rec789",
			Title:    "Product Pitch",
			Date:     time.Date(2023, 9, 5, 16, 45, 0, 0, time.UTC),
			Duration: 60,
			IsVideo:  true,
			Source:   types.SourceSample,
			Status:   types.StatusAnalyzed,
			Analysis: &types.SpeechAnalysisResult{
				FillerWordCount: 8,
				FillerWords:     []types.FillerWord{{Word: "um", Count: 3}, {Word: "like", Count: 2}, {Word: "actually", Count: 3}},
				PaceWPM:         145,
				PaceRating:      types.PaceFast,
				GrammarIssues:   []types.GrammarIssue{{Text: "me and my team", Suggestion: "my team and I", Position: [2]int{45, 58}}},
				ConfidenceScore: 75,
				OverallScore:    70,
				Feedback:        "Your product pitch contained valuable information, but was delivered too quickly. Try to slow down and reduce filler words to improve clarity.",
			},
		},
	}
}
