package recordings

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/codebuildervaibhav/speech-coach/internal/types"
)

const (
	recentLimit  = 5
	historyLimit = 500
)

// Dashboard summarizes a user's recordings.
type Dashboard struct {
	TotalRecordings    int                `json:"totalRecordings"`
	AnalyzedRecordings int                `json:"analyzedRecordings"`
	TotalDuration      float64            `json:"totalDuration"`
	AverageScore       float64            `json:"averageScore"`
	AveragePace        float64            `json:"averagePace"`
	TotalFillerWords   int                `json:"totalFillerWords"`
	Recent             []*types.Recording `json:"recentRecordings"`
}

// ProgressPoint is one analyzed recording on the progress timeline.
type ProgressPoint struct {
	RecordingID     string    `json:"recordingId"`
	Title           string    `json:"title"`
	Date            time.Time `json:"date"`
	OverallScore    float64   `json:"overallScore"`
	ConfidenceScore float64   `json:"confidenceScore"`
	PaceWPM         float64   `json:"paceWpm"`
	FillerWordCount int       `json:"fillerWordCount"`
}

// Dashboard computes totals, averages and the most recent recordings.
func (s *Service) Dashboard(ctx context.Context, userID string) (*Dashboard, error) {
	recs, err := s.List(ctx, userID, historyLimit)
	if err != nil {
		return nil, err
	}

	d := &Dashboard{
		TotalRecordings: len(recs),
		Recent:          make([]*types.Recording, 0, recentLimit),
	}
	var scoreSum, paceSum float64
	for _, r := range recs {
		d.TotalDuration += r.Duration
		if r.Analysis == nil {
			continue
		}
		d.AnalyzedRecordings++
		scoreSum += r.Analysis.OverallScore
		paceSum += r.Analysis.PaceWPM
		d.TotalFillerWords += r.Analysis.FillerWordCount
	}
	if d.AnalyzedRecordings > 0 {
		d.AverageScore = round1(scoreSum / float64(d.AnalyzedRecordings))
		d.AveragePace = round1(paceSum / float64(d.AnalyzedRecordings))
	}

	// List is newest first
	for i := 0; i < len(recs) && i < recentLimit; i++ {
		d.Recent = append(d.Recent, recs[i])
	}
	return d, nil
}

// History returns analyzed recordings oldest first.
func (s *Service) History(ctx context.Context, userID string) ([]ProgressPoint, error) {
	recs, err := s.List(ctx, userID, historyLimit)
	if err != nil {
		return nil, err
	}

	points := make([]ProgressPoint, 0, len(recs))
	for _, r := range recs {
		if r.Analysis == nil {
			continue
		}
		points = append(points, ProgressPoint{
			RecordingID:     r.ID,
			Title:           r.Title,
			Date:            r.Date,
			OverallScore:    r.Analysis.OverallScore,
			ConfidenceScore: r.Analysis.ConfidenceScore,
			PaceWPM:         r.Analysis.PaceWPM,
			FillerWordCount: r.Analysis.FillerWordCount,
		})
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
	return points, nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
