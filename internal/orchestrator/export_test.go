// internal/orchestrator/export_test.go
package orchestrator

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restaurant-insights/internal/models"

	apperrors "restaurant-insights/internal/common/errors"
)

func exportableResult() *models.CombinedResult {
	return &models.CombinedResult{
		PlaceID:        testPlaceID,
		RestaurantName: "Trattoria Da Enzo",
		ReviewMetadata: models.ReviewMetadata{
			TotalReviews:     5,
			AggregateRating:  4.65,
			TotalRatingCount: 812,
			FromCache:        true,
		},
		Analysis: models.AnalysisResult{
			CuisineType:      "Italian",
			Ambience:         "Cozy candle-lit room",
			Highlights:       []string{"Fresh pasta", "Attentive staff"},
			Complaints:       []string{"Cramped seating"},
			OverallSentiment: "Very positive",
			PriceRange:       "$$ - Moderate",
			BestDishes:       []string{"Carbonara", "Tiramisu"},
			ServiceQuality:   "Excellent",
		},
		CompletedAt: time.Date(2026, 8, 25, 18, 30, 0, 0, time.UTC),
	}
}

func TestExportText(t *testing.T) {
	report, err := ExportText(exportableResult())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(report, "Restaurant Analysis Report\n==========================\n"))
	assert.Contains(t, report, "Restaurant: Trattoria Da Enzo")
	assert.Contains(t, report, "Overall Rating: 4.6/5.0")
	assert.Contains(t, report, "Reviews Analyzed: 5")
	assert.Contains(t, report, "Review Source: cache")
	assert.Contains(t, report, "Analysis Source: live")
	assert.Contains(t, report, "Generated: 2026-08-25 18:30:00")

	for _, header := range []string{
		"Cuisine & Atmosphere",
		"Customer Highlights",
		"Main Complaints",
		"Recommended Dishes",
		"Service Quality",
		"Overall Sentiment",
	} {
		assert.Contains(t, report, "\n"+header+"\n"+strings.Repeat("-", len(header))+"\n")
	}

	assert.Contains(t, report, "• Fresh pasta\n• Attentive staff")
	assert.Contains(t, report, "• Cramped seating")
	assert.Contains(t, report, "Carbonara, Tiramisu")
	assert.False(t, strings.HasSuffix(report, "\n"), "trailing newlines are trimmed")
}

func TestExportText_EmptySections(t *testing.T) {
	result := exportableResult()
	result.Analysis.Highlights = nil
	result.Analysis.BestDishes = nil

	report, err := ExportText(result)
	require.NoError(t, err)
	assert.Contains(t, report, "Customer Highlights\n-------------------\nNone mentioned")
	assert.Contains(t, report, "Recommended Dishes\n------------------\nNot mentioned")
}

func TestExportJSON(t *testing.T) {
	out, err := ExportJSON(exportableResult())
	require.NoError(t, err)

	var decoded models.CombinedResult
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "Trattoria Da Enzo", decoded.RestaurantName)
	assert.Equal(t, []string{"Carbonara", "Tiramisu"}, decoded.Analysis.BestDishes)
	assert.True(t, strings.HasPrefix(out, "{\n  "), "output is indented")
}

func TestExport_NilResult(t *testing.T) {
	_, err := ExportText(nil)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.CodeOf(err))

	_, err = ExportJSON(nil)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.CodeOf(err))
}
