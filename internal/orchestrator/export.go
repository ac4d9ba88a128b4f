// internal/orchestrator/export.go
package orchestrator

import (
	"encoding/json"
	"fmt"
	"strings"

	"restaurant-insights/internal/models"

	apperrors "restaurant-insights/internal/common/errors"
)

// ExportJSON renders a result as indented JSON.
func ExportJSON(result *models.CombinedResult) (string, error) {
	if result == nil {
		return "", apperrors.NewInvalidInputError("no analysis result to export")
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", apperrors.NewUnexpectedError(err)
	}
	return string(data), nil
}

// ExportText renders a result as a fixed-layout plain-text report.
func ExportText(result *models.CombinedResult) (string, error) {
	if result == nil {
		return "", apperrors.NewInvalidInputError("no analysis result to export")
	}

	analysis := result.Analysis
	var b strings.Builder

	section := func(title string) {
		b.WriteString("\n")
		b.WriteString(title)
		b.WriteString("\n")
		b.WriteString(strings.Repeat("-", len(title)))
		b.WriteString("\n")
	}

	b.WriteString("Restaurant Analysis Report\n")
	b.WriteString("==========================\n\n")
	fmt.Fprintf(&b, "Restaurant: %s\n", result.RestaurantName)
	fmt.Fprintf(&b, "Overall Rating: %.1f/5.0\n", result.ReviewMetadata.AggregateRating)
	fmt.Fprintf(&b, "Reviews Analyzed: %d\n", result.ReviewMetadata.TotalReviews)
	fmt.Fprintf(&b, "Review Source: %s\n", sourceLabel(result.ReviewMetadata.FromCache))
	fmt.Fprintf(&b, "Analysis Source: %s\n", sourceLabel(result.AnalysisFromCache))
	fmt.Fprintf(&b, "Generated: %s\n", result.CompletedAt.Format("2006-01-02 15:04:05"))

	section("Cuisine & Atmosphere")
	fmt.Fprintf(&b, "Cuisine Type: %s\n", analysis.CuisineType)
	fmt.Fprintf(&b, "Price Range: %s\n", analysis.PriceRange)
	fmt.Fprintf(&b, "Ambience: %s\n", analysis.Ambience)

	section("Customer Highlights")
	b.WriteString(bulletList(analysis.Highlights))

	section("Main Complaints")
	b.WriteString(bulletList(analysis.Complaints))

	section("Recommended Dishes")
	if len(analysis.BestDishes) == 0 {
		b.WriteString("Not mentioned\n")
	} else {
		b.WriteString(strings.Join(analysis.BestDishes, ", "))
		b.WriteString("\n")
	}

	section("Service Quality")
	fmt.Fprintf(&b, "%s\n", analysis.ServiceQuality)

	section("Overall Sentiment")
	fmt.Fprintf(&b, "%s\n", analysis.OverallSentiment)

	return strings.TrimRight(b.String(), "\n"), nil
}

func sourceLabel(fromCache bool) string {
	if fromCache {
		return "cache"
	}
	return "live"
}

func bulletList(items []string) string {
	if len(items) == 0 {
		return "None mentioned\n"
	}
	var b strings.Builder
	for _, item := range items {
		fmt.Fprintf(&b, "• %s\n", item)
	}
	return b.String()
}
