// internal/models/analysis.go
package models

import "time"

// Caps applied to the list fields of an analysis, matching the prompt's
// instructions to the model.
const (
	MaxHighlights = 5
	MaxComplaints = 4
	MaxBestDishes = 3
)

// AnalysisResult is the structured outcome of review analysis, produced
// either by the generative model or by the deterministic fallback analyzer.
type AnalysisResult struct {
	CuisineType      string   `json:"cuisineType"`
	Ambience         string   `json:"ambience"`
	Highlights       []string `json:"highlights"`
	Complaints       []string `json:"complaints"`
	OverallSentiment string   `json:"overallSentiment"`
	PriceRange       string   `json:"priceRange"`
	BestDishes       []string `json:"bestDishes"`
	ServiceQuality   string   `json:"serviceQuality"`
	UsedFallback     bool     `json:"usedFallback"`
}

// AnalysisOutcome is what the summary store hands back to callers.
type AnalysisOutcome struct {
	Analysis       AnalysisResult `json:"analysis"`
	FromCache      bool           `json:"fromCache"`
	ReviewCount    int            `json:"reviewCount"`
	RestaurantName string         `json:"restaurantName,omitempty"`
}

// ReviewMetadata carries the review-fetch facts alongside a combined result.
type ReviewMetadata struct {
	TotalReviews     int     `json:"totalReviews"`
	AggregateRating  float64 `json:"aggregateRating"`
	TotalRatingCount int     `json:"totalRatingCount"`
	FromCache        bool    `json:"fromCache"`
}

// CombinedResult is the terminal output of one orchestrated analysis run.
type CombinedResult struct {
	PlaceID           string         `json:"placeId"`
	RestaurantName    string         `json:"restaurantName"`
	ReviewMetadata    ReviewMetadata `json:"reviewMetadata"`
	Analysis          AnalysisResult `json:"analysis"`
	AnalysisFromCache bool           `json:"analysisFromCache"`
	CompletedAt       time.Time      `json:"completedAt"`
}
