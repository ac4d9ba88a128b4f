// internal/analysis/fallback.go
package analysis

import (
	"strings"

	"restaurant-insights/internal/models"
)

// cuisineKeywords maps cuisine labels to signal words. Order matters: ties
// are resolved in favor of the earlier entry.
var cuisineKeywords = []struct {
	cuisine  string
	keywords []string
}{
	{"Italian", []string{"pizza", "pasta", "italian", "marinara", "parmesan", "lasagna", "risotto"}},
	{"Chinese", []string{"chinese", "noodles", "dim sum", "wok", "stir fry", "kung pao", "sweet sour"}},
	{"Mexican", []string{"mexican", "tacos", "burrito", "salsa", "guacamole", "quesadilla", "nachos"}},
	{"Japanese", []string{"sushi", "ramen", "japanese", "tempura", "miso", "sashimi", "teriyaki"}},
	{"American", []string{"burger", "fries", "bbq", "steak", "american", "wings", "sandwich"}},
	{"Indian", []string{"indian", "curry", "tandoor", "naan", "biryani", "masala", "spicy"}},
	{"Thai", []string{"thai", "pad thai", "coconut", "lemongrass", "curry", "tom yum"}},
	{"French", []string{"french", "croissant", "wine", "cheese", "baguette", "escargot"}},
}

var positiveWords = []string{
	"great", "excellent", "amazing", "delicious", "fantastic", "wonderful",
	"love", "best", "perfect", "outstanding", "incredible", "awesome",
}

var negativeWords = []string{
	"bad", "terrible", "awful", "horrible", "disgusting", "worst",
	"hate", "disappointing", "poor", "rude", "slow", "dirty",
}

// FallbackAnalysis produces a deterministic keyword-based analysis used
// whenever the generative endpoint is unavailable or returns unusable
// output. Same reviews always produce the same result.
func FallbackAnalysis(reviews []models.Review) models.AnalysisResult {
	if len(reviews) == 0 {
		return emptyAnalysis()
	}

	var builder strings.Builder
	for _, review := range reviews {
		builder.WriteString(strings.ToLower(review.Text))
		builder.WriteString(" ")
	}
	allText := builder.String()

	return models.AnalysisResult{
		CuisineType:      detectCuisine(allText),
		Ambience:         "Analysis temporarily unavailable due to high demand. Please try again later.",
		Highlights:       detectHighlights(allText),
		Complaints:       detectComplaints(allText),
		OverallSentiment: detectSentiment(allText),
		PriceRange:       detectPriceRange(allText),
		BestDishes:       []string{"Analysis unavailable"},
		ServiceQuality:   "Basic analysis: Check individual reviews for service details",
		UsedFallback:     true,
	}
}

func detectCuisine(allText string) string {
	detected := "Not specified"
	maxMatches := 0
	for _, entry := range cuisineKeywords {
		matches := 0
		for _, keyword := range entry.keywords {
			if strings.Contains(allText, keyword) {
				matches++
			}
		}
		if matches > maxMatches {
			maxMatches = matches
			detected = entry.cuisine
		}
	}
	return detected
}

func detectSentiment(allText string) string {
	positive := 0
	for _, word := range positiveWords {
		if strings.Contains(allText, word) {
			positive++
		}
	}
	negative := 0
	for _, word := range negativeWords {
		if strings.Contains(allText, word) {
			negative++
		}
	}

	switch {
	case positive > negative*2:
		return "Very positive"
	case positive > negative:
		return "Positive"
	case negative > positive:
		return "Mixed with concerns"
	default:
		return "Mixed"
	}
}

func detectHighlights(allText string) []string {
	var highlights []string
	if strings.Contains(allText, "great service") || strings.Contains(allText, "excellent service") {
		highlights = append(highlights, "Excellent customer service")
	}
	if strings.Contains(allText, "delicious food") || strings.Contains(allText, "amazing food") {
		highlights = append(highlights, "Delicious food")
	}
	if strings.Contains(allText, "good atmosphere") || strings.Contains(allText, "nice ambiance") {
		highlights = append(highlights, "Pleasant atmosphere")
	}
	if strings.Contains(allText, "good value") || strings.Contains(allText, "reasonable price") {
		highlights = append(highlights, "Good value for money")
	}
	if strings.Contains(allText, "friendly staff") {
		highlights = append(highlights, "Friendly staff")
	}
	if len(highlights) == 0 {
		highlights = []string{"Analysis unavailable - please try again later"}
	}
	if len(highlights) > models.MaxHighlights {
		highlights = highlights[:models.MaxHighlights]
	}
	return highlights
}

func detectComplaints(allText string) []string {
	var complaints []string
	if strings.Contains(allText, "slow service") {
		complaints = append(complaints, "Slow service")
	}
	if strings.Contains(allText, "expensive") || strings.Contains(allText, "overpriced") {
		complaints = append(complaints, "High prices")
	}
	if strings.Contains(allText, "noisy") || strings.Contains(allText, "loud") {
		complaints = append(complaints, "Noisy environment")
	}
	if strings.Contains(allText, "rude") {
		complaints = append(complaints, "Unfriendly service")
	}
	if strings.Contains(allText, "wait") && strings.Contains(allText, "long") {
		complaints = append(complaints, "Long wait times")
	}
	if len(complaints) == 0 {
		complaints = []string{"No major complaints identified"}
	}
	if len(complaints) > models.MaxComplaints {
		complaints = complaints[:models.MaxComplaints]
	}
	return complaints
}

func detectPriceRange(allText string) string {
	switch {
	case strings.Contains(allText, "expensive") || strings.Contains(allText, "pricey"):
		return "$$ - Expensive"
	case strings.Contains(allText, "cheap") || strings.Contains(allText, "affordable"):
		return "$ - Inexpensive"
	case strings.Contains(allText, "reasonable"):
		return "$ - Moderate"
	default:
		return "Not mentioned"
	}
}

func emptyAnalysis() models.AnalysisResult {
	return models.AnalysisResult{
		CuisineType:      "Not specified",
		Ambience:         "No reviews available for analysis",
		Highlights:       []string{"No reviews to analyze"},
		Complaints:       []string{"No reviews to analyze"},
		OverallSentiment: "No data available",
		PriceRange:       "Not available",
		BestDishes:       []string{"Not available"},
		ServiceQuality:   "No data available",
		UsedFallback:     true,
	}
}
