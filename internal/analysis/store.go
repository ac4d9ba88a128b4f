// internal/analysis/store.go
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"restaurant-insights/internal/common/cache"
	"restaurant-insights/internal/common/config"
	"restaurant-insights/internal/common/logger"
	"restaurant-insights/internal/common/metrics"
	"restaurant-insights/internal/genai"
	"restaurant-insights/internal/models"

	apperrors "restaurant-insights/internal/common/errors"
)

// fingerprintReviews caps how many reviews contribute to the cache key.
// Beyond the first ten, review sets that differ only in the tail are close
// enough to share an analysis.
const (
	fingerprintReviews  = 10
	fingerprintTextSize = 100
)

const analysisPromptTemplate = `Analyze the following restaurant reviews and provide insights in JSON format.

Reviews:
%s
Respond with ONLY valid JSON in this exact format:
{
    "cuisine_type": "Type of cuisine served",
    "ambience": "Description of the atmosphere and setting",
    "highlights": ["Up to 5 positive points customers mention"],
    "complaints": ["Up to 4 negative points or concerns"],
    "overall_sentiment": "Overall customer sentiment",
    "price_range": "Price level customers describe",
    "best_dishes": ["Up to 3 dishes customers recommend"],
    "service_quality": "Description of the service quality"
}

Be concise and focus on the most important insights.`

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	// Greedy on purpose: models wrap JSON in prose or markdown fences, and
	// the outermost braces bound the document.
	jsonDocumentRe = regexp.MustCompile(`(?s)\{.*\}`)
)

// TextGenerator is the slice of the generative client the store depends on.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (*genai.ModelResponse, error)
}

// cachedAnalysis is the cache entry payload for one review fingerprint.
type cachedAnalysis struct {
	Analysis       models.AnalysisResult `json:"analysis"`
	ReviewCount    int                   `json:"reviewCount"`
	RestaurantName string                `json:"restaurantName"`
}

// Store produces structured analyses from review sets. Results are cached
// by review fingerprint; when the generative endpoint cannot be reached or
// returns unusable output, a deterministic keyword analysis takes its place
// and is cached the same way, flagged as fallback.
type Store struct {
	generator  TextGenerator
	cache      cache.Store
	ttl        time.Duration
	maxReviews int
	logger     logger.Logger

	now func() time.Time
}

func NewStore(generator TextGenerator, cacheStore cache.Store, cfg config.AnalysisConfig, log logger.Logger) *Store {
	return &Store{
		generator:  generator,
		cache:      cacheStore,
		ttl:        cfg.CacheTTL,
		maxReviews: cfg.MaxReviews,
		logger:     log.With(map[string]interface{}{"component": "analysis"}),
		now:        time.Now,
	}
}

// AnalyzeReviews returns the structured analysis for a review set, from
// cache when a fresh entry exists. An unreachable model degrades to the
// fallback analyzer rather than failing the call.
func (s *Store) AnalyzeReviews(ctx context.Context, reviews []models.Review, restaurantName string) (*models.AnalysisOutcome, error) {
	if len(reviews) == 0 {
		return nil, apperrors.NewInvalidInputError("no reviews provided for analysis")
	}

	key := Fingerprint(reviews)
	if cached, ok := s.cachedResult(ctx, key); ok {
		s.logger.Info("using cached analysis", map[string]interface{}{"fingerprint": key})
		return &models.AnalysisOutcome{
			Analysis:       cached.Analysis,
			FromCache:      true,
			ReviewCount:    len(reviews),
			RestaurantName: restaurantName,
		}, nil
	}

	prompt, included := s.buildPrompt(reviews)
	if included == 0 {
		return nil, apperrors.NewInvalidInputError("no valid review text found")
	}

	s.logger.Info("analyzing reviews", map[string]interface{}{
		"reviewCount":    len(reviews),
		"restaurantName": restaurantName,
	})

	analysis := s.generate(ctx, prompt, reviews)
	s.persist(ctx, key, analysis, len(reviews), restaurantName)
	metrics.AnalysesCompleted.WithLabelValues(strconv.FormatBool(analysis.UsedFallback)).Inc()

	return &models.AnalysisOutcome{
		Analysis:       analysis,
		FromCache:      false,
		ReviewCount:    len(reviews),
		RestaurantName: restaurantName,
	}, nil
}

func (s *Store) generate(ctx context.Context, prompt string, reviews []models.Review) models.AnalysisResult {
	resp, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		s.logger.Warn("generative endpoint failed, using fallback analysis", map[string]interface{}{
			"error": err.Error(),
		})
		return FallbackAnalysis(reviews)
	}

	analysis, ok := s.processResponse(resp)
	if !ok {
		s.logger.Warn("unusable model response, using fallback analysis", nil)
		return FallbackAnalysis(reviews)
	}
	return analysis
}

// Fingerprint derives a stable cache key from the first ten reviews' text
// prefixes and ratings. Order-sensitive: the same reviews reordered key
// differently.
func Fingerprint(reviews []models.Review) string {
	limit := len(reviews)
	if limit > fingerprintReviews {
		limit = fingerprintReviews
	}

	h := fnv.New64a()
	for _, review := range reviews[:limit] {
		text := review.Text
		if runes := []rune(text); len(runes) > fingerprintTextSize {
			text = string(runes[:fingerprintTextSize])
		}
		h.Write([]byte(text))
		h.Write([]byte(strconv.Itoa(review.Rating)))
	}
	return strconv.FormatUint(h.Sum64(), 16)
}

// buildPrompt numbers every review by its input position; short reviews are
// skipped but keep their slot in the numbering.
func (s *Store) buildPrompt(reviews []models.Review) (string, int) {
	limit := len(reviews)
	if s.maxReviews > 0 && limit > s.maxReviews {
		limit = s.maxReviews
	}

	var builder strings.Builder
	included := 0
	for i, review := range reviews[:limit] {
		text := strings.TrimSpace(review.Text)
		if utf8.RuneCountInString(text) <= models.MinReviewTextLength {
			continue
		}
		text = whitespaceRe.ReplaceAllString(text, " ")
		fmt.Fprintf(&builder, "Review %d (Rating: %d/5): %s\n\n", i+1, review.Rating, text)
		included++
	}
	return fmt.Sprintf(analysisPromptTemplate, builder.String()), included
}

type rawAnalysis struct {
	CuisineType      *string  `json:"cuisine_type"`
	Ambience         *string  `json:"ambience"`
	Highlights       []string `json:"highlights"`
	Complaints       []string `json:"complaints"`
	OverallSentiment *string  `json:"overall_sentiment"`
	PriceRange       *string  `json:"price_range"`
	BestDishes       []string `json:"best_dishes"`
	ServiceQuality   *string  `json:"service_quality"`
}

// processResponse extracts and cleans the model's JSON. The extraction
// tries the outermost brace-bounded document first, then the whole text.
func (s *Store) processResponse(resp *genai.ModelResponse) (models.AnalysisResult, bool) {
	text := resp.Text()
	if text == "" {
		s.logger.Warn("no candidate text in model response", nil)
		return models.AnalysisResult{}, false
	}

	if doc := jsonDocumentRe.FindString(text); doc != "" {
		if analysis, ok := s.parseDocument(doc); ok {
			return analysis, true
		}
	}
	return s.parseDocument(text)
}

func (s *Store) parseDocument(doc string) (models.AnalysisResult, bool) {
	if err := validateAnalysisJSON(doc); err != nil {
		s.logger.Warn("model JSON rejected", map[string]interface{}{"error": err.Error()})
		return models.AnalysisResult{}, false
	}
	var raw rawAnalysis
	if err := json.Unmarshal([]byte(doc), &raw); err != nil {
		return models.AnalysisResult{}, false
	}
	return cleanAnalysis(raw), true
}

// cleanAnalysis applies field defaults and list caps so downstream
// consumers never see missing or oversized fields.
func cleanAnalysis(raw rawAnalysis) models.AnalysisResult {
	return models.AnalysisResult{
		CuisineType:      stringOr(raw.CuisineType, "Not specified"),
		Ambience:         stringOr(raw.Ambience, "Not described"),
		Highlights:       cleanList(raw.Highlights, models.MaxHighlights),
		Complaints:       cleanList(raw.Complaints, models.MaxComplaints),
		OverallSentiment: stringOr(raw.OverallSentiment, "Mixed"),
		PriceRange:       stringOr(raw.PriceRange, "Not mentioned"),
		BestDishes:       cleanList(raw.BestDishes, models.MaxBestDishes),
		ServiceQuality:   stringOr(raw.ServiceQuality, "Not mentioned"),
	}
}

func stringOr(value *string, fallback string) string {
	if value == nil {
		return fallback
	}
	return *value
}

func cleanList(items []string, max int) []string {
	cleaned := make([]string, 0, max)
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		cleaned = append(cleaned, item)
		if len(cleaned) == max {
			break
		}
	}
	return cleaned
}

func (s *Store) cachedResult(ctx context.Context, key string) (cachedAnalysis, bool) {
	entry, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn("analysis cache read failed", map[string]interface{}{
			"fingerprint": key,
			"error":       err.Error(),
		})
		return cachedAnalysis{}, false
	}
	if !ok {
		metrics.CacheReads.WithLabelValues("analysis", "miss").Inc()
		return cachedAnalysis{}, false
	}
	if entry.Expired(s.now(), s.ttl) {
		metrics.CacheReads.WithLabelValues("analysis", "expired").Inc()
		return cachedAnalysis{}, false
	}

	var cached cachedAnalysis
	if err := entry.Decode(&cached); err != nil {
		s.logger.Warn("corrupt analysis cache entry", map[string]interface{}{
			"fingerprint": key,
			"error":       err.Error(),
		})
		return cachedAnalysis{}, false
	}
	metrics.CacheReads.WithLabelValues("analysis", "hit").Inc()
	return cached, true
}

func (s *Store) persist(ctx context.Context, key string, analysis models.AnalysisResult, reviewCount int, restaurantName string) {
	entry, err := cache.NewEntry(key, cachedAnalysis{
		Analysis:       analysis,
		ReviewCount:    reviewCount,
		RestaurantName: restaurantName,
	}, s.now())
	if err != nil {
		s.logger.Error("failed to encode analysis cache entry", map[string]interface{}{"error": err.Error()})
		return
	}
	if err := s.cache.Put(ctx, entry); err != nil {
		s.logger.Error("failed to persist analysis cache", map[string]interface{}{
			"fingerprint": key,
			"error":       err.Error(),
		})
	}
}

// ClearCache removes one fingerprint's entry, or every entry when key is empty.
func (s *Store) ClearCache(ctx context.Context, key string) error {
	if key != "" {
		return s.cache.Delete(ctx, key)
	}
	return s.cache.Clear(ctx)
}

// CacheDiagnostics reports analysis cache size and how many entries are
// past TTL. Expired entries are counted, never removed here.
func (s *Store) CacheDiagnostics(ctx context.Context) (models.CacheDiagnostics, error) {
	entries, err := s.cache.Entries(ctx)
	if err != nil {
		return models.CacheDiagnostics{}, err
	}

	diag := models.CacheDiagnostics{TotalEntries: len(entries)}
	now := s.now()
	for _, entry := range entries {
		if entry.Expired(now, s.ttl) {
			diag.ExpiredEntries++
		}
		var cached cachedAnalysis
		if err := entry.Decode(&cached); err == nil {
			diag.TotalReviews += cached.ReviewCount
		}
	}
	return diag, nil
}
