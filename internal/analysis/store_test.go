// internal/analysis/store_test.go
package analysis

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restaurant-insights/internal/common/cache"
	"restaurant-insights/internal/common/config"
	"restaurant-insights/internal/common/logger"
	"restaurant-insights/internal/genai"
	"restaurant-insights/internal/models"

	apperrors "restaurant-insights/internal/common/errors"
)

type fakeGenerator struct {
	text  string
	err   error
	calls int
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (*genai.ModelResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &genai.ModelResponse{
		Candidates: []genai.Candidate{
			{Content: genai.Content{Parts: []genai.Part{{Text: f.text}}}},
		},
	}, nil
}

const validModelJSON = `{
	"cuisine_type": "Italian",
	"ambience": "Cozy candle-lit room",
	"highlights": ["Fresh pasta", "Attentive staff"],
	"complaints": ["Cramped seating"],
	"overall_sentiment": "Very positive",
	"price_range": "$$ - Moderate",
	"best_dishes": ["Carbonara", "Tiramisu"],
	"service_quality": "Excellent"
}`

func testReviews() []models.Review {
	return []models.Review{
		{Text: "The carbonara here is absolutely fantastic", Rating: 5},
		{Text: "Cozy room, attentive staff, great pasta", Rating: 4},
		{Text: "A bit cramped but worth every minute", Rating: 4},
	}
}

func newAnalysisStore(t *testing.T, generator TextGenerator) *Store {
	t.Helper()
	fileStore := cache.NewFileStore(filepath.Join(t.TempDir(), "analysis.json"))
	return NewStore(generator, fileStore,
		config.AnalysisConfig{CacheTTL: 24 * time.Hour, MaxReviews: 30},
		logger.NewNoOpLogger(),
	)
}

func TestStore_AnalyzeReviews_ModelSuccess(t *testing.T) {
	ctx := context.Background()
	gen := &fakeGenerator{text: "Here is the analysis:\n" + validModelJSON + "\nHope this helps!"}
	store := newAnalysisStore(t, gen)

	outcome, err := store.AnalyzeReviews(ctx, testReviews(), "Trattoria Da Enzo")
	require.NoError(t, err)

	assert.False(t, outcome.FromCache)
	assert.False(t, outcome.Analysis.UsedFallback)
	assert.Equal(t, "Italian", outcome.Analysis.CuisineType)
	assert.Equal(t, []string{"Fresh pasta", "Attentive staff"}, outcome.Analysis.Highlights)
	assert.Equal(t, "Trattoria Da Enzo", outcome.RestaurantName)
	assert.Equal(t, 3, outcome.ReviewCount)
}

func TestStore_AnalyzeReviews_CachesByFingerprint(t *testing.T) {
	ctx := context.Background()
	gen := &fakeGenerator{text: validModelJSON}
	store := newAnalysisStore(t, gen)

	first, err := store.AnalyzeReviews(ctx, testReviews(), "Trattoria Da Enzo")
	require.NoError(t, err)
	assert.False(t, first.FromCache)

	second, err := store.AnalyzeReviews(ctx, testReviews(), "Trattoria Da Enzo")
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Analysis, second.Analysis)
	assert.Equal(t, 1, gen.calls, "cache hit must not call the model")
}

func TestStore_AnalyzeReviews_FallbackOnGeneratorError(t *testing.T) {
	ctx := context.Background()
	gen := &fakeGenerator{err: apperrors.NewGenAIUnavailableError("all configurations exhausted")}
	store := newAnalysisStore(t, gen)

	reviews := []models.Review{
		{Text: "Amazing pizza, love this place so much", Rating: 5},
		{Text: "Fresh pasta and delicious food overall", Rating: 5},
	}
	outcome, err := store.AnalyzeReviews(ctx, reviews, "Luigi's")
	require.NoError(t, err, "model failure degrades to fallback, not an error")

	assert.True(t, outcome.Analysis.UsedFallback)
	assert.Equal(t, "Italian", outcome.Analysis.CuisineType)
	assert.False(t, outcome.FromCache)

	// Fallback results are cached like real ones.
	cached, err := store.AnalyzeReviews(ctx, reviews, "Luigi's")
	require.NoError(t, err)
	assert.True(t, cached.FromCache)
	assert.True(t, cached.Analysis.UsedFallback)
	assert.Equal(t, 1, gen.calls)
}

func TestStore_AnalyzeReviews_FallbackOnUnusableResponse(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"no JSON at all", "I cannot analyze these reviews, sorry."},
		{"broken JSON", `{"cuisine_type": "Italian", "highlights": [`},
		{"wrong field types", `{"cuisine_type": 42, "highlights": "not a list"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{text: tt.text}
			store := newAnalysisStore(t, gen)

			outcome, err := store.AnalyzeReviews(context.Background(), testReviews(), "Anywhere")
			require.NoError(t, err)
			assert.True(t, outcome.Analysis.UsedFallback)
		})
	}
}

func TestStore_AnalyzeReviews_CleansPartialJSON(t *testing.T) {
	ctx := context.Background()
	gen := &fakeGenerator{text: `{"cuisine_type": "Thai", "highlights": ["Spicy", "", "  ", "Fast", "Cheap", "Fun", "Extra one", "Another"]}`}
	store := newAnalysisStore(t, gen)

	outcome, err := store.AnalyzeReviews(ctx, testReviews(), "Bangkok Corner")
	require.NoError(t, err)

	analysis := outcome.Analysis
	assert.Equal(t, "Thai", analysis.CuisineType)
	assert.Equal(t, "Not described", analysis.Ambience)
	assert.Equal(t, "Mixed", analysis.OverallSentiment)
	assert.Equal(t, "Not mentioned", analysis.PriceRange)
	assert.Equal(t, "Not mentioned", analysis.ServiceQuality)
	// Blanks dropped, then capped.
	assert.Equal(t, []string{"Spicy", "Fast", "Cheap", "Fun", "Extra one"}, analysis.Highlights)
	assert.Empty(t, analysis.Complaints)
}

func TestStore_AnalyzeReviews_NoReviews(t *testing.T) {
	store := newAnalysisStore(t, &fakeGenerator{text: validModelJSON})

	_, err := store.AnalyzeReviews(context.Background(), nil, "Nowhere")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.CodeOf(err))
}

func TestStore_AnalyzeReviews_NoSubstantialText(t *testing.T) {
	store := newAnalysisStore(t, &fakeGenerator{text: validModelJSON})

	_, err := store.AnalyzeReviews(context.Background(), []models.Review{
		{Text: "short", Rating: 5},
		{Text: "tiny", Rating: 4},
	}, "Nowhere")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.CodeOf(err))
}

func TestFingerprint(t *testing.T) {
	base := testReviews()

	t.Run("stable for same input", func(t *testing.T) {
		assert.Equal(t, Fingerprint(base), Fingerprint(testReviews()))
	})

	t.Run("sensitive to text prefix", func(t *testing.T) {
		changed := testReviews()
		changed[0].Text = "Completely different opening line here"
		assert.NotEqual(t, Fingerprint(base), Fingerprint(changed))
	})

	t.Run("sensitive to rating", func(t *testing.T) {
		changed := testReviews()
		changed[1].Rating = 1
		assert.NotEqual(t, Fingerprint(base), Fingerprint(changed))
	})

	t.Run("ignores reviews beyond the first ten", func(t *testing.T) {
		long := make([]models.Review, 0, 12)
		for i := 0; i < 12; i++ {
			long = append(long, models.Review{Text: strings.Repeat("x", 20), Rating: 3})
		}
		longer := append(append([]models.Review{}, long...), models.Review{Text: "tail review beyond ten", Rating: 5})
		assert.Equal(t, Fingerprint(long), Fingerprint(longer))
	})

	t.Run("ignores text beyond 100 characters", func(t *testing.T) {
		a := []models.Review{{Text: strings.Repeat("a", 100) + "SUFFIX-ONE", Rating: 4}}
		b := []models.Review{{Text: strings.Repeat("a", 100) + "suffix-two", Rating: 4}}
		assert.Equal(t, Fingerprint(a), Fingerprint(b))
	})
}

func TestStore_BuildPrompt(t *testing.T) {
	store := newAnalysisStore(t, &fakeGenerator{})

	prompt, included := store.buildPrompt([]models.Review{
		{Text: "Great   pasta\nand\twine here tonight", Rating: 5},
		{Text: "short", Rating: 2},
		{Text: "Service was a little slow on Friday", Rating: 3},
		{Text: "雰囲気も味も最高！！", Rating: 4}, // 10 chars, skipped regardless of byte length
	})

	assert.Equal(t, 2, included)
	assert.Contains(t, prompt, "Review 1 (Rating: 5/5): Great pasta and wine here tonight")
	assert.NotContains(t, prompt, "Review 2 (Rating: 2/5)")
	// Skipped reviews keep their slot in the numbering.
	assert.Contains(t, prompt, "Review 3 (Rating: 3/5): Service was a little slow on Friday")
	assert.NotContains(t, prompt, "Review 4")
	assert.Contains(t, prompt, "ONLY valid JSON")
}

func TestStore_ClearCacheAndDiagnostics(t *testing.T) {
	ctx := context.Background()
	gen := &fakeGenerator{text: validModelJSON}
	store := newAnalysisStore(t, gen)

	base := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return base }

	_, err := store.AnalyzeReviews(ctx, testReviews(), "Trattoria Da Enzo")
	require.NoError(t, err)

	diag, err := store.CacheDiagnostics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, diag.TotalEntries)
	assert.Equal(t, 3, diag.TotalReviews)

	// A day later the entry is expired but still present.
	store.now = func() time.Time { return base.Add(25 * time.Hour) }
	diag, err = store.CacheDiagnostics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, diag.TotalEntries)
	assert.Equal(t, 1, diag.ExpiredEntries)

	require.NoError(t, store.ClearCache(ctx, ""))
	diag, err = store.CacheDiagnostics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, diag.TotalEntries)
}

func TestStore_AnalyzeReviews_GeneratorErrorTypes(t *testing.T) {
	// Plain errors degrade to fallback exactly like typed ones.
	gen := &fakeGenerator{err: errors.New("connection refused")}
	store := newAnalysisStore(t, gen)

	outcome, err := store.AnalyzeReviews(context.Background(), testReviews(), "Anywhere")
	require.NoError(t, err)
	assert.True(t, outcome.Analysis.UsedFallback)
}
