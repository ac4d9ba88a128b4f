// internal/models/review.go
package models

import (
	"strings"
	"time"
	"unicode/utf8"
)

// MinReviewTextLength is the noise threshold: a review whose trimmed text
// is this many characters or fewer is discarded everywhere in the pipeline.
const MinReviewTextLength = 10

// Review is one customer review, immutable once fetched.
type Review struct {
	Text                    string `json:"text"`
	Rating                  int    `json:"rating"`
	AuthorName              string `json:"authorName"`
	Time                    int64  `json:"time"` // unix seconds
	RelativeTimeDescription string `json:"relativeTimeDescription,omitempty"`
	Language                string `json:"language,omitempty"`
}

// HasSubstantialText reports whether the review passes the noise filter.
// Length is counted in characters, not bytes, so non-ASCII reviews are
// held to the same bar.
func (r Review) HasSubstantialText() bool {
	return utf8.RuneCountInString(strings.TrimSpace(r.Text)) > MinReviewTextLength
}

// ReviewBundle is the result of one review fetch for a place,
// reviews ordered newest first.
type ReviewBundle struct {
	PlaceID          string    `json:"placeId"`
	PlaceName        string    `json:"placeName"`
	AggregateRating  float64   `json:"aggregateRating"`
	TotalRatingCount int       `json:"totalRatingCount"`
	Reviews          []Review  `json:"reviews"`
	FetchedAt        time.Time `json:"fetchedAt"`
}

// Truncated returns a copy limited to at most n reviews.
func (b ReviewBundle) Truncated(n int) ReviewBundle {
	if n < len(b.Reviews) {
		out := b
		out.Reviews = b.Reviews[:n]
		return out
	}
	return b
}

// ReviewFetchResult is what the review store hands back to callers.
type ReviewFetchResult struct {
	Bundle    ReviewBundle `json:"bundle"`
	FromCache bool         `json:"fromCache"`
}

// CacheDiagnostics summarizes a store's cache without evicting anything.
type CacheDiagnostics struct {
	TotalEntries   int `json:"totalEntries"`
	TotalReviews   int `json:"totalReviews,omitempty"`
	ExpiredEntries int `json:"expiredEntries"`
}
