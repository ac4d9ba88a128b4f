// internal/models/session.go
package models

// SessionStatus is the lifecycle state of one orchestrated analysis run.
type SessionStatus string

const (
	SessionPending         SessionStatus = "pending"
	SessionFetchingReviews SessionStatus = "fetchingReviews"
	SessionAnalyzing       SessionStatus = "analyzing"
	SessionCompleted       SessionStatus = "completed"
	SessionFailed          SessionStatus = "failed"
)

// AnalysisSession is the transient in-memory state of one run. It is owned
// exclusively by the orchestrator and discarded when the run terminates.
type AnalysisSession struct {
	ID              string        `json:"id"`
	PlaceID         string        `json:"placeId"`
	Status          SessionStatus `json:"status"`
	ProgressPercent int           `json:"progressPercent"`
	LastMessage     string        `json:"lastMessage"`
}
