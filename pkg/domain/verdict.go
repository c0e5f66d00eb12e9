package domain

import "time"

// VerdictEvent is the result object the workflow pushes out of band once the
// analysis completes. It may arrive before, during, after, or instead of an
// interpretable synchronous response.
type VerdictEvent struct {
	TaskID                string    `json:"task_id"`
	OverallStatus         QAStatus  `json:"overall_status"`
	TotalIssues           int       `json:"total_issues"`
	CriticalIssuesCount   int       `json:"critical_issues_count"`
	MinorIssuesCount      int       `json:"minor_issues_count"`
	FeedbackText          string    `json:"feedback_text,omitempty"`
	ProcessingTimeSeconds float64   `json:"processing_time_seconds,omitempty"`
	FoxID                 string    `json:"fox_id,omitempty"`
	ClientID              string    `json:"client_id,omitempty"`
	VehicleID             string    `json:"vehicle_id,omitempty"`
	CreatedAt             time.Time `json:"created_at,omitempty"`
}

// Result converts the event into the QualityResult shape the reconciler
// renders, running the same normalization as the synchronous path.
func (v VerdictEvent) Result() *QualityResult {
	r := &QualityResult{
		Status:                v.OverallStatus,
		TotalIssues:           v.TotalIssues,
		Feedback:              v.FeedbackText,
		ProcessingTimeSeconds: v.ProcessingTimeSeconds,
	}
	r.Normalize()
	return r
}

// Subscription registers an external callback URL for verdict delivery.
// FoxID/ClientID act as filters; empty means match all.
type Subscription struct {
	ID                 string    `json:"id"`
	CallbackURL        string    `json:"callback_url"`
	FoxID              string    `json:"fox_id,omitempty"`
	ClientID           string    `json:"client_id,omitempty"`
	MinIntervalSeconds int       `json:"min_interval_seconds"`
	ExpiresAt          time.Time `json:"expires_at"`
	CreatedAt          time.Time `json:"created_at"`
}

// Matches reports whether the subscription should receive ev.
func (s Subscription) Matches(ev VerdictEvent) bool {
	if s.FoxID != "" && s.FoxID != ev.FoxID {
		return false
	}
	if s.ClientID != "" && s.ClientID != ev.ClientID {
		return false
	}
	return true
}
