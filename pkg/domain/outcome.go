package domain

import "encoding"

// QAStatus is the verdict vocabulary of the quality-check workflow.
type QAStatus string

const (
	StatusPass         QAStatus = "pass"
	StatusFail         QAStatus = "fail"
	StatusReviewNeeded QAStatus = "review_needed"
)

// Recognized reports whether s is one of the three verdict values.
func (s QAStatus) Recognized() bool {
	return s == StatusPass || s == StatusFail || s == StatusReviewNeeded
}

var (
	_ encoding.BinaryMarshaler = QAStatus("")
	_ encoding.TextMarshaler   = QAStatus("")
)

func (s QAStatus) MarshalBinary() ([]byte, error) { return []byte(string(s)), nil }
func (s QAStatus) MarshalText() ([]byte, error)   { return []byte(string(s)), nil }

// OutcomeKind tags the terminal classification of one submission attempt.
type OutcomeKind string

const (
	// OutcomePending: the workflow acknowledged nothing interpretable; a
	// result is expected later through the push channel.
	OutcomePending OutcomeKind = "PENDING"
	// OutcomeAccepted: the host acknowledged the batch but the response shape
	// carried no verdict.
	OutcomeAccepted OutcomeKind = "ACCEPTED"
	// OutcomeResolved: the response carried an interpretable verdict.
	OutcomeResolved OutcomeKind = "RESOLVED"
	// OutcomeWorkflowError: the workflow explicitly signaled a failure.
	OutcomeWorkflowError OutcomeKind = "WORKFLOW_ERROR"
	// OutcomeTransportError: the request itself failed.
	OutcomeTransportError OutcomeKind = "TRANSPORT_ERROR"
	// OutcomeConfigError: submission was refused before any network activity.
	OutcomeConfigError OutcomeKind = "CONFIG_ERROR"
)

// TransportKind refines OutcomeTransportError.
type TransportKind string

const (
	TransportTimeout            TransportKind = "TIMEOUT"
	TransportNetworkUnreachable TransportKind = "NETWORK_UNREACHABLE"
	TransportCors               TransportKind = "CORS"
	TransportHTTPStatus         TransportKind = "HTTP_STATUS"
)

// QualityIssue is one problem the workflow found in a photo.
type QualityIssue struct {
	Type        string  `json:"type,omitempty"`
	Location    string  `json:"location,omitempty"`
	Description string  `json:"description,omitempty"`
	Severity    float64 `json:"severity,omitempty"`
}

// QualityResult is an interpretable verdict extracted from a workflow
// response or a pushed verdict event.
type QualityResult struct {
	Status                QAStatus       `json:"status"`
	TotalIssues           int            `json:"total_issues"`
	Issues                []QualityIssue `json:"issues,omitempty"`
	Feedback              string         `json:"feedback,omitempty"`
	ProcessingTimeSeconds float64        `json:"processing_time_seconds,omitempty"`
	ImagesAnalyzed        int            `json:"images_analyzed,omitempty"`
	ImagesPassed          int            `json:"images_passed,omitempty"`
	ImagesFailed          int            `json:"images_failed,omitempty"`
	// StatusOverridden is set when a "pass" was downgraded to review_needed
	// because the issue list or count was non-empty. Compatibility shim for a
	// known upstream status/issue-count inconsistency; do not remove without
	// product input.
	StatusOverridden bool `json:"status_overridden,omitempty"`
}

// Normalize applies the pass-but-has-issues override: a "pass" verdict that
// still carries issues is downgraded to review_needed rather than trusted.
// Both the synchronous response path and the async verdict path run through
// this so they converge on the same rendering.
func (r *QualityResult) Normalize() {
	if r.Status == StatusPass && (len(r.Issues) > 0 || r.TotalIssues > 0) {
		r.Status = StatusReviewNeeded
		r.StatusOverridden = true
	}
}

// WorkflowErrorInfo carries the diagnostics an explicit workflow failure
// exposes. Node and Details are best effort.
type WorkflowErrorInfo struct {
	Message string `json:"message"`
	Node    string `json:"node,omitempty"`
	Details string `json:"details,omitempty"`
}

// SubmissionOutcome is the tagged terminal classification of one submission.
// Exactly the fields implied by Kind are set.
type SubmissionOutcome struct {
	Kind       OutcomeKind        `json:"kind"`
	TaskID     string             `json:"task_id,omitempty"`
	Result     *QualityResult     `json:"result,omitempty"`
	Workflow   *WorkflowErrorInfo `json:"workflow_error,omitempty"`
	Transport  TransportKind      `json:"transport,omitempty"`
	HTTPStatus int                `json:"http_status,omitempty"`
	Reason     string             `json:"reason,omitempty"`
	// Raw keeps a bounded copy of the response body for diagnostics on
	// ACCEPTED and error outcomes.
	Raw string `json:"raw,omitempty"`
}

// Errored reports whether the outcome represents a failure that should leave
// the session intact for retry.
func (o SubmissionOutcome) Errored() bool {
	switch o.Kind {
	case OutcomeWorkflowError, OutcomeTransportError, OutcomeConfigError:
		return true
	}
	return false
}
