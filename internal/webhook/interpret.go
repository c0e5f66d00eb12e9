// Package webhook interprets responses from the external quality-check
// workflow. The response shape is not contractually fixed, so classification
// runs as an ordered set of typed parse attempts; order matters and is
// covered by tests.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"

	"github.com/fleetfox/fleetfox/pkg/domain"
)

// maxRawCapture bounds how much of a response body is kept for diagnostics.
const maxRawCapture = 2048

// Interpret classifies one workflow response into a SubmissionOutcome.
// Precedence: HTTP error status, explicit error signals, recognized verdict,
// recognized-but-unscored acknowledgment, no parsable body at all.
func Interpret(httpStatus int, contentType string, body []byte) domain.SubmissionOutcome {
	raw := capRaw(body)

	if httpStatus < 200 || httpStatus >= 300 {
		return domain.SubmissionOutcome{
			Kind:       domain.OutcomeTransportError,
			Transport:  domain.TransportHTTPStatus,
			HTTPStatus: httpStatus,
			Raw:        raw,
		}
	}

	trimmed := strings.TrimSpace(string(body))
	looksJSON := strings.Contains(contentType, "application/json") || strings.HasPrefix(trimmed, "{")
	if trimmed == "" || !looksJSON {
		// Empty or plain-text acknowledgment: the workflow is presumed to
		// still be processing; the verdict arrives through the push channel.
		return domain.SubmissionOutcome{Kind: domain.OutcomePending, Raw: raw}
	}

	var m map[string]any
	if err := json.Unmarshal([]byte(trimmed), &m); err != nil {
		// Claimed to be JSON but is not. The batch may well have been
		// accepted despite the garbled acknowledgment, so this is not a
		// failure.
		return domain.SubmissionOutcome{Kind: domain.OutcomeAccepted, Raw: raw}
	}

	if info, ok := extractWorkflowError(m); ok {
		return domain.SubmissionOutcome{Kind: domain.OutcomeWorkflowError, Workflow: info, Raw: raw}
	}

	status := domain.QAStatus(getString(m, "status", "overall_status"))
	if status.Recognized() {
		return domain.SubmissionOutcome{Kind: domain.OutcomeResolved, Result: extractResult(status, m)}
	}

	return domain.SubmissionOutcome{Kind: domain.OutcomeAccepted, Raw: raw}
}

// extractWorkflowError detects the explicit failure signals a workflow
// response may carry: an error field, a workflow_error field, status=error,
// or failed=true.
func extractWorkflowError(m map[string]any) (*domain.WorkflowErrorInfo, bool) {
	_, hasWorkflowError := m["workflow_error"]
	hasError := getString(m, "error") != ""
	statusError := getString(m, "status") == "error"
	failed, _ := m["failed"].(bool)

	if !hasError && !hasWorkflowError && !statusError && !failed {
		return nil, false
	}

	msg := getString(m, "error_message", "error", "workflow_error", "message")
	if msg == "" {
		msg = "workflow execution failed"
	}
	return &domain.WorkflowErrorInfo{
		Message: msg,
		Node:    getString(m, "error_node", "failed_node"),
		Details: getString(m, "error_details", "details"),
	}, true
}

func extractResult(status domain.QAStatus, m map[string]any) *domain.QualityResult {
	r := &domain.QualityResult{
		Status:                status,
		TotalIssues:           getInt(m, "total_issues"),
		Issues:                extractIssues(m),
		Feedback:              getString(m, "feedback", "feedback_text"),
		ProcessingTimeSeconds: getFloat(m, "processing_time_seconds"),
		ImagesAnalyzed:        getInt(m, "images_analyzed"),
		ImagesPassed:          getInt(m, "images_passed"),
		ImagesFailed:          getInt(m, "images_failed"),
	}
	r.Normalize()
	return r
}

func extractIssues(m map[string]any) []domain.QualityIssue {
	list, ok := m["issues"].([]any)
	if !ok {
		list, ok = m["all_issues"].([]any)
	}
	if !ok {
		return nil
	}
	issues := make([]domain.QualityIssue, 0, len(list))
	for _, item := range list {
		im, ok := item.(map[string]any)
		if !ok {
			continue
		}
		issues = append(issues, domain.QualityIssue{
			Type:        getString(im, "type", "dirt_category"),
			Location:    getString(im, "location"),
			Description: getString(im, "description"),
			Severity:    getFloat(im, "severity", "confidence"),
		})
	}
	return issues
}

// ClassifyTransportError maps a request error onto the transport taxonomy.
// CORS classification is best effort: in practice it only ever shows up as a
// message substring.
func ClassifyTransportError(err error) domain.TransportKind {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.TransportTimeout
	}
	var uerr *url.Error
	if errors.As(err, &uerr) && uerr.Timeout() {
		return domain.TransportTimeout
	}
	if strings.Contains(strings.ToLower(err.Error()), "cors") {
		return domain.TransportCors
	}
	return domain.TransportNetworkUnreachable
}

func capRaw(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxRawCapture {
		s = s[:maxRawCapture]
	}
	return s
}

func getString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k].(string); ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func getFloat(m map[string]any, keys ...string) float64 {
	for _, k := range keys {
		if v, ok := m[k].(float64); ok {
			return v
		}
	}
	return 0
}

func getInt(m map[string]any, keys ...string) int {
	return int(getFloat(m, keys...))
}
