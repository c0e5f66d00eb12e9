package webhook

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/fleetfox/fleetfox/pkg/domain"
)

func TestInterpretHTTPErrorStatus(t *testing.T) {
	out := Interpret(500, "application/json", []byte(`{"status":"pass"}`))
	if out.Kind != domain.OutcomeTransportError {
		t.Fatalf("Kind = %s, want TRANSPORT_ERROR", out.Kind)
	}
	if out.Transport != domain.TransportHTTPStatus || out.HTTPStatus != 500 {
		t.Fatalf("transport = %s/%d", out.Transport, out.HTTPStatus)
	}
	if out.Raw == "" {
		t.Error("body not captured for diagnostics")
	}
}

func TestInterpretCleanPass(t *testing.T) {
	out := Interpret(200, "application/json", []byte(`{"status":"pass","total_issues":0,"processing_time_seconds":12.5}`))
	if out.Kind != domain.OutcomeResolved {
		t.Fatalf("Kind = %s, want RESOLVED", out.Kind)
	}
	if out.Result.Status != domain.StatusPass {
		t.Fatalf("Status = %s, want pass", out.Result.Status)
	}
	if out.Result.StatusOverridden {
		t.Error("clean pass should not be overridden")
	}
	if out.Result.ProcessingTimeSeconds != 12.5 {
		t.Errorf("ProcessingTimeSeconds = %v", out.Result.ProcessingTimeSeconds)
	}
}

func TestInterpretPassWithIssuesOverridden(t *testing.T) {
	body := []byte(`{"status":"pass","total_issues":2,"issues":[{"type":"dirt","location":"hood","severity":6}]}`)
	out := Interpret(200, "application/json", body)
	if out.Kind != domain.OutcomeResolved {
		t.Fatalf("Kind = %s, want RESOLVED", out.Kind)
	}
	if out.Result.Status != domain.StatusReviewNeeded {
		t.Fatalf("Status = %s, want review_needed (override rule)", out.Result.Status)
	}
	if !out.Result.StatusOverridden {
		t.Error("StatusOverridden not set")
	}
}

func TestInterpretErrorBeatsStatus(t *testing.T) {
	// An explicit error wins even on HTTP 200 and even next to a status field.
	out := Interpret(200, "application/json", []byte(`{"error":"boom"}`))
	if out.Kind != domain.OutcomeWorkflowError {
		t.Fatalf("Kind = %s, want WORKFLOW_ERROR", out.Kind)
	}
	if out.Workflow.Message != "boom" {
		t.Fatalf("Message = %q, want boom", out.Workflow.Message)
	}
}

func TestInterpretWorkflowErrorFieldExtraction(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantMessage string
		wantNode    string
		wantDetails string
	}{
		{
			"error_message preferred",
			`{"failed":true,"error_message":"node blew up","error_node":"Analyze","error_details":"stack"}`,
			"node blew up", "Analyze", "stack",
		},
		{
			"status error with message",
			`{"status":"error","message":"bad input"}`,
			"bad input", "", "",
		},
		{
			"failed flag only",
			`{"failed":true}`,
			"workflow execution failed", "", "",
		},
		{
			"fallback node and details aliases",
			`{"error":"x","failed_node":"Webhook","details":"d"}`,
			"x", "Webhook", "d",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Interpret(200, "application/json", []byte(tt.body))
			if out.Kind != domain.OutcomeWorkflowError {
				t.Fatalf("Kind = %s, want WORKFLOW_ERROR", out.Kind)
			}
			if out.Workflow.Message != tt.wantMessage {
				t.Errorf("Message = %q, want %q", out.Workflow.Message, tt.wantMessage)
			}
			if out.Workflow.Node != tt.wantNode {
				t.Errorf("Node = %q, want %q", out.Workflow.Node, tt.wantNode)
			}
			if out.Workflow.Details != tt.wantDetails {
				t.Errorf("Details = %q, want %q", out.Workflow.Details, tt.wantDetails)
			}
		})
	}
}

func TestInterpretStatusAliases(t *testing.T) {
	out := Interpret(200, "text/plain", []byte(`{"overall_status":"review_needed","all_issues":[{"dirt_category":"mud","confidence":8}],"feedback_text":"clean the mats"}`))
	if out.Kind != domain.OutcomeResolved {
		t.Fatalf("Kind = %s, want RESOLVED (object-shaped body without JSON content type)", out.Kind)
	}
	if out.Result.Status != domain.StatusReviewNeeded {
		t.Fatalf("Status = %s", out.Result.Status)
	}
	if len(out.Result.Issues) != 1 || out.Result.Issues[0].Type != "mud" || out.Result.Issues[0].Severity != 8 {
		t.Fatalf("issue aliases not extracted: %+v", out.Result.Issues)
	}
	if out.Result.Feedback != "clean the mats" {
		t.Errorf("Feedback = %q", out.Result.Feedback)
	}
}

func TestInterpretUnrecognizedShapeAccepted(t *testing.T) {
	for _, body := range []string{
		`{"message":"Workflow was started"}`,
		`{"success":true}`,
		`{"something":"else"}`,
	} {
		out := Interpret(200, "application/json", []byte(body))
		if out.Kind != domain.OutcomeAccepted {
			t.Errorf("Interpret(%s) = %s, want ACCEPTED", body, out.Kind)
		}
	}
}

func TestInterpretMalformedJSONAccepted(t *testing.T) {
	out := Interpret(200, "application/json", []byte(`{"status": "pa`))
	if out.Kind != domain.OutcomeAccepted {
		t.Fatalf("Kind = %s, want ACCEPTED for malformed JSON body", out.Kind)
	}
	if out.Raw == "" {
		t.Error("raw body not kept")
	}
}

func TestInterpretNoBodyPending(t *testing.T) {
	for _, tt := range []struct {
		name        string
		contentType string
		body        string
	}{
		{"empty body", "application/json", ""},
		{"plain text ack", "text/plain", "OK"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			out := Interpret(200, tt.contentType, []byte(tt.body))
			if out.Kind != domain.OutcomePending {
				t.Fatalf("Kind = %s, want PENDING", out.Kind)
			}
		})
	}
}

func TestClassifyTransportError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want domain.TransportKind
	}{
		{"deadline", context.DeadlineExceeded, domain.TransportTimeout},
		{"wrapped deadline", &url.Error{Op: "Post", URL: "http://x", Err: context.DeadlineExceeded}, domain.TransportTimeout},
		{"cors wording", errors.New("request blocked by CORS policy"), domain.TransportCors},
		{"connection refused", errors.New("dial tcp 127.0.0.1:5678: connect: connection refused"), domain.TransportNetworkUnreachable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyTransportError(tt.err); got != tt.want {
				t.Errorf("ClassifyTransportError = %s, want %s", got, tt.want)
			}
		})
	}
}
