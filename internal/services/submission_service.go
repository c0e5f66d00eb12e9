package services

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/fleetfox/fleetfox/internal/metrics"
	"github.com/fleetfox/fleetfox/internal/tracing"
	"github.com/fleetfox/fleetfox/internal/webhook"
	"github.com/fleetfox/fleetfox/pkg/config"
	"github.com/fleetfox/fleetfox/pkg/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SubmitMeta carries the caller-supplied identity for one submission.
// AuthSubject, when set, is the authenticated identity and wins over the
// self-reported FoxID.
type SubmitMeta struct {
	TaskID      string
	FoxID       string
	ClientID    string
	VehicleID   string
	AuthSubject string
}

// SubmissionService dispatches a complete session to the quality-check
// workflow in a single POST and classifies the response.
type SubmissionService interface {
	Submit(ctx context.Context, session *domain.UploadSession, meta SubmitMeta) (domain.SubmissionOutcome, error)
}

type submissionService struct {
	webhookURL string
	production bool
	timeout    time.Duration
	client     *http.Client
	logger     *slog.Logger
	now        func() time.Time
}

func NewSubmissionService(webhookURL string, production bool, timeoutSeconds int, logger *slog.Logger, now func() time.Time) SubmissionService {
	if timeoutSeconds <= 0 {
		timeoutSeconds = 30
	}
	if now == nil {
		now = time.Now
	}
	return &submissionService{
		webhookURL: webhookURL,
		production: production,
		timeout:    time.Duration(timeoutSeconds) * time.Second,
		client:     &http.Client{},
		logger:     logger,
		now:        now,
	}
}

// maxResponseBody bounds how much of a workflow response is read.
const maxResponseBody = 1 << 20

func (s *submissionService) Submit(ctx context.Context, session *domain.UploadSession, meta SubmitMeta) (domain.SubmissionOutcome, error) {
	if missing := session.MissingSlots(); len(missing) > 0 {
		return domain.SubmissionOutcome{}, &domain.MissingSlotsError{Slots: missing}
	}

	foxID := meta.FoxID
	if meta.AuthSubject != "" {
		foxID = meta.AuthSubject
	}
	vehicleID := strings.TrimSpace(meta.VehicleID)
	if vehicleID == "" {
		vehicleID = "UNKNOWN"
	}

	if strings.TrimSpace(s.webhookURL) == "" {
		return s.finish(domain.SubmissionOutcome{
			Kind:   domain.OutcomeConfigError,
			TaskID: meta.TaskID,
			Reason: "workflow webhook URL is not configured",
		}, 0), nil
	}
	if s.production && config.IsLoopbackURL(s.webhookURL) {
		return s.finish(domain.SubmissionOutcome{
			Kind:   domain.OutcomeConfigError,
			TaskID: meta.TaskID,
			Reason: "workflow webhook URL points at localhost in production",
		}, 0), nil
	}

	batch := domain.BuildBatch(session, meta.TaskID, foxID, meta.ClientID, vehicleID)
	body, _ := json.Marshal(batch)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ctx, span := otel.Tracer("fleetfox/submission").Start(ctx, "fleetfox.submission.dispatch",
		trace.WithAttributes(
			attribute.String("fleetfox.task_id", meta.TaskID),
			attribute.String("fleetfox.client_id", meta.ClientID),
			attribute.Int("fleetfox.image_count", len(batch.Images)),
		),
	)
	defer span.End()

	started := s.now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return s.finish(domain.SubmissionOutcome{
			Kind:   domain.OutcomeConfigError,
			TaskID: meta.TaskID,
			Reason: "invalid workflow webhook URL",
		}, 0), nil
	}
	req.Header.Set("Content-Type", "application/json")
	tracing.InjectHeaders(ctx, req.Header)

	resp, err := s.client.Do(req)
	elapsed := s.now().Sub(started).Seconds()
	if err != nil {
		kind := webhook.ClassifyTransportError(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(kind))
		s.logger.Warn("submission dispatch failed",
			"task_id", meta.TaskID, "transport", kind, "err", err)
		return s.finish(domain.SubmissionOutcome{
			Kind:      domain.OutcomeTransportError,
			TaskID:    meta.TaskID,
			Transport: kind,
			Reason:    err.Error(),
		}, elapsed), nil
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	outcome := webhook.Interpret(resp.StatusCode, resp.Header.Get("Content-Type"), respBody)
	outcome.TaskID = meta.TaskID

	span.SetAttributes(
		attribute.Int("http.status_code", resp.StatusCode),
		attribute.String("fleetfox.outcome", string(outcome.Kind)),
	)
	if outcome.Errored() {
		span.SetStatus(codes.Error, string(outcome.Kind))
	}
	s.logger.Info("submission dispatched",
		"task_id", meta.TaskID, "outcome", outcome.Kind, "http_status", resp.StatusCode, "elapsed_s", elapsed)

	return s.finish(outcome, elapsed), nil
}

func (s *submissionService) finish(outcome domain.SubmissionOutcome, elapsed float64) domain.SubmissionOutcome {
	metrics.SubmissionsTotal.WithLabelValues(string(outcome.Kind)).Inc()
	if elapsed > 0 {
		metrics.SubmissionLatencySeconds.WithLabelValues(string(outcome.Kind)).Observe(elapsed)
	}
	return outcome
}
