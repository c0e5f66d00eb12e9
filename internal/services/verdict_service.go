package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/fleetfox/fleetfox/internal/metrics"
	"github.com/fleetfox/fleetfox/internal/repository"
	"github.com/fleetfox/fleetfox/pkg/domain"
)

var (
	ErrVerdictMissingTask   = errors.New("verdict is missing task_id")
	ErrVerdictUnknownStatus = errors.New("verdict carries an unrecognized status")
)

// VerdictBroadcaster pushes an accepted verdict to connected realtime
// clients. Implemented by the websocket hub.
type VerdictBroadcaster interface {
	Broadcast(ev domain.VerdictEvent)
}

// VerdictListener observes accepted verdicts in-process; the reconciler hangs
// off this to converge sessions.
type VerdictListener func(ctx context.Context, ev domain.VerdictEvent)

// VerdictService ingests verdicts pushed by the workflow and fans them out:
// storage, realtime broadcast, webhook delivery, in-process listeners.
type VerdictService interface {
	Ingest(ctx context.Context, ev domain.VerdictEvent) (bool, error)
	Get(ctx context.Context, taskID string) (*domain.VerdictEvent, error)
	ListRecent(ctx context.Context, limit int) ([]domain.VerdictEvent, error)
	AddListener(l VerdictListener)
}

type verdictService struct {
	repo        repository.VerdictRepository
	broadcaster VerdictBroadcaster
	notifier    NotifierService
	logger      *slog.Logger
	now         func() time.Time
	listeners   []VerdictListener
}

func NewVerdictService(repo repository.VerdictRepository, broadcaster VerdictBroadcaster, notifier NotifierService, logger *slog.Logger, now func() time.Time) VerdictService {
	if now == nil {
		now = time.Now
	}
	return &verdictService{
		repo:        repo,
		broadcaster: broadcaster,
		notifier:    notifier,
		logger:      logger,
		now:         now,
	}
}

// AddListener registers l for every accepted verdict. Must be called during
// wiring, before traffic.
func (s *verdictService) AddListener(l VerdictListener) {
	s.listeners = append(s.listeners, l)
}

func (s *verdictService) Ingest(ctx context.Context, ev domain.VerdictEvent) (bool, error) {
	if ev.TaskID == "" {
		return false, ErrVerdictMissingTask
	}
	if !ev.OverallStatus.Recognized() {
		return false, ErrVerdictUnknownStatus
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = s.now().UTC()
	}

	stored, err := s.repo.Save(ctx, ev)
	if err != nil {
		return false, err
	}
	if !stored {
		metrics.VerdictsDuplicateTotal.Inc()
		s.logger.Info("duplicate verdict dropped", "task_id", ev.TaskID)
		return false, nil
	}

	metrics.VerdictsIngestedTotal.WithLabelValues(string(ev.OverallStatus)).Inc()
	s.logger.Info("verdict ingested",
		"task_id", ev.TaskID, "status", ev.OverallStatus, "total_issues", ev.TotalIssues)

	if s.broadcaster != nil {
		s.broadcaster.Broadcast(ev)
	}
	if s.notifier != nil {
		s.notifier.Deliver(context.WithoutCancel(ctx), ev)
	}
	for _, l := range s.listeners {
		l(ctx, ev)
	}
	return true, nil
}

func (s *verdictService) Get(ctx context.Context, taskID string) (*domain.VerdictEvent, error) {
	return s.repo.Get(ctx, taskID)
}

func (s *verdictService) ListRecent(ctx context.Context, limit int) ([]domain.VerdictEvent, error) {
	return s.repo.ListRecent(ctx, limit)
}
