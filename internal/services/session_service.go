package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fleetfox/fleetfox/internal/metrics"
	"github.com/fleetfox/fleetfox/internal/probe"
	"github.com/fleetfox/fleetfox/internal/providers"
	"github.com/fleetfox/fleetfox/internal/repository"
	"github.com/fleetfox/fleetfox/pkg/domain"

	"github.com/google/uuid"
)

var ErrInvalidSlot = errors.New("invalid photo slot")

// SessionService owns the slot store: uploads into slots, removals, and the
// restore pass that drops slots whose stored objects stopped resolving.
type SessionService interface {
	Upload(ctx context.Context, sessionID string, slot domain.PhotoSlot, foxID, contentType string, data []byte) (domain.UploadedImageRecord, error)
	Remove(ctx context.Context, sessionID string, slot domain.PhotoSlot) (*domain.UploadSession, error)
	Restore(ctx context.Context, sessionID string) (*domain.UploadSession, error)
	Clear(ctx context.Context, sessionID string) error
}

type sessionService struct {
	repo     repository.SessionRepository
	uploader providers.Uploader
	prober   probe.Prober
	logger   *slog.Logger
	now      func() time.Time

	// mu serializes mutations per process. Slot writes are small and rare
	// enough that a single lock beats per-session bookkeeping.
	mu sync.Mutex
	// probes tracks in-flight background restore probes so tests can drain
	// them.
	probes sync.WaitGroup
}

func NewSessionService(repo repository.SessionRepository, uploader providers.Uploader, prober probe.Prober, logger *slog.Logger, now func() time.Time) SessionService {
	if now == nil {
		now = time.Now
	}
	return &sessionService{repo: repo, uploader: uploader, prober: prober, logger: logger, now: now}
}

func (s *sessionService) Upload(ctx context.Context, sessionID string, slot domain.PhotoSlot, foxID, contentType string, data []byte) (domain.UploadedImageRecord, error) {
	if !slot.Valid() {
		return domain.UploadedImageRecord{}, ErrInvalidSlot
	}

	imageID := uuid.NewString()
	objectPath := fmt.Sprintf("uploads/%s_%s.jpg", imageID, slot)

	url, err := s.uploader.UploadBytes(ctx, objectPath, contentType, data)
	if err != nil {
		// Storage being down must not block the flow; fall back to carrying
		// the image inline. The submission payload gets bigger but stays
		// complete.
		s.logger.Warn("image upload failed, falling back to inline data URL",
			"session_id", sessionID, "slot", slot, "err", err)
		metrics.UploadFallbacksTotal.Inc()
		if contentType == "" {
			contentType = "image/jpeg"
		}
		url = "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
	}

	rec := domain.UploadedImageRecord{
		ImageID:    imageID,
		ImageURL:   url,
		ImageType:  slot,
		UploadedAt: s.now().UTC(),
		FoxID:      foxID,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.repo.Load(ctx, sessionID)
	if err != nil {
		return domain.UploadedImageRecord{}, err
	}
	session.Put(rec)
	if err := s.repo.Save(ctx, session); err != nil {
		// The image itself is stored and the record returned; losing the
		// session blob only costs restore-after-reload.
		s.logger.Warn("session persist failed after upload", "session_id", sessionID, "err", err)
	}

	metrics.ImageUploadsTotal.WithLabelValues(string(slot)).Inc()
	return rec, nil
}

func (s *sessionService) Remove(ctx context.Context, sessionID string, slot domain.PhotoSlot) (*domain.UploadSession, error) {
	if !slot.Valid() {
		return nil, ErrInvalidSlot
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.repo.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	session.Remove(slot)
	if err := s.repo.Save(ctx, session); err != nil {
		s.logger.Warn("session persist failed after remove", "session_id", sessionID, "err", err)
	}
	return session, nil
}

// Restore loads the session and returns it immediately, optimistically
// trusting every stored URL. The reachability pass runs in the background:
// slots whose objects stopped resolving are evicted and the pruned session
// persisted, so the next load sees only live photos. Restore itself never
// waits on a probe.
func (s *sessionService) Restore(ctx context.Context, sessionID string) (*domain.UploadSession, error) {
	session, err := s.repo.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.FilledCount() == 0 {
		return session, nil
	}

	snapshot := make(map[domain.PhotoSlot]domain.UploadedImageRecord, session.FilledCount())
	for slot, rec := range session.Images {
		snapshot[slot] = rec
	}
	s.probes.Add(1)
	go func() {
		defer s.probes.Done()
		s.pruneUnreachable(context.WithoutCancel(ctx), sessionID, snapshot)
	}()
	return session, nil
}

// pruneUnreachable probes the snapshotted URLs concurrently and evicts the
// slots that no longer resolve. A slot re-uploaded while the probe was out is
// left alone.
func (s *sessionService) pruneUnreachable(ctx context.Context, sessionID string, snapshot map[domain.PhotoSlot]domain.UploadedImageRecord) {
	type verdict struct {
		slot domain.PhotoSlot
		ok   bool
	}
	results := make(chan verdict, len(snapshot))
	for slot, rec := range snapshot {
		go func(slot domain.PhotoSlot, url string) {
			results <- verdict{slot: slot, ok: s.prober.Reachable(ctx, url)}
		}(slot, rec.ImageURL)
	}

	dead := make([]domain.PhotoSlot, 0, len(snapshot))
	for i := 0; i < cap(results); i++ {
		if v := <-results; !v.ok {
			dead = append(dead, v.slot)
		}
	}
	if len(dead) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.repo.Load(ctx, sessionID)
	if err != nil {
		s.logger.Warn("session reload failed during restore prune", "session_id", sessionID, "err", err)
		return
	}
	evicted := 0
	for _, slot := range dead {
		rec, ok := session.Get(slot)
		if !ok || rec.ImageID != snapshot[slot].ImageID {
			continue
		}
		session.Remove(slot)
		metrics.SlotEvictionsTotal.WithLabelValues(string(slot)).Inc()
		s.logger.Info("evicted stale slot on restore", "session_id", sessionID, "slot", slot)
		evicted++
	}
	if evicted == 0 {
		return
	}
	if err := s.repo.Save(ctx, session); err != nil {
		s.logger.Warn("session persist failed after restore", "session_id", sessionID, "err", err)
	}
}

func (s *sessionService) Clear(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo.Delete(ctx, sessionID)
}
