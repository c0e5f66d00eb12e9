package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/fleetfox/fleetfox/internal/repository"
	"github.com/fleetfox/fleetfox/pkg/domain"
)

// Phase is the presentation state of a session's submission lifecycle.
type Phase string

const (
	PhaseIdle               Phase = "IDLE"
	PhaseValidating         Phase = "VALIDATING"
	PhaseSubmitting         Phase = "SUBMITTING"
	PhaseAwaitingCompletion Phase = "AWAITING_COMPLETION"
	PhaseResolved           Phase = "RESOLVED"
	PhaseAccepted           Phase = "ACCEPTED"
	PhasePending            Phase = "PENDING"
	PhaseErrored            Phase = "ERRORED"
)

// ErrSubmissionInFlight rejects a second submit while one is already running
// for the same session.
var ErrSubmissionInFlight = errors.New("submission already in flight for this session")

// SubmissionView is the rendered reconciliation state handed to the API.
type SubmissionView struct {
	Phase     Phase                     `json:"phase"`
	TaskID    string                    `json:"task_id,omitempty"`
	FoxID     string                    `json:"fox_id,omitempty"`
	Missing   []domain.PhotoSlot        `json:"missing_slots,omitempty"`
	Outcome   *domain.SubmissionOutcome `json:"outcome,omitempty"`
	Result    *domain.QualityResult     `json:"result,omitempty"`
	UpdatedAt time.Time                 `json:"updated_at"`
}

// ReconcilerService drives the submission lifecycle of each session: it
// single-flights submits, converges the synchronous response with verdicts
// pushed out of band, and decides when the slot store is cleared.
type ReconcilerService interface {
	Submit(ctx context.Context, sessionID string, meta SubmitMeta) (*SubmissionView, error)
	State(ctx context.Context, sessionID string) *SubmissionView
	Identity(sessionID string) (taskID, foxID string)
	OnVerdict(ctx context.Context, ev domain.VerdictEvent)
}

type sessionState struct {
	phase    Phase
	taskID   string
	foxID    string
	inFlight bool
	// stashed holds a verdict that arrived while the synchronous submit for
	// the same task was still on the wire.
	stashed   *domain.VerdictEvent
	outcome   *domain.SubmissionOutcome
	result    *domain.QualityResult
	missing   []domain.PhotoSlot
	updatedAt time.Time
}

type reconcilerService struct {
	sessions   SessionService
	submitter  SubmissionService
	repo       repository.SessionRepository
	logger     *slog.Logger
	now        func() time.Time
	newTaskID  func() string
	newFoxID   func() string

	mu     sync.Mutex
	states map[string]*sessionState
}

func NewReconcilerService(sessions SessionService, submitter SubmissionService, repo repository.SessionRepository, logger *slog.Logger, now func() time.Time) ReconcilerService {
	if now == nil {
		now = time.Now
	}
	return &reconcilerService{
		sessions:  sessions,
		submitter: submitter,
		repo:      repo,
		logger:    logger,
		now:       now,
		newTaskID: domain.NewTaskID,
		newFoxID:  domain.NewFoxID,
		states:    make(map[string]*sessionState),
	}
}

func (r *reconcilerService) state(sessionID string) *sessionState {
	st, ok := r.states[sessionID]
	if !ok {
		st = &sessionState{
			phase:     PhaseIdle,
			taskID:    r.newTaskID(),
			foxID:     r.newFoxID(),
			updatedAt: r.now(),
		}
		r.states[sessionID] = st
	}
	return st
}

// Identity returns the task and fallback fox identifiers currently assigned
// to the session, allocating them on first use.
func (r *reconcilerService) Identity(sessionID string) (string, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := r.state(sessionID)
	return st.taskID, st.foxID
}

func (r *reconcilerService) Submit(ctx context.Context, sessionID string, meta SubmitMeta) (*SubmissionView, error) {
	r.mu.Lock()
	st := r.state(sessionID)
	if st.inFlight {
		r.mu.Unlock()
		return nil, ErrSubmissionInFlight
	}
	st.inFlight = true
	st.stashed = nil
	st.phase = PhaseValidating
	st.updatedAt = r.now()
	taskID := st.taskID
	foxID := st.foxID
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		if st.inFlight {
			st.inFlight = false
			// A verdict that landed in the tail of the flight, after the
			// outcome section already ran, would otherwise strand the session
			// in its pre-verdict phase.
			if st.stashed != nil && st.stashed.TaskID == st.taskID {
				r.applyVerdictLocked(ctx, sessionID, st, *st.stashed)
			}
			st.stashed = nil
		}
		r.mu.Unlock()
	}()

	meta.TaskID = taskID
	if meta.FoxID == "" {
		meta.FoxID = foxID
	}

	session, err := r.sessions.Restore(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if missing := session.MissingSlots(); len(missing) > 0 {
		r.mu.Lock()
		st.phase = PhaseAwaitingCompletion
		st.missing = missing
		st.updatedAt = r.now()
		view := r.viewLocked(st)
		r.mu.Unlock()
		return view, nil
	}

	r.mu.Lock()
	st.phase = PhaseSubmitting
	st.missing = nil
	st.updatedAt = r.now()
	r.mu.Unlock()

	// Bind before the POST so a verdict racing the response can be routed.
	if err := r.repo.BindTask(ctx, taskID, sessionID); err != nil {
		r.logger.Warn("task binding failed", "task_id", taskID, "err", err)
	}

	outcome, err := r.submitter.Submit(ctx, session, meta)
	if err != nil {
		var missingErr *domain.MissingSlotsError
		if errors.As(err, &missingErr) {
			r.mu.Lock()
			st.phase = PhaseAwaitingCompletion
			st.missing = missingErr.Slots
			st.updatedAt = r.now()
			view := r.viewLocked(st)
			r.mu.Unlock()
			return view, nil
		}
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Drop the flight inside the same critical section that settles the
	// outcome, so no verdict can slip into a stash nobody reads anymore.
	st.inFlight = false

	// A verdict that raced the synchronous response wins: it is the richer,
	// authoritative result.
	if st.stashed != nil && st.stashed.TaskID == taskID {
		ev := *st.stashed
		st.stashed = nil
		r.applyVerdictLocked(ctx, sessionID, st, ev)
		return r.viewLocked(st), nil
	}

	st.outcome = &outcome
	switch outcome.Kind {
	case domain.OutcomeResolved:
		st.phase = PhaseResolved
		st.result = outcome.Result
		r.completeLocked(ctx, sessionID, st)
	case domain.OutcomeAccepted:
		st.phase = PhaseAccepted
		r.completeLocked(ctx, sessionID, st)
	case domain.OutcomePending:
		// Keep the session and the task binding; the verdict arrives later.
		st.phase = PhasePending
	default:
		st.phase = PhaseErrored
	}
	st.updatedAt = r.now()
	return r.viewLocked(st), nil
}

// completeLocked finishes a successful submission: the slot store is cleared
// and fresh identifiers are issued for the next round. Callers hold r.mu.
func (r *reconcilerService) completeLocked(ctx context.Context, sessionID string, st *sessionState) {
	if err := r.sessions.Clear(ctx, sessionID); err != nil {
		r.logger.Warn("session clear failed after completion", "session_id", sessionID, "err", err)
	}
	st.taskID = r.newTaskID()
	st.foxID = r.newFoxID()
	st.updatedAt = r.now()
}

// OnVerdict routes an async verdict to its session. During an in-flight
// submit the verdict is stashed for the submit path to pick up; otherwise it
// finalizes the session immediately.
func (r *reconcilerService) OnVerdict(ctx context.Context, ev domain.VerdictEvent) {
	sessionID, err := r.repo.TaskSession(ctx, ev.TaskID)
	if err != nil {
		r.logger.Warn("task lookup failed for verdict", "task_id", ev.TaskID, "err", err)
		return
	}
	if sessionID == "" {
		// Verdict for a task this instance never dispatched; nothing to
		// reconcile, storage and fan-out already happened upstream.
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	st := r.state(sessionID)
	if st.inFlight && st.taskID == ev.TaskID {
		evCopy := ev
		st.stashed = &evCopy
		return
	}
	if st.taskID != ev.TaskID {
		// Stale verdict for an identifier that was already rotated.
		return
	}

	r.applyVerdictLocked(ctx, sessionID, st, ev)
}

// applyVerdictLocked finalizes the session from an async verdict. Callers
// hold r.mu.
func (r *reconcilerService) applyVerdictLocked(ctx context.Context, sessionID string, st *sessionState, ev domain.VerdictEvent) {
	st.result = ev.Result()
	st.phase = PhaseResolved
	st.outcome = &domain.SubmissionOutcome{
		Kind:   domain.OutcomeResolved,
		TaskID: ev.TaskID,
		Result: st.result,
	}
	r.completeLocked(ctx, sessionID, st)
	r.logger.Info("session resolved by pushed verdict",
		"session_id", sessionID, "task_id", ev.TaskID, "status", st.result.Status)
}

func (r *reconcilerService) State(ctx context.Context, sessionID string) *SubmissionView {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.viewLocked(r.state(sessionID))
}

func (r *reconcilerService) viewLocked(st *sessionState) *SubmissionView {
	return &SubmissionView{
		Phase:     st.phase,
		TaskID:    st.taskID,
		FoxID:     st.foxID,
		Missing:   st.missing,
		Outcome:   st.outcome,
		Result:    st.result,
		UpdatedAt: st.updatedAt,
	}
}
