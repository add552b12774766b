package services

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// CheckInStore abstracts persistence for the check-in lifecycle. Every write
// is version-guarded: UpdateCheckIn and CompleteCheckIn must apply the row
// only if the stored version still equals expectedVersion, and must return
// ErrVersionConflict otherwise. CreateCheckIn must enforce the single
// in-progress check-in per (user, category) slot atomically and return
// ErrCheckInExists when the slot is taken. CompleteCheckIn persists the row
// and the recommendation batch in one atomic unit.
type CheckInStore interface {
	GetCheckIn(id string) (*CheckIn, error)
	GetInProgressCheckIn(userID, categoryID string) (*CheckIn, error)
	CreateCheckIn(c *CheckIn) error
	UpdateCheckIn(c *CheckIn, expectedVersion int64) error
	CompleteCheckIn(c *CheckIn, expectedVersion int64, recs []*Recommendation) error
	ListRecommendationsByCheckIn(checkinID string) ([]*Recommendation, error)
	AddAudit(e AuditEntry)
}

// CheckInEngine owns the check-in state machine: one in-progress session per
// (user, category), answers applied through compare-and-swap, completion and
// abort as the only terminal transitions.
type CheckInEngine struct {
	store   CheckInStore
	gen     QuestionGenerator
	scorer  ScoringEngine
	factory RecommendationFactory
	now     func() time.Time
	idGen   func() string
}

func NewCheckInEngine(store CheckInStore, gen QuestionGenerator, scorer ScoringEngine, factory RecommendationFactory) *CheckInEngine {
	return &CheckInEngine{
		store:   store,
		gen:     gen,
		scorer:  scorer,
		factory: factory,
		now:     func() time.Time { return time.Now().UTC() },
		idGen:   uuid.NewString,
	}
}

type StartResult struct {
	CheckIn  *CheckIn
	Question *Question // nil when the session is already ready to complete
	Resumed  bool
}

type AnswerRequest struct {
	QuestionID  string
	Value       StringList
	Explanation string
	// Version is the check-in version the caller last observed; the write is
	// applied only if it is still current.
	Version int64
}

type AnswerResult struct {
	CheckIn      *CheckIn
	NextQuestion *Question
	Done         bool // generator reported no more questions
}

type CompleteResult struct {
	CheckIn         *CheckIn
	Recommendations []*Recommendation
}

// Start finds or creates the in-progress check-in for (userID, categoryID).
// An existing session is resumed, never duplicated; two concurrent Start
// calls converge on one row via the storage uniqueness constraint.
func (e *CheckInEngine) Start(userID, categoryID string) (*StartResult, error) {
	if userID == "" {
		return nil, NewUnauthorizedError("user required")
	}
	existing, err := e.store.GetInProgressCheckIn(userID, categoryID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return e.resume(existing)
	}

	now := e.now()
	c := &CheckIn{
		ID:         e.idGen(),
		UserID:     userID,
		CategoryID: categoryID,
		State:      StateInProgress,
		Version:    1,
		CreatedAt:  now,
		StartedAt:  now,
	}
	first, err := e.gen.Next(categoryID, nil)
	if err != nil {
		return nil, NewBadGatewayError("question generator: " + err.Error())
	}
	if first != nil {
		first.Number = 1
		c.Questions = append(c.Questions, first)
	}
	if err := e.store.CreateCheckIn(c); err != nil {
		if errors.Is(err, ErrCheckInExists) {
			// Lost the race against a concurrent Start; resume the winner.
			winner, gerr := e.store.GetInProgressCheckIn(userID, categoryID)
			if gerr != nil {
				return nil, gerr
			}
			if winner == nil {
				return nil, NewConflictError("check-in slot contended, retry")
			}
			return e.resume(winner)
		}
		return nil, err
	}
	return &StartResult{CheckIn: c, Question: first}, nil
}

// resume returns the pending question of an existing in-progress check-in,
// issuing the next one from the generator if none is pending.
func (e *CheckInEngine) resume(c *CheckIn) (*StartResult, error) {
	for _, q := range c.Questions {
		if c.AnswerFor(q.ID) == nil {
			return &StartResult{CheckIn: c, Question: q, Resumed: true}, nil
		}
	}
	next, err := e.gen.Next(c.CategoryID, c.Answers)
	if err != nil {
		return nil, NewBadGatewayError("question generator: " + err.Error())
	}
	if next == nil {
		return &StartResult{CheckIn: c, Resumed: true}, nil
	}
	cp := c.Clone()
	next.Number = len(cp.Questions) + 1
	cp.Questions = append(cp.Questions, next)
	cp.Version++
	if err := e.store.UpdateCheckIn(cp, c.Version); err != nil {
		if errors.Is(err, ErrVersionConflict) {
			return nil, NewConflictError("check-in changed, re-fetch and retry")
		}
		return nil, err
	}
	return &StartResult{CheckIn: cp, Question: next, Resumed: true}, nil
}

// Answer records one answer under the caller-observed version. On version
// mismatch the write is rejected with a conflict; nothing is ever merged
// silently.
func (e *CheckInEngine) Answer(userID, checkinID string, req AnswerRequest) (*AnswerResult, error) {
	c, err := e.owned(userID, checkinID)
	if err != nil {
		return nil, err
	}
	if c.State != StateInProgress {
		return nil, NewInvalidStateError("check-in is " + string(c.State))
	}
	if req.QuestionID == "" || len(req.Value) == 0 {
		return nil, NewInvalidError("question_id and value required")
	}
	if !c.QuestionIssued(req.QuestionID) {
		return nil, NewUnknownQuestionError("question " + req.QuestionID + " was never issued for this check-in")
	}
	if c.Version != req.Version {
		return nil, NewConflictError("stale version, re-fetch and retry")
	}

	cp := c.Clone()
	cp.SetAnswer(&Answer{
		QuestionID:  req.QuestionID,
		Value:       req.Value,
		Explanation: req.Explanation,
		AnsweredAt:  e.now(),
	})
	next, err := e.gen.Next(cp.CategoryID, cp.Answers)
	if err != nil {
		return nil, NewBadGatewayError("question generator: " + err.Error())
	}
	if next != nil && !cp.QuestionIssued(next.ID) {
		next.Number = len(cp.Questions) + 1
		cp.Questions = append(cp.Questions, next)
	}
	cp.Version++
	if err := e.store.UpdateCheckIn(cp, req.Version); err != nil {
		if errors.Is(err, ErrVersionConflict) {
			return nil, NewConflictError("concurrent write, re-fetch and retry")
		}
		return nil, err
	}
	return &AnswerResult{CheckIn: cp, NextQuestion: next, Done: next == nil}, nil
}

// Complete finalizes an in-progress check-in: scores the answers, persists
// the result and the generated recommendations atomically. Completing an
// already-completed check-in returns the stored outcome without recomputing
// or duplicating recommendations.
func (e *CheckInEngine) Complete(userID, checkinID string) (*CompleteResult, error) {
	c, err := e.owned(userID, checkinID)
	if err != nil {
		return nil, err
	}
	switch c.State {
	case StateCompleted:
		recs, rerr := e.store.ListRecommendationsByCheckIn(c.ID)
		if rerr != nil {
			return nil, rerr
		}
		return &CompleteResult{CheckIn: c, Recommendations: recs}, nil
	case StateAborted:
		return nil, NewInvalidStateError("check-in is aborted")
	}

	missing, err := e.gen.IsComplete(c.CategoryID, c.Answers)
	if err != nil {
		return nil, NewBadGatewayError("question generator: " + err.Error())
	}
	if len(missing) > 0 {
		return nil, NewIncompleteAnswersError(missing)
	}
	result, err := e.scorer.Score(c.Answers)
	if err != nil {
		if _, ok := AsServiceError(err); ok {
			return nil, err
		}
		return nil, NewBadGatewayError("scoring: " + err.Error())
	}

	now := e.now()
	recs := make([]*Recommendation, 0)
	for _, d := range e.factory.Build(result) {
		recs = append(recs, &Recommendation{
			ID:         e.idGen(),
			UserID:     c.UserID,
			CategoryID: c.CategoryID,
			CheckInID:  c.ID,
			Title:      d.Title,
			Text:       d.Text,
			Action:     d.Action,
			Why:        d.Why,
			Importance: d.Importance,
			CreatedAt:  now,
		})
	}

	cp := c.Clone()
	cp.State = StateCompleted
	cp.CompletedAt = &now
	cp.Result = result
	cp.Version++
	if err := e.store.CompleteCheckIn(cp, c.Version, recs); err != nil {
		if errors.Is(err, ErrVersionConflict) {
			return nil, NewConflictError("concurrent write, re-fetch and retry")
		}
		return nil, err
	}
	e.store.AddAudit(AuditEntry{Time: now, Actor: userID, Action: "checkin.complete", Target: c.ID})
	return &CompleteResult{CheckIn: cp, Recommendations: recs}, nil
}

// Abort terminates an in-progress check-in without scoring. Aborting an
// already-aborted check-in is a no-op success; aborting a completed one is an
// invalid transition.
func (e *CheckInEngine) Abort(userID, checkinID string) error {
	c, err := e.owned(userID, checkinID)
	if err != nil {
		return err
	}
	switch c.State {
	case StateAborted:
		return nil
	case StateCompleted:
		return NewInvalidStateError("check-in is completed")
	}
	now := e.now()
	cp := c.Clone()
	cp.State = StateAborted
	cp.CompletedAt = &now
	cp.Version++
	if err := e.store.UpdateCheckIn(cp, c.Version); err != nil {
		if errors.Is(err, ErrVersionConflict) {
			return NewConflictError("concurrent write, re-fetch and retry")
		}
		return err
	}
	e.store.AddAudit(AuditEntry{Time: now, Actor: userID, Action: "checkin.abort", Target: c.ID})
	return nil
}

// Get returns a check-in owned by the caller.
func (e *CheckInEngine) Get(userID, checkinID string) (*CheckIn, error) {
	return e.owned(userID, checkinID)
}

func (e *CheckInEngine) owned(userID, checkinID string) (*CheckIn, error) {
	if userID == "" {
		return nil, NewUnauthorizedError("user required")
	}
	c, err := e.store.GetCheckIn(checkinID)
	if err != nil {
		return nil, err
	}
	// Ownership mismatch is indistinguishable from absence to the caller.
	if c == nil || c.UserID != userID {
		return nil, NewNotFoundError("check-in not found")
	}
	return c, nil
}
