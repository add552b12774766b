package services

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

type stubCheckInStore struct {
	mu       sync.Mutex
	checkins map[string]*CheckIn
	recs     map[string][]*Recommendation
	audit    []AuditEntry

	failComplete bool
}

func newStubCheckInStore() *stubCheckInStore {
	return &stubCheckInStore{
		checkins: map[string]*CheckIn{},
		recs:     map[string][]*Recommendation{},
	}
}

func (s *stubCheckInStore) GetCheckIn(id string) (*CheckIn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.checkins[id]
	if c == nil {
		return nil, nil
	}
	return c.Clone(), nil
}

func (s *stubCheckInStore) GetInProgressCheckIn(userID, categoryID string) (*CheckIn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.checkins {
		if c.UserID == userID && c.CategoryID == categoryID && c.State == StateInProgress {
			return c.Clone(), nil
		}
	}
	return nil, nil
}

func (s *stubCheckInStore) CreateCheckIn(c *CheckIn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.State == StateInProgress {
		for _, cur := range s.checkins {
			if cur.UserID == c.UserID && cur.CategoryID == c.CategoryID && cur.State == StateInProgress {
				return ErrCheckInExists
			}
		}
	}
	s.checkins[c.ID] = c.Clone()
	return nil
}

func (s *stubCheckInStore) UpdateCheckIn(c *CheckIn, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.checkins[c.ID]
	if cur == nil || cur.Version != expectedVersion {
		return ErrVersionConflict
	}
	s.checkins[c.ID] = c.Clone()
	return nil
}

func (s *stubCheckInStore) CompleteCheckIn(c *CheckIn, expectedVersion int64, recs []*Recommendation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failComplete {
		return errors.New("insert recommendations: disk full")
	}
	cur := s.checkins[c.ID]
	if cur == nil || cur.Version != expectedVersion {
		return ErrVersionConflict
	}
	s.checkins[c.ID] = c.Clone()
	for _, r := range recs {
		cp := *r
		s.recs[c.ID] = append(s.recs[c.ID], &cp)
	}
	return nil
}

func (s *stubCheckInStore) ListRecommendationsByCheckIn(checkinID string) ([]*Recommendation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Recommendation, 0, len(s.recs[checkinID]))
	for _, r := range s.recs[checkinID] {
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}

func (s *stubCheckInStore) AddAudit(e AuditEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, e)
}

func (s *stubCheckInStore) inProgressCount(userID, categoryID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.checkins {
		if c.UserID == userID && c.CategoryID == categoryID && c.State == StateInProgress {
			n++
		}
	}
	return n
}

type countingScorer struct {
	inner ScoringEngine
	calls int
}

func (c *countingScorer) Score(answers []*Answer) (*CheckInResult, error) {
	c.calls++
	return c.inner.Score(answers)
}

func twoQuestionTemplate() []QuestionTemplate {
	return []QuestionTemplate{{
		CategoryID: "",
		Questions: []*Question{
			{ID: "q1", Kind: "choice", Required: true, StemI18n: map[string]string{"en": "How are you?"}},
			{ID: "q2", Kind: "multi", Required: true, StemI18n: map[string]string{"en": "Which areas?"}},
		},
	}}
}

func newTestEngine(store CheckInStore, templates []QuestionTemplate) (*CheckInEngine, *countingScorer) {
	scorer := &countingScorer{inner: NewHeuristicScorer()}
	e := NewCheckInEngine(store, NewTemplateGenerator(templates), scorer, NewTieredFactory())
	e.now = func() time.Time { return time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC) }
	n := 0
	e.idGen = func() string { n++; return fmt.Sprintf("id-%04d", n) }
	return e, scorer
}

func TestStartAnswerCompleteFlow(t *testing.T) {
	store := newStubCheckInStore()
	engine, _ := newTestEngine(store, twoQuestionTemplate())

	started, err := engine.Start("u1", "")
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if started.CheckIn.State != StateInProgress {
		t.Fatalf("state = %q, want %q", started.CheckIn.State, StateInProgress)
	}
	if started.Question == nil || started.Question.ID != "q1" {
		t.Fatalf("first question = %+v, want q1", started.Question)
	}
	if started.CheckIn.Version != 1 {
		t.Fatalf("version = %d, want 1", started.CheckIn.Version)
	}

	ans1, err := engine.Answer("u1", started.CheckIn.ID, AnswerRequest{
		QuestionID: "q1", Value: StringList{"Good"}, Version: 1,
	})
	if err != nil {
		t.Fatalf("Answer q1 returned error: %v", err)
	}
	if ans1.Done || ans1.NextQuestion == nil || ans1.NextQuestion.ID != "q2" {
		t.Fatalf("after q1: next = %+v done = %v, want q2/false", ans1.NextQuestion, ans1.Done)
	}
	if ans1.CheckIn.Version != 2 {
		t.Fatalf("version after answer = %d, want 2", ans1.CheckIn.Version)
	}

	ans2, err := engine.Answer("u1", started.CheckIn.ID, AnswerRequest{
		QuestionID: "q2", Value: StringList{"Physical", "Mental"}, Version: 2,
	})
	if err != nil {
		t.Fatalf("Answer q2 returned error: %v", err)
	}
	if !ans2.Done || ans2.NextQuestion != nil {
		t.Fatalf("after q2: done = %v next = %+v, want true/nil", ans2.Done, ans2.NextQuestion)
	}

	done, err := engine.Complete("u1", started.CheckIn.ID)
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if done.CheckIn.State != StateCompleted {
		t.Fatalf("state = %q, want %q", done.CheckIn.State, StateCompleted)
	}
	if done.CheckIn.Result == nil {
		t.Fatalf("completed check-in has nil result")
	}
	if lvl := done.CheckIn.Result.WellnessLevel; lvl < 0 || lvl > 100 {
		t.Fatalf("wellness level = %d, want 0..100", lvl)
	}
	if done.CheckIn.CompletedAt == nil {
		t.Fatalf("completed check-in has nil completed_at")
	}
	if done.Recommendations == nil {
		t.Fatalf("recommendations slice is nil, want non-nil (possibly empty)")
	}
}

func TestStartResumesExisting(t *testing.T) {
	store := newStubCheckInStore()
	engine, _ := newTestEngine(store, twoQuestionTemplate())

	first, err := engine.Start("u1", "cat-A")
	if err != nil {
		t.Fatalf("first Start returned error: %v", err)
	}
	second, err := engine.Start("u1", "cat-A")
	if err != nil {
		t.Fatalf("second Start returned error: %v", err)
	}
	if second.CheckIn.ID != first.CheckIn.ID {
		t.Fatalf("second start id = %q, want resume of %q", second.CheckIn.ID, first.CheckIn.ID)
	}
	if !second.Resumed {
		t.Fatalf("second start not marked resumed")
	}
	if n := store.inProgressCount("u1", "cat-A"); n != 1 {
		t.Fatalf("in-progress rows = %d, want 1", n)
	}
}

func TestStartResumeAdvancesToPendingQuestion(t *testing.T) {
	store := newStubCheckInStore()
	engine, _ := newTestEngine(store, twoQuestionTemplate())

	started, _ := engine.Start("u1", "")
	if _, err := engine.Answer("u1", started.CheckIn.ID, AnswerRequest{QuestionID: "q1", Value: StringList{"Good"}, Version: 1}); err != nil {
		t.Fatalf("Answer returned error: %v", err)
	}
	resumed, err := engine.Start("u1", "")
	if err != nil {
		t.Fatalf("resume Start returned error: %v", err)
	}
	if resumed.Question == nil || resumed.Question.ID != "q2" {
		t.Fatalf("resume question = %+v, want q2", resumed.Question)
	}
}

func TestConcurrentStartYieldsSingleCheckIn(t *testing.T) {
	store := newStubCheckInStore()
	scorer := &countingScorer{inner: NewHeuristicScorer()}
	engine := NewCheckInEngine(store, NewTemplateGenerator(twoQuestionTemplate()), scorer, NewTieredFactory())

	const n = 16
	ids := make([]string, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := engine.Start("u1", "cat-A")
			if err == nil {
				ids[i] = res.CheckIn.ID
			}
			errs[i] = err
		}(i)
	}
	wg.Wait()
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("start %d returned error: %v", i, errs[i])
		}
		if ids[i] != ids[0] {
			t.Fatalf("start %d id = %q, want %q", i, ids[i], ids[0])
		}
	}
	if got := store.inProgressCount("u1", "cat-A"); got != 1 {
		t.Fatalf("in-progress rows = %d, want 1", got)
	}
}

func TestAnswerVersionConflict(t *testing.T) {
	store := newStubCheckInStore()
	engine, _ := newTestEngine(store, twoQuestionTemplate())

	started, _ := engine.Start("u1", "")
	id := started.CheckIn.ID

	// First write on version 1 wins.
	if _, err := engine.Answer("u1", id, AnswerRequest{QuestionID: "q1", Value: StringList{"Good"}, Version: 1}); err != nil {
		t.Fatalf("first answer returned error: %v", err)
	}
	// Second write still carries version 1 and must be rejected.
	_, err := engine.Answer("u1", id, AnswerRequest{QuestionID: "q1", Value: StringList{"Bad"}, Version: 1})
	se, ok := AsServiceError(err)
	if !ok || se.Code != ErrorConflict {
		t.Fatalf("stale answer error = %v, want conflict", err)
	}
	// The winning answer is intact.
	cur, _ := store.GetCheckIn(id)
	a := cur.AnswerFor("q1")
	if a == nil || len(a.Value) != 1 || a.Value[0] != "Good" {
		t.Fatalf("stored answer = %+v, want Good", a)
	}
}

func TestConcurrentAnswersExactlyOneWins(t *testing.T) {
	store := newStubCheckInStore()
	engine, _ := newTestEngine(store, twoQuestionTemplate())
	started, _ := engine.Start("u1", "")
	id := started.CheckIn.ID

	var wg sync.WaitGroup
	results := make([]error, 2)
	values := []string{"Good", "Bad"}
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = engine.Answer("u1", id, AnswerRequest{QuestionID: "q1", Value: StringList{values[i]}, Version: 1})
		}(i)
	}
	wg.Wait()

	okCount, conflictCount := 0, 0
	for _, err := range results {
		if err == nil {
			okCount++
			continue
		}
		if se, ok := AsServiceError(err); ok && se.Code == ErrorConflict {
			conflictCount++
		}
	}
	if okCount != 1 || conflictCount != 1 {
		t.Fatalf("ok = %d conflict = %d, want exactly one of each (results: %v)", okCount, conflictCount, results)
	}
	cur, _ := store.GetCheckIn(id)
	if a := cur.AnswerFor("q1"); a == nil {
		t.Fatalf("no answer stored after race")
	}
}

func TestAnswerReplacementWhileInProgress(t *testing.T) {
	store := newStubCheckInStore()
	engine, _ := newTestEngine(store, twoQuestionTemplate())
	started, _ := engine.Start("u1", "")
	id := started.CheckIn.ID

	if _, err := engine.Answer("u1", id, AnswerRequest{QuestionID: "q1", Value: StringList{"Low"}, Version: 1}); err != nil {
		t.Fatalf("answer returned error: %v", err)
	}
	// Re-answer the same question with the fresh version.
	res, err := engine.Answer("u1", id, AnswerRequest{QuestionID: "q1", Value: StringList{"Great"}, Version: 2})
	if err != nil {
		t.Fatalf("replacement answer returned error: %v", err)
	}
	if a := res.CheckIn.AnswerFor("q1"); a == nil || a.Value[0] != "Great" {
		t.Fatalf("replaced answer = %+v, want Great", a)
	}
	if len(res.CheckIn.Answers) != 1 {
		t.Fatalf("answers length = %d, want 1 after replacement", len(res.CheckIn.Answers))
	}
}

func TestAnswerUnknownQuestion(t *testing.T) {
	store := newStubCheckInStore()
	engine, _ := newTestEngine(store, twoQuestionTemplate())
	started, _ := engine.Start("u1", "")

	_, err := engine.Answer("u1", started.CheckIn.ID, AnswerRequest{QuestionID: "q9", Value: StringList{"x"}, Version: 1})
	se, ok := AsServiceError(err)
	if !ok || se.Code != ErrorUnknownQuestion {
		t.Fatalf("error = %v, want unknown_question", err)
	}
}

func TestCompleteRequiresMandatoryAnswers(t *testing.T) {
	store := newStubCheckInStore()
	engine, _ := newTestEngine(store, twoQuestionTemplate())
	started, _ := engine.Start("u1", "")
	if _, err := engine.Answer("u1", started.CheckIn.ID, AnswerRequest{QuestionID: "q1", Value: StringList{"Good"}, Version: 1}); err != nil {
		t.Fatalf("answer returned error: %v", err)
	}

	_, err := engine.Complete("u1", started.CheckIn.ID)
	se, ok := AsServiceError(err)
	if !ok || se.Code != ErrorIncompleteAnswers {
		t.Fatalf("error = %v, want incomplete_answers", err)
	}
	if len(se.Missing) != 1 || se.Missing[0] != "q2" {
		t.Fatalf("missing = %v, want [q2]", se.Missing)
	}
	cur, _ := store.GetCheckIn(started.CheckIn.ID)
	if cur.State != StateInProgress {
		t.Fatalf("state after failed complete = %q, want in_progress", cur.State)
	}
}

func TestCompleteIdempotent(t *testing.T) {
	store := newStubCheckInStore()
	engine, scorer := newTestEngine(store, twoQuestionTemplate())
	started, _ := engine.Start("u1", "")
	id := started.CheckIn.ID
	mustAnswerAll(t, engine, id)

	first, err := engine.Complete("u1", id)
	if err != nil {
		t.Fatalf("first complete returned error: %v", err)
	}
	second, err := engine.Complete("u1", id)
	if err != nil {
		t.Fatalf("second complete returned error: %v", err)
	}
	if scorer.calls != 1 {
		t.Fatalf("scorer calls = %d, want 1 (no recompute on idempotent complete)", scorer.calls)
	}
	if *second.CheckIn.Result != *first.CheckIn.Result {
		t.Fatalf("second result = %+v, want %+v", second.CheckIn.Result, first.CheckIn.Result)
	}
	if len(second.Recommendations) != len(first.Recommendations) {
		t.Fatalf("recommendation count after 2nd complete = %d, want %d", len(second.Recommendations), len(first.Recommendations))
	}
	stored, _ := store.ListRecommendationsByCheckIn(id)
	if len(stored) != len(first.Recommendations) {
		t.Fatalf("stored recommendations = %d, want %d", len(stored), len(first.Recommendations))
	}
}

func TestCompleteRollsBackOnRecommendationFailure(t *testing.T) {
	store := newStubCheckInStore()
	engine, _ := newTestEngine(store, twoQuestionTemplate())
	started, _ := engine.Start("u1", "")
	id := started.CheckIn.ID
	mustAnswerAll(t, engine, id)

	store.failComplete = true
	if _, err := engine.Complete("u1", id); err == nil {
		t.Fatalf("complete succeeded despite storage failure")
	}
	cur, _ := store.GetCheckIn(id)
	if cur.State != StateInProgress {
		t.Fatalf("state = %q, want in_progress after rollback", cur.State)
	}
	if cur.Result != nil {
		t.Fatalf("result = %+v, want nil after rollback", cur.Result)
	}
	recs, _ := store.ListRecommendationsByCheckIn(id)
	if len(recs) != 0 {
		t.Fatalf("recommendations = %d, want 0 after rollback", len(recs))
	}

	// A retry after the outage succeeds normally.
	store.failComplete = false
	done, err := engine.Complete("u1", id)
	if err != nil {
		t.Fatalf("retry complete returned error: %v", err)
	}
	if done.CheckIn.State != StateCompleted {
		t.Fatalf("state = %q, want completed", done.CheckIn.State)
	}
}

func TestAbortTerminality(t *testing.T) {
	store := newStubCheckInStore()
	engine, _ := newTestEngine(store, twoQuestionTemplate())
	started, _ := engine.Start("u1", "")
	id := started.CheckIn.ID

	if err := engine.Abort("u1", id); err != nil {
		t.Fatalf("abort returned error: %v", err)
	}
	cur, _ := store.GetCheckIn(id)
	if cur.State != StateAborted {
		t.Fatalf("state = %q, want aborted", cur.State)
	}
	// Answers survive for audit.
	if cur.Questions == nil {
		t.Fatalf("issued questions dropped on abort")
	}

	if _, err := engine.Answer("u1", id, AnswerRequest{QuestionID: "q1", Value: StringList{"Good"}, Version: cur.Version}); err == nil {
		t.Fatalf("answer on aborted check-in succeeded")
	} else if se, _ := AsServiceError(err); se == nil || se.Code != ErrorInvalidState {
		t.Fatalf("answer on aborted error = %v, want invalid_state", err)
	}
	if _, err := engine.Complete("u1", id); err == nil {
		t.Fatalf("complete on aborted check-in succeeded")
	} else if se, _ := AsServiceError(err); se == nil || se.Code != ErrorInvalidState {
		t.Fatalf("complete on aborted error = %v, want invalid_state", err)
	}
	// Second abort is a no-op success.
	if err := engine.Abort("u1", id); err != nil {
		t.Fatalf("second abort returned error: %v", err)
	}
}

func TestAbortCompletedIsInvalid(t *testing.T) {
	store := newStubCheckInStore()
	engine, _ := newTestEngine(store, twoQuestionTemplate())
	started, _ := engine.Start("u1", "")
	id := started.CheckIn.ID
	mustAnswerAll(t, engine, id)
	if _, err := engine.Complete("u1", id); err != nil {
		t.Fatalf("complete returned error: %v", err)
	}

	err := engine.Abort("u1", id)
	se, ok := AsServiceError(err)
	if !ok || se.Code != ErrorInvalidState {
		t.Fatalf("abort completed error = %v, want invalid_state", err)
	}
}

func TestOwnershipHidesForeignCheckIns(t *testing.T) {
	store := newStubCheckInStore()
	engine, _ := newTestEngine(store, twoQuestionTemplate())
	started, _ := engine.Start("u1", "")

	_, err := engine.Complete("u2", started.CheckIn.ID)
	se, ok := AsServiceError(err)
	if !ok || se.Code != ErrorNotFound {
		t.Fatalf("foreign complete error = %v, want not_found", err)
	}
	if err := engine.Abort("u2", started.CheckIn.ID); err == nil {
		t.Fatalf("foreign abort succeeded")
	}
}

func TestGeneratorFailurePropagates(t *testing.T) {
	store := newStubCheckInStore()
	scorer := &countingScorer{inner: NewHeuristicScorer()}
	engine := NewCheckInEngine(store, failingGenerator{}, scorer, NewTieredFactory())

	_, err := engine.Start("u1", "")
	se, ok := AsServiceError(err)
	if !ok || se.Code != ErrorBadGateway {
		t.Fatalf("generator failure error = %v, want bad_gateway", err)
	}
}

type failingGenerator struct{}

func (failingGenerator) Next(string, []*Answer) (*Question, error) {
	return nil, errors.New("model unavailable")
}

func (failingGenerator) IsComplete(string, []*Answer) ([]string, error) {
	return nil, errors.New("model unavailable")
}

func mustAnswerAll(t *testing.T, engine *CheckInEngine, id string) {
	t.Helper()
	if _, err := engine.Answer("u1", id, AnswerRequest{QuestionID: "q1", Value: StringList{"Good"}, Version: 1}); err != nil {
		t.Fatalf("answer q1 returned error: %v", err)
	}
	if _, err := engine.Answer("u1", id, AnswerRequest{QuestionID: "q2", Value: StringList{"Physical", "Mental"}, Version: 2}); err != nil {
		t.Fatalf("answer q2 returned error: %v", err)
	}
}
