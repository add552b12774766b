package api

import (
	"sort"
	"sync"
	"time"
)

type CheckIn struct {
	ID          string         `json:"id"`
	UserID      string         `json:"user_id"`
	CategoryID  string         `json:"category_id,omitempty"`
	State       string         `json:"state"`
	Questions   []*Question    `json:"questions,omitempty"`
	Answers     []*Answer      `json:"answers,omitempty"`
	Version     int64          `json:"version"`
	CreatedAt   time.Time      `json:"created_at"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Result      *CheckInResult `json:"result,omitempty"`
}

type Question struct {
	ID          string              `json:"id"`
	Number      int                 `json:"number"`
	Kind        string              `json:"kind,omitempty"`
	Required    bool                `json:"required,omitempty"`
	StemI18n    map[string]string   `json:"stem_i18n,omitempty"`
	OptionsI18n map[string][]string `json:"options_i18n,omitempty"`
}

type Answer struct {
	QuestionID  string    `json:"question_id"`
	Value       []string  `json:"value"`
	Explanation string    `json:"explanation,omitempty"`
	AnsweredAt  time.Time `json:"answered_at"`
}

type CheckInResult struct {
	Summary       string `json:"summary"`
	Insight       string `json:"insight"`
	Brief         string `json:"brief"`
	WellnessLevel int    `json:"wellness_level"`
}

type Recommendation struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	CategoryID  string     `json:"category_id,omitempty"`
	CheckInID   string     `json:"checkin_id"`
	Title       string     `json:"title"`
	Text        string     `json:"text"`
	Action      string     `json:"action,omitempty"`
	Why         string     `json:"why,omitempty"`
	Importance  int        `json:"importance"`
	CreatedAt   time.Time  `json:"created_at"`
	ViewedAt    *time.Time `json:"viewed_at,omitempty"`
	DismissedAt *time.Time `json:"dismissed_at,omitempty"`
}

type Category struct {
	ID              string            `json:"id"`
	NameI18n        map[string]string `json:"name_i18n,omitempty"`
	DescriptionI18n map[string]string `json:"description_i18n,omitempty"`
	Order           int               `json:"order,omitempty"`
}

type AuditEntry struct {
	Time   time.Time `json:"time"`
	Actor  string    `json:"actor"`
	Action string    `json:"action"`
	Target string    `json:"target"`
	Note   string    `json:"note,omitempty"`
}

const (
	stateInProgress = "in_progress"
)

type memoryStore struct {
	mu         sync.RWMutex
	categories map[string]*Category
	checkins   map[string]*CheckIn
	recs       map[string]*Recommendation
	audit      []AuditEntry
}

// NewMemoryStore returns an in-memory Store with the same CAS and uniqueness
// semantics as the SQLite store. Useful for tests and local development.
func NewMemoryStore() Store {
	return newMemoryStore()
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		categories: map[string]*Category{},
		checkins:   map[string]*CheckIn{},
		recs:       map[string]*Recommendation{},
	}
}

func cloneCheckIn(c *CheckIn) *CheckIn {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Questions = make([]*Question, len(c.Questions))
	for i, q := range c.Questions {
		qc := *q
		cp.Questions[i] = &qc
	}
	cp.Answers = make([]*Answer, len(c.Answers))
	for i, a := range c.Answers {
		ac := *a
		ac.Value = append([]string(nil), a.Value...)
		cp.Answers[i] = &ac
	}
	if c.CompletedAt != nil {
		t := *c.CompletedAt
		cp.CompletedAt = &t
	}
	if c.Result != nil {
		r := *c.Result
		cp.Result = &r
	}
	return &cp
}

func cloneRecommendation(r *Recommendation) *Recommendation {
	if r == nil {
		return nil
	}
	cp := *r
	if r.ViewedAt != nil {
		t := *r.ViewedAt
		cp.ViewedAt = &t
	}
	if r.DismissedAt != nil {
		t := *r.DismissedAt
		cp.DismissedAt = &t
	}
	return &cp
}

func (s *memoryStore) AddCategory(c *Category) {
	if c == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.categories[c.ID] = &cp
}

func (s *memoryStore) GetCategory(id string) *Category {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c := s.categories[id]; c != nil {
		cp := *c
		return &cp
	}
	return nil
}

func (s *memoryStore) ListCategories() []*Category {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Category, 0, len(s.categories))
	for _, c := range s.categories {
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *memoryStore) CreateCheckIn(c *CheckIn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.State == stateInProgress {
		for _, cur := range s.checkins {
			if cur.UserID == c.UserID && cur.CategoryID == c.CategoryID && cur.State == stateInProgress {
				return ErrCheckInExists
			}
		}
	}
	s.checkins[c.ID] = cloneCheckIn(c)
	return nil
}

func (s *memoryStore) GetCheckIn(id string) *CheckIn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneCheckIn(s.checkins[id])
}

func (s *memoryStore) GetInProgressCheckIn(userID, categoryID string) *CheckIn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.checkins {
		if c.UserID == userID && c.CategoryID == categoryID && c.State == stateInProgress {
			return cloneCheckIn(c)
		}
	}
	return nil
}

func (s *memoryStore) UpdateCheckInCAS(c *CheckIn, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.checkins[c.ID]
	if cur == nil || cur.Version != expectedVersion {
		return ErrVersionConflict
	}
	s.checkins[c.ID] = cloneCheckIn(c)
	return nil
}

func (s *memoryStore) CompleteCheckInTx(c *CheckIn, expectedVersion int64, recs []*Recommendation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.checkins[c.ID]
	if cur == nil || cur.Version != expectedVersion {
		return ErrVersionConflict
	}
	s.checkins[c.ID] = cloneCheckIn(c)
	for _, r := range recs {
		s.recs[r.ID] = cloneRecommendation(r)
	}
	return nil
}

func (s *memoryStore) ListCheckInsByUser(userID string) []*CheckIn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*CheckIn{}
	for _, c := range s.checkins {
		if c.UserID == userID {
			out = append(out, cloneCheckIn(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *memoryStore) GetRecommendation(id string) *Recommendation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneRecommendation(s.recs[id])
}

func (s *memoryStore) ListRecommendationsByUser(userID string) []*Recommendation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*Recommendation{}
	for _, r := range s.recs {
		if r.UserID == userID {
			out = append(out, cloneRecommendation(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *memoryStore) ListRecommendationsByCheckIn(checkinID string) []*Recommendation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*Recommendation{}
	for _, r := range s.recs {
		if r.CheckInID == checkinID {
			out = append(out, cloneRecommendation(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *memoryStore) MarkRecommendationViewed(id string, at time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.recs[id]
	if r == nil {
		return false
	}
	if r.ViewedAt == nil {
		r.ViewedAt = &at
	}
	return true
}

func (s *memoryStore) MarkRecommendationDismissed(id string, at time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.recs[id]
	if r == nil {
		return false
	}
	if r.DismissedAt == nil {
		r.DismissedAt = &at
	}
	return true
}

func (s *memoryStore) AddAudit(e AuditEntry) {
	s.mu.Lock()
	s.audit = append(s.audit, e)
	s.mu.Unlock()
}

func (s *memoryStore) ListAudit() []AuditEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]AuditEntry, len(s.audit))
	copy(out, s.audit)
	return out
}
