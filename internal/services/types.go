package services

import (
	"encoding/json"
	"time"
)

type CheckInState string

const (
	StateInProgress CheckInState = "in_progress"
	StateCompleted  CheckInState = "completed"
	StateAborted    CheckInState = "aborted"
)

// Terminal reports whether no further transition may leave the state.
func (s CheckInState) Terminal() bool {
	return s == StateCompleted || s == StateAborted
}

// StringList accepts either a JSON string or an array of strings, so that
// single-choice and multi-choice answers share one wire shape.
type StringList []string

func (l *StringList) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*l = StringList{s}
		return nil
	}
	var ss []string
	if err := json.Unmarshal(b, &ss); err != nil {
		return err
	}
	*l = StringList(ss)
	return nil
}

type Question struct {
	ID          string              `json:"id" yaml:"id"`
	Number      int                 `json:"number" yaml:"number"`
	Kind        string              `json:"kind,omitempty" yaml:"kind"` // text | choice | multi
	Required    bool                `json:"required,omitempty" yaml:"required"`
	StemI18n    map[string]string   `json:"stem_i18n,omitempty" yaml:"stem_i18n"`
	OptionsI18n map[string][]string `json:"options_i18n,omitempty" yaml:"options_i18n"`
}

type Answer struct {
	QuestionID  string     `json:"question_id"`
	Value       StringList `json:"value"`
	Explanation string     `json:"explanation,omitempty"`
	AnsweredAt  time.Time  `json:"answered_at"`
}

type CheckInResult struct {
	Summary       string `json:"summary"`
	Insight       string `json:"insight"`
	Brief         string `json:"brief"`
	WellnessLevel int    `json:"wellness_level"` // 0..100
}

type CheckIn struct {
	ID          string         `json:"id"`
	UserID      string         `json:"user_id"`
	CategoryID  string         `json:"category_id,omitempty"` // empty means the general slot
	State       CheckInState   `json:"state"`
	Questions   []*Question    `json:"questions,omitempty"` // issued so far, in issue order
	Answers     []*Answer      `json:"answers,omitempty"`   // insertion order is answer order
	Version     int64          `json:"version"`
	CreatedAt   time.Time      `json:"created_at"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Result      *CheckInResult `json:"result,omitempty"`
}

// AnswerFor returns the stored answer for a question id, or nil.
func (c *CheckIn) AnswerFor(questionID string) *Answer {
	for _, a := range c.Answers {
		if a.QuestionID == questionID {
			return a
		}
	}
	return nil
}

// QuestionIssued reports whether the generator ever issued the question id
// for this check-in.
func (c *CheckIn) QuestionIssued(questionID string) bool {
	for _, q := range c.Questions {
		if q.ID == questionID {
			return true
		}
	}
	return false
}

// SetAnswer writes or replaces the answer for a question. Replacement keeps
// the original insertion position.
func (c *CheckIn) SetAnswer(a *Answer) {
	for i, prev := range c.Answers {
		if prev.QuestionID == a.QuestionID {
			c.Answers[i] = a
			return
		}
	}
	c.Answers = append(c.Answers, a)
}

// Clone deep-copies the check-in so callers can mutate a candidate row
// without aliasing stored state.
func (c *CheckIn) Clone() *CheckIn {
	cp := *c
	cp.Questions = make([]*Question, len(c.Questions))
	for i, q := range c.Questions {
		qc := *q
		cp.Questions[i] = &qc
	}
	cp.Answers = make([]*Answer, len(c.Answers))
	for i, a := range c.Answers {
		ac := *a
		ac.Value = append(StringList(nil), a.Value...)
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

type Recommendation struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	CategoryID  string     `json:"category_id,omitempty"`
	CheckInID   string     `json:"checkin_id"`
	Title       string     `json:"title"`
	Text        string     `json:"text"`
	Action      string     `json:"action,omitempty"`
	Why         string     `json:"why,omitempty"`
	Importance  int        `json:"importance"` // 0..10
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
	Time   time.Time
	Actor  string
	Action string
	Target string
	Note   string
}
