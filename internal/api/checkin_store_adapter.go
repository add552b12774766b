package api

import (
	"github.com/zitrono/totalis-supabase-sub000/internal/services"
)

type checkinStoreAdapter struct {
	store Store
}

func newCheckinStoreAdapter(store Store) services.CheckInStore {
	return &checkinStoreAdapter{store: store}
}

func (a *checkinStoreAdapter) GetCheckIn(id string) (*services.CheckIn, error) {
	return convertAPICheckIn(a.store.GetCheckIn(id)), nil
}

func (a *checkinStoreAdapter) GetInProgressCheckIn(userID, categoryID string) (*services.CheckIn, error) {
	return convertAPICheckIn(a.store.GetInProgressCheckIn(userID, categoryID)), nil
}

func (a *checkinStoreAdapter) CreateCheckIn(c *services.CheckIn) error {
	return translateStoreErr(a.store.CreateCheckIn(convertServiceCheckIn(c)))
}

func (a *checkinStoreAdapter) UpdateCheckIn(c *services.CheckIn, expectedVersion int64) error {
	return translateStoreErr(a.store.UpdateCheckInCAS(convertServiceCheckIn(c), expectedVersion))
}

func (a *checkinStoreAdapter) CompleteCheckIn(c *services.CheckIn, expectedVersion int64, recs []*services.Recommendation) error {
	batch := make([]*Recommendation, 0, len(recs))
	for _, r := range recs {
		batch = append(batch, convertServiceRecommendation(r))
	}
	return translateStoreErr(a.store.CompleteCheckInTx(convertServiceCheckIn(c), expectedVersion, batch))
}

func (a *checkinStoreAdapter) ListRecommendationsByCheckIn(checkinID string) ([]*services.Recommendation, error) {
	recs := a.store.ListRecommendationsByCheckIn(checkinID)
	out := make([]*services.Recommendation, 0, len(recs))
	for _, r := range recs {
		out = append(out, convertAPIRecommendation(r))
	}
	return out, nil
}

func (a *checkinStoreAdapter) AddAudit(e services.AuditEntry) {
	a.store.AddAudit(AuditEntry{Time: e.Time, Actor: e.Actor, Action: e.Action, Target: e.Target, Note: e.Note})
}

// translateStoreErr maps storage sentinels onto the service-layer ones the
// engine matches against.
func translateStoreErr(err error) error {
	switch err {
	case nil:
		return nil
	case ErrCheckInExists:
		return services.ErrCheckInExists
	case ErrVersionConflict:
		return services.ErrVersionConflict
	default:
		return err
	}
}

func convertAPICheckIn(c *CheckIn) *services.CheckIn {
	if c == nil {
		return nil
	}
	out := &services.CheckIn{
		ID:          c.ID,
		UserID:      c.UserID,
		CategoryID:  c.CategoryID,
		State:       services.CheckInState(c.State),
		Version:     c.Version,
		CreatedAt:   c.CreatedAt,
		StartedAt:   c.StartedAt,
		CompletedAt: c.CompletedAt,
	}
	for _, q := range c.Questions {
		out.Questions = append(out.Questions, convertAPIQuestion(q))
	}
	for _, a := range c.Answers {
		out.Answers = append(out.Answers, &services.Answer{
			QuestionID:  a.QuestionID,
			Value:       services.StringList(a.Value),
			Explanation: a.Explanation,
			AnsweredAt:  a.AnsweredAt,
		})
	}
	if c.Result != nil {
		out.Result = &services.CheckInResult{
			Summary:       c.Result.Summary,
			Insight:       c.Result.Insight,
			Brief:         c.Result.Brief,
			WellnessLevel: c.Result.WellnessLevel,
		}
	}
	return out
}

func convertServiceCheckIn(c *services.CheckIn) *CheckIn {
	if c == nil {
		return nil
	}
	out := &CheckIn{
		ID:          c.ID,
		UserID:      c.UserID,
		CategoryID:  c.CategoryID,
		State:       string(c.State),
		Version:     c.Version,
		CreatedAt:   c.CreatedAt,
		StartedAt:   c.StartedAt,
		CompletedAt: c.CompletedAt,
	}
	for _, q := range c.Questions {
		out.Questions = append(out.Questions, convertServiceQuestion(q))
	}
	for _, a := range c.Answers {
		out.Answers = append(out.Answers, &Answer{
			QuestionID:  a.QuestionID,
			Value:       []string(a.Value),
			Explanation: a.Explanation,
			AnsweredAt:  a.AnsweredAt,
		})
	}
	if c.Result != nil {
		out.Result = &CheckInResult{
			Summary:       c.Result.Summary,
			Insight:       c.Result.Insight,
			Brief:         c.Result.Brief,
			WellnessLevel: c.Result.WellnessLevel,
		}
	}
	return out
}

func convertAPIQuestion(q *Question) *services.Question {
	if q == nil {
		return nil
	}
	return &services.Question{
		ID:          q.ID,
		Number:      q.Number,
		Kind:        q.Kind,
		Required:    q.Required,
		StemI18n:    q.StemI18n,
		OptionsI18n: q.OptionsI18n,
	}
}

func convertServiceQuestion(q *services.Question) *Question {
	if q == nil {
		return nil
	}
	return &Question{
		ID:          q.ID,
		Number:      q.Number,
		Kind:        q.Kind,
		Required:    q.Required,
		StemI18n:    q.StemI18n,
		OptionsI18n: q.OptionsI18n,
	}
}

func convertAPIRecommendation(r *Recommendation) *services.Recommendation {
	if r == nil {
		return nil
	}
	return &services.Recommendation{
		ID:          r.ID,
		UserID:      r.UserID,
		CategoryID:  r.CategoryID,
		CheckInID:   r.CheckInID,
		Title:       r.Title,
		Text:        r.Text,
		Action:      r.Action,
		Why:         r.Why,
		Importance:  r.Importance,
		CreatedAt:   r.CreatedAt,
		ViewedAt:    r.ViewedAt,
		DismissedAt: r.DismissedAt,
	}
}

func convertServiceRecommendation(r *services.Recommendation) *Recommendation {
	if r == nil {
		return nil
	}
	return &Recommendation{
		ID:          r.ID,
		UserID:      r.UserID,
		CategoryID:  r.CategoryID,
		CheckInID:   r.CheckInID,
		Title:       r.Title,
		Text:        r.Text,
		Action:      r.Action,
		Why:         r.Why,
		Importance:  r.Importance,
		CreatedAt:   r.CreatedAt,
		ViewedAt:    r.ViewedAt,
		DismissedAt: r.DismissedAt,
	}
}
