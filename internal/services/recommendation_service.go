package services

import (
	"sort"
	"time"
)

// RecommendationStore abstracts persistence operations required by
// RecommendationService. The engine creates recommendations; this service
// only reads them and records viewed/dismissed follow-ups.
type RecommendationStore interface {
	GetRecommendation(id string) (*Recommendation, error)
	ListRecommendationsByUser(userID string) ([]*Recommendation, error)
	MarkRecommendationViewed(id string, at time.Time) (bool, error)
	MarkRecommendationDismissed(id string, at time.Time) (bool, error)
}

type RecommendationService struct {
	store RecommendationStore
	now   func() time.Time
}

func NewRecommendationService(store RecommendationStore) *RecommendationService {
	return &RecommendationService{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// ListForUser returns the caller's recommendations, newest first, ties broken
// by importance then id for stable output.
func (s *RecommendationService) ListForUser(userID string, includeDismissed bool) ([]*Recommendation, error) {
	if userID == "" {
		return nil, NewUnauthorizedError("user required")
	}
	recs, err := s.store.ListRecommendationsByUser(userID)
	if err != nil {
		return nil, err
	}
	out := make([]*Recommendation, 0, len(recs))
	for _, r := range recs {
		if !includeDismissed && r.DismissedAt != nil {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		if out[i].Importance != out[j].Importance {
			return out[i].Importance > out[j].Importance
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *RecommendationService) MarkViewed(userID, id string) error {
	return s.mark(userID, id, s.store.MarkRecommendationViewed)
}

func (s *RecommendationService) MarkDismissed(userID, id string) error {
	return s.mark(userID, id, s.store.MarkRecommendationDismissed)
}

func (s *RecommendationService) mark(userID, id string, apply func(string, time.Time) (bool, error)) error {
	if userID == "" {
		return NewUnauthorizedError("user required")
	}
	rec, err := s.store.GetRecommendation(id)
	if err != nil {
		return err
	}
	if rec == nil || rec.UserID != userID {
		return NewNotFoundError("recommendation not found")
	}
	ok, err := apply(id, s.now())
	if err != nil {
		return err
	}
	if !ok {
		return NewNotFoundError("recommendation not found")
	}
	return nil
}
