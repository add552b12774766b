package api

import (
	"time"

	"github.com/zitrono/totalis-supabase-sub000/internal/services"
)

type recommendationStoreAdapter struct {
	store Store
}

func newRecommendationStoreAdapter(store Store) services.RecommendationStore {
	return &recommendationStoreAdapter{store: store}
}

func (a *recommendationStoreAdapter) GetRecommendation(id string) (*services.Recommendation, error) {
	return convertAPIRecommendation(a.store.GetRecommendation(id)), nil
}

func (a *recommendationStoreAdapter) ListRecommendationsByUser(userID string) ([]*services.Recommendation, error) {
	recs := a.store.ListRecommendationsByUser(userID)
	out := make([]*services.Recommendation, 0, len(recs))
	for _, r := range recs {
		out = append(out, convertAPIRecommendation(r))
	}
	return out, nil
}

func (a *recommendationStoreAdapter) MarkRecommendationViewed(id string, at time.Time) (bool, error) {
	return a.store.MarkRecommendationViewed(id, at), nil
}

func (a *recommendationStoreAdapter) MarkRecommendationDismissed(id string, at time.Time) (bool, error) {
	return a.store.MarkRecommendationDismissed(id, at), nil
}
