package api

import (
	"github.com/zitrono/totalis-supabase-sub000/internal/services"
)

type analyticsStoreAdapter struct {
	store Store
}

func newAnalyticsStoreAdapter(store Store) services.AnalyticsStore {
	return &analyticsStoreAdapter{store: store}
}

func (a *analyticsStoreAdapter) ListCheckInsByUser(userID string) ([]*services.CheckIn, error) {
	checkins := a.store.ListCheckInsByUser(userID)
	out := make([]*services.CheckIn, 0, len(checkins))
	for _, c := range checkins {
		out = append(out, convertAPICheckIn(c))
	}
	return out, nil
}
