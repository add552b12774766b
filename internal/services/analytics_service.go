package services

import "sort"

type AnalyticsStore interface {
	ListCheckInsByUser(userID string) ([]*CheckIn, error)
}

type AnalyticsService struct {
	store AnalyticsStore
}

type AnalyticsTimeseries struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type CategoryStat struct {
	CategoryID   string  `json:"category_id"`
	Completed    int     `json:"completed"`
	MeanWellness float64 `json:"mean_wellness"`
}

type AnalyticsSummary struct {
	Total        int                   `json:"total"`
	Completed    int                   `json:"completed"`
	Aborted      int                   `json:"aborted"`
	InProgress   int                   `json:"in_progress"`
	MeanWellness float64               `json:"mean_wellness"`
	Histogram    []int                 `json:"histogram"` // ten 10-point buckets over wellness level
	Timeseries   []AnalyticsTimeseries `json:"timeseries"`
	ByCategory   []CategoryStat        `json:"by_category"`
}

func NewAnalyticsService(store AnalyticsStore) *AnalyticsService {
	return &AnalyticsService{store: store}
}

// Summary aggregates the caller's check-in history. Wellness statistics use
// completed check-ins only; aborted and in-progress sessions count toward
// totals but carry no score.
func (s *AnalyticsService) Summary(userID string) (*AnalyticsSummary, error) {
	if userID == "" {
		return nil, NewUnauthorizedError("user required")
	}
	checkins, err := s.store.ListCheckInsByUser(userID)
	if err != nil {
		return nil, err
	}
	sum := &AnalyticsSummary{Histogram: make([]int, 10)}
	levelTotal := 0
	countsByDay := map[string]int{}
	catCompleted := map[string]int{}
	catLevels := map[string]int{}
	for _, c := range checkins {
		sum.Total++
		switch c.State {
		case StateCompleted:
			sum.Completed++
			if c.Result != nil {
				lvl := c.Result.WellnessLevel
				levelTotal += lvl
				bucket := lvl / 10
				if bucket > 9 {
					bucket = 9
				}
				sum.Histogram[bucket]++
				catLevels[c.CategoryID] += lvl
			}
			catCompleted[c.CategoryID]++
			if c.CompletedAt != nil {
				countsByDay[c.CompletedAt.UTC().Format("2006-01-02")]++
			}
		case StateAborted:
			sum.Aborted++
		case StateInProgress:
			sum.InProgress++
		}
	}
	if sum.Completed > 0 {
		sum.MeanWellness = float64(levelTotal) / float64(sum.Completed)
	}
	days := make([]string, 0, len(countsByDay))
	for d := range countsByDay {
		days = append(days, d)
	}
	sort.Strings(days)
	for _, d := range days {
		sum.Timeseries = append(sum.Timeseries, AnalyticsTimeseries{Date: d, Count: countsByDay[d]})
	}
	cats := make([]string, 0, len(catCompleted))
	for c := range catCompleted {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	for _, cat := range cats {
		stat := CategoryStat{CategoryID: cat, Completed: catCompleted[cat]}
		if stat.Completed > 0 {
			stat.MeanWellness = float64(catLevels[cat]) / float64(stat.Completed)
		}
		sum.ByCategory = append(sum.ByCategory, stat)
	}
	return sum, nil
}
