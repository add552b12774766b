package api

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Legacy snapshot import. Earlier deployments exported their data as one
// JSON document with integer primary keys and an "abandoned" status. Import
// remaps every integer id to a fresh UUID and normalizes statuses so the
// rest of the system only ever sees the current vocabulary.

type LegacySnapshot struct {
	Categories      []LegacyCategory       `json:"categories"`
	CheckIns        []LegacyCheckIn        `json:"checkins"`
	Recommendations []LegacyRecommendation `json:"recommendations"`
}

type LegacyCategory struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Sort int    `json:"sort_order"`
}

type LegacyCheckIn struct {
	ID          int64          `json:"id"`
	UserID      string         `json:"user_id"`
	CategoryID  int64          `json:"category_id"`
	Status      string         `json:"status"`
	Summary     string         `json:"summary"`
	Insight     string         `json:"insight"`
	Level       int            `json:"level"`
	CreatedAt   time.Time      `json:"created_at"`
	CompletedAt *time.Time     `json:"completed_at"`
	Answers     []LegacyAnswer `json:"answers"`
}

type LegacyAnswer struct {
	QuestionID string    `json:"question_id"`
	Value      []string  `json:"value"`
	AnsweredAt time.Time `json:"answered_at"`
}

type LegacyRecommendation struct {
	ID         int64     `json:"id"`
	UserID     string    `json:"user_id"`
	CheckInID  int64     `json:"checkin_id"`
	Title      string    `json:"title"`
	Text       string    `json:"text"`
	Importance int       `json:"importance"`
	CreatedAt  time.Time `json:"created_at"`
}

// ImportStats reports what a snapshot import wrote.
type ImportStats struct {
	Categories      int
	CheckIns        int
	Recommendations int
	Skipped         int
}

func legacyState(status string) (string, bool) {
	switch status {
	case "in_progress", "completed", "aborted":
		return status, true
	case "abandoned":
		return "aborted", true
	default:
		return "", false
	}
}

func legacyCategorySlug(name string, id int64) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strings.ReplaceAll(slug, " ", "-")
	if slug == "" {
		slug = fmt.Sprintf("cat-%d", id)
	}
	return slug
}

// ImportLegacySnapshot reads the JSON snapshot at path and writes its
// contents into store. Check-ins with unknown statuses are skipped and
// counted rather than aborting the whole import.
func ImportLegacySnapshot(store Store, path string) (*ImportStats, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var snap LegacySnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	return importSnapshot(store, &snap, uuid.NewString)
}

func importSnapshot(store Store, snap *LegacySnapshot, idGen func() string) (*ImportStats, error) {
	stats := &ImportStats{}

	categoryIDs := make(map[int64]string, len(snap.Categories))
	for _, lc := range snap.Categories {
		slug := legacyCategorySlug(lc.Name, lc.ID)
		categoryIDs[lc.ID] = slug
		store.AddCategory(&Category{
			ID:       slug,
			NameI18n: map[string]string{"en": lc.Name},
			Order:    lc.Sort,
		})
		stats.Categories++
	}

	checkinIDs := make(map[int64]string, len(snap.CheckIns))
	for _, lc := range snap.CheckIns {
		state, ok := legacyState(lc.Status)
		if !ok || lc.UserID == "" {
			stats.Skipped++
			continue
		}
		id := idGen()
		checkinIDs[lc.ID] = id
		c := &CheckIn{
			ID:          id,
			UserID:      lc.UserID,
			CategoryID:  categoryIDs[lc.CategoryID],
			State:       state,
			Version:     1,
			CreatedAt:   lc.CreatedAt,
			StartedAt:   lc.CreatedAt,
			CompletedAt: lc.CompletedAt,
		}
		for _, la := range lc.Answers {
			c.Answers = append(c.Answers, &Answer{
				QuestionID: la.QuestionID,
				Value:      la.Value,
				AnsweredAt: la.AnsweredAt,
			})
		}
		if state == "completed" {
			c.Result = &CheckInResult{
				Summary:       lc.Summary,
				Insight:       lc.Insight,
				WellnessLevel: lc.Level,
			}
		}
		if err := store.CreateCheckIn(c); err != nil {
			// a live in-progress slot wins over imported history
			if err == ErrCheckInExists {
				stats.Skipped++
				continue
			}
			return stats, fmt.Errorf("import checkin %d: %w", lc.ID, err)
		}
		stats.CheckIns++
	}

	for _, lr := range snap.Recommendations {
		checkinID, ok := checkinIDs[lr.CheckInID]
		if !ok {
			stats.Skipped++
			continue
		}
		c := store.GetCheckIn(checkinID)
		if c == nil {
			stats.Skipped++
			continue
		}
		rec := &Recommendation{
			ID:         idGen(),
			UserID:     lr.UserID,
			CategoryID: c.CategoryID,
			CheckInID:  checkinID,
			Title:      lr.Title,
			Text:       lr.Text,
			Importance: lr.Importance,
			CreatedAt:  lr.CreatedAt,
		}
		// recommendations ride along with their completed check-in; reuse
		// the transactional write so both stores share one code path
		if err := store.CompleteCheckInTx(c, c.Version, []*Recommendation{rec}); err != nil {
			return stats, fmt.Errorf("import recommendation %d: %w", lr.ID, err)
		}
		stats.Recommendations++
	}

	return stats, nil
}
