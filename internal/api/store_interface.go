package api

import (
	"errors"
	"time"
)

var (
	// ErrCheckInExists signals the (user, category) in-progress slot is taken.
	ErrCheckInExists = errors.New("check-in already in progress")
	// ErrVersionConflict signals a CAS write saw a stale version.
	ErrVersionConflict = errors.New("version conflict")
)

type Store interface {
	AddCategory(c *Category)
	GetCategory(id string) *Category
	ListCategories() []*Category

	// CreateCheckIn must atomically enforce at most one in-progress check-in
	// per (user, category) and return ErrCheckInExists when the slot is taken.
	CreateCheckIn(c *CheckIn) error
	GetCheckIn(id string) *CheckIn
	GetInProgressCheckIn(userID, categoryID string) *CheckIn
	// UpdateCheckInCAS applies the row only if the stored version equals
	// expectedVersion, returning ErrVersionConflict otherwise.
	UpdateCheckInCAS(c *CheckIn, expectedVersion int64) error
	// CompleteCheckInTx persists the completed row and the recommendation
	// batch in one atomic unit; partial writes must never be observable.
	CompleteCheckInTx(c *CheckIn, expectedVersion int64, recs []*Recommendation) error
	ListCheckInsByUser(userID string) []*CheckIn

	GetRecommendation(id string) *Recommendation
	ListRecommendationsByUser(userID string) []*Recommendation
	ListRecommendationsByCheckIn(checkinID string) []*Recommendation
	MarkRecommendationViewed(id string, at time.Time) bool
	MarkRecommendationDismissed(id string, at time.Time) bool

	AddAudit(e AuditEntry)
	ListAudit() []AuditEntry
}

var _ Store = (*memoryStore)(nil)
