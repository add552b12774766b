package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/zitrono/totalis-supabase-sub000/internal/api"
)

// SQLiteStore implements api.Store over a single SQLite database.
// Question and answer lists are stored as JSON columns; concurrency
// control relies on versioned UPDATE statements and the partial unique
// index over in-progress check-ins.
type SQLiteStore struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database at path, applies pragmas
// suited to a single-writer HTTP service, and runs migrations from
// migrationsDir (embedded files when the directory is absent).
func Open(path, migrationsDir string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on", path)
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// go-sqlite3 serializes writes; one connection avoids SQLITE_BUSY churn.
	conn.SetMaxOpenConns(1)
	if err := RunMigrations(conn, migrationsDir); err != nil {
		conn.Close()
		return nil, err
	}
	return &SQLiteStore{db: conn}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

// DB exposes the underlying handle for migration tooling.
func (s *SQLiteStore) DB() *sql.DB { return s.db }

var _ api.Store = (*SQLiteStore)(nil)

func isConstraintErr(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrConstraint
	}
	return false
}

func marshalJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		log.Printf("[sqlite] marshal: %v", err)
		return "null"
	}
	return string(b)
}

func fmtTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func fmtTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return fmtTime(*t)
}

func parseTimePtr(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t := parseTime(s.String)
	return &t
}

// --- categories ---

func (s *SQLiteStore) AddCategory(c *api.Category) {
	_, err := s.db.Exec(`INSERT INTO categories (id, name_i18n, description_i18n, sort_order)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name_i18n=excluded.name_i18n,
			description_i18n=excluded.description_i18n, sort_order=excluded.sort_order`,
		c.ID, marshalJSON(c.NameI18n), marshalJSON(c.DescriptionI18n), c.Order)
	if err != nil {
		log.Printf("[sqlite] add category %s: %v", c.ID, err)
	}
}

func (s *SQLiteStore) GetCategory(id string) *api.Category {
	row := s.db.QueryRow(`SELECT id, name_i18n, description_i18n, sort_order FROM categories WHERE id = ?`, id)
	c, err := scanCategory(row)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			log.Printf("[sqlite] get category %s: %v", id, err)
		}
		return nil
	}
	return c
}

func (s *SQLiteStore) ListCategories() []*api.Category {
	rows, err := s.db.Query(`SELECT id, name_i18n, description_i18n, sort_order FROM categories ORDER BY sort_order, id`)
	if err != nil {
		log.Printf("[sqlite] list categories: %v", err)
		return nil
	}
	defer rows.Close()
	var out []*api.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			log.Printf("[sqlite] scan category: %v", err)
			continue
		}
		out = append(out, c)
	}
	return out
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCategory(r rowScanner) (*api.Category, error) {
	var (
		c     api.Category
		names string
		descs string
	)
	if err := r.Scan(&c.ID, &names, &descs, &c.Order); err != nil {
		return nil, err
	}
	_ = json.Unmarshal([]byte(names), &c.NameI18n)
	_ = json.Unmarshal([]byte(descs), &c.DescriptionI18n)
	return &c, nil
}

// --- check-ins ---

const checkinCols = `id, user_id, category_id, state, questions, answers, result, version, created_at, started_at, completed_at`

func (s *SQLiteStore) CreateCheckIn(c *api.CheckIn) error {
	var result any
	if c.Result != nil {
		result = marshalJSON(c.Result)
	}
	_, err := s.db.Exec(`INSERT INTO checkins (`+checkinCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.CategoryID, c.State,
		marshalJSON(c.Questions), marshalJSON(c.Answers), result,
		c.Version, fmtTime(c.CreatedAt), fmtTime(c.StartedAt), fmtTimePtr(c.CompletedAt))
	if err != nil {
		if isConstraintErr(err) {
			return api.ErrCheckInExists
		}
		return fmt.Errorf("create checkin: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetCheckIn(id string) *api.CheckIn {
	row := s.db.QueryRow(`SELECT `+checkinCols+` FROM checkins WHERE id = ?`, id)
	c, err := scanCheckIn(row)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			log.Printf("[sqlite] get checkin %s: %v", id, err)
		}
		return nil
	}
	return c
}

func (s *SQLiteStore) GetInProgressCheckIn(userID, categoryID string) *api.CheckIn {
	row := s.db.QueryRow(`SELECT `+checkinCols+` FROM checkins
		WHERE user_id = ? AND category_id = ? AND state = 'in_progress'`, userID, categoryID)
	c, err := scanCheckIn(row)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			log.Printf("[sqlite] get in-progress checkin: %v", err)
		}
		return nil
	}
	return c
}

func (s *SQLiteStore) UpdateCheckInCAS(c *api.CheckIn, expectedVersion int64) error {
	res, err := s.db.Exec(`UPDATE checkins
		SET state = ?, questions = ?, answers = ?, result = ?, version = ?, completed_at = ?
		WHERE id = ? AND version = ?`,
		c.State, marshalJSON(c.Questions), marshalJSON(c.Answers), resultJSON(c.Result),
		c.Version, fmtTimePtr(c.CompletedAt), c.ID, expectedVersion)
	if err != nil {
		return fmt.Errorf("update checkin: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update checkin: %w", err)
	}
	if n == 0 {
		return api.ErrVersionConflict
	}
	return nil
}

func (s *SQLiteStore) CompleteCheckInTx(c *api.CheckIn, expectedVersion int64, recs []*api.Recommendation) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("complete checkin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`UPDATE checkins
		SET state = ?, questions = ?, answers = ?, result = ?, version = ?, completed_at = ?
		WHERE id = ? AND version = ?`,
		c.State, marshalJSON(c.Questions), marshalJSON(c.Answers), resultJSON(c.Result),
		c.Version, fmtTimePtr(c.CompletedAt), c.ID, expectedVersion)
	if err != nil {
		return fmt.Errorf("complete checkin: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("complete checkin: %w", err)
	}
	if n == 0 {
		return api.ErrVersionConflict
	}
	for _, rec := range recs {
		if _, err := tx.Exec(`INSERT INTO recommendations
			(id, user_id, category_id, checkin_id, title, body, action, why, importance, created_at, viewed_at, dismissed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, rec.UserID, rec.CategoryID, rec.CheckInID, rec.Title, rec.Text,
			rec.Action, rec.Why, rec.Importance, fmtTime(rec.CreatedAt),
			fmtTimePtr(rec.ViewedAt), fmtTimePtr(rec.DismissedAt)); err != nil {
			return fmt.Errorf("insert recommendation: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) ListCheckInsByUser(userID string) []*api.CheckIn {
	rows, err := s.db.Query(`SELECT `+checkinCols+` FROM checkins WHERE user_id = ? ORDER BY created_at DESC, id`, userID)
	if err != nil {
		log.Printf("[sqlite] list checkins: %v", err)
		return nil
	}
	defer rows.Close()
	var out []*api.CheckIn
	for rows.Next() {
		c, err := scanCheckIn(rows)
		if err != nil {
			log.Printf("[sqlite] scan checkin: %v", err)
			continue
		}
		out = append(out, c)
	}
	return out
}

func resultJSON(r *api.CheckInResult) any {
	if r == nil {
		return nil
	}
	return marshalJSON(r)
}

func scanCheckIn(r rowScanner) (*api.CheckIn, error) {
	var (
		c           api.CheckIn
		questions   string
		answers     string
		result      sql.NullString
		createdAt   string
		startedAt   string
		completedAt sql.NullString
	)
	if err := r.Scan(&c.ID, &c.UserID, &c.CategoryID, &c.State,
		&questions, &answers, &result, &c.Version,
		&createdAt, &startedAt, &completedAt); err != nil {
		return nil, err
	}
	_ = json.Unmarshal([]byte(questions), &c.Questions)
	_ = json.Unmarshal([]byte(answers), &c.Answers)
	if result.Valid && result.String != "" {
		var res api.CheckInResult
		if err := json.Unmarshal([]byte(result.String), &res); err == nil {
			c.Result = &res
		}
	}
	c.CreatedAt = parseTime(createdAt)
	c.StartedAt = parseTime(startedAt)
	c.CompletedAt = parseTimePtr(completedAt)
	return &c, nil
}

// --- recommendations ---

const recCols = `id, user_id, category_id, checkin_id, title, body, action, why, importance, created_at, viewed_at, dismissed_at`

func (s *SQLiteStore) GetRecommendation(id string) *api.Recommendation {
	row := s.db.QueryRow(`SELECT `+recCols+` FROM recommendations WHERE id = ?`, id)
	rec, err := scanRecommendation(row)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			log.Printf("[sqlite] get recommendation %s: %v", id, err)
		}
		return nil
	}
	return rec
}

func (s *SQLiteStore) ListRecommendationsByUser(userID string) []*api.Recommendation {
	return s.listRecommendations(`SELECT `+recCols+` FROM recommendations WHERE user_id = ? ORDER BY created_at DESC, id`, userID)
}

func (s *SQLiteStore) ListRecommendationsByCheckIn(checkinID string) []*api.Recommendation {
	return s.listRecommendations(`SELECT `+recCols+` FROM recommendations WHERE checkin_id = ? ORDER BY importance DESC, id`, checkinID)
}

func (s *SQLiteStore) listRecommendations(query string, arg any) []*api.Recommendation {
	rows, err := s.db.Query(query, arg)
	if err != nil {
		log.Printf("[sqlite] list recommendations: %v", err)
		return nil
	}
	defer rows.Close()
	var out []*api.Recommendation
	for rows.Next() {
		rec, err := scanRecommendation(rows)
		if err != nil {
			log.Printf("[sqlite] scan recommendation: %v", err)
			continue
		}
		out = append(out, rec)
	}
	return out
}

func (s *SQLiteStore) MarkRecommendationViewed(id string, at time.Time) bool {
	res, err := s.db.Exec(`UPDATE recommendations SET viewed_at = ? WHERE id = ? AND viewed_at IS NULL`, fmtTime(at), id)
	if err != nil {
		log.Printf("[sqlite] mark viewed %s: %v", id, err)
		return false
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		return true
	}
	// already viewed still counts as success when the row exists
	return s.GetRecommendation(id) != nil
}

func (s *SQLiteStore) MarkRecommendationDismissed(id string, at time.Time) bool {
	res, err := s.db.Exec(`UPDATE recommendations SET dismissed_at = ? WHERE id = ? AND dismissed_at IS NULL`, fmtTime(at), id)
	if err != nil {
		log.Printf("[sqlite] mark dismissed %s: %v", id, err)
		return false
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		return true
	}
	return s.GetRecommendation(id) != nil
}

func scanRecommendation(r rowScanner) (*api.Recommendation, error) {
	var (
		rec         api.Recommendation
		createdAt   string
		viewedAt    sql.NullString
		dismissedAt sql.NullString
	)
	if err := r.Scan(&rec.ID, &rec.UserID, &rec.CategoryID, &rec.CheckInID,
		&rec.Title, &rec.Text, &rec.Action, &rec.Why, &rec.Importance,
		&createdAt, &viewedAt, &dismissedAt); err != nil {
		return nil, err
	}
	rec.CreatedAt = parseTime(createdAt)
	rec.ViewedAt = parseTimePtr(viewedAt)
	rec.DismissedAt = parseTimePtr(dismissedAt)
	return &rec, nil
}

// --- audit ---

func (s *SQLiteStore) AddAudit(e api.AuditEntry) {
	_, err := s.db.Exec(`INSERT INTO audit_log (time, actor, action, target, note) VALUES (?, ?, ?, ?, ?)`,
		fmtTime(e.Time), e.Actor, e.Action, e.Target, e.Note)
	if err != nil {
		log.Printf("[sqlite] add audit: %v", err)
	}
}

func (s *SQLiteStore) ListAudit() []api.AuditEntry {
	rows, err := s.db.Query(`SELECT time, actor, action, target, note FROM audit_log ORDER BY seq`)
	if err != nil {
		log.Printf("[sqlite] list audit: %v", err)
		return nil
	}
	defer rows.Close()
	var out []api.AuditEntry
	for rows.Next() {
		var (
			e api.AuditEntry
			t string
		)
		if err := rows.Scan(&t, &e.Actor, &e.Action, &e.Target, &e.Note); err != nil {
			log.Printf("[sqlite] scan audit: %v", err)
			continue
		}
		e.Time = parseTime(t)
		out = append(out, e)
	}
	return out
}
