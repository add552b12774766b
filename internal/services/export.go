package services

import (
	"bytes"
	"encoding/csv"
	"sort"
	"strings"
)

type LongRow struct {
	CheckInID   string
	CategoryID  string
	QuestionID  string
	Value       string
	Explanation string
	AnsweredAt  string // ISO8601 suggested; string for CSV simplicity
}

// ExportLongCSV renders one row per answer in a long-format CSV.
func ExportLongCSV(rows []LongRow) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	_ = w.Write([]string{"checkin_id", "category_id", "question_id", "value", "explanation", "answered_at"})
	for _, r := range rows {
		rec := []string{r.CheckInID, r.CategoryID, r.QuestionID, r.Value, r.Explanation, r.AnsweredAt}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// ExportWideCSV renders a wide-format CSV with one check-in per row and one
// column per question id. inputs is a map[checkinID]map[questionID]value.
func ExportWideCSV(inputs map[string]map[string]string) ([]byte, error) {
	// Column order must be stable regardless of map iteration.
	qSet := map[string]struct{}{}
	for _, m := range inputs {
		for qid := range m {
			qSet[qid] = struct{}{}
		}
	}
	questions := make([]string, 0, len(qSet))
	for qid := range qSet {
		questions = append(questions, qid)
	}
	sort.Strings(questions)

	ids := make([]string, 0, len(inputs))
	for id := range inputs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	header := append([]string{"checkin_id"}, questions...)
	_ = w.Write(header)
	for _, id := range ids {
		row := make([]string, 0, 1+len(questions))
		row = append(row, id)
		for _, qid := range questions {
			row = append(row, inputs[id][qid])
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// LongRowsFromCheckIns flattens check-ins into long-format rows, multi-value
// answers joined with " | ".
func LongRowsFromCheckIns(checkins []*CheckIn) []LongRow {
	rows := make([]LongRow, 0)
	for _, c := range checkins {
		for _, a := range c.Answers {
			rows = append(rows, LongRow{
				CheckInID:   c.ID,
				CategoryID:  c.CategoryID,
				QuestionID:  a.QuestionID,
				Value:       strings.Join(a.Value, " | "),
				Explanation: a.Explanation,
				AnsweredAt:  a.AnsweredAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
			})
		}
	}
	return rows
}

// WideInputsFromCheckIns pivots check-ins into the wide-format input map.
func WideInputsFromCheckIns(checkins []*CheckIn) map[string]map[string]string {
	out := map[string]map[string]string{}
	for _, c := range checkins {
		m := map[string]string{}
		for _, a := range c.Answers {
			m[a.QuestionID] = strings.Join(a.Value, " | ")
		}
		out[c.ID] = m
	}
	return out
}
