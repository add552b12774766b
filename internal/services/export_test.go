package services

import (
	"strings"
	"testing"
	"time"
)

func exportFixture() []*CheckIn {
	at := time.Date(2026, 2, 1, 8, 30, 0, 0, time.UTC)
	return []*CheckIn{
		{
			ID: "c1", CategoryID: "stress",
			Answers: []*Answer{
				{QuestionID: "q1", Value: StringList{"Good"}, AnsweredAt: at},
				{QuestionID: "q2", Value: StringList{"Physical", "Mental"}, Explanation: "mostly work", AnsweredAt: at},
			},
		},
		{
			ID: "c2",
			Answers: []*Answer{
				{QuestionID: "q1", Value: StringList{"Bad"}, AnsweredAt: at},
			},
		},
	}
}

func TestExportLongCSV(t *testing.T) {
	rows := LongRowsFromCheckIns(exportFixture())
	b, err := ExportLongCSV(rows)
	if err != nil {
		t.Fatalf("ExportLongCSV returned error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	if len(lines) != 4 {
		t.Fatalf("lines = %d, want header + 3 rows", len(lines))
	}
	if lines[0] != "checkin_id,category_id,question_id,value,explanation,answered_at" {
		t.Fatalf("header = %q", lines[0])
	}
	if !strings.Contains(lines[2], "Physical | Mental") {
		t.Fatalf("multi-value row = %q, want joined values", lines[2])
	}
	if !strings.Contains(lines[2], "mostly work") {
		t.Fatalf("row missing explanation: %q", lines[2])
	}
}

func TestExportWideCSVStableColumns(t *testing.T) {
	inputs := WideInputsFromCheckIns(exportFixture())
	b, err := ExportWideCSV(inputs)
	if err != nil {
		t.Fatalf("ExportWideCSV returned error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	if lines[0] != "checkin_id,q1,q2" {
		t.Fatalf("header = %q, want sorted question columns", lines[0])
	}
	if len(lines) != 3 {
		t.Fatalf("lines = %d, want header + 2 rows", len(lines))
	}
	if !strings.HasPrefix(lines[1], "c1,") || !strings.HasPrefix(lines[2], "c2,") {
		t.Fatalf("rows not sorted by checkin id: %v", lines[1:])
	}
	// c2 never answered q2; its cell is empty, not dropped.
	if lines[2] != "c2,Bad," {
		t.Fatalf("c2 row = %q, want trailing empty cell", lines[2])
	}
}
