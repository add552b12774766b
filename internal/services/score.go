package services

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ScoringEngine turns a completed answer set into a wellness result.
// Implementations must be pure: same answers (regardless of slice order)
// must produce byte-identical output.
type ScoringEngine interface {
	Score(answers []*Answer) (*CheckInResult, error)
}

// HeuristicScorer maps answer values onto a 0..1 scale via a fixed keyword
// table and numeric parsing, then averages into a 0..100 wellness level.
// A model-backed scorer may replace it behind the same interface as long as
// outputs are pinned per check-in.
type HeuristicScorer struct{}

func NewHeuristicScorer() *HeuristicScorer { return &HeuristicScorer{} }

var valueWeights = map[string]float64{
	"great": 1.0, "excellent": 1.0,
	"good": 0.75, "fine": 0.75,
	"okay": 0.5, "ok": 0.5, "neutral": 0.5,
	"low": 0.25, "poor": 0.25, "tired": 0.25,
	"bad": 0.0, "awful": 0.0,
	"<5": 0.2, "5-6": 0.5, "7-8": 0.9, ">8": 0.7,
}

func (h *HeuristicScorer) Score(answers []*Answer) (*CheckInResult, error) {
	if len(answers) == 0 {
		return nil, NewInvalidError("no answers to score")
	}
	// Canonical order: sort by question id so map/slice iteration order of the
	// caller never shows through.
	sorted := make([]*Answer, 0, len(answers))
	for _, a := range answers {
		if a != nil && len(a.Value) > 0 {
			sorted = append(sorted, a)
		}
	}
	if len(sorted) == 0 {
		return nil, NewInvalidError("no answers to score")
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].QuestionID < sorted[j].QuestionID })

	total := 0.0
	var lowest []string
	for _, a := range sorted {
		f := answerFraction(a.Value)
		total += f
		if f < 0.5 {
			lowest = append(lowest, a.QuestionID)
		}
	}
	level := int(total/float64(len(sorted))*100 + 0.5)
	if level < 0 {
		level = 0
	}
	if level > 100 {
		level = 100
	}
	band := wellnessBand(level)
	insight := "No single area stands out; keep the current routine."
	if len(lowest) > 0 {
		insight = fmt.Sprintf("Attention areas: %s.", strings.Join(lowest, ", "))
	}
	return &CheckInResult{
		WellnessLevel: level,
		Summary:       fmt.Sprintf("Overall wellness is %s at %d of 100 across %d answers.", band, level, len(sorted)),
		Insight:       insight,
		Brief:         fmt.Sprintf("Wellness %d/100 (%s)", level, band),
	}, nil
}

func answerFraction(value StringList) float64 {
	sum := 0.0
	for _, v := range value {
		sum += tokenFraction(v)
	}
	return sum / float64(len(value))
}

func tokenFraction(v string) float64 {
	t := strings.ToLower(strings.TrimSpace(v))
	if w, ok := valueWeights[t]; ok {
		return w
	}
	if n, err := strconv.Atoi(t); err == nil {
		// Likert-style 1..5
		if n < 1 {
			n = 1
		}
		if n > 5 {
			n = 5
		}
		return float64(n-1) / 4.0
	}
	return 0.5
}

func wellnessBand(level int) string {
	switch {
	case level >= 80:
		return "thriving"
	case level >= 60:
		return "steady"
	case level >= 40:
		return "strained"
	default:
		return "depleted"
	}
}
