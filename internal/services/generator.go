package services

// QuestionGenerator decides the question sequence for a check-in. The engine
// treats it as opaque: it may be a fixed template or a model-backed
// implementation, as long as the same answered set yields the same decision.
type QuestionGenerator interface {
	// Next returns the next question to ask given the answers so far, or nil
	// when the generator considers the session complete.
	Next(categoryID string, answered []*Answer) (*Question, error)
	// IsComplete returns the ids of mandatory questions still unanswered.
	// An empty slice means the check-in may be completed.
	IsComplete(categoryID string, answered []*Answer) ([]string, error)
}

// QuestionTemplate is a fixed ordered question set for one category.
// Templates are loadable from the config file; the empty category id is the
// general check-in template and also the fallback for unknown categories.
type QuestionTemplate struct {
	CategoryID string      `yaml:"category_id" json:"category_id"`
	Questions  []*Question `yaml:"questions" json:"questions"`
}

// TemplateGenerator issues questions one at a time from per-category
// templates, in template order, skipping already-answered questions.
type TemplateGenerator struct {
	templates map[string][]*Question
}

func NewTemplateGenerator(templates []QuestionTemplate) *TemplateGenerator {
	if len(templates) == 0 {
		templates = DefaultTemplates()
	}
	m := make(map[string][]*Question, len(templates))
	for _, t := range templates {
		qs := make([]*Question, 0, len(t.Questions))
		for i, q := range t.Questions {
			cp := *q
			if cp.Number == 0 {
				cp.Number = i + 1
			}
			qs = append(qs, &cp)
		}
		m[t.CategoryID] = qs
	}
	return &TemplateGenerator{templates: m}
}

func (g *TemplateGenerator) questionsFor(categoryID string) []*Question {
	if qs, ok := g.templates[categoryID]; ok {
		return qs
	}
	return g.templates[""]
}

func (g *TemplateGenerator) Next(categoryID string, answered []*Answer) (*Question, error) {
	seen := answeredSet(answered)
	for _, q := range g.questionsFor(categoryID) {
		if !seen[q.ID] {
			cp := *q
			return &cp, nil
		}
	}
	return nil, nil
}

func (g *TemplateGenerator) IsComplete(categoryID string, answered []*Answer) ([]string, error) {
	seen := answeredSet(answered)
	var missing []string
	for _, q := range g.questionsFor(categoryID) {
		if q.Required && !seen[q.ID] {
			missing = append(missing, q.ID)
		}
	}
	return missing, nil
}

func answeredSet(answered []*Answer) map[string]bool {
	m := make(map[string]bool, len(answered))
	for _, a := range answered {
		if a != nil && len(a.Value) > 0 {
			m[a.QuestionID] = true
		}
	}
	return m
}

// DefaultTemplates returns the built-in question sets used when no templates
// are configured. The general template is intentionally short.
func DefaultTemplates() []QuestionTemplate {
	return []QuestionTemplate{
		{
			CategoryID: "",
			Questions: []*Question{
				{ID: "gen-mood", Kind: "choice", Required: true,
					StemI18n:    map[string]string{"en": "How are you feeling today?", "es": "¿Cómo te sientes hoy?"},
					OptionsI18n: map[string][]string{"en": {"Great", "Good", "Okay", "Low", "Bad"}}},
				{ID: "gen-areas", Kind: "multi", Required: true,
					StemI18n:    map[string]string{"en": "Which areas feel most strained right now?", "es": "¿Qué áreas sientes más tensas ahora?"},
					OptionsI18n: map[string][]string{"en": {"Physical", "Mental", "Social", "Work", "Sleep"}}},
				{ID: "gen-note", Kind: "text", Required: false,
					StemI18n: map[string]string{"en": "Anything else you want to note?", "es": "¿Algo más que quieras anotar?"}},
			},
		},
		{
			CategoryID: "stress",
			Questions: []*Question{
				{ID: "str-level", Kind: "choice", Required: true,
					StemI18n:    map[string]string{"en": "How stressed have you felt this week?"},
					OptionsI18n: map[string][]string{"en": {"1", "2", "3", "4", "5"}}},
				{ID: "str-source", Kind: "multi", Required: true,
					StemI18n:    map[string]string{"en": "What are the main sources of stress?"},
					OptionsI18n: map[string][]string{"en": {"Work", "Family", "Health", "Money", "Other"}}},
				{ID: "str-coping", Kind: "text", Required: false,
					StemI18n: map[string]string{"en": "What has helped you cope lately?"}},
			},
		},
		{
			CategoryID: "sleep",
			Questions: []*Question{
				{ID: "slp-hours", Kind: "choice", Required: true,
					StemI18n:    map[string]string{"en": "How many hours did you sleep on average?"},
					OptionsI18n: map[string][]string{"en": {"<5", "5-6", "7-8", ">8"}}},
				{ID: "slp-quality", Kind: "choice", Required: true,
					StemI18n:    map[string]string{"en": "How would you rate your sleep quality?"},
					OptionsI18n: map[string][]string{"en": {"1", "2", "3", "4", "5"}}},
			},
		},
	}
}
