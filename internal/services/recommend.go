package services

// RecommendationDraft is factory output before the engine stamps identity,
// ownership and timestamps.
type RecommendationDraft struct {
	Title      string
	Text       string
	Action     string
	Why        string
	Importance int // 0..10
}

// RecommendationFactory turns a scoring result into zero or more
// recommendation drafts. Pure: same result, same drafts.
type RecommendationFactory interface {
	Build(result *CheckInResult) []RecommendationDraft
}

// TieredFactory emits recommendations by wellness band: the lower the level,
// the more (and more important) suggestions come out.
type TieredFactory struct{}

func NewTieredFactory() *TieredFactory { return &TieredFactory{} }

func (f *TieredFactory) Build(result *CheckInResult) []RecommendationDraft {
	if result == nil {
		return nil
	}
	switch {
	case result.WellnessLevel < 40:
		return []RecommendationDraft{
			{
				Title:      "Take a recovery day",
				Text:       "Your responses point to low reserves. Block out time today with no obligations.",
				Action:     "Schedule one unstructured hour",
				Why:        result.Brief,
				Importance: 9,
			},
			{
				Title:      "Reach out to someone",
				Text:       "Talking through what is weighing on you tends to lower the load quickly.",
				Action:     "Message one person you trust",
				Why:        result.Insight,
				Importance: 7,
			},
		}
	case result.WellnessLevel < 70:
		return []RecommendationDraft{
			{
				Title:      "Shore up the weak spot",
				Text:       "One or two areas are dragging the rest down. Pick the smallest fix first.",
				Action:     "Choose one attention area and set a 10-minute step",
				Why:        result.Insight,
				Importance: 5,
			},
		}
	default:
		return []RecommendationDraft{
			{
				Title:      "Keep the streak",
				Text:       "Things look solid. Note what is working so you can repeat it on harder weeks.",
				Importance: 2,
				Why:        result.Brief,
			},
		}
	}
}
