package suggesthandler

// SuggestRequest asks for argument fragments for the writing games.
type SuggestRequest struct {
	Type             string   `json:"type" binding:"required,oneof=fallacious sound"`
	Topic            string   `json:"topic" binding:"required"`
	Position         string   `json:"position" binding:"required"`
	TargetFallacies  []string `json:"targetFallacies,omitempty"`
	TargetAntidotes  []string `json:"targetAntidotes,omitempty"`
	ExistingText     string   `json:"existingText,omitempty"`
}

// Suggestion is one generated argument fragment.
type Suggestion struct {
	Text        string `json:"text"`
	Technique   string `json:"technique"`
	Explanation string `json:"explanation"`
}

// SuggestResponse always carries a non-empty list: upstream failures degrade
// to the fixed fallback set, never to an error.
type SuggestResponse struct {
	Suggestions []Suggestion `json:"suggestions"`
}

// ErrorResponse is returned only for malformed requests.
type ErrorResponse struct {
	Error string `json:"error"`
}

// fallbackSuggestions is the canned set served when no credential is
// configured or the upstream call fails in any way.
func fallbackSuggestions(req SuggestRequest) []Suggestion {
	if req.Type == "fallacious" {
		return []Suggestion{
			{
				Text:        "People who disagree with this position are usually just uninformed about the real issues.",
				Technique:   "ad-hominem",
				Explanation: "Attacks the character of opponents rather than their arguments",
			},
			{
				Text:        "Either we take this approach, or we accept complete failure. There's no middle ground.",
				Technique:   "false-dilemma",
				Explanation: "Presents only two options when more exist",
			},
			{
				Text:        "After we tried this approach last time, things improved. Clearly it works.",
				Technique:   "causation-con",
				Explanation: "Assumes causation from correlation",
			},
		}
	}
	return []Suggestion{
		{
			Text:        "While I hold this position, I recognize that those who disagree raise valid concerns about...",
			Technique:   "steelmanning",
			Explanation: "Acknowledges the strongest opposing arguments",
		},
		{
			Text:        "The evidence suggests a more nuanced picture, where multiple factors including... contribute to...",
			Technique:   "acknowledge-spectrum",
			Explanation: "Avoids false dilemmas by recognizing complexity",
		},
		{
			Text:        "Based on studies showing [specific mechanism], we can see how this approach leads to [outcome].",
			Technique:   "demand-mechanism",
			Explanation: "Provides specific causal mechanisms rather than assuming correlation",
		},
	}
}
