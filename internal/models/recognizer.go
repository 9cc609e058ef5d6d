package models

// Intent name constants produced by the recognizer.
const (
	IntentGreeting     = "GreetingIntent"
	IntentNewBugReport = "NewBugReportIntent"
	IntentQueryBugType = "QueryBugTypeIntent"
	IntentNone         = "None"
)

// Entity type constants extracted by the recognizer.
const (
	EntityBugType = "BugType"
)

// IntentScore is one ranked intent candidate.
type IntentScore struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// RecognizerResult is the outcome of classifying one utterance.
// Intents are ordered by descending score; Entities maps an entity type to the
// raw tokens extracted for it.
type RecognizerResult struct {
	Intents  []IntentScore       `json:"intents"`
	Entities map[string][]string `json:"entities,omitempty"`
}

// TopIntent returns the highest ranked intent name, or IntentNone when the
// result carries no intents.
func (r *RecognizerResult) TopIntent() string {
	if len(r.Intents) == 0 {
		return IntentNone
	}
	return r.Intents[0].Name
}
