package runner

import "fmt"

// Annotation kinds recorded in the trajectory.
const (
	AnnotationCounter    = "counter"
	AnnotationEfficiency = "efficiency"
	AnnotationUrgency    = "urgency"
)

// BudgetAnnotation returns the text appended to the last tool result of turn
// t out of max, and its kind. remaining = max - t.
//
//	remaining > 5 or 0  bare counter
//	remaining 4..5      efficiency advisory
//	remaining 1..3      urgency advisory
func BudgetAnnotation(t, max int) (string, string) {
	remaining := max - t
	counter := fmt.Sprintf("\n\n[Turn %d/%d]", t, max)

	switch {
	case remaining >= 4 && remaining <= 5:
		return counter + fmt.Sprintf(" %d turns remaining. Be efficient: prioritize the most informative next step.", remaining), AnnotationEfficiency
	case remaining >= 1 && remaining <= 3:
		return counter + fmt.Sprintf(" Only %d turn(s) remaining. Wrap up now and submit your final result.", remaining), AnnotationUrgency
	default:
		return counter, AnnotationCounter
	}
}
