package runner

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Final-result wire markers. A tool emits
//
//	<<<FINAL_RESULT>>>
//	{"answer": "..."}
//	<<<END_FINAL_RESULT>>>
//
// to end the run with a structured payload.
const (
	FinalResultStart = "<<<FINAL_RESULT>>>"
	FinalResultEnd   = "<<<END_FINAL_RESULT>>>"
)

var finalResultPattern = regexp.MustCompile(`(?s)` + regexp.QuoteMeta(FinalResultStart) + `\s*(.*?)\s*` + regexp.QuoteMeta(FinalResultEnd))

// ParseFinalResult scans text for final-result markers and returns the first
// enclosed JSON object. Markers whose body is not a JSON object are not
// submissions and are skipped. A body is the text after the last opening
// marker before its end marker, so stray opening markers earlier in the
// output do not hide a well-formed one. It is pure: the same text always
// yields the same result.
func ParseFinalResult(text string) (map[string]any, bool) {
	for _, m := range finalResultPattern.FindAllStringSubmatch(text, -1) {
		body := m[1]
		if i := strings.LastIndex(body, FinalResultStart); i >= 0 {
			body = strings.TrimSpace(body[i+len(FinalResultStart):])
		}
		var payload map[string]any
		if err := json.Unmarshal([]byte(body), &payload); err != nil || payload == nil {
			continue
		}
		return payload, true
	}
	return nil, false
}

// FormatFinalResult renders payload between the final-result markers.
func FormatFinalResult(payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return FinalResultStart + "\n" + string(data) + "\n" + FinalResultEnd, nil
}
