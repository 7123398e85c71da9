package httpclient

import (
	"encoding/json"
	"strings"
)

const maxSummary = 120

// messageKeys are the fields weather APIs put their error text in:
// Open-Meteo uses "reason", RapidAPI gateways use "message".
var messageKeys = []string{"reason", "message", "error"}

// SummarizeBody returns a short, single-line summary of a response body for
// error messages. A JSON error body is reduced to its message field. Long
// summaries are truncated with "...".
func SummarizeBody(body []byte) string {
	s := errorMessage(body)
	if s == "" {
		s = strings.Join(strings.Fields(string(body)), " ")
	}
	if s == "" {
		return "empty body"
	}
	if len(s) > maxSummary {
		return s[:maxSummary] + "..."
	}
	return s
}

func errorMessage(body []byte) string {
	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		return ""
	}
	for _, k := range messageKeys {
		if v, ok := fields[k].(string); ok {
			if v = strings.TrimSpace(v); v != "" {
				return strings.Join(strings.Fields(v), " ")
			}
		}
	}
	return ""
}
