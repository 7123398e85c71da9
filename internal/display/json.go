package display

import (
	"encoding/json"
	"io"
	"time"

	"github.com/joshuadavidthomas/meteofetch/internal/catalog"
	"github.com/joshuadavidthomas/meteofetch/internal/fetch"
	"github.com/joshuadavidthomas/meteofetch/internal/usage"
)

// OutputJSON writes pretty-printed JSON to the given writer.
func OutputJSON(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// UsageJSON is the machine-readable form of the usage report.
type UsageJSON struct {
	Providers   []usage.Summary `json:"providers"`
	GeneratedAt string          `json:"generated_at"`
}

// OutputUsageJSON writes the usage summaries as JSON.
func OutputUsageJSON(w io.Writer, summaries []usage.Summary) error {
	if summaries == nil {
		summaries = []usage.Summary{}
	}
	return OutputJSON(w, UsageJSON{Providers: summaries, GeneratedAt: time.Now().Format(time.RFC3339)})
}

// ProviderJSON pairs a descriptor with its current availability.
type ProviderJSON struct {
	catalog.Descriptor
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

// OutcomesJSON wraps the results of a batch of tasks.
type OutcomesJSON struct {
	Results   []fetch.Outcome `json:"results"`
	FetchedAt string          `json:"fetched_at"`
}

// OutputOutcomesJSON writes outcomes in submission order.
func OutputOutcomesJSON(w io.Writer, outcomes []fetch.Outcome) error {
	if outcomes == nil {
		outcomes = []fetch.Outcome{}
	}
	return OutputJSON(w, OutcomesJSON{Results: outcomes, FetchedAt: time.Now().Format(time.RFC3339)})
}
